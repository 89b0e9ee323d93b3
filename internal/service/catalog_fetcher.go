package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

const maxCatalogBytes = 4 << 20

// CatalogFetcher retrieves the raw live catalog payload.
type CatalogFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// NewCatalogFetcher picks an HTTP fetcher for http(s) sources and a file
// fetcher for everything else.
func NewCatalogFetcher(source string, client *http.Client) CatalogFetcher {
	lower := strings.ToLower(source)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return &HTTPFetcher{URL: source, Client: client}
	}
	return &FileFetcher{Path: source}
}

type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("Catalog request failed (%d)", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxCatalogBytes {
		return nil, errors.New("Catalog payload too large")
	}
	return body, nil
}

// FileFetcher reads the catalog from disk, honouring ctx cancellation.
type FileFetcher struct {
	Path string
}

func (f *FileFetcher) Fetch(ctx context.Context) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	done := make(chan result, 1)
	go func() {
		data, err := os.ReadFile(f.Path)
		done <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if errors.Is(r.err, os.ErrNotExist) {
			return nil, fmt.Errorf("Catalog request failed (%d)", http.StatusNotFound)
		}
		return r.data, r.err
	}
}
