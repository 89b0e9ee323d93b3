//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"course-portal/internal/app"
	"course-portal/internal/config"
)

const testPassword = "Sup3r!secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	stateDir := t.TempDir()
	return &config.Config{
		ServerPort:              "0",
		ServerReadHeaderTimeout: 5 * time.Second,
		ServerWriteTimeout:      10 * time.Second,
		ServerIdleTimeout:       30 * time.Second,
		RequestTimeout:          5 * time.Second,
		LogLevel:                "error",
		TokenSecret:             "integration-secret",
		CORSOrigins:             []string{"*"},
		RateLimitRPM:            0,
		AuthRateLimitRPM:        1000,
		DurableStore:            config.StoreFile,
		SessionStore:            config.StoreMemory,
		StateDir:                stateDir,
		LockoutThreshold:        5,
		LockoutWindow:           15 * time.Minute,
		LockoutDuration:         5 * time.Minute,
		IdleTimeout:             15 * time.Minute,
		IdleCheckInterval:       time.Minute,
		ActivityThrottle:        time.Millisecond,
		RememberTTL:             24 * time.Hour,
		PasswordHashScheme:      config.HashLegacy,
		BcryptCost:              4,
		CatalogSource:           filepath.Join(stateDir, "missing-courses.json"),
		CatalogTimeout:          time.Second,
		CatalogCacheTTL:         time.Hour,
		FlagsFile:               filepath.Join(stateDir, "flags.yaml"),
	}
}

func newServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	application, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(application.Close)

	server := httptest.NewServer(application.Handler())
	t.Cleanup(server.Close)
	return server
}

func newBrowser(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func doJSON(t *testing.T, client *http.Client, method string, url string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func registerUser(t *testing.T, client *http.Client, base string, username string) {
	t.Helper()

	status, env := doJSON(t, client, http.MethodPost, base+"/api/v1/auth/register", map[string]string{
		"username": username,
		"password": testPassword,
		"confirm":  testPassword,
	})
	require.Equal(t, http.StatusCreated, status, "register failed: %+v", env.Error)
}
