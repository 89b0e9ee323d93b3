package model

import "time"

type CatalogSource string

const (
	SourceLive     CatalogSource = "live"
	SourceCache    CatalogSource = "cache"
	SourceFallback CatalogSource = "fallback"
)

type Course struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Credits     int    `json:"credits"`
	Description string `json:"description"`
}

type CatalogSnapshot struct {
	Source       CatalogSource `json:"source"`
	Stale        bool          `json:"stale"`
	RefreshedAt  *time.Time    `json:"refreshedAt"`
	Version      *string       `json:"version"`
	Courses      []Course      `json:"courses"`
	Message      string        `json:"message"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

// CatalogCache is the persisted form of the last live catalog. SavedAt is
// unix milliseconds.
type CatalogCache struct {
	SavedAt int64    `json:"savedAt"`
	Version *string  `json:"version"`
	Courses []Course `json:"courses"`
}
