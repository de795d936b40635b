package models

import (
	"encoding/json"
	"time"
)

// NormalizedFields are the flat, sortable scalars derived from a remote release
// payload. Every field is independently nullable.
type NormalizedFields struct {
	PrimaryArtist *string `json:"primaryArtist"`
	AllArtists    *string `json:"allArtists"`
	PrimaryGenre  *string `json:"primaryGenre"`
	PrimaryStyle  *string `json:"primaryStyle"`
	PrimaryFormat *string `json:"primaryFormat"`
	VinylColor    *string `json:"vinylColor"`
	CatalogNumber *string `json:"catalogNumber"`
	RecordLabel   *string `json:"recordLabel"`
}

// Release is the canonical catalog entry keyed by its Discogs identifier.
type Release struct {
	ID            int64           `json:"id"`
	DiscogsID     int64           `json:"discogsId"`
	Title         string          `json:"title"`
	Year          *int            `json:"year"`
	ThumbURL      *string         `json:"thumbUrl"`
	CoverImageURL *string         `json:"coverImageUrl"`
	Artists       json.RawMessage `json:"artists"`
	Labels        json.RawMessage `json:"labels"`
	Formats       json.RawMessage `json:"formats"`
	Genres        []string        `json:"genres"`
	Styles        []string        `json:"styles"`
	NormalizedFields
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SortFields is the subset of a release copied onto list rows so list queries can
// sort and filter without joining releases. A nil pointer means the release did not
// carry the value.
type SortFields struct {
	Title         *string `json:"title"`
	PrimaryArtist *string `json:"primaryArtist"`
	AllArtists    *string `json:"allArtists"`
	Year          *int    `json:"year"`
	PrimaryGenre  *string `json:"primaryGenre"`
	PrimaryFormat *string `json:"primaryFormat"`
	VinylColor    *string `json:"vinylColor"`
}
