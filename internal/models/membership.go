package models

import (
	"fmt"
	"time"
)

// ListKind identifies one of the reconciled lists.
type ListKind string

const (
	ListCollection ListKind = "collection"
	ListWantlist   ListKind = "wantlist"
	ListSuggestion ListKind = "suggestion"
)

// ParseListKind validates a user supplied list name.
func ParseListKind(s string) (ListKind, error) {
	switch ListKind(s) {
	case ListCollection, ListWantlist, ListSuggestion:
		return ListKind(s), nil
	}
	return "", fmt.Errorf("unknown list %q", s)
}

// Membership records that a user keeps a release in one of the lists.
type Membership struct {
	ID        int64  `json:"id"`
	UserID    string `json:"userId"`
	ReleaseID int64  `json:"releaseId"`

	// Collection only.
	DiscogsInstanceID *int64 `json:"discogsInstanceId,omitempty"`
	FolderID          int64  `json:"folderId"`
	Rating            int    `json:"rating"`

	Notes string `json:"notes"`
	SortFields
	DateAdded time.Time `json:"dateAdded"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Populated by list queries that join releases.
	Release *Release `json:"release,omitempty"`
}

// SortField is a column a list can be ordered by.
type SortField string

const (
	SortDateAdded     SortField = "dateAdded"
	SortTitle         SortField = "title"
	SortPrimaryArtist SortField = "primaryArtist"
	SortYear          SortField = "year"
	SortRating        SortField = "rating"
	SortPrimaryGenre  SortField = "primaryGenre"
	SortPrimaryFormat SortField = "primaryFormat"
	SortCreatedAt     SortField = "createdAt"
)

// SortOrder is ASC or DESC.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// ListQuery describes one page of a sorted list.
type ListQuery struct {
	Limit  int
	Offset int
	SortBy SortField
	Order  SortOrder
	Search string
}

// ListStats summarizes one user's list.
type ListStats struct {
	TotalItems    int     `json:"totalItems"`
	RatedItems    int     `json:"ratedItems,omitempty"`
	AverageRating float64 `json:"averageRating,omitempty"`
}

// SortOption is a field/label pair offered to API clients.
type SortOption struct {
	Field SortField `json:"field"`
	Label string    `json:"label"`
}
