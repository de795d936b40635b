package models

import "strings"

var sortAliases = map[string]SortField{
	"added":         SortDateAdded,
	"date_added":    SortDateAdded,
	"dateAdded":     SortDateAdded,
	"title":         SortTitle,
	"artist":        SortPrimaryArtist,
	"primaryArtist": SortPrimaryArtist,
	"year":          SortYear,
	"rating":        SortRating,
	"genre":         SortPrimaryGenre,
	"primaryGenre":  SortPrimaryGenre,
	"format":        SortPrimaryFormat,
	"primaryFormat": SortPrimaryFormat,
}

// ParseSortField maps a user supplied sort key onto a field the list supports.
// Unknown keys, and rating outside the collection, fall back to date added.
func ParseSortField(kind ListKind, raw string) SortField {
	field, ok := sortAliases[raw]
	if !ok {
		return SortDateAdded
	}
	if field == SortRating && kind != ListCollection {
		return SortDateAdded
	}
	return field
}

var releaseSortFields = map[SortField]bool{
	SortTitle:         true,
	SortPrimaryArtist: true,
	SortYear:          true,
	SortPrimaryGenre:  true,
	SortCreatedAt:     true,
}

// ParseReleaseSortField validates a catalog sort key, defaulting to createdAt.
func ParseReleaseSortField(raw string) SortField {
	if releaseSortFields[SortField(raw)] {
		return SortField(raw)
	}
	return SortCreatedAt
}

// ParseSortOrder treats "asc" and "ascending" as ascending and anything else as
// descending.
func ParseSortOrder(raw string) SortOrder {
	switch strings.ToLower(raw) {
	case "asc", "ascending":
		return SortAsc
	}
	return SortDesc
}

// SortOptions lists the sort fields offered for a list.
func SortOptions(kind ListKind) []SortOption {
	opts := []SortOption{
		{Field: SortDateAdded, Label: "Date Added"},
		{Field: SortTitle, Label: "Title"},
		{Field: SortPrimaryArtist, Label: "Artist"},
		{Field: SortYear, Label: "Year"},
	}
	if kind == ListCollection {
		opts = append(opts, SortOption{Field: SortRating, Label: "Rating"})
	}
	return append(opts,
		SortOption{Field: SortPrimaryGenre, Label: "Genre"},
		SortOption{Field: SortPrimaryFormat, Label: "Format"},
	)
}
