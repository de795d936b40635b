package models

const (
	DefaultLimit = 50
	MaxLimit     = 100
	// DefaultSuggestionLimit keeps the suggestions view shorter than the main lists.
	DefaultSuggestionLimit = 20
)

// DefaultLimitFor returns the page size used when a request for kind names none.
func DefaultLimitFor(kind ListKind) int {
	if kind == ListSuggestion {
		return DefaultSuggestionLimit
	}
	return DefaultLimit
}

// Page is one slice of a sorted list.
type Page[T any] struct {
	Data      []T       `json:"data"`
	Total     int       `json:"total"`
	Limit     int       `json:"limit"`
	Offset    int       `json:"offset"`
	HasMore   bool      `json:"hasMore"`
	SortBy    SortField `json:"sortBy"`
	SortOrder SortOrder `json:"sortOrder"`
}

// NewPage fills in the paging envelope for items fetched with q.
func NewPage[T any](items []T, total int, q ListQuery) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{
		Data:      items,
		Total:     total,
		Limit:     q.Limit,
		Offset:    q.Offset,
		HasMore:   q.Offset+len(items) < total,
		SortBy:    q.SortBy,
		SortOrder: q.Order,
	}
}
