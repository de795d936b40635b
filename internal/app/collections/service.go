package collections

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"vinylsync/internal/models"
	"vinylsync/internal/normalize"
	"vinylsync/internal/store"
)

// Store defines persistence operations for user lists
type Store interface {
	GetRelease(ctx context.Context, id int64) (*models.Release, error)
	FindMembership(ctx context.Context, kind models.ListKind, userID string, releaseID int64) (*models.Membership, error)
	InsertMembership(ctx context.Context, kind models.ListKind, m *models.Membership) (*models.Membership, error)
	DeleteMembership(ctx context.Context, kind models.ListKind, userID string, releaseID int64) error
	ListMemberships(ctx context.Context, kind models.ListKind, userID string, q models.ListQuery) ([]models.Membership, int, error)
	Stats(ctx context.Context, kind models.ListKind, userID string) (models.ListStats, error)
}

// ListParams are the raw paging and sort options of a list request.
type ListParams struct {
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
	Search    string
}

// AddItem is a locally initiated add. Rating only applies to the collection.
type AddItem struct {
	ReleaseID int64
	Rating    int
	Notes     string
}

// Summary totals the user's lists.
type Summary struct {
	TotalItems      int `json:"totalItems"`
	CollectionItems int `json:"collectionItems"`
	WantlistItems   int `json:"wantlistItems"`
	SuggestionItems int `json:"suggestionItems"`
}

// UserStats groups the per-list statistics of one user.
type UserStats struct {
	Collection  models.ListStats `json:"collection"`
	Wantlist    models.ListStats `json:"wantlist"`
	Suggestions models.ListStats `json:"suggestions"`
	Summary     Summary          `json:"summary"`
}

// Service coordinates list-related operations
type Service interface {
	List(ctx context.Context, kind models.ListKind, userID string, params ListParams) (*models.Page[models.Membership], error)
	Add(ctx context.Context, kind models.ListKind, userID string, item AddItem) (*models.Membership, error)
	Remove(ctx context.Context, kind models.ListKind, userID string, releaseID int64) error
	Stats(ctx context.Context, userID string) (*UserStats, error)
	SortOptions(kind models.ListKind) []models.SortOption
}

type service struct {
	store Store
	now   func() time.Time
}

// New constructs a collections Service
func New(store Store) Service {
	return &service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Query normalizes raw list parameters for kind.
func Query(kind models.ListKind, params ListParams) models.ListQuery {
	q := models.ListQuery{
		Limit:  params.Limit,
		Offset: params.Offset,
		SortBy: models.ParseSortField(kind, params.SortBy),
		Order:  models.ParseSortOrder(params.SortOrder),
		Search: params.Search,
	}
	if q.Limit <= 0 {
		q.Limit = models.DefaultLimitFor(kind)
	}
	if q.Limit > models.MaxLimit {
		q.Limit = models.MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

func (s *service) List(ctx context.Context, kind models.ListKind, userID string, params ListParams) (*models.Page[models.Membership], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := Query(kind, params)
	items, total, err := s.store.ListMemberships(ctx, kind, userID, q)
	if err != nil {
		return nil, err
	}
	return models.NewPage(items, total, q), nil
}

// Add inserts a purely local membership. The release must already be in the catalog.
func (s *service) Add(ctx context.Context, kind models.ListKind, userID string, item AddItem) (*models.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, err := s.store.FindMembership(ctx, kind, userID, item.ReleaseID)
	if err == nil {
		return nil, store.ErrAlreadyInList
	}
	if !errors.Is(err, store.ErrMembershipNotFound) {
		return nil, err
	}

	release, err := s.store.GetRelease(ctx, item.ReleaseID)
	if err != nil {
		return nil, err
	}

	m := &models.Membership{
		UserID:     userID,
		ReleaseID:  release.ID,
		Notes:      item.Notes,
		SortFields: normalize.SortFieldsOf(*release),
		DateAdded:  s.now(),
	}
	if kind == models.ListCollection {
		m.Rating = item.Rating
	}

	created, err := s.store.InsertMembership(ctx, kind, m)
	if err != nil {
		return nil, err
	}
	created.Release = release
	return created, nil
}

func (s *service) Remove(ctx context.Context, kind models.ListKind, userID string, releaseID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.store.DeleteMembership(ctx, kind, userID, releaseID)
}

func (s *service) Stats(ctx context.Context, userID string) (*UserStats, error) {
	var out UserStats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		out.Collection, err = s.store.Stats(ctx, models.ListCollection, userID)
		return err
	})
	g.Go(func() (err error) {
		out.Wantlist, err = s.store.Stats(ctx, models.ListWantlist, userID)
		return err
	})
	g.Go(func() (err error) {
		out.Suggestions, err = s.store.Stats(ctx, models.ListSuggestion, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Summary = Summary{
		TotalItems:      out.Collection.TotalItems + out.Wantlist.TotalItems + out.Suggestions.TotalItems,
		CollectionItems: out.Collection.TotalItems,
		WantlistItems:   out.Wantlist.TotalItems,
		SuggestionItems: out.Suggestions.TotalItems,
	}
	return &out, nil
}

func (s *service) SortOptions(kind models.ListKind) []models.SortOption {
	return models.SortOptions(kind)
}
