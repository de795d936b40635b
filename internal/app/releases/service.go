package releases

import (
	"context"

	"vinylsync/internal/models"
)

// Store captures the persistence needs for catalog reads.
type Store interface {
	ListReleases(ctx context.Context, q models.ListQuery) ([]models.Release, int, error)
	FindReleaseByDiscogsID(ctx context.Context, discogsID int64) (*models.Release, error)
}

// ListParams are the raw paging and sort options of a catalog request.
type ListParams struct {
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// Service exposes the synchronized catalog read-only.
type Service interface {
	List(ctx context.Context, params ListParams) (*models.Page[models.Release], error)
	GetByDiscogsID(ctx context.Context, discogsID int64) (*models.Release, error)
}

type service struct {
	store Store
}

// New constructs a Service backed by the provided Store.
func New(store Store) Service {
	return &service{store: store}
}

func (s *service) List(ctx context.Context, params ListParams) (*models.Page[models.Release], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := models.ListQuery{
		Limit:  params.Limit,
		Offset: params.Offset,
		SortBy: models.ParseReleaseSortField(params.SortBy),
		Order:  models.ParseSortOrder(params.SortOrder),
	}
	if q.Limit <= 0 || q.Limit > models.MaxLimit {
		q.Limit = models.DefaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	items, total, err := s.store.ListReleases(ctx, q)
	if err != nil {
		return nil, err
	}
	return models.NewPage(items, total, q), nil
}

func (s *service) GetByDiscogsID(ctx context.Context, discogsID int64) (*models.Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.FindReleaseByDiscogsID(ctx, discogsID)
}
