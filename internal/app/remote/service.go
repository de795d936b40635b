// Package remote exposes Discogs passthrough reads and manual synchronization.
package remote

import (
	"context"

	"golang.org/x/sync/errgroup"

	"vinylsync/internal/discogs"
	"vinylsync/internal/models"
	"vinylsync/internal/scheduler"
	"vinylsync/internal/syncer"
)

// Client is the subset of the Discogs client used for passthrough reads.
type Client interface {
	FetchPage(ctx context.Context, kind models.ListKind, p discogs.PageParams) (*discogs.Page, error)
	Search(ctx context.Context, query string, page, perPage int) (*discogs.SearchResults, error)
}

// Reconciler runs single-list passes on demand.
type Reconciler interface {
	Reconcile(ctx context.Context, kind models.ListKind, userID string) (*syncer.Result, error)
}

// Runner performs guarded full syncs and remembers the last one.
type Runner interface {
	PerformFullSync(ctx context.Context, trigger string) (*scheduler.Report, error)
	LastRun() *scheduler.Report
	Running() bool
}

// StatsStore reads list statistics.
type StatsStore interface {
	Stats(ctx context.Context, kind models.ListKind, userID string) (models.ListStats, error)
}

// ConnectionStatus is the outcome of a credential check against Discogs.
type ConnectionStatus struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	TotalItems int    `json:"totalItems,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SyncStatus combines local list sizes with the scheduler state.
type SyncStatus struct {
	UserID     string            `json:"userId"`
	Running    bool              `json:"running"`
	LastRun    *scheduler.Report `json:"lastRun,omitempty"`
	Collection models.ListStats  `json:"collection"`
	Wantlist   models.ListStats  `json:"wantlist"`
	Summary    SyncSummary       `json:"summary"`
}

// SyncSummary totals the synchronized rows.
type SyncSummary struct {
	TotalSyncedItems int `json:"totalSyncedItems"`
}

// Service coordinates Discogs-facing operations.
type Service interface {
	CollectionPage(ctx context.Context, p discogs.PageParams) (*discogs.Page, error)
	WantlistPage(ctx context.Context, page, perPage int) (*discogs.Page, error)
	Search(ctx context.Context, query string, page, perPage int) (*discogs.SearchResults, error)
	TestConnection(ctx context.Context) ConnectionStatus
	Sync(ctx context.Context, kind models.ListKind, userID string) (*syncer.Result, error)
	SyncAll(ctx context.Context) (*scheduler.Report, error)
	Status(ctx context.Context, userID string) (*SyncStatus, error)
	DefaultUser() string
}

type service struct {
	client      Client
	reconciler  Reconciler
	runner      Runner
	stats       StatsStore
	defaultUser string
}

// New constructs a remote Service. defaultUser is used when a request names no user.
func New(client Client, reconciler Reconciler, runner Runner, stats StatsStore, defaultUser string) Service {
	return &service{
		client:      client,
		reconciler:  reconciler,
		runner:      runner,
		stats:       stats,
		defaultUser: defaultUser,
	}
}

func (s *service) DefaultUser() string { return s.defaultUser }

func (s *service) user(userID string) string {
	if userID == "" {
		return s.defaultUser
	}
	return userID
}

func (s *service) CollectionPage(ctx context.Context, p discogs.PageParams) (*discogs.Page, error) {
	return s.client.FetchPage(ctx, models.ListCollection, p)
}

func (s *service) WantlistPage(ctx context.Context, page, perPage int) (*discogs.Page, error) {
	return s.client.FetchPage(ctx, models.ListWantlist, discogs.PageParams{Page: page, PerPage: perPage})
}

func (s *service) Search(ctx context.Context, query string, page, perPage int) (*discogs.SearchResults, error) {
	return s.client.Search(ctx, query, page, perPage)
}

func (s *service) TestConnection(ctx context.Context) ConnectionStatus {
	page, err := s.client.FetchPage(ctx, models.ListCollection, discogs.PageParams{Page: 1, PerPage: 1})
	if err != nil {
		return ConnectionStatus{
			Status:  "error",
			Message: "Discogs API connection failed",
			Error:   err.Error(),
		}
	}
	return ConnectionStatus{
		Status:     "success",
		Message:    "Discogs API connection successful",
		TotalItems: page.Pagination.Items,
	}
}

// Sync reconciles one list. The pass outlives the caller's cancellation so a
// dropped request does not leave a half-finished run behind.
func (s *service) Sync(ctx context.Context, kind models.ListKind, userID string) (*syncer.Result, error) {
	return s.reconciler.Reconcile(context.WithoutCancel(ctx), kind, s.user(userID))
}

func (s *service) SyncAll(ctx context.Context) (*scheduler.Report, error) {
	return s.runner.PerformFullSync(context.WithoutCancel(ctx), scheduler.TriggerManual)
}

func (s *service) Status(ctx context.Context, userID string) (*SyncStatus, error) {
	status := &SyncStatus{
		UserID:  s.user(userID),
		Running: s.runner.Running(),
		LastRun: s.runner.LastRun(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		status.Collection, err = s.stats.Stats(gctx, models.ListCollection, status.UserID)
		return err
	})
	g.Go(func() (err error) {
		status.Wantlist, err = s.stats.Stats(gctx, models.ListWantlist, status.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	status.Summary.TotalSyncedItems = status.Collection.TotalItems + status.Wantlist.TotalItems
	return status, nil
}
