package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"vinylsync/internal/discogs"
	"vinylsync/internal/metrics"
	"vinylsync/internal/models"
	"vinylsync/internal/normalize"
	"vinylsync/internal/store"
)

// Fetcher retrieves a complete remote list.
type Fetcher interface {
	FetchAll(ctx context.Context, kind models.ListKind) ([]discogs.Release, error)
}

// MembershipStore persists list rows.
type MembershipStore interface {
	FindMembership(ctx context.Context, kind models.ListKind, userID string, releaseID int64) (*models.Membership, error)
	InsertMembership(ctx context.Context, kind models.ListKind, m *models.Membership) (*models.Membership, error)
	UpdateMembership(ctx context.Context, kind models.ListKind, m *models.Membership) error
}

// Result summarizes one reconciliation pass.
type Result struct {
	Synced int `json:"synced"`
	Errors int `json:"errors"`
	Total  int `json:"total"`
}

// AllResult pairs the collection and wantlist passes of a full sync. A nil entry
// means that pass did not complete.
type AllResult struct {
	Collection *Result `json:"collection,omitempty"`
	Wantlist   *Result `json:"wantlist,omitempty"`
}

// listPolicy captures what differs between the reconciled lists.
type listPolicy struct {
	kind models.ListKind
	// collection rows carry instance, folder and rating.
	collectionFields bool
}

var policies = map[models.ListKind]listPolicy{
	models.ListCollection: {kind: models.ListCollection, collectionFields: true},
	models.ListWantlist:   {kind: models.ListWantlist},
	models.ListSuggestion: {kind: models.ListSuggestion},
}

// newMembership builds the row inserted the first time an item is seen.
func (p listPolicy) newMembership(userID string, release *models.Release, item discogs.Release, now time.Time) *models.Membership {
	m := &models.Membership{
		UserID:     userID,
		ReleaseID:  release.ID,
		Notes:      item.Notes.Text(),
		SortFields: normalize.SortFieldsOf(*release),
		DateAdded:  dateAdded(item.DateAdded, now),
	}
	if p.collectionFields {
		m.DiscogsInstanceID = item.InstanceID
		if item.FolderID != nil {
			m.FolderID = *item.FolderID
		}
		m.Rating = item.Rating
	}
	return m
}

// refresh applies the remote values to an existing row. Date added and identity are kept.
func (p listPolicy) refresh(m *models.Membership, release *models.Release, item discogs.Release) {
	m.Notes = item.Notes.Text()
	m.SortFields = normalize.SortFieldsOf(*release)
	if p.collectionFields {
		m.Rating = item.Rating
	}
}

func dateAdded(raw string, now time.Time) time.Time {
	if raw == "" {
		return now
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return now
	}
	return t.UTC()
}

// Reconciler pulls remote lists and upserts them into the local store. It only adds
// and refreshes rows; rows whose remote counterpart disappeared are left in place.
type Reconciler struct {
	fetcher Fetcher
	catalog *Catalog
	members MembershipStore
	logger  zerolog.Logger
	now     func() time.Time
	guard   *passGuard
}

// NewReconciler constructs a Reconciler.
func NewReconciler(fetcher Fetcher, catalog *Catalog, members MembershipStore, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		fetcher: fetcher,
		catalog: catalog,
		members: members,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		guard:   newPassGuard(),
	}
}

// Reconcile fetches the complete remote list and upserts every item for userID. A
// fetch failure aborts the pass; per-item failures are counted in Result.Errors.
// It returns ErrSyncInProgress without fetching when the same list is already being
// reconciled for userID.
func (r *Reconciler) Reconcile(ctx context.Context, kind models.ListKind, userID string) (*Result, error) {
	policy, ok := policies[kind]
	if !ok {
		return nil, fmt.Errorf("reconcile: unknown list %q", kind)
	}

	release, ok := r.guard.tryAcquire(kind, userID)
	if !ok {
		r.logger.Warn().Str("list", string(kind)).Str("user_id", userID).Msg("reconciliation skipped, pass already running")
		return nil, fmt.Errorf("reconcile %s: %w", kind, ErrSyncInProgress)
	}
	defer release()

	return r.reconcile(ctx, policy, userID)
}

// reconcileWhenFree waits for any running pass over the same list to finish, then
// runs its own.
func (r *Reconciler) reconcileWhenFree(ctx context.Context, kind models.ListKind, userID string) (*Result, error) {
	release, err := r.guard.acquire(ctx, kind, userID)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", kind, err)
	}
	defer release()

	return r.reconcile(ctx, policies[kind], userID)
}

func (r *Reconciler) reconcile(ctx context.Context, policy listPolicy, userID string) (*Result, error) {
	kind := policy.kind
	logger := r.logger.With().Str("list", string(kind)).Str("user_id", userID).Logger()
	logger.Info().Msg("starting reconciliation")

	items, err := r.fetcher.FetchAll(ctx, kind)
	if err != nil {
		logger.Error().Err(err).Msg("fetch failed")
		return nil, fmt.Errorf("fetch %s: %w", kind, err)
	}

	res := &Result{Total: len(items)}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			metrics.RecordSyncItems(string(kind), res.Synced, res.Errors)
			return res, fmt.Errorf("reconcile %s: %w", kind, err)
		}

		if err := r.reconcileItem(ctx, policy, userID, item); err != nil {
			res.Errors++
			logger.Error().Err(err).Int64("discogs_id", item.BasicInformation.ID).
				Str("title", item.BasicInformation.Title).Msg("item sync failed")
			continue
		}
		res.Synced++
	}

	metrics.RecordSyncItems(string(kind), res.Synced, res.Errors)
	logger.Info().Int("synced", res.Synced).Int("errors", res.Errors).Int("total", res.Total).Msg("reconciliation completed")
	return res, nil
}

func (r *Reconciler) reconcileItem(ctx context.Context, policy listPolicy, userID string, item discogs.Release) error {
	release, err := r.catalog.Upsert(ctx, item.BasicInformation)
	if err != nil {
		return err
	}

	existing, err := r.members.FindMembership(ctx, policy.kind, userID, release.ID)
	switch {
	case errors.Is(err, store.ErrMembershipNotFound):
		m := policy.newMembership(userID, release, item, r.now())
		_, err := r.members.InsertMembership(ctx, policy.kind, m)
		if !errors.Is(err, store.ErrAlreadyInList) {
			if err != nil {
				return persistence("insert membership", err)
			}
			return nil
		}
		// A local add raced this pass; refresh the row it created.
		existing, err = r.members.FindMembership(ctx, policy.kind, userID, release.ID)
		if err != nil {
			return persistence("find membership", err)
		}
	case err != nil:
		return persistence("find membership", err)
	}

	policy.refresh(existing, release, item)
	if err := r.members.UpdateMembership(ctx, policy.kind, existing); err != nil {
		return persistence("update membership", err)
	}
	return nil
}

// ReconcileAll runs the collection and wantlist passes concurrently. One failing
// pass does not cancel the other; the first error is returned alongside whatever
// results completed. A list already being reconciled is waited for, not skipped.
func (r *Reconciler) ReconcileAll(ctx context.Context, userID string) (*AllResult, error) {
	var (
		g   errgroup.Group
		out AllResult
	)

	g.Go(func() error {
		res, err := r.reconcileWhenFree(ctx, models.ListCollection, userID)
		out.Collection = res
		return err
	})
	g.Go(func() error {
		res, err := r.reconcileWhenFree(ctx, models.ListWantlist, userID)
		out.Wantlist = res
		return err
	})

	err := g.Wait()
	return &out, err
}

// ReconcileSuggestions refreshes the suggestions folder for userID. A pass already in
// flight may have fetched before the caller's change landed, so this one waits its
// turn instead of being skipped.
func (r *Reconciler) ReconcileSuggestions(ctx context.Context, userID string) (*Result, error) {
	return r.reconcileWhenFree(ctx, models.ListSuggestion, userID)
}
