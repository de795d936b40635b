package suggestions

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"vinylsync/internal/discogs"
	"vinylsync/internal/models"
	"vinylsync/internal/store"
	"vinylsync/internal/syncer"
)

// Store defines the persistence reads needed around a suggestion add.
type Store interface {
	FindReleaseByDiscogsID(ctx context.Context, discogsID int64) (*models.Release, error)
	FindMembership(ctx context.Context, kind models.ListKind, userID string, releaseID int64) (*models.Membership, error)
}

// Remote adds releases to a Discogs folder.
type Remote interface {
	AddToFolder(ctx context.Context, releaseID, folderID int64) (*discogs.AddResult, error)
}

// Reconciler refreshes the local suggestions from Discogs.
type Reconciler interface {
	ReconcileSuggestions(ctx context.Context, userID string) (*syncer.Result, error)
}

// Service manages releases suggested to a user. Adds go through Discogs and only
// become visible locally after the suggestions folder has been reconciled.
type Service interface {
	Add(ctx context.Context, userID string, discogsID int64) (*models.Membership, error)
}

type service struct {
	store      Store
	remote     Remote
	reconciler Reconciler
	logger     zerolog.Logger
}

// New constructs a suggestions Service.
func New(store Store, remote Remote, reconciler Reconciler, logger zerolog.Logger) Service {
	return &service{
		store:      store,
		remote:     remote,
		reconciler: reconciler,
		logger:     logger.With().Str("component", "suggestions").Logger(),
	}
}

func (s *service) Add(ctx context.Context, userID string, discogsID int64) (*models.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if present, err := s.present(ctx, userID, discogsID); err != nil {
		return nil, err
	} else if present {
		return nil, store.ErrAlreadyInList
	}

	s.logger.Info().Int64("discogs_id", discogsID).Str("user_id", userID).Msg("adding release to suggestions folder")
	if _, err := s.remote.AddToFolder(ctx, discogsID, 0); err != nil {
		if !errors.Is(err, discogs.ErrAlreadyExists) {
			return nil, err
		}
		s.logger.Info().Int64("discogs_id", discogsID).Msg("release already in suggestions folder")
	}

	res, err := s.reconciler.ReconcileSuggestions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reconcile suggestions: %w", err)
	}
	s.logger.Info().Int("synced", res.Synced).Int("total", res.Total).Msg("suggestions reconciled")

	release, err := s.store.FindReleaseByDiscogsID(ctx, discogsID)
	if err != nil {
		return nil, fmt.Errorf("release %d after reconcile: %w", discogsID, err)
	}
	m, err := s.store.FindMembership(ctx, models.ListSuggestion, userID, release.ID)
	if err != nil {
		return nil, fmt.Errorf("suggestion for release %d after reconcile: %w", release.ID, err)
	}
	m.Release = release
	return m, nil
}

func (s *service) present(ctx context.Context, userID string, discogsID int64) (bool, error) {
	release, err := s.store.FindReleaseByDiscogsID(ctx, discogsID)
	if errors.Is(err, store.ErrReleaseNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	_, err = s.store.FindMembership(ctx, models.ListSuggestion, userID, release.ID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrMembershipNotFound):
		return false, nil
	default:
		return false, err
	}
}
