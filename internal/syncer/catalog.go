// Package syncer reconciles Discogs lists into the local store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"vinylsync/internal/discogs"
	"vinylsync/internal/models"
	"vinylsync/internal/normalize"
	"vinylsync/internal/store"
)

// ReleaseStore persists canonical releases.
type ReleaseStore interface {
	FindReleaseByDiscogsID(ctx context.Context, discogsID int64) (*models.Release, error)
	CreateRelease(ctx context.Context, release *models.Release) (*models.Release, error)
	UpdateRelease(ctx context.Context, release *models.Release) error
}

// Catalog keeps the releases table in step with Discogs payloads.
type Catalog struct {
	releases ReleaseStore
	logger   zerolog.Logger
}

// NewCatalog constructs a Catalog.
func NewCatalog(releases ReleaseStore, logger zerolog.Logger) *Catalog {
	return &Catalog{releases: releases, logger: logger}
}

// Upsert finds the release by Discogs identifier and creates or refreshes it. A
// release whose stored fields already match the payload is returned without a write.
func (c *Catalog) Upsert(ctx context.Context, info discogs.BasicInformation) (*models.Release, error) {
	desired, err := releaseFrom(info)
	if err != nil {
		return nil, persistence("encode release", err)
	}

	existing, err := c.releases.FindReleaseByDiscogsID(ctx, info.ID)
	switch {
	case errors.Is(err, store.ErrReleaseNotFound):
		created, err := c.releases.CreateRelease(ctx, desired)
		if !errors.Is(err, store.ErrReleaseExists) {
			if err != nil {
				return nil, persistence("create release", err)
			}
			c.logger.Debug().Int64("discogs_id", info.ID).Int64("release_id", created.ID).Msg("created release")
			return created, nil
		}
		// Another pass stored it between the lookup and the insert.
		existing, err = c.releases.FindReleaseByDiscogsID(ctx, info.ID)
		if err != nil {
			return nil, persistence("find release", err)
		}
	case err != nil:
		return nil, persistence("find release", err)
	}

	if sameRelease(existing, desired) {
		return existing, nil
	}

	desired.ID = existing.ID
	desired.CreatedAt = existing.CreatedAt
	desired.UpdatedAt = existing.UpdatedAt
	if err := c.releases.UpdateRelease(ctx, desired); err != nil {
		return nil, persistence("update release", err)
	}
	c.logger.Debug().Int64("discogs_id", info.ID).Int64("release_id", desired.ID).Msg("updated release")
	return desired, nil
}

func releaseFrom(info discogs.BasicInformation) (*models.Release, error) {
	artists, err := json.Marshal(emptyIfNil(info.Artists))
	if err != nil {
		return nil, fmt.Errorf("artists: %w", err)
	}
	labels, err := json.Marshal(emptyIfNil(info.Labels))
	if err != nil {
		return nil, fmt.Errorf("labels: %w", err)
	}
	formats, err := json.Marshal(emptyIfNil(info.Formats))
	if err != nil {
		return nil, fmt.Errorf("formats: %w", err)
	}

	r := &models.Release{
		DiscogsID:        info.ID,
		Title:            info.Title,
		Artists:          artists,
		Labels:           labels,
		Formats:          formats,
		Genres:           info.Genres,
		Styles:           info.Styles,
		NormalizedFields: normalize.Extract(info),
	}
	if info.Year > 0 {
		year := info.Year
		r.Year = &year
	}
	if info.Thumb != "" {
		thumb := info.Thumb
		r.ThumbURL = &thumb
	}
	if info.CoverImage != "" {
		cover := info.CoverImage
		r.CoverImageURL = &cover
	}
	return r, nil
}

func emptyIfNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

// sameRelease compares the mutable fields. Raw arrays are compared by value since the
// database may re-serialize them.
func sameRelease(stored, desired *models.Release) bool {
	if stored.Title != desired.Title ||
		!reflect.DeepEqual(stored.Year, desired.Year) ||
		!reflect.DeepEqual(stored.ThumbURL, desired.ThumbURL) ||
		!reflect.DeepEqual(stored.CoverImageURL, desired.CoverImageURL) ||
		!reflect.DeepEqual(stored.NormalizedFields, desired.NormalizedFields) ||
		!sameTags(stored.Genres, desired.Genres) ||
		!sameTags(stored.Styles, desired.Styles) {
		return false
	}
	return sameJSON(stored.Artists, desired.Artists) &&
		sameJSON(stored.Labels, desired.Labels) &&
		sameJSON(stored.Formats, desired.Formats)
}

func sameTags(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func sameJSON(a, b []byte) bool {
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}
