package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"vinylsync/internal/models"
)

const releaseColumns = `id, discogs_id, title, year, thumb_url, cover_image_url,
		artists, labels, formats, genres, styles,
		primary_artist, all_artists, primary_genre, primary_style, primary_format,
		vinyl_color, catalog_number, record_label, created_at, updated_at`

var releaseSortColumns = map[models.SortField]string{
	models.SortTitle:         "title",
	models.SortPrimaryArtist: "primary_artist",
	models.SortYear:          "year",
	models.SortPrimaryGenre:  "primary_genre",
	models.SortCreatedAt:     "created_at",
}

// FindReleaseByDiscogsID returns the release stored for a Discogs identifier.
func (s *Store) FindReleaseByDiscogsID(ctx context.Context, discogsID int64) (*models.Release, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+releaseColumns+`
		FROM releases
		WHERE discogs_id = $1
	`, discogsID)

	release, err := scanRelease(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReleaseNotFound
		}
		return nil, fmt.Errorf("select release: %w", err)
	}
	return release, nil
}

// GetRelease returns a release by its local identifier.
func (s *Store) GetRelease(ctx context.Context, id int64) (*models.Release, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+releaseColumns+`
		FROM releases
		WHERE id = $1
	`, id)

	release, err := scanRelease(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReleaseNotFound
		}
		return nil, fmt.Errorf("select release: %w", err)
	}
	return release, nil
}

// CreateRelease inserts a release and fills in its generated identifier and timestamps.
func (s *Store) CreateRelease(ctx context.Context, release *models.Release) (*models.Release, error) {
	genres, styles, err := encodeTags(release)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO releases (
			discogs_id, title, year, thumb_url, cover_image_url,
			artists, labels, formats, genres, styles,
			primary_artist, all_artists, primary_genre, primary_style, primary_format,
			vinyl_color, catalog_number, record_label
		)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::jsonb, $9::jsonb, $10::jsonb, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at
	`,
		release.DiscogsID, release.Title, nullInt(release.Year), nullString(release.ThumbURL), nullString(release.CoverImageURL),
		rawOrEmpty(release.Artists), rawOrEmpty(release.Labels), rawOrEmpty(release.Formats), genres, styles,
		nullString(release.PrimaryArtist), nullString(release.AllArtists), nullString(release.PrimaryGenre),
		nullString(release.PrimaryStyle), nullString(release.PrimaryFormat), nullString(release.VinylColor),
		nullString(release.CatalogNumber), nullString(release.RecordLabel),
	).Scan(&release.ID, &release.CreatedAt, &release.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrReleaseExists
		}
		return nil, fmt.Errorf("insert release: %w", err)
	}
	return release, nil
}

// UpdateRelease overwrites every mutable field of a stored release. The local
// identifier, Discogs identifier and creation time are left untouched.
func (s *Store) UpdateRelease(ctx context.Context, release *models.Release) error {
	genres, styles, err := encodeTags(release)
	if err != nil {
		return err
	}

	err = s.db.QueryRowContext(ctx, `
		UPDATE releases
		SET title = $2, year = $3, thumb_url = $4, cover_image_url = $5,
			artists = $6::jsonb, labels = $7::jsonb, formats = $8::jsonb, genres = $9::jsonb, styles = $10::jsonb,
			primary_artist = $11, all_artists = $12, primary_genre = $13, primary_style = $14, primary_format = $15,
			vinyl_color = $16, catalog_number = $17, record_label = $18, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`,
		release.ID, release.Title, nullInt(release.Year), nullString(release.ThumbURL), nullString(release.CoverImageURL),
		rawOrEmpty(release.Artists), rawOrEmpty(release.Labels), rawOrEmpty(release.Formats), genres, styles,
		nullString(release.PrimaryArtist), nullString(release.AllArtists), nullString(release.PrimaryGenre),
		nullString(release.PrimaryStyle), nullString(release.PrimaryFormat), nullString(release.VinylColor),
		nullString(release.CatalogNumber), nullString(release.RecordLabel),
	).Scan(&release.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReleaseNotFound
		}
		return fmt.Errorf("update release: %w", err)
	}
	return nil
}

// ListReleases returns one sorted page of releases and the total count.
func (s *Store) ListReleases(ctx context.Context, q models.ListQuery) ([]models.Release, int, error) {
	column, ok := releaseSortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if q.Order == models.SortAsc {
		order = "ASC"
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM releases`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count releases: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM releases
		ORDER BY %s %s NULLS LAST, id ASC
		LIMIT $1 OFFSET $2
	`, releaseColumns, column, order), q.Limit, q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()

	releases := []models.Release{}
	for rows.Next() {
		release, err := scanRelease(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan release: %w", err)
		}
		releases = append(releases, *release)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate releases: %w", err)
	}

	return releases, total, nil
}

// releaseRow collects scan targets for the release columns.
type releaseRow struct {
	r                                        models.Release
	year                                     sql.NullInt64
	thumb, cover                             sql.NullString
	artists, labels, formats, genres, styles []byte
	primaryArtist, allArtists, genre         sql.NullString
	style, format, color, catno, label       sql.NullString
}

func (row *releaseRow) dest() []any {
	return []any{
		&row.r.ID, &row.r.DiscogsID, &row.r.Title, &row.year, &row.thumb, &row.cover,
		&row.artists, &row.labels, &row.formats, &row.genres, &row.styles,
		&row.primaryArtist, &row.allArtists, &row.genre, &row.style, &row.format,
		&row.color, &row.catno, &row.label, &row.r.CreatedAt, &row.r.UpdatedAt,
	}
}

func (row *releaseRow) release() (*models.Release, error) {
	r := row.r
	r.Year = intPtr(row.year)
	r.ThumbURL = stringPtr(row.thumb)
	r.CoverImageURL = stringPtr(row.cover)
	r.Artists = row.artists
	r.Labels = row.labels
	r.Formats = row.formats
	r.PrimaryArtist = stringPtr(row.primaryArtist)
	r.AllArtists = stringPtr(row.allArtists)
	r.PrimaryGenre = stringPtr(row.genre)
	r.PrimaryStyle = stringPtr(row.style)
	r.PrimaryFormat = stringPtr(row.format)
	r.VinylColor = stringPtr(row.color)
	r.CatalogNumber = stringPtr(row.catno)
	r.RecordLabel = stringPtr(row.label)

	if len(row.genres) > 0 {
		if err := json.Unmarshal(row.genres, &r.Genres); err != nil {
			return nil, fmt.Errorf("decode genres: %w", err)
		}
	}
	if len(row.styles) > 0 {
		if err := json.Unmarshal(row.styles, &r.Styles); err != nil {
			return nil, fmt.Errorf("decode styles: %w", err)
		}
	}
	return &r, nil
}

func scanRelease(s scanner) (*models.Release, error) {
	var row releaseRow
	if err := s.Scan(row.dest()...); err != nil {
		return nil, err
	}
	return row.release()
}

func encodeTags(release *models.Release) (string, string, error) {
	genres, err := json.Marshal(orEmpty(release.Genres))
	if err != nil {
		return "", "", fmt.Errorf("prepare genres payload: %w", err)
	}
	styles, err := json.Marshal(orEmpty(release.Styles))
	if err != nil {
		return "", "", fmt.Errorf("prepare styles payload: %w", err)
	}
	return string(genres), string(styles), nil
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func rawOrEmpty(raw []byte) string {
	if len(raw) == 0 {
		return "[]"
	}
	return string(raw)
}
