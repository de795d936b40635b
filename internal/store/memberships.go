package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"

	"vinylsync/internal/models"
)

// listTable describes the table backing one list kind.
type listTable struct {
	name       string
	collection bool
	sort       map[models.SortField]string
}

var sharedSortColumns = map[models.SortField]string{
	models.SortDateAdded:     "m.date_added",
	models.SortTitle:         "m.title",
	models.SortPrimaryArtist: "m.primary_artist",
	models.SortYear:          "m.year",
	models.SortPrimaryGenre:  "m.primary_genre",
	models.SortPrimaryFormat: "m.primary_format",
}

// likeEscaper makes user search terms match literally inside an ILIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

var listTables = map[models.ListKind]listTable{
	models.ListCollection: {name: "user_collections", collection: true, sort: withRating(sharedSortColumns)},
	models.ListWantlist:   {name: "user_wantlists", sort: sharedSortColumns},
	models.ListSuggestion: {name: "user_suggestions", sort: sharedSortColumns},
}

func withRating(base map[models.SortField]string) map[models.SortField]string {
	out := make(map[models.SortField]string, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[models.SortRating] = "m.rating"
	return out
}

func tableFor(kind models.ListKind) (listTable, error) {
	t, ok := listTables[kind]
	if !ok {
		return listTable{}, fmt.Errorf("%w: %q", ErrUnknownList, kind)
	}
	return t, nil
}

func (t listTable) columns() []string {
	cols := []string{"id", "user_id", "release_id"}
	if t.collection {
		cols = append(cols, "discogs_instance_id", "folder_id", "rating")
	}
	return append(cols,
		"notes", "title", "primary_artist", "all_artists", "year",
		"primary_genre", "primary_format", "vinyl_color",
		"date_added", "created_at", "updated_at",
	)
}

func (t listTable) selectColumns(alias string) string {
	cols := t.columns()
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// membershipRow collects scan targets for one membership row.
type membershipRow struct {
	m          models.Membership
	instanceID sql.NullInt64
	notes      sql.NullString
	title      sql.NullString
	artist     sql.NullString
	artists    sql.NullString
	year       sql.NullInt64
	genre      sql.NullString
	format     sql.NullString
	color      sql.NullString
}

func (t listTable) dest(r *membershipRow) []any {
	dest := []any{&r.m.ID, &r.m.UserID, &r.m.ReleaseID}
	if t.collection {
		dest = append(dest, &r.instanceID, &r.m.FolderID, &r.m.Rating)
	}
	return append(dest,
		&r.notes, &r.title, &r.artist, &r.artists, &r.year,
		&r.genre, &r.format, &r.color,
		&r.m.DateAdded, &r.m.CreatedAt, &r.m.UpdatedAt,
	)
}

func (r *membershipRow) membership() models.Membership {
	m := r.m
	if r.instanceID.Valid {
		id := r.instanceID.Int64
		m.DiscogsInstanceID = &id
	}
	m.Notes = r.notes.String
	m.Title = stringPtr(r.title)
	m.PrimaryArtist = stringPtr(r.artist)
	m.AllArtists = stringPtr(r.artists)
	m.Year = intPtr(r.year)
	m.PrimaryGenre = stringPtr(r.genre)
	m.PrimaryFormat = stringPtr(r.format)
	m.VinylColor = stringPtr(r.color)
	return m
}

// FindMembership returns the row for (userID, releaseID) in the given list.
func (s *Store) FindMembership(ctx context.Context, kind models.ListKind, userID string, releaseID int64) (*models.Membership, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	var row membershipRow
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM %s m
		WHERE m.user_id = $1 AND m.release_id = $2
	`, t.selectColumns("m"), t.name), userID, releaseID).Scan(t.dest(&row)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMembershipNotFound
		}
		return nil, fmt.Errorf("select %s item: %w", kind, err)
	}

	m := row.membership()
	return &m, nil
}

// InsertMembership adds a release to a user's list. A duplicate (user, release)
// pair yields ErrAlreadyInList.
func (s *Store) InsertMembership(ctx context.Context, kind models.ListKind, m *models.Membership) (*models.Membership, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	cols := []string{"user_id", "release_id"}
	args := []any{m.UserID, m.ReleaseID}
	if t.collection {
		cols = append(cols, "discogs_instance_id", "folder_id", "rating")
		args = append(args, m.DiscogsInstanceID, m.FolderID, m.Rating)
	}
	cols = append(cols, "notes", "title", "primary_artist", "all_artists", "year",
		"primary_genre", "primary_format", "vinyl_color", "date_added")
	args = append(args, notesValue(m.Notes), nullString(m.Title), nullString(m.PrimaryArtist),
		nullString(m.AllArtists), nullInt(m.Year), nullString(m.PrimaryGenre),
		nullString(m.PrimaryFormat), nullString(m.VinylColor), m.DateAdded)

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (%s)
		RETURNING id, created_at, updated_at
	`, t.name, strings.Join(cols, ", "), strings.Join(placeholders, ", ")), args...).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyInList
		}
		return nil, fmt.Errorf("insert %s item: %w", kind, err)
	}

	return m, nil
}

// UpdateMembership refreshes the list-specific and denormalized fields of an
// existing row. The date added is never changed.
func (s *Store) UpdateMembership(ctx context.Context, kind models.ListKind, m *models.Membership) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}

	sets := []string{"notes", "title", "primary_artist", "all_artists", "year",
		"primary_genre", "primary_format", "vinyl_color"}
	args := []any{notesValue(m.Notes), nullString(m.Title), nullString(m.PrimaryArtist),
		nullString(m.AllArtists), nullInt(m.Year), nullString(m.PrimaryGenre),
		nullString(m.PrimaryFormat), nullString(m.VinylColor)}
	if t.collection {
		sets = append(sets, "discogs_instance_id", "folder_id", "rating")
		args = append(args, m.DiscogsInstanceID, m.FolderID, m.Rating)
	}

	assignments := make([]string, len(sets))
	for i, c := range sets {
		assignments[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	args = append(args, m.ID)

	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE %s
		SET %s, updated_at = NOW()
		WHERE id = $%d
		RETURNING updated_at
	`, t.name, strings.Join(assignments, ", "), len(args)), args...).Scan(&m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMembershipNotFound
		}
		return fmt.Errorf("update %s item: %w", kind, err)
	}
	return nil
}

// DeleteMembership removes a release from a user's list.
func (s *Store) DeleteMembership(ctx context.Context, kind models.ListKind, userID string, releaseID int64) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = $1 AND release_id = $2
	`, t.name), userID, releaseID)
	if err != nil {
		return fmt.Errorf("delete %s item: %w", kind, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s item rows affected: %w", kind, err)
	}
	if affected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// ListMemberships returns one sorted page of a user's list joined with releases,
// plus the total number of rows matching the query.
func (s *Store) ListMemberships(ctx context.Context, kind models.ListKind, userID string, q models.ListQuery) ([]models.Membership, int, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, 0, err
	}

	column, ok := t.sort[q.SortBy]
	if !ok {
		column = "m.date_added"
	}
	order := "DESC"
	if q.Order == models.SortAsc {
		order = "ASC"
	}

	where := "m.user_id = $1"
	args := []any{userID}
	if term := strings.TrimSpace(q.Search); term != "" {
		where += ` AND (m.title ILIKE $2 ESCAPE '\' OR m.all_artists ILIKE $2 ESCAPE '\')`
		args = append(args, "%"+likeEscaper.Replace(term)+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM %s m
		WHERE %s
	`, t.name, where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", kind, err)
	}

	limitPos := len(args) + 1
	args = append(args, q.Limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, %s
		FROM %s m
		JOIN releases r ON r.id = m.release_id
		WHERE %s
		ORDER BY %s %s NULLS LAST, m.id ASC
		LIMIT $%d OFFSET $%d
	`, t.selectColumns("m"), prefixed("r", releaseColumns), t.name, where, column, order, limitPos, limitPos+1), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	items := []models.Membership{}
	for rows.Next() {
		var row membershipRow
		var rel releaseRow
		dest := append(t.dest(&row), rel.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("scan %s item: %w", kind, err)
		}
		release, err := rel.release()
		if err != nil {
			return nil, 0, err
		}
		m := row.membership()
		m.Release = release
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate %s: %w", kind, err)
	}

	return items, total, nil
}

// Stats summarizes a user's list. Rating figures are only computed for the
// collection; the average covers rated items and is rounded to one decimal.
func (s *Store) Stats(ctx context.Context, kind models.ListKind, userID string) (models.ListStats, error) {
	t, err := tableFor(kind)
	if err != nil {
		return models.ListStats{}, err
	}

	var stats models.ListStats
	if !t.collection {
		err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
			SELECT COUNT(*)
			FROM %s
			WHERE user_id = $1
		`, t.name), userID).Scan(&stats.TotalItems)
		if err != nil {
			return models.ListStats{}, fmt.Errorf("%s stats: %w", kind, err)
		}
		return stats, nil
	}

	var avg float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE rating > 0),
			COALESCE(AVG(rating) FILTER (WHERE rating > 0), 0)
		FROM user_collections
		WHERE user_id = $1
	`, userID).Scan(&stats.TotalItems, &stats.RatedItems, &avg)
	if err != nil {
		return models.ListStats{}, fmt.Errorf("collection stats: %w", err)
	}
	stats.AverageRating = math.Round(avg*10) / 10
	return stats, nil
}

func notesValue(notes string) sql.NullString {
	if notes == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: notes, Valid: true}
}

func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
