package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"vinylsync/internal/app/collections"
	"vinylsync/internal/app/releases"
	"vinylsync/internal/app/remote"
	"vinylsync/internal/discogs"
	"vinylsync/internal/models"
	"vinylsync/internal/scheduler"
	"vinylsync/internal/store"
	"vinylsync/internal/syncer"
)

const testKey = "test-key"

type stubCollections struct {
	listPage   *models.Page[models.Membership]
	listErr    error
	lastKind   models.ListKind
	lastUser   string
	lastParams collections.ListParams

	added   collections.AddItem
	addErr  error
	removed int64
	remErr  error
}

func (s *stubCollections) List(_ context.Context, kind models.ListKind, userID string, params collections.ListParams) (*models.Page[models.Membership], error) {
	s.lastKind, s.lastUser, s.lastParams = kind, userID, params
	if s.listErr != nil {
		return nil, s.listErr
	}
	if s.listPage != nil {
		return s.listPage, nil
	}
	return &models.Page[models.Membership]{Data: []models.Membership{}, Limit: 50}, nil
}

func (s *stubCollections) Add(_ context.Context, kind models.ListKind, userID string, item collections.AddItem) (*models.Membership, error) {
	s.lastKind, s.lastUser, s.added = kind, userID, item
	if s.addErr != nil {
		return nil, s.addErr
	}
	return &models.Membership{ID: 1, UserID: userID, ReleaseID: item.ReleaseID, Rating: item.Rating}, nil
}

func (s *stubCollections) Remove(_ context.Context, kind models.ListKind, userID string, releaseID int64) error {
	s.lastKind, s.lastUser, s.removed = kind, userID, releaseID
	return s.remErr
}

func (s *stubCollections) Stats(_ context.Context, userID string) (*collections.UserStats, error) {
	s.lastUser = userID
	return &collections.UserStats{
		Collection: models.ListStats{TotalItems: 3, RatedItems: 2, AverageRating: 4.5},
		Summary:    collections.Summary{TotalItems: 3, CollectionItems: 3},
	}, nil
}

func (s *stubCollections) SortOptions(kind models.ListKind) []models.SortOption {
	return models.SortOptions(kind)
}

type stubReleases struct {
	release *models.Release
	err     error
	lastID  int64
}

func (s *stubReleases) List(context.Context, releases.ListParams) (*models.Page[models.Release], error) {
	return &models.Page[models.Release]{Data: []models.Release{}}, nil
}

func (s *stubReleases) GetByDiscogsID(_ context.Context, discogsID int64) (*models.Release, error) {
	s.lastID = discogsID
	if s.err != nil {
		return nil, s.err
	}
	return s.release, nil
}

type stubSuggestions struct {
	lastUser string
	lastID   int64
	err      error
}

func (s *stubSuggestions) Add(_ context.Context, userID string, discogsID int64) (*models.Membership, error) {
	s.lastUser, s.lastID = userID, discogsID
	if s.err != nil {
		return nil, s.err
	}
	return &models.Membership{ID: 9, UserID: userID, ReleaseID: 5}, nil
}

type stubRemote struct {
	searchErr  error
	lastQuery  string
	lastPage   discogs.PageParams
	syncResult *syncer.Result
	syncErr    error
	syncKind   models.ListKind
	syncUser   string
	syncAllErr error
	syncReport *scheduler.Report
}

func (s *stubRemote) CollectionPage(_ context.Context, p discogs.PageParams) (*discogs.Page, error) {
	s.lastPage = p
	return &discogs.Page{Items: []discogs.Release{}}, nil
}

func (s *stubRemote) WantlistPage(_ context.Context, page, perPage int) (*discogs.Page, error) {
	s.lastPage = discogs.PageParams{Page: page, PerPage: perPage}
	return &discogs.Page{Items: []discogs.Release{}}, nil
}

func (s *stubRemote) Search(_ context.Context, query string, page, perPage int) (*discogs.SearchResults, error) {
	s.lastQuery = query
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return &discogs.SearchResults{Results: []discogs.SearchResult{{ID: 1, Title: "Kind of Blue"}}}, nil
}

func (s *stubRemote) TestConnection(context.Context) remote.ConnectionStatus {
	return remote.ConnectionStatus{Status: "success", Message: "Discogs API connection successful", TotalItems: 12}
}

func (s *stubRemote) Sync(_ context.Context, kind models.ListKind, userID string) (*syncer.Result, error) {
	s.syncKind, s.syncUser = kind, userID
	if s.syncErr != nil {
		return nil, s.syncErr
	}
	return s.syncResult, nil
}

func (s *stubRemote) SyncAll(context.Context) (*scheduler.Report, error) {
	if s.syncReport != nil || s.syncAllErr != nil {
		return s.syncReport, s.syncAllErr
	}
	return &scheduler.Report{Success: true, Trigger: scheduler.TriggerManual}, nil
}

func (s *stubRemote) Status(_ context.Context, userID string) (*remote.SyncStatus, error) {
	return &remote.SyncStatus{UserID: userID}, nil
}

type stubHealth struct{ err error }

func (s stubHealth) Ping(context.Context) error { return s.err }

type fixture struct {
	collections *stubCollections
	releases    *stubReleases
	suggestions *stubSuggestions
	remote      *stubRemote
	health      stubHealth
}

func newFixture() *fixture {
	return &fixture{
		collections: &stubCollections{},
		releases:    &stubReleases{},
		suggestions: &stubSuggestions{},
		remote:      &stubRemote{},
	}
}

func (f *fixture) handler(t *testing.T) http.Handler {
	t.Helper()
	srv := New(f.collections, f.releases, f.suggestions, f.remote, f.health, zerolog.Nop())
	h, err := srv.Routes(Options{APIKey: testKey, RateLimit: 1000})
	if err != nil {
		t.Fatalf("Routes: %v", err)
	}
	return h
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture()
	rec := httptest.NewRecorder()
	f.handler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	f.health = stubHealth{err: errors.New("connection refused")}
	rec = httptest.NewRecorder()
	f.handler(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestAPIRequiresKey(t *testing.T) {
	h := newFixture().handler(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/releases", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/releases", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer key, got %d", rec.Code)
	}
}

func TestListCollectionPassesQuery(t *testing.T) {
	f := newFixture()
	f.collections.listPage = &models.Page[models.Membership]{
		Data:      []models.Membership{{ID: 4, ReleaseID: 2}},
		Total:     1,
		Limit:     10,
		SortBy:    models.SortTitle,
		SortOrder: models.SortAsc,
	}

	rec := serve(t, f.handler(t), http.MethodGet, "/api/v1/collection/digger?limit=10&offset=5&sort_by=title&sort_order=asc&search=blue", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	want := collections.ListParams{Limit: 10, Offset: 5, SortBy: "title", SortOrder: "asc", Search: "blue"}
	if f.collections.lastParams != want || f.collections.lastUser != "digger" || f.collections.lastKind != models.ListCollection {
		t.Fatalf("unexpected call %+v user=%s kind=%s", f.collections.lastParams, f.collections.lastUser, f.collections.lastKind)
	}

	var body struct {
		Data    []models.Membership `json:"data"`
		Total   int                 `json:"total"`
		HasMore bool                `json:"hasMore"`
		SortBy  string              `json:"sortBy"`
	}
	decode(t, rec, &body)
	if len(body.Data) != 1 || body.Total != 1 || body.SortBy != "title" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestListRejectsBadPaging(t *testing.T) {
	h := newFixture().handler(t)

	for _, path := range []string{
		"/api/v1/collection/digger/wantlist?limit=abc",
		"/api/v1/collection/digger?offset=-1",
		"/api/v1/collection/digger?limit=-5",
	} {
		if rec := serve(t, h, http.MethodGet, path, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestAddToCollection(t *testing.T) {
	f := newFixture()
	h := f.handler(t)

	rec := serve(t, h, http.MethodPost, "/api/v1/collection/digger/collection", `{"releaseId":12,"rating":4,"notes":"first press"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	want := collections.AddItem{ReleaseID: 12, Rating: 4, Notes: "first press"}
	if f.collections.added != want || f.collections.lastKind != models.ListCollection {
		t.Fatalf("unexpected add %+v kind=%s", f.collections.added, f.collections.lastKind)
	}

	f.collections.addErr = fmt.Errorf("add: %w", store.ErrAlreadyInList)
	if rec := serve(t, h, http.MethodPost, "/api/v1/collection/digger/wantlist", `{"releaseId":12}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	f.collections.addErr = store.ErrReleaseNotFound
	if rec := serve(t, h, http.MethodPost, "/api/v1/collection/digger/wantlist", `{"releaseId":99}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAddValidatesBody(t *testing.T) {
	h := newFixture().handler(t)

	tests := []struct {
		body string
		want string
	}{
		{body: `{"releaseId":1,"rating":7}`, want: "rating"},
		{body: `{"rating":3}`, want: "releaseId"},
		{body: `{not json`, want: "invalid JSON payload"},
	}
	for _, tt := range tests {
		rec := serve(t, h, http.MethodPost, "/api/v1/collection/digger/collection", tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.body, rec.Code)
			continue
		}
		if !strings.Contains(rec.Body.String(), tt.want) {
			t.Errorf("%s: expected %q in %s", tt.body, tt.want, rec.Body.String())
		}
	}
}

func TestRemoveFromWantlist(t *testing.T) {
	f := newFixture()
	h := f.handler(t)

	rec := serve(t, h, http.MethodDelete, "/api/v1/collection/digger/wantlist/33", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.collections.removed != 33 || f.collections.lastKind != models.ListWantlist {
		t.Fatalf("unexpected remove %d kind=%s", f.collections.removed, f.collections.lastKind)
	}

	f.collections.remErr = store.ErrMembershipNotFound
	if rec := serve(t, h, http.MethodDelete, "/api/v1/collection/digger/collection/33", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodDelete, "/api/v1/collection/digger/collection/x", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStatsAndSortOptions(t *testing.T) {
	h := newFixture().handler(t)

	rec := serve(t, h, http.MethodGet, "/api/v1/collection/digger/stats", "")
	var stats collections.UserStats
	decode(t, rec, &stats)
	if stats.Collection.AverageRating != 4.5 || stats.Summary.TotalItems != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	rec = serve(t, h, http.MethodGet, "/api/v1/collection/digger/sort-options", "")
	var opts struct {
		Collection []models.SortOption `json:"collection"`
		Wantlist   []models.SortOption `json:"wantlist"`
	}
	decode(t, rec, &opts)
	if len(opts.Collection) != len(opts.Wantlist)+1 {
		t.Fatalf("expected collection to offer one more sort option, got %d vs %d", len(opts.Collection), len(opts.Wantlist))
	}
}

func TestReleaseByDiscogsID(t *testing.T) {
	f := newFixture()
	f.releases.release = &models.Release{ID: 1, DiscogsID: 249504, Title: "Blue Train"}
	h := f.handler(t)

	rec := serve(t, h, http.MethodGet, "/api/v1/releases/249504", "")
	if rec.Code != http.StatusOK || f.releases.lastID != 249504 {
		t.Fatalf("expected 200 for 249504, got %d (id %d)", rec.Code, f.releases.lastID)
	}

	f.releases.err = store.ErrReleaseNotFound
	if rec := serve(t, h, http.MethodGet, "/api/v1/releases/1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	f := newFixture()
	h := f.handler(t)

	if rec := serve(t, h, http.MethodGet, "/api/v1/discogs/search", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without query, got %d", rec.Code)
	}

	rec := serve(t, h, http.MethodGet, "/api/v1/discogs/search?query=miles&page=2&per_page=10", "")
	if rec.Code != http.StatusOK || f.remote.lastQuery != "miles" {
		t.Fatalf("unexpected search %d query=%q", rec.Code, f.remote.lastQuery)
	}

	f.remote.searchErr = fmt.Errorf("search: %w", discogs.ErrNotConfigured)
	if rec := serve(t, h, http.MethodGet, "/api/v1/discogs/search?query=miles", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	f.remote.searchErr = fmt.Errorf("search: %w", &discogs.APIError{StatusCode: http.StatusTooManyRequests})
	if rec := serve(t, h, http.MethodGet, "/api/v1/discogs/search?query=miles", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestRemoteCollectionPage(t *testing.T) {
	f := newFixture()
	h := f.handler(t)

	rec := serve(t, h, http.MethodGet, "/api/v1/discogs/collection?page=3&per_page=25&sort=year&sort_order=ASC&folder_id=0", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	p := f.remote.lastPage
	if p.Page != 3 || p.PerPage != 25 || p.Sort != "year" || p.SortOrder != "asc" || p.FolderID == nil || *p.FolderID != 0 {
		t.Fatalf("unexpected params %+v", p)
	}

	if rec := serve(t, h, http.MethodGet, "/api/v1/discogs/collection?sort=colour", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", rec.Code)
	}
}

func TestManualSync(t *testing.T) {
	f := newFixture()
	f.remote.syncResult = &syncer.Result{Synced: 2, Errors: 1, Total: 3}
	h := f.handler(t)

	rec := serve(t, h, http.MethodPost, "/api/v1/discogs/sync/wantlist", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Message string `json:"message"`
		Synced  int    `json:"synced"`
		Errors  int    `json:"errors"`
		Total   int    `json:"total"`
	}
	decode(t, rec, &body)
	if body.Message != "Wantlist sync completed" || body.Synced != 2 || body.Errors != 1 || body.Total != 3 {
		t.Fatalf("unexpected body %+v", body)
	}
	if f.remote.syncKind != models.ListWantlist || f.remote.syncUser != "" {
		t.Fatalf("unexpected sync call kind=%s user=%q", f.remote.syncKind, f.remote.syncUser)
	}

	f.remote.syncAllErr = scheduler.ErrSyncInProgress
	if rec := serve(t, h, http.MethodPost, "/api/v1/discogs/sync/all", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while a run is active, got %d", rec.Code)
	}
}

func TestManualListSyncConflictsWithRunningPass(t *testing.T) {
	f := newFixture()
	f.remote.syncErr = fmt.Errorf("reconcile collection: %w", syncer.ErrSyncInProgress)

	rec := serve(t, f.handler(t), http.MethodPost, "/api/v1/discogs/sync/collection?userId=digger", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.remote.syncKind != models.ListCollection || f.remote.syncUser != "digger" {
		t.Fatalf("unexpected sync call kind=%s user=%q", f.remote.syncKind, f.remote.syncUser)
	}
}

func TestSyncAllFailureKeepsReport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{name: "remote unavailable", err: discogs.ErrUnavailable, code: http.StatusServiceUnavailable},
		{name: "remote rejected", err: &discogs.APIError{StatusCode: http.StatusUnauthorized}, code: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.remote.syncAllErr = fmt.Errorf("fetch wantlist: %w", tt.err)
			f.remote.syncReport = &scheduler.Report{
				Trigger:         scheduler.TriggerManual,
				DurationMinutes: 0.25,
				Collection:      &syncer.Result{Synced: 4, Total: 4},
				Error:           f.remote.syncAllErr.Error(),
			}

			rec := serve(t, f.handler(t), http.MethodPost, "/api/v1/discogs/sync/all", "")
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			var body struct {
				Message    string         `json:"message"`
				Success    bool           `json:"success"`
				Trigger    string         `json:"trigger"`
				Duration   float64        `json:"duration"`
				Collection *syncer.Result `json:"collection"`
				Error      string         `json:"error"`
			}
			decode(t, rec, &body)
			if body.Success || body.Trigger != scheduler.TriggerManual || body.Duration != 0.25 || body.Error == "" {
				t.Fatalf("unexpected body %+v", body)
			}
			if body.Collection == nil || body.Collection.Synced != 4 {
				t.Fatalf("expected partial collection result, got %+v", body.Collection)
			}
		})
	}
}

func TestSyncAllReport(t *testing.T) {
	h := newFixture().handler(t)

	rec := serve(t, h, http.MethodPost, "/api/v1/discogs/sync/all", "")
	var body struct {
		Message string `json:"message"`
		Success bool   `json:"success"`
		Trigger string `json:"trigger"`
	}
	decode(t, rec, &body)
	if body.Message != "Full sync completed" || !body.Success || body.Trigger != scheduler.TriggerManual {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestSuggestions(t *testing.T) {
	f := newFixture()
	h := f.handler(t)

	rec := serve(t, h, http.MethodPost, "/api/v1/discogs/suggestions/digger", `{"releaseId":4471}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.suggestions.lastUser != "digger" || f.suggestions.lastID != 4471 {
		t.Fatalf("unexpected add user=%s id=%d", f.suggestions.lastUser, f.suggestions.lastID)
	}

	f.suggestions.err = store.ErrAlreadyInList
	if rec := serve(t, h, http.MethodPost, "/api/v1/discogs/suggestions/digger", `{"releaseId":4471}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	serve(t, h, http.MethodGet, "/api/v1/discogs/suggestions/digger?sort_by=artist", "")
	if f.collections.lastKind != models.ListSuggestion || f.collections.lastParams.SortBy != "artist" {
		t.Fatalf("unexpected list call kind=%s params=%+v", f.collections.lastKind, f.collections.lastParams)
	}

	rec = serve(t, h, http.MethodDelete, "/api/v1/discogs/suggestions/digger/8", "")
	if rec.Code != http.StatusOK || f.collections.removed != 8 || f.collections.lastKind != models.ListSuggestion {
		t.Fatalf("unexpected remove %d id=%d kind=%s", rec.Code, f.collections.removed, f.collections.lastKind)
	}
}

func TestTestConnection(t *testing.T) {
	rec := serve(t, newFixture().handler(t), http.MethodGet, "/api/v1/discogs/test-connection", "")
	var status remote.ConnectionStatus
	decode(t, rec, &status)
	if status.Status != "success" || status.TotalItems != 12 {
		t.Fatalf("unexpected status %+v", status)
	}
}
