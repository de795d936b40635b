package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vinylsync/internal/app/collections"
	"vinylsync/internal/app/releases"
	"vinylsync/internal/app/remote"
	"vinylsync/internal/discogs"
	"vinylsync/internal/http/middleware"
	"vinylsync/internal/logging"
	"vinylsync/internal/models"
	"vinylsync/internal/scheduler"
	"vinylsync/internal/store"
	"vinylsync/internal/syncer"
)

// CollectionService coordinates list browsing and local membership changes.
type CollectionService interface {
	List(ctx context.Context, kind models.ListKind, userID string, params collections.ListParams) (*models.Page[models.Membership], error)
	Add(ctx context.Context, kind models.ListKind, userID string, item collections.AddItem) (*models.Membership, error)
	Remove(ctx context.Context, kind models.ListKind, userID string, releaseID int64) error
	Stats(ctx context.Context, userID string) (*collections.UserStats, error)
	SortOptions(kind models.ListKind) []models.SortOption
}

// ReleaseService exposes the synchronized catalog.
type ReleaseService interface {
	List(ctx context.Context, params releases.ListParams) (*models.Page[models.Release], error)
	GetByDiscogsID(ctx context.Context, discogsID int64) (*models.Release, error)
}

// SuggestionService adds releases to the remote suggestions folder.
type SuggestionService interface {
	Add(ctx context.Context, userID string, discogsID int64) (*models.Membership, error)
}

// RemoteService covers Discogs passthrough reads and manual synchronization.
type RemoteService interface {
	CollectionPage(ctx context.Context, p discogs.PageParams) (*discogs.Page, error)
	WantlistPage(ctx context.Context, page, perPage int) (*discogs.Page, error)
	Search(ctx context.Context, query string, page, perPage int) (*discogs.SearchResults, error)
	TestConnection(ctx context.Context) remote.ConnectionStatus
	Sync(ctx context.Context, kind models.ListKind, userID string) (*syncer.Result, error)
	SyncAll(ctx context.Context) (*scheduler.Report, error)
	Status(ctx context.Context, userID string) (*remote.SyncStatus, error)
}

// HealthChecker reports whether the backing database answers.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Options tune the HTTP surface.
type Options struct {
	APIKey         string
	AllowedOrigins []string
	// RateLimit is the number of API requests per minute allowed per client IP.
	RateLimit int
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	collections CollectionService
	releases    ReleaseService
	suggestions SuggestionService
	remote      RemoteService
	health      HealthChecker
	logger      zerolog.Logger
	validate    *validator.Validate
}

// New configures a Server with the given services.
func New(
	collections CollectionService,
	releases ReleaseService,
	suggestions SuggestionService,
	remote RemoteService,
	health HealthChecker,
	logger zerolog.Logger,
) *Server {
	return &Server{
		collections: collections,
		releases:    releases,
		suggestions: suggestions,
		remote:      remote,
		health:      health,
		logger:      logging.Component(logger, "httpapi"),
		validate:    newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Routes builds the HTTP handler tree.
func (s *Server) Routes(opts Options) (http.Handler, error) {
	apiKey, err := middleware.APIKey(opts.APIKey)
	if err != nil {
		return nil, fmt.Errorf("api key guard: %w", err)
	}
	rateLimit := opts.RateLimit
	if rateLimit <= 0 {
		rateLimit = 100
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogging(s.logger))
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimit, time.Minute))
		r.Use(apiKey)

		r.Route("/collection/{userId}", func(r chi.Router) {
			r.Use(withUser)
			r.Get("/", s.handleList(models.ListCollection))
			r.Get("/wantlist", s.handleList(models.ListWantlist))
			r.Get("/stats", s.handleStats)
			r.Get("/sort-options", s.handleSortOptions)
			r.Post("/collection", s.handleAdd(models.ListCollection))
			r.Post("/wantlist", s.handleAdd(models.ListWantlist))
			r.Delete("/collection/{releaseId}", s.handleRemove(models.ListCollection))
			r.Delete("/wantlist/{releaseId}", s.handleRemove(models.ListWantlist))
		})

		r.Route("/releases", func(r chi.Router) {
			r.Get("/", s.handleReleases)
			r.Get("/{discogsId}", s.handleRelease)
		})

		r.Route("/discogs", func(r chi.Router) {
			r.Get("/collection", s.handleRemoteCollection)
			r.Get("/wantlist", s.handleRemoteWantlist)
			r.Get("/search", s.handleSearch)
			r.Get("/test-connection", s.handleTestConnection)

			r.Post("/sync/collection", s.handleSync(models.ListCollection, "Collection sync completed"))
			r.Post("/sync/wantlist", s.handleSync(models.ListWantlist, "Wantlist sync completed"))
			r.Post("/sync/suggestions", s.handleSync(models.ListSuggestion, "Suggestions sync completed"))
			r.Post("/sync/all", s.handleSyncAll)
			r.Get("/sync/status", s.handleSyncStatus)

			r.Route("/suggestions/{userId}", func(r chi.Router) {
				r.Use(withUser)
				r.Get("/", s.handleList(models.ListSuggestion))
				r.Post("/", s.handleAddSuggestion)
				r.Delete("/{releaseId}", s.handleRemove(models.ListSuggestion))
			})
		})
	})

	return r, nil
}

func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithUserID(r.Context(), chi.URLParam(r, "userId"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// writeError maps domain errors onto status codes. Unexpected errors are
// logged and reported as 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *discogs.APIError
	switch {
	case errors.Is(err, store.ErrReleaseNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "release not found"})
	case errors.Is(err, store.ErrMembershipNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "release not found in list"})
	case errors.Is(err, store.ErrAlreadyInList):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "release already in list"})
	case errors.Is(err, scheduler.ErrSyncInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "sync already in progress"})
	case errors.Is(err, discogs.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Discogs API token not configured"})
	case errors.Is(err, discogs.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Discogs API unavailable"})
	case errors.As(err, &apiErr):
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: apiErr.Error()})
	default:
		logging.WithContext(r.Context(), s.logger).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: strings.Join(msgs, "; ")})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// decodeBody decodes and validates a JSON request body into dst.
func (s *Server) decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON payload")
	}
	return s.validate.Struct(dst)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter", key)
	}
	return v, nil
}

func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s parameter", key)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}
