package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"vinylsync/internal/discogs"
	"vinylsync/internal/logging"
	"vinylsync/internal/models"
	"vinylsync/internal/scheduler"
	"vinylsync/internal/syncer"
)

type remotePageQuery struct {
	Page      int    `json:"page" validate:"min=0"`
	PerPage   int    `json:"per_page" validate:"min=0,max=100"`
	Sort      string `json:"sort" validate:"omitempty,oneof=label artist title catno format rating added year"`
	SortOrder string `json:"sort_order" validate:"omitempty,oneof=asc desc"`
	FolderID  *int64 `json:"folder_id" validate:"omitempty,min=0"`
}

func (s *Server) parseRemotePage(r *http.Request) (remotePageQuery, error) {
	var (
		q   remotePageQuery
		err error
	)
	if q.Page, err = queryInt(r, "page"); err != nil {
		return q, err
	}
	if q.PerPage, err = queryInt(r, "per_page"); err != nil {
		return q, err
	}
	values := r.URL.Query()
	q.Sort = values.Get("sort")
	q.SortOrder = strings.ToLower(values.Get("sort_order"))
	if raw := values.Get("folder_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return q, errors.New("invalid folder_id parameter")
		}
		q.FolderID = &id
	}
	return q, s.validate.Struct(q)
}

func (s *Server) handleRemoteCollection(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseRemotePage(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	page, err := s.remote.CollectionPage(r.Context(), discogs.PageParams{
		Page:      q.Page,
		PerPage:   q.PerPage,
		FolderID:  q.FolderID,
		Sort:      q.Sort,
		SortOrder: q.SortOrder,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleRemoteWantlist(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseRemotePage(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	page, err := s.remote.WantlistPage(r.Context(), q.Page, q.PerPage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query parameter is required"})
		return
	}
	q, err := s.parseRemotePage(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	results, err := s.remote.Search(r.Context(), query, q.Page, q.PerPage)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.remote.TestConnection(r.Context()))
}

type syncResponse struct {
	Message string `json:"message"`
	*syncer.Result
}

func (s *Server) handleSync(kind models.ListKind, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("userId")
		logging.WithContext(r.Context(), s.logger).Info().
			Str("list", string(kind)).
			Str("user_id", userID).
			Msg("manual sync requested")

		result, err := s.remote.Sync(r.Context(), kind, userID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, syncResponse{Message: message, Result: result})
	}
}

type syncAllResponse struct {
	Message string `json:"message"`
	*scheduler.Report
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	report, err := s.remote.SyncAll(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, syncAllResponse{Message: "Full sync completed", Report: report})
	case report == nil:
		s.writeError(w, r, err)
	default:
		// The run happened; keep its trigger, duration and partial results.
		writeJSON(w, syncFailureStatus(err), syncAllResponse{Message: "Full sync failed", Report: report})
	}
}

func syncFailureStatus(err error) int {
	if errors.Is(err, discogs.ErrUnavailable) || errors.Is(err, discogs.ErrNotConfigured) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.remote.Status(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type addSuggestionRequest struct {
	ReleaseID int64 `json:"releaseId" validate:"required,gt=0"`
}

func (s *Server) handleAddSuggestion(w http.ResponseWriter, r *http.Request) {
	var req addSuggestionRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.badRequest(w, err)
		return
	}

	membership, err := s.suggestions.Add(r.Context(), chi.URLParam(r, "userId"), req.ReleaseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, membership)
}
