package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vinylsync/internal/app/collections"
	"vinylsync/internal/models"
)

type listQuery struct {
	Limit     int    `json:"limit" validate:"omitempty,min=1"`
	Offset    int    `json:"offset" validate:"min=0"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
	Search    string `json:"search" validate:"max=200"`
}

func (s *Server) parseListQuery(r *http.Request) (listQuery, error) {
	var (
		q   listQuery
		err error
	)
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = queryInt(r, "offset"); err != nil {
		return q, err
	}
	values := r.URL.Query()
	q.SortBy = values.Get("sort_by")
	q.SortOrder = values.Get("sort_order")
	q.Search = values.Get("search")
	return q, s.validate.Struct(q)
}

func (s *Server) handleList(kind models.ListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := s.parseListQuery(r)
		if err != nil {
			s.badRequest(w, err)
			return
		}

		page, err := s.collections.List(r.Context(), kind, chi.URLParam(r, "userId"), collections.ListParams{
			Limit:     q.Limit,
			Offset:    q.Offset,
			SortBy:    q.SortBy,
			SortOrder: q.SortOrder,
			Search:    q.Search,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, page)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.collections.Stats(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSortOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Collection []models.SortOption `json:"collection"`
		Wantlist   []models.SortOption `json:"wantlist"`
	}{
		Collection: s.collections.SortOptions(models.ListCollection),
		Wantlist:   s.collections.SortOptions(models.ListWantlist),
	})
}

type addRequest struct {
	ReleaseID int64  `json:"releaseId" validate:"required,gt=0"`
	Rating    *int   `json:"rating" validate:"omitempty,min=0,max=5"`
	Notes     string `json:"notes" validate:"max=4000"`
}

func (s *Server) handleAdd(kind models.ListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addRequest
		if err := s.decodeBody(r, &req); err != nil {
			s.badRequest(w, err)
			return
		}

		item := collections.AddItem{ReleaseID: req.ReleaseID, Notes: req.Notes}
		if req.Rating != nil {
			item.Rating = *req.Rating
		}

		membership, err := s.collections.Add(r.Context(), kind, chi.URLParam(r, "userId"), item)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, membership)
	}
}

func (s *Server) handleRemove(kind models.ListKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		releaseID, err := pathID(r, "releaseId")
		if err != nil {
			s.badRequest(w, err)
			return
		}

		if err := s.collections.Remove(r.Context(), kind, chi.URLParam(r, "userId"), releaseID); err != nil {
			s.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, messageResponse{Message: "Release removed from " + listName(kind)})
	}
}

func listName(kind models.ListKind) string {
	if kind == models.ListSuggestion {
		return "suggestions"
	}
	return string(kind)
}
