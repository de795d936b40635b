package httpapi

import (
	"net/http"

	"vinylsync/internal/app/releases"
)

func (s *Server) handleReleases(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseListQuery(r)
	if err != nil {
		s.badRequest(w, err)
		return
	}

	page, err := s.releases.List(r.Context(), releases.ListParams{
		Limit:     q.Limit,
		Offset:    q.Offset,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	discogsID, err := pathID(r, "discogsId")
	if err != nil {
		s.badRequest(w, err)
		return
	}

	release, err := s.releases.GetByDiscogsID(r.Context(), discogsID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, release)
}
