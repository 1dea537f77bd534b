package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/imstrack/imstrack/internal/database"
)

// handleCDRList returns call detail records, newest first. Query
// params: limit, offset, search, direction, cause, start_date,
// end_date.
func (s *Server) handleCDRList(w http.ResponseWriter, r *http.Request) {
	pg, errMsg := parsePagination(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	q := r.URL.Query()
	filter := database.CDRListFilter{
		Limit:     pg.Limit,
		Offset:    pg.Offset,
		Search:    q.Get("search"),
		Direction: q.Get("direction"),
		Cause:     q.Get("cause"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}

	switch filter.Direction {
	case "", "incoming", "outgoing":
	default:
		writeError(w, http.StatusBadRequest, "direction must be incoming or outgoing")
		return
	}

	cdrs, total, err := s.cdrs.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing cdrs: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PaginatedResponse{
		Items:  cdrs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// handleCDRGet returns one call detail record by numeric ID.
func (s *Server) handleCDRGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid cdr id")
		return
	}

	cdr, err := s.cdrs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "loading cdr: "+err.Error())
		return
	}
	if cdr == nil {
		writeError(w, http.StatusNotFound, "cdr not found")
		return
	}

	writeJSON(w, http.StatusOK, cdr)
}
