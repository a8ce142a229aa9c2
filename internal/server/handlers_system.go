package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wagate/wagate/pkg/types"
)

// getHealth handles GET /health
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getStats handles GET /device/{deviceID}/stats
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	if _, err := s.store.Device(r.Context(), deviceID); err != nil {
		writeServiceError(w, err)
		return
	}

	stats, err := s.store.Stats(r.Context(), deviceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// getLogs handles GET /device/{deviceID}/logs
func (s *Server) getLogs(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	if _, err := s.store.Device(r.Context(), deviceID); err != nil {
		writeServiceError(w, err)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.store.RecentActivity(r.Context(), deviceID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Ensure we return an empty array [] instead of null
	if records == nil {
		records = []*types.ActivityRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}
