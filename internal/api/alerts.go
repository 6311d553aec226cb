package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Sskr2000us/nexa-core/internal/alert"
)

// handleListAlerts returns recent alerts for a home, newest first.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeInternalError(w, "alert service not available")
		return
	}

	homeID := r.URL.Query().Get("home_id")
	if homeID == "" {
		writeBadRequest(w, "home_id query parameter is required")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	alerts, err := s.alerts.List(r.Context(), homeID, limit)
	if err != nil {
		s.logger.Error("listing alerts failed", "error", err)
		writeInternalError(w, "failed to list alerts")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// handleAcknowledgeAlert marks an alert as seen.
func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeInternalError(w, "alert service not available")
		return
	}

	if err := s.alerts.Acknowledge(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, alert.ErrAlertNotFound) {
			writeNotFound(w, "alert not found")
			return
		}
		s.logger.Error("acknowledging alert failed", "error", err)
		writeInternalError(w, "failed to acknowledge alert")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
