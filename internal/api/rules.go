package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Sskr2000us/nexa-core/internal/automation"
)

// runRequest is the optional body for POST /rules/{id}/run.
type runRequest struct {
	TriggeredBy    string         `json:"triggered_by"`
	TriggerContext map[string]any `json:"trigger_context"`
}

// handleListRules returns all live rules for a home.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	homeID := r.URL.Query().Get("home_id")
	if homeID == "" {
		writeBadRequest(w, "home_id query parameter is required")
		return
	}

	rules, err := s.rules.List(r.Context(), homeID)
	if err != nil {
		s.logger.Error("listing rules failed", "error", err)
		writeInternalError(w, "failed to list rules")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// handleCreateRule validates and persists a new rule.
// Rules with zero actions are accepted as drafts.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule automation.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if rule.ID == "" {
		rule.ID = automation.GenerateID()
	}

	if err := automation.ValidateRule(&rule); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if err := s.rules.Create(r.Context(), &rule); err != nil {
		if errors.Is(err, automation.ErrRuleExists) {
			writeConflict(w, "rule already exists")
			return
		}
		s.logger.Error("creating rule failed", "error", err)
		writeInternalError(w, "failed to create rule")
		return
	}

	writeJSON(w, http.StatusCreated, rule)
}

// handleGetRule returns a single rule by ID.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.rules.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, automation.ErrRuleNotFound) {
			writeNotFound(w, "rule not found")
			return
		}
		s.logger.Error("getting rule failed", "error", err)
		writeInternalError(w, "failed to get rule")
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// handleUpdateRule replaces a rule's definition.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var rule automation.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	rule.ID = chi.URLParam(r, "id")

	if err := automation.ValidateRule(&rule); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	if err := s.rules.Update(r.Context(), &rule); err != nil {
		if errors.Is(err, automation.ErrRuleNotFound) {
			writeNotFound(w, "rule not found")
			return
		}
		s.logger.Error("updating rule failed", "error", err)
		writeInternalError(w, "failed to update rule")
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// handleDeleteRule soft-deletes a rule. Its execution history remains
// queryable through the executions endpoints.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.rules.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, automation.ErrRuleNotFound) {
			writeNotFound(w, "rule not found")
			return
		}
		s.logger.Error("deleting rule failed", "error", err)
		writeInternalError(w, "failed to delete rule")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleRunRule triggers a rule run and returns the finalized execution
// record. Conditions not being met is a normal success, not an error.
func (s *Server) handleRunRule(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeInternalError(w, "automation engine not available")
		return
	}

	req := runRequest{TriggeredBy: "manual"}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
		if req.TriggeredBy == "" {
			req.TriggeredBy = "manual"
		}
	}

	exec, err := s.engine.RunRule(r.Context(), chi.URLParam(r, "id"), req.TriggeredBy, req.TriggerContext)
	if err != nil {
		switch {
		case errors.Is(err, automation.ErrRuleNotFound):
			writeNotFound(w, "rule not found")
		case errors.Is(err, automation.ErrRuleDisabled):
			writeConflict(w, "rule is disabled")
		case errors.Is(err, automation.ErrNoActions):
			writeUnprocessable(w, "rule has no actions")
		default:
			s.logger.Error("running rule failed", "error", err)
			writeInternalError(w, "failed to run rule")
		}
		return
	}

	writeJSON(w, http.StatusOK, exec)
}

// handleListExecutions returns recent executions of a rule, newest first.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	executions, err := s.rules.ListExecutions(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.logger.Error("listing executions failed", "error", err)
		writeInternalError(w, "failed to list executions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executions": executions,
		"count":      len(executions),
	})
}

// handleGetExecution returns a single execution record.
func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.rules.GetExecution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, automation.ErrExecutionNotFound) {
			writeNotFound(w, "execution not found")
			return
		}
		s.logger.Error("getting execution failed", "error", err)
		writeInternalError(w, "failed to get execution")
		return
	}

	writeJSON(w, http.StatusOK, exec)
}
