package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Sskr2000us/nexa-core/internal/device"
)

// commandRequest is the body for POST /devices/{id}/command.
type commandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
}

// handleListDevices returns all devices in a home.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	homeID := r.URL.Query().Get("home_id")
	if homeID == "" {
		writeBadRequest(w, "home_id query parameter is required")
		return
	}

	devices, err := s.registry.ListDevices(r.Context(), homeID)
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleCreateDevice registers a new device.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var d device.Device
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.registry.CreateDevice(r.Context(), &d); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceExists):
			writeConflict(w, "device already exists")
		case errors.Is(err, device.ErrInvalidDevice),
			errors.Is(err, device.ErrInvalidName),
			errors.Is(err, device.ErrInvalidType),
			errors.Is(err, device.ErrInvalidProtocol):
			writeValidationError(w, err.Error())
		default:
			s.logger.Error("creating device failed", "error", err)
			writeInternalError(w, "failed to create device")
		}
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("getting device failed", "error", err)
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleUpdateDevice replaces a device's definition.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var d device.Device
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	d.ID = chi.URLParam(r, "id")

	if err := s.registry.UpdateDevice(r.Context(), &d); err != nil {
		switch {
		case errors.Is(err, device.ErrDeviceNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrInvalidDevice),
			errors.Is(err, device.ErrInvalidName),
			errors.Is(err, device.ErrInvalidType),
			errors.Is(err, device.ErrInvalidProtocol):
			writeValidationError(w, err.Error())
		default:
			s.logger.Error("updating device failed", "error", err)
			writeInternalError(w, "failed to update device")
		}
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleDeleteDevice removes a device.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteDevice(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("deleting device failed", "error", err)
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceCommand dispatches a command to a device's protocol bridge.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	if s.commander == nil {
		writeInternalError(w, "command dispatch not available")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	detail, err := s.commander.SendCommand(r.Context(), chi.URLParam(r, "id"), req.Command, req.Parameters)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("dispatching command failed", "error", err)
		writeInternalError(w, "failed to dispatch command")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"detail": detail})
}
