package http

import (
	"errors"
	"net/http"

	"cdr.dev/slog/v3"
	"github.com/go-chi/chi/v5"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/db"
)

type registerDeviceRequest struct {
	ID     string  `json:"id" validate:"required,max=128"`
	Name   string  `json:"name" validate:"required"`
	Type   string  `json:"type" validate:"required"`
	UserID *string `json:"userId" validate:"omitempty,min=1"`
}

type registerDeviceResponse struct {
	Success  bool    `json:"success"`
	DeviceID string  `json:"deviceId"`
	UserID   *string `json:"userId"`
}

type linkUserRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (s *Server) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req registerDeviceRequest
	if !readJSON(w, r, &req) {
		return
	}

	device, err := s.store.UpsertDevice(r.Context(), req.ID, req.Name, req.Type, req.UserID)
	if err != nil {
		s.serverError(w, r, "upsert device", err)
		return
	}
	writeJSON(w, http.StatusOK, registerDeviceResponse{
		Success:  true,
		DeviceID: device.ID,
		UserID:   device.UserID,
	})
}

func (s *Server) handleLinkUser(w http.ResponseWriter, r *http.Request) {
	var req linkUserRequest
	if !readJSON(w, r, &req) {
		return
	}

	err := s.store.LinkDeviceUser(r.Context(), chi.URLParam(r, "deviceId"), req.UserID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "device_not_found")
		return
	}
	if err != nil {
		s.serverError(w, r, "link device user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.store.ListDevices(r.Context())
	if err != nil {
		s.serverError(w, r, "list devices", err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.store.ListServices(r.Context())
	if err != nil {
		s.serverError(w, r, "list services", err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

// serverError logs the storage failure and answers with a generic 500.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(r.Context(), op+" failed",
		slog.F("path", r.URL.Path),
		slog.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "server_error")
}
