package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wagate/wagate/internal/event"
	"github.com/wagate/wagate/internal/session"
	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/pkg/types"
)

// CreateDeviceRequest represents the request body for creating a device.
type CreateDeviceRequest struct {
	ID      string               `json:"id"`
	Name    string               `json:"name,omitempty"`
	Webhook *types.WebhookConfig `json:"webhook,omitempty"`
}

// listDevices handles GET /device
func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.sessions.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Ensure we return an empty array [] instead of null
	if devices == nil {
		devices = []session.DeviceState{}
	}

	writeJSON(w, http.StatusOK, devices)
}

// createDevice handles POST /device
//
// The device row is written before the session starts so an inbound
// message arriving right after pairing already sees the webhook config.
func (s *Server) createDevice(w http.ResponseWriter, r *http.Request) {
	var req CreateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if req.ID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "id is required")
		return
	}

	if _, err := s.store.Device(r.Context(), req.ID); errors.Is(err, store.ErrNotFound) {
		name := req.Name
		if name == "" {
			name = req.ID
		}
		device := &types.Device{
			ID:     req.ID,
			Name:   name,
			Status: types.StatusDisconnected,
		}
		if req.Webhook != nil {
			device.Webhook = *req.Webhook
		}
		if err := s.store.CreateDevice(r.Context(), device); err != nil {
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			return
		}
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	} else if req.Webhook != nil {
		if err := s.store.UpdateDevice(r.Context(), req.ID, store.DeviceUpdate{Webhook: req.Webhook}); err != nil {
			writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
			return
		}
	}

	device, err := s.sessions.Create(r.Context(), req.ID, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session.DeviceState{Device: *device, Active: true})
}

// getDevice handles GET /device/{deviceID}
func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	state, err := s.sessions.Status(r.Context(), deviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// deleteDevice handles DELETE /device/{deviceID}
func (s *Server) deleteDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	if err := s.sessions.Delete(r.Context(), deviceID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w)
}

// connectDevice handles POST /device/{deviceID}/connect
func (s *Server) connectDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	// Connect only starts sessions for devices that were registered before.
	if _, err := s.store.Device(r.Context(), deviceID); err != nil {
		writeServiceError(w, err)
		return
	}

	device, err := s.sessions.Create(r.Context(), deviceID, "")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session.DeviceState{Device: *device, Active: true})
}

// disconnectDevice handles POST /device/{deviceID}/disconnect
func (s *Server) disconnectDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	if err := s.sessions.Disconnect(r.Context(), deviceID); err != nil {
		writeServiceError(w, err)
		return
	}

	writeSuccess(w)
}

// restartDevice handles POST /device/{deviceID}/restart
func (s *Server) restartDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	device, err := s.sessions.Restart(r.Context(), deviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if device == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Device not found")
		return
	}

	writeJSON(w, http.StatusOK, session.DeviceState{Device: *device, Active: true})
}

// getQR handles GET /device/{deviceID}/qr
func (s *Server) getQR(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	device, err := s.store.Device(r.Context(), deviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if device.Status != types.StatusQRReady || device.QRCode == "" {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "No QR code available")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"qr": device.QRCode})
}

// setWebhook handles PUT /device/{deviceID}/webhook
func (s *Server) setWebhook(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var cfg types.WebhookConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if err := s.store.UpdateDevice(r.Context(), deviceID, store.DeviceUpdate{Webhook: &cfg}); err != nil {
		writeServiceError(w, err)
		return
	}

	device, err := s.store.Device(r.Context(), deviceID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	event.Publish(event.Event{
		Type: event.DeviceUpdated,
		Data: event.DeviceUpdatedData{Info: device},
	})

	writeJSON(w, http.StatusOK, device)
}
