package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wagate/wagate/internal/session"
	"github.com/wagate/wagate/pkg/types"
)

// SendMessageRequest represents the request body for sending a message.
type SendMessageRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// sendMessage handles POST /device/{deviceID}/message
func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if req.To == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "to is required")
		return
	}
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "body is required")
		return
	}

	msg, err := s.sessions.Send(r.Context(), deviceID, req.To, req.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

// listMessages handles GET /device/{deviceID}/message
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	if _, err := s.store.Device(r.Context(), deviceID); err != nil {
		writeServiceError(w, err)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := s.store.RecentMessages(r.Context(), deviceID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Ensure we return an empty array [] instead of null
	if messages == nil {
		messages = []*types.Message{}
	}

	writeJSON(w, http.StatusOK, messages)
}

// listChats handles GET /device/{deviceID}/chats
func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	if _, err := s.store.Device(r.Context(), deviceID); err != nil {
		writeServiceError(w, err)
		return
	}

	convs, err := s.sessions.Conversations(r.Context(), deviceID)
	if errors.Is(err, session.ErrDeviceNotFound) {
		// The device exists but carries no live session right now.
		writeError(w, http.StatusConflict, ErrCodeNotConnected, "No active session for device")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	if convs == nil {
		convs = []types.Conversation{}
	}

	writeJSON(w, http.StatusOK, convs)
}
