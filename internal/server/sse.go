package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wagate/wagate/internal/event"
	"github.com/wagate/wagate/internal/logging"
)

// StreamEvent is the wire shape of one SSE payload.
type StreamEvent struct {
	Type event.EventType `json:"type"`
	Data any             `json:"data"`
}

const (
	// SSEHeartbeatInterval is the interval for SSE heartbeats.
	SSEHeartbeatInterval = 30 * time.Second
)

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

// newSSEWriter creates a new SSE writer.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	// Use ResponseController for more reliable flushing (Go 1.20+)
	rc := http.NewResponseController(w)

	// Try to get flusher interface as well
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	return &sseWriter{w: w, flusher: flusher, rc: rc}, nil
}

// writeEvent writes an SSE event.
func (s *sseWriter) writeEvent(eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	// Write SSE format: event type, data, and blank line
	_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, jsonData)
	if err != nil {
		return err
	}

	// Flush immediately using ResponseController (more reliable than Flusher interface)
	// This ensures data is sent even through middleware wrappers
	if flushErr := s.rc.Flush(); flushErr != nil {
		// Fallback to traditional flusher
		s.flusher.Flush()
	}

	return nil
}

// writeHeartbeat writes an SSE heartbeat comment.
func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flusher.Flush()
}

// streamEvents handles GET /event. With ?device= the stream carries only
// events for that device; without it every bus event goes out.
func (srv *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("device")

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	// Explicitly write status and flush headers immediately
	// This ensures client receives headers before we wait for events
	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	// Tell the client the stream is live before the first bus event arrives.
	connected := StreamEvent{
		Type: "server.connected",
		Data: map[string]any{},
	}
	if err := sse.writeEvent("message", connected); err != nil {
		return
	}

	// Channel for events - use small buffer for low-latency streaming
	events := make(chan event.Event, 10)

	unsub := event.SubscribeAll(func(e event.Event) {
		if deviceID != "" && !srv.eventBelongsToDevice(e, deviceID) {
			return
		}
		select {
		case events <- e:
		default:
			logging.Warn().
				Str("eventType", string(e.Type)).
				Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	// Heartbeat ticker
	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	// Wait for client disconnect or context cancellation
	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			data := StreamEvent{
				Type: e.Type,
				Data: e.Data,
			}
			if err := sse.writeEvent("message", data); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}

// eventBelongsToDevice checks if an event belongs to a device.
func (srv *Server) eventBelongsToDevice(e event.Event, deviceID string) bool {
	switch data := e.Data.(type) {
	case event.DeviceCreatedData:
		return data.Info != nil && data.Info.ID == deviceID
	case event.DeviceUpdatedData:
		return data.Info != nil && data.Info.ID == deviceID
	case event.DeviceDeletedData:
		return data.DeviceID == deviceID
	case event.DeviceStateData:
		return data.DeviceID == deviceID
	case event.DeviceQRData:
		return data.DeviceID == deviceID
	case event.MessageReceivedData:
		return data.Info != nil && data.Info.DeviceID == deviceID
	case event.MessageSentData:
		return data.Info != nil && data.Info.DeviceID == deviceID
	case event.WebhookDeliveredData:
		return data.DeviceID == deviceID
	case event.WebhookFailedData:
		return data.DeviceID == deviceID
	}
	return false
}
