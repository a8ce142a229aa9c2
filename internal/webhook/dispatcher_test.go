package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagate/wagate/internal/provider"
	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/pkg/types"
)

type sentReply struct {
	deviceID string
	to       string
	body     string
}

type fakeSender struct {
	mu      sync.Mutex
	replies []sentReply
	err     error
}

func (f *fakeSender) Send(ctx context.Context, deviceID, to, body string) (*types.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.replies = append(f.replies, sentReply{deviceID, to, body})
	return &types.Message{ID: "reply-1", DeviceID: deviceID, To: to, Body: body}, nil
}

func (f *fakeSender) sent() []sentReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentReply(nil), f.replies...)
}

type capture struct {
	mu          sync.Mutex
	bodies      [][]byte
	contentType string
}

func (c *capture) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.bodies) == 0 {
		return nil
	}
	return c.bodies[len(c.bodies)-1]
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.bodies)
}

func captureServer(t *testing.T, status int, response string) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.contentType = r.Header.Get("Content-Type")
		c.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newTestPipeline(t *testing.T) (*store.SQLite, *fakeSender) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st, &fakeSender{}
}

func createDevice(t *testing.T, st store.Store, webhook types.WebhookConfig) *types.Device {
	t.Helper()
	d := &types.Device{
		ID:      "dev-1",
		Name:    "Test Device",
		Phone:   "5511999990001",
		Status:  types.StatusConnected,
		Webhook: webhook,
	}
	require.NoError(t, st.CreateDevice(context.Background(), d))
	return d
}

func inbound(body string) provider.IncomingMessage {
	return provider.IncomingMessage{
		ID:        "ext-1",
		From:      "6281@c.us",
		To:        "5511999990001@c.us",
		Body:      body,
		Type:      "chat",
		Timestamp: 1700000000,
	}
}

func TestDispatchRecordsMessage(t *testing.T) {
	st, sender := newTestPipeline(t)
	d := NewDispatcher(st, sender)
	device := createDevice(t, st, types.WebhookConfig{}) // webhooks disabled
	ctx := context.Background()

	d.HandleInbound(ctx, device, inbound("hello"))

	msgs, err := st.RecentMessages(ctx, device.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, types.DirectionIncoming, msgs[0].Direction)
	assert.Equal(t, "hello", msgs[0].Body)
	assert.Equal(t, "ext-1", msgs[0].ExternalID)
	assert.Equal(t, "6281@c.us", msgs[0].From)

	stats, err := st.Stats(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.MessagesReceived)
	assert.Equal(t, int64(0), stats.WebhookCalls)
}

func TestDispatchDefaultPayload(t *testing.T) {
	st, sender := newTestPipeline(t)
	d := NewDispatcher(st, sender)
	srv, got := captureServer(t, http.StatusOK, `{}`)
	device := createDevice(t, st, types.WebhookConfig{URL: srv.URL, Enabled: true})
	ctx := context.Background()

	d.HandleInbound(ctx, device, inbound("hello"))

	require.Equal(t, 1, got.count())
	assert.Equal(t, "application/json", got.contentType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(got.last(), &payload))
	assert.Equal(t, "dev-1", payload["device_id"])
	assert.Equal(t, "Test Device", payload["device_name"])
	assert.Equal(t, "6281@c.us", payload["from"])
	assert.Equal(t, "hello", payload["message"])
	assert.Equal(t, "chat", payload["message_type"])
	assert.Equal(t, "6281", payload["from_name"]) // falls back to the local part

	stats, err := st.Stats(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.WebhookCalls)
}

func TestDispatchTemplatePayload(t *testing.T) {
	st, sender := newTestPipeline(t)
	d := NewDispatcher(st, sender)
	srv, got := captureServer(t, http.StatusOK, `{}`)
	device := createDevice(t, st, types.WebhookConfig{
		URL:          srv.URL,
		Enabled:      true,
		BodyTemplate: `{"u":"{{from}}","m":"{{message}}"}`,
	})

	d.HandleInbound(context.Background(), device, inbound("hi"))

	require.Equal(t, 1, got.count())
	assert.JSONEq(t, `{"u":"6281@c.us","m":"hi"}`, string(got.last()))
}

func TestDispatchTemplateFallback(t *testing.T) {
	st, sender := newTestPipeline(t)
	d := NewDispatcher(st, sender)
	srv, got := captureServer(t, http.StatusOK, `{}`)
	device := createDevice(t, st, types.WebhookConfig{
		URL:          srv.URL,
		Enabled:      true,
		BodyTemplate: `this is not {{message}} json`,
	})

	d.HandleInbound(context.Background(), device, inbound("hi"))

	// Broken template falls back to the default payload
	require.Equal(t, 1, got.count())
	var payload map[string]any
	require.NoError(t, json.Unmarshal(got.last(), &payload))
	assert.Equal(t, "dev-1", payload["device_id"])
	assert.Equal(t, "hi", payload["message"])
}

func TestDispatchCountsFailedDelivery(t *testing.T) {
	st, sender := newTestPipeline(t)
	d := NewDispatcher(st, sender)

	// A closed server yields connection refused
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	device := createDevice(t, st, types.WebhookConfig{URL: url, Enabled: true})
	ctx := context.Background()

	d.HandleInbound(ctx, device, inbound("hello"))

	// The failure is contained: message recorded, counter bumped once
	msgs, err := st.RecentMessages(ctx, device.ID, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	stats, err := st.Stats(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.WebhookCalls)
	assert.Equal(t, int64(1), stats.MessagesReceived)
}

func TestDispatchAutoReplyWithPath(t *testing.T) {
	st, sender := newTestPipeline(t)
	d := NewDispatcher(st, sender)
	srv, _ := captureServer(t, http.StatusOK, `{"data":{"reply":"ok!"}}`)
	device := createDevice(t, st, types.WebhookConfig{
		URL:             srv.URL,
		Enabled:         true,
		ResponseEnabled: true,
		ResponsePath:    "data.reply",
	})

	d.HandleInbound(context.Background(), device, inbound("hi"))

	replies := sender.sent()
	require.Len(t, replies, 1)
	assert.Equal(t, "dev-1", replies[0].deviceID)
	assert.Equal(t, "6281@c.us", replies[0].to)
	assert.Equal(t, "ok!", replies[0].body)
}

func TestDispatchAutoReplyProbesFields(t *testing.T) {
	st, sender := newTestPipeline(t)
	d := NewDispatcher(st, sender)
	srv, _ := captureServer(t, http.StatusOK, `{"message":"  got it  "}`)
	device := createDevice(t, st, types.WebhookConfig{
		URL:             srv.URL,
		Enabled:         true,
		ResponseEnabled: true,
	})

	d.HandleInbound(context.Background(), device, inbound("hi"))

	replies := sender.sent()
	require.Len(t, replies, 1)
	assert.Equal(t, "got it", replies[0].body)
}

func TestDispatchNoReplyOnNonSuccess(t *testing.T) {
	st, sender := newTestPipeline(t)
	d := NewDispatcher(st, sender)
	srv, got := captureServer(t, http.StatusInternalServerError, `{"reply":"nope"}`)
	device := createDevice(t, st, types.WebhookConfig{
		URL:             srv.URL,
		Enabled:         true,
		ResponseEnabled: true,
	})
	ctx := context.Background()

	d.HandleInbound(ctx, device, inbound("hi"))

	assert.Equal(t, 1, got.count())
	assert.Empty(t, sender.sent())

	// Non-2xx is still a completed attempt
	stats, err := st.Stats(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.WebhookCalls)
}

func TestDispatchNoReplyWhenDisabled(t *testing.T) {
	st, sender := newTestPipeline(t)
	d := NewDispatcher(st, sender)
	srv, _ := captureServer(t, http.StatusOK, `{"reply":"nope"}`)
	device := createDevice(t, st, types.WebhookConfig{URL: srv.URL, Enabled: true})

	d.HandleInbound(context.Background(), device, inbound("hi"))

	assert.Empty(t, sender.sent())
}

func TestDispatchBlankReplyNotSent(t *testing.T) {
	st, sender := newTestPipeline(t)
	d := NewDispatcher(st, sender)
	srv, _ := captureServer(t, http.StatusOK, `{"reply":"   "}`)
	device := createDevice(t, st, types.WebhookConfig{
		URL:             srv.URL,
		Enabled:         true,
		ResponseEnabled: true,
	})

	d.HandleInbound(context.Background(), device, inbound("hi"))

	assert.Empty(t, sender.sent())
}

func TestDispatchReplySendFailureContained(t *testing.T) {
	st, sender := newTestPipeline(t)
	sender.err = context.DeadlineExceeded
	d := NewDispatcher(st, sender)
	srv, _ := captureServer(t, http.StatusOK, `{"reply":"ok"}`)
	device := createDevice(t, st, types.WebhookConfig{
		URL:             srv.URL,
		Enabled:         true,
		ResponseEnabled: true,
	})
	ctx := context.Background()

	// Must not panic or propagate
	d.HandleInbound(ctx, device, inbound("hi"))

	stats, err := st.Stats(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.WebhookCalls)
}
