// Package webhook forwards inbound messages to per-device HTTP endpoints.
//
// Each inbound message runs through four stages: record it in the store,
// build the payload (templated or default), deliver it with a bounded
// timeout, and optionally extract a reply from the response and relay it
// back to the sender. Delivery is best-effort and at-most-once; failures
// are classified and logged, never retried, and never escape the pipeline.
package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/wagate/wagate/internal/event"
	"github.com/wagate/wagate/internal/logging"
	"github.com/wagate/wagate/internal/provider"
	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/pkg/types"
)

const (
	// DeliveryTimeout bounds a single webhook POST.
	DeliveryTimeout = 10 * time.Second

	maxResponseBytes = 1 << 20
)

// Sender relays an extracted reply back into the originating conversation.
// The session orchestrator implements it.
type Sender interface {
	Send(ctx context.Context, deviceID, to, body string) (*types.Message, error)
}

// Dispatcher runs the webhook pipeline for inbound messages.
type Dispatcher struct {
	store  store.Store
	sender Sender
	client *http.Client
	log    zerolog.Logger
}

// NewDispatcher creates a dispatcher backed by the given store. sender is
// used for auto-replies and may be nil when replies are not needed.
func NewDispatcher(st store.Store, sender Sender) *Dispatcher {
	return &Dispatcher{
		store:  st,
		sender: sender,
		client: &http.Client{Timeout: DeliveryTimeout},
		log:    logging.Component("webhook"),
	}
}

// HandleInbound processes one inbound message end to end. Errors are
// contained here: they are logged and recorded but never returned, so one
// bad message cannot stall the device's event loop.
func (d *Dispatcher) HandleInbound(ctx context.Context, device *types.Device, msg provider.IncomingMessage) {
	log := d.log.With().Str("device", device.ID).Str("from", msg.From).Logger()

	record := &types.Message{
		ID:         ulid.Make().String(),
		DeviceID:   device.ID,
		ExternalID: msg.ID,
		Direction:  types.DirectionIncoming,
		From:       msg.From,
		To:         msg.To,
		Body:       msg.Body,
		Type:       msg.Type,
		Timestamp:  msg.Timestamp,
	}
	if err := d.store.AppendMessage(ctx, record); err != nil {
		log.Error().Err(err).Msg("Failed to record inbound message")
		return
	}
	if err := d.store.IncrementStat(ctx, device.ID, store.StatMessagesReceived); err != nil {
		log.Error().Err(err).Msg("Failed to increment received counter")
	}
	event.Publish(event.Event{
		Type: event.MessageReceived,
		Data: event.MessageReceivedData{Info: record},
	})

	if !device.Webhook.Enabled || device.Webhook.URL == "" {
		return
	}

	payload := d.buildPayload(device, msg, log)

	// One increment per attempt, whatever the outcome.
	if err := d.store.IncrementStat(ctx, device.ID, store.StatWebhookCalls); err != nil {
		log.Error().Err(err).Msg("Failed to increment webhook counter")
	}

	result, err := d.deliver(ctx, device.Webhook.URL, payload)
	if err != nil {
		var derr *DeliveryError
		if !errors.As(err, &derr) {
			derr = &DeliveryError{Kind: KindOther, URL: device.Webhook.URL, Err: err}
		}
		log.Error().
			Str("url", device.Webhook.URL).
			Str("kind", string(derr.Kind)).
			Err(derr.Err).
			Msg("Webhook delivery failed")
		event.Publish(event.Event{
			Type: event.WebhookFailed,
			Data: event.WebhookFailedData{
				DeviceID:  device.ID,
				MessageID: record.ID,
				URL:       device.Webhook.URL,
				Kind:      string(derr.Kind),
				Error:     derr.Err.Error(),
			},
		})
		d.recordActivity(ctx, device.ID, "error",
			fmt.Sprintf("webhook delivery failed (%s)", derr.Kind))
		return
	}

	delivered := result.status >= 200 && result.status < 300
	if delivered {
		log.Info().Str("url", device.Webhook.URL).Int("status", result.status).
			Msg("Webhook delivered")
		d.recordActivity(ctx, device.ID, "info",
			fmt.Sprintf("webhook delivered with status %d", result.status))
	} else {
		log.Warn().Str("url", device.Webhook.URL).Int("status", result.status).
			Msg("Webhook returned non-success status")
		d.recordActivity(ctx, device.ID, "warn",
			fmt.Sprintf("webhook returned status %d", result.status))
	}
	event.Publish(event.Event{
		Type: event.WebhookDelivered,
		Data: event.WebhookDeliveredData{
			DeviceID:  device.ID,
			MessageID: record.ID,
			URL:       device.Webhook.URL,
			Status:    result.status,
		},
	})

	if d.sender == nil || !device.Webhook.ResponseEnabled || !delivered || len(result.body) == 0 {
		return
	}
	reply, found := extractReply(result.body, device.Webhook.ResponsePath)
	if !found {
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return
	}
	if _, err := d.sender.Send(ctx, device.ID, msg.From, reply); err != nil {
		log.Error().Err(err).Str("to", msg.From).Msg("Failed to send webhook reply")
		return
	}
	log.Info().Str("to", msg.From).Msg("Webhook reply sent")
}

// buildPayload renders the device template, falling back to the default
// payload when rendering fails.
func (d *Dispatcher) buildPayload(device *types.Device, msg provider.IncomingMessage, log zerolog.Logger) []byte {
	if device.Webhook.BodyTemplate == "" {
		return defaultPayloadFor(device, msg)
	}
	payload, err := Render(device.Webhook.BodyTemplate, templateVariables(device, msg))
	if err != nil {
		log.Warn().Err(err).Msg("Body template failed, using default payload")
		return defaultPayloadFor(device, msg)
	}
	return payload
}

type deliveryResult struct {
	status int
	body   []byte
}

// deliver POSTs the payload. Any status below 600 counts as a completed
// response; callers branch on the status class themselves.
func (d *Dispatcher) deliver(ctx context.Context, url string, payload []byte) (*deliveryResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &DeliveryError{Kind: KindOther, URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, classifyDeliveryError(url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyDeliveryError(url, err)
	}
	if resp.StatusCode >= 600 {
		return nil, &DeliveryError{
			Kind: KindHTTP,
			URL:  url,
			Err:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	return &deliveryResult{status: resp.StatusCode, body: body}, nil
}

func (d *Dispatcher) recordActivity(ctx context.Context, deviceID, level, message string) {
	if err := d.store.AppendActivity(ctx, deviceID, level, message); err != nil {
		d.log.Error().Err(err).Str("device", deviceID).Msg("Failed to record activity")
	}
}
