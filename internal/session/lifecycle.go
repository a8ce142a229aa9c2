package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/wagate/wagate/internal/event"
	"github.com/wagate/wagate/internal/logging"
	"github.com/wagate/wagate/internal/provider"
	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/pkg/types"
)

// runLoop consumes a session's events until the provider closes the
// channel. It is the only writer of lifecycle transitions for its device.
func (s *Service) runLoop(handle *deviceSession) {
	defer close(handle.done)
	log := logging.ForDevice(handle.deviceID)

	for ev := range handle.sess.Events() {
		switch ev := ev.(type) {
		case provider.QRCodeEvent:
			s.handleQR(handle, ev, log)
		case provider.AuthenticatedEvent:
			log.Info().Msg("Authenticated")
			s.recordActivity(s.ctx, handle.deviceID, "info", "authenticated")
		case provider.ReadyEvent:
			s.handleReady(handle, ev, log)
		case provider.MessageEvent:
			s.handleInboundMessage(handle, ev, log)
		case provider.DisconnectedEvent:
			s.handleDisconnected(handle, ev, log)
		case provider.AuthFailureEvent:
			s.handleAuthFailure(handle, ev, log)
		case provider.LoadingEvent:
			log.Debug().Int("percent", ev.Percent).Str("label", ev.Label).Msg("Loading")
		case provider.StateChangeEvent:
			log.Debug().Str("state", ev.State).Msg("Provider state changed")
		}
	}

	s.handleStreamEnd(handle, log)
}

// handleQR publishes a fresh pairing code and parks the device in qr_ready
// until the user scans it or the initialization attempt times out.
func (s *Service) handleQR(handle *deviceSession, ev provider.QRCodeEvent, log zerolog.Logger) {
	s.mu.Lock()
	if handle.closing {
		s.mu.Unlock()
		return
	}
	handle.status = types.StatusQRReady
	s.mu.Unlock()

	log.Info().Msg("QR code ready for pairing")
	s.persistState(s.ctx, handle.deviceID, store.DeviceUpdate{
		Status: store.Status(types.StatusQRReady),
		QRCode: store.String(ev.Code),
	}, types.StatusQRReady, "")
	event.Publish(event.Event{Type: event.DeviceQR, Data: event.DeviceQRData{
		DeviceID: handle.deviceID,
		Code:     ev.Code,
	}})
	s.recordActivity(s.ctx, handle.deviceID, "info", "qr code generated")
}

// handleReady marks the session connected and unblocks the creator.
func (s *Service) handleReady(handle *deviceSession, ev provider.ReadyEvent, log zerolog.Logger) {
	s.mu.Lock()
	if handle.closing {
		s.mu.Unlock()
		return
	}
	handle.status = types.StatusConnected
	s.attempts[handle.deviceID] = 0
	s.mu.Unlock()

	log.Info().Str("phone", ev.Account.Phone).Msg("Session connected")
	s.persistState(s.ctx, handle.deviceID, store.DeviceUpdate{
		Status:    store.Status(types.StatusConnected),
		Phone:     store.String(ev.Account.Phone),
		QRCode:    store.String(""),
		LastError: store.String(""),
	}, types.StatusConnected, "")
	s.recordActivity(s.ctx, handle.deviceID, "info", "connected as "+ev.Account.Phone)
	s.signalInit(handle, nil)
}

// handleAuthFailure parks the device in auth_failure. The state is terminal:
// no reconnect is scheduled and only an explicit restart leaves it.
func (s *Service) handleAuthFailure(handle *deviceSession, ev provider.AuthFailureEvent, log zerolog.Logger) {
	s.mu.Lock()
	if handle.closing {
		s.mu.Unlock()
		return
	}
	handle.status = types.StatusAuthFailure
	s.mu.Unlock()

	log.Error().Str("reason", ev.Reason).Msg("Authentication failed")
	s.persistState(s.ctx, handle.deviceID, store.DeviceUpdate{
		Status:    store.Status(types.StatusAuthFailure),
		QRCode:    store.String(""),
		LastError: store.String(ev.Reason),
	}, types.StatusAuthFailure, ev.Reason)
	s.recordActivity(s.ctx, handle.deviceID, "error", "authentication failed: "+ev.Reason)
	s.signalInit(handle, &authFailureError{reason: ev.Reason})
}

// handleInboundMessage hands a received message to the inbound pipeline.
// Delivery is synchronous so a device's messages keep their arrival order.
func (s *Service) handleInboundMessage(handle *deviceSession, ev provider.MessageEvent, log zerolog.Logger) {
	msg := ev.Message
	if msg.IsStatus {
		log.Debug().Str("from", msg.From).Msg("Ignoring status broadcast")
		return
	}
	if s.inbound == nil {
		return
	}

	// The stored device carries the webhook config, which may have changed
	// since the session came up; read it fresh for every message.
	device, err := s.store.Device(s.ctx, handle.deviceID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load device for inbound message")
		return
	}
	s.inbound.HandleInbound(s.ctx, device, msg)
}

// handleDisconnected reacts to the provider dropping the link. During
// initialization the creator owns cleanup; afterwards the session is torn
// down and a reconnect is scheduled unless authentication already failed.
func (s *Service) handleDisconnected(handle *deviceSession, ev provider.DisconnectedEvent, log zerolog.Logger) {
	s.mu.Lock()
	if handle.closing {
		s.mu.Unlock()
		return
	}
	wasAuthFailure := handle.status == types.StatusAuthFailure
	initDone := handle.initDone
	handle.closing = true
	handle.status = types.StatusDisconnected
	if s.active[handle.deviceID] == handle {
		delete(s.active, handle.deviceID)
	}
	s.mu.Unlock()

	if !initDone {
		s.signalInit(handle, fmt.Errorf("disconnected during initialization: %s", ev.Reason))
		return
	}

	go s.teardownAbandoned(handle, log)

	if wasAuthFailure {
		return
	}

	log.Warn().Str("reason", ev.Reason).Msg("Session disconnected unexpectedly")
	s.persistState(s.ctx, handle.deviceID, store.DeviceUpdate{
		Status:    store.Status(types.StatusDisconnected),
		QRCode:    store.String(""),
		LastError: store.String(ev.Reason),
	}, types.StatusDisconnected, ev.Reason)
	s.recordActivity(s.ctx, handle.deviceID, "warn", "disconnected unexpectedly: "+ev.Reason)
	go s.reconnect(handle.deviceID)
}

// handleStreamEnd runs after the event channel closes. An intentional
// teardown needs nothing more; a provider dying silently is treated like an
// unexpected disconnect.
func (s *Service) handleStreamEnd(handle *deviceSession, log zerolog.Logger) {
	s.mu.Lock()
	closing := handle.closing
	initDone := handle.initDone
	handle.closing = true
	if s.active[handle.deviceID] == handle {
		delete(s.active, handle.deviceID)
	}
	s.mu.Unlock()

	if closing {
		return
	}

	if !initDone {
		s.signalInit(handle, errors.New("provider event stream ended during initialization"))
		return
	}

	log.Warn().Msg("Provider event stream ended unexpectedly")
	s.persistState(s.ctx, handle.deviceID, store.DeviceUpdate{
		Status:    store.Status(types.StatusDisconnected),
		QRCode:    store.String(""),
		LastError: store.String("provider stream ended"),
	}, types.StatusDisconnected, "provider stream ended")
	s.recordActivity(s.ctx, handle.deviceID, "warn", "session ended unexpectedly")
	go s.reconnect(handle.deviceID)
}

// signalInit delivers the initialization outcome to the creator exactly
// once; later signals are dropped.
func (s *Service) signalInit(handle *deviceSession, err error) {
	s.mu.Lock()
	if handle.initDone {
		s.mu.Unlock()
		return
	}
	handle.initDone = true
	s.mu.Unlock()
	handle.initResult <- err
}

// teardownAbandoned releases a session whose link the provider already
// dropped. Run on its own goroutine: a provider may not finish teardown
// while the event loop is still the one draining its channel.
func (s *Service) teardownAbandoned(handle *deviceSession, log zerolog.Logger) {
	if err := handle.sess.Teardown(context.Background()); err != nil {
		log.Warn().Err(fmt.Errorf("%w: %v", ErrProviderTeardown, err)).Msg("Cleanup after disconnect reported an error")
	}
}

// reconnect recreates a session after an unexpected disconnect. It retries
// on a fixed delay until the attempt succeeds, the retry budget trips, or
// the device goes away.
func (s *Service) reconnect(deviceID string) {
	log := logging.ForDevice(deviceID)

	select {
	case <-time.After(s.reconnectDelay):
	case <-s.ctx.Done():
		return
	}

	op := func() error {
		if _, err := s.store.Device(s.ctx, deviceID); err != nil {
			return backoff.Permanent(fmt.Errorf("device gone: %w", err))
		}
		_, err := s.Create(s.ctx, deviceID, "")
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrAlreadyExists),
			errors.Is(err, ErrRetryLimitExceeded),
			errors.Is(err, ErrInitializationCanceled):
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(s.reconnectDelay), s.ctx)
	if err := backoff.Retry(op, b); err != nil {
		log.Warn().Err(err).Msg("Automatic reconnect gave up")
		return
	}
	log.Info().Msg("Session reconnected")
}
