package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wagate/wagate/internal/event"
	"github.com/wagate/wagate/internal/logging"
	"github.com/wagate/wagate/internal/provider"
	"github.com/wagate/wagate/internal/storage"
	"github.com/wagate/wagate/internal/store"
	"github.com/wagate/wagate/pkg/types"
)

const (
	// MaxInitRetries is the number of consecutive failed initialization
	// attempts a device is allowed before creation is refused. Only a
	// successful initialization resets the count.
	MaxInitRetries = 3

	// InitTimeout bounds a single initialization attempt, including the
	// wait for pairing.
	InitTimeout = 60 * time.Second

	// ReconnectDelay is how long the service waits before recreating a
	// session after an unexpected disconnect.
	ReconnectDelay = 5 * time.Second

	// RestartSettleDelay is the pause between teardown and recreation
	// when a session is restarted.
	RestartSettleDelay = 2 * time.Second

	// StartAllStagger spaces out device initializations at startup so
	// providers are not hammered all at once.
	StartAllStagger = 3 * time.Second
)

// InboundHandler consumes messages received by a connected session after
// lifecycle filtering. The webhook dispatcher implements this.
type InboundHandler interface {
	HandleInbound(ctx context.Context, device *types.Device, msg provider.IncomingMessage)
}

// DeviceState is a device's persisted configuration merged with whether it
// currently holds a live session.
type DeviceState struct {
	types.Device
	Active bool `json:"active"`
}

// deviceSession is one live binding of a device to a provider session.
// Mutable fields are guarded by the owning Service's mutex.
type deviceSession struct {
	deviceID string
	sess     provider.Session

	done       chan struct{} // closed when the event loop exits
	initResult chan error    // buffered; receives the first init outcome

	status     types.DeviceStatus
	cancelInit context.CancelFunc
	initDone   bool
	closing    bool
}

// Service owns every device session in the process: it creates them, runs
// their event loops, schedules reconnects, and tears them down. All methods
// are safe for concurrent use.
type Service struct {
	store      store.Store
	factory    provider.Factory
	stateDir   string
	driverOpts map[string]string
	state      *storage.Store
	inbound    InboundHandler
	log        zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	active   map[string]*deviceSession
	attempts map[string]int

	// Copies of the package constants so tests can shorten the clock.
	initTimeout    time.Duration
	reconnectDelay time.Duration
	settleDelay    time.Duration
	stagger        time.Duration
}

// NewService creates a session service backed by the given store and
// provider factory. stateDir, when non-empty, is where provider pairing
// state lives; driverOpts are passed through to the driver verbatim.
func NewService(st store.Store, factory provider.Factory, stateDir string, driverOpts map[string]string) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		store:      st,
		factory:    factory,
		stateDir:   stateDir,
		driverOpts: driverOpts,
		log:        logging.Component("session"),
		ctx:        ctx,
		cancel:     cancel,
		active:     make(map[string]*deviceSession),
		attempts:   make(map[string]int),

		initTimeout:    InitTimeout,
		reconnectDelay: ReconnectDelay,
		settleDelay:    RestartSettleDelay,
		stagger:        StartAllStagger,
	}
	if stateDir != "" {
		s.state = storage.New(stateDir)
	}
	return s
}

// SetInboundHandler wires the pipeline that receives inbound messages.
// Call it before any session is created.
func (s *Service) SetInboundHandler(h InboundHandler) {
	s.inbound = h
}

// Create starts a session for the device and blocks until it is connected
// or the attempt fails. The device record is created on first use. A second
// create for an already-active device fails with ErrAlreadyExists, and a
// device that has failed MaxInitRetries times in a row is refused with
// ErrRetryLimitExceeded until a successful initialization clears the count.
func (s *Service) Create(ctx context.Context, deviceID, name string) (*types.Device, error) {
	if deviceID == "" {
		return nil, errors.New("device id is required")
	}

	s.mu.Lock()
	if _, ok := s.active[deviceID]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, deviceID)
	}
	if s.attempts[deviceID] >= MaxInitRetries {
		failed := s.attempts[deviceID]
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s failed %d times", ErrRetryLimitExceeded, deviceID, failed)
	}
	handle := &deviceSession{
		deviceID:   deviceID,
		done:       make(chan struct{}),
		initResult: make(chan error, 1),
		status:     types.StatusInitializing,
	}
	s.active[deviceID] = handle
	s.mu.Unlock()

	device, err := s.ensureDevice(ctx, deviceID, name)
	if err != nil {
		s.dropHandle(handle)
		return nil, err
	}

	s.persistState(ctx, deviceID, store.DeviceUpdate{
		Status:    store.Status(types.StatusInitializing),
		LastError: store.String(""),
	}, types.StatusInitializing, "")
	s.recordActivity(ctx, deviceID, "info", "session initializing")
	s.log.Info().Str("device", deviceID).Msg("Initializing session")

	initCtx, cancel := context.WithTimeout(ctx, s.initTimeout)
	defer cancel()
	s.mu.Lock()
	handle.cancelInit = cancel
	s.mu.Unlock()

	sess, err := s.factory.New(initCtx, provider.Config{
		DeviceID: deviceID,
		Name:     device.Name,
		StateDir: s.stateDir,
		Options:  s.driverOpts,
	})
	if err != nil {
		return nil, s.failInit(handle, fmt.Errorf("create provider session: %w", err))
	}

	s.mu.Lock()
	if handle.closing {
		// A concurrent disconnect won the race before the session was
		// attached; the fresh session never joins the loop.
		s.mu.Unlock()
		_ = sess.Teardown(context.Background())
		return nil, s.failInit(handle, ErrInitializationCanceled)
	}
	handle.sess = sess
	s.mu.Unlock()

	go s.runLoop(handle)

	if err := sess.Connect(initCtx); err != nil {
		return nil, s.failInit(handle, fmt.Errorf("connect: %w", err))
	}

	select {
	case err := <-handle.initResult:
		if err != nil {
			return nil, s.failInit(handle, err)
		}
	case <-initCtx.Done():
		if errors.Is(initCtx.Err(), context.DeadlineExceeded) {
			return nil, s.failInit(handle, ErrInitializationTimeout)
		}
		return nil, s.failInit(handle, ErrInitializationCanceled)
	}

	s.mu.Lock()
	s.attempts[deviceID] = 0
	handle.cancelInit = nil
	s.mu.Unlock()

	s.log.Info().Str("device", deviceID).Msg("Session ready")
	return s.store.Device(ctx, deviceID)
}

// Restart tears the device's session down and recreates it from the
// persisted configuration after a short settle pause. A restart for a
// device with no stored configuration is logged and otherwise a no-op.
func (s *Service) Restart(ctx context.Context, deviceID string) (*types.Device, error) {
	device, err := s.store.Device(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Warn().Str("device", deviceID).Msg("Restart requested for unknown device")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	if err := s.Disconnect(ctx, deviceID); err != nil {
		s.log.Warn().Err(err).Str("device", deviceID).Msg("Teardown during restart failed")
	}
	s.recordActivity(ctx, deviceID, "info", "session restarting")

	select {
	case <-time.After(s.settleDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return s.Create(ctx, deviceID, device.Name)
}

// Disconnect tears down the device's session. Disconnecting a device with
// no active session is a no-op.
func (s *Service) Disconnect(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	handle, ok := s.active[deviceID]
	var sess provider.Session
	if ok {
		delete(s.active, deviceID)
		handle.closing = true
		if handle.cancelInit != nil {
			handle.cancelInit()
			handle.cancelInit = nil
		}
		sess = handle.sess
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if sess != nil {
		if err := sess.Teardown(ctx); err != nil {
			s.log.Warn().Str("device", deviceID).Err(fmt.Errorf("%w: %v", ErrProviderTeardown, err)).Msg("Session teardown reported an error")
		}
		select {
		case <-handle.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.persistState(ctx, deviceID, store.DeviceUpdate{
		Status: store.Status(types.StatusDisconnected),
		QRCode: store.String(""),
	}, types.StatusDisconnected, "disconnected")
	s.recordActivity(ctx, deviceID, "info", "session disconnected")
	s.log.Info().Str("device", deviceID).Msg("Session disconnected")
	return nil
}

// DisconnectAll tears down every active session concurrently and waits for
// all of them to settle. One device's failure does not stop the others; the
// first error, if any, is returned after the fan-in.
func (s *Service) DisconnectAll(ctx context.Context) error {
	s.mu.RLock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	g := new(errgroup.Group)
	for _, deviceID := range ids {
		deviceID := deviceID
		g.Go(func() error {
			if err := s.Disconnect(ctx, deviceID); err != nil {
				return fmt.Errorf("disconnect %s: %w", deviceID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// StartAll recreates sessions for every stored device, pausing between
// devices so they come up staggered. A device that fails to initialize is
// logged and skipped; the remaining devices still start.
func (s *Service) StartAll(ctx context.Context) error {
	devices, err := s.store.Devices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}

	s.log.Info().Int("count", len(devices)).Msg("Starting stored devices")
	for i, device := range devices {
		if i > 0 {
			select {
			case <-time.After(s.stagger):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if _, err := s.Create(ctx, device.ID, device.Name); err != nil {
			s.log.Warn().Str("device", device.ID).Err(err).Msg("Startup initialization failed")
		}
	}
	return nil
}

// Status returns the device's stored configuration merged with whether it
// currently has an active session.
func (s *Service) Status(ctx context.Context, deviceID string) (*DeviceState, error) {
	device, err := s.store.Device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	_, active := s.active[deviceID]
	s.mu.RUnlock()
	return &DeviceState{Device: *device, Active: active}, nil
}

// List returns the state of every stored device.
func (s *Service) List(ctx context.Context) ([]DeviceState, error) {
	devices, err := s.store.Devices(ctx)
	if err != nil {
		return nil, err
	}
	states := make([]DeviceState, 0, len(devices))
	s.mu.RLock()
	for _, device := range devices {
		_, active := s.active[device.ID]
		states = append(states, DeviceState{Device: *device, Active: active})
	}
	s.mu.RUnlock()
	return states, nil
}

// Send delivers an outbound message through the device's session, records
// it, and bumps the sent counter. The device must have an active, connected
// session.
func (s *Service) Send(ctx context.Context, deviceID, to, body string) (*types.Message, error) {
	s.mu.RLock()
	handle, ok := s.active[deviceID]
	var status types.DeviceStatus
	var sess provider.Session
	if ok {
		status = handle.status
		sess = handle.sess
	}
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	if status != types.StatusConnected || sess == nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrSendNotConnected, deviceID, status)
	}

	ack, err := sess.Send(ctx, to, body)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	record := &types.Message{
		ID:         generateID(),
		DeviceID:   deviceID,
		ExternalID: ack.ID,
		Direction:  types.DirectionOutgoing,
		From:       ack.From,
		To:         to,
		Body:       body,
		Type:       "chat",
		Timestamp:  ack.Timestamp,
	}
	// The message is already on the wire; a bookkeeping failure must not
	// turn a delivered send into an error.
	if err := s.store.AppendMessage(ctx, record); err != nil {
		s.log.Error().Err(err).Str("device", deviceID).Msg("Failed to record outbound message")
	}
	if err := s.store.IncrementStat(ctx, deviceID, store.StatMessagesSent); err != nil {
		s.log.Error().Err(err).Str("device", deviceID).Msg("Failed to update sent counter")
	}
	event.Publish(event.Event{Type: event.MessageSent, Data: event.MessageSentData{Info: record}})
	return record, nil
}

// Conversations lists the chats known to the device's connected account.
func (s *Service) Conversations(ctx context.Context, deviceID string) ([]types.Conversation, error) {
	s.mu.RLock()
	handle, ok := s.active[deviceID]
	var sess provider.Session
	if ok {
		sess = handle.sess
	}
	s.mu.RUnlock()

	if !ok || sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
	}
	return sess.Conversations(ctx)
}

// Delete disconnects the device and removes its stored record, messages,
// counters, and provider pairing state.
func (s *Service) Delete(ctx context.Context, deviceID string) error {
	if err := s.Disconnect(ctx, deviceID); err != nil {
		s.log.Warn().Err(err).Str("device", deviceID).Msg("Teardown during delete failed")
	}
	if err := s.store.DeleteDevice(ctx, deviceID); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.attempts, deviceID)
	s.mu.Unlock()

	if s.state != nil {
		if err := s.state.Delete(ctx, deviceID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn().Err(err).Str("device", deviceID).Msg("Failed to remove pairing state")
		}
	}

	event.Publish(event.Event{Type: event.DeviceDeleted, Data: event.DeviceDeletedData{DeviceID: deviceID}})
	s.recordActivity(ctx, deviceID, "info", "device deleted")
	s.log.Info().Str("device", deviceID).Msg("Device deleted")
	return nil
}

// Close stops reconnect scheduling and tears down every active session.
func (s *Service) Close(ctx context.Context) error {
	s.cancel()
	return s.DisconnectAll(ctx)
}

// ensureDevice loads the persisted device, creating the record on first
// use. A non-empty name updates a stale stored name.
func (s *Service) ensureDevice(ctx context.Context, deviceID, name string) (*types.Device, error) {
	device, err := s.store.Device(ctx, deviceID)
	if errors.Is(err, store.ErrNotFound) {
		device = &types.Device{ID: deviceID, Name: name, Status: types.StatusDisconnected}
		if device.Name == "" {
			device.Name = deviceID
		}
		if err := s.store.CreateDevice(ctx, device); err != nil {
			return nil, fmt.Errorf("create device record: %w", err)
		}
		event.Publish(event.Event{Type: event.DeviceCreated, Data: event.DeviceCreatedData{Info: device}})
		return device, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}
	if name != "" && name != device.Name {
		if err := s.store.UpdateDevice(ctx, deviceID, store.DeviceUpdate{Name: store.String(name)}); err == nil {
			device.Name = name
		}
	}
	return device, nil
}

// failInit cleans up after a failed initialization attempt and returns the
// error the caller should surface. Cancellation by a concurrent disconnect
// does not count against the retry budget.
func (s *Service) failInit(handle *deviceSession, initErr error) error {
	deviceID := handle.deviceID
	canceled := errors.Is(initErr, ErrInitializationCanceled)

	s.mu.Lock()
	handle.closing = true
	if handle.cancelInit != nil {
		handle.cancelInit()
		handle.cancelInit = nil
	}
	sess := handle.sess
	authFailed := handle.status == types.StatusAuthFailure
	if s.active[deviceID] == handle {
		delete(s.active, deviceID)
	}
	if !canceled {
		s.attempts[deviceID]++
	}
	attempts := s.attempts[deviceID]
	s.mu.Unlock()

	if sess != nil {
		if err := sess.Teardown(context.Background()); err != nil {
			s.log.Warn().Str("device", deviceID).Err(fmt.Errorf("%w: %v", ErrProviderTeardown, err)).Msg("Session cleanup after init failure reported an error")
		}
		<-handle.done
	}

	// An authentication failure already persisted its terminal status;
	// everything else lands back in disconnected.
	if !authFailed {
		s.persistState(s.ctx, deviceID, store.DeviceUpdate{
			Status:    store.Status(types.StatusDisconnected),
			QRCode:    store.String(""),
			LastError: store.String(initErr.Error()),
		}, types.StatusDisconnected, initErr.Error())
	}

	s.log.Warn().Str("device", deviceID).Int("attempts", attempts).Err(initErr).Msg("Session initialization failed")
	s.recordActivity(s.ctx, deviceID, "error", "session initialization failed: "+initErr.Error())
	return initErr
}

// dropHandle removes a placeholder registration that never got a session.
func (s *Service) dropHandle(handle *deviceSession) {
	s.mu.Lock()
	if s.active[handle.deviceID] == handle {
		delete(s.active, handle.deviceID)
	}
	s.mu.Unlock()
}

// persistState writes a lifecycle transition to the store and publishes it
// on the event bus. A record deleted out from under the session is not an
// error worth surfacing.
func (s *Service) persistState(ctx context.Context, deviceID string, upd store.DeviceUpdate, status types.DeviceStatus, reason string) {
	if err := s.store.UpdateDevice(ctx, deviceID, upd); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error().Err(err).Str("device", deviceID).Msg("Failed to persist device state")
	}
	event.Publish(event.Event{Type: event.DeviceState, Data: event.DeviceStateData{
		DeviceID: deviceID,
		Status:   status,
		Reason:   reason,
	}})
}

func (s *Service) recordActivity(ctx context.Context, deviceID, level, message string) {
	if err := s.store.AppendActivity(ctx, deviceID, level, message); err != nil {
		s.log.Error().Err(err).Str("device", deviceID).Msg("Failed to record activity")
	}
}

// generateID returns a sortable unique identifier for message records.
func generateID() string {
	return ulid.Make().String()
}
