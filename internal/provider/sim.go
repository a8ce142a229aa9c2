package provider

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wagate/wagate/internal/storage"
	"github.com/wagate/wagate/pkg/types"
)

const simEventBuffer = 16

// simState is the pairing state the sim driver persists between restarts.
type simState struct {
	AccountID string `json:"accountID"`
	Phone     string `json:"phone"`
	Name      string `json:"name"`
	PairedAt  int64  `json:"pairedAt"`
}

type simFactory struct{}

// NewSimFactory returns the built-in simulator driver. It pairs without a
// real backend: a QR code is emitted, the scan is simulated after a
// configurable delay, and the paired identity is persisted under the state
// directory so later connects restore instead of pairing again.
//
// Options: qr_delay, pair_delay, echo ("true" replays outbound messages as
// inbound ones), echo_delay, fail ("auth" simulates a credential rejection).
func NewSimFactory() Factory {
	return simFactory{}
}

func (simFactory) New(ctx context.Context, cfg Config) (Session, error) {
	if cfg.DeviceID == "" {
		return nil, errors.New("sim driver: device id is required")
	}

	qrDelay, err := time.ParseDuration(cfg.Option("qr_delay", "250ms"))
	if err != nil {
		return nil, fmt.Errorf("sim driver: bad qr_delay: %w", err)
	}
	pairDelay, err := time.ParseDuration(cfg.Option("pair_delay", "2s"))
	if err != nil {
		return nil, fmt.Errorf("sim driver: bad pair_delay: %w", err)
	}
	echoDelay, err := time.ParseDuration(cfg.Option("echo_delay", "150ms"))
	if err != nil {
		return nil, fmt.Errorf("sim driver: bad echo_delay: %w", err)
	}

	s := &simSession{
		cfg:       cfg,
		qrDelay:   qrDelay,
		pairDelay: pairDelay,
		echoDelay: echoDelay,
		echo:      cfg.Option("echo", "false") == "true",
		failMode:  cfg.Option("fail", ""),
		events:    make(chan Event, simEventBuffer),
		stop:      make(chan struct{}),
		peers:     make(map[string]int64),
	}
	if cfg.StateDir != "" {
		s.state = storage.New(cfg.StateDir)
	}
	return s, nil
}

// simSession simulates a single device connection in-process.
type simSession struct {
	cfg       Config
	state     *storage.Store // nil when no state dir was given
	qrDelay   time.Duration
	pairDelay time.Duration
	echoDelay time.Duration
	echo      bool
	failMode  string

	events chan Event
	stop   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	mu       sync.Mutex
	started  bool
	closing  bool
	ready    bool
	identity *AccountIdentity
	peers    map[string]int64 // chat address -> last activity, unix seconds
}

var (
	_ Factory = simFactory{}
	_ Session = (*simSession)(nil)
)

func (s *simSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return errors.New("sim driver: session closed")
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("sim driver: session already started")
	}
	s.started = true
	s.mu.Unlock()

	restored, err := s.loadIdentity(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return errors.New("sim driver: session closed")
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(restored)
	return nil
}

func (s *simSession) run(restored *AccountIdentity) {
	defer s.wg.Done()

	s.emit(StateChangeEvent{State: "opening"})

	if restored != nil {
		s.emit(LoadingEvent{Percent: 50, Label: "restoring session"})
		if !s.sleep(s.qrDelay) {
			return
		}
		s.emit(LoadingEvent{Percent: 100, Label: "restored"})
		s.finishLogin(*restored)
		return
	}

	if s.failMode == "auth" {
		if !s.sleep(s.qrDelay) {
			return
		}
		s.emit(AuthFailureEvent{Reason: "credentials rejected"})
		return
	}

	if !s.sleep(s.qrDelay) {
		return
	}
	s.emit(QRCodeEvent{Code: "1@" + ulid.Make().String()})

	// Simulated scan.
	if !s.sleep(s.pairDelay) {
		return
	}
	identity := s.newIdentity()
	s.saveIdentity(identity)
	s.finishLogin(identity)
}

func (s *simSession) finishLogin(identity AccountIdentity) {
	s.mu.Lock()
	s.identity = &identity
	s.ready = true
	s.mu.Unlock()

	s.emit(AuthenticatedEvent{})
	s.emit(ReadyEvent{Account: identity})
}

func (s *simSession) Teardown(ctx context.Context) error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.ready = false
		s.mu.Unlock()

		close(s.stop)
		s.wg.Wait()
		close(s.events)
	})
	return nil
}

func (s *simSession) Send(ctx context.Context, to, body string) (*SentMessage, error) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil, errors.New("sim driver: session closed")
	}
	if !s.ready || s.identity == nil {
		s.mu.Unlock()
		return nil, errors.New("sim driver: not connected")
	}
	from := s.identity.ID
	now := time.Now().Unix()
	s.peers[to] = now
	echo := s.echo
	if echo {
		s.wg.Add(1)
	}
	s.mu.Unlock()

	if echo {
		go s.deliverEcho(to, body)
	}

	return &SentMessage{
		ID:        ulid.Make().String(),
		From:      from,
		To:        to,
		Timestamp: now,
	}, nil
}

// deliverEcho replays an outbound message back as an inbound one from the
// peer, so the inbound pipeline can be exercised without a real backend.
func (s *simSession) deliverEcho(peer, body string) {
	defer s.wg.Done()

	if !s.sleep(s.echoDelay) {
		return
	}

	s.mu.Lock()
	identity := s.identity
	s.mu.Unlock()
	if identity == nil {
		return
	}

	s.emit(MessageEvent{Message: IncomingMessage{
		ID:         ulid.Make().String(),
		From:       peer,
		To:         identity.ID,
		Body:       body,
		Type:       "chat",
		Timestamp:  time.Now().Unix(),
		SenderName: localPart(peer),
		ChatName:   localPart(peer),
	}})
}

func (s *simSession) Conversations(ctx context.Context) ([]types.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || s.identity == nil {
		return nil, errors.New("sim driver: not connected")
	}

	convs := make([]types.Conversation, 0, len(s.peers)+1)
	convs = append(convs, types.Conversation{
		ID:        s.identity.ID,
		Name:      s.identity.Name,
		Timestamp: time.Now().Unix(),
	})
	for peer, last := range s.peers {
		convs = append(convs, types.Conversation{
			ID:        peer,
			Name:      localPart(peer),
			IsGroup:   strings.HasSuffix(peer, "@g.us"),
			Timestamp: last,
		})
	}
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].Timestamp != convs[j].Timestamp {
			return convs[i].Timestamp > convs[j].Timestamp
		}
		return convs[i].ID < convs[j].ID
	})
	return convs, nil
}

func (s *simSession) Events() <-chan Event {
	return s.events
}

// emit delivers an event unless the session is stopping.
func (s *simSession) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.stop:
	}
}

// sleep waits for d and reports false if the session stopped first.
func (s *simSession) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stop:
		return false
	}
}

func (s *simSession) loadIdentity(ctx context.Context) (*AccountIdentity, error) {
	if s.state == nil {
		return nil, nil
	}
	var saved simState
	err := s.state.Get(ctx, s.cfg.DeviceID, &saved)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sim driver: load state: %w", err)
	}
	return &AccountIdentity{ID: saved.AccountID, Phone: saved.Phone, Name: saved.Name}, nil
}

func (s *simSession) saveIdentity(identity AccountIdentity) {
	if s.state == nil {
		return
	}
	// A failed write only costs a re-pair on the next connect.
	_ = s.state.Put(context.Background(), s.cfg.DeviceID, simState{
		AccountID: identity.ID,
		Phone:     identity.Phone,
		Name:      identity.Name,
		PairedAt:  time.Now().Unix(),
	})
}

// newIdentity derives a stable phone number from the device ID so repeated
// pairings of the same device land on the same account.
func (s *simSession) newIdentity() AccountIdentity {
	h := fnv.New32a()
	h.Write([]byte(s.cfg.DeviceID))
	phone := fmt.Sprintf("55%09d", h.Sum32()%1_000_000_000)

	name := s.cfg.Name
	if name == "" {
		name = "sim-" + phone
	}
	return AccountIdentity{ID: phone + "@c.us", Phone: phone, Name: name}
}

func localPart(addr string) string {
	if i := strings.IndexByte(addr, '@'); i >= 0 {
		return addr[:i]
	}
	return addr
}
