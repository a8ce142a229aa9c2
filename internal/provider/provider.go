package provider

import (
	"context"
	"strings"

	"github.com/wagate/wagate/pkg/types"
)

// Config carries everything a driver needs to build a session for one device.
type Config struct {
	// DeviceID is the gateway's identifier for the device.
	DeviceID string

	// Name is the human-readable device label.
	Name string

	// StateDir is a directory the driver may use to persist credentials and
	// pairing state across restarts. The directory is shared between devices;
	// drivers must key their files by DeviceID.
	StateDir string

	// Options holds free-form driver settings from the configuration file.
	Options map[string]string
}

// Option returns a driver option with a fallback default.
func (c Config) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}

// Factory builds sessions for a single driver.
type Factory interface {
	// New creates a session for the device described by cfg. The session is
	// inert until Connect is called.
	New(ctx context.Context, cfg Config) (Session, error)
}

// FactoryFunc adapts a plain function to the Factory interface.
type FactoryFunc func(ctx context.Context, cfg Config) (Session, error)

func (f FactoryFunc) New(ctx context.Context, cfg Config) (Session, error) {
	return f(ctx, cfg)
}

// Session is a live connection attempt for one device.
type Session interface {
	// Connect starts pairing or credential restore and returns once the
	// attempt is underway. Progress and the final outcome arrive on Events.
	Connect(ctx context.Context) error

	// Teardown stops all background work and closes the event channel.
	// It is idempotent.
	Teardown(ctx context.Context) error

	// Send delivers a message to the given chat address.
	Send(ctx context.Context, to, body string) (*SentMessage, error)

	// Conversations lists the chats known to the logged-in account.
	Conversations(ctx context.Context) ([]types.Conversation, error)

	// Events returns the channel lifecycle and message events arrive on.
	// The channel is closed by Teardown.
	Events() <-chan Event
}

// AccountIdentity describes the account a session is logged in as.
type AccountIdentity struct {
	ID    string `json:"id"` // chat address, e.g. "5511999990001@c.us"
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// SentMessage is the driver's acknowledgement for an outbound message.
type SentMessage struct {
	ID        string
	From      string
	To        string
	Timestamp int64 // unix seconds
}

// IncomingMessage is an inbound message as delivered by the backend.
type IncomingMessage struct {
	ID          string
	From        string
	To          string
	Body        string
	Type        string // "chat", "image", ...
	Timestamp   int64  // unix seconds
	SenderName  string
	ChatName    string
	HasMedia    bool
	IsForwarded bool
	IsStatus    bool
	IsBroadcast bool
}

// IsGroup reports whether the message arrived in a group chat. The wire
// format encodes this in the sender address suffix.
func (m IncomingMessage) IsGroup() bool {
	return strings.HasSuffix(m.From, "@g.us")
}
