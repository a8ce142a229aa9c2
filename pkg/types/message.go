package types

// MessageDirection distinguishes inbound from outbound message records.
type MessageDirection string

const (
	DirectionIncoming MessageDirection = "incoming"
	DirectionOutgoing MessageDirection = "outgoing"
)

// Message is a stored chat message record for a device.
type Message struct {
	ID         string           `json:"id"`
	DeviceID   string           `json:"deviceID"`
	ExternalID string           `json:"externalID,omitempty"` // provider-side message id
	Direction  MessageDirection `json:"direction"`
	From       string           `json:"from"`
	To         string           `json:"to"`
	Body       string           `json:"body"`
	Type       string           `json:"type,omitempty"` // "chat" | "image" | ...
	Timestamp  int64            `json:"timestamp"`      // unix seconds, provider clock
}
