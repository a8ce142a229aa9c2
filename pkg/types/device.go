// Package types provides the core data types for the wagate server.
package types

// DeviceStatus is the lifecycle state of a device session.
type DeviceStatus string

const (
	StatusDisconnected DeviceStatus = "disconnected"
	StatusInitializing DeviceStatus = "initializing"
	StatusQRReady      DeviceStatus = "qr_ready"
	StatusConnected    DeviceStatus = "connected"
	StatusAuthFailure  DeviceStatus = "auth_failure"
)

// Device represents a registered messaging device and its persisted state.
type Device struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone,omitempty"`
	Status    DeviceStatus  `json:"status"`
	QRCode    string        `json:"qrCode,omitempty"`
	LastError string        `json:"lastError,omitempty"`
	Webhook   WebhookConfig `json:"webhook"`
	Time      DeviceTime    `json:"time"`
}

// DeviceTime contains timestamps for a device.
type DeviceTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// WebhookConfig holds the per-device webhook forwarding settings.
type WebhookConfig struct {
	URL             string `json:"url,omitempty"`
	Enabled         bool   `json:"enabled"`
	ResponseEnabled bool   `json:"responseEnabled"`
	BodyTemplate    string `json:"bodyTemplate,omitempty"`
	ResponsePath    string `json:"responsePath,omitempty"`
}

// DeviceStats aggregates the per-device counters.
type DeviceStats struct {
	DeviceID         string `json:"deviceID"`
	MessagesSent     int64  `json:"messagesSent"`
	MessagesReceived int64  `json:"messagesReceived"`
	WebhookCalls     int64  `json:"webhookCalls"`
}

// ActivityRecord is one append-only activity log entry for a device.
type ActivityRecord struct {
	ID       int64  `json:"id"`
	DeviceID string `json:"deviceID"`
	Level    string `json:"level"` // "info" | "warn" | "error"
	Message  string `json:"message"`
	Time     int64  `json:"time"`
}

// Conversation is a chat thread visible to a connected device.
type Conversation struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	IsGroup   bool   `json:"isGroup"`
	Unread    int    `json:"unread,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}
