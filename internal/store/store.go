// Package store persists device configs, message history, per-device
// counters, and activity logs.
package store

import (
	"context"
	"errors"

	"github.com/wagate/wagate/pkg/types"
)

// ErrNotFound is returned when a device does not exist.
var ErrNotFound = errors.New("not found")

// Counter names tracked per device.
const (
	StatMessagesSent     = "messages_sent"
	StatMessagesReceived = "messages_received"
	StatWebhookCalls     = "webhook_calls"
)

// Store is the persistence contract used by the orchestrator, the webhook
// pipeline, and the HTTP handlers.
type Store interface {
	// CreateDevice inserts a new device row. The ID must be unique.
	CreateDevice(ctx context.Context, d *types.Device) error
	// Device returns one device or ErrNotFound.
	Device(ctx context.Context, id string) (*types.Device, error)
	// Devices returns all devices ordered by creation time.
	Devices(ctx context.Context) ([]*types.Device, error)
	// UpdateDevice applies a partial update; nil fields are left unchanged.
	UpdateDevice(ctx context.Context, id string, upd DeviceUpdate) error
	// DeleteDevice removes a device and its messages and stats.
	DeleteDevice(ctx context.Context, id string) error

	// AppendMessage records one inbound or outbound message.
	AppendMessage(ctx context.Context, m *types.Message) error
	// RecentMessages returns up to limit messages for a device, newest first.
	RecentMessages(ctx context.Context, deviceID string, limit int) ([]*types.Message, error)

	// IncrementStat adds one to a named counter for a device.
	IncrementStat(ctx context.Context, deviceID, counter string) error
	// Stats returns the aggregated counters for a device; missing counters
	// read as zero.
	Stats(ctx context.Context, deviceID string) (*types.DeviceStats, error)

	// AppendActivity records one activity log line for a device.
	AppendActivity(ctx context.Context, deviceID, level, message string) error
	// RecentActivity returns up to limit activity records, newest first.
	RecentActivity(ctx context.Context, deviceID string, limit int) ([]*types.ActivityRecord, error)

	Close() error
}

// DeviceUpdate is a partial update of a device row.
type DeviceUpdate struct {
	Name      *string
	Phone     *string
	Status    *types.DeviceStatus
	QRCode    *string
	LastError *string
	Webhook   *types.WebhookConfig
}

// String returns a pointer to s, for building DeviceUpdate values.
func String(s string) *string { return &s }

// Status returns a pointer to st, for building DeviceUpdate values.
func Status(st types.DeviceStatus) *types.DeviceStatus { return &st }
