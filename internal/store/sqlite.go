package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wagate/wagate/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

const defaultQueryLimit = 50

// SQLite is the Store implementation backed by mattn/go-sqlite3.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite store at path.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLite) init() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

const deviceColumns = `id, name, phone, status, qr_code, last_error,
	webhook_url, webhook_enabled, webhook_response_enabled,
	webhook_body_template, webhook_response_path, created_at, updated_at`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (*types.Device, error) {
	var d types.Device
	var status string
	err := row.Scan(
		&d.ID, &d.Name, &d.Phone, &status, &d.QRCode, &d.LastError,
		&d.Webhook.URL, &d.Webhook.Enabled, &d.Webhook.ResponseEnabled,
		&d.Webhook.BodyTemplate, &d.Webhook.ResponsePath,
		&d.Time.Created, &d.Time.Updated,
	)
	if err != nil {
		return nil, err
	}
	d.Status = types.DeviceStatus(status)
	return &d, nil
}

// CreateDevice inserts a new device row.
func (s *SQLite) CreateDevice(ctx context.Context, d *types.Device) error {
	now := time.Now().UnixMilli()
	if d.Time.Created == 0 {
		d.Time.Created = now
	}
	d.Time.Updated = now
	if d.Status == "" {
		d.Status = types.StatusDisconnected
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO devices (
			id, name, phone, status, qr_code, last_error,
			webhook_url, webhook_enabled, webhook_response_enabled,
			webhook_body_template, webhook_response_path,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Phone, string(d.Status), d.QRCode, d.LastError,
		d.Webhook.URL, d.Webhook.Enabled, d.Webhook.ResponseEnabled,
		d.Webhook.BodyTemplate, d.Webhook.ResponsePath,
		d.Time.Created, d.Time.Updated,
	)
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}
	return nil
}

// Device returns one device or ErrNotFound.
func (s *SQLite) Device(ctx context.Context, id string) (*types.Device, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)

	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	return d, nil
}

// Devices returns all devices ordered by creation time.
func (s *SQLite) Devices(ctx context.Context) ([]*types.Device, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []*types.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}
	return devices, nil
}

// UpdateDevice applies a partial update; nil fields are left unchanged.
func (s *SQLite) UpdateDevice(ctx context.Context, id string, upd DeviceUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UnixMilli()}

	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, *upd.Phone)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.QRCode != nil {
		sets = append(sets, "qr_code = ?")
		args = append(args, *upd.QRCode)
	}
	if upd.LastError != nil {
		sets = append(sets, "last_error = ?")
		args = append(args, *upd.LastError)
	}
	if upd.Webhook != nil {
		sets = append(sets,
			"webhook_url = ?", "webhook_enabled = ?", "webhook_response_enabled = ?",
			"webhook_body_template = ?", "webhook_response_path = ?")
		args = append(args,
			upd.Webhook.URL, upd.Webhook.Enabled, upd.Webhook.ResponseEnabled,
			upd.Webhook.BodyTemplate, upd.Webhook.ResponsePath)
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE devices SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDevice removes a device; messages and stats cascade.
func (s *SQLite) DeleteDevice(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendMessage records one inbound or outbound message.
func (s *SQLite) AppendMessage(ctx context.Context, m *types.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (
			id, device_id, external_id, direction,
			sender, recipient, body, type, timestamp, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.DeviceID, m.ExternalID, string(m.Direction),
		m.From, m.To, m.Body, m.Type, m.Timestamp, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit messages for a device, newest first.
func (s *SQLite) RecentMessages(ctx context.Context, deviceID string, limit int) ([]*types.Message, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, external_id, direction, sender, recipient, body, type, timestamp
		FROM messages WHERE device_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*types.Message
	for rows.Next() {
		var m types.Message
		var direction string
		if err := rows.Scan(&m.ID, &m.DeviceID, &m.ExternalID, &direction,
			&m.From, &m.To, &m.Body, &m.Type, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Direction = types.MessageDirection(direction)
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

// IncrementStat adds one to a named counter for a device.
func (s *SQLite) IncrementStat(ctx context.Context, deviceID, counter string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_stats (device_id, counter, value) VALUES (?, ?, 1)
		ON CONFLICT(device_id, counter) DO UPDATE SET value = value + 1`,
		deviceID, counter)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", counter, err)
	}
	return nil
}

// Stats returns the aggregated counters for a device.
func (s *SQLite) Stats(ctx context.Context, deviceID string) (*types.DeviceStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT counter, value FROM device_stats WHERE device_id = ?`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := &types.DeviceStats{DeviceID: deviceID}
	for rows.Next() {
		var counter string
		var value int64
		if err := rows.Scan(&counter, &value); err != nil {
			return nil, fmt.Errorf("failed to scan stat: %w", err)
		}
		switch counter {
		case StatMessagesSent:
			stats.MessagesSent = value
		case StatMessagesReceived:
			stats.MessagesReceived = value
		case StatWebhookCalls:
			stats.WebhookCalls = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats: %w", err)
	}
	return stats, nil
}

// AppendActivity records one activity log line for a device.
func (s *SQLite) AppendActivity(ctx context.Context, deviceID, level, message string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_log (device_id, level, message, created_at)
		VALUES (?, ?, ?, ?)`,
		deviceID, level, message, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// RecentActivity returns up to limit activity records, newest first.
func (s *SQLite) RecentActivity(ctx context.Context, deviceID string, limit int) ([]*types.ActivityRecord, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, level, message, created_at
		FROM activity_log WHERE device_id = ?
		ORDER BY id DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var records []*types.ActivityRecord
	for rows.Next() {
		var r types.ActivityRecord
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.Level, &r.Message, &r.Time); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity: %w", err)
	}
	return records, nil
}
