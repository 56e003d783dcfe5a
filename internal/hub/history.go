package hub

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// HistoryEntry is one processed action
type HistoryEntry struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Action    string    `json:"action"`
	Success   bool      `json:"success"`
	State     string    `json:"device_state,omitempty"`
	Error     string    `json:"error,omitempty"`
	Elapsed   int64     `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// History persists processed actions in SQLite
type History struct {
	db         *sql.DB
	maxEntries int
}

// OpenHistory opens or creates the history database at path
func OpenHistory(path string, maxEntries int) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if maxEntries <= 0 {
		maxEntries = DefaultHistorySize
	}

	history := &History{db: db, maxEntries: maxEntries}
	if err := history.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return history, nil
}

func (h *History) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			action TEXT NOT NULL,
			success INTEGER NOT NULL,
			device_state TEXT,
			error TEXT,
			elapsed_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_device_id ON actions(device_id, id)`,
	}

	for _, query := range queries {
		if _, err := h.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Record stores an entry and trims the device history to maxEntries
func (h *History) Record(ctx context.Context, entry HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO actions (device_id, action, success, device_state, error, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.DeviceID, entry.Action, entry.Success, entry.State, entry.Error,
		entry.Elapsed, entry.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record action: %w", err)
	}

	_, err = h.db.ExecContext(ctx,
		`DELETE FROM actions WHERE device_id = ? AND id NOT IN (
			SELECT id FROM actions WHERE device_id = ? ORDER BY id DESC LIMIT ?
		)`, entry.DeviceID, entry.DeviceID, h.maxEntries)
	if err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}

	return nil
}

// Recent returns up to limit entries for a device, newest first
func (h *History) Recent(ctx context.Context, deviceID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > h.maxEntries {
		limit = h.maxEntries
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, device_id, action, success, COALESCE(device_state, ''), COALESCE(error, ''), elapsed_ms, created_at
		 FROM actions WHERE device_id = ? ORDER BY id DESC LIMIT ?`, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var entry HistoryEntry
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.DeviceID, &entry.Action, &entry.Success,
			&entry.State, &entry.Error, &entry.Elapsed, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entry.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Forget deletes the history of a device
func (h *History) Forget(ctx context.Context, deviceID string) error {
	if _, err := h.db.ExecContext(ctx, `DELETE FROM actions WHERE device_id = ?`, deviceID); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// Close closes the database
func (h *History) Close() error {
	return h.db.Close()
}
