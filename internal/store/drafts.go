package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexushq/nexus/internal/api"
)

// ReplaceDrafts swaps the cached draft set for the given one,
// preserving slice order, in a single transaction.
func (db *DB) ReplaceDrafts(drafts []api.Draft) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM drafts`); err != nil {
		return fmt.Errorf("clear drafts: %w", err)
	}

	now := time.Now().UnixMilli()
	for i, d := range drafts {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode draft %d: %w", d.ID, err)
		}
		var scheduled *int64
		if d.ScheduledFor != nil {
			ms := d.ScheduledFor.UnixMilli()
			scheduled = &ms
		}
		if _, err := tx.Exec(`
			INSERT INTO drafts (id, content, platform, status, scheduled_for, payload, position, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Content, d.Platform, d.Status, scheduled, string(payload), i, now); err != nil {
			return fmt.Errorf("insert draft %d: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// UpsertDraft inserts or updates one cached draft without disturbing
// the positions of the others. New drafts are placed first.
func (db *DB) UpsertDraft(d *api.Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft %d: %w", d.ID, err)
	}
	var scheduled *int64
	if d.ScheduledFor != nil {
		ms := d.ScheduledFor.UnixMilli()
		scheduled = &ms
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO drafts (id, content, platform, status, scheduled_for, payload, position, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, COALESCE((SELECT MIN(position) FROM drafts), 1) - 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			scheduled_for = excluded.scheduled_for,
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		d.ID, d.Content, d.Platform, d.Status, scheduled, string(payload), now)
	return err
}

// ListDrafts returns cached drafts in their stored order.
func (db *DB) ListDrafts() ([]api.Draft, error) {
	rows, err := db.Query(`SELECT payload FROM drafts ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var drafts []api.Draft
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var d api.Draft
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("decode cached draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}
