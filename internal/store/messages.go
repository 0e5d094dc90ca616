package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nexushq/nexus/internal/api"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// ReplaceMessages swaps the cached conversation for the given one,
// preserving slice order. Tentative rows (sending or failed, keyed by
// client id) survive the replace unless the incoming list carries their
// client id; a failed send must outlive history refreshes.
func (db *DB) ReplaceMessages(msgs []api.ChatMessage) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE client_id IS NULL OR delivery NOT IN (?, ?)`,
		api.DeliverySending, api.DeliveryFailed); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	for _, m := range msgs {
		if m.ClientID != "" {
			if _, err := tx.Exec(`DELETE FROM messages WHERE client_id = ?`, m.ClientID); err != nil {
				return fmt.Errorf("clear message %s: %w", m.ClientID, err)
			}
		}
		if err := insertMessage(tx, &m); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AppendMessage adds one message to the end of the cached conversation.
func (db *DB) AppendMessage(m *api.ChatMessage) error {
	return insertMessage(db.DB, m)
}

// UpdateDelivery updates the delivery state of a tentative message,
// matched by its client-generated id. Optionally records the server id
// the message was confirmed as.
func (db *DB) UpdateDelivery(clientID, delivery string, serverID int64) error {
	var sid *int64
	if serverID != 0 {
		sid = &serverID
	}
	res, err := db.Exec(`UPDATE messages SET delivery = ?, server_id = COALESCE(?, server_id) WHERE client_id = ?`,
		delivery, sid, clientID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("no message with client id %q", clientID)
	}
	return nil
}

// ListMessages returns the cached conversation in insertion order.
func (db *DB) ListMessages() ([]api.ChatMessage, error) {
	rows, err := db.Query(`SELECT payload, delivery FROM messages ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []api.ChatMessage
	for rows.Next() {
		var payload, delivery string
		if err := rows.Scan(&payload, &delivery); err != nil {
			return nil, err
		}
		var m api.ChatMessage
		if err := json.Unmarshal([]byte(payload), &m); err != nil {
			return nil, fmt.Errorf("decode cached message: %w", err)
		}
		m.Delivery = delivery
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ClearMessages empties the cached conversation.
func (db *DB) ClearMessages() error {
	_, err := db.Exec(`DELETE FROM messages`)
	return err
}

func insertMessage(e execer, m *api.ChatMessage) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	var serverID *int64
	if m.ID != 0 {
		serverID = &m.ID
	}
	var clientID *string
	if m.ClientID != "" {
		clientID = &m.ClientID
	}
	_, err = e.Exec(`
		INSERT INTO messages (server_id, client_id, role, content, delivery, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		serverID, clientID, m.Role, m.Content, m.Delivery, string(payload), time.Now().UnixMilli())
	return err
}
