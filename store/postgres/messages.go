// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/store"
)

func queueKey(prefix, hash string) string { return prefix + ":" + hash }

// StoreMessage implements store.MessageStore via a single transaction,
// the SQL analogue of the store_message stored procedure (spec §4.3).
func (s *Store) StoreMessage(ctx context.Context, msg *store.Message) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin store_message tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO messages (id, blob, size, to_did, to_hash, from_did, from_hash, stored_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING`,
		msg.ID, msg.Blob, msg.Size, msg.ToDID, msg.ToHash, msg.FromDID, msg.FromHash, msg.StoredAt, msg.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store: insert message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// msg.ID already stored: store_message is idempotent (spec §3,
		// "exactly once... in exactly one RECEIVE_Q stream"), so a
		// duplicate enqueue is a silent no-op rather than a second
		// stream entry or doubled stats.
		return tx.Commit(ctx)
	}

	now := time.Now()
	streamID := strconv.FormatInt(now.UnixMilli(), 10) + "-0"
	if _, err := tx.Exec(ctx, `INSERT INTO stream_entries (stream_id, queue_key, message_id, created_at) VALUES ($1,$2,$3,$4)`,
		streamID, queueKey("RECEIVE_Q", msg.ToHash), msg.ID, now); err != nil {
		return fmt.Errorf("store: enqueue receive: %w", err)
	}

	if msg.FromHash != "" && msg.FromDID != "" {
		sendStreamID := strconv.FormatInt(now.UnixMilli(), 10) + "-1"
		if _, err := tx.Exec(ctx, `INSERT INTO stream_entries (stream_id, queue_key, message_id, created_at) VALUES ($1,$2,$3,$4)`,
			sendStreamID, queueKey("SEND_Q", msg.FromHash), msg.ID, now); err != nil {
			return fmt.Errorf("store: enqueue send: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO stats (did_hash, received_bytes, received_count, deleted_count) VALUES ('ADMIN',$1,1,0)
		ON CONFLICT (did_hash) DO UPDATE SET received_bytes = stats.received_bytes + $1, received_count = stats.received_count + 1`,
		msg.Size); err != nil {
		return fmt.Errorf("store: bump global stats: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO stats (did_hash, received_bytes, received_count, deleted_count) VALUES ($1,$2,1,0)
		ON CONFLICT (did_hash) DO UPDATE SET received_bytes = stats.received_bytes + $2, received_count = stats.received_count + 1`,
		msg.ToHash, msg.Size); err != nil {
		return fmt.Errorf("store: bump recipient stats: %w", err)
	}

	return tx.Commit(ctx)
}

// DeleteMessage implements store.MessageStore.
func (s *Store) DeleteMessage(ctx context.Context, msgID, didHash string) error {
	var toHash, fromHash string
	err := s.pool.QueryRow(ctx, `SELECT to_hash, from_hash FROM messages WHERE id = $1`, msgID).Scan(&toHash, &fromHash)
	if err == pgx.ErrNoRows {
		return merr.New(merr.RequestDataError, "store: message not found")
	}
	if err != nil {
		return fmt.Errorf("store: lookup message for delete: %w", err)
	}
	if didHash != store.AdminSentinel && didHash != toHash && didHash != fromHash {
		return merr.New(merr.PermissionError, "store: did-hash is neither sender nor recipient")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin delete_message tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE id = $1`, msgID); err != nil {
		return fmt.Errorf("store: delete message: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM stream_entries WHERE message_id = $1`, msgID); err != nil {
		return fmt.Errorf("store: delete stream entries: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE stats SET deleted_count = deleted_count + 1 WHERE did_hash IN ('ADMIN', $1)`, toHash); err != nil {
		return fmt.Errorf("store: bump delete stats: %w", err)
	}

	return tx.Commit(ctx)
}

// GetMessage implements store.MessageStore.
func (s *Store) GetMessage(ctx context.Context, msgID string) (*store.Message, error) {
	var m store.Message
	err := s.pool.QueryRow(ctx, `
		SELECT id, blob, size, to_did, to_hash, from_did, from_hash, stored_at, expires_at
		FROM messages WHERE id = $1`, msgID).Scan(
		&m.ID, &m.Blob, &m.Size, &m.ToDID, &m.ToHash, &m.FromDID, &m.FromHash, &m.StoredAt, &m.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, merr.New(merr.RequestDataError, "store: message not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store: get message: %w", err)
	}
	return &m, nil
}

// DueMessageIDs implements store.ExpiryStore.
func (s *Store) DueMessageIDs(ctx context.Context, asOf time.Time, limit int) ([]string, error) {
	query := `SELECT id FROM messages WHERE expires_at <= $1 ORDER BY expires_at ASC`
	args := []any{asOf}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: due messages: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan due message: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
