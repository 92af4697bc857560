// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"
	"fmt"

	"github.com/didcomm-x/mediator/store"
)

func folderKey(folder store.Folder, didHash string) string {
	if folder == store.FolderSend {
		return queueKey("SEND_Q", didHash)
	}
	return queueKey("RECEIVE_Q", didHash)
}

func (s *Store) listQueue(ctx context.Context, key, after string, limit int) (store.Page, error) {
	query := `SELECT stream_id, message_id FROM stream_entries WHERE queue_key = $1`
	args := []any{key}
	if after != "" && after != "-" {
		query += ` AND stream_id > $2 ORDER BY stream_id ASC LIMIT $3`
		args = append(args, after, limit)
	} else {
		query += ` ORDER BY stream_id ASC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return store.Page{}, fmt.Errorf("store: list queue %s: %w", key, err)
	}
	defer rows.Close()

	var page store.Page
	for rows.Next() {
		var e store.StreamEntry
		if err := rows.Scan(&e.StreamID, &e.MessageID); err != nil {
			return store.Page{}, fmt.Errorf("store: scan queue entry: %w", err)
		}
		page.Items = append(page.Items, e)
	}
	if err := rows.Err(); err != nil {
		return store.Page{}, err
	}
	if len(page.Items) > 0 {
		page.Cursor = page.Items[len(page.Items)-1].StreamID
	}
	return page, nil
}

// FetchMessages implements store.StreamStore.
func (s *Store) FetchMessages(ctx context.Context, didHash, startID string, limit int, policy store.FetchDeletePolicy) (store.Page, error) {
	key := queueKey("RECEIVE_Q", didHash)
	page, err := s.listQueue(ctx, key, startID, limit)
	if err != nil {
		return store.Page{}, err
	}
	if policy == store.FetchDeletePolicyOnReceive {
		for _, e := range page.Items {
			if _, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, e.MessageID); err != nil {
				return store.Page{}, fmt.Errorf("store: delete fetched message: %w", err)
			}
			if _, err := s.pool.Exec(ctx, `DELETE FROM stream_entries WHERE queue_key = $1 AND stream_id = $2`, key, e.StreamID); err != nil {
				return store.Page{}, fmt.Errorf("store: delete fetched entry: %w", err)
			}
		}
	}
	return page, nil
}

// ListMessages implements store.StreamStore.
func (s *Store) ListMessages(ctx context.Context, didHash string, folder store.Folder, cursor string, limit int) (store.Page, error) {
	return s.listQueue(ctx, folderKey(folder, didHash), cursor, limit)
}

// PurgeMessages implements store.StreamStore.
func (s *Store) PurgeMessages(ctx context.Context, didHash string, folder store.Folder) (int, error) {
	key := folderKey(folder, didHash)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: begin purge tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM messages WHERE id IN (SELECT message_id FROM stream_entries WHERE queue_key = $1)`, key)
	if err != nil {
		return 0, fmt.Errorf("store: purge messages: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM stream_entries WHERE queue_key = $1`, key); err != nil {
		return 0, fmt.Errorf("store: purge stream entries: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
