// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/store"
)

// PutSession implements store.SessionStore.
func (s *Store) PutSession(ctx context.Context, session *store.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, did, did_hash, state, challenge_nonce, not_after, access_token_id, refresh_token_id, created_at, last_activity, live_delivery)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			state = $4, challenge_nonce = $5, not_after = $6,
			access_token_id = $7, refresh_token_id = $8, last_activity = $10, live_delivery = $11`,
		session.ID, session.DID, session.DIDHash, int(session.State), session.ChallengeNonce, session.NotAfter,
		session.AccessTokenID, session.RefreshTokenID, session.CreatedAt, session.LastActivity, session.LiveDelivery)
	if err != nil {
		return fmt.Errorf("store: put session: %w", err)
	}
	return nil
}

// GetSession implements store.SessionStore.
func (s *Store) GetSession(ctx context.Context, id string) (*store.Session, error) {
	var sess store.Session
	var state int
	err := s.pool.QueryRow(ctx, `
		SELECT id, did, did_hash, state, challenge_nonce, not_after, access_token_id, refresh_token_id, created_at, last_activity, live_delivery
		FROM sessions WHERE id = $1`, id).Scan(
		&sess.ID, &sess.DID, &sess.DIDHash, &state, &sess.ChallengeNonce, &sess.NotAfter,
		&sess.AccessTokenID, &sess.RefreshTokenID, &sess.CreatedAt, &sess.LastActivity, &sess.LiveDelivery)
	if err == pgx.ErrNoRows {
		return nil, merr.New(merr.RequestDataError, "store: session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	sess.State = store.SessionState(state)
	return &sess, nil
}

// DeleteSession implements store.SessionStore.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

// DeleteExpiredSessions implements store.SessionStore.
func (s *Store) DeleteExpiredSessions(ctx context.Context, asOf time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE not_after < $1 AND state != $2`,
		asOf, int(store.SessionStateAuthenticated))
	if err != nil {
		return 0, fmt.Errorf("store: delete expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
