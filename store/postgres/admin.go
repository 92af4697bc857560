// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/didcomm-x/mediator/acl"
	"github.com/didcomm-x/mediator/store"
)

// PutOOBInvite implements store.OOBStore.
func (s *Store) PutOOBInvite(ctx context.Context, inv *store.OOBInvite) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO oob_invites (id, blob, created_by, expires_at) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET blob = $2, created_by = $3, expires_at = $4`,
		inv.ID, inv.Blob, inv.CreatedBy, inv.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store: put oob invite: %w", err)
	}
	return nil
}

// GetOOBInvite implements store.OOBStore.
func (s *Store) GetOOBInvite(ctx context.Context, id string) (*store.OOBInvite, error) {
	var inv store.OOBInvite
	err := s.pool.QueryRow(ctx, `SELECT id, blob, created_by, expires_at FROM oob_invites WHERE id = $1`, id).
		Scan(&inv.ID, &inv.Blob, &inv.CreatedBy, &inv.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("store: oob invite not found")
	}
	if err != nil {
		return nil, fmt.Errorf("store: get oob invite: %w", err)
	}
	return &inv, nil
}

// DeleteOOBInvite implements store.OOBStore.
func (s *Store) DeleteOOBInvite(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM oob_invites WHERE id = $1`, id)
	return err
}

// GetACL implements store.ACLStore.
func (s *Store) GetACL(ctx context.Context, didHash string) (*store.ACLEntry, error) {
	var bits int32
	err := s.pool.QueryRow(ctx, `SELECT bits FROM acls WHERE did_hash = $1`, didHash).Scan(&bits)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get acl: %w", err)
	}
	return &store.ACLEntry{DIDHash: didHash, Set: acl.Set(bits)}, nil
}

// SetACL implements store.ACLStore.
func (s *Store) SetACL(ctx context.Context, entry *store.ACLEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO acls (did_hash, bits) VALUES ($1,$2)
		ON CONFLICT (did_hash) DO UPDATE SET bits = $2`, entry.DIDHash, int32(entry.Set))
	return err
}

// AddAdmin implements store.AdminStore.
func (s *Store) AddAdmin(ctx context.Context, account *store.AdminAccount) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admins (did_hash, role, added_at) VALUES ($1,$2,$3)
		ON CONFLICT (did_hash) DO UPDATE SET role = $2`, account.DIDHash, int(account.Role), account.AddedAt)
	return err
}

// RemoveAdmin implements store.AdminStore.
func (s *Store) RemoveAdmin(ctx context.Context, didHash string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM admins WHERE did_hash = $1`, didHash)
	return err
}

// IsAdmin implements store.AdminStore.
func (s *Store) IsAdmin(ctx context.Context, didHash string) (*store.AdminAccount, bool, error) {
	var role int
	var addedAt time.Time
	err := s.pool.QueryRow(ctx, `SELECT role, added_at FROM admins WHERE did_hash = $1`, didHash).Scan(&role, &addedAt)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: is admin: %w", err)
	}
	return &store.AdminAccount{DIDHash: didHash, Role: store.AdminRole(role), AddedAt: addedAt}, true, nil
}

// GetStats implements store.StatsStore.
func (s *Store) GetStats(ctx context.Context, didHash string) (*store.Stats, error) {
	var st store.Stats
	err := s.pool.QueryRow(ctx, `SELECT received_bytes, received_count, deleted_count FROM stats WHERE did_hash = $1`, didHash).
		Scan(&st.ReceivedBytes, &st.ReceivedCount, &st.DeletedCount)
	if err == pgx.ErrNoRows {
		return &store.Stats{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get stats: %w", err)
	}
	return &st, nil
}

// AddStats implements store.StatsStore.
func (s *Store) AddStats(ctx context.Context, didHash string, deltaBytes, deltaReceived, deltaDeleted int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO stats (did_hash, received_bytes, received_count, deleted_count) VALUES ($1,$2,$3,$4)
		ON CONFLICT (did_hash) DO UPDATE SET
			received_bytes = stats.received_bytes + $2,
			received_count = stats.received_count + $3,
			deleted_count = stats.deleted_count + $4`,
		didHash, deltaBytes, deltaReceived, deltaDeleted)
	return err
}

// Bootstrap implements store.Store (spec §4.3 "Admin setup on boot").
func (s *Store) Bootstrap(ctx context.Context, mediatorDIDHash, rootAdminDIDHash string, defaultACL store.ACLEntry) error {
	now := time.Now()
	if err := s.AddAdmin(ctx, &store.AdminAccount{DIDHash: mediatorDIDHash, Role: store.AdminRoleMediator, AddedAt: now}); err != nil {
		return fmt.Errorf("store: bootstrap mediator admin: %w", err)
	}
	if err := s.AddAdmin(ctx, &store.AdminAccount{DIDHash: rootAdminDIDHash, Role: store.AdminRoleRootAdmin, AddedAt: now}); err != nil {
		return fmt.Errorf("store: bootstrap root admin: %w", err)
	}
	for _, hash := range []string{mediatorDIDHash, rootAdminDIDHash} {
		existing, err := s.GetACL(ctx, hash)
		if err != nil {
			return fmt.Errorf("store: bootstrap check acl: %w", err)
		}
		if existing == nil {
			entry := defaultACL
			entry.DIDHash = hash
			if err := s.SetACL(ctx, &entry); err != nil {
				return fmt.Errorf("store: bootstrap default acl: %w", err)
			}
		}
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO schema_version (version) SELECT 1 WHERE NOT EXISTS (SELECT 1 FROM schema_version)`); err != nil {
		return fmt.Errorf("store: bootstrap schema version: %w", err)
	}
	return nil
}
