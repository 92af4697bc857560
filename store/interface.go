// SPDX-License-Identifier: LGPL-3.0-or-later

package store

import (
	"context"
	"time"
)

// MessageStore is message CRUD plus store_message's atomic fan-out
// (spec §4.3 stored procedures).
type MessageStore interface {
	// StoreMessage implements the store_message stored procedure: it
	// writes the blob+meta, enqueues RECEIVE_Q/SEND_Q stream entries,
	// schedules expiry, and bumps counters, all atomically.
	StoreMessage(ctx context.Context, msg *Message) error

	// DeleteMessage implements delete_message: didHash must equal the
	// message's sender or recipient hash, or be AdminSentinel.
	DeleteMessage(ctx context.Context, msgID, didHash string) error

	// GetMessage fetches one message's blob+meta by id.
	GetMessage(ctx context.Context, msgID string) (*Message, error)
}

// StreamStore is the per-DID inbox/outbox stream API (spec §4.3
// "Operations exposed to the core").
type StreamStore interface {
	// FetchMessages implements fetch_messages: up to limit stream
	// entries from RECEIVE_Q:<didHash> strictly after startID ("-" for
	// the beginning), honoring policy for OnReceive auto-delete.
	FetchMessages(ctx context.Context, didHash, startID string, limit int, policy FetchDeletePolicy) (Page, error)

	// ListMessages lists a folder's stream from cursor, not deleting
	// anything.
	ListMessages(ctx context.Context, didHash string, folder Folder, cursor string, limit int) (Page, error)

	// PurgeMessages repeatedly pops folder's stream until empty, then
	// deletes the stream key itself.
	PurgeMessages(ctx context.Context, didHash string, folder Folder) (int, error)
}

// ExpiryStore exposes the sweeper's view of pending expirations (spec
// §4.8).
type ExpiryStore interface {
	// DueMessageIDs returns message ids whose expiry second is <= asOf.
	DueMessageIDs(ctx context.Context, asOf time.Time, limit int) ([]string, error)
}

// OOBStore is out-of-band invite storage with TTL (spec §4.3, §4.6).
type OOBStore interface {
	PutOOBInvite(ctx context.Context, inv *OOBInvite) error
	GetOOBInvite(ctx context.Context, id string) (*OOBInvite, error)
	DeleteOOBInvite(ctx context.Context, id string) error
}

// ACLStore is global ACL get/set (spec §4.3 "Global ACL get/set").
type ACLStore interface {
	GetACL(ctx context.Context, didHash string) (*ACLEntry, error)
	SetACL(ctx context.Context, entry *ACLEntry) error
}

// AdminStore is admin account management (spec §4.3 "admin account
// add/remove/check").
type AdminStore interface {
	AddAdmin(ctx context.Context, account *AdminAccount) error
	RemoveAdmin(ctx context.Context, didHash string) error
	IsAdmin(ctx context.Context, didHash string) (*AdminAccount, bool, error)
}

// StatsStore is statistics read + atomic delta update (spec §4.3).
type StatsStore interface {
	GetStats(ctx context.Context, didHash string) (*Stats, error)
	AddStats(ctx context.Context, didHash string, deltaBytes, deltaReceived, deltaDeleted int64) error
}

// SessionStore is the authentication engine's session scratchpad (spec
// §4.3 "Session scratchpad keyed by session id", §4.4).
type SessionStore interface {
	PutSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, asOf time.Time) (int, error)
}

// Store combines every capability C4 exposes to the rest of the
// mediator (spec §4.3).
type Store interface {
	MessageStore
	StreamStore
	ExpiryStore
	OOBStore
	ACLStore
	AdminStore
	StatsStore
	SessionStore

	// Bootstrap ensures the configured mediator and root-admin DIDs
	// exist with their designated roles and default ACLs (spec §4.3
	// "Admin setup on boot").
	Bootstrap(ctx context.Context, mediatorDIDHash, rootAdminDIDHash string, defaultACL ACLEntry) error

	Close() error
	Ping(ctx context.Context) error
}
