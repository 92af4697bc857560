// SPDX-License-Identifier: LGPL-3.0-or-later

// Package store is a typed façade over the mediator's persistence
// backend (component C4, spec §4.3): message CRUD, per-DID inbox/
// outbox streams, expiry bookkeeping, ACL and admin state, OOB
// invites, statistics counters, and session scratchpad state.
package store

import (
	"time"

	"github.com/didcomm-x/mediator/acl"
)

// AnonymousSender is the sentinel from-hash recorded when a message
// was packed anonymously (spec §4.3 "from_did|\"ANONYMOUS\"").
const AnonymousSender = "ANONYMOUS"

// AdminSentinel is the did-hash recorded for admin-originated deletes
// that bypass sender/recipient ownership checks.
const AdminSentinel = "ADMIN"

// Folder selects which per-DID stream list_messages/fetch_messages/
// purge_messages operate against.
type Folder int

const (
	FolderReceive Folder = iota
	FolderSend
)

// FetchDeletePolicy controls whether fetch_messages also deletes what
// it returns (spec §4.3).
type FetchDeletePolicy int

const (
	FetchDeletePolicyNone FetchDeletePolicy = iota
	FetchDeletePolicyOnReceive
)

// Message is one stored envelope plus the routing metadata
// store_message records alongside it.
type Message struct {
	ID         string
	Blob       []byte
	Size       int64
	ToDID      string
	ToHash     string
	FromDID    string // "" if anonymous; AnonymousSender recorded on disk
	FromHash   string
	StoredAt   time.Time
	ExpiresAt  time.Time
}

// StreamEntry is one `XADD`-style entry: an opaque, strictly increasing
// stream id plus the message id it refers to.
type StreamEntry struct {
	StreamID  string
	MessageID string
}

// Page is the cursor-based result shape list_messages/fetch_messages
// return (spec §4.3 "Cursoring").
type Page struct {
	Items  []StreamEntry
	Cursor string // next_stream_id; "" when exhausted
}

// OOBInvite is an out-of-band invitation record with a TTL (spec §4.6).
type OOBInvite struct {
	ID        string
	Blob      []byte
	CreatedBy string
	ExpiresAt time.Time
}

// AdminRole distinguishes the bootstrap mediator/root-admin accounts
// from ordinary admin-granted DIDs (spec §4.3 "Admin setup on boot").
type AdminRole int

const (
	AdminRoleAdmin AdminRole = iota
	AdminRoleRootAdmin
	AdminRoleMediator
)

// AdminAccount is one entry in the admin set.
type AdminAccount struct {
	DIDHash string
	Role    AdminRole
	AddedAt time.Time
}

// Stats are the global + per-DID counters store_message/delete_message
// maintain (spec §4.3 step 5).
type Stats struct {
	ReceivedBytes int64
	ReceivedCount int64
	DeletedCount  int64
}

// SessionState is the authentication engine's session lifecycle (spec
// §4.4).
type SessionState int

const (
	SessionStateChallengeIssued SessionState = iota
	SessionStateAuthenticated
	SessionStateExpired
)

// Session is the scratchpad record C5 persists per session id.
type Session struct {
	ID             string
	DID            string
	DIDHash        string
	State          SessionState
	ChallengeNonce string
	NotAfter       time.Time
	AccessTokenID  string
	RefreshTokenID string
	CreatedAt      time.Time
	LastActivity   time.Time

	// LiveDelivery is toggled by messagepickup/3.0/live-delivery-change
	// (spec §4.6); C8's streaming surface consults it when a client
	// opens a channel to decide whether to auto-subscribe with C10.
	LiveDelivery bool
}

// ACLEntry pairs a did-hash with its stored bitfield (spec §4.2/§4.3).
type ACLEntry struct {
	DIDHash string
	Set     acl.Set
}
