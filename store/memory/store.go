// SPDX-License-Identifier: LGPL-3.0-or-later

// Package memory is an in-process store.Store backed by Go maps,
// used in tests and single-node deployments (grounded on the
// teacher's pkg/storage/memory sub-store pattern).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/store"
)

// Store is an in-memory store.Store.
type Store struct {
	mu sync.RWMutex

	messages map[string]*store.Message
	streams  map[string][]store.StreamEntry // "RECEIVE_Q:<hash>" / "SEND_Q:<hash>"
	expiry   map[int64]map[string]bool       // epoch second -> msg ids

	oob     map[string]*store.OOBInvite
	acls    map[string]store.ACLEntry
	admins  map[string]store.AdminAccount
	stats   map[string]*store.Stats
	sessions map[string]*store.Session

	seq atomic.Int64
}

// New creates an empty memory Store.
func New() *Store {
	return &Store{
		messages: make(map[string]*store.Message),
		streams:  make(map[string][]store.StreamEntry),
		expiry:   make(map[int64]map[string]bool),
		oob:      make(map[string]*store.OOBInvite),
		acls:     make(map[string]store.ACLEntry),
		admins:   make(map[string]store.AdminAccount),
		stats:    make(map[string]*store.Stats),
		sessions: make(map[string]*store.Session),
	}
}

func (s *Store) nextStreamID() string {
	n := s.seq.Add(1)
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), n)
}

func receiveKey(hash string) string { return "RECEIVE_Q:" + hash }
func sendKey(hash string) string    { return "SEND_Q:" + hash }

// StoreMessage implements store.MessageStore.
func (s *Store) StoreMessage(_ context.Context, msg *store.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.messages[msg.ID]; exists {
		// msg.ID already stored: store_message is idempotent (spec §3,
		// "exactly once... in exactly one RECEIVE_Q stream"), so a
		// duplicate enqueue is a silent no-op.
		return nil
	}

	s.messages[msg.ID] = msg

	entry := store.StreamEntry{StreamID: s.nextStreamID(), MessageID: msg.ID}
	s.streams[receiveKey(msg.ToHash)] = append(s.streams[receiveKey(msg.ToHash)], entry)

	if msg.FromHash != "" && msg.FromDID != "" {
		sendEntry := store.StreamEntry{StreamID: s.nextStreamID(), MessageID: msg.ID}
		s.streams[sendKey(msg.FromHash)] = append(s.streams[sendKey(msg.FromHash)], sendEntry)
	}

	sec := msg.ExpiresAt.Unix()
	if s.expiry[sec] == nil {
		s.expiry[sec] = make(map[string]bool)
	}
	s.expiry[sec][msg.ID] = true

	global := s.statsFor(store.AdminSentinel)
	global.ReceivedBytes += msg.Size
	global.ReceivedCount++
	perDID := s.statsFor(msg.ToHash)
	perDID.ReceivedBytes += msg.Size
	perDID.ReceivedCount++

	return nil
}

func (s *Store) statsFor(key string) *store.Stats {
	st, ok := s.stats[key]
	if !ok {
		st = &store.Stats{}
		s.stats[key] = st
	}
	return st
}

// DeleteMessage implements store.MessageStore.
func (s *Store) DeleteMessage(_ context.Context, msgID, didHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[msgID]
	if !ok {
		return merr.New(merr.RequestDataError, "store: message not found")
	}
	if didHash != store.AdminSentinel && didHash != msg.ToHash && didHash != msg.FromHash {
		return merr.New(merr.PermissionError, "store: did-hash is neither sender nor recipient")
	}

	delete(s.messages, msgID)
	s.removeFromStream(receiveKey(msg.ToHash), msgID)
	if msg.FromHash != "" {
		s.removeFromStream(sendKey(msg.FromHash), msgID)
	}
	sec := msg.ExpiresAt.Unix()
	if set, ok := s.expiry[sec]; ok {
		delete(set, msgID)
	}

	global := s.statsFor(store.AdminSentinel)
	global.DeletedCount++
	s.statsFor(msg.ToHash).DeletedCount++

	return nil
}

func (s *Store) removeFromStream(key, msgID string) {
	entries := s.streams[key]
	out := entries[:0]
	for _, e := range entries {
		if e.MessageID != msgID {
			out = append(out, e)
		}
	}
	s.streams[key] = out
}

// GetMessage implements store.MessageStore.
func (s *Store) GetMessage(_ context.Context, msgID string) (*store.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[msgID]
	if !ok {
		return nil, merr.New(merr.RequestDataError, "store: message not found")
	}
	return msg, nil
}

// FetchMessages implements store.StreamStore.
func (s *Store) FetchMessages(_ context.Context, didHash, startID string, limit int, policy store.FetchDeletePolicy) (store.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := receiveKey(didHash)
	entries := s.streams[key]
	page := s.pageAfter(entries, startID, limit)

	if policy == store.FetchDeletePolicyOnReceive {
		for _, e := range page.Items {
			delete(s.messages, e.MessageID)
		}
		s.removeEntries(key, page.Items)
	}
	return page, nil
}

// ListMessages implements store.StreamStore.
func (s *Store) ListMessages(_ context.Context, didHash string, folder store.Folder, cursor string, limit int) (store.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := receiveKey(didHash)
	if folder == store.FolderSend {
		key = sendKey(didHash)
	}
	return s.pageAfter(s.streams[key], cursor, limit), nil
}

func (s *Store) pageAfter(entries []store.StreamEntry, after string, limit int) store.Page {
	start := 0
	if after != "" && after != "-" {
		for i, e := range entries {
			if e.StreamID == after {
				start = i + 1
				break
			}
		}
	}
	if start >= len(entries) {
		return store.Page{}
	}
	end := start + limit
	if limit <= 0 || end > len(entries) {
		end = len(entries)
	}
	items := append([]store.StreamEntry{}, entries[start:end]...)
	cursor := ""
	if end < len(entries) {
		cursor = items[len(items)-1].StreamID
	}
	return store.Page{Items: items, Cursor: cursor}
}

func (s *Store) removeEntries(key string, remove []store.StreamEntry) {
	removed := make(map[string]bool, len(remove))
	for _, e := range remove {
		removed[e.StreamID] = true
	}
	entries := s.streams[key]
	out := entries[:0]
	for _, e := range entries {
		if !removed[e.StreamID] {
			out = append(out, e)
		}
	}
	s.streams[key] = out
}

// PurgeMessages implements store.StreamStore.
func (s *Store) PurgeMessages(_ context.Context, didHash string, folder store.Folder) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := receiveKey(didHash)
	if folder == store.FolderSend {
		key = sendKey(didHash)
	}
	entries := s.streams[key]
	for _, e := range entries {
		delete(s.messages, e.MessageID)
	}
	n := len(entries)
	delete(s.streams, key)
	return n, nil
}

// DueMessageIDs implements store.ExpiryStore.
func (s *Store) DueMessageIDs(_ context.Context, asOf time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var seconds []int64
	cutoff := asOf.Unix()
	for sec := range s.expiry {
		if sec <= cutoff {
			seconds = append(seconds, sec)
		}
	}
	sort.Slice(seconds, func(i, j int) bool { return seconds[i] < seconds[j] })

	var ids []string
	for _, sec := range seconds {
		for id := range s.expiry[sec] {
			ids = append(ids, id)
			if limit > 0 && len(ids) >= limit {
				return ids, nil
			}
		}
	}
	return ids, nil
}

// PutOOBInvite implements store.OOBStore.
func (s *Store) PutOOBInvite(_ context.Context, inv *store.OOBInvite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oob[inv.ID] = inv
	return nil
}

// GetOOBInvite implements store.OOBStore.
func (s *Store) GetOOBInvite(_ context.Context, id string) (*store.OOBInvite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.oob[id]
	if !ok {
		return nil, merr.New(merr.RequestDataError, "store: oob invite not found")
	}
	if time.Now().After(inv.ExpiresAt) {
		return nil, merr.New(merr.MessageExpired, "store: oob invite expired")
	}
	return inv, nil
}

// DeleteOOBInvite implements store.OOBStore.
func (s *Store) DeleteOOBInvite(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.oob, id)
	return nil
}

// GetACL implements store.ACLStore.
func (s *Store) GetACL(_ context.Context, didHash string) (*store.ACLEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.acls[didHash]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// SetACL implements store.ACLStore.
func (s *Store) SetACL(_ context.Context, entry *store.ACLEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acls[entry.DIDHash] = *entry
	return nil
}

// AddAdmin implements store.AdminStore.
func (s *Store) AddAdmin(_ context.Context, account *store.AdminAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[account.DIDHash] = *account
	return nil
}

// RemoveAdmin implements store.AdminStore.
func (s *Store) RemoveAdmin(_ context.Context, didHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.admins, didHash)
	return nil
}

// IsAdmin implements store.AdminStore.
func (s *Store) IsAdmin(_ context.Context, didHash string) (*store.AdminAccount, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.admins[didHash]
	if !ok {
		return nil, false, nil
	}
	return &account, true, nil
}

// GetStats implements store.StatsStore.
func (s *Store) GetStats(_ context.Context, didHash string) (*store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[didHash]
	if !ok {
		return &store.Stats{}, nil
	}
	copyOf := *st
	return &copyOf, nil
}

// AddStats implements store.StatsStore.
func (s *Store) AddStats(_ context.Context, didHash string, deltaBytes, deltaReceived, deltaDeleted int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statsFor(didHash)
	st.ReceivedBytes += deltaBytes
	st.ReceivedCount += deltaReceived
	st.DeletedCount += deltaDeleted
	return nil
}

// PutSession implements store.SessionStore.
func (s *Store) PutSession(_ context.Context, session *store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

// GetSession implements store.SessionStore.
func (s *Store) GetSession(_ context.Context, id string) (*store.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, merr.New(merr.RequestDataError, "store: session not found")
	}
	return session, nil
}

// DeleteSession implements store.SessionStore.
func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// DeleteExpiredSessions implements store.SessionStore.
func (s *Store) DeleteExpiredSessions(_ context.Context, asOf time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, session := range s.sessions {
		if session.NotAfter.Before(asOf) && session.State != store.SessionStateAuthenticated {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// Bootstrap implements store.Store.
func (s *Store) Bootstrap(_ context.Context, mediatorDIDHash, rootAdminDIDHash string, defaultACL store.ACLEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if _, ok := s.admins[mediatorDIDHash]; !ok {
		s.admins[mediatorDIDHash] = store.AdminAccount{DIDHash: mediatorDIDHash, Role: store.AdminRoleMediator, AddedAt: now}
	}
	if _, ok := s.admins[rootAdminDIDHash]; !ok {
		s.admins[rootAdminDIDHash] = store.AdminAccount{DIDHash: rootAdminDIDHash, Role: store.AdminRoleRootAdmin, AddedAt: now}
	}
	for _, hash := range []string{mediatorDIDHash, rootAdminDIDHash} {
		if _, ok := s.acls[hash]; !ok {
			entry := defaultACL
			entry.DIDHash = hash
			s.acls[hash] = entry
		}
	}
	return nil
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// Ping implements store.Store.
func (s *Store) Ping(_ context.Context) error { return nil }
