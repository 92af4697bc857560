// SPDX-License-Identifier: LGPL-3.0-or-later

// Package livedelivery implements the per-did_hash stream registry and
// fan-out (component C10, spec §4.9): when a session's live_delivery
// flag is on, newly stored messages for its did_hash are pushed down
// its channel instead of waiting to be polled out of the inbox.
package livedelivery

import (
	"sync"
)

// Stream is one recipient's live-delivery channel. Push is non-blocking:
// a slow or dead consumer never stalls the processor goroutine that
// just stored a message.
type Stream struct {
	didHash string
	ch      chan Push
	done    chan struct{}
	once    sync.Once
}

// Push is what the processor hands the registry to fan out.
type Push struct {
	MsgID string
	Blob  []byte
}

// Chan is the channel the owning transport (C8's websocket handler)
// reads pushes from.
func (s *Stream) Chan() <-chan Push { return s.ch }

// Close releases the stream; safe to call more than once.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.done) })
}

// Registry tracks at most one active Stream per did_hash, grounded on
// the teacher's connection-tracking WSServer (sync.RWMutex-guarded map)
// but keyed by recipient rather than by raw connection, since spec §4.9
// and Open Question decision 3 both describe exactly one live
// subscriber per did_hash.
type Registry struct {
	mu      sync.RWMutex
	streams map[string]*Stream
}

// New builds an empty registry.
func New() *Registry {
	return &Registry{streams: make(map[string]*Stream)}
}

// Register opens a new Stream for didHash, evicting and closing any
// prior stream for the same hash ("newer wins", Open Question decision
// 3: two sessions racing to enable live-delivery for the same DID).
func (r *Registry) Register(didHash string, buffer int) *Stream {
	s := &Stream{didHash: didHash, ch: make(chan Push, buffer), done: make(chan struct{})}

	r.mu.Lock()
	if old, ok := r.streams[didHash]; ok {
		old.Close()
	}
	r.streams[didHash] = s
	r.mu.Unlock()

	return s
}

// Unregister removes s if it is still the current stream for its
// did_hash (a caller closing a connection that was already evicted by a
// newer Register must not clobber the replacement).
func (r *Registry) Unregister(s *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.streams[s.didHash]; ok && cur == s {
		delete(r.streams, s.didHash)
	}
}

// HasActiveSession implements processor.LiveDeliveryPublisher.
func (r *Registry) HasActiveSession(didHash string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.streams[didHash]
	return ok
}

// Publish implements processor.LiveDeliveryPublisher. A full channel
// drops the push rather than blocking the caller; spec §4.9 says
// delivery failures are logged and the message stays in the inbox for
// the client to pick up through fetch/messages-received instead.
func (r *Registry) Publish(didHash, msgID string, blob []byte) {
	r.mu.RLock()
	s, ok := r.streams[didHash]
	r.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case s.ch <- Push{MsgID: msgID, Blob: blob}:
	case <-s.done:
	default:
	}
}
