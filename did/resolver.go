// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package did

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Resolver is the external collaborator contract (spec §6): resolve a
// DID to its document. Implementations are networked lookups; the
// mediator never implements a DID method itself.
type Resolver interface {
	Resolve(ctx context.Context, did AgentDID) (*Document, error)
}

// CachingResolver wraps a Resolver with a TTL cache and request
// collapsing, so concurrent unpacks of messages from the same sender
// issue one resolution instead of one per worker.
type CachingResolver struct {
	upstream Resolver
	ttl      time.Duration

	mu    sync.RWMutex
	cache map[AgentDID]cacheEntry
	group singleflight.Group
}

type cacheEntry struct {
	doc     *Document
	expires time.Time
}

// NewCachingResolver wraps upstream with an in-memory cache of the given TTL.
func NewCachingResolver(upstream Resolver, ttl time.Duration) *CachingResolver {
	return &CachingResolver{
		upstream: upstream,
		ttl:      ttl,
		cache:    make(map[AgentDID]cacheEntry),
	}
}

// Resolve implements Resolver.
func (c *CachingResolver) Resolve(ctx context.Context, did AgentDID) (*Document, error) {
	c.mu.RLock()
	entry, ok := c.cache[did]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.doc, nil
	}

	v, err, _ := c.group.Do(string(did), func() (interface{}, error) {
		doc, err := c.upstream.Resolve(ctx, did)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[did] = cacheEntry{doc: doc, expires: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Document), nil
}

// Invalidate drops a cached document, forcing the next Resolve to hit upstream.
func (c *CachingResolver) Invalidate(did AgentDID) {
	c.mu.Lock()
	delete(c.cache, did)
	c.mu.Unlock()
}

// StaticResolver is an in-memory Resolver used in tests and for
// mediators that embed a small fixed set of known agent documents.
type StaticResolver struct {
	mu   sync.RWMutex
	docs map[AgentDID]*Document
}

// NewStaticResolver creates an empty StaticResolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{docs: make(map[AgentDID]*Document)}
}

// Put registers a document for direct lookup.
func (s *StaticResolver) Put(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
}

// Resolve implements Resolver.
func (s *StaticResolver) Resolve(_ context.Context, did AgentDID) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[did]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}
