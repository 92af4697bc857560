// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didcomm-x/mediator/store"
)

func TestStoreMessageAndFetch(t *testing.T) {
	s := New()
	ctx := context.Background()

	msg := &store.Message{
		ID: "m1", Blob: []byte("hi"), Size: 2,
		ToDID: "did:example:bob", ToHash: "bobhash",
		FromDID: "did:example:alice", FromHash: "alicehash",
		StoredAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, s.StoreMessage(ctx, msg))

	page, err := s.FetchMessages(ctx, "bobhash", "-", 10, store.FetchDeletePolicyNone)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "m1", page.Items[0].MessageID)

	got, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, msg.Blob, got.Blob)

	stats, err := s.GetStats(ctx, "bobhash")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ReceivedCount)
}

func TestStoreMessageDuplicateIDIsNoop(t *testing.T) {
	s := New()
	ctx := context.Background()

	msg := &store.Message{
		ID: "m1", Blob: []byte("hi"), Size: 2,
		ToDID: "did:example:bob", ToHash: "bobhash",
		FromDID: "did:example:alice", FromHash: "alicehash",
		StoredAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, s.StoreMessage(ctx, msg))
	require.NoError(t, s.StoreMessage(ctx, msg))

	page, err := s.FetchMessages(ctx, "bobhash", "-", 10, store.FetchDeletePolicyNone)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	stats, err := s.GetStats(ctx, "bobhash")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ReceivedCount)
}

func TestFetchOnReceiveDeletes(t *testing.T) {
	s := New()
	ctx := context.Background()
	msg := &store.Message{ID: "m1", ToHash: "bobhash", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.StoreMessage(ctx, msg))

	page, err := s.FetchMessages(ctx, "bobhash", "-", 10, store.FetchDeletePolicyOnReceive)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	_, err = s.GetMessage(ctx, "m1")
	assert.Error(t, err)

	page2, err := s.FetchMessages(ctx, "bobhash", "-", 10, store.FetchDeletePolicyNone)
	require.NoError(t, err)
	assert.Empty(t, page2.Items)
}

func TestDeleteMessageAuthorization(t *testing.T) {
	s := New()
	ctx := context.Background()
	msg := &store.Message{ID: "m1", ToHash: "bobhash", FromHash: "alicehash", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.StoreMessage(ctx, msg))

	err := s.DeleteMessage(ctx, "m1", "evehash")
	assert.Error(t, err)

	require.NoError(t, s.DeleteMessage(ctx, "m1", "bobhash"))
	_, err = s.GetMessage(ctx, "m1")
	assert.Error(t, err)
}

func TestDeleteMessageAdminBypasses(t *testing.T) {
	s := New()
	ctx := context.Background()
	msg := &store.Message{ID: "m1", ToHash: "bobhash", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.StoreMessage(ctx, msg))
	require.NoError(t, s.DeleteMessage(ctx, "m1", store.AdminSentinel))
}

func TestDueMessageIDs(t *testing.T) {
	s := New()
	ctx := context.Background()
	past := &store.Message{ID: "expired", ToHash: "h", ExpiresAt: time.Now().Add(-time.Minute)}
	future := &store.Message{ID: "fresh", ToHash: "h", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.StoreMessage(ctx, past))
	require.NoError(t, s.StoreMessage(ctx, future))

	ids, err := s.DueMessageIDs(ctx, time.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"expired"}, ids)
}

func TestPurgeMessages(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.StoreMessage(ctx, &store.Message{ID: string(rune('a' + i)), ToHash: "h", ExpiresAt: time.Now().Add(time.Hour)}))
	}
	n, err := s.PurgeMessages(ctx, "h", store.FolderReceive)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := s.ListMessages(ctx, "h", store.FolderReceive, "-", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestOOBInviteExpiry(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.PutOOBInvite(ctx, &store.OOBInvite{ID: "inv1", ExpiresAt: time.Now().Add(-time.Minute)}))
	_, err := s.GetOOBInvite(ctx, "inv1")
	assert.Error(t, err)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	defaultACL := store.ACLEntry{}
	require.NoError(t, s.Bootstrap(ctx, "medhash", "roothash", defaultACL))
	require.NoError(t, s.Bootstrap(ctx, "medhash", "roothash", defaultACL))

	_, ok, err := s.IsAdmin(ctx, "roothash")
	require.NoError(t, err)
	assert.True(t, ok)
}
