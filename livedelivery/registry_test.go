// SPDX-License-Identifier: LGPL-3.0-or-later

package livedelivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesRegisteredStream(t *testing.T) {
	r := New()
	s := r.Register("alice-hash", 4)
	defer s.Close()

	assert.True(t, r.HasActiveSession("alice-hash"))
	r.Publish("alice-hash", "msg-1", []byte("hello"))

	select {
	case push := <-s.Chan():
		assert.Equal(t, "msg-1", push.MsgID)
		assert.Equal(t, []byte("hello"), push.Blob)
	case <-time.After(time.Second):
		t.Fatal("expected push was not received")
	}
}

func TestPublishToUnknownHashIsNoop(t *testing.T) {
	r := New()
	assert.False(t, r.HasActiveSession("nobody"))
	r.Publish("nobody", "msg-1", []byte("hello"))
}

func TestRegisterEvictsPriorStream(t *testing.T) {
	r := New()
	first := r.Register("alice-hash", 1)
	second := r.Register("alice-hash", 1)

	select {
	case <-first.done:
	default:
		t.Fatal("first stream should have been closed by the newer registration")
	}

	r.Publish("alice-hash", "msg-1", []byte("hi"))
	select {
	case push := <-second.Chan():
		require.Equal(t, "msg-1", push.MsgID)
	case <-time.After(time.Second):
		t.Fatal("second stream should have received the push")
	}
}

func TestUnregisterIgnoresStaleStream(t *testing.T) {
	r := New()
	first := r.Register("alice-hash", 1)
	second := r.Register("alice-hash", 1)

	r.Unregister(first)
	assert.True(t, r.HasActiveSession("alice-hash"))

	r.Unregister(second)
	assert.False(t, r.HasActiveSession("alice-hash"))
}
