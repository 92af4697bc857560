// SPDX-License-Identifier: LGPL-3.0-or-later

package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/didcomm-x/mediator/did"
)

// DefaultMessageTTL is used when a message carries no expires_time.
const DefaultMessageTTL = 14 * 24 * time.Hour

// NewMessage builds a Message ready for StoreMessage, deriving msg_id as
// sha256(blob) and to/from did-hashes per spec §3 invariant 1. fromDID
// empty means the message was packed anonymously (spec §3 "from_did_hash
// | \"ANONYMOUS\"").
func NewMessage(recipientDID, fromDID string, blob []byte, expiresTime int64) *Message {
	sum := sha256.Sum256(blob)
	id := hex.EncodeToString(sum[:])

	fromHash := AnonymousSender
	if fromDID != "" {
		fromHash = did.Hash(did.AgentDID(fromDID))
	}

	expiresAt := time.Now().Add(DefaultMessageTTL)
	if expiresTime > 0 {
		expiresAt = time.Unix(expiresTime, 0)
	}

	return &Message{
		ID:        id,
		Blob:      blob,
		Size:      int64(len(blob)),
		ToDID:     recipientDID,
		ToHash:    did.Hash(did.AgentDID(recipientDID)),
		FromDID:   fromDID,
		FromHash:  fromHash,
		StoredAt:  time.Now(),
		ExpiresAt: expiresAt,
	}
}
