// SPDX-License-Identifier: LGPL-3.0-or-later

// Package auth implements the mediator's two-step DID-signed challenge
// authentication and the access/refresh token lifecycle (spec §4.4).
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ChallengeResult is returned from step 1 of the handshake.
type ChallengeResult struct {
	SessionID      string    `json:"session_id"`
	ChallengeNonce string    `json:"challenge_nonce"`
	NotAfter       time.Time `json:"not_after"`
}

// TokenPair is minted once the challenge response verifies, and again
// (both the access and the refresh token are rotated, see
// Engine.RefreshToken) on every successful refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Claims is the access-token claim set: tokens are bound to did_hash and
// carry the session they were minted for (spec §4.4 "bound to did_hash").
type Claims struct {
	DIDHash   string `json:"did_hash"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// refreshClaims is the same shape, kept distinct so an access token can
// never be replayed as a refresh token or vice versa.
type refreshClaims struct {
	DIDHash   string `json:"did_hash"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}
