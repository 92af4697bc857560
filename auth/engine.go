// SPDX-License-Identifier: LGPL-3.0-or-later

package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/didcomm-x/mediator/acl"
	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/envelope"
	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/internal/metrics"
	"github.com/didcomm-x/mediator/store"
)

// Engine drives the challenge/response handshake and the token
// lifecycle described in spec §4.4, against a Store for session/ACL
// state and a Codec for verifying the DID-signed challenge response.
type Engine struct {
	Store store.Store
	Codec *envelope.Codec

	// SigningKid addresses the mediator's own Ed25519 secret in
	// Codec.Secrets, used to sign access/refresh tokens.
	SigningKid string

	// ACLMode governs how GlobalACLSet bits are interpreted (spec §4.2).
	ACLMode acl.Mode

	ChallengeTTL time.Duration
	AccessTTL    time.Duration
	RefreshTTL   time.Duration

	nonces *nonceCache
}

// NewEngine builds an Engine with the spec's suggested defaults: a
// 60s challenge window, 15m access tokens, 30 day refresh tokens.
func NewEngine(st store.Store, codec *envelope.Codec, signingKid string, mode acl.Mode) *Engine {
	return &Engine{
		Store:        st,
		Codec:        codec,
		SigningKid:   signingKid,
		ACLMode:      mode,
		ChallengeTTL: 60 * time.Second,
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   30 * 24 * time.Hour,
		nonces:       newNonceCache(),
	}
}

type challengeResponseBody struct {
	SessionID string `json:"session_id"`
	Nonce     string `json:"nonce"`
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", merr.Wrap(merr.InvalidState, err, "generate challenge nonce")
	}
	return hex.EncodeToString(b), nil
}

// IssueChallenge implements step 1 of spec §4.4: an unauthenticated
// client posts a bare DID and receives a nonce bound to a fresh session.
func (e *Engine) IssueChallenge(ctx context.Context, didStr string) (*ChallengeResult, error) {
	if didStr == "" {
		return nil, merr.New(merr.RequestDataError, "challenge request missing did")
	}
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	notAfter := now.Add(e.ChallengeTTL)
	session := &store.Session{
		ID:             uuid.NewString(),
		DID:            didStr,
		DIDHash:        did.Hash(did.AgentDID(didStr)),
		State:          store.SessionStateChallengeIssued,
		ChallengeNonce: nonce,
		NotAfter:       notAfter,
		CreatedAt:      now,
		LastActivity:   now,
	}
	if err := e.Store.PutSession(ctx, session); err != nil {
		return nil, merr.Wrap(merr.DatabaseError, err, "persist challenge session")
	}

	metrics.ChallengesIssued.Inc()
	return &ChallengeResult{SessionID: session.ID, ChallengeNonce: nonce, NotAfter: notAfter}, nil
}

// VerifyChallengeResponse implements step 2 of spec §4.4: raw is a
// DIDComm-signed envelope whose body is {session_id, nonce}. On success
// the session transitions to Authenticated and a fresh token pair is
// minted and bound to the requesting DID's did_hash.
func (e *Engine) VerifyChallengeResponse(ctx context.Context, raw []byte) (*TokenPair, error) {
	meta, err := e.Codec.Unpack(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !meta.Metadata.NonRepudiation || meta.Metadata.SignFrom == "" {
		return nil, merr.New(merr.AuthenticationError, "challenge response must carry a DID signature")
	}
	if meta.Envelope.Plaintext == nil {
		return nil, merr.New(merr.Malformed, "challenge response missing message body")
	}

	var body challengeResponseBody
	if err := json.Unmarshal(meta.Envelope.Plaintext.Body, &body); err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "decode challenge response body")
	}
	if body.SessionID == "" || body.Nonce == "" {
		return nil, merr.New(merr.Malformed, "challenge response missing session_id/nonce")
	}

	session, err := e.Store.GetSession(ctx, body.SessionID)
	if err != nil {
		return nil, err
	}
	if session.State != store.SessionStateChallengeIssued {
		metrics.AuthAttempts.WithLabelValues("replay").Inc()
		return nil, merr.New(merr.AuthenticationError, "session is not awaiting a challenge response")
	}
	if time.Now().After(session.NotAfter) {
		metrics.AuthAttempts.WithLabelValues("expired").Inc()
		return nil, merr.New(merr.AuthenticationError, "challenge has expired")
	}
	if body.Nonce != session.ChallengeNonce {
		metrics.AuthAttempts.WithLabelValues("bad_signature").Inc()
		return nil, merr.New(merr.AuthenticationError, "challenge nonce mismatch")
	}

	signerDID := didOfString(meta.Metadata.SignFrom)
	if signerDID != session.DID {
		metrics.AuthAttempts.WithLabelValues("bad_signature").Inc()
		return nil, merr.New(merr.AuthenticationError, "challenge response signer does not match did")
	}

	if err := e.nonces.CheckAndStore(session.ID+":"+body.Nonce, e.ChallengeTTL); err != nil {
		metrics.AuthAttempts.WithLabelValues("replay").Inc()
		return nil, err
	}

	entry, err := e.Store.GetACL(ctx, session.DIDHash)
	if err != nil {
		return nil, err
	}
	if entry != nil && entry.Set.CheckBlocked(e.ACLMode) {
		metrics.AuthAttempts.WithLabelValues("blocked").Inc()
		return nil, merr.New(merr.ACLDenied, "did is blocked")
	}

	now := time.Now()
	session.State = store.SessionStateAuthenticated
	session.LastActivity = now

	pair, accessID, refreshID, err := e.mintTokenPair(ctx, session)
	if err != nil {
		return nil, err
	}
	session.AccessTokenID = accessID
	session.RefreshTokenID = refreshID

	if err := e.Store.PutSession(ctx, session); err != nil {
		return nil, merr.Wrap(merr.DatabaseError, err, "persist authenticated session")
	}
	metrics.AuthAttempts.WithLabelValues("success").Inc()
	metrics.SessionsActive.Inc()
	return pair, nil
}

// didOfString strips a key-id fragment, mirroring envelope's didOf but
// operating on a plain string rather than a did.AgentDID.
func didOfString(kidOrDID string) string {
	d, _ := did.AgentDID(kidOrDID).Fragment()
	return string(d)
}

// RefreshToken implements step 3 of spec §4.4: a valid, non-revoked
// refresh token mints a new token pair and the old refresh token is
// invalidated immediately (rotation, not reuse).
func (e *Engine) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	pub, err := e.mediatorPublicKey(ctx)
	if err != nil {
		return nil, err
	}

	claims := &refreshClaims{}
	_, err = jwt.ParseWithClaims(refreshToken, claims, func(*jwt.Token) (any, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		return nil, merr.Wrap(merr.AuthenticationError, err, "verify refresh token")
	}

	session, err := e.Store.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if session.State != store.SessionStateAuthenticated {
		metrics.AuthAttempts.WithLabelValues("expired").Inc()
		return nil, merr.New(merr.AuthenticationError, "session is not authenticated")
	}
	if session.RefreshTokenID != claims.ID {
		metrics.AuthAttempts.WithLabelValues("replay").Inc()
		return nil, merr.New(merr.AuthenticationError, "refresh token has been revoked")
	}
	if session.DIDHash != claims.DIDHash {
		metrics.AuthAttempts.WithLabelValues("bad_signature").Inc()
		return nil, merr.New(merr.AuthenticationError, "refresh token did-hash mismatch")
	}

	session.LastActivity = time.Now()
	pair, accessID, refreshID, err := e.mintTokenPair(ctx, session)
	if err != nil {
		return nil, err
	}
	session.AccessTokenID = accessID
	session.RefreshTokenID = refreshID

	if err := e.Store.PutSession(ctx, session); err != nil {
		return nil, merr.Wrap(merr.DatabaseError, err, "persist refreshed session")
	}
	return pair, nil
}

// VerifyAccessToken validates tokenString against the mediator's
// signing key, the referenced session's current state, and the
// session's did_hash binding (spec §4.4 "every protected route").
func (e *Engine) VerifyAccessToken(ctx context.Context, tokenString string) (*Claims, *store.Session, error) {
	pub, err := e.mediatorPublicKey(ctx)
	if err != nil {
		return nil, nil, err
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"EdDSA"}))
	if err != nil {
		return nil, nil, merr.Wrap(merr.AuthenticationError, err, "verify access token")
	}

	session, err := e.Store.GetSession(ctx, claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.State != store.SessionStateAuthenticated {
		return nil, nil, merr.New(merr.AuthenticationError, "session is not authenticated")
	}
	if session.AccessTokenID != claims.ID {
		return nil, nil, merr.New(merr.AuthenticationError, "access token has been revoked")
	}
	if session.DIDHash != claims.DIDHash {
		return nil, nil, merr.New(merr.AuthenticationError, "access token did-hash mismatch")
	}
	return claims, session, nil
}

func (e *Engine) mintTokenPair(ctx context.Context, session *store.Session) (*TokenPair, string, string, error) {
	priv, err := e.mediatorSigningKey(ctx)
	if err != nil {
		return nil, "", "", err
	}

	now := time.Now()
	accessID := uuid.NewString()
	access := &Claims{
		DIDHash:   session.DIDHash,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        accessID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(e.AccessTTL)),
		},
	}
	accessTok, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, access).SignedString(priv)
	if err != nil {
		return nil, "", "", merr.Wrap(merr.NoCompatibleCrypto, err, "sign access token")
	}

	refreshID := uuid.NewString()
	refresh := &refreshClaims{
		DIDHash:   session.DIDHash,
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        refreshID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(e.RefreshTTL)),
		},
	}
	refreshTok, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, refresh).SignedString(priv)
	if err != nil {
		return nil, "", "", merr.Wrap(merr.NoCompatibleCrypto, err, "sign refresh token")
	}

	metrics.TokensIssued.WithLabelValues("access").Inc()
	metrics.TokensIssued.WithLabelValues("refresh").Inc()
	return &TokenPair{AccessToken: accessTok, RefreshToken: refreshTok}, accessID, refreshID, nil
}

func (e *Engine) mediatorSigningKey(ctx context.Context) (ed25519.PrivateKey, error) {
	secret, err := e.Codec.Secrets.GetSecret(ctx, e.SigningKid)
	if err != nil {
		return nil, merr.Wrap(merr.DatabaseError, err, "load mediator signing secret")
	}
	if secret == nil {
		return nil, merr.New(merr.ConfigError, "no mediator signing secret for kid "+e.SigningKid)
	}
	if len(secret.Material) == ed25519.SeedSize {
		return ed25519.NewKeyFromSeed(secret.Material), nil
	}
	return ed25519.PrivateKey(secret.Material), nil
}

func (e *Engine) mediatorPublicKey(ctx context.Context) (ed25519.PublicKey, error) {
	priv, err := e.mediatorSigningKey(ctx)
	if err != nil {
		return nil, err
	}
	return priv.Public().(ed25519.PublicKey), nil
}
