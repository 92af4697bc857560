// SPDX-License-Identifier: LGPL-3.0-or-later

package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aclpkg "github.com/didcomm-x/mediator/acl"
	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/envelope"
	"github.com/didcomm-x/mediator/internal/merr"
	"github.com/didcomm-x/mediator/secrets"
	"github.com/didcomm-x/mediator/store"
	"github.com/didcomm-x/mediator/store/memory"
)

type fakeResolver struct {
	docs map[did.AgentDID]*did.Document
}

func (f *fakeResolver) Resolve(_ context.Context, d did.AgentDID) (*did.Document, error) {
	doc, ok := f.docs[d]
	if !ok {
		return nil, did.ErrNotFound
	}
	return doc, nil
}

// testAgent registers a DID document plus a signing secret for did,
// returning the DID's signing kid and private key.
func testAgent(t *testing.T, resolver *fakeResolver, secretsStore *secrets.MemoryResolver, name string) (did.AgentDID, string, ed25519.PrivateKey) {
	t.Helper()
	d := did.AgentDID("did:example:" + name)
	signKid := string(d) + "#sign-1"

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	secretsStore.Put(&secrets.Secret{ID: signKid, Type: secrets.KeyTypeEd25519, Material: priv})

	doc := &did.Document{
		ID: d,
		VerificationMethod: []did.VerificationMethod{
			{
				ID:   signKid,
				Type: "Ed25519VerificationKey2020",
				PublicKeyJwk: map[string]interface{}{
					"kty": "OKP", "crv": "Ed25519",
					"x": base64.RawURLEncoding.EncodeToString(pub),
				},
			},
		},
		Authentication: []string{signKid},
	}
	resolver.docs[d] = doc
	return d, signKid, priv
}

func newTestEngine(t *testing.T) (*Engine, *fakeResolver, *secrets.MemoryResolver) {
	t.Helper()
	resolver := &fakeResolver{docs: make(map[did.AgentDID]*did.Document)}
	secretsStore := secrets.NewMemoryResolver()

	mediatorDID, mediatorKid, _ := testAgent(t, resolver, secretsStore, "mediator")
	_ = mediatorDID

	codec := envelope.NewCodec(resolver, secretsStore)
	st := memory.New()
	engine := NewEngine(st, codec, mediatorKid, aclpkg.ExplicitAllow)
	engine.ChallengeTTL = 2 * time.Second
	return engine, resolver, secretsStore
}

func signChallengeResponse(t *testing.T, codec *envelope.Codec, signKid string, sessionID, nonce string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]string{"session_id": sessionID, "nonce": nonce})
	require.NoError(t, err)
	msg := &envelope.Message{ID: "resp-1", Type: "https://didcomm.org/mediator/1.0/challenge-response", Body: body}
	packed, _, err := codec.PackSigned(context.Background(), msg, signKid)
	require.NoError(t, err)
	return []byte(packed)
}

func TestChallengeResponseFlow(t *testing.T) {
	engine, resolver, secretsStore := newTestEngine(t)
	alice, aliceKid, _ := testAgent(t, resolver, secretsStore, "alice")

	challenge, err := engine.IssueChallenge(context.Background(), string(alice))
	require.NoError(t, err)
	assert.NotEmpty(t, challenge.SessionID)
	assert.NotEmpty(t, challenge.ChallengeNonce)

	raw := signChallengeResponse(t, engine.Codec, aliceKid, challenge.SessionID, challenge.ChallengeNonce)
	pair, err := engine.VerifyChallengeResponse(context.Background(), raw)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, session, err := engine.VerifyAccessToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, did.Hash(alice), claims.DIDHash)
	assert.Equal(t, store.SessionStateAuthenticated, session.State)
}

func TestChallengeResponseReplayFails(t *testing.T) {
	engine, resolver, secretsStore := newTestEngine(t)
	alice, aliceKid, _ := testAgent(t, resolver, secretsStore, "alice")

	challenge, err := engine.IssueChallenge(context.Background(), string(alice))
	require.NoError(t, err)

	raw := signChallengeResponse(t, engine.Codec, aliceKid, challenge.SessionID, challenge.ChallengeNonce)
	_, err = engine.VerifyChallengeResponse(context.Background(), raw)
	require.NoError(t, err)

	_, err = engine.VerifyChallengeResponse(context.Background(), raw)
	require.Error(t, err)
	assert.Equal(t, merr.AuthenticationError, merr.As(err))
}

func TestChallengeNoncesAreDistinct(t *testing.T) {
	engine, resolver, secretsStore := newTestEngine(t)
	alice, _, _ := testAgent(t, resolver, secretsStore, "alice")

	c1, err := engine.IssueChallenge(context.Background(), string(alice))
	require.NoError(t, err)
	c2, err := engine.IssueChallenge(context.Background(), string(alice))
	require.NoError(t, err)

	assert.NotEqual(t, c1.ChallengeNonce, c2.ChallengeNonce)
	assert.NotEqual(t, c1.SessionID, c2.SessionID)
}

func TestChallengeExpired(t *testing.T) {
	engine, resolver, secretsStore := newTestEngine(t)
	alice, aliceKid, _ := testAgent(t, resolver, secretsStore, "alice")
	engine.ChallengeTTL = 1 * time.Millisecond

	challenge, err := engine.IssueChallenge(context.Background(), string(alice))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	raw := signChallengeResponse(t, engine.Codec, aliceKid, challenge.SessionID, challenge.ChallengeNonce)
	_, err = engine.VerifyChallengeResponse(context.Background(), raw)
	require.Error(t, err)
	assert.Equal(t, merr.AuthenticationError, merr.As(err))
}

func TestChallengeResponseWrongSignerFails(t *testing.T) {
	engine, resolver, secretsStore := newTestEngine(t)
	alice, _, _ := testAgent(t, resolver, secretsStore, "alice")
	_, eveKid, _ := testAgent(t, resolver, secretsStore, "eve")

	challenge, err := engine.IssueChallenge(context.Background(), string(alice))
	require.NoError(t, err)

	raw := signChallengeResponse(t, engine.Codec, eveKid, challenge.SessionID, challenge.ChallengeNonce)
	_, err = engine.VerifyChallengeResponse(context.Background(), raw)
	require.Error(t, err)
}

func TestBlockedDIDDenied(t *testing.T) {
	engine, resolver, secretsStore := newTestEngine(t)
	alice, aliceKid, _ := testAgent(t, resolver, secretsStore, "alice")

	aliceHash := did.Hash(alice)
	require.NoError(t, engine.Store.SetACL(context.Background(), &store.ACLEntry{DIDHash: aliceHash, Set: aclpkg.DenyAll}))

	challenge, err := engine.IssueChallenge(context.Background(), string(alice))
	require.NoError(t, err)

	raw := signChallengeResponse(t, engine.Codec, aliceKid, challenge.SessionID, challenge.ChallengeNonce)
	_, err = engine.VerifyChallengeResponse(context.Background(), raw)
	require.Error(t, err)
	assert.Equal(t, merr.ACLDenied, merr.As(err))
}

func TestRefreshTokenRotatesAndInvalidatesOld(t *testing.T) {
	engine, resolver, secretsStore := newTestEngine(t)
	alice, aliceKid, _ := testAgent(t, resolver, secretsStore, "alice")

	challenge, err := engine.IssueChallenge(context.Background(), string(alice))
	require.NoError(t, err)
	raw := signChallengeResponse(t, engine.Codec, aliceKid, challenge.SessionID, challenge.ChallengeNonce)
	pair, err := engine.VerifyChallengeResponse(context.Background(), raw)
	require.NoError(t, err)

	newPair, err := engine.RefreshToken(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, newPair.AccessToken)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	_, err = engine.RefreshToken(context.Background(), pair.RefreshToken)
	require.Error(t, err)

	_, _, err = engine.VerifyAccessToken(context.Background(), pair.AccessToken)
	require.Error(t, err)

	_, _, err = engine.VerifyAccessToken(context.Background(), newPair.AccessToken)
	require.NoError(t, err)
}
