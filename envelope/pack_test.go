// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/secrets"
)

type fakeResolver struct {
	docs map[did.AgentDID]*did.Document
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{docs: make(map[did.AgentDID]*did.Document)}
}

func (f *fakeResolver) Resolve(_ context.Context, d did.AgentDID) (*did.Document, error) {
	doc, ok := f.docs[d]
	if !ok {
		return nil, did.ErrNotFound
	}
	return doc, nil
}

// agent bundles one test party's DID document and the secrets backing it.
type agent struct {
	did     did.AgentDID
	signKid string
	agrKid  string
	signPub ed25519.PublicKey
	agrPub  *ecdh.PublicKey
}

func newAgent(t *testing.T, resolver *fakeResolver, secretsStore *secrets.MemoryResolver, name string) agent {
	t.Helper()
	d := did.AgentDID("did:example:" + name)
	signKid := string(d) + "#sign-1"
	agrKid := string(d) + "#agree-1"

	signPub, signPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	agrPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)

	secretsStore.Put(&secrets.Secret{ID: signKid, Type: secrets.KeyTypeEd25519, Material: signPriv})
	secretsStore.Put(&secrets.Secret{ID: agrKid, Type: secrets.KeyTypeX25519, Material: agrPriv.Bytes()})

	doc := &did.Document{
		ID: d,
		VerificationMethod: []did.VerificationMethod{
			{
				ID:   signKid,
				Type: "Ed25519VerificationKey2020",
				PublicKeyJwk: map[string]interface{}{
					"kty": "OKP", "crv": "Ed25519",
					"x": base64.RawURLEncoding.EncodeToString(signPub),
				},
			},
			{
				ID:   agrKid,
				Type: "X25519KeyAgreementKey2020",
				PublicKeyJwk: map[string]interface{}{
					"kty": "OKP", "crv": "X25519",
					"x": base64.RawURLEncoding.EncodeToString(agrPriv.PublicKey().Bytes()),
				},
			},
		},
		Authentication: []string{signKid},
		KeyAgreement:   []string{agrKid},
	}
	resolver.docs[d] = doc

	return agent{did: d, signKid: signKid, agrKid: agrKid, signPub: signPub, agrPub: agrPriv.PublicKey()}
}

// newP256Agent is like newAgent but registers a P-256 signing key instead
// of Ed25519, so the ES256 signing path (spec §4.1/§6) can be exercised
// end to end through pack/unpack.
func newP256Agent(t *testing.T, resolver *fakeResolver, secretsStore *secrets.MemoryResolver, name string) agent {
	t.Helper()
	d := did.AgentDID("did:example:" + name)
	signKid := string(d) + "#sign-1"
	agrKid := string(d) + "#agree-1"

	signPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	agrPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)

	byteLen := (elliptic.P256().Params().BitSize + 7) / 8
	xBytes := signPriv.X.FillBytes(make([]byte, byteLen))
	yBytes := signPriv.Y.FillBytes(make([]byte, byteLen))

	secretsStore.Put(&secrets.Secret{ID: signKid, Type: secrets.KeyTypeP256, Material: signPriv.D.FillBytes(make([]byte, byteLen))})
	secretsStore.Put(&secrets.Secret{ID: agrKid, Type: secrets.KeyTypeX25519, Material: agrPriv.Bytes()})

	doc := &did.Document{
		ID: d,
		VerificationMethod: []did.VerificationMethod{
			{
				ID:   signKid,
				Type: "JsonWebKey2020",
				PublicKeyJwk: map[string]interface{}{
					"kty": "EC", "crv": "P-256",
					"x": base64.RawURLEncoding.EncodeToString(xBytes),
					"y": base64.RawURLEncoding.EncodeToString(yBytes),
				},
			},
			{
				ID:   agrKid,
				Type: "X25519KeyAgreementKey2020",
				PublicKeyJwk: map[string]interface{}{
					"kty": "OKP", "crv": "X25519",
					"x": base64.RawURLEncoding.EncodeToString(agrPriv.PublicKey().Bytes()),
				},
			},
		},
		Authentication: []string{signKid},
		KeyAgreement:   []string{agrKid},
	}
	resolver.docs[d] = doc

	return agent{did: d, signKid: signKid, agrKid: agrKid, agrPub: agrPriv.PublicKey()}
}

func newTestCodec(t *testing.T) (*Codec, *fakeResolver, *secrets.MemoryResolver, agent, agent) {
	t.Helper()
	resolver := newFakeResolver()
	secretsStore := secrets.NewMemoryResolver()
	alice := newAgent(t, resolver, secretsStore, "alice")
	bob := newAgent(t, resolver, secretsStore, "bob")
	codec := NewCodec(resolver, secretsStore)
	return codec, resolver, secretsStore, alice, bob
}

func testMessage(from string, to ...string) *Message {
	return &Message{
		ID:          "msg-1",
		Type:        "https://didcomm.org/basicmessage/2.0/message",
		From:        from,
		To:          to,
		CreatedTime: 1700000000,
		Body:        []byte(`{"content":"hello"}`),
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	t.Run("anoncrypt", func(t *testing.T) {
		codec, _, _, _, bob := newTestCodec(t)
		msg := testMessage("", bob.agrKid)

		packed, packMeta, err := codec.PackEncrypted(context.Background(), msg, []string{bob.agrKid}, "", "", PackOptions{})
		require.NoError(t, err)
		assert.True(t, packMeta.AnonymousSender)

		result, err := codec.Unpack(context.Background(), []byte(packed))
		require.NoError(t, err)
		require.NotNil(t, result.Envelope.Plaintext)
		assert.Equal(t, msg.ID, result.Envelope.Plaintext.ID)
		assert.True(t, result.Metadata.Encrypted)
		assert.True(t, result.Metadata.AnonymousSender)
		assert.False(t, result.Metadata.Authenticated)
		assert.NotEmpty(t, result.SHA256Hash)
	})

	t.Run("authcrypt", func(t *testing.T) {
		codec, _, _, alice, bob := newTestCodec(t)
		msg := testMessage(alice.agrKid, bob.agrKid)

		packed, packMeta, err := codec.PackEncrypted(context.Background(), msg, []string{bob.agrKid}, alice.agrKid, "", PackOptions{})
		require.NoError(t, err)
		assert.True(t, packMeta.Authenticated)

		result, err := codec.Unpack(context.Background(), []byte(packed))
		require.NoError(t, err)
		assert.True(t, result.Metadata.Encrypted)
		assert.True(t, result.Metadata.Authenticated)
		assert.Equal(t, alice.agrKid, result.Metadata.EncryptedFromKid)
	})

	t.Run("signed and encrypted", func(t *testing.T) {
		codec, _, _, alice, bob := newTestCodec(t)
		msg := testMessage(alice.agrKid, bob.agrKid)

		packed, _, err := codec.PackEncrypted(context.Background(), msg, []string{bob.agrKid}, alice.agrKid, alice.signKid, PackOptions{})
		require.NoError(t, err)

		result, err := codec.Unpack(context.Background(), []byte(packed))
		require.NoError(t, err)
		assert.True(t, result.Metadata.Encrypted)
		assert.True(t, result.Metadata.NonRepudiation)
		assert.Equal(t, alice.signKid, result.Metadata.SignFrom)
		assert.Equal(t, msg.ID, result.Envelope.Plaintext.ID)
	})

	t.Run("signed only", func(t *testing.T) {
		codec, _, _, alice, _ := newTestCodec(t)
		msg := testMessage(alice.agrKid)

		packed, _, err := codec.PackSigned(context.Background(), msg, alice.signKid)
		require.NoError(t, err)

		result, err := codec.Unpack(context.Background(), []byte(packed))
		require.NoError(t, err)
		assert.True(t, result.Metadata.NonRepudiation)
		assert.False(t, result.Metadata.Encrypted)
	})

	t.Run("signed only (ES256/P-256)", func(t *testing.T) {
		resolver := newFakeResolver()
		secretsStore := secrets.NewMemoryResolver()
		carol := newP256Agent(t, resolver, secretsStore, "carol")
		codec := NewCodec(resolver, secretsStore)
		msg := testMessage(carol.agrKid)

		packed, packMeta, err := codec.PackSigned(context.Background(), msg, carol.signKid)
		require.NoError(t, err)
		assert.Equal(t, SigES256, packMeta.SignAlg)

		result, err := codec.Unpack(context.Background(), []byte(packed))
		require.NoError(t, err)
		assert.True(t, result.Metadata.NonRepudiation)
		assert.Equal(t, SigES256, result.Metadata.SignAlg)
		assert.Equal(t, carol.signKid, result.Metadata.SignFrom)
		assert.False(t, result.Metadata.Encrypted)
		assert.Equal(t, msg.ID, result.Envelope.Plaintext.ID)
	})

	t.Run("plaintext", func(t *testing.T) {
		codec, _, _, alice, _ := newTestCodec(t)
		msg := testMessage(alice.agrKid)

		packed, err := PackPlaintext(msg)
		require.NoError(t, err)

		result, err := codec.Unpack(context.Background(), []byte(packed))
		require.NoError(t, err)
		assert.Equal(t, msg.ID, result.Envelope.Plaintext.ID)
		assert.False(t, result.Metadata.Encrypted)
		assert.False(t, result.Metadata.NonRepudiation)
	})
}

func TestPackEncryptedRequiresRecipient(t *testing.T) {
	codec, _, _, _, _ := newTestCodec(t)
	_, _, err := codec.PackEncrypted(context.Background(), testMessage(""), nil, "", "", PackOptions{})
	assert.Error(t, err)
}

func TestUnpackTamperedSignatureFails(t *testing.T) {
	codec, _, _, alice, _ := newTestCodec(t)
	msg := testMessage(alice.agrKid)

	packed, _, err := codec.PackSigned(context.Background(), msg, alice.signKid)
	require.NoError(t, err)

	var jws JWS
	require.NoError(t, json.Unmarshal([]byte(packed), &jws))
	sigBytes, err := b64d(jws.Signatures[0].Signature)
	require.NoError(t, err)
	sigBytes[0] ^= 0xFF
	jws.Signatures[0].Signature = b64e(sigBytes)
	tamperedBytes, err := json.Marshal(jws)
	require.NoError(t, err)

	_, err = codec.Unpack(context.Background(), tamperedBytes)
	require.Error(t, err)
}

func TestUnpackWrongRecipientFails(t *testing.T) {
	codec, resolver, secretsStore, _, bob := newTestCodec(t)
	eve := newAgent(t, resolver, secretsStore, "eve")
	_ = eve

	// A codec with no secrets for any party in this message cannot unwrap it.
	strangerCodec := NewCodec(resolver, secrets.NewMemoryResolver())
	msg := testMessage("", bob.agrKid)
	packed, _, err := codec.PackEncrypted(context.Background(), msg, []string{bob.agrKid}, "", "", PackOptions{})
	require.NoError(t, err)

	_, err = strangerCodec.Unpack(context.Background(), []byte(packed))
	require.Error(t, err)
}
