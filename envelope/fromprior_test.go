// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signFromPrior(t *testing.T, kid string, priv ed25519.PrivateKey, iss, sub string, nbf, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Issuer: iss, Subject: sub}
	if !nbf.IsZero() {
		claims.NotBefore = jwt.NewNumericDate(nbf)
	}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(priv)
	require.NoError(t, err)
	return signed
}

func TestVerifyFromPrior(t *testing.T) {
	codec, _, _, alice, bob := newTestCodec(t)
	_ = bob

	t.Run("valid rotation", func(t *testing.T) {
		priv := edPrivFor(t, codec, alice.signKid)
		token := signFromPrior(t, alice.signKid, priv, string(alice.did), "did:example:alice-new", time.Time{}, time.Time{})

		msg := &Message{ID: "m1", Type: "t", From: "did:example:alice-new", FromPrior: token}
		issuerKid, err := codec.VerifyFromPrior(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, alice.signKid, issuerKid)
	})

	t.Run("iss equals sub rejected", func(t *testing.T) {
		priv := edPrivFor(t, codec, alice.signKid)
		token := signFromPrior(t, alice.signKid, priv, string(alice.did), string(alice.did), time.Time{}, time.Time{})
		msg := &Message{ID: "m1", Type: "t", From: string(alice.did), FromPrior: token}
		_, err := codec.VerifyFromPrior(context.Background(), msg)
		assert.Error(t, err)
	})

	t.Run("expired rejected", func(t *testing.T) {
		priv := edPrivFor(t, codec, alice.signKid)
		token := signFromPrior(t, alice.signKid, priv, string(alice.did), "did:example:alice-new", time.Time{}, time.Now().Add(-time.Hour))
		msg := &Message{ID: "m1", Type: "t", From: "did:example:alice-new", FromPrior: token}
		_, err := codec.VerifyFromPrior(context.Background(), msg)
		assert.Error(t, err)
	})

	t.Run("not yet valid rejected", func(t *testing.T) {
		priv := edPrivFor(t, codec, alice.signKid)
		token := signFromPrior(t, alice.signKid, priv, string(alice.did), "did:example:alice-new", time.Now().Add(time.Hour), time.Time{})
		msg := &Message{ID: "m1", Type: "t", From: "did:example:alice-new", FromPrior: token}
		_, err := codec.VerifyFromPrior(context.Background(), msg)
		assert.Error(t, err)
	})
}

// edPrivFor recovers the raw Ed25519 private key backing an agent's
// signing kid from the test codec's secrets store, since newAgent only
// hands the test the public half.
func edPrivFor(t *testing.T, codec *Codec, kid string) ed25519.PrivateKey {
	t.Helper()
	secret, err := codec.Secrets.GetSecret(context.Background(), kid)
	require.NoError(t, err)
	require.NotNil(t, secret)
	if len(secret.Material) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(secret.Material)
	}
	return ed25519.NewKeyFromSeed(secret.Material)
}
