// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"sort"
	"strings"

	sagecrypto "github.com/didcomm-x/mediator/crypto"
	"github.com/didcomm-x/mediator/crypto/formats"
	"github.com/didcomm-x/mediator/crypto/keys"
	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/internal/merr"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PackPlaintext serializes msg as a plain JSON DIDComm message (spec §4.1).
func PackPlaintext(msg *Message) (string, error) {
	if msg.ID == "" || msg.Type == "" {
		return "", merr.New(merr.Malformed, "message missing required id/type")
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return "", merr.Wrap(merr.Malformed, err, "marshal plaintext message")
	}
	return string(b), nil
}

// PackSigned produces a JWS carrying the payload inline, signed by signerKid
// (spec §4.1: "alg chosen from signer key type").
func (c *Codec) PackSigned(ctx context.Context, msg *Message, signerKid string) (string, *UnpackMetadata, error) {
	kp, err := c.loadSigningKey(ctx, signerKid)
	if err != nil {
		return "", nil, err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return "", nil, merr.Wrap(merr.Malformed, err, "marshal message for signing")
	}
	payloadB64 := b64e(payload)

	alg := algForKeyType(kp.Type())
	protected := JWSProtectedHeader{Typ: TypSigned, Alg: alg}
	protectedJSON, _ := json.Marshal(protected)
	protectedB64 := b64e(protectedJSON)

	signingInput := protectedB64 + "." + payloadB64
	sig, _, err := signDetached(kp, []byte(signingInput))
	if err != nil {
		return "", nil, merr.Wrap(merr.NoCompatibleCrypto, err, "sign message")
	}

	jws := JWS{
		Payload: payloadB64,
		Signatures: []JWSSignature{{
			Protected: protectedB64,
			Signature: b64e(sig),
			Header:    JWSSignatureHeader{Kid: signerKid},
		}},
	}
	out, err := json.Marshal(jws)
	if err != nil {
		return "", nil, merr.Wrap(merr.Malformed, err, "marshal jws")
	}

	return string(out), &UnpackMetadata{NonRepudiation: true, SignAlg: alg, SignFrom: signerKid}, nil
}

// PackEncrypted packs msg per spec §4.1: authcrypt via ECDH-1PU+A256KW
// when from is set, anoncrypt via ECDH-ES+A256KW otherwise; if signBy is
// set the message is signed first and the resulting JWS becomes the
// encrypted payload (nested JWM).
func (c *Codec) PackEncrypted(ctx context.Context, msg *Message, to []string, from, signBy string, opts PackOptions) (string, *UnpackMetadata, error) {
	if len(to) == 0 {
		return "", nil, merr.New(merr.RequestDataError, "pack_encrypted requires at least one recipient")
	}
	enc := opts.Enc
	if enc == "" {
		enc = EncA256CBCHS512
	}
	cc, err := cipherFor(enc)
	if err != nil {
		return "", nil, merr.Wrap(merr.Unsupported, err, "content encryption")
	}

	var plaintext []byte
	meta := &UnpackMetadata{Encrypted: true, AnonymousSender: from == ""}

	if signBy != "" {
		signedJWS, signMeta, err := c.PackSigned(ctx, msg, signBy)
		if err != nil {
			return "", nil, err
		}
		plaintext = []byte(signedJWS)
		meta.NonRepudiation = true
		meta.SignAlg = signMeta.SignAlg
		meta.SignFrom = signMeta.SignFrom
	} else {
		plaintext, err = json.Marshal(msg)
		if err != nil {
			return "", nil, merr.Wrap(merr.Malformed, err, "marshal message for encryption")
		}
	}

	ephPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, merr.Wrap(merr.InvalidState, err, "generate ephemeral key")
	}

	var senderPriv *ecdh.PrivateKey
	alg := AlgECDHESA256KW
	if from != "" {
		senderPriv, err = c.loadAgreementKey(ctx, from)
		if err != nil {
			return "", nil, err
		}
		alg = AlgECDH1PUA256KW
		meta.Authenticated = true
		meta.EncryptedFromKid = from
	}
	if signBy != "" {
		meta.Authenticated = true
	}

	sortedTo := append([]string{}, to...)
	sort.Strings(sortedTo)
	apv := []byte(strings.Join(sortedTo, "."))
	var apu []byte
	if from != "" {
		apu = []byte(from)
	}

	cek := make([]byte, cc.keySize())
	if _, err := rand.Read(cek); err != nil {
		return "", nil, merr.Wrap(merr.InvalidState, err, "generate cek")
	}

	protected := JWEProtectedHeader{
		Typ: TypEncrypted,
		Alg: alg,
		Enc: enc,
		Apu: b64e(apu),
		Apv: b64e(apv),
		Epk: x25519PubToJWK(ephPriv.PublicKey()),
	}
	if from != "" {
		protected.Skid = from
	}
	protectedJSON, err := json.Marshal(protected)
	if err != nil {
		return "", nil, merr.Wrap(merr.Malformed, err, "marshal jwe protected header")
	}
	protectedB64 := b64e(protectedJSON)

	recipients := make([]JWERecipient, 0, len(to))
	for _, kid := range to {
		recipientPub, err := c.resolveRecipientKeyAgreement(ctx, kid)
		if err != nil {
			return "", nil, err
		}

		var kek []byte
		if from != "" {
			kek, err = deriveKEK_1PU(ephPriv, senderPriv, recipientPub, apu, apv)
		} else {
			kek, err = deriveKEK_ES(ephPriv, recipientPub, apu, apv)
		}
		if err != nil {
			return "", nil, merr.Wrap(merr.NoCompatibleCrypto, err, "key agreement for "+kid)
		}

		wrapped, err := aesKeyWrap(kek, cek)
		if err != nil {
			return "", nil, merr.Wrap(merr.InvalidState, err, "wrap cek for "+kid)
		}

		recipients = append(recipients, JWERecipient{
			Header:       JWERecipientHeader{Kid: kid},
			EncryptedKey: b64e(wrapped),
		})
		meta.EncryptedToKids = append(meta.EncryptedToKids, kid)
	}

	iv, ciphertext, tag, err := cc.seal(cek, []byte(protectedB64), plaintext)
	if err != nil {
		return "", nil, merr.Wrap(merr.InvalidState, err, "seal content")
	}

	jwe := JWE{
		Protected:  protectedB64,
		Recipients: recipients,
		IV:         b64e(iv),
		Ciphertext: b64e(ciphertext),
		Tag:        b64e(tag),
	}
	out, err := json.Marshal(jwe)
	if err != nil {
		return "", nil, merr.Wrap(merr.Malformed, err, "marshal jwe")
	}

	if from != "" {
		meta.EncAlgAuth = enc
	} else {
		meta.EncAlgAnon = enc
	}
	return string(out), meta, nil
}

func algForKeyType(kt sagecrypto.KeyType) string {
	switch kt {
	case sagecrypto.KeyTypeEd25519:
		return SigEdDSA
	case sagecrypto.KeyTypeSecp256k1:
		return SigES256K
	case sagecrypto.KeyTypeP256:
		return SigES256
	default:
		return SigES256
	}
}

func x25519PubToJWK(pub *ecdh.PublicKey) *formats.JWK {
	return &formats.JWK{Kty: "OKP", Crv: "X25519", X: b64e(pub.Bytes())}
}

// loadSigningKey resolves kid's private key material from the secrets
// collaborator and wraps it as the sagecrypto.KeyPair the signer needs.
func (c *Codec) loadSigningKey(ctx context.Context, kid string) (sagecrypto.KeyPair, error) {
	secret, err := c.Secrets.GetSecret(ctx, kid)
	if err != nil {
		return nil, merr.Wrap(merr.DatabaseError, err, "load signing secret")
	}
	if secret == nil {
		return nil, merr.New(merr.NoCompatibleCrypto, "no secret for kid "+kid)
	}

	switch secret.Type {
	case "Ed25519":
		if len(secret.Material) == ed25519.SeedSize {
			priv := ed25519.NewKeyFromSeed(secret.Material)
			return keys.NewEd25519KeyPair(priv, kid)
		}
		priv := ed25519.PrivateKey(secret.Material)
		return keys.NewEd25519KeyPair(priv, kid)
	case "Secp256k1":
		priv := secp256k1.PrivKeyFromBytes(secret.Material)
		return keys.NewSecp256k1KeyPair(priv, kid)
	case "P-256":
		priv := new(ecdsa.PrivateKey)
		priv.Curve = elliptic.P256()
		priv.D = new(big.Int).SetBytes(secret.Material)
		priv.X, priv.Y = priv.Curve.ScalarBaseMult(secret.Material)
		return keys.NewP256KeyPair(priv, kid)
	default:
		return nil, merr.Newf(merr.Unsupported, "signing key type %q", secret.Type)
	}
}

// loadAgreementKey resolves kid's X25519 private key for authcrypt.
func (c *Codec) loadAgreementKey(ctx context.Context, kid string) (*ecdh.PrivateKey, error) {
	secret, err := c.Secrets.GetSecret(ctx, kid)
	if err != nil {
		return nil, merr.Wrap(merr.DatabaseError, err, "load agreement secret")
	}
	if secret == nil {
		return nil, merr.New(merr.NoCompatibleCrypto, "no secret for kid "+kid)
	}
	priv, err := ecdh.X25519().NewPrivateKey(secret.Material)
	if err != nil {
		return nil, merr.Wrap(merr.NoCompatibleCrypto, err, "parse X25519 private key")
	}
	return priv, nil
}

// resolveRecipientKeyAgreement resolves kid's X25519 public key from its
// DID document (spec §4.1 "Key-agreement policy").
func (c *Codec) resolveRecipientKeyAgreement(ctx context.Context, kid string) (*ecdh.PublicKey, error) {
	doc, err := resolveDoc(ctx, c.DIDs, didOf(kid))
	if err != nil {
		return nil, err
	}
	raw, crv, err := did.ResolveKeyAgreementKey(doc, kid)
	if err != nil {
		return nil, merr.Wrap(merr.DIDUrlNotFound, err, "resolve key agreement key "+kid)
	}
	if crv != "X25519" {
		return nil, merr.Newf(merr.NoCompatibleCrypto, "recipient key %s is %s, want X25519", kid, crv)
	}
	pub, err := ecdh.X25519().NewPublicKey(raw)
	if err != nil {
		return nil, merr.Wrap(merr.NoCompatibleCrypto, err, "parse recipient X25519 key")
	}
	return pub, nil
}
