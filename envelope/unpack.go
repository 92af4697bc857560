// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/internal/merr"
)

// rawEnvelope is used only to sniff which of {JWE, JWS, plaintext} raw
// bytes represent, per spec §3's tagged union.
type rawEnvelope struct {
	Ciphertext *string `json:"ciphertext"`
	Signatures []json.RawMessage `json:"signatures"`
}

// Unpack iteratively peels raw from its outermost envelope down to a
// plaintext Message (spec §4.1), bounded by c.MaxDepth (spec §9).
func (c *Codec) Unpack(ctx context.Context, raw []byte) (*MetaEnvelope, error) {
	hash := sha256.Sum256(raw)
	meta := UnpackMetadata{}

	cur := raw
	for depth := 0; ; depth++ {
		if depth >= c.MaxDepth {
			return nil, merr.New(merr.InvalidState, "envelope nesting exceeds maximum depth")
		}

		var sniff rawEnvelope
		if err := json.Unmarshal(cur, &sniff); err != nil {
			return nil, merr.Wrap(merr.Malformed, err, "decode envelope layer")
		}

		switch {
		case sniff.Ciphertext != nil:
			next, err := c.peelJWE(ctx, cur, &meta)
			if err != nil {
				return nil, err
			}
			cur = next

		case len(sniff.Signatures) > 0:
			next, err := c.peelJWS(ctx, cur, &meta)
			if err != nil {
				return nil, err
			}
			cur = next

		default:
			var msg Message
			if err := json.Unmarshal(cur, &msg); err != nil {
				return nil, merr.Wrap(merr.Malformed, err, "decode plaintext message")
			}
			if msg.ID == "" || msg.Type == "" {
				return nil, merr.New(merr.Malformed, "plaintext message missing id/type")
			}
			if msg.FromPrior != "" {
				issuerKid, err := c.VerifyFromPrior(ctx, &msg)
				if err != nil {
					return nil, err
				}
				meta.FromPriorIssuerKid = issuerKid
				meta.FromPriorJWT = msg.FromPrior
			}

			env := &Envelope{Kind: KindPlaintext, Plaintext: &msg, Raw: raw}
			return &MetaEnvelope{
				RawMessage: raw,
				Envelope:   env,
				Metadata:   meta,
				SHA256Hash: hex.EncodeToString(hash[:]),
			}, nil
		}
	}
}

// peelJWE decrypts one JWE layer, returning the plaintext bytes of the
// next layer (which may itself be a JWS, a JWE, or plaintext).
func (c *Codec) peelJWE(ctx context.Context, raw []byte, meta *UnpackMetadata) ([]byte, error) {
	var jwe JWE
	if err := json.Unmarshal(raw, &jwe); err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "decode jwe")
	}

	protectedJSON, err := b64d(jwe.Protected)
	if err != nil {
		return nil, err
	}
	var header JWEProtectedHeader
	if err := json.Unmarshal(protectedJSON, &header); err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "decode jwe protected header")
	}
	if header.Typ != TypEncrypted {
		return nil, merr.Newf(merr.Malformed, "unexpected jwe typ %q", header.Typ)
	}
	if header.Alg != AlgECDHESA256KW && header.Alg != AlgECDH1PUA256KW {
		return nil, merr.Newf(merr.Unsupported, "jwe alg %q", header.Alg)
	}
	if header.Epk == nil || header.Epk.Crv != "X25519" {
		return nil, merr.New(merr.NoCompatibleCrypto, "jwe missing X25519 epk")
	}

	kids := make([]string, 0, len(jwe.Recipients))
	for _, r := range jwe.Recipients {
		kids = append(kids, r.Header.Kid)
	}
	found, err := c.Secrets.FindSecrets(ctx, kids)
	if err != nil {
		return nil, merr.Wrap(merr.DatabaseError, err, "find secrets")
	}
	if len(found) == 0 {
		return nil, merr.New(merr.NoCompatibleCrypto, "no recipient key held by this mediator")
	}
	ourKid := found[0]

	var encryptedKeyB64 string
	for _, r := range jwe.Recipients {
		if r.Header.Kid == ourKid {
			encryptedKeyB64 = r.EncryptedKey
			break
		}
	}
	ourPriv, err := c.loadAgreementKey(ctx, ourKid)
	if err != nil {
		return nil, err
	}

	epkBytes, err := b64d(header.Epk.X)
	if err != nil {
		return nil, err
	}
	epkPub, err := ecdh.X25519().NewPublicKey(epkBytes)
	if err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "parse epk")
	}

	apu, _ := b64d(header.Apu)
	apv, _ := b64d(header.Apv)

	var kek []byte
	authenticated := header.Alg == AlgECDH1PUA256KW
	if authenticated {
		if header.Skid == "" {
			return nil, merr.New(merr.Malformed, "ECDH-1PU header missing skid")
		}
		senderPub, err := c.resolveRecipientKeyAgreement(ctx, header.Skid)
		if err != nil {
			return nil, err
		}
		kek, err = deriveKEK_1PU_Recipient(ourPriv, epkPub, senderPub, apu, apv)
		if err != nil {
			return nil, merr.Wrap(merr.NoCompatibleCrypto, err, "ECDH-1PU agreement")
		}
		meta.Authenticated = true
		meta.EncryptedFromKid = header.Skid
		meta.EncAlgAuth = header.Enc
	} else {
		kek, err = deriveKEK_ES(ourPriv, epkPub, apu, apv)
		if err != nil {
			return nil, merr.Wrap(merr.NoCompatibleCrypto, err, "ECDH-ES agreement")
		}
		meta.AnonymousSender = true
		meta.EncAlgAnon = header.Enc
	}

	wrapped, err := b64d(encryptedKeyB64)
	if err != nil {
		return nil, err
	}
	cek, err := aesKeyUnwrap(kek, wrapped)
	if err != nil {
		return nil, merr.Wrap(merr.NoCompatibleCrypto, err, "unwrap cek")
	}

	cc, err := cipherFor(header.Enc)
	if err != nil {
		return nil, merr.Wrap(merr.Unsupported, err, "content encryption")
	}
	iv, err := b64d(jwe.IV)
	if err != nil {
		return nil, err
	}
	ciphertext, err := b64d(jwe.Ciphertext)
	if err != nil {
		return nil, err
	}
	tag, err := b64d(jwe.Tag)
	if err != nil {
		return nil, err
	}

	plaintext, err := cc.open(cek, []byte(jwe.Protected), iv, ciphertext, tag)
	if err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "decrypt jwe")
	}

	meta.Encrypted = true
	meta.EncryptedToKids = append(meta.EncryptedToKids, ourKid)
	return plaintext, nil
}

// peelJWS verifies one JWS layer and returns its payload bytes (spec
// §4.1 "Signing verification": exactly one protected header per JWS).
func (c *Codec) peelJWS(ctx context.Context, raw []byte, meta *UnpackMetadata) ([]byte, error) {
	var jws JWS
	if err := json.Unmarshal(raw, &jws); err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "decode jws")
	}
	if len(jws.Signatures) != 1 {
		return nil, merr.New(merr.Malformed, "jws must carry exactly one signature")
	}
	sig := jws.Signatures[0]

	protectedJSON, err := b64d(sig.Protected)
	if err != nil {
		return nil, err
	}
	var header JWSProtectedHeader
	if err := json.Unmarshal(protectedJSON, &header); err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "decode jws protected header")
	}

	kid := sig.Header.Kid
	doc, err := resolveDoc(ctx, c.DIDs, didOf(kid))
	if err != nil {
		return nil, err
	}
	rawPub, crv, err := did.ResolveAuthenticationKey(doc, kid)
	if err != nil {
		return nil, merr.Wrap(merr.DIDUrlNotFound, err, "resolve signer key "+kid)
	}

	pub, err := toVerifyKey(crv, rawPub)
	if err != nil {
		return nil, merr.Wrap(merr.NoCompatibleCrypto, err, "signer key material")
	}

	signingInput := sig.Protected + "." + jws.Payload
	sigBytes, err := b64d(sig.Signature)
	if err != nil {
		return nil, err
	}
	if err := verifyDetached(header.Alg, pub, []byte(signingInput), sigBytes); err != nil {
		return nil, merr.Wrap(merr.Malformed, err, "jws signature verification")
	}

	payload, err := b64d(jws.Payload)
	if err != nil {
		return nil, err
	}

	meta.NonRepudiation = true
	meta.SignAlg = header.Alg
	meta.SignFrom = kid
	meta.SignedMessage = payload
	return payload, nil
}

func toVerifyKey(crv string, raw []byte) (any, error) {
	switch crv {
	case "Ed25519":
		return ed25519.PublicKey(raw), nil
	case "secp256k1":
		pub, err := secp256k1.ParsePubKey(raw)
		if err != nil {
			return nil, err
		}
		return pub, nil
	case "P-256":
		curve := elliptic.P256()
		byteLen := (curve.Params().BitSize + 7) / 8
		if len(raw) != 1+2*byteLen || raw[0] != 0x04 {
			return nil, fmt.Errorf("envelope: malformed P-256 public key point")
		}
		x := new(big.Int).SetBytes(raw[1 : 1+byteLen])
		y := new(big.Int).SetBytes(raw[1+byteLen:])
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
	default:
		return nil, merr.Newf(merr.Unsupported, "signer key curve %q", crv)
	}
}
