// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	sagecrypto "github.com/didcomm-x/mediator/crypto"
)

// signDetached signs signingInput with the given key pair, choosing the
// JWS alg from the key type (spec §4.1: "alg chosen from signer key type").
func signDetached(kp sagecrypto.KeyPair, signingInput []byte) (sig []byte, alg string, err error) {
	info, ok := sagecrypto.GetAlgorithm(kp.Type())
	if !ok || !info.SupportsSignature {
		return nil, "", fmt.Errorf("envelope: key type %s does not support JWS signing", kp.Type())
	}

	switch kp.Type() {
	case sagecrypto.KeyTypeEd25519:
		sig, err := kp.Sign(signingInput)
		return sig, SigEdDSA, err
	case sagecrypto.KeyTypeSecp256k1:
		return signES256K(kp, signingInput)
	case sagecrypto.KeyTypeP256:
		sig, err := kp.Sign(signingInput)
		return sig, SigES256, err
	default:
		return nil, "", fmt.Errorf("envelope: key type %s does not support JWS signing", kp.Type())
	}
}

func signES256K(kp sagecrypto.KeyPair, signingInput []byte) ([]byte, string, error) {
	sig, err := kp.Sign(signingInput)
	if err != nil {
		return nil, "", err
	}
	return sig, SigES256K, nil
}

// verifyDetached verifies signingInput against sig using the raw public
// key material resolved for the signer's kid, per the JWS alg header.
func verifyDetached(alg string, pub any, signingInput, sig []byte) error {
	switch alg {
	case SigEdDSA:
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return fmt.Errorf("envelope: EdDSA signature needs an Ed25519 public key")
		}
		if !ed25519.Verify(edPub, signingInput, sig) {
			return fmt.Errorf("envelope: EdDSA signature verification failed")
		}
		return nil
	case SigES256:
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok || ecPub.Curve != elliptic.P256() {
			return fmt.Errorf("envelope: ES256 signature needs a P-256 public key")
		}
		return verifyECDSA(ecPub, signingInput, sig)
	case SigES256K:
		secpPub, ok := pub.(*secp256k1.PublicKey)
		if !ok {
			return fmt.Errorf("envelope: ES256K signature needs a secp256k1 public key")
		}
		return verifyECDSA(secpPub.ToECDSA(), signingInput, sig)
	default:
		return fmt.Errorf("envelope: unsupported signature algorithm %q", alg)
	}
}

func verifyECDSA(pub *ecdsa.PublicKey, signingInput, sig []byte) error {
	if len(sig) != 64 {
		return fmt.Errorf("envelope: malformed ECDSA signature length")
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	hash := sha256.Sum256(signingInput)
	if !ecdsa.Verify(pub, hash[:], r, s) {
		return fmt.Errorf("envelope: ECDSA signature verification failed")
	}
	return nil
}

