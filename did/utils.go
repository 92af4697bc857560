// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package did

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Hash computes the did_hash every did_hash/to_did_hash/from_did_hash
// field in the persisted state layout is defined as (spec §3, §4.3):
// sha256 of the DID string, hex encoded.
func Hash(d AgentDID) string {
	sum := sha256.Sum256([]byte(d))
	return hex.EncodeToString(sum[:])
}

// ResolveAuthenticationKey finds the kid in doc's authentication list and
// returns its raw public key bytes, decoded from whichever representation
// the verification method carries (JWK or multibase).
func ResolveAuthenticationKey(doc *Document, kid string) ([]byte, string, error) {
	if !doc.HasAuthenticationKey(kid) {
		return nil, "", ErrKeyURLNotFound
	}
	return resolveKeyMaterial(doc, kid)
}

// ResolveKeyAgreementKey finds the kid in doc's keyAgreement list and
// returns its raw public key bytes.
func ResolveKeyAgreementKey(doc *Document, kid string) ([]byte, string, error) {
	if !doc.HasKeyAgreementKey(kid) {
		return nil, "", ErrKeyURLNotFound
	}
	return resolveKeyMaterial(doc, kid)
}

func resolveKeyMaterial(doc *Document, kid string) ([]byte, string, error) {
	vm, ok := doc.FindVerificationMethod(kid)
	if !ok {
		return nil, "", ErrKeyURLNotFound
	}

	if vm.PublicKeyJwk != nil {
		return jwkToRawKey(vm.PublicKeyJwk)
	}
	if vm.PublicKeyMultibase != "" {
		raw, err := decodeMultibase(vm.PublicKeyMultibase)
		if err != nil {
			return nil, "", err
		}
		return raw, vm.Type, nil
	}
	return nil, "", fmt.Errorf("did: verification method %s has no key material", vm.ID)
}

// jwkToRawKey extracts the raw public key bytes (and key type) from a
// public JWK map, i.e. the JSON object form of crypto/formats.JWK in this
// repo's sibling crypto package.
func jwkToRawKey(jwk map[string]interface{}) ([]byte, string, error) {
	kty, _ := jwk["kty"].(string)
	switch kty {
	case "OKP":
		crv, _ := jwk["crv"].(string)
		x, _ := jwk["x"].(string)
		raw, err := base64urlDecode(x)
		if err != nil {
			return nil, "", err
		}
		if crv == "Ed25519" && len(raw) != ed25519.PublicKeySize {
			return nil, "", fmt.Errorf("did: bad Ed25519 key length %d", len(raw))
		}
		return raw, crv, nil
	case "EC":
		crv, _ := jwk["crv"].(string)
		x, _ := jwk["x"].(string)
		y, _ := jwk["y"].(string)
		xb, err := base64urlDecode(x)
		if err != nil {
			return nil, "", err
		}
		yb, err := base64urlDecode(y)
		if err != nil {
			return nil, "", err
		}
		if crv == "secp256k1" {
			pub, err := secp256k1.ParsePubKey(append([]byte{0x04}, append(xb, yb...)...))
			if err != nil {
				return nil, "", err
			}
			return pub.SerializeCompressed(), crv, nil
		}
		return append([]byte{0x04}, append(xb, yb...)...), crv, nil
	default:
		return nil, "", ErrUnsupportedKey
	}
}

func base64urlDecode(s string) ([]byte, error) {
	return b64urlDecode(s)
}
