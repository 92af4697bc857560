// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import (
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// concatKDF implements the Concat KDF from NIST SP 800-56A as profiled by
// JWA §4.6.2: K_i = SHA-256(counter || Z || OtherInfo), concatenated until
// keyDataLenBits bits are produced, then truncated.
func concatKDF(z []byte, keyDataLenBits int, otherInfo []byte) []byte {
	keyLen := keyDataLenBits / 8
	var out []byte
	for counter := uint32(1); len(out) < keyLen; counter++ {
		h := sha256.New()
		var c [4]byte
		binary.BigEndian.PutUint32(c[:], counter)
		h.Write(c[:])
		h.Write(z)
		h.Write(otherInfo)
		out = append(out, h.Sum(nil)...)
	}
	return out[:keyLen]
}

// lengthPrefixed appends a 4-byte big-endian length followed by data, the
// encoding JWA uses for AlgorithmID/PartyUInfo/PartyVInfo.
func lengthPrefixed(data []byte) []byte {
	out := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(out, uint32(len(data)))
	copy(out[4:], data)
	return out
}

// otherInfo builds the ConcatKDF OtherInfo value for ECDH-ES-family key
// agreement: AlgorithmID || PartyUInfo || PartyVInfo || SuppPubInfo.
func otherInfo(alg string, apu, apv []byte, keyDataLenBits int) []byte {
	var buf []byte
	buf = append(buf, lengthPrefixed([]byte(alg))...)
	buf = append(buf, lengthPrefixed(apu)...)
	buf = append(buf, lengthPrefixed(apv)...)
	var suppPub [4]byte
	binary.BigEndian.PutUint32(suppPub[:], uint32(keyDataLenBits))
	buf = append(buf, suppPub[:]...)
	return buf
}

// deriveKEK_ES derives the ECDH-ES key-encryption key used to wrap the CEK
// for anoncrypt (spec §4.1: "anoncrypt ... ECDH-ES + A256KW").
func deriveKEK_ES(ephPriv *ecdh.PrivateKey, recipientPub *ecdh.PublicKey, apu, apv []byte) ([]byte, error) {
	z, err := ephPriv.ECDH(recipientPub)
	if err != nil {
		return nil, fmt.Errorf("envelope: ECDH-ES agreement: %w", err)
	}
	return concatKDF(z, 256, otherInfo(AlgECDHESA256KW, apu, apv, 256)), nil
}

// deriveKEK_1PU derives the ECDH-1PU key-encryption key for authcrypt on
// the sender side (spec §4.1: "authcrypt ... ECDH-1PU + A256KW"). Z is the
// concatenation of the ephemeral-to-recipient and sender-static-to-recipient
// ECDH outputs, per the ECDH-1PU draft this codebase follows.
func deriveKEK_1PU(ephPriv *ecdh.PrivateKey, senderStatic *ecdh.PrivateKey, recipientPub *ecdh.PublicKey, apu, apv []byte) ([]byte, error) {
	ze, err := ephPriv.ECDH(recipientPub)
	if err != nil {
		return nil, fmt.Errorf("envelope: ECDH-1PU ephemeral agreement: %w", err)
	}
	zs, err := senderStatic.ECDH(recipientPub)
	if err != nil {
		return nil, fmt.Errorf("envelope: ECDH-1PU static agreement: %w", err)
	}
	return deriveKEK1PUFromZ(ze, zs, apu, apv), nil
}

// deriveKEK_1PU_Recipient derives the same ECDH-1PU key-encryption key as
// deriveKEK_1PU, but from the recipient's side: a single static private key
// run against the sender's ephemeral and static public keys in turn.
func deriveKEK_1PU_Recipient(ourPriv *ecdh.PrivateKey, epkPub, senderPub *ecdh.PublicKey, apu, apv []byte) ([]byte, error) {
	ze, err := ourPriv.ECDH(epkPub)
	if err != nil {
		return nil, fmt.Errorf("envelope: ECDH-1PU ephemeral agreement: %w", err)
	}
	zs, err := ourPriv.ECDH(senderPub)
	if err != nil {
		return nil, fmt.Errorf("envelope: ECDH-1PU static agreement: %w", err)
	}
	return deriveKEK1PUFromZ(ze, zs, apu, apv), nil
}

func deriveKEK1PUFromZ(ze, zs, apu, apv []byte) []byte {
	z := append(append([]byte{}, ze...), zs...)
	return concatKDF(z, 256, otherInfo(AlgECDH1PUA256KW, apu, apv, 256))
}
