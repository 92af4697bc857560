// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import "github.com/didcomm-x/mediator/crypto/formats"

// JWE is the JSON-serialized JWE structure used on the wire (spec §6).
type JWE struct {
	Protected  string          `json:"protected"`
	Recipients []JWERecipient  `json:"recipients"`
	IV         string          `json:"iv"`
	Ciphertext string          `json:"ciphertext"`
	Tag        string          `json:"tag"`
	AAD        string          `json:"aad,omitempty"`
}

// JWERecipient is one per-recipient entry in a JWE's recipients array.
type JWERecipient struct {
	Header       JWERecipientHeader `json:"header"`
	EncryptedKey string             `json:"encrypted_key"`
}

// JWERecipientHeader carries the recipient's key id.
type JWERecipientHeader struct {
	Kid string `json:"kid"`
}

// JWEProtectedHeader is the (base64url-decoded) protected header of a JWE.
type JWEProtectedHeader struct {
	Typ  string      `json:"typ"`
	Alg  string      `json:"alg"`
	Enc  string      `json:"enc"`
	Skid string      `json:"skid,omitempty"`
	Apu  string      `json:"apu,omitempty"`
	Apv  string      `json:"apv,omitempty"`
	Epk  *formats.JWK `json:"epk,omitempty"`
}

// JWS is the JSON-serialized JWS structure used on the wire (spec §6).
type JWS struct {
	Payload    string          `json:"payload"`
	Signatures []JWSSignature  `json:"signatures"`
}

// JWSSignature is one entry in a JWS's signatures array. DIDComm requires
// exactly one (spec §4.1 "Signing verification").
type JWSSignature struct {
	Protected string            `json:"protected"`
	Signature string            `json:"signature"`
	Header    JWSSignatureHeader `json:"header"`
}

// JWSSignatureHeader carries the signer's key id.
type JWSSignatureHeader struct {
	Kid string `json:"kid"`
}

// JWSProtectedHeader is the (base64url-decoded) protected header of a JWS.
type JWSProtectedHeader struct {
	Typ string `json:"typ"`
	Alg string `json:"alg"`
}

const (
	TypEncrypted = "application/didcomm-encrypted+json"
	TypSigned    = "application/didcomm-signed+json"
	TypPlain     = "application/didcomm-plain+json"
)

// Supported algorithm identifiers (spec §6 "Algorithm set").
const (
	AlgECDHESA256KW = "ECDH-ES+A256KW"
	AlgECDH1PUA256KW = "ECDH-1PU+A256KW"

	EncA256CBCHS512 = "A256CBC-HS512"
	EncXC20P        = "XC20P"
	EncA256GCM      = "A256GCM"

	SigEdDSA  = "EdDSA"
	SigES256  = "ES256"
	SigES256K = "ES256K"
)
