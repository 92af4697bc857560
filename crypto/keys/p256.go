package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	sagecrypto "github.com/didcomm-x/mediator/crypto"
)

// p256KeyPair implements the KeyPair interface for NIST P-256 keys (JWS alg ES256).
type p256KeyPair struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	id         string
}

// GenerateP256KeyPair generates a new P-256 key pair.
func GenerateP256KeyPair() (sagecrypto.KeyPair, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewP256KeyPair(privateKey, "")
}

// NewP256KeyPair creates a new P-256 key pair from an existing private key.
func NewP256KeyPair(privateKey *ecdsa.PrivateKey, id string) (sagecrypto.KeyPair, error) {
	publicKey := &privateKey.PublicKey

	if id == "" {
		hash := sha256.Sum256(elliptic.Marshal(publicKey.Curve, publicKey.X, publicKey.Y))
		id = hex.EncodeToString(hash[:8])
	}

	return &p256KeyPair{
		privateKey: privateKey,
		publicKey:  publicKey,
		id:         id,
	}, nil
}

// PublicKey returns the public key
func (kp *p256KeyPair) PublicKey() crypto.PublicKey {
	return kp.publicKey
}

// PrivateKey returns the private key
func (kp *p256KeyPair) PrivateKey() crypto.PrivateKey {
	return kp.privateKey
}

// Type returns the key type
func (kp *p256KeyPair) Type() sagecrypto.KeyType {
	return sagecrypto.KeyTypeP256
}

// Sign signs the given message, returning a raw r||s signature (spec
// §4.1's ES256 wire format, matching the secp256k1/ES256K encoding).
func (kp *p256KeyPair) Sign(message []byte) ([]byte, error) {
	hash := sha256.Sum256(message)

	r, s, err := ecdsa.Sign(rand.Reader, kp.privateKey, hash[:])
	if err != nil {
		return nil, err
	}

	return serializeSignature(r, s), nil
}

// Verify verifies the signature
func (kp *p256KeyPair) Verify(message, signature []byte) error {
	hash := sha256.Sum256(message)

	r, s, err := deserializeSignature(signature)
	if err != nil {
		return sagecrypto.ErrInvalidSignature
	}

	if !ecdsa.Verify(kp.publicKey, hash[:], r, s) {
		return sagecrypto.ErrInvalidSignature
	}

	return nil
}

// ID returns a unique identifier for this key pair
func (kp *p256KeyPair) ID() string {
	return kp.id
}
