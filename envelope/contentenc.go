// SPDX-License-Identifier: LGPL-3.0-or-later

package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// contentCipher is a JWE content-encryption algorithm: it owns the full
// CEK (already unwrapped/derived) and seals or opens the ciphertext.
type contentCipher interface {
	keySize() int
	seal(key, aad, plaintext []byte) (iv, ciphertext, tag []byte, err error)
	open(key, aad, iv, ciphertext, tag []byte) ([]byte, error)
}

func cipherFor(enc string) (contentCipher, error) {
	switch enc {
	case EncA256GCM:
		return a256gcmCipher{}, nil
	case EncXC20P:
		return xc20pCipher{}, nil
	case EncA256CBCHS512:
		return a256cbcHS512Cipher{}, nil
	default:
		return nil, fmt.Errorf("envelope: unsupported content encryption %q", enc)
	}
}

type a256gcmCipher struct{}

func (a256gcmCipher) keySize() int { return 32 }

func (a256gcmCipher) seal(key, aad, plaintext []byte) ([]byte, []byte, []byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, err
	}
	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, nil, err
	}
	sealed := gcm.Seal(nil, iv, plaintext, aad)
	ct, tag := sealed[:len(sealed)-gcm.Overhead()], sealed[len(sealed)-gcm.Overhead():]
	return iv, ct, tag, nil
}

func (a256gcmCipher) open(key, aad, iv, ciphertext, tag []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return gcm.Open(nil, iv, append(append([]byte{}, ciphertext...), tag...), aad)
}

type xc20pCipher struct{}

func (xc20pCipher) keySize() int { return chacha20poly1305.KeySize }

func (xc20pCipher) seal(key, aad, plaintext []byte) ([]byte, []byte, []byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, nil, err
	}
	iv := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, nil, err
	}
	sealed := aead.Seal(nil, iv, plaintext, aad)
	ct, tag := sealed[:len(sealed)-aead.Overhead()], sealed[len(sealed)-aead.Overhead():]
	return iv, ct, tag, nil
}

func (xc20pCipher) open(key, aad, iv, ciphertext, tag []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, iv, append(append([]byte{}, ciphertext...), tag...), aad)
}

// a256cbcHS512Cipher implements A256CBC-HS512 per JWA §5.2.3: a 64-byte
// key splits into a 32-byte HMAC-SHA512 MAC key (first half) and a
// 32-byte AES-256-CBC encryption key (second half); the tag is the
// leftmost 32 bytes of HMAC(mac_key, AAD || IV || ciphertext || AAD-len).
type a256cbcHS512Cipher struct{}

func (a256cbcHS512Cipher) keySize() int { return 64 }

func (c a256cbcHS512Cipher) seal(key, aad, plaintext []byte) ([]byte, []byte, []byte, error) {
	macKey, encKey := key[:32], key[32:]

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, nil, nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, nil, nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	tag := c.computeTag(macKey, aad, iv, ct)
	return iv, ct, tag, nil
}

func (c a256cbcHS512Cipher) open(key, aad, iv, ciphertext, tag []byte) ([]byte, error) {
	macKey, encKey := key[:32], key[32:]

	expected := c.computeTag(macKey, aad, iv, ciphertext)
	if subtle.ConstantTimeCompare(expected, tag) != 1 {
		return nil, fmt.Errorf("envelope: A256CBC-HS512 tag mismatch")
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("envelope: ciphertext not block-aligned")
	}
	pt := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ciphertext)
	return pkcs7Unpad(pt)
}

func (a256cbcHS512Cipher) computeTag(macKey, aad, iv, ciphertext []byte) []byte {
	al := make([]byte, 8)
	binary.BigEndian.PutUint64(al, uint64(len(aad))*8)

	mac := hmac.New(sha512.New, macKey)
	mac.Write(aad)
	mac.Write(iv)
	mac.Write(ciphertext)
	mac.Write(al)
	return mac.Sum(nil)[:32]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("envelope: empty padded block")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("envelope: invalid padding")
	}
	return data[:len(data)-padLen], nil
}
