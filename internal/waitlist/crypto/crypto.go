// Package crypto provides the two primitives the waitlist stores personal
// data with: deterministic SHA-256 hashing for uniqueness indexing, and
// AES-256-GCM envelope encryption for the fields themselves. Hashes are used
// only for equality lookups, never for confidentiality.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// AlgAESGCM tags every encrypted payload so stored records stay
// self-describing across future algorithm changes.
const AlgAESGCM = "AES-256-GCM"

const (
	keySize   = 32
	nonceSize = 12
)

var (
	// ErrMalformedPayload signals a payload with a missing or unknown
	// algorithm tag, or undecodable fields. Treated as internal upstream.
	ErrMalformedPayload = errors.New("malformed encrypted payload")

	// ErrAuthentication signals a failed GCM tag check: the ciphertext was
	// tampered with or a different key was used. No partial plaintext is
	// ever returned.
	ErrAuthentication = errors.New("ciphertext authentication failed")
)

// EncryptedField is the stored form of one sensitive field. Every component
// is independently base64-encoded.
type EncryptedField struct {
	Alg        string `json:"alg"`
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
	Ciphertext string `json:"ciphertext"`
}

// Hash returns the hex-encoded SHA-256 digest of value. Deterministic by
// design: equal canonical values produce equal index keys.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Cipher encrypts and decrypts waitlist fields under one process-wide key.
// Construct it once at startup; NewCipher fails fast on a bad key so request
// handling never has to re-validate configuration.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher decodes the base64 key and prepares the AEAD. The decoded key
// must be exactly 32 bytes.
func NewCipher(encodedKey string) (*Cipher, error) {
	if encodedKey == "" {
		return nil, errors.New("encryption key is not set")
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must decode to %d bytes, got %d", keySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random 96-bit IV. IVs are never
// reused under the same key; two encryptions of equal plaintexts produce
// distinct payloads.
func (c *Cipher) Encrypt(plaintext string) (EncryptedField, error) {
	iv := make([]byte, nonceSize)
	if _, err := rand.Read(iv); err != nil {
		return EncryptedField{}, fmt.Errorf("generate iv: %w", err)
	}

	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	tagStart := len(sealed) - c.aead.Overhead()

	return EncryptedField{
		Alg:        AlgAESGCM,
		IV:         base64.StdEncoding.EncodeToString(iv),
		Tag:        base64.StdEncoding.EncodeToString(sealed[tagStart:]),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed[:tagStart]),
	}, nil
}

// Decrypt opens a stored field. It fails with ErrMalformedPayload for
// unrecognized or undecodable payloads and ErrAuthentication when the tag
// does not verify.
func (c *Cipher) Decrypt(field EncryptedField) (string, error) {
	if field.Alg != AlgAESGCM {
		return "", ErrMalformedPayload
	}

	iv, err := base64.StdEncoding.DecodeString(field.IV)
	if err != nil || len(iv) != nonceSize {
		return "", ErrMalformedPayload
	}
	tag, err := base64.StdEncoding.DecodeString(field.Tag)
	if err != nil || len(tag) != c.aead.Overhead() {
		return "", ErrMalformedPayload
	}
	ciphertext, err := base64.StdEncoding.DecodeString(field.Ciphertext)
	if err != nil {
		return "", ErrMalformedPayload
	}

	plaintext, err := c.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrAuthentication
	}
	return string(plaintext), nil
}
