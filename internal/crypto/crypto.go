// Package crypto provides reversible symmetric encryption for stored
// exchange credentials.
//
// SCHEME: AES-256-GCM.
// GCM is an authenticated mode — the ciphertext carries an integrity tag, so
// Decrypt fails loudly on a tampered value or a wrong key instead of
// returning garbage. Each Encrypt call uses a fresh random nonce, so
// encrypting the same plaintext twice yields different ciphertexts.
//
// WIRE FORMAT: base64(nonce || ciphertext || tag) — a single string column
// in the database, self-contained apart from the key.
//
// KEY MANAGEMENT: one process-wide 32-byte key, supplied via configuration.
// The process refuses to start without it (see internal/config) — generating
// a throwaway key at startup would make every previously stored credential
// undecryptable after a restart. Rotation is not supported.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize is the required key length in bytes (AES-256).
const KeySize = 32

var (
	ErrInvalidKeySize    = errors.New("crypto: encryption key must be exactly 32 bytes")
	ErrInvalidCiphertext = errors.New("crypto: ciphertext is not valid base64")
	ErrCiphertextShort   = errors.New("crypto: ciphertext too short")

	// ErrDecryptionFailed means the ciphertext was not produced by this key,
	// or was modified after encryption. The two cases are indistinguishable.
	ErrDecryptionFailed = errors.New("crypto: decryption failed")
)

// Cipher encrypts and decrypts short strings with a fixed key.
// It is safe for concurrent use; the AEAD is stateless after construction.
type Cipher struct {
	aead cipher.AEAD
}

// New creates a Cipher from a 32-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt encrypts plaintext and returns a base64 string safe to store in a
// TEXT column.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: generating nonce: %w", err)
	}

	// Seal appends ciphertext+tag to the nonce, giving the full wire form.
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It returns ErrDecryptionFailed if the value was
// not produced by the matching key, and never returns garbage silently.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}

	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", ErrCiphertextShort
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// GenerateKey returns a cryptographically random 32-byte key.
// Used by tests and by operators bootstrapping a deployment — the runtime
// itself never generates keys.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("crypto: generating key: %w", err)
	}
	return key, nil
}
