/**
 * @description
 * This package provides AES-256-GCM encryption for data persisted at rest:
 * asset-breakdown snapshots and payment notes. Blobs are opaque to the storage
 * layer; a random nonce is prepended to each ciphertext.
 *
 * @dependencies
 * - crypto/aes, crypto/cipher, crypto/rand: Standard Go cryptography libraries.
 */

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

// ErrDecryptionFailure is returned when a blob cannot be authenticated or is
// too short to contain a nonce. Callers must surface this, never treat it as
// missing data.
var ErrDecryptionFailure = errors.New("decryption failure")

// Encryptor encrypts and decrypts opaque byte blobs.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor creates an Encryptor from a base64-encoded 32-byte key.
func NewEncryptor(keyBase64 string) (*Encryptor, error) {
	if keyBase64 == "" {
		return nil, errors.New("encryption key is required")
	}
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Encryptor{gcm: gcm}, nil
}

// Encrypt seals plaintext and returns nonce||ciphertext.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return e.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce||ciphertext blob. A corrupt or truncated blob returns
// ErrDecryptionFailure.
func (e *Encryptor) Decrypt(blob []byte) ([]byte, error) {
	nonceSize := e.gcm.NonceSize()
	if len(blob) < nonceSize {
		return nil, ErrDecryptionFailure
	}
	plaintext, err := e.gcm.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailure
	}
	return plaintext, nil
}
