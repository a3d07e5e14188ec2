package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewEncryptor returned error: %v", err)
	}

	plaintext := []byte(`{"entries":[],"total_wealth":"0"}`)
	blob, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if bytes.Contains(blob, plaintext) {
		t.Fatal("expected ciphertext not to contain the plaintext")
	}

	decrypted, err := enc.Decrypt(blob)
	if err != nil {
		t.Fatalf("Decrypt returned error: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected round-trip to return %q, got %q", plaintext, decrypted)
	}
}

func TestEncryptor_TamperedBlobRejected(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewEncryptor returned error: %v", err)
	}

	blob, err := enc.Encrypt([]byte("sensitive"))
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	blob[len(blob)-1] ^= 0xff

	if _, err := enc.Decrypt(blob); !errors.Is(err, ErrDecryptionFailure) {
		t.Fatalf("expected ErrDecryptionFailure for a tampered blob, got %v", err)
	}
}

func TestEncryptor_TruncatedBlobRejected(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("NewEncryptor returned error: %v", err)
	}

	if _, err := enc.Decrypt([]byte{0x01, 0x02}); !errors.Is(err, ErrDecryptionFailure) {
		t.Fatalf("expected ErrDecryptionFailure for a truncated blob, got %v", err)
	}
}

func TestNewEncryptor_RejectsBadKeys(t *testing.T) {
	if _, err := NewEncryptor(""); err == nil {
		t.Fatal("expected an error for an empty key")
	}
	if _, err := NewEncryptor("not base64!!"); err == nil {
		t.Fatal("expected an error for a non-base64 key")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too-short"))
	if _, err := NewEncryptor(short); err == nil {
		t.Fatal("expected an error for a short key")
	}
}
