package snapshot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/scrypt"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
)

// Key derivation parameters. Changing any of them makes existing snapshots
// unreadable.
const (
	kdfSalt   = "debate-arena-state-v1"
	kdfN      = 16384
	kdfR      = 8
	kdfP      = 1
	keyLength = 32

	nonceSize = 16
	tagSize   = 16
)

// Cipher seals and opens snapshot payloads.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the snapshot key from secret.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.NewValidationError("snapshot secret must not be empty").WithField("snapshot.secret")
	}

	key, err := scrypt.Key([]byte(secret), []byte(kdfSalt), kdfN, kdfR, kdfP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("derive snapshot key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create block cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext and returns the encoded envelope.
func (c *Cipher) Seal(plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	// GCM appends the tag to the ciphertext; the envelope stores it first.
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, nonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open decodes and authenticates an envelope. Any failure wraps
// errors.ErrSnapshotCorrupted.
func (c *Cipher) Open(envelope string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", errors.ErrSnapshotCorrupted, err)
	}
	if len(raw) < nonceSize+tagSize {
		return nil, fmt.Errorf("%w: envelope too short (%d bytes)", errors.ErrSnapshotCorrupted, len(raw))
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ct := raw[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSnapshotCorrupted, err)
	}
	return plaintext, nil
}
