// Package crypt encrypts opaque string secrets for at-rest storage. The key
// is derived from the process secret with PBKDF2, so every deployment sharing
// the same secret derives the same key; the salt is a fixed literal and the
// key material itself is the real secret.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// ErrDecryption reports a ciphertext that could not be authenticated: either
// the token is malformed or it was produced under a different key. Callers
// use it to tell a corrupted secret apart from transient failures.
var ErrDecryption = errors.New("crypt: invalid token or wrong key")

const (
	// Salt is deliberately fixed so that values encrypted before a restart
	// stay decryptable. Do not randomize without a data migration.
	keySalt       = "marqetfi_ostium_encryption_salt"
	keyIterations = 100_000
	keyLength     = 32

	tokenVersion = 0x01
)

// Cipher performs authenticated encryption of string secrets.
type Cipher struct {
	aead cipher.AEAD
}

// New derives the symmetric key from the application secret and prepares the
// AEAD. The secret must be non-empty.
func New(secretKey string) (*Cipher, error) {
	if secretKey == "" {
		return nil, errors.New("crypt: secret key is required")
	}

	key := pbkdf2.Key([]byte(secretKey), []byte(keySalt), keyIterations, keyLength, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypt: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypt: init gcm: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals the plaintext into a base64 token. The empty string is
// returned unchanged: empty secrets are never encrypted.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypt: nonce: %w", err)
	}

	out := make([]byte, 0, 1+len(nonce)+len(plaintext)+c.aead.Overhead())
	out = append(out, tokenVersion)
	out = append(out, nonce...)
	out = c.aead.Seal(out, nonce, []byte(plaintext), nil)

	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt opens a token produced by Encrypt. The empty string short-circuits
// to the empty string. Any malformed or tampered token fails with
// ErrDecryption, never a partial value.
func (c *Cipher) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryption, "not base64")
	}

	minLen := 1 + c.aead.NonceSize() + c.aead.Overhead()
	if len(raw) < minLen || raw[0] != tokenVersion {
		return "", ErrDecryption
	}

	nonce := raw[1 : 1+c.aead.NonceSize()]
	sealed := raw[1+c.aead.NonceSize():]

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryption
	}

	return string(plaintext), nil
}
