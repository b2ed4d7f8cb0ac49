package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"provider_core/internal/logging"
	"provider_core/internal/models"
)

const encryptionKeySize = 32 // AES-256

// Encryptor provides AES-256-GCM encryption for credential strings at
// rest. Ciphertexts carry a fresh random 96-bit nonce prepended to the
// sealed bytes, with the whole blob base64-encoded.
type Encryptor struct {
	aead      cipher.AEAD
	ephemeral bool
}

// NewEncryptor builds an encryptor from the configured key material:
//
//   - a base64-encoded 32-byte key is used directly;
//   - any other non-empty value is treated as a passphrase and stretched
//     to 32 bytes with HKDF-SHA256;
//   - an empty value falls back to an ephemeral random key so local dev
//     still starts. Everything encrypted under it is unreadable after a
//     restart; this insecure fallback is logged loudly, never silent.
func NewEncryptor(keyMaterial string) (*Encryptor, error) {
	log := logging.New("encryption")

	var key []byte
	ephemeral := false

	switch {
	case keyMaterial == "":
		key = make([]byte, encryptionKeySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
		}
		ephemeral = true
		log.Warn("LLM_ENCRYPTION_KEY is not set; using an EPHEMERAL key. " +
			"Stored credentials will be UNRECOVERABLE after restart. " +
			"Do not run production like this.")
	default:
		if decoded, err := base64.StdEncoding.DecodeString(keyMaterial); err == nil && len(decoded) == encryptionKeySize {
			key = decoded
			break
		}
		// Passphrase-shaped key: derive deterministic bytes from it.
		derived := make([]byte, encryptionKeySize)
		reader := hkdf.New(sha256.New, []byte(keyMaterial), []byte("provider_core/credential-key"), nil)
		if _, err := io.ReadFull(reader, derived); err != nil {
			return nil, fmt.Errorf("failed to derive key: %w", err)
		}
		key = derived
		log.Info("LLM_ENCRYPTION_KEY is not a base64 32-byte key; derived one via HKDF")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{aead: aead, ephemeral: ephemeral}, nil
}

// GenerateEncryptionKey returns a fresh random 32-byte key, base64-encoded
// for storage in an environment variable.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, encryptionKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Ephemeral reports whether the encryptor runs on the insecure dev
// fallback key.
func (e *Encryptor) Ephemeral() bool { return e.ephemeral }

// Encrypt seals a plaintext credential. Empty plaintexts are rejected:
// callers must pass models.APIKeySentinel for "no secret" so that a blank
// is never silently stored.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", &models.ValidationError{Field: "api_key", Reason: "refusing to encrypt an empty secret"}
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a ciphertext produced by Encrypt. Malformed or corrupted
// input yields a *models.DecryptionError, never a silent empty string.
func (e *Encryptor) Decrypt(ciphertextBase64 string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", &models.DecryptionError{Err: fmt.Errorf("invalid base64: %w", err)}
	}

	nonceSize := e.aead.NonceSize()
	if len(blob) < nonceSize {
		return "", &models.DecryptionError{Err: fmt.Errorf("ciphertext too short: %d bytes", len(blob))}
	}

	nonce, sealed := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &models.DecryptionError{Err: err}
	}

	return string(plaintext), nil
}
