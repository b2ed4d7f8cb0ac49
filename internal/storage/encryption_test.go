package storage

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provider_core/internal/models"
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
	require.NoError(t, err)
	assert.False(t, enc.Ephemeral())

	plaintext := "sk-my-secret-api-key-12345"

	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptor_NonceFreshness(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	c1, err := enc.Encrypt("same-plaintext")
	require.NoError(t, err)
	c2, err := enc.Encrypt("same-plaintext")
	require.NoError(t, err)

	// Two encryptions of the same plaintext must differ (fresh nonce)
	// and both decrypt back to it.
	assert.NotEqual(t, c1, c2)

	p1, err := enc.Decrypt(c1)
	require.NoError(t, err)
	p2, err := enc.Decrypt(c2)
	require.NoError(t, err)
	assert.Equal(t, "same-plaintext", p1)
	assert.Equal(t, "same-plaintext", p2)
}

func TestEncryptor_RejectsEmptyPlaintext(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	_, err = enc.Encrypt("")
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestEncryptor_DecryptFailures(t *testing.T) {
	enc, err := NewEncryptor(testKey(t))
	require.NoError(t, err)

	t.Run("garbage base64", func(t *testing.T) {
		_, err := enc.Decrypt("not-base64!!!")
		assert.True(t, models.IsDecryptionError(err))
	})

	t.Run("too short", func(t *testing.T) {
		_, err := enc.Decrypt(base64.StdEncoding.EncodeToString([]byte("ab")))
		assert.True(t, models.IsDecryptionError(err))
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		c, err := enc.Encrypt("secret")
		require.NoError(t, err)

		raw, _ := base64.StdEncoding.DecodeString(c)
		raw[len(raw)-1] ^= 0xff
		_, err = enc.Decrypt(base64.StdEncoding.EncodeToString(raw))
		assert.True(t, models.IsDecryptionError(err))
	})

	t.Run("wrong key", func(t *testing.T) {
		c, err := enc.Encrypt("secret")
		require.NoError(t, err)

		other, err := NewEncryptor("some-other-passphrase")
		require.NoError(t, err)
		_, err = other.Decrypt(c)
		assert.True(t, models.IsDecryptionError(err))
	})
}

func TestEncryptor_KeySourcing(t *testing.T) {
	t.Run("missing key falls back to ephemeral", func(t *testing.T) {
		enc, err := NewEncryptor("")
		require.NoError(t, err)
		assert.True(t, enc.Ephemeral())

		// Still functional within the process lifetime.
		c, err := enc.Encrypt("dev-secret")
		require.NoError(t, err)
		p, err := enc.Decrypt(c)
		require.NoError(t, err)
		assert.Equal(t, "dev-secret", p)
	})

	t.Run("passphrase key is deterministic", func(t *testing.T) {
		enc1, err := NewEncryptor("correct horse battery staple")
		require.NoError(t, err)
		enc2, err := NewEncryptor("correct horse battery staple")
		require.NoError(t, err)

		c, err := enc1.Encrypt("secret")
		require.NoError(t, err)
		p, err := enc2.Decrypt(c)
		require.NoError(t, err)
		assert.Equal(t, "secret", p)
	})
}

func TestGenerateEncryptionKey(t *testing.T) {
	key, err := GenerateEncryptionKey()
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(key)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)

	enc, err := NewEncryptor(key)
	require.NoError(t, err)
	assert.False(t, enc.Ephemeral())
}
