package vault

import (
	"strings"
	"testing"

	"wagate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     models.EncryptionConfig
		wantErr string
	}{
		{
			name: "valid hex key",
			cfg:  models.EncryptionConfig{Key: testHexKey},
		},
		{
			name: "valid passphrase",
			cfg:  models.EncryptionConfig{Passphrase: strings.Repeat("p", 32)},
		},
		{
			name:    "invalid hex",
			cfg:     models.EncryptionConfig{Key: "zz"},
			wantErr: "not valid hex",
		},
		{
			name:    "short hex key",
			cfg:     models.EncryptionConfig{Key: "0011"},
			wantErr: "must be 32 bytes",
		},
		{
			name:    "short passphrase",
			cfg:     models.EncryptionConfig{Passphrase: "short"},
			wantErr: "at least 32 characters",
		},
		{
			name:    "nothing configured",
			cfg:     models.EncryptionConfig{},
			wantErr: "key or passphrase is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, v)
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New(models.EncryptionConfig{Key: testHexKey})
	require.NoError(t, err)

	plaintexts := []string{
		"EAABwzLixnjY...",
		"",
		"short",
		strings.Repeat("long-token-", 100),
		"token with unicode: ✓ ñ 漢",
	}

	for _, plaintext := range plaintexts {
		blob, err := v.Encrypt(plaintext)
		require.NoError(t, err)

		decrypted, err := v.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEncryptProducesDistinctBlobs(t *testing.T) {
	v, err := New(models.EncryptionConfig{Key: testHexKey})
	require.NoError(t, err)

	first, err := v.Encrypt("same-token")
	require.NoError(t, err)
	second, err := v.Encrypt("same-token")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "random nonce must make equal plaintexts encrypt differently")
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	v1, err := New(models.EncryptionConfig{Key: testHexKey})
	require.NoError(t, err)
	v2, err := New(models.EncryptionConfig{Key: strings.Repeat("ff", 32)})
	require.NoError(t, err)

	blob, err := v1.Encrypt("secret-token")
	require.NoError(t, err)

	_, err = v2.Decrypt(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decrypt")
}

func TestDecryptRejectsMalformedBlobs(t *testing.T) {
	v, err := New(models.EncryptionConfig{Key: testHexKey})
	require.NoError(t, err)

	_, err = v.Decrypt("not-base64!!!")
	assert.Error(t, err)

	_, err = v.Decrypt("c2hvcnQ=") // valid base64, shorter than a nonce
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestPassphraseDerivationIsStable(t *testing.T) {
	cfg := models.EncryptionConfig{Passphrase: strings.Repeat("correct-horse-", 3)}

	v1, err := New(cfg)
	require.NoError(t, err)
	v2, err := New(cfg)
	require.NoError(t, err)

	blob, err := v1.Encrypt("token")
	require.NoError(t, err)

	decrypted, err := v2.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "token", decrypted)
}
