// Package vault is the encrypt/decrypt boundary for provider access tokens.
// Tokens are stored as AES-256-GCM blobs; plaintext only exists in memory on
// the send path, immediately before the provider call.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"wagate/internal/models"

	"golang.org/x/crypto/pbkdf2"
)

// derivationSalt is fixed: the vault key must be reproducible across process
// restarts from the configured secret alone.
const derivationSalt = "wagate-token-vault-v1"

type Vault struct {
	gcm cipher.AEAD
}

// New builds a vault from the encryption configuration. A hex-encoded 32-byte
// key takes precedence; otherwise the key is derived from the passphrase via
// PBKDF2. One of the two must be set.
func New(cfg models.EncryptionConfig) (*Vault, error) {
	key, err := resolveKey(cfg)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{gcm: gcm}, nil
}

// Encrypt seals plaintext under a fresh random nonce. Encrypting the same
// plaintext twice yields different blobs.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, models.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := v.gcm.Seal(nil, nonce, []byte(plaintext), nil)
	// Prepend nonce to ciphertext for storage
	result := append(nonce, ciphertext...)
	return base64.StdEncoding.EncodeToString(result), nil
}

// Decrypt opens a blob produced by Encrypt. A blob sealed under a different
// key fails with an explicit error; it never returns garbage.
func (v *Vault) Decrypt(blob string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}

	if len(data) < models.NonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:models.NonceSize], data[models.NonceSize:]
	plaintext, err := v.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}

	return string(plaintext), nil
}

func resolveKey(cfg models.EncryptionConfig) ([]byte, error) {
	if cfg.Key != "" {
		key, err := hex.DecodeString(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
		}
		if len(key) != models.KeySize {
			return nil, fmt.Errorf("encryption key must be %d bytes, got %d", models.KeySize, len(key))
		}
		return key, nil
	}

	if cfg.Passphrase == "" {
		return nil, fmt.Errorf("encryption key or passphrase is required")
	}
	if len(cfg.Passphrase) < models.KeySize {
		return nil, fmt.Errorf("encryption passphrase must be at least %d characters long", models.KeySize)
	}

	key := pbkdf2.Key([]byte(cfg.Passphrase), []byte(derivationSalt), models.Iterations, models.KeySize, sha256.New)
	return key, nil
}
