package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	secret := "test-webhook-secret"
	body := []byte(`{"object":"whatsapp_business_account","entry":[]}`)

	t.Run("valid signature", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))
		r.Header.Set(signatureHeaderName, signBody(secret, body))

		got, err := verifySignature(r, secret)
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("tampered body", func(t *testing.T) {
		tampered := append([]byte{}, body...)
		tampered[0] ^= 0x01
		r := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(tampered))
		r.Header.Set(signatureHeaderName, signBody(secret, body))

		_, err := verifySignature(r, secret)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signature mismatch")
	})

	t.Run("flipped signature byte", func(t *testing.T) {
		sig := []byte(signBody(secret, body))
		sig[len(sig)-1] ^= 0x01
		r := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))
		r.Header.Set(signatureHeaderName, string(sig))

		_, err := verifySignature(r, secret)
		assert.Error(t, err)
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))

		_, err := verifySignature(r, secret)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing signature header")
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))
		r.Header.Set(signatureHeaderName, "md5=abcdef")

		_, err := verifySignature(r, secret)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid signature format")
	})

	t.Run("no secret outside production skips verification", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))

		got, err := verifySignature(r, "")
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("no secret in production refuses", func(t *testing.T) {
		t.Setenv("WAGATE_ENV", "production")
		r := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))

		_, err := verifySignature(r, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "required in production")
	})

	t.Run("body is restored for downstream readers", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))
		r.Header.Set(signatureHeaderName, signBody(secret, body))

		_, err := verifySignature(r, secret)
		require.NoError(t, err)

		reread, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, body, reread)
	})
}

func TestVerifyHandshake(t *testing.T) {
	tests := []struct {
		name            string
		mode            string
		token           string
		configuredToken string
		want            bool
	}{
		{"valid", "subscribe", "verify-me", "verify-me", true},
		{"wrong token", "subscribe", "guess", "verify-me", false},
		{"wrong mode", "unsubscribe", "verify-me", "verify-me", false},
		{"empty mode", "", "verify-me", "verify-me", false},
		{"no configured token", "subscribe", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, verifyHandshake(tt.mode, tt.token, tt.configuredToken))
		})
	}
}
