package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wagate/internal/database"
	"wagate/internal/migrations"
	"wagate/internal/models"
	"wagate/internal/service"
	"wagate/internal/vault"
	"wagate/pkg/meta"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWebhookSecret = "test-webhook-secret-0123456789abcdef"
	testVerifyToken   = "verify-me"
	testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
)

type testServer struct {
	srv   *Server
	db    *database.Database
	vault *vault.Vault
}

func setupTestServer(t *testing.T, metaURL string) (*testServer, func()) {
	tmpDir, err := os.MkdirTemp("", "wagate-server-test")
	require.NoError(t, err)

	migrationsPath := filepath.Join(tmpDir, "migrations")
	require.NoError(t, os.MkdirAll(migrationsPath, 0755))
	schema, err := os.ReadFile(filepath.Join("..", "..", "scripts", "migrations", "001_initial_schema.sql"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(migrationsPath, "001_initial_schema.sql"), schema, 0644))

	originalMigrationsDir := migrations.MigrationsDir
	migrations.MigrationsDir = migrationsPath

	db, err := database.New(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)

	v, err := vault.New(models.EncryptionConfig{Key: testEncryptionKey})
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &models.Config{
		Server: models.ServerConfig{Port: "0"},
		Webhook: models.WebhookConfig{
			Secret:      testWebhookSecret,
			VerifyToken: testVerifyToken,
			MaxRetries:  3,
		},
	}

	webhookSvc := service.NewWebhookService(db, logger, cfg.Webhook.MaxRetries)
	client := meta.NewClient(metaURL, "v18.0", 5*time.Second)
	sendSvc := service.NewSendService(db, v, client, service.NewOwnerAuthorizer(nil), logger)

	ts := &testServer{
		srv:   NewServer(cfg, webhookSvc, sendSvc, logger),
		db:    db,
		vault: v,
	}

	cleanup := func() {
		_ = db.Close()
		_ = os.RemoveAll(tmpDir)
		migrations.MigrationsDir = originalMigrationsDir
	}
	return ts, cleanup
}

func (ts *testServer) seedPhone(t *testing.T, dailyLimit, dailyUsed int64) {
	t.Helper()
	tokenEnc, err := ts.vault.Encrypt("provider-access-token")
	require.NoError(t, err)

	require.NoError(t, ts.db.SavePhone(context.Background(), &models.PhoneNumber{
		ID:             "phone-1",
		WabaID:         "waba-1",
		UserID:         "owner-1",
		PhoneNumber:    "+15550001111",
		PhoneNumberID:  "123456789",
		QualityRating:  models.QualityGreen,
		AccessTokenEnc: tokenEnc,
		DailyLimit:     dailyLimit,
		DailyUsed:      dailyUsed,
		LimitResetAt:   time.Now().UTC().Add(12 * time.Hour),
	}))
}

// metaBackend fakes the Cloud API /messages endpoint.
func metaBackend(t *testing.T, status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer provider-access-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestWebhookVerificationHandshake(t *testing.T) {
	ts, cleanup := setupTestServer(t, "http://unused")
	defer cleanup()

	t.Run("valid token echoes challenge", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=1158201444", nil)
		w := httptest.NewRecorder()
		ts.srv.router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "1158201444", w.Body.String())
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=guess&hub.challenge=1158201444", nil)
		w := httptest.NewRecorder()
		ts.srv.router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWebhookPost(t *testing.T) {
	ts, cleanup := setupTestServer(t, "http://unused")
	defer cleanup()

	body := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "waba-1", "changes": [{"field": "messages", "value": {"messages": [{"id": "wamid.in.1", "from": "15551234567", "type": "text", "text": {"body": "hi"}}]}}]}]
	}`)

	t.Run("valid signature is acknowledged", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))
		r.Header.Set(signatureHeaderName, signBody(testWebhookSecret, body))
		w := httptest.NewRecorder()
		ts.srv.router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"received"}`, w.Body.String())

		record, err := ts.db.GetWebhookEvent(context.Background(), 1)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "waba-1", record.WabaID)
		assert.Equal(t, models.EventTypeMessage, record.EventType)
	})

	t.Run("invalid signature is rejected without storing", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(body))
		r.Header.Set(signatureHeaderName, "sha256=0000000000000000000000000000000000000000000000000000000000000000")
		w := httptest.NewRecorder()
		ts.srv.router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)

		record, err := ts.db.GetWebhookEvent(context.Background(), 2)
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("malformed body is still acknowledged", func(t *testing.T) {
		malformed := []byte(`{not json`)
		r := httptest.NewRequest("POST", "/webhook/whatsapp", bytes.NewReader(malformed))
		r.Header.Set(signatureHeaderName, signBody(testWebhookSecret, malformed))
		w := httptest.NewRecorder()
		ts.srv.router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestSendMessageEndpoint(t *testing.T) {
	backend := metaBackend(t, http.StatusOK, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.out.1"}]}`)
	defer backend.Close()

	ts, cleanup := setupTestServer(t, backend.URL)
	defer cleanup()
	ts.seedPhone(t, 100, 0)

	t.Run("success", func(t *testing.T) {
		body := `{"phoneId":"phone-1","recipientPhone":"+15559998888","messageType":"text","content":"hello"}`
		r := httptest.NewRequest("POST", "/api/v1/messages/send", bytes.NewBufferString(body))
		r.Header.Set("X-User-ID", "owner-1")
		w := httptest.NewRecorder()
		ts.srv.router.ServeHTTP(w, r)

		require.Equal(t, http.StatusCreated, w.Code)
		var result service.SendResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, "wamid.out.1", result.ProviderMessageID)
		assert.Greater(t, result.MessageID, int64(0))

		msg, err := ts.db.GetMessageByProviderID(context.Background(), "wamid.out.1")
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, models.DirectionOutbound, msg.Direction)
		assert.Equal(t, models.MessageStatusSent, msg.Status)
	})

	t.Run("unknown phone", func(t *testing.T) {
		body := `{"phoneId":"phone-nope","recipientPhone":"+15559998888","messageType":"text","content":"hello"}`
		r := httptest.NewRequest("POST", "/api/v1/messages/send", bytes.NewBufferString(body))
		r.Header.Set("X-User-ID", "owner-1")
		w := httptest.NewRecorder()
		ts.srv.router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
		var errResp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		assert.Equal(t, "NOT_FOUND", errResp["error"])
	})

	t.Run("caller without ownership", func(t *testing.T) {
		body := `{"phoneId":"phone-1","recipientPhone":"+15559998888","messageType":"text","content":"hello"}`
		r := httptest.NewRequest("POST", "/api/v1/messages/send", bytes.NewBufferString(body))
		r.Header.Set("X-User-ID", "stranger")
		w := httptest.NewRecorder()
		ts.srv.router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/api/v1/messages/send", bytes.NewBufferString(`{not json`))
		r.Header.Set("X-User-ID", "owner-1")
		w := httptest.NewRecorder()
		ts.srv.router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSendMessageDailyLimit(t *testing.T) {
	backend := metaBackend(t, http.StatusOK, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.out.1"}]}`)
	defer backend.Close()

	ts, cleanup := setupTestServer(t, backend.URL)
	defer cleanup()
	ts.seedPhone(t, 10, 10)

	body := `{"phoneId":"phone-1","recipientPhone":"+15559998888","messageType":"text","content":"hello"}`
	r := httptest.NewRequest("POST", "/api/v1/messages/send", bytes.NewBufferString(body))
	r.Header.Set("X-User-ID", "owner-1")
	w := httptest.NewRecorder()
	ts.srv.router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var errResp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "RATE_LIMIT", errResp["error"])
}

func TestSendMessageProviderError(t *testing.T) {
	backend := metaBackend(t, http.StatusBadRequest, `{"error":{"code":131026,"type":"OAuthException","message":"Message undeliverable"}}`)
	defer backend.Close()

	ts, cleanup := setupTestServer(t, backend.URL)
	defer cleanup()
	ts.seedPhone(t, 100, 0)

	body := `{"phoneId":"phone-1","recipientPhone":"+15559998888","messageType":"text","content":"hello"}`
	r := httptest.NewRequest("POST", "/api/v1/messages/send", bytes.NewBufferString(body))
	r.Header.Set("X-User-ID", "owner-1")
	w := httptest.NewRecorder()
	ts.srv.router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var errResp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "EXTERNAL_API_ERROR", errResp["error"])
}

func TestHealthEndpoint(t *testing.T) {
	ts, cleanup := setupTestServer(t, "http://unused")
	defer cleanup()

	r := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	ts.srv.router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}
