package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andressep95/verification-service/internal/config"
	"github.com/andressep95/verification-service/internal/handler/middleware"
	"github.com/andressep95/verification-service/internal/repository/memory"
	"github.com/andressep95/verification-service/internal/service"
	"github.com/andressep95/verification-service/pkg/hash"
	jwtpkg "github.com/andressep95/verification-service/pkg/jwt"
	"github.com/andressep95/verification-service/pkg/storage"
	"github.com/andressep95/verification-service/pkg/validator"
	"github.com/andressep95/verification-service/pkg/webhook"
)

const (
	adminToken    = "admin-secret"
	webhookSecret = "hook-secret"
)

type callbackRecorder struct {
	mu     sync.Mutex
	bodies []map[string]interface{}
	valid  []bool
}

func (r *callbackRecorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	err := webhook.Verify([]byte(webhookSecret), req.Header.Get(webhook.HeaderTimestamp), body, req.Header.Get(webhook.HeaderSignature))

	var decoded map[string]interface{}
	_ = json.Unmarshal(body, &decoded)

	r.mu.Lock()
	r.bodies = append(r.bodies, decoded)
	r.valid = append(r.valid, err == nil)
	r.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (r *callbackRecorder) received() []map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]interface{}(nil), r.bodies...)
}

type testEnv struct {
	app      *fiber.App
	tokens   *jwtpkg.TokenService
	callback *callbackRecorder
	hookURL  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	tokens, err := jwtpkg.NewTokenService(privPEM, pubPEM, "verification-test")
	require.NoError(t, err)

	recorder := &callbackRecorder{}
	hookServer := httptest.NewServer(recorder)
	t.Cleanup(hookServer.Close)

	dir := t.TempDir()
	store, err := storage.NewDiskStore(dir, 1<<20)
	require.NoError(t, err)

	cfg := config.VerificationConfig{
		BaseURL:           "https://verify.example.com",
		LivenessThreshold: 0.7,
		DefaultTokenTTL:   time.Hour,
		MinTokenTTL:       time.Minute,
		MaxTokenTTL:       24 * time.Hour,
	}

	dispatcher := service.NewWebhookDispatcher(webhook.NewNotifier(webhookSecret, 2*time.Second), memory.NewWebhookDeliveryRepository(), nil)
	verificationSvc := service.NewVerificationService(memory.NewVerificationSessionRepository(), tokens, store, dispatcher, cfg)
	clientSvc := service.NewAPIClientService(memory.NewAPIClientRepository(), nil,
		service.WithArgon2Config(hash.Argon2Config{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}))

	v := validator.NewValidator()
	app := fiber.New()
	app.Use(middleware.RecoveryMiddleware())
	SetupRoutes(
		app,
		NewVerificationHandler(verificationSvc, v),
		NewAPIClientHandler(clientSvc, dispatcher, v),
		NewHealthHandler(map[string]Pinger{
			"database": PingFunc(func(context.Context) error { return nil }),
		}),
		NewJWKSHandler(tokens.PublicKey(), tokens.KeyID()),
		middleware.APIKeyMiddleware(clientSvc),
		middleware.SessionTokenMiddleware(tokens),
		middleware.RequireAdminToken(adminToken),
	)

	return &testEnv{app: app, tokens: tokens, callback: recorder, hookURL: hookServer.URL}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Missing []string        `json:"missing"`
}

func (e *testEnv) do(t *testing.T, req *http.Request) (int, envelope) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func jsonRequest(method, path, auth string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	return req
}

func multipartRequest(t *testing.T, path, token, fileField string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, "capture.jpg")
		require.NoError(t, err)
		_, err = part.Write([]byte("\xff\xd8\xff fake jpeg"))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (e *testEnv) apiKey(t *testing.T) string {
	t.Helper()
	req := jsonRequest(http.MethodPost, "/api/v1/identity/admin/api-clients", "", fiber.Map{"name": "Acme Notary"})
	req.Header.Set(middleware.HeaderAdminToken, adminToken)
	status, env := e.do(t, req)
	require.Equal(t, http.StatusCreated, status, env.Error)

	var data struct {
		APIKey string `json:"apiKey"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.APIKey
}

type createdSession struct {
	SessionID       string `json:"sessionId"`
	Token           string `json:"token"`
	VerificationURL string `json:"verificationUrl"`
	ExpiresIn       int    `json:"expiresIn"`
}

func (e *testEnv) createSession(t *testing.T, key string, required []string) createdSession {
	t.Helper()
	status, env := e.do(t, jsonRequest(http.MethodPost, "/api/v1/identity/create-session", key, fiber.Map{
		"callbackUrl":           e.hookURL + "/identity",
		"requiredVerifications": required,
		"userData":              fiber.Map{"name": "Ana Díaz"},
	}))
	require.Equal(t, http.StatusCreated, status, env.Error)

	var out createdSession
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestVerificationFlow(t *testing.T) {
	e := newTestEnv(t)
	key := e.apiKey(t)
	s := e.createSession(t, key, []string{"document", "facial"})

	assert.Equal(t, "https://verify.example.com/identity-verification/"+s.SessionID, s.VerificationURL)
	assert.Equal(t, 3600, s.ExpiresIn)

	status, env := e.do(t, multipartRequest(t, "/api/v1/identity/upload-document/"+s.SessionID, s.Token, "documentImage", map[string]string{"documentType": "passport"}))
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = e.do(t, jsonRequest(http.MethodPost, "/api/v1/identity/complete-verification/"+s.SessionID, s.Token, nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Equal(t, []string{"facial"}, env.Missing)
	assert.Equal(t, "verification incomplete, missing: facial", env.Error)

	status, env = e.do(t, multipartRequest(t, "/api/v1/identity/upload-selfie/"+s.SessionID, s.Token, "selfieImage", nil))
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = e.do(t, jsonRequest(http.MethodPost, "/api/v1/identity/complete-verification/"+s.SessionID, s.Token, nil))
	require.Equal(t, http.StatusOK, status, env.Error)
	var done struct {
		Status             string `json:"status"`
		VerificationResult struct {
			OverallStatus string  `json:"overallStatus"`
			Confidence    float64 `json:"confidence"`
		} `json:"verificationResult"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &done))
	assert.Equal(t, "completed", done.Status)
	assert.Equal(t, "approved", done.VerificationResult.OverallStatus)
	assert.Equal(t, 0.95, done.VerificationResult.Confidence)

	hooks := e.callback.received()
	require.Len(t, hooks, 1)
	assert.Equal(t, "completed", hooks[0]["status"])
	assert.Equal(t, s.SessionID, hooks[0]["sessionId"])
	assert.True(t, e.callback.valid[0])

	status, env = e.do(t, jsonRequest(http.MethodGet, "/api/v1/identity/session/"+s.SessionID, s.Token, nil))
	require.Equal(t, http.StatusOK, status)
	var view sessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "completed", string(view.Status))
	assert.NotNil(t, view.VerificationResult)
	assert.Empty(t, view.PendingVerifications)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/identity/admin/sessions/"+s.SessionID+"/webhooks", nil)
	req.Header.Set(middleware.HeaderAdminToken, adminToken)
	status, env = e.do(t, req)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"count":1`)
}

func TestSelfieWithLivenessScore(t *testing.T) {
	e := newTestEnv(t)
	s := e.createSession(t, e.apiKey(t), []string{"facial", "liveness", "nfc"})

	status, env := e.do(t, multipartRequest(t, "/api/v1/identity/upload-selfie/"+s.SessionID, s.Token, "selfieImage", map[string]string{"livenessScore": "0.82"}))
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Contains(t, string(env.Data), `"completedVerifications":["facial","liveness"]`)

	status, env = e.do(t, multipartRequest(t, "/api/v1/identity/upload-selfie/"+s.SessionID, s.Token, "selfieImage", map[string]string{"livenessScore": "high"}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "livenessScore must be a number", env.Error)
}

func TestUploadWithoutFile(t *testing.T) {
	e := newTestEnv(t)
	s := e.createSession(t, e.apiKey(t), nil)

	status, env := e.do(t, multipartRequest(t, "/api/v1/identity/upload-document/"+s.SessionID, s.Token, "", map[string]string{"documentType": "ID"}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "documentImage file is required", env.Error)
}

func TestSubmitNFCValidation(t *testing.T) {
	e := newTestEnv(t)
	s := e.createSession(t, e.apiKey(t), []string{"nfc"})
	path := "/api/v1/identity/submit-nfc/" + s.SessionID

	status, env := e.do(t, jsonRequest(http.MethodPost, path, s.Token, fiber.Map{"nfcData": fiber.Map{"birthDate": "1990-01-01"}}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "nfcData.documentNumber")

	status, env = e.do(t, jsonRequest(http.MethodPost, path, s.Token, fiber.Map{}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "nfcData")

	status, env = e.do(t, jsonRequest(http.MethodPost, path, s.Token, fiber.Map{"nfcData": fiber.Map{"documentNumber": "X123"}}))
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Contains(t, string(env.Data), `"status":"completed"`)
	assert.Len(t, e.callback.received(), 1)
}

func TestCreateSessionRejects(t *testing.T) {
	e := newTestEnv(t)
	key := e.apiKey(t)

	status, env := e.do(t, jsonRequest(http.MethodPost, "/api/v1/identity/create-session", "NPRO_nottherightkey00000", fiber.Map{"callbackUrl": "https://x.test"}))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = e.do(t, jsonRequest(http.MethodPost, "/api/v1/identity/create-session", "", fiber.Map{"callbackUrl": "https://x.test"}))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = e.do(t, jsonRequest(http.MethodPost, "/api/v1/identity/create-session", key, fiber.Map{}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "callbackUrl")

	status, env = e.do(t, jsonRequest(http.MethodPost, "/api/v1/identity/create-session", key, fiber.Map{
		"callbackUrl":           "https://x.test/hook",
		"requiredVerifications": []string{"retina"},
	}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Error, "requiredVerifications[0]")
}

func TestTokenBoundToSession(t *testing.T) {
	e := newTestEnv(t)
	key := e.apiKey(t)
	a := e.createSession(t, key, nil)
	b := e.createSession(t, key, nil)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/identity/session/"},
		{http.MethodPost, "/api/v1/identity/submit-nfc/"},
		{http.MethodPost, "/api/v1/identity/complete-verification/"},
		{http.MethodPost, "/api/v1/identity/upload-document/"},
		{http.MethodPost, "/api/v1/identity/upload-selfie/"},
	}
	for _, p := range paths {
		status, env := e.do(t, jsonRequest(p.method, p.path+b.SessionID, a.Token, fiber.Map{}))
		assert.Equal(t, http.StatusForbidden, status, p.path)
		assert.Equal(t, "token not valid for this session", env.Error)
	}

	status, _ := e.do(t, jsonRequest(http.MethodGet, "/api/v1/identity/session/"+a.SessionID, "garbage", nil))
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = e.do(t, jsonRequest(http.MethodGet, "/api/v1/identity/session/"+a.SessionID, "", nil))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSessionNotFound(t *testing.T) {
	e := newTestEnv(t)
	token, _, err := e.tokens.GenerateSessionToken("session-gone", "owner", time.Hour)
	require.NoError(t, err)

	status, env := e.do(t, jsonRequest(http.MethodGet, "/api/v1/identity/session/session-gone", token, nil))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "verification session not found", env.Error)
}

func TestUpdateSessionRequiresAdmin(t *testing.T) {
	e := newTestEnv(t)
	s := e.createSession(t, e.apiKey(t), nil)
	path := "/api/v1/identity/update-session/" + s.SessionID

	status, _ := e.do(t, jsonRequest(http.MethodPost, path, s.Token, fiber.Map{"status": "failed"}))
	assert.Equal(t, http.StatusUnauthorized, status)

	req := jsonRequest(http.MethodPost, path, "", fiber.Map{"status": "failed", "reason": "manual review"})
	req.Header.Set(middleware.HeaderAdminToken, adminToken)
	status, env := e.do(t, req)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Contains(t, string(env.Data), `"status":"failed"`)

	hooks := e.callback.received()
	require.Len(t, hooks, 1)
	assert.Equal(t, "failed", hooks[0]["status"])

	status, env = e.do(t, multipartRequest(t, "/api/v1/identity/upload-document/"+s.SessionID, s.Token, "documentImage", nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "session already finalized", env.Error)

	req = jsonRequest(http.MethodPost, path, "", fiber.Map{"status": "paused"})
	req.Header.Set(middleware.HeaderAdminToken, adminToken)
	status, _ = e.do(t, req)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDeactivatedClientCannotCreateSessions(t *testing.T) {
	e := newTestEnv(t)
	key := e.apiKey(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/identity/admin/api-clients", nil)
	req.Header.Set(middleware.HeaderAdminToken, adminToken)
	status, env := e.do(t, req)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Clients []struct {
			ID string `json:"id"`
		} `json:"clients"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Clients, 1)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/identity/admin/api-clients/"+list.Clients[0].ID, nil)
	req.Header.Set(middleware.HeaderAdminToken, adminToken)
	status, _ = e.do(t, req)
	require.Equal(t, http.StatusOK, status)

	status, _ = e.do(t, jsonRequest(http.MethodPost, "/api/v1/identity/create-session", key, fiber.Map{"callbackUrl": "https://x.test/hook"}))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	resp, err := e.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = e.app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	h := NewHealthHandler(map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	app := fiber.New()
	app.Get("/ready", h.Ready)
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestJWKS(t *testing.T) {
	e := newTestEnv(t)

	resp, err := e.app.Test(httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var set JWKS
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&set))
	require.Len(t, set.Keys, 1)
	assert.Equal(t, e.tokens.KeyID(), set.Keys[0].Kid)
	assert.Equal(t, "RS256", set.Keys[0].Alg)
	assert.Equal(t, "AQAB", set.Keys[0].E)
}
