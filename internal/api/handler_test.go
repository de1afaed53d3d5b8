//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agustogpt/research-gateway/internal/config"
	"github.com/agustogpt/research-gateway/internal/credential"
	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/agustogpt/research-gateway/internal/session"
	"github.com/agustogpt/research-gateway/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

// tokenProfiles maps token values to profiles; unknown tokens get the default.
type tokenProfiles map[string]domain.ClientProfile

func (p tokenProfiles) ForSession(_ context.Context, sess *session.Session, tok credential.Token) domain.ClientProfile {
	sess.BindToken(tok)
	prof, ok := p[tok.Value]
	if !ok {
		prof = domain.DefaultProfile()
	}
	sess.SetProfile(tok.Fingerprint(), prof)
	return prof
}

var testProfiles = tokenProfiles{
	"acme-token": {ID: "42", Company: "Acme", IndustryReports: []string{"Banking"}},
	"beta-token": {ID: "7", Company: "Beta", IndustryReports: []string{}},
}

type testServer struct {
	router   http.Handler
	sessions *session.Manager
	chats    store.ChatStore
}

func newTestServer(t *testing.T, cfg *config.Config, chats store.ChatStore) *testServer {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{DevMode: true, MaxRequestBodySize: 1 << 10}
	}
	sessions := session.NewManager()
	r := chi.NewRouter()
	r.Use(sessions.Middleware(true))
	r.Use(credential.Middleware(credential.MiddlewareOptions{
		Override: session.ManualOverride,
		EnvToken: cfg.FallbackToken,
		IsDev:    true,
	}))
	NewHandler(cfg, chats, testProfiles).RegisterRoutes(r)
	return &testServer{router: r, sessions: sessions, chats: chats}
}

func (s *testServer) do(t *testing.T, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return out
}

func TestHealthAndConfig(t *testing.T) {
	srv := newTestServer(t, nil, store.Disabled{})

	rec := srv.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	if got := decode(t, rec)["storage"]; got != "disabled" {
		t.Errorf("storage = %v, want disabled", got)
	}

	rec = srv.do(t, http.MethodGet, "/api/config", "")
	cfg := decode(t, rec)
	if cfg["storage_enabled"] != false || cfg["dev_mode"] != true {
		t.Errorf("unexpected config %v", cfg)
	}
}

func TestGetSessionAnonymous(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	rec := srv.do(t, http.MethodGet, "/api/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["token_source"] != "anonymous" || body["authenticated"] != false {
		t.Errorf("unexpected session %v", body)
	}
	profile := body["profile"].(map[string]interface{})
	if profile["id"] != domain.DefaultUserID {
		t.Errorf("profile = %v", profile)
	}
}

func TestSetAndClearToken(t *testing.T) {
	srv := newTestServer(t, nil, nil)

	first := srv.do(t, http.MethodGet, "/api/session", "")
	cookie := sessionCookie(t, first)

	rec := srv.do(t, http.MethodPut, "/api/session/token", `{"token":"  acme-token "}`, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["token_source"] != "manual" || body["profile"].(map[string]interface{})["company"] != "Acme" {
		t.Errorf("unexpected set-token response %v", body)
	}
	if strings.Contains(rec.Body.String(), "acme-token") {
		t.Error("token value leaked into response")
	}

	// A later request resolves through the session's manual override.
	rec = srv.do(t, http.MethodGet, "/api/session", "", cookie)
	if got := decode(t, rec)["token_source"]; got != "manual" {
		t.Errorf("token_source = %v, want manual", got)
	}

	rec = srv.do(t, http.MethodDelete, "/api/session/token", "", cookie)
	if got := decode(t, rec)["token_source"]; got != "anonymous" {
		t.Errorf("token_source after clear = %v", got)
	}

	rec = srv.do(t, http.MethodPut, "/api/session/token", `{"token":"   "}`, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank token status = %d, want 400", rec.Code)
	}
}

func TestURLTokenWinsOverManual(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	cookie := sessionCookie(t, srv.do(t, http.MethodGet, "/api/session", ""))

	srv.do(t, http.MethodPut, "/api/session/token", `{"token":"acme-token"}`, cookie)
	rec := srv.do(t, http.MethodGet, "/api/session?jwt_token=beta-token", "", cookie)
	body := decode(t, rec)
	if body["token_source"] != "url_param" || body["profile"].(map[string]interface{})["company"] != "Beta" {
		t.Errorf("unexpected session %v", body)
	}
}

func TestDebugSession(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	if rec := srv.do(t, http.MethodGet, "/api/session/debug", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("debug endpoint status = %d with debugging off", rec.Code)
	}

	cfg := &config.Config{DevMode: true, DebugCookies: true, MaxRequestBodySize: 1 << 10}
	srv = newTestServer(t, cfg, nil)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "client-42",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	rec := srv.do(t, http.MethodGet, "/api/session/debug", "", &http.Cookie{Name: credential.ParamName, Value: signed})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), signed) {
		t.Fatal("token value leaked into debug response")
	}
	body := decode(t, rec)
	if body["token_source"] != "cookie" {
		t.Errorf("token_source = %v", body["token_source"])
	}
	claims := body["claims"].(map[string]interface{})
	if claims["subject"] != "client-42" || claims["expired"] != false {
		t.Errorf("claims = %v", claims)
	}
}

func TestChatsDisabledStorage(t *testing.T) {
	srv := newTestServer(t, nil, store.Disabled{})

	rec := srv.do(t, http.MethodGet, "/api/chats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["storage_enabled"] != false || len(body["chats"].([]interface{})) != 0 {
		t.Errorf("unexpected body %v", body)
	}

	if rec := srv.do(t, http.MethodGet, "/api/chats/chat_x", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("load status = %d, want 503", rec.Code)
	}
}

func TestChatsLifecycle(t *testing.T) {
	chats, err := store.NewSQLite(filepath.Join(t.TempDir(), "chats.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = chats.Close() })

	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	tr := domain.Transcript{
		ChatID:    "chat_abc_20250101090000",
		UserID:    "42",
		Company:   "Acme",
		Messages:  []domain.ChatTurn{{Role: domain.RoleUser, Text: "hello", Timestamp: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := chats.SaveChat(context.Background(), tr); err != nil {
		t.Fatalf("SaveChat failed: %v", err)
	}

	srv := newTestServer(t, nil, chats)
	acme := &http.Cookie{Name: credential.ParamName, Value: "acme-token"}
	beta := &http.Cookie{Name: credential.ParamName, Value: "beta-token"}

	rec := srv.do(t, http.MethodGet, "/api/chats", "", acme)
	list := decode(t, rec)["chats"].([]interface{})
	if len(list) != 1 || list[0].(map[string]interface{})["title"] != "hello" {
		t.Fatalf("unexpected chats %v", list)
	}

	// Another company cannot see or load it.
	if got := decode(t, srv.do(t, http.MethodGet, "/api/chats", "", beta))["chats"].([]interface{}); len(got) != 0 {
		t.Errorf("beta sees %d chats", len(got))
	}
	if rec := srv.do(t, http.MethodGet, "/api/chats/"+tr.ChatID, "", beta); rec.Code != http.StatusNotFound {
		t.Errorf("cross-company load status = %d", rec.Code)
	}

	rec = srv.do(t, http.MethodGet, "/api/chats/"+tr.ChatID, "", acme)
	if rec.Code != http.StatusOK {
		t.Fatalf("load status = %d", rec.Code)
	}
	cookie := sessionCookie(t, rec)
	sess := srv.sessions.Get(cookie.Value)
	if sess == nil || sess.Snapshot().ChatID != tr.ChatID || len(sess.Snapshot().Turns) != 1 {
		t.Fatal("chat was not loaded into the session")
	}

	if rec := srv.do(t, http.MethodDelete, "/api/chats/"+tr.ChatID, "", acme, cookie); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if sess.Snapshot().ChatID != "" {
		t.Error("deleting the open chat should reset the session")
	}
	if rec := srv.do(t, http.MethodDelete, "/api/chats/"+tr.ChatID, "", acme); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d", rec.Code)
	}

	if rec := srv.do(t, http.MethodGet, "/api/chats?limit=zero", "", acme); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}

func TestResetChat(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	rec := srv.do(t, http.MethodPost, "/api/session/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	sess := srv.sessions.Get(sessionCookie(t, rec).Value)
	if sess == nil {
		t.Fatal("session not found")
	}
}
