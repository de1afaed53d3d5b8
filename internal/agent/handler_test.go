package agent

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agustogpt/research-gateway/internal/config"
	"github.com/agustogpt/research-gateway/internal/session"
	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T, q Querier, cfg *config.Config) http.Handler {
	t.Helper()
	h := NewHandler(newTestService(q, nil, Options{}), cfg)
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Use(session.NewManager().Middleware(true))
	h.RegisterRoutes(r)
	return r
}

func postChat(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat(t *testing.T) {
	h := newTestRouter(t, &fakeQuerier{env: answer}, nil)

	rec := postChat(h, `{"message":"outlook?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != answer.Answer || len(resp.RecommendedQueries) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHandleChatErrors(t *testing.T) {
	tests := []struct {
		name   string
		q      Querier
		body   string
		status int
	}{
		{"malformed body", &fakeQuerier{env: answer}, `{"message":`, http.StatusBadRequest},
		{"empty message", &fakeQuerier{env: answer}, `{"message":"   "}`, http.StatusBadRequest},
		{"agent down", &fakeQuerier{err: errors.New("boom")}, `{"message":"hi"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(newTestRouter(t, tt.q, nil), tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestHandleChatAgentDownMessage(t *testing.T) {
	rec := postChat(newTestRouter(t, &fakeQuerier{err: errors.New("boom")}, nil), `{"message":"hi"}`)
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != TryAgainMessage {
		t.Errorf("error message = %q", body["error"])
	}
}

func TestHandleChatBodyTooLarge(t *testing.T) {
	cfg := &config.Config{MaxRequestBodySize: 16}
	cfg.RateLimit.RequestsPerMinute = 60
	cfg.RateLimit.Burst = 10
	rec := postChat(newTestRouter(t, &fakeQuerier{env: answer}, cfg), `{"message":"`+strings.Repeat("a", 64)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestHandleChatRateLimited(t *testing.T) {
	cfg := &config.Config{MaxRequestBodySize: 1 << 10}
	cfg.RateLimit.RequestsPerMinute = 1
	cfg.RateLimit.Burst = 1
	h := NewHandler(newTestService(&fakeQuerier{env: answer}, nil, Options{}), cfg)
	t.Cleanup(h.Close)

	sess := newTestSession(t)
	do := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"message":"hi"}`))
		req = req.WithContext(session.WithSession(req.Context(), sess))
		rec := httptest.NewRecorder()
		h.HandleChat(rec, req)
		return rec.Code
	}
	if code := do(); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", code)
	}
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	defer rl.Close()

	rl.Allow("a")
	rl.evict(time.Now().Add(time.Hour))
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) != 0 || len(rl.lastAccess) != 0 {
		t.Fatalf("idle keys not evicted: %d limiters", len(rl.limiters))
	}
}
