package agent

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/agustogpt/research-gateway/internal/api"
	"github.com/agustogpt/research-gateway/internal/config"
	"github.com/agustogpt/research-gateway/internal/session"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

// TryAgainMessage is shown to the user when the agent API fails.
const TryAgainMessage = "The research assistant is unavailable right now. Please try again."

// RateLimiter is a per-key token bucket limiter.
// Idle keys are evicted so the map does not grow without bound.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastAccess map[string]time.Time
	limit      rate.Limit
	burst      int
	idle       time.Duration
	done       chan struct{}
}

// NewRateLimiter allows perMinute requests per key with the given burst and
// starts the background eviction goroutine.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		lastAccess: make(map[string]time.Time),
		limit:      rate.Limit(float64(perMinute) / 60),
		burst:      burst,
		idle:       10 * time.Minute,
		done:       make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Allow reports whether a request for key may proceed now.
func (r *RateLimiter) Allow(key string) bool {
	return r.limiter(key).Allow()
}

func (r *RateLimiter) limiter(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = l
	}
	r.lastAccess[key] = time.Now()
	return l
}

func (r *RateLimiter) evictLoop() {
	ticker := time.NewTicker(r.idle)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.evict(time.Now().Add(-r.idle))
		}
	}
}

func (r *RateLimiter) evict(cutoff time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, seen := range r.lastAccess {
		if seen.Before(cutoff) {
			delete(r.limiters, key)
			delete(r.lastAccess, key)
		}
	}
}

// Close stops the eviction goroutine.
func (r *RateLimiter) Close() {
	close(r.done)
}

// Handler handles chat HTTP requests.
type Handler struct {
	agent       *Service
	rateLimiter *RateLimiter
	maxBodySize int64
}

// NewHandler creates a new chat handler.
func NewHandler(svc *Service, cfg *config.Config) *Handler {
	perMinute, burst := 20, 5
	maxBody := int64(defaultMaxRequestBodySize)
	if cfg != nil {
		perMinute = cfg.RateLimit.RequestsPerMinute
		burst = cfg.RateLimit.Burst
		if cfg.MaxRequestBodySize > 0 {
			maxBody = cfg.MaxRequestBodySize
		}
	}
	return &Handler{
		agent:       svc,
		rateLimiter: NewRateLimiter(perMinute, burst),
		maxBodySize: maxBody,
	}
}

// HandleChat handles POST /api/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		api.Error(w, http.StatusUnauthorized, "no session")
		return
	}

	if !h.rateLimiter.Allow(sess.ID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.agent.Ask(r.Context(), sess, req)
	switch {
	case errors.Is(err, ErrEmptyMessage):
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("Chat turn failed",
			"session_id", sess.ID,
			"request_id", chiMiddleware.GetReqID(r.Context()),
			"error", err,
		)
		api.Error(w, http.StatusBadGateway, TryAgainMessage)
		return
	}

	api.JSON(w, http.StatusOK, resp)
}

// RegisterRoutes registers chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
}

// Close releases handler resources.
func (h *Handler) Close() {
	h.rateLimiter.Close()
}

// GetService returns the underlying agent service.
func (h *Handler) GetService() *Service {
	return h.agent
}

// RateLimiter returns the per-session limiter so other transports share it.
func (h *Handler) RateLimiter() *RateLimiter {
	return h.rateLimiter
}
