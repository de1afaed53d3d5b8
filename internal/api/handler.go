// Package api provides HTTP handlers for the research gateway API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/agustogpt/research-gateway/internal/config"
	"github.com/agustogpt/research-gateway/internal/credential"
	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/agustogpt/research-gateway/internal/session"
	"github.com/agustogpt/research-gateway/internal/store"
	"github.com/go-chi/chi/v5"
)

// ProfileSource resolves the client profile for a session's current token.
type ProfileSource interface {
	ForSession(ctx context.Context, sess *session.Session, tok credential.Token) domain.ClientProfile
}

// Handler serves the health, config, session and chat history endpoints.
type Handler struct {
	cfg      *config.Config
	chats    store.ChatStore
	profiles ProfileSource
	now      func() time.Time
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(cfg *config.Config, chats store.ChatStore, profiles ProfileSource) *Handler {
	if chats == nil {
		chats = store.Disabled{}
	}
	return &Handler{
		cfg:      cfg,
		chats:    chats,
		profiles: profiles,
		now:      time.Now,
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/config", h.GetConfig)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Put("/token", h.SetToken)
			r.Delete("/token", h.ClearToken)
			r.Post("/reset", h.ResetChat)
			r.Get("/debug", h.DebugSession)
		})

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", h.ListChats)
			r.Get("/{chatID}", h.LoadChat)
			r.Delete("/{chatID}", h.DeleteChat)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// sessionProfile returns the request's session and its resolved profile.
func (h *Handler) sessionProfile(w http.ResponseWriter, r *http.Request) (*session.Session, domain.ClientProfile, bool) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		Error(w, http.StatusUnauthorized, "no session")
		return nil, domain.ClientProfile{}, false
	}
	return sess, h.profiles.ForSession(r.Context(), sess, credential.FromContext(r.Context())), true
}
