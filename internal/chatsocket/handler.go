package chatsocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/agustogpt/research-gateway/internal/agent"
	"github.com/agustogpt/research-gateway/internal/session"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

const writeTimeout = 10 * time.Second

// Handler handles WebSocket chat sessions.
type Handler struct {
	agent         *agent.Service
	limiter       *agent.RateLimiter
	registry      *Registry
	allowedOrigin string
	isDev         bool
	readLimit     int64
}

// NewHandler creates a new WebSocket chat handler. limiter may be nil.
func NewHandler(svc *agent.Service, limiter *agent.RateLimiter, registry *Registry, allowedOrigin string, isDev bool, readLimit int64) *Handler {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Handler{
		agent:         svc,
		limiter:       limiter,
		registry:      registry,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		readLimit:     readLimit,
	}
}

// RegisterRoutes registers the socket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat", h.ServeHTTP)
}

// inMessage is a client -> server message.
type inMessage struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Industry string `json:"industry,omitempty"`
	Year     int    `json:"year,omitempty"`
}

// answerMessage is the server reply to an ask.
type answerMessage struct {
	Type string `json:"type"`
	agent.ChatResponse
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	slog.Info("WebSocket connection request", "session_id", sess.ID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sess.ID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sess.ID)
		}
	}()
	if h.readLimit > 0 {
		ws.SetReadLimit(h.readLimit)
	}

	h.registry.Register(sess.ID, ws)
	defer h.registry.Unregister(sess.ID, ws)

	h.readLoop(r.Context(), ws, sess)
	slog.Info("Chat socket ended", "session_id", sess.ID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, sess *session.Session) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "session_id", sess.ID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "session_id", sess.ID)
			}
			return
		}

		var msg inMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.writeError(ctx, ws, "invalid message")
			continue
		}

		switch msg.Type {
		case "ask":
			h.ask(ctx, ws, sess, msg)
		case "ping":
			if err := h.writeJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		case "reset":
			sess.Reset()
			if err := h.writeJSON(ctx, ws, map[string]string{"type": "reset"}); err != nil {
				slog.Debug("Failed to send reset acknowledgment", "error", err)
			}
		default:
			h.writeError(ctx, ws, "unknown message type")
		}
	}
}

func (h *Handler) ask(ctx context.Context, ws *websocket.Conn, sess *session.Session, msg inMessage) {
	if h.limiter != nil && !h.limiter.Allow(sess.ID) {
		h.writeError(ctx, ws, "rate limit exceeded")
		return
	}

	resp, err := h.agent.Ask(ctx, sess, agent.ChatRequest{
		Message:  msg.Content,
		Mode:     msg.Mode,
		Industry: msg.Industry,
		Year:     msg.Year,
	})
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		h.writeError(ctx, ws, err.Error())
		return
	case err != nil:
		slog.Error("Chat turn failed", "session_id", sess.ID, "error", err)
		h.writeError(ctx, ws, agent.TryAgainMessage)
		return
	}

	if err := h.writeJSON(ctx, ws, answerMessage{Type: "answer", ChatResponse: resp}); err != nil {
		slog.Debug("Failed to send answer", "error", err, "session_id", sess.ID)
	}
}

func (h *Handler) writeError(ctx context.Context, ws *websocket.Conn, content string) {
	if err := h.writeJSON(ctx, ws, map[string]string{"type": "error", "content": content}); err != nil {
		slog.Debug("Failed to send error", "error", err)
	}
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
