package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/agustogpt/research-gateway/internal/store"
	"github.com/go-chi/chi/v5"
)

// ListChats returns the saved chats of the caller's company.
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	_, profile, ok := h.sessionProfile(w, r)
	if !ok {
		return
	}

	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	chats, err := h.chats.ListChats(r.Context(), profile.Company, limit)
	switch {
	case errors.Is(err, store.ErrStorageDisabled):
		JSON(w, http.StatusOK, map[string]interface{}{"chats": []domain.ChatSummary{}, "storage_enabled": false})
		return
	case err != nil:
		slog.Warn("Failed to list chats", "company", profile.Company, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"chats": chats, "storage_enabled": true})
}

// LoadChat loads a saved chat into the session and returns it.
func (h *Handler) LoadChat(w http.ResponseWriter, r *http.Request) {
	sess, profile, ok := h.sessionProfile(w, r)
	if !ok {
		return
	}
	chatID := chi.URLParam(r, "chatID")

	t, err := h.chats.LoadChat(r.Context(), profile.Company, chatID)
	if err != nil {
		h.storageError(w, "load", chatID, err)
		return
	}
	sess.Load(t)
	slog.Info("Chat loaded", "session_id", sess.ID, "chat_id", chatID, "messages", len(t.Messages))
	JSON(w, http.StatusOK, t)
}

// DeleteChat deletes a saved chat. Deleting the open chat also resets it.
func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	sess, profile, ok := h.sessionProfile(w, r)
	if !ok {
		return
	}
	chatID := chi.URLParam(r, "chatID")

	if err := h.chats.DeleteChat(r.Context(), profile.Company, chatID); err != nil {
		h.storageError(w, "delete", chatID, err)
		return
	}
	if sess.Snapshot().ChatID == chatID {
		sess.Reset()
	}
	slog.Info("Chat deleted", "session_id", sess.ID, "chat_id", chatID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) storageError(w http.ResponseWriter, op, chatID string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "chat not found")
	case errors.Is(err, store.ErrStorageDisabled):
		Error(w, http.StatusServiceUnavailable, "chat storage is disabled")
	default:
		slog.Warn("Chat storage failed", "op", op, "chat_id", chatID, "error", err)
		Error(w, http.StatusInternalServerError, "chat storage failed")
	}
}
