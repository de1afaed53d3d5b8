package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/agustogpt/research-gateway/internal/store"
)

// Health reports service and storage status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	storage := "ok"
	status := http.StatusOK
	if err := h.chats.Ping(ctx); err != nil {
		if errors.Is(err, store.ErrStorageDisabled) {
			storage = "disabled"
		} else {
			slog.Warn("Storage health check failed", "error", err)
			storage = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	JSON(w, status, map[string]string{
		"status":  http.StatusText(status),
		"storage": storage,
		"time":    h.now().UTC().Format(time.RFC3339),
	})
}

// GetConfig returns the feature flags the front-end needs.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	_, disabled := h.chats.(store.Disabled)
	JSON(w, http.StatusOK, map[string]interface{}{
		"dev_mode":             h.cfg.DevMode,
		"debug_cookies":        h.cfg.DebugCookies,
		"debug_queries":        h.cfg.DebugQueries,
		"include_chat_history": h.cfg.IncludeChatHistory,
		"storage_enabled":      !disabled,
		"query_log_enabled":    !disabled && h.cfg.Storage.QueryLogEnabled,
		"search_modes":         []domain.SearchMode{domain.SearchModeAuto, domain.SearchModeTailored},
	})
}
