// Package agent sends composed research queries to the agent API and
// records each chat turn in the caller's session.
package agent

import (
	"errors"

	"github.com/agustogpt/research-gateway/internal/domain"
)

// ErrEmptyMessage is returned when a chat request carries no text.
var ErrEmptyMessage = errors.New("message is required")

// ChatRequest represents a chat request from the front-end.
// Empty Mode keeps the session's current search mode.
type ChatRequest struct {
	Message  string `json:"message"`
	Mode     string `json:"mode,omitempty"`
	Industry string `json:"industry,omitempty"`
	Year     int    `json:"year,omitempty"`
}

// ChatResponse represents the answer to one chat turn.
type ChatResponse struct {
	ChatID             string            `json:"chat_id,omitempty"`
	Answer             string            `json:"response"`
	Sources            []domain.Citation `json:"sources"`
	RecommendedQueries []string          `json:"recommended_queries"`
	CurrentDate        string            `json:"current_date,omitempty"`
	Persisted          bool              `json:"persisted"`

	// DebugPayload is the exact body sent to the agent API, set only in
	// debug-queries mode.
	DebugPayload *domain.QueryPayload `json:"debug_payload,omitempty"`
}
