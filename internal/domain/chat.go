package domain

import (
	"time"
)

// Role identifies who authored a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is a single entry in a session transcript. Turns are appended in
// order and never mutated after creation.
type ChatTurn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Assistant turns keep their display data so reloaded chats render the same.
	Citations   []Citation `json:"sources,omitempty"`
	Suggestions []string   `json:"recommended_queries,omitempty"`
}

// SearchMode selects how the industry filter is derived.
type SearchMode string

const (
	// SearchModeAuto searches every report the client is entitled to.
	SearchModeAuto SearchMode = "auto"
	// SearchModeTailored searches within the explicitly selected filters.
	SearchModeTailored SearchMode = "tailored"
)

// ParseSearchMode maps free-form input to a SearchMode, defaulting to auto.
func ParseSearchMode(s string) SearchMode {
	if SearchMode(s) == SearchModeTailored {
		return SearchModeTailored
	}
	return SearchModeAuto
}

// Filters holds the report filters selected in tailored mode.
// Zero values mean "unset".
type Filters struct {
	Industry string `json:"industry,omitempty"`
	Year     int    `json:"year,omitempty"`
}

// Transcript is a persisted chat session.
type Transcript struct {
	ChatID       string     `json:"chat_id"`
	UserID       string     `json:"user_id"`
	Company      string     `json:"company"`
	Title        string     `json:"title,omitempty"`
	SearchMode   SearchMode `json:"search_mode"`
	Messages     []ChatTurn `json:"messages"`
	MessageCount int        `json:"message_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ChatSummary is the index row stored per (company, chat id).
type ChatSummary struct {
	ChatID       string     `json:"chat_id"`
	Title        string     `json:"title"`
	MessageCount int        `json:"message_count"`
	SearchMode   SearchMode `json:"search_mode"`
	LastMessage  string     `json:"last_message"`
	BlobPath     string     `json:"blob_path,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// QueryLogEntry records a single query/response interaction for analytics.
type QueryLogEntry struct {
	Timestamp  time.Time  `json:"timestamp"`
	ChatID     string     `json:"chat_id"`
	UserID     string     `json:"user_id"`
	Company    string     `json:"company"`
	Query      string     `json:"query"`
	Response   string     `json:"response"`
	SearchMode SearchMode `json:"search_mode"`
	Filters    Filters    `json:"filters"`
	Sources    []Citation `json:"sources"`
}
