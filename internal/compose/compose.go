// Package compose builds outbound agent API payloads and parses agent
// responses. Everything here is a pure function of its inputs.
package compose

import (
	"strings"
	"time"

	"github.com/agustogpt/research-gateway/internal/domain"
)

const (
	// HistoryTurns is the maximum number of recent turns included as context.
	HistoryTurns = 2
	// TurnCharCap is the per-turn character cap applied to history context.
	TurnCharCap = 200

	historyPrefix = "Chat History is: - "
	historySuffix = ". See if the current user query relates to one of the chat history and answer accordingly. "
)

// Input is everything Compose needs for a single outbound call.
type Input struct {
	UserText           string
	RecentTurns        []domain.ChatTurn
	Mode               domain.SearchMode
	Filters            domain.Filters
	EntitledIndustries []string
	IncludeHistory     bool
	Now                time.Time
}

// Compose builds the agent API payload.
func Compose(in Input) domain.QueryPayload {
	return domain.QueryPayload{
		UserQuery:        Query(in.UserText, in.RecentTurns, in.IncludeHistory),
		YearToSearch:     Year(in.Filters.Year, in.Now),
		IndustryToSearch: Industry(in.Mode, in.Filters.Industry, in.EntitledIndustries),
	}
}

// Industry returns the explicit filter in tailored mode, otherwise the
// comma-joined entitlement list. The result may be empty but is always set.
func Industry(mode domain.SearchMode, filter string, entitled []string) string {
	if mode == domain.SearchModeTailored && filter != "" {
		return filter
	}
	return strings.Join(entitled, ", ")
}

// Year returns year, or the calendar year of now when year is unset.
func Year(year int, now time.Time) int {
	if year > 0 {
		return year
	}
	if now.IsZero() {
		now = time.Now()
	}
	return now.Year()
}

// Query prefixes userText with the formatted history when enabled.
func Query(userText string, recent []domain.ChatTurn, includeHistory bool) string {
	if !includeHistory {
		return userText
	}
	history := FormatHistory(recent)
	if history == "" {
		return userText
	}
	return history + userText
}

// FormatHistory renders at most the last HistoryTurns turns, each capped at
// TurnCharCap characters. It returns "" when there are no turns.
func FormatHistory(turns []domain.ChatTurn) string {
	if len(turns) > HistoryTurns {
		turns = turns[len(turns)-HistoryTurns:]
	}
	if len(turns) == 0 {
		return ""
	}

	entries := make([]string, 0, len(turns))
	for _, t := range turns {
		entries = append(entries, string(t.Role)+": "+Truncate(t.Text, TurnCharCap))
	}
	return historyPrefix + strings.Join(entries, ", ") + historySuffix
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
