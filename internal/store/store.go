// Package store persists chat transcripts, their index rows and query logs.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a chat does not exist for the company.
	ErrNotFound = errors.New("chat not found")
	// ErrStorageDisabled is returned by every operation of the Disabled backend.
	ErrStorageDisabled = errors.New("storage disabled")
)

const (
	// DefaultListLimit caps ListChats when the caller passes limit <= 0.
	DefaultListLimit = 50

	titleMaxRunes   = 100
	previewMaxRunes = 200
	defaultTitle    = "New Chat"
)

// ChatStore defines the interface for persisting chats.
type ChatStore interface {
	// SaveChat writes the transcript and upserts its index row.
	SaveChat(ctx context.Context, t domain.Transcript) error

	// LoadChat reads a transcript. Missing chats return ErrNotFound.
	LoadChat(ctx context.Context, company, chatID string) (domain.Transcript, error)

	// ListChats returns index rows for a company, most recently updated first.
	ListChats(ctx context.Context, company string, limit int) ([]domain.ChatSummary, error)

	// DeleteChat removes a transcript and its index row.
	DeleteChat(ctx context.Context, company, chatID string) error

	// LogQuery records a single query/response interaction.
	LogQuery(ctx context.Context, e domain.QueryLogEntry) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// NewChatID returns an id of the form chat_<12 hex>_<YYYYmmddHHMMSS>.
func NewChatID(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("chat_%s_%s", hex[:12], now.Format("20060102150405"))
}

// PartitionKey normalizes a company name into a storage key. Characters
// not allowed in table keys or blob prefixes become underscores.
func PartitionKey(company string) string {
	company = strings.TrimSpace(company)
	if company == "" {
		return domain.DefaultCompany
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\', r == '#', r == '?', unicode.IsControl(r):
			return '_'
		}
		return r
	}, company)
}

// BlobPath returns the transcript location: <company>/<chat id>.json.
func BlobPath(company, chatID string) string {
	return PartitionKey(company) + "/" + chatID + ".json"
}

// QueryLogPath returns logs/<YYYYmmdd>/<chat id>_<HHMMSS>.json.
func QueryLogPath(e domain.QueryLogEntry) string {
	return fmt.Sprintf("logs/%s/%s_%s.json",
		e.Timestamp.Format("20060102"), e.ChatID, e.Timestamp.Format("150405"))
}

// Summarize builds the index row for a transcript.
func Summarize(t domain.Transcript) domain.ChatSummary {
	title := t.Title
	if title == "" {
		title = defaultTitle
		for _, m := range t.Messages {
			if m.Role == domain.RoleUser {
				title = truncate(m.Text, titleMaxRunes)
				break
			}
		}
	}
	var last string
	if n := len(t.Messages); n > 0 {
		last = truncate(t.Messages[n-1].Text, previewMaxRunes)
	}
	mode := t.SearchMode
	if mode == "" {
		mode = domain.SearchModeAuto
	}
	return domain.ChatSummary{
		ChatID:       t.ChatID,
		Title:        title,
		MessageCount: len(t.Messages),
		SearchMode:   mode,
		LastMessage:  last,
		BlobPath:     BlobPath(t.Company, t.ChatID),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func sortAndLimit(chats []domain.ChatSummary, limit int) []domain.ChatSummary {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if len(chats) > limit {
		chats = chats[:limit]
	}
	return chats
}

func validate(t domain.Transcript) error {
	if t.ChatID == "" {
		return errors.New("transcript has no chat id")
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
