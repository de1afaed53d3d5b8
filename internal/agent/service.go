package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/agustogpt/research-gateway/internal/compose"
	"github.com/agustogpt/research-gateway/internal/credential"
	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/agustogpt/research-gateway/internal/session"
	"github.com/agustogpt/research-gateway/internal/store"
)

// Options toggles optional chat turn behaviour.
type Options struct {
	IncludeHistory bool
	DebugQueries   bool
	QueryLog       bool
}

// Service runs chat turns: compose, query, record, persist.
type Service struct {
	querier  Querier
	profiles ProfileSource
	store    store.ChatStore
	opts     Options
	now      func() time.Time
}

// NewService creates a new agent service. chats may be store.Disabled{}.
func NewService(querier Querier, profiles ProfileSource, chats store.ChatStore, opts Options) *Service {
	if chats == nil {
		chats = store.Disabled{}
	}
	return &Service{
		querier:  querier,
		profiles: profiles,
		store:    chats,
		opts:     opts,
		now:      time.Now,
	}
}

// Ask runs one chat turn for sess using the token in ctx.
//
// The user's turn is recorded before the agent call and kept if the call
// fails; the assistant turn is recorded only on success. Storage failures
// are logged and never fail the turn.
func (s *Service) Ask(ctx context.Context, sess *session.Session, req ChatRequest) (ChatResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return ChatResponse{}, ErrEmptyMessage
	}

	// Fields left out of the request keep the session's selection.
	mode, filters := sess.Search()
	if req.Mode != "" {
		mode = domain.ParseSearchMode(req.Mode)
	}
	if industry := strings.TrimSpace(req.Industry); industry != "" {
		filters.Industry = industry
	}
	if req.Year != 0 {
		filters.Year = req.Year
	}
	sess.SetSearch(mode, filters)

	tok := credential.FromContext(ctx)
	profile := s.profiles.ForSession(ctx, sess, tok)
	now := s.now()

	payload := compose.Compose(compose.Input{
		UserText:           text,
		RecentTurns:        sess.RecentTurns(compose.HistoryTurns),
		Mode:               mode,
		Filters:            filters,
		EntitledIndustries: profile.IndustryReports,
		IncludeHistory:     s.opts.IncludeHistory,
		Now:                now,
	})
	sess.AppendTurn(domain.ChatTurn{Role: domain.RoleUser, Text: text, Timestamp: now})

	slog.Info("Agent chat request",
		"session_id", sess.ID,
		"token", tok,
		"client_id", profile.ID,
		"search_mode", mode,
		"year", payload.YearToSearch,
		"message_length", len(text),
		"query_length", len(payload.UserQuery),
	)

	env, err := s.querier.Query(ctx, payload)
	if err != nil {
		slog.Warn("Agent query failed", "session_id", sess.ID, "error", err)
		if !errors.Is(err, compose.ErrAgentUnavailable) {
			err = errors.Join(compose.ErrAgentUnavailable, err)
		}
		return ChatResponse{}, err
	}

	answeredAt := s.now()
	sess.AppendTurn(domain.ChatTurn{
		Role:        domain.RoleAssistant,
		Text:        env.Answer,
		Timestamp:   answeredAt,
		Citations:   env.Citations,
		Suggestions: env.RecommendedQueries,
	})

	resp := ChatResponse{
		Answer:             env.Answer,
		Sources:            env.Citations,
		RecommendedQueries: env.RecommendedQueries,
		CurrentDate:        env.CurrentDate,
	}
	if s.opts.DebugQueries {
		p := payload
		resp.DebugPayload = &p
	}

	resp.ChatID, resp.Persisted = s.persist(ctx, sess, answeredAt)
	if s.opts.QueryLog && resp.ChatID != "" {
		s.logQuery(ctx, domain.QueryLogEntry{
			Timestamp:  answeredAt,
			ChatID:     resp.ChatID,
			UserID:     profile.ID,
			Company:    profile.Company,
			Query:      text,
			Response:   env.Answer,
			SearchMode: mode,
			Filters:    filters,
			Sources:    env.Citations,
		})
	}
	return resp, nil
}

func (s *Service) persist(ctx context.Context, sess *session.Session, now time.Time) (string, bool) {
	if _, disabled := s.store.(store.Disabled); disabled {
		return "", false
	}
	chatID := sess.EnsureChatID(now, store.NewChatID)
	if err := s.store.SaveChat(ctx, sess.Transcript(now)); err != nil {
		slog.Warn("Failed to save chat", "session_id", sess.ID, "chat_id", chatID, "error", err)
		return chatID, false
	}
	return chatID, true
}

func (s *Service) logQuery(ctx context.Context, e domain.QueryLogEntry) {
	if err := s.store.LogQuery(ctx, e); err != nil {
		slog.Warn("Failed to log query", "chat_id", e.ChatID, "error", err)
	}
}

// Store returns the chat store used for persistence.
func (s *Service) Store() store.ChatStore {
	return s.store
}
