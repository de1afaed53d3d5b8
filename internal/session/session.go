// Package session holds the per-browser chat context: the manual token
// override, the resolved profile, search selections and the transcript.
package session

import (
	"sync"
	"time"

	"github.com/agustogpt/research-gateway/internal/credential"
	"github.com/agustogpt/research-gateway/internal/domain"
)

// Session is the explicit context object threaded through each chat turn.
// All fields are guarded by mu; callers use the methods.
type Session struct {
	ID string

	mu            sync.Mutex
	manualToken   string
	token         credential.Token
	profile       domain.ClientProfile
	profileFor    string // token fingerprint the profile was fetched for
	turns         []domain.ChatTurn
	chatID        string
	chatCreatedAt time.Time
	mode          domain.SearchMode
	filters       domain.Filters
	createdAt     time.Time
	lastSeenAt    time.Time
}

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	ID          string               `json:"session_id"`
	TokenSource credential.Source    `json:"token_source"`
	Profile     domain.ClientProfile `json:"profile"`
	ChatID      string               `json:"chat_id,omitempty"`
	Mode        domain.SearchMode    `json:"search_mode"`
	Filters     domain.Filters       `json:"filters"`
	Turns       []domain.ChatTurn    `json:"messages"`
	CreatedAt   time.Time            `json:"created_at"`
	LastSeenAt  time.Time            `json:"last_seen_at"`
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:         id,
		token:      credential.Token{Value: credential.Anonymous, Source: credential.SourceAnonymous},
		profile:    domain.DefaultProfile(),
		mode:       domain.SearchModeAuto,
		createdAt:  now,
		lastSeenAt: now,
	}
}

// ManualToken returns the manual override, if any.
func (s *Session) ManualToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manualToken
}

// SetManualToken sets or, with "", clears the manual override.
func (s *Session) SetManualToken(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualToken = v
}

// BindToken records the token resolved for the current request. A different
// token invalidates the cached profile.
func (s *Session) BindToken(t credential.Token) (changed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed = s.token.Fingerprint() != t.Fingerprint()
	s.token = t
	if changed {
		s.profile = domain.DefaultProfile()
		s.profileFor = ""
	}
	return changed
}

// Token returns the last bound token.
func (s *Session) Token() credential.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Profile returns the profile and whether it was fetched for the current token.
func (s *Session) Profile() (domain.ClientProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile, s.profileFor != "" && s.profileFor == s.token.Fingerprint()
}

// SetProfile stores p for the token with fingerprint fp. It is ignored if the
// session has since moved to another token.
func (s *Session) SetProfile(fp string, p domain.ClientProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fp != s.token.Fingerprint() {
		return
	}
	s.profile = p
	s.profileFor = fp
}

// Search returns the current search mode and filters.
func (s *Session) Search() (domain.SearchMode, domain.Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode, s.filters
}

// SetSearch updates the search mode and filters.
func (s *Session) SetSearch(mode domain.SearchMode, f domain.Filters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
	s.filters = f
}

// AppendTurn adds a turn to the transcript.
func (s *Session) AppendTurn(t domain.ChatTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

// RecentTurns returns a copy of the last n turns.
func (s *Session) RecentTurns(n int) []domain.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		return nil
	}
	start := len(s.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]domain.ChatTurn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

// EnsureChatID returns the chat id, assigning one from gen if the chat has none.
func (s *Session) EnsureChatID(now time.Time, gen func(time.Time) string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatID == "" {
		s.chatID = gen(now)
		s.chatCreatedAt = now
	}
	return s.chatID
}

// Transcript builds the persistable form of the current chat.
func (s *Session) Transcript(now time.Time) domain.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]domain.ChatTurn, len(s.turns))
	copy(msgs, s.turns)
	created := s.chatCreatedAt
	if created.IsZero() {
		created = now
	}
	return domain.Transcript{
		ChatID:       s.chatID,
		UserID:       s.profile.ID,
		Company:      s.profile.Company,
		SearchMode:   s.mode,
		Messages:     msgs,
		MessageCount: len(msgs),
		CreatedAt:    created,
		UpdatedAt:    now,
	}
}

// Reset starts a new chat, keeping the token, profile and search selections.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.chatID = ""
	s.chatCreatedAt = time.Time{}
}

// Load replaces the current chat with a persisted transcript.
func (s *Session) Load(t domain.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append([]domain.ChatTurn(nil), t.Messages...)
	s.chatID = t.ChatID
	s.chatCreatedAt = t.CreatedAt
	if t.SearchMode != "" {
		s.mode = t.SearchMode
	}
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := make([]domain.ChatTurn, len(s.turns))
	copy(turns, s.turns)
	return Snapshot{
		ID:          s.ID,
		TokenSource: s.token.Source,
		Profile:     s.profile,
		ChatID:      s.chatID,
		Mode:        s.mode,
		Filters:     s.filters,
		Turns:       turns,
		CreatedAt:   s.createdAt,
		LastSeenAt:  s.lastSeenAt,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeenAt = now
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeenAt
}
