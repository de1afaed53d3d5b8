package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "chats.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testTranscript(id, company string, updated time.Time) domain.Transcript {
	return domain.Transcript{
		ChatID:     id,
		UserID:     "42",
		Company:    company,
		SearchMode: domain.SearchModeTailored,
		Messages: []domain.ChatTurn{
			{Role: domain.RoleUser, Text: "What is the outlook for banking?", Timestamp: updated},
			{
				Role:        domain.RoleAssistant,
				Text:        "Stable.",
				Timestamp:   updated,
				Citations:   []domain.Citation{{DocumentName: "Banking 2024", Year: 2024, Page: 3, ChunkIndex: 1}},
				Suggestions: []string{"What about insurance?"},
			},
		},
		CreatedAt: updated.Add(-time.Minute),
		UpdatedAt: updated,
	}
}

func TestSQLiteSaveLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	now := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

	want := testTranscript("chat_1", "Acme", now)
	if err := s.SaveChat(ctx, want); err != nil {
		t.Fatalf("SaveChat failed: %v", err)
	}
	got, err := s.LoadChat(ctx, "Acme", "chat_1")
	if err != nil {
		t.Fatalf("LoadChat failed: %v", err)
	}
	want.MessageCount = 2
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.LoadChat(ctx, "Other Co", "chat_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadChat for another company = %v, want ErrNotFound", err)
	}
}

func TestSQLiteSaveUpserts(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	now := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

	tr := testTranscript("chat_1", "Acme", now)
	if err := s.SaveChat(ctx, tr); err != nil {
		t.Fatalf("SaveChat failed: %v", err)
	}
	tr.Messages = append(tr.Messages, domain.ChatTurn{Role: domain.RoleUser, Text: "And insurance?", Timestamp: now})
	tr.UpdatedAt = now.Add(time.Minute)
	if err := s.SaveChat(ctx, tr); err != nil {
		t.Fatalf("second SaveChat failed: %v", err)
	}

	chats, err := s.ListChats(ctx, "Acme", 0)
	if err != nil {
		t.Fatalf("ListChats failed: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("expected 1 chat, got %d", len(chats))
	}
	c := chats[0]
	if c.MessageCount != 3 || c.LastMessage != "And insurance?" || c.Title != "What is the outlook for banking?" {
		t.Errorf("unexpected summary %+v", c)
	}
	if c.SearchMode != domain.SearchModeTailored || c.BlobPath != "Acme/chat_1.json" {
		t.Errorf("unexpected summary %+v", c)
	}
	if !c.UpdatedAt.Equal(now.Add(time.Minute)) || !c.CreatedAt.Equal(now.Add(-time.Minute)) {
		t.Errorf("unexpected timestamps %v / %v", c.CreatedAt, c.UpdatedAt)
	}
}

func TestSQLiteListOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)
	base := time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"chat_old", "chat_new", "chat_mid"} {
		offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
		if err := s.SaveChat(ctx, testTranscript(id, "Acme", base.Add(offsets[i]))); err != nil {
			t.Fatalf("SaveChat failed: %v", err)
		}
	}
	if err := s.SaveChat(ctx, testTranscript("chat_other", "Beta", base)); err != nil {
		t.Fatalf("SaveChat failed: %v", err)
	}

	chats, err := s.ListChats(ctx, "Acme", 2)
	if err != nil {
		t.Fatalf("ListChats failed: %v", err)
	}
	var ids []string
	for _, c := range chats {
		ids = append(ids, c.ChatID)
	}
	if diff := cmp.Diff([]string{"chat_new", "chat_mid"}, ids); diff != "" {
		t.Errorf("ListChats (-want +got):\n%s", diff)
	}

	empty, err := s.ListChats(ctx, "Nobody", 0)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("ListChats for unknown company = %v, %v; want empty non-nil", empty, err)
	}
}

func TestSQLiteDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	if err := s.SaveChat(ctx, testTranscript("chat_1", "Acme", time.Now())); err != nil {
		t.Fatalf("SaveChat failed: %v", err)
	}
	if err := s.DeleteChat(ctx, "Acme", "chat_1"); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}
	if err := s.DeleteChat(ctx, "Acme", "chat_1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteChat = %v, want ErrNotFound", err)
	}
}

func TestSQLiteSaveRequiresChatID(t *testing.T) {
	s := newTestSQLite(t)
	if err := s.SaveChat(context.Background(), domain.Transcript{}); err == nil {
		t.Fatal("expected error for transcript without chat id")
	}
}

func TestSQLiteLogQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t)

	e := domain.QueryLogEntry{
		Timestamp:  time.Date(2025, 6, 7, 8, 9, 10, 0, time.UTC),
		ChatID:     "chat_1",
		UserID:     "42",
		Company:    "Acme",
		Query:      "banking outlook",
		Response:   "Stable.",
		SearchMode: domain.SearchModeAuto,
	}
	if err := s.LogQuery(ctx, e); err != nil {
		t.Fatalf("LogQuery failed: %v", err)
	}

	var path string
	if err := s.db.QueryRowContext(ctx, `SELECT log_path FROM query_logs WHERE chat_id = ?`, "chat_1").Scan(&path); err != nil {
		t.Fatalf("query log row: %v", err)
	}
	if path != "logs/20250607/chat_1_080910.json" {
		t.Errorf("log_path = %q", path)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping = %v", err)
	}
}
