package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/agustogpt/research-gateway/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements ChatStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed chat store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chats (
		company TEXT NOT NULL,
		chat_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		message_count INTEGER NOT NULL,
		search_mode TEXT NOT NULL,
		last_message TEXT NOT NULL,
		blob_path TEXT NOT NULL,
		transcript_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (company, chat_id)
	);
	CREATE INDEX IF NOT EXISTS idx_chats_updated ON chats(company, updated_at);

	CREATE TABLE IF NOT EXISTS query_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		log_path TEXT NOT NULL,
		chat_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		company TEXT NOT NULL,
		entry_json TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_logs_chat ON query_logs(chat_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// SaveChat creates or updates a chat.
func (s *SQLiteStore) SaveChat(ctx context.Context, t domain.Transcript) error {
	if err := validate(t); err != nil {
		return err
	}
	company := PartitionKey(t.Company)
	t.MessageCount = len(t.Messages)
	sum := Summarize(t)

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}

	query := `
	INSERT INTO chats (company, chat_id, user_id, title, message_count, search_mode,
		last_message, blob_path, transcript_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(company, chat_id) DO UPDATE SET
		user_id = excluded.user_id,
		title = excluded.title,
		message_count = excluded.message_count,
		search_mode = excluded.search_mode,
		last_message = excluded.last_message,
		transcript_json = excluded.transcript_json,
		updated_at = excluded.updated_at`

	return shared.RetryOnConflict(ctx, "save chat", writeAttempts, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx, query,
			company, t.ChatID, t.UserID, sum.Title, sum.MessageCount, string(sum.SearchMode),
			sum.LastMessage, sum.BlobPath, string(data),
			t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(),
		)
		return err
	})
}

// LoadChat retrieves a chat transcript.
func (s *SQLiteStore) LoadChat(ctx context.Context, company, chatID string) (domain.Transcript, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT transcript_json FROM chats WHERE company = ? AND chat_id = ?`,
		PartitionKey(company), chatID)

	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Transcript{}, ErrNotFound
	}
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("scan chat row: %w", err)
	}

	var t domain.Transcript
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return domain.Transcript{}, fmt.Errorf("decode transcript %s: %w", chatID, err)
	}
	return t, nil
}

// ListChats returns the company's chats, most recently updated first.
func (s *SQLiteStore) ListChats(ctx context.Context, company string, limit int) ([]domain.ChatSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `
		SELECT chat_id, title, message_count, search_mode, last_message, blob_path,
		       created_at, updated_at
		FROM chats WHERE company = ?
		ORDER BY updated_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, PartitionKey(company), limit)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close chat rows", "error", closeErr)
		}
	}()

	chats := []domain.ChatSummary{}
	for rows.Next() {
		var c domain.ChatSummary
		var mode string
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&c.ChatID, &c.Title, &c.MessageCount, &mode, &c.LastMessage, &c.BlobPath,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		c.SearchMode = domain.ParseSearchMode(mode)
		c.CreatedAt = time.UnixMilli(createdAt).UTC()
		c.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

// DeleteChat removes a chat.
func (s *SQLiteStore) DeleteChat(ctx context.Context, company, chatID string) error {
	var affected int64
	err := shared.RetryOnConflict(ctx, "delete chat", writeAttempts, writeBaseDelay, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM chats WHERE company = ? AND chat_id = ?`, PartitionKey(company), chatID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// LogQuery appends a query log row.
func (s *SQLiteStore) LogQuery(ctx context.Context, e domain.QueryLogEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode query log: %w", err)
	}
	return shared.RetryOnConflict(ctx, "log query", writeAttempts, writeBaseDelay, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO query_logs (log_path, chat_id, user_id, company, entry_json, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			QueryLogPath(e), e.ChatID, e.UserID, PartitionKey(e.Company), string(data), e.Timestamp.UnixMilli(),
		)
		return err
	})
}
