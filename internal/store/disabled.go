package store

import (
	"context"

	"github.com/agustogpt/research-gateway/internal/domain"
)

// Disabled is the ChatStore used when persistence is turned off.
type Disabled struct{}

func (Disabled) SaveChat(context.Context, domain.Transcript) error { return ErrStorageDisabled }

func (Disabled) LoadChat(context.Context, string, string) (domain.Transcript, error) {
	return domain.Transcript{}, ErrStorageDisabled
}

func (Disabled) ListChats(context.Context, string, int) ([]domain.ChatSummary, error) {
	return nil, ErrStorageDisabled
}

func (Disabled) DeleteChat(context.Context, string, string) error { return ErrStorageDisabled }

func (Disabled) LogQuery(context.Context, domain.QueryLogEntry) error { return ErrStorageDisabled }

func (Disabled) Ping(context.Context) error { return ErrStorageDisabled }

func (Disabled) Close() error { return nil }
