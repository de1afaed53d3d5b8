package agent

import (
	"context"

	"github.com/agustogpt/research-gateway/internal/credential"
	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/agustogpt/research-gateway/internal/session"
)

// Querier sends a composed query to the agent API.
// This interface is implemented by the HTTP client.
type Querier interface {
	Query(ctx context.Context, payload domain.QueryPayload) (domain.ResponseEnvelope, error)
}

// ProfileSource resolves the client profile for a session's current token.
type ProfileSource interface {
	ForSession(ctx context.Context, sess *session.Session, tok credential.Token) domain.ClientProfile
}

// Ensure Client implements Querier.
var _ Querier = (*Client)(nil)
