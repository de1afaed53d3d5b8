package clientapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/agustogpt/research-gateway/internal/cache"
	"github.com/agustogpt/research-gateway/internal/credential"
	"github.com/agustogpt/research-gateway/internal/domain"
	"github.com/agustogpt/research-gateway/internal/session"
)

// Resolver turns tokens into profiles, degrading to the anonymous profile on
// any failure.
type Resolver struct {
	fetcher Fetcher
	cache   cache.ProfileCache
	ttl     time.Duration
	logger  *slog.Logger
}

// NewResolver creates a Resolver. cache may be nil.
func NewResolver(fetcher Fetcher, c cache.ProfileCache, ttl time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{fetcher: fetcher, cache: c, ttl: ttl, logger: logger}
}

// Profile returns the profile for tok. It never fails: anonymous tokens and
// client API failures both yield domain.DefaultProfile().
func (r *Resolver) Profile(ctx context.Context, tok credential.Token) domain.ClientProfile {
	p, _ := r.resolve(ctx, tok)
	return p
}

// resolve reports ok=false when the default profile stands in for a failed fetch.
func (r *Resolver) resolve(ctx context.Context, tok credential.Token) (domain.ClientProfile, bool) {
	if tok.IsAnonymous() {
		return domain.DefaultProfile(), true
	}

	key := tok.Fingerprint()
	if r.cache != nil {
		p, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn("Profile cache read failed", "error", err)
		} else if ok {
			return p, true
		}
	}

	p, err := r.fetcher.CurrentClient(ctx, tok.Value)
	if err != nil {
		r.logger.Warn("Client API failed, continuing as anonymous", "token", tok, "error", err)
		return domain.DefaultProfile(), false
	}
	r.logger.Info("Client profile resolved",
		"token", tok,
		"client_id", p.ID,
		"company", p.Company,
		"reports", len(p.IndustryReports),
	)

	if r.cache != nil && r.ttl > 0 {
		if err := r.cache.Set(ctx, key, p, r.ttl); err != nil {
			r.logger.Warn("Profile cache write failed", "error", err)
		}
	}
	return p, true
}

// ForSession binds the request token to sess and returns its profile,
// fetching it only when the session has none for the current token. A failed
// fetch is not bound, so the next turn asks the client API again.
func (r *Resolver) ForSession(ctx context.Context, sess *session.Session, tok credential.Token) domain.ClientProfile {
	sess.BindToken(tok)
	if p, ok := sess.Profile(); ok {
		return p
	}
	p, ok := r.resolve(ctx, tok)
	if ok {
		sess.SetProfile(tok.Fingerprint(), p)
	}
	return p
}
