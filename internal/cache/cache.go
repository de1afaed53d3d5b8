// Package cache stores client profiles keyed by token fingerprint so repeat
// sessions with the same token skip the client-details API.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/agustogpt/research-gateway/internal/domain"
)

// ProfileCache caches resolved client profiles.
type ProfileCache interface {
	Get(ctx context.Context, key string) (domain.ClientProfile, bool, error)
	Set(ctx context.Context, key string, p domain.ClientProfile, ttl time.Duration) error
}

type memoryEntry struct {
	profile   domain.ClientProfile
	expiresAt time.Time
}

// Memory is an in-process ProfileCache.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached profile for key if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) (domain.ClientProfile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return domain.ClientProfile{}, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return domain.ClientProfile{}, false, nil
	}
	return e.profile, true, nil
}

// Set stores p under key for ttl.
func (m *Memory) Set(_ context.Context, key string, p domain.ClientProfile, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	// Opportunistic cleanup keeps the map bounded by live tokens.
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{profile: p, expiresAt: now.Add(ttl)}
	return nil
}
