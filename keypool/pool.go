package keypool

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Strategy selects which active credential a call receives.
type Strategy string

const (
	// StrategyRoundRobin rotates through active credentials in creation
	// order, per provider.
	StrategyRoundRobin Strategy = "round_robin"

	// StrategyRandom picks uniformly among the currently active credentials.
	StrategyRandom Strategy = "random"
)

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyRoundRobin, StrategyRandom:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// PoolConfig configures the credential pool.
type PoolConfig struct {
	// Strategy is the selection strategy.
	// Default: StrategyRoundRobin
	Strategy Strategy

	// Clock returns the current time, used for LastUsedAt stamps.
	// Default: time.Now
	Clock func() time.Time

	// OnTouchError receives failures from the best-effort LastUsedAt
	// update. Selection never blocks on these. Default: drop.
	OnTouchError func(err error)
}

// Pool selects upstream credentials per provider.
//
// Contract:
// - Concurrency: safe for concurrent use; round-robin cursor advancement is
//   linearized per provider, distinct providers proceed concurrently.
// - Errors: Select returns ErrPoolExhausted when no active credential
//   exists; storage failures are returned as-is.
type Pool struct {
	config PoolConfig
	store  CredentialStore

	mu      sync.Mutex
	cursors map[string]*cursor
}

// cursor is per-provider rotation state for round-robin selection. Its
// mutex is held across the list-and-pick so two concurrent callers cannot
// interleave their advancement.
type cursor struct {
	mu   sync.Mutex
	last int // index of the last-selected credential in creation order
}

// NewPool creates a credential pool backed by store.
func NewPool(config PoolConfig, store CredentialStore) *Pool {
	// Apply defaults
	if config.Strategy == "" {
		config.Strategy = StrategyRoundRobin
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.OnTouchError == nil {
		config.OnTouchError = func(error) {}
	}

	return &Pool{
		config:  config,
		store:   store,
		cursors: make(map[string]*cursor),
	}
}

// Select returns the next usable credential for a provider according to the
// configured strategy and stamps its LastUsedAt best-effort.
func (p *Pool) Select(ctx context.Context, providerID string) (*Credential, error) {
	var (
		cred *Credential
		err  error
	)
	switch p.config.Strategy {
	case StrategyRandom:
		cred, err = p.selectRandom(ctx, providerID)
	default:
		cred, err = p.selectRoundRobin(ctx, providerID)
	}
	if err != nil {
		return nil, err
	}

	if touchErr := p.store.TouchLastUsed(ctx, cred.ID, p.config.Clock()); touchErr != nil {
		p.config.OnTouchError(touchErr)
	}
	return cred, nil
}

// selectRoundRobin scans creation order starting after the cursor, skipping
// disabled credentials, and wraps around.
func (p *Pool) selectRoundRobin(ctx context.Context, providerID string) (*Credential, error) {
	cur := p.cursor(providerID)
	cur.mu.Lock()
	defer cur.mu.Unlock()

	creds, err := p.store.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("keypool: list credentials: %w", err)
	}
	if len(creds) == 0 {
		return nil, ErrPoolExhausted
	}

	start := cur.last
	if start < 0 || start >= len(creds) {
		start = len(creds) - 1
	}
	for i := 1; i <= len(creds); i++ {
		idx := (start + i) % len(creds)
		if creds[idx].Active() {
			cur.last = idx
			return creds[idx], nil
		}
	}
	return nil, ErrPoolExhausted
}

// selectRandom picks uniformly among the active credentials at call time.
func (p *Pool) selectRandom(ctx context.Context, providerID string) (*Credential, error) {
	creds, err := p.store.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("keypool: list credentials: %w", err)
	}

	active := make([]*Credential, 0, len(creds))
	for _, c := range creds {
		if c.Active() {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return nil, ErrPoolExhausted
	}
	return active[rand.IntN(len(active))], nil
}

func (p *Pool) cursor(providerID string) *cursor {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.cursors[providerID]
	if !ok {
		c = &cursor{last: -1}
		p.cursors[providerID] = c
	}
	return c
}
