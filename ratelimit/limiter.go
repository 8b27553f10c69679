package ratelimit

import (
	"sync"
	"time"
)

// GlobalScope is the counter key shared by all clients.
const GlobalScope = "global"

// ClientScope returns the counter key for a client token id.
func ClientScope(tokenID string) string {
	return "token:" + tokenID
}

// Config configures the limiter.
type Config struct {
	// Window is the counting window length.
	// Default: 1 minute
	Window time.Duration

	// Clock returns the current time. Overridable in tests.
	// Default: time.Now
	Clock func() time.Time
}

// Decision is the outcome of a single counter check.
type Decision struct {
	// Allowed is false when the post-increment count exceeds the limit.
	Allowed bool

	// Scope is the counter key that was checked.
	Scope string

	// Limit is the limit the count was checked against.
	Limit int

	// Count is the post-increment count within the current window.
	Count int

	// RetryAfter is the time remaining until the window resets.
	// Zero when Allowed.
	RetryAfter time.Duration
}

// RetryAfterMs returns RetryAfter in whole milliseconds, rounded up so a
// denied caller never retries before the window actually resets.
func (d Decision) RetryAfterMs() int64 {
	if d.RetryAfter <= 0 {
		return 0
	}
	ms := d.RetryAfter.Milliseconds()
	if d.RetryAfter%time.Millisecond != 0 {
		ms++
	}
	return ms
}

// Limiter tracks fixed-window counters per scope.
//
// The window is anchored at the first request seen in the window and resets
// exactly once when it elapses.
type Limiter struct {
	config Config

	mu     sync.Mutex
	scopes map[string]*windowCounter
}

// windowCounter is the per-scope state. Its mutex linearizes same-scope
// increments independently of every other scope.
type windowCounter struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// New creates a new limiter.
func New(config Config) *Limiter {
	// Apply defaults
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Limiter{
		config: config,
		scopes: make(map[string]*windowCounter),
	}
}

// Check increments the scope's counter within the current window and reports
// whether the request is allowed under limit. The increment is recorded even
// when the limit is exceeded, so the counter keeps accruing against the
// window.
func (l *Limiter) Check(scope string, limit int) Decision {
	c := l.counter(scope)
	now := l.config.Clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.windowStart.IsZero() || now.Sub(c.windowStart) >= l.config.Window {
		c.windowStart = now
		c.count = 0
	}
	c.count++

	d := Decision{
		Scope: scope,
		Limit: limit,
		Count: c.count,
	}
	if c.count <= limit {
		d.Allowed = true
		return d
	}

	d.RetryAfter = c.windowStart.Add(l.config.Window).Sub(now)
	return d
}

// Count returns the current count for a scope without incrementing.
// A scope that has never been checked, or whose window has elapsed, counts
// as zero.
func (l *Limiter) Count(scope string) int {
	l.mu.Lock()
	c, ok := l.scopes[scope]
	l.mu.Unlock()
	if !ok {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.windowStart.IsZero() || l.config.Clock().Sub(c.windowStart) >= l.config.Window {
		return 0
	}
	return c.count
}

// Reset discards all counters.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scopes = make(map[string]*windowCounter)
}

func (l *Limiter) counter(scope string) *windowCounter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.scopes[scope]
	if !ok {
		c = &windowCounter{}
		l.scopes[scope] = c
	}
	return c
}
