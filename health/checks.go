package health

import (
	"context"
	"fmt"
	"time"

	"github.com/ykq007/mcp-nexus-cf/keypool"
)

// Pinger is the slice of a database handle the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewDatabaseChecker reports whether the backing store answers a ping.
func NewDatabaseChecker(db Pinger) Checker {
	return NewCheckerFunc("database", func(ctx context.Context) Result {
		if err := db.Ping(ctx); err != nil {
			return Unhealthy("database unreachable", err)
		}
		return Healthy("database reachable")
	})
}

// NewCredentialPoolChecker reports whether each named provider still has
// at least one active credential. A provider with credentials but none
// active is degraded, not unhealthy: requests to it fail with pool
// exhaustion while the rest of the gateway keeps working.
func NewCredentialPoolChecker(store keypool.CredentialStore, providers ...string) Checker {
	return NewCheckerFunc("credential_pool", func(ctx context.Context) Result {
		var exhausted []string
		for _, provider := range providers {
			credentials, err := store.ListByProvider(ctx, provider)
			if err != nil {
				return Unhealthy(fmt.Sprintf("listing credentials for %s", provider), err)
			}
			active := 0
			for _, credential := range credentials {
				if credential.Active() {
					active++
				}
			}
			if active == 0 {
				exhausted = append(exhausted, provider)
			}
		}
		if len(exhausted) > 0 {
			return Degraded(fmt.Sprintf("no active credentials for: %v", exhausted))
		}
		return Healthy("all providers have active credentials")
	})
}

// AggregatorConfig holds aggregation tunables.
type AggregatorConfig struct {
	// CheckTimeout bounds each individual check. Defaults to 5s.
	CheckTimeout time.Duration
}

// Aggregator runs a set of checkers and folds their results into one
// overall status.
type Aggregator struct {
	config   AggregatorConfig
	checkers []Checker
}

// NewAggregator creates an aggregator over the given checkers.
func NewAggregator(config AggregatorConfig, checkers ...Checker) *Aggregator {
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = 5 * time.Second
	}
	return &Aggregator{config: config, checkers: checkers}
}

// CheckAll runs every checker and returns the results by name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	results := make(map[string]Result, len(a.checkers))
	for _, checker := range a.checkers {
		results[checker.Name()] = a.run(ctx, checker)
	}
	return results
}

// OverallStatus folds per-check results: any unhealthy wins, then any
// degraded, otherwise healthy.
func OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, result := range results {
		if result.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if result.Status == StatusDegraded {
			overall = StatusDegraded
		}
	}
	return overall
}

func (a *Aggregator) run(ctx context.Context, checker Checker) Result {
	ctx, cancel := context.WithTimeout(ctx, a.config.CheckTimeout)
	defer cancel()

	start := time.Now()
	result := checker.Check(ctx)
	result.Duration = time.Since(start)
	return result
}
