package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ykq007/mcp-nexus-cf/auth"
	"github.com/ykq007/mcp-nexus-cf/keypool"
	"github.com/ykq007/mcp-nexus-cf/observe"
	"github.com/ykq007/mcp-nexus-cf/ratelimit"
	"github.com/ykq007/mcp-nexus-cf/secret"
)

// Default per-window request budgets.
const (
	DefaultGlobalRateLimit = 600
	DefaultClientRateLimit = 60
)

// Forwarder sends an authorized request upstream using the selected
// provider credential.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Forward must honor cancellation/deadlines.
// - Errors: the dispatcher makes exactly one Forward call per request
//   and does not retry; retries belong inside the Forwarder.
type Forwarder interface {
	Forward(ctx context.Context, credential *keypool.Credential, apiKey, tool string, args map[string]any) (any, error)
}

// ForwarderFunc adapts a function to the Forwarder interface.
type ForwarderFunc func(ctx context.Context, credential *keypool.Credential, apiKey, tool string, args map[string]any) (any, error)

func (f ForwarderFunc) Forward(ctx context.Context, credential *keypool.Credential, apiKey, tool string, args map[string]any) (any, error) {
	return f(ctx, credential, apiKey, tool, args)
}

// Config holds dispatcher tunables.
type Config struct {
	// GlobalRateLimitPerMinute caps requests across all clients.
	// Defaults to DefaultGlobalRateLimit.
	GlobalRateLimitPerMinute int

	// ClientRateLimitPerMinute caps requests per token unless the token
	// carries its own override. Defaults to DefaultClientRateLimit.
	ClientRateLimitPerMinute int

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Dependencies are the collaborators a Dispatcher is built from.
// Authority, Limiter, Pool, Forwarder, and EncryptionKey are required;
// Authorizer defaults to the allowlist authorizer and Observer to a
// no-op observer.
type Dependencies struct {
	Authority     *auth.Authority
	Authorizer    auth.Authorizer
	Limiter       *ratelimit.Limiter
	Pool          *keypool.Pool
	Forwarder     Forwarder
	EncryptionKey []byte
	Observer      observe.Observer
}

// Request is one inbound tool invocation.
type Request struct {
	Bearer    string
	Tool      string
	Provider  string
	Arguments map[string]any
}

// Result is the outcome of a fully dispatched request.
type Result struct {
	Identity   *auth.Identity
	Credential *keypool.Credential
	Response   any
}

// Dispatcher runs the access-control pipeline: authenticate, authorize,
// rate limit, select a credential, forward.
type Dispatcher struct {
	config        Config
	authority     *auth.Authority
	authorizer    auth.Authorizer
	limiter       *ratelimit.Limiter
	pool          *keypool.Pool
	forwarder     Forwarder
	encryptionKey []byte
	logger        observe.Logger
	metrics       observe.Metrics
	tracer        observe.Tracer
}

// NewDispatcher validates the dependencies and builds a Dispatcher.
func NewDispatcher(config Config, deps Dependencies) (*Dispatcher, error) {
	if deps.Authority == nil {
		return nil, fmt.Errorf("%w: authority", ErrMissingDependency)
	}
	if deps.Limiter == nil {
		return nil, fmt.Errorf("%w: limiter", ErrMissingDependency)
	}
	if deps.Pool == nil {
		return nil, fmt.Errorf("%w: pool", ErrMissingDependency)
	}
	if deps.Forwarder == nil {
		return nil, fmt.Errorf("%w: forwarder", ErrMissingDependency)
	}
	if len(deps.EncryptionKey) != secret.KeyLen {
		return nil, fmt.Errorf("%w: expected %d-byte encryption key", secret.ErrBadKeyMaterial, secret.KeyLen)
	}

	if config.GlobalRateLimitPerMinute <= 0 {
		config.GlobalRateLimitPerMinute = DefaultGlobalRateLimit
	}
	if config.ClientRateLimitPerMinute <= 0 {
		config.ClientRateLimitPerMinute = DefaultClientRateLimit
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	authorizer := deps.Authorizer
	if authorizer == nil {
		authorizer = auth.NewScopeAuthorizer()
	}
	observer := deps.Observer
	if observer == nil {
		observer = observe.NewNoopObserver()
	}

	metrics, err := observe.NewMetrics(observer.Meter())
	if err != nil {
		return nil, fmt.Errorf("gateway: create metrics: %w", err)
	}

	key := make([]byte, secret.KeyLen)
	copy(key, deps.EncryptionKey)

	return &Dispatcher{
		config:        config,
		authority:     deps.Authority,
		authorizer:    authorizer,
		limiter:       deps.Limiter,
		pool:          deps.Pool,
		forwarder:     deps.Forwarder,
		encryptionKey: key,
		logger:        observer.Logger(),
		metrics:       metrics,
		tracer:        observe.NewTracer(observer.Tracer()),
	}, nil
}

// Authenticate resolves a bearer token to its identity. Verification
// failures keep their auth sentinel; store failures surface as ErrStorage.
func (d *Dispatcher) Authenticate(ctx context.Context, bearer string) (*auth.Identity, error) {
	identity, err := d.authority.Verify(ctx, bearer)
	if err != nil {
		if isAuthFailure(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return identity, nil
}

// AuthorizeTool checks the identity's allowlist for the requested tool.
func (d *Dispatcher) AuthorizeTool(ctx context.Context, identity *auth.Identity, tool string) error {
	return d.authorizer.Authorize(ctx, identity, tool)
}

// CheckRateLimit records the request against the client and global
// windows. Both counters are incremented exactly once per request even
// when one of them denies; the client scope is reported first.
func (d *Dispatcher) CheckRateLimit(ctx context.Context, identity *auth.Identity) error {
	clientLimit := identity.EffectiveRateLimit(d.config.ClientRateLimitPerMinute)
	client := d.limiter.Check(ratelimit.ClientScope(identity.TokenID), clientLimit)
	global := d.limiter.Check(ratelimit.GlobalScope, d.config.GlobalRateLimitPerMinute)

	if !client.Allowed {
		return &RateLimitError{Scope: "client", Limit: client.Limit, RetryAfter: client.RetryAfter}
	}
	if !global.Allowed {
		return &RateLimitError{Scope: "global", Limit: global.Limit, RetryAfter: global.RetryAfter}
	}
	return nil
}

// PickCredential selects a usable credential for the provider.
func (d *Dispatcher) PickCredential(ctx context.Context, providerID string) (*keypool.Credential, error) {
	credential, err := d.pool.Select(ctx, providerID)
	if err != nil {
		if errors.Is(err, keypool.ErrPoolExhausted) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return credential, nil
}

// Dispatch runs the full pipeline for one request. On success the
// response from the single forward attempt is returned; on rejection
// the returned error classifies via Classify and PayloadFor.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	start := d.config.Clock()
	meta := observe.RequestMeta{Tool: req.Tool, Provider: req.Provider}
	ctx, span := d.tracer.StartSpan(ctx, meta)

	result, err := d.dispatch(ctx, req, &meta)

	outcome := observe.OutcomeOK
	if err != nil {
		outcome = string(Classify(err))
	}
	d.metrics.RecordDispatch(ctx, meta, d.config.Clock().Sub(start), outcome)
	d.tracer.EndSpan(span, err)

	logger := d.logger.WithRequest(meta)
	if err != nil {
		logger.Warn(ctx, "request rejected",
			observe.Field{Key: "outcome", Value: outcome},
			observe.Field{Key: "error", Value: err.Error()},
		)
	} else {
		logger.Info(ctx, "request forwarded",
			observe.Field{Key: "credential_id", Value: result.Credential.ID},
		)
	}

	return result, err
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request, meta *observe.RequestMeta) (*Result, error) {
	identity, err := d.Authenticate(ctx, req.Bearer)
	if err != nil {
		return nil, err
	}
	meta.TokenID = identity.TokenID

	if err := d.AuthorizeTool(ctx, identity, req.Tool); err != nil {
		return nil, err
	}

	if err := d.CheckRateLimit(ctx, identity); err != nil {
		return nil, err
	}

	credential, err := d.PickCredential(ctx, req.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := secret.Decrypt(d.encryptionKey, credential.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("gateway: decrypt credential %s: %w", credential.ID, err)
	}

	// A request canceled while queued must not consume an upstream call.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	response, err := d.forwarder.Forward(ctx, credential, apiKey, req.Tool, req.Arguments)
	if err != nil {
		return nil, fmt.Errorf("gateway: forward %s: %w", req.Tool, err)
	}

	return &Result{Identity: identity, Credential: credential, Response: response}, nil
}

func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrTokenMalformed) ||
		errors.Is(err, auth.ErrTokenUnknown) ||
		errors.Is(err, auth.ErrInvalidSecret) ||
		errors.Is(err, auth.ErrTokenRevoked) ||
		errors.Is(err, auth.ErrTokenExpired)
}
