// Package limiter rejects keyed interactions that exceed a sliding-window
// policy. Bookkeeping lives in a Store: MemoryStore for a single process,
// RedisStore when several dispatchers share one budget.
package limiter

import (
	"context"
	"fmt"
	"time"

	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/names"
)

// Keyed requests expose the key their budget is tracked under, e.g. a user id.
type Keyed interface {
	LimiterKey() string
}

// Result of one limiter decision.
type Result struct {
	WasRejected bool
	Remaining   int
	ResetAt     time.Time
}

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	Limit(ctx context.Context, req Keyed) (Result, error)
	Reset(ctx context.Context, req Keyed) error
}

// LimitOrThrow returns *errors.RejectedByLimiterError when req is rejected.
// Store failures are returned unchanged.
func LimitOrThrow(ctx context.Context, l Limiter, req Keyed) error {
	res, err := l.Limit(ctx, req)
	if err != nil {
		return err
	}
	if res.WasRejected {
		return errspkg.NewRejectedByLimiterError(names.OfValue(req), req.LimiterKey())
	}
	return nil
}

// Store keeps the sliding windows.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	Reset(ctx context.Context, key string) error
}

// Policy allows MaxRequests per Window.
type Policy struct {
	MaxRequests int
	Window      time.Duration
}

func (p Policy) validate() error {
	if p.MaxRequests <= 0 {
		return fmt.Errorf("limiter: max requests must be positive, got %d", p.MaxRequests)
	}
	if p.Window <= 0 {
		return fmt.Errorf("limiter: window must be positive, got %s", p.Window)
	}
	return nil
}

// WindowOption configures a WindowLimiter.
type WindowOption func(*WindowLimiter)

// WithTypePolicy overrides the policy for one fully-qualified request type name.
func WithTypePolicy(requestType string, p Policy) WindowOption {
	return func(l *WindowLimiter) { l.overrides[requestType] = p }
}

// WithPolicyFor overrides the policy for request type R.
func WithPolicyFor[R Keyed](p Policy) WindowOption {
	return WithTypePolicy(names.OfType[R](), p)
}

// WindowLimiter applies a sliding-window Policy per request type and key.
type WindowLimiter struct {
	store     Store
	policy    Policy
	overrides map[string]Policy
}

func NewWindowLimiter(store Store, policy Policy, opts ...WindowOption) (*WindowLimiter, error) {
	if store == nil {
		return nil, errspkg.ErrStoreRequired
	}
	if err := policy.validate(); err != nil {
		return nil, err
	}
	l := &WindowLimiter{store: store, policy: policy, overrides: make(map[string]Policy)}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	for name, p := range l.overrides {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return l, nil
}

func (l *WindowLimiter) Limit(ctx context.Context, req Keyed) (Result, error) {
	requestType := names.OfValue(req)
	p := l.policyFor(requestType)
	res, err := l.store.Allow(ctx, bucketKey(requestType, req), p.MaxRequests, p.Window)
	if err != nil {
		return Result{}, fmt.Errorf("limiter: %s: %w", requestType, err)
	}
	return res, nil
}

func (l *WindowLimiter) Reset(ctx context.Context, req Keyed) error {
	return l.store.Reset(ctx, bucketKey(names.OfValue(req), req))
}

func (l *WindowLimiter) policyFor(requestType string) Policy {
	if p, ok := l.overrides[requestType]; ok {
		return p
	}
	return l.policy
}

func bucketKey(requestType string, req Keyed) string {
	return requestType + ":" + req.LimiterKey()
}
