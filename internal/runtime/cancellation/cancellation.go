// Package cancellation holds the ambient cancellation signal of a logical call
// chain.
//
// The signal travels inside context.Context rather than in shared state. Every
// scope owns a cell; Set only ever writes the nearest cell, so a value written
// inside a scope is visible to the rest of that scope and to anything it calls,
// while the caller keeps observing its own cell once the scope returns.
// Concurrent branches take a Fork so they never write into a cell they share.
//
// Usage:
//
//	err := cancellation.WithScope(ctx, sig, func(ctx context.Context) error {
//		current := cancellation.Current(ctx) // sig
//		return doWork(ctx)
//	})
//	// cancellation.Current(ctx) is unchanged here
package cancellation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Signal is a cooperative cancellation signal. Every context.Context is a Signal.
type Signal interface {
	Done() <-chan struct{}
	Err() error
}

type neverSignal struct{}

func (neverSignal) Done() <-chan struct{} { return nil }
func (neverSignal) Err() error            { return nil }
func (neverSignal) String() string        { return "cancellation.Never" }

// Never is a signal that is never cancelled.
var Never Signal = neverSignal{}

type cellKey struct{}

type holder struct{ signal Signal }

// cell is the mutable slot owned by one scope.
type cell struct {
	v atomic.Pointer[holder]
}

func newCell(s Signal) *cell {
	c := &cell{}
	c.store(s)
	return c
}

func (c *cell) load() Signal {
	return c.v.Load().signal
}

func (c *cell) store(s Signal) {
	if s == nil {
		s = Never
	}
	c.v.Store(&holder{signal: s})
}

func lookup(ctx context.Context) *cell {
	if ctx == nil {
		return nil
	}
	c, _ := ctx.Value(cellKey{}).(*cell)
	return c
}

// Current returns the ambient signal of the call chain. Without an enclosing
// scope the context itself is the signal.
func Current(ctx context.Context) Signal {
	if c := lookup(ctx); c != nil {
		return c.load()
	}
	if ctx == nil {
		return Never
	}
	return ctx
}

// Set overwrites the ambient signal of the nearest scope. When no scope is
// open it opens one and returns the derived context; callers must continue
// with the returned context either way.
func Set(ctx context.Context, s Signal) context.Context {
	if c := lookup(ctx); c != nil {
		c.store(s)
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, cellKey{}, newCell(s))
}

// Fork returns a context with its own cell seeded from the current signal.
// Use it before handing ctx to a concurrently running branch.
func Fork(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, cellKey{}, newCell(Current(ctx)))
}

// WithScope runs body with s as the ambient signal. It fails without running
// body when s is already cancelled. Once body returns the caller's context
// observes the signal it had before the call, whatever body did to its own scope.
func WithScope(ctx context.Context, s Signal, body func(ctx context.Context) error) error {
	_, err := Within(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, body(ctx)
	})
	return err
}

// Within is WithScope for bodies that produce a value.
func Within[T any](ctx context.Context, s Signal, body func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if s == nil {
		s = Never
	}
	if err := Check(s); err != nil {
		return zero, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return body(context.WithValue(ctx, cellKey{}, newCell(s)))
}

// Bind returns a context that keeps the values of ctx but takes its
// cancellation from s, with s installed as the ambient signal of a new scope.
func Bind(ctx context.Context, s Signal) context.Context {
	if s == nil {
		s = Never
	}
	if ctx == nil {
		ctx = context.Background()
	}
	bound := &boundContext{Context: ctx, signal: s}
	return context.WithValue(bound, cellKey{}, newCell(s))
}

type boundContext struct {
	context.Context
	signal Signal
}

func (b *boundContext) Done() <-chan struct{} { return b.signal.Done() }
func (b *boundContext) Err() error            { return b.signal.Err() }

func (b *boundContext) Deadline() (time.Time, bool) {
	if d, ok := b.signal.(interface{ Deadline() (time.Time, bool) }); ok {
		return d.Deadline()
	}
	return time.Time{}, false
}

// Check returns nil for a live signal. For a cancelled one it returns an error
// that matches context.Canceled or context.DeadlineExceeded under errors.Is.
func Check(s Signal) error {
	if s == nil {
		return nil
	}
	err := s.Err()
	if err == nil {
		return nil
	}
	if ctx, ok := s.(context.Context); ok {
		if cause := context.Cause(ctx); cause != nil && cause != err {
			if IsCancellation(cause) {
				return cause
			}
			return fmt.Errorf("%w: %w", err, cause)
		}
	}
	if IsCancellation(err) {
		return err
	}
	return fmt.Errorf("%w: %w", context.Canceled, err)
}

// IsCancellation reports whether err signals cooperative cancellation.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
