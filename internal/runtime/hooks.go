package runtime

import (
	"context"
	"time"

	"github.com/drblury/interactor/internal/runtime/ids"
	loggingpkg "github.com/drblury/interactor/internal/runtime/logging"
)

// DispatchInfo provides information about one dispatch to hooks.
type DispatchInfo struct {
	// Interactor is the registration name, empty when no handler was resolved.
	Interactor string
	// RequestType is the fully-qualified request type name.
	RequestType   string
	InvocationID  ids.InvocationID
	CorrelationID string
	// Context is the context the dispatch ran with.
	Context   context.Context
	StartedAt time.Time
	// Duration is only set in OnDone and OnError.
	Duration time.Duration
	// State is the last state the dispatch reached.
	State DispatchState
}

// DispatchHooks defines callbacks for dispatch lifecycle events.
// All hooks are optional - nil hooks are simply not called.
type DispatchHooks struct {
	// OnStart is called once the cancellation signal has been resolved.
	OnStart func(info DispatchInfo)

	// OnDone is called when the handler returned a valid response.
	OnDone func(info DispatchInfo)

	// OnError is called with the classified error, so err is always a
	// taxonomy member or a cancellation error.
	OnError func(info DispatchInfo, err error)
}

// Merge combines two DispatchHooks, creating a new DispatchHooks that calls both.
// The hooks from 'other' are called after the hooks from 'h'.
func (h DispatchHooks) Merge(other DispatchHooks) DispatchHooks {
	return DispatchHooks{
		OnStart: chainInfoHooks(h.OnStart, other.OnStart),
		OnDone:  chainInfoHooks(h.OnDone, other.OnDone),
		OnError: chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainInfoHooks(a, b func(DispatchInfo)) func(DispatchInfo) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info DispatchInfo) {
		a(info)
		b(info)
	}
}

func chainErrorHooks(a, b func(DispatchInfo, error)) func(DispatchInfo, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(info DispatchInfo, err error) {
		a(info, err)
		b(info, err)
	}
}

func (h DispatchHooks) start(info DispatchInfo) {
	if h.OnStart != nil {
		h.OnStart(info)
	}
}

func (h DispatchHooks) finish(info DispatchInfo, err error) {
	if err != nil {
		if h.OnError != nil {
			h.OnError(info, err)
		}
		return
	}
	if h.OnDone != nil {
		h.OnDone(info)
	}
}

// LoggingHooks returns pre-built hooks that log dispatch lifecycle events.
func LoggingHooks(logger loggingpkg.ServiceLogger) DispatchHooks {
	logger = loggingpkg.OrNop(logger)
	return DispatchHooks{
		OnStart: func(info DispatchInfo) {
			logger.Info("Interaction started", loggingpkg.DispatchFields(info.RequestType, info.InvocationID.String(), info.CorrelationID))
		},
		OnDone: func(info DispatchInfo) {
			logger.Info("Interaction completed", loggingpkg.LogFields{
				loggingpkg.FieldInteractor:   info.Interactor,
				loggingpkg.FieldRequestType:  info.RequestType,
				loggingpkg.FieldInvocationID: info.InvocationID.String(),
				loggingpkg.FieldDurationMS:   info.Duration.Milliseconds(),
			})
		},
		OnError: func(info DispatchInfo, err error) {
			logger.Error("Interaction failed", err, loggingpkg.LogFields{
				loggingpkg.FieldInteractor:   info.Interactor,
				loggingpkg.FieldRequestType:  info.RequestType,
				loggingpkg.FieldInvocationID: info.InvocationID.String(),
				loggingpkg.FieldDurationMS:   info.Duration.Milliseconds(),
				loggingpkg.FieldState:        string(info.State),
			})
		},
	}
}

// MetricsHooks returns pre-built hooks that report dispatches to counters
// owned by the caller.
func MetricsHooks(onStart, onDone, onError func(interactor, requestType string)) DispatchHooks {
	return DispatchHooks{
		OnStart: func(info DispatchInfo) {
			if onStart != nil {
				onStart(info.Interactor, info.RequestType)
			}
		},
		OnDone: func(info DispatchInfo) {
			if onDone != nil {
				onDone(info.Interactor, info.RequestType)
			}
		},
		OnError: func(info DispatchInfo, err error) {
			if onError != nil {
				onError(info.Interactor, info.RequestType)
			}
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on dispatch errors.
func AlertingHooks(alertFunc func(info DispatchInfo, err error)) DispatchHooks {
	return DispatchHooks{
		OnError: alertFunc,
	}
}
