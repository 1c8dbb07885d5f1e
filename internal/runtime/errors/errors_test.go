package errors

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrDispatcherRequired", ErrDispatcherRequired, "interactor: dispatcher is required"},
		{"ErrContextRequired", ErrContextRequired, "interactor: interaction context is required"},
		{"ErrContextReused", ErrContextReused, "interactor: interaction context has already been dispatched"},
		{"ErrHandlerRequired", ErrHandlerRequired, "interactor: handler function is required"},
		{"ErrRequestTypeRequired", ErrRequestTypeRequired, "interactor: request type is required"},
		{"ErrPublisherRequired", ErrPublisherRequired, "interactor: publisher is required"},
		{"ErrSubscriberRequired", ErrSubscriberRequired, "interactor: subscriber is required"},
		{"ErrTopicRequired", ErrTopicRequired, "interactor: topic is required"},
		{"ErrConfigRequired", ErrConfigRequired, "interactor: configuration is required"},
		{"ErrLoggerRequired", ErrLoggerRequired, "interactor: logger is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("invalid port")
	err := ConfigValidationError{Err: inner}

	want := "interactor: invalid configuration: invalid port"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if unwrapped := err.Unwrap(); unwrapped != inner {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, inner)
	}
}

func TestNewConfigValidationError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if err := NewConfigValidationError(nil); err != nil {
			t.Errorf("NewConfigValidationError(nil) = %v, want nil", err)
		}
	})

	t.Run("errors.Is works with wrapped error", func(t *testing.T) {
		inner := errors.New("specific error")
		err := NewConfigValidationError(inner)

		var cfgErr ConfigValidationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigValidationError, got %T", err)
		}
		if !errors.Is(err, inner) {
			t.Error("errors.Is should match wrapped error")
		}
	})
}
