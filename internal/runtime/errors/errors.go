package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrDispatcherRequired  = sterrors.New("interactor: dispatcher is required")
	ErrContextRequired     = sterrors.New("interactor: interaction context is required")
	ErrContextReused       = sterrors.New("interactor: interaction context has already been dispatched")
	ErrHandlerRequired     = sterrors.New("interactor: handler function is required")
	ErrRequestTypeRequired = sterrors.New("interactor: request type is required")
	ErrDuplicateInteractor = sterrors.New("interactor: an interactor is already registered for this request type")
	ErrKindNameRequired    = sterrors.New("interactor: exception kind name is required")
	ErrKindFactoryRequired = sterrors.New("interactor: exception kind constructor is required")
	ErrDuplicateKind       = sterrors.New("interactor: exception kind is already registered")
	ErrPublisherRequired   = sterrors.New("interactor: publisher is required")
	ErrSubscriberRequired  = sterrors.New("interactor: subscriber is required")
	ErrTopicRequired       = sterrors.New("interactor: topic is required")
	ErrConfigRequired      = sterrors.New("interactor: configuration is required")
	ErrLoggerRequired      = sterrors.New("interactor: logger is required")
	ErrStoreRequired       = sterrors.New("interactor: limiter store is required")
	ErrClientRequired      = sterrors.New("interactor: remote client is required")
)

// ConfigValidationError wraps the joined configuration problems.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("interactor: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
