package errors

import (
	sterrors "errors"
	"fmt"

	"github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/validation"
)

// InteractionError is the root of every failure a dispatch surfaces on
// purpose. It is closed: only kinds declared in this package implement it.
type InteractionError interface {
	error
	Message() string
	interactionError()
}

// ValidationError is an InteractionError owned by one invocation.
type ValidationError interface {
	InteractionError
	InvocationID() ids.InvocationID
	Errors() []validation.Result
}

// InvalidRequestError reports that the request of an invocation failed validation.
type InvalidRequestError struct {
	Msg        string
	Invocation ids.InvocationID
	Findings   []validation.Result
}

func NewInvalidRequestError(message string, invocation ids.InvocationID, findings []validation.Result) *InvalidRequestError {
	return &InvalidRequestError{Msg: message, Invocation: invocation, Findings: findings}
}

func (e *InvalidRequestError) Error() string {
	return messageOr(e.Msg, "The request is invalid.")
}

func (e *InvalidRequestError) Message() string                { return e.Msg }
func (e *InvalidRequestError) InvocationID() ids.InvocationID { return e.Invocation }
func (e *InvalidRequestError) Errors() []validation.Result    { return e.Findings }
func (*InvalidRequestError) interactionError()                {}

// InvalidResponseError reports that a handler produced an invalid response.
type InvalidResponseError struct {
	Msg        string
	Invocation ids.InvocationID
	Findings   []validation.Result
}

func NewInvalidResponseError(message string, invocation ids.InvocationID, findings []validation.Result) *InvalidResponseError {
	return &InvalidResponseError{Msg: message, Invocation: invocation, Findings: findings}
}

func (e *InvalidResponseError) Error() string {
	return messageOr(e.Msg, "The response is invalid.")
}

func (e *InvalidResponseError) Message() string                { return e.Msg }
func (e *InvalidResponseError) InvocationID() ids.InvocationID { return e.Invocation }
func (e *InvalidResponseError) Errors() []validation.Result    { return e.Findings }
func (*InvalidResponseError) interactionError()                {}

// MissingInteractorError is a configuration defect: nothing handles RequestType.
type MissingInteractorError struct {
	Msg         string
	RequestType string
}

func NewMissingInteractorError(requestType string) *MissingInteractorError {
	return &MissingInteractorError{
		Msg:         fmt.Sprintf("No interactor has been registered for request type '%s'.", requestType),
		RequestType: requestType,
	}
}

func (e *MissingInteractorError) Error() string {
	return messageOr(e.Msg, "No interactor has been registered for the request type.")
}

func (e *MissingInteractorError) Message() string { return e.Msg }
func (*MissingInteractorError) interactionError() {}

// RejectedByLimiterError is a policy rejection of a keyed request.
type RejectedByLimiterError struct {
	Msg         string
	RequestType string
	Key         string
}

func NewRejectedByLimiterError(requestType, key string) *RejectedByLimiterError {
	return &RejectedByLimiterError{
		Msg:         fmt.Sprintf("The interaction '%s' with key '%s' was rejected by the limiter.", requestType, key),
		RequestType: requestType,
		Key:         key,
	}
}

func (e *RejectedByLimiterError) Error() string {
	return messageOr(e.Msg, "The interaction was rejected by the limiter.")
}

func (e *RejectedByLimiterError) Message() string { return e.Msg }
func (*RejectedByLimiterError) interactionError() {}

// UnexpectedError is the catch-all kind. Cause is kept for diagnostics only and
// never crosses a process boundary.
type UnexpectedError struct {
	Msg   string
	Cause error
}

const unexpectedMessage = "An unexpected error occurred while processing the interaction."

func NewUnexpectedError(message string, cause error) *UnexpectedError {
	return &UnexpectedError{Msg: message, Cause: cause}
}

// WrapUnexpected rewraps cause with the default message.
func WrapUnexpected(cause error) *UnexpectedError {
	return &UnexpectedError{Msg: unexpectedMessage, Cause: cause}
}

func (e *UnexpectedError) Error() string {
	msg := messageOr(e.Msg, unexpectedMessage)
	if e.Cause != nil {
		return msg + " Cause: " + e.Cause.Error()
	}
	return msg
}

func (e *UnexpectedError) Message() string { return e.Msg }
func (e *UnexpectedError) Unwrap() error   { return e.Cause }
func (*UnexpectedError) interactionError() {}

// IsInteractionError reports whether err is, or wraps, a taxonomy member.
func IsInteractionError(err error) bool {
	var ie InteractionError
	return sterrors.As(err, &ie)
}

// AsValidationError returns the outermost validation error in err's chain.
func AsValidationError(err error) (ValidationError, bool) {
	var ve ValidationError
	if sterrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func messageOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
