package metrics

import (
	"errors"

	"github.com/drblury/interactor/internal/runtime/cancellation"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
)

// Outcome labels how a dispatch ended.
type Outcome string

const (
	OutcomeOK                Outcome = "ok"
	OutcomeInvalidRequest    Outcome = "invalid_request"
	OutcomeInvalidResponse   Outcome = "invalid_response"
	OutcomeMissingInteractor Outcome = "missing_interactor"
	OutcomeRejected          Outcome = "rejected"
	OutcomeCancelled         Outcome = "cancelled"
	OutcomeUnexpected        Outcome = "unexpected"
)

// OutcomeOf maps a dispatch error onto its outcome label.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	if cancellation.IsCancellation(err) {
		return OutcomeCancelled
	}
	var (
		invalidRequest  *errspkg.InvalidRequestError
		invalidResponse *errspkg.InvalidResponseError
		missing         *errspkg.MissingInteractorError
		rejected        *errspkg.RejectedByLimiterError
	)
	switch {
	case errors.As(err, &invalidRequest):
		return OutcomeInvalidRequest
	case errors.As(err, &invalidResponse):
		return OutcomeInvalidResponse
	case errors.As(err, &missing):
		return OutcomeMissingInteractor
	case errors.As(err, &rejected):
		return OutcomeRejected
	default:
		return OutcomeUnexpected
	}
}
