// Package httpx carries interaction errors across an HTTP boundary. The server
// side writes the wire payload of an error with a status picked from its kind;
// the client side turns such a response back into the typed error.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/jsoncodec"
	"github.com/drblury/interactor/internal/runtime/wire"
)

const (
	// HeaderCorrelationID echoes the correlation id of the failed dispatch.
	HeaderCorrelationID = "X-Correlation-ID"

	maxErrorBody = 1 << 20
)

const cancelledMessage = "The interaction was cancelled before it completed."

// Meta carries response details that do not belong in the error payload.
type Meta struct {
	CorrelationID     string
	RetryAfterSeconds int
}

// Writer turns errors into HTTP responses.
type Writer struct {
	// Codec encodes the body. Nil uses the default taxonomy registry.
	Codec *wire.Codec
	// Status overrides StatusOf.
	Status func(error) int
}

// Write encodes err and writes it with its status. Errors outside the
// taxonomy are written as unexpected errors so their text never leaves the
// process.
func (w Writer) Write(rw http.ResponseWriter, err error, meta Meta) {
	if err == nil {
		return
	}

	status := StatusOf
	if w.Status != nil {
		status = w.Status
	}
	code := status(err)

	codec := w.Codec
	if codec == nil {
		codec = wire.NewCodec(nil)
	}
	body := codec.EncodeValue(boundaryError(err))

	rw.Header().Set("Content-Type", "application/json")
	if meta.CorrelationID != "" {
		rw.Header().Set(HeaderCorrelationID, meta.CorrelationID)
	}
	if meta.RetryAfterSeconds > 0 {
		rw.Header().Set("Retry-After", strconv.Itoa(meta.RetryAfterSeconds))
	}
	rw.WriteHeader(code)
	_, _ = rw.Write(body)
}

// WriteError writes err with the default Writer.
func WriteError(rw http.ResponseWriter, err error) {
	Writer{}.Write(rw, err, Meta{})
}

// WriteJSON writes v as a JSON response body.
func WriteJSON(rw http.ResponseWriter, status int, v any) error {
	body, err := jsoncodec.Marshal(v)
	if err != nil {
		return err
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_, err = rw.Write(body)
	return err
}

// StatusOf maps err to an HTTP status by kind.
func StatusOf(err error) int {
	var (
		invalidRequest *errspkg.InvalidRequestError
		missing        *errspkg.MissingInteractorError
		rejected       *errspkg.RejectedByLimiterError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &invalidRequest):
		return http.StatusUnprocessableEntity
	case errors.As(err, &rejected):
		return http.StatusTooManyRequests
	case errors.As(err, &missing):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func boundaryError(err error) error {
	var ie errspkg.InteractionError
	if errors.As(err, &ie) {
		return ie
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errspkg.NewUnexpectedError(cancelledMessage, nil)
	}
	return errspkg.WrapUnexpected(nil)
}

// ReadError returns nil for a 2xx response. Otherwise it decodes the body into
// the error the server wrote, or an unexpected error when the body is not a
// wire payload. The body is consumed but not closed.
func ReadError(resp *http.Response, codec *wire.Codec) error {
	if resp == nil {
		return errspkg.NewUnexpectedError("no response", nil)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if codec == nil {
		codec = wire.NewCodec(nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return errspkg.WrapUnexpected(fmt.Errorf("read error response: %w", err))
	}
	return codec.Decode(body)
}

// DecodeResponse reads a typed result, or the error the server wrote. The
// body is consumed but not closed.
func DecodeResponse[T any](resp *http.Response, codec *wire.Codec) (T, error) {
	var out T
	if err := ReadError(resp, codec); err != nil {
		return out, err
	}
	if resp.StatusCode == http.StatusNoContent {
		return out, nil
	}
	if err := jsoncodec.Decode(resp.Body, &out); err != nil && !errors.Is(err, io.EOF) {
		return out, errspkg.WrapUnexpected(fmt.Errorf("decode response: %w", err))
	}
	return out, nil
}
