package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/drblury/interactor/internal/runtime"
	"github.com/drblury/interactor/internal/runtime/cancellation"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/interaction"
	"github.com/drblury/interactor/internal/runtime/jsoncodec"
	"github.com/drblury/interactor/internal/runtime/names"
	"github.com/drblury/interactor/internal/runtime/validation"
)

// ProxyRegistration describes an interactor whose handler runs in another
// process.
type ProxyRegistration[Req, Resp any] struct {
	Name   string
	Client *Client
	// RequestSchema is checked locally before the request leaves the process.
	RequestSchema  *validation.Schema[Req]
	ResponseSchema *validation.Schema[Resp]
}

// RegisterProxy registers an interactor for Req that forwards every dispatch
// through the client. The request is validated locally first; the remote
// server validates it again against its own rules.
func RegisterProxy[Req, Resp any](d *runtime.Dispatcher, reg ProxyRegistration[Req, Resp]) error {
	if d == nil {
		return errspkg.ErrDispatcherRequired
	}
	client := reg.Client
	if client == nil {
		return errspkg.ErrClientRequired
	}

	requestType := names.OfType[Req]()
	dependency := "remote:" + client.requestTopic

	var stats *runtime.InteractorStats
	handler := func(ctx context.Context, ic *interaction.Context[Req], signal cancellation.Signal) (Resp, error) {
		var zero Resp
		if err := ic.RequireValid(""); err != nil {
			return zero, err
		}

		raw, err := client.Call(ctx, requestType, ic.InvocationID(), ic.Request(), signal)
		if stats != nil {
			stats.SetDependencyStatus(dependency, dependencyStatus(err), errorDetails(err))
		}
		if err != nil {
			return zero, err
		}

		var resp Resp
		if len(raw) > 0 {
			if err := jsoncodec.Unmarshal(raw, &resp); err != nil {
				return zero, errspkg.WrapUnexpected(fmt.Errorf("remote: decode %s result: %w", requestType, err))
			}
		}
		return resp, nil
	}

	err := runtime.RegisterInteractor(d, runtime.InteractorRegistration[Req, Resp]{
		Name:           reg.Name,
		Handler:        handler,
		RequestSchema:  reg.RequestSchema,
		ResponseSchema: reg.ResponseSchema,
		Dependencies:   []string{dependency},
		Remote:         true,
	})
	if err != nil {
		return err
	}

	if registration, ok := d.Registry().Lookup(requestType); ok {
		stats = registration.Info().Stats
	}
	return nil
}

// dependencyStatus reports the bridge as degraded only when it failed to
// deliver a reply; errors raised by the remote interactor still mean the
// bridge works.
func dependencyStatus(err error) string {
	if err == nil || (errspkg.IsInteractionError(err) && !isTransportFailure(err)) {
		return runtime.DependencyStatusHealthy
	}
	return runtime.DependencyStatusDegraded
}

func isTransportFailure(err error) bool {
	var unexpected *errspkg.UnexpectedError
	return errors.As(err, &unexpected) && unexpected.Cause != nil
}

func errorDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
