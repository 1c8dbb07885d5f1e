package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/interactor/internal/runtime/cancellation"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/ids"
	"github.com/drblury/interactor/internal/runtime/interaction"
	"github.com/drblury/interactor/internal/runtime/jsoncodec"
)

func TestInteractorStatsCollectsExtendedMetrics(t *testing.T) {
	stats := newInteractorStats([]string{"users-db"}, newResourceTracker())

	stats.onStart()
	stats.onStart()
	stats.onFinish(5*time.Millisecond, nil, nil)
	stats.onFinish(7*time.Millisecond, errors.New("publish failed"), nil)

	snap := stats.Snapshot()
	assert.Equal(t, uint64(2), snap.Dispatched)
	assert.Equal(t, uint64(1), snap.Failed)
	assert.Equal(t, uint64(0), snap.Concurrency.InFlight)
	assert.Equal(t, uint64(2), snap.Concurrency.MaxInFlight)
	assert.Equal(t, uint64(1), snap.Errors.Other)
	assert.Equal(t, "publish failed", snap.Errors.LastError)
	assert.Equal(t, 2, snap.Latency.SampleSize)
	assert.Equal(t, int64(7*time.Millisecond), snap.Latency.LastNs)
	assert.Equal(t, int64(6*time.Millisecond), snap.Latency.AverageNs)
	assert.Equal(t, uint64(2), snap.Throughput.TotalDispatches)
	assert.Positive(t, snap.Resource.Goroutines)
	require.Len(t, snap.Dependencies, 1)
	assert.Equal(t, "users-db", snap.Dependencies[0].Name)
}

func TestInteractorStatsDependencyStatus(t *testing.T) {
	stats := newInteractorStats([]string{"users-db"}, nil)

	stats.SetDependencyStatus("users-db", DependencyStatusDegraded, "timeout")
	stats.SetDependencyStatus("remote", DependencyStatusHealthy, "")
	stats.SetDependencyStatus("", DependencyStatusHealthy, "")

	snap := stats.Snapshot()
	require.Len(t, snap.Dependencies, 2)
	assert.Equal(t, DependencyStatusDegraded, snap.Dependencies[0].Status)
	assert.Equal(t, "timeout", snap.Dependencies[0].Details)
	assert.False(t, snap.Dependencies[0].LastChecked.IsZero())
	assert.Equal(t, "remote", snap.Dependencies[1].Name)
}

func TestInteractorStatsMarshalJSON(t *testing.T) {
	stats := newInteractorStats(nil, nil)
	stats.onStart()
	stats.onFinish(time.Millisecond, nil, nil)

	body, err := jsoncodec.Marshal(stats)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, jsoncodec.Unmarshal(body, &decoded))
	assert.EqualValues(t, 1, decoded["dispatched"])
	assert.Contains(t, decoded, "latency")
	assert.NotContains(t, decoded, "mu")
}

func TestDispatchesUpdateRegistrationStats(t *testing.T) {
	d := newTestDispatcher(t, nil, DispatcherDependencies{})
	require.NoError(t, RegisterInteractor(d, InteractorRegistration[getUser, user]{
		Handler: func(ctx context.Context, ic *interaction.Context[getUser], _ cancellation.Signal) (user, error) {
			if ic.Request().ID == "" {
				return user{}, ic.InvalidRequest("ID missing")
			}
			return user{ID: ic.Request().ID}, nil
		},
	}))

	_, err := Send[getUser, user](context.Background(), d, getUser{ID: "1"})
	require.NoError(t, err)
	_, err = Send[getUser, user](context.Background(), d, getUser{})
	require.Error(t, err)

	snap := d.Registry().Registrations()[0].Stats.Snapshot()
	assert.Equal(t, uint64(2), snap.Dispatched)
	assert.Equal(t, uint64(1), snap.Failed)
	assert.Equal(t, uint64(1), snap.Errors.Validation)
}

func TestCustomErrorClassifier(t *testing.T) {
	d := newTestDispatcher(t, nil, DispatcherDependencies{
		ErrorClassifier: func(err error) ErrorCategory {
			if err == nil {
				return ErrorCategoryNone
			}
			return ErrorCategoryPolicy
		},
	})
	require.NoError(t, RegisterInteractor(d, InteractorRegistration[getUser, user]{
		Handler: func(context.Context, *interaction.Context[getUser], cancellation.Signal) (user, error) {
			return user{}, errors.New("x")
		},
	}))

	_, _ = Send[getUser, user](context.Background(), d, getUser{})

	snap := d.Registry().Registrations()[0].Stats.Snapshot()
	assert.Equal(t, uint64(1), snap.Errors.Policy)
}

func TestDefaultErrorClassifier(t *testing.T) {
	id := ids.NewInvocationID()
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{nil, ErrorCategoryNone},
		{context.Canceled, ErrorCategoryCancelled},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ErrorCategoryCancelled},
		{errspkg.NewInvalidRequestError("", id, nil), ErrorCategoryValidation},
		{errspkg.NewInvalidResponseError("", id, nil), ErrorCategoryValidation},
		{errspkg.NewMissingInteractorError("x"), ErrorCategoryConfiguration},
		{errspkg.NewRejectedByLimiterError("x", "k"), ErrorCategoryPolicy},
		{errspkg.WrapUnexpected(errors.New("x")), ErrorCategoryUnexpected},
		{errors.New("x"), ErrorCategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, defaultErrorClassifier(tt.err), "%v", tt.err)
	}
}

func TestErrorBreakdownRecord(t *testing.T) {
	var b ErrorBreakdown
	b.Record(ErrorCategoryNone, nil)
	assert.Equal(t, ErrorBreakdown{}, b)

	b.Record(ErrorCategoryNone, errors.New("odd"))
	b.Record(ErrorCategoryCancelled, context.Canceled)
	b.Record(ErrorCategory("custom"), errors.New("last"))

	assert.Equal(t, uint64(2), b.Other)
	assert.Equal(t, uint64(1), b.Cancelled)
	assert.Equal(t, "last", b.LastError)
}

func TestLatencyWindowWrapsAround(t *testing.T) {
	lw := newLatencyWindow(3)
	for i := 1; i <= 5; i++ {
		lw.Add(time.Duration(i) * time.Millisecond)
	}
	snap := lw.Snapshot()
	assert.Equal(t, 3, snap.SampleSize)
	assert.Equal(t, int64(4*time.Millisecond), snap.P50Ns)
	assert.Equal(t, int64(5*time.Millisecond), snap.LastNs)
	assert.Equal(t, int64(4*time.Millisecond), snap.AverageNs)
}

func TestPercentile(t *testing.T) {
	samples := []int64{10, 20, 30, 40}
	assert.Equal(t, int64(0), percentile(nil, 0.5))
	assert.Equal(t, int64(10), percentile(samples, 0))
	assert.Equal(t, int64(40), percentile(samples, 1))
	assert.Equal(t, int64(25), percentile(samples, 0.5))
}

func TestThroughputWindowDropsOldSamples(t *testing.T) {
	tw := newThroughputWindow(time.Second)
	start := time.Now()
	tw.AddAndSnapshot(start)
	tw.AddAndSnapshot(start.Add(500 * time.Millisecond))
	snap := tw.AddAndSnapshot(start.Add(1500 * time.Millisecond))

	assert.Equal(t, 2, snap.Count)
	assert.InDelta(t, 1.0, snap.WindowSeconds, 0.001)
}
