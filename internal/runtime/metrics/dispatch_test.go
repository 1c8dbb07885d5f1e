package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/ids"
)

func newRegistered(t *testing.T) *DispatchMetrics {
	t.Helper()
	m := NewDispatchMetrics(prometheus.NewRegistry())
	require.NoError(t, m.Register())
	return m
}

func TestDispatchMetrics_BeginRecordsOutcome(t *testing.T) {
	m := newRegistered(t)

	done := m.Begin("orders.Create")
	assert.Equal(t, int64(1), m.RequestType("orders.Create").InFlight)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inFlight.WithLabelValues("orders.Create")))

	done(OutcomeOK)
	done(OutcomeUnexpected) // second call is ignored

	metrics := m.RequestType("orders.Create")
	require.NotNil(t, metrics)
	assert.Equal(t, int64(0), metrics.InFlight)
	assert.Equal(t, uint64(1), metrics.Dispatched)
	assert.Equal(t, uint64(1), metrics.Succeeded)
	assert.Equal(t, uint64(0), metrics.Failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatchesTotal.WithLabelValues("orders.Create", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight.WithLabelValues("orders.Create")))
}

func TestDispatchMetrics_ObserveDispatchAveragesDuration(t *testing.T) {
	m := newRegistered(t)

	m.ObserveDispatch("orders.Create", OutcomeOK, 10*time.Millisecond)
	m.ObserveDispatch("orders.Create", OutcomeInvalidRequest, 30*time.Millisecond)

	metrics := m.RequestType("orders.Create")
	require.NotNil(t, metrics)
	assert.InDelta(t, 20.0, metrics.AvgDurationMS, 0.001)
	assert.Equal(t, uint64(1), metrics.Failed)
	assert.Equal(t, uint64(1), metrics.Outcomes[OutcomeInvalidRequest])
	assert.False(t, metrics.LastDispatchedAt.IsZero())
}

func TestDispatchMetrics_Counters(t *testing.T) {
	m := newRegistered(t)

	m.RecordRewrapped("orders.Create")
	m.RecordLimiterRejection("orders.Create")
	m.RecordLimiterRejection("orders.Create")
	m.RecordRemote("received", OutcomeOK)

	metrics := m.RequestType("orders.Create")
	assert.Equal(t, uint64(1), metrics.Rewrapped)
	assert.Equal(t, uint64(2), metrics.Rejected)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejectionsTotal.WithLabelValues("orders.Create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.remoteMessagesTotal.WithLabelValues("received", "ok")))
}

func TestDispatchMetrics_Snapshot(t *testing.T) {
	m := newRegistered(t)

	m.ObserveDispatch("orders.Create", OutcomeOK, time.Millisecond)
	m.ObserveDispatch("payments.Charge", OutcomeUnexpected, time.Millisecond)
	m.RecordRewrapped("payments.Charge")

	snapshot := m.Snapshot()
	assert.Equal(t, uint64(2), snapshot.TotalDispatched)
	assert.Equal(t, uint64(1), snapshot.TotalFailed)
	assert.Equal(t, uint64(1), snapshot.TotalRewrapped)
	assert.Len(t, snapshot.RequestTypes, 2)
	assert.False(t, snapshot.CollectedAt.IsZero())

	// snapshot is a copy
	snapshot.RequestTypes["orders.Create"].Outcomes[OutcomeOK] = 99
	assert.Equal(t, uint64(1), m.RequestType("orders.Create").Outcomes[OutcomeOK])
}

func TestDispatchMetrics_RequestType_NonExistent(t *testing.T) {
	m := NewDispatchMetrics(prometheus.NewRegistry())
	assert.Nil(t, m.RequestType("nonexistent"))
}

func TestDispatchMetrics_Reset(t *testing.T) {
	m := newRegistered(t)
	m.ObserveDispatch("orders.Create", OutcomeOK, time.Millisecond)
	m.Reset()
	assert.Empty(t, m.Snapshot().RequestTypes)
}

func TestDispatchMetrics_Register_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, NewDispatchMetrics(reg).Register())
	require.NoError(t, NewDispatchMetrics(reg).Register()) // collectors already registered
}

func TestDispatchMetrics_NilRegisterer(t *testing.T) {
	m := NewDispatchMetrics(nil)
	assert.NotNil(t, m)
	// Should use default registerer - don't actually register in test to avoid conflicts
}

func TestOutcomeOf(t *testing.T) {
	id := ids.NewInvocationID()
	cases := []struct {
		err  error
		want Outcome
	}{
		{nil, OutcomeOK},
		{context.Canceled, OutcomeCancelled},
		{context.DeadlineExceeded, OutcomeCancelled},
		{errspkg.NewInvalidRequestError("bad", id, nil), OutcomeInvalidRequest},
		{errspkg.NewInvalidResponseError("bad", id, nil), OutcomeInvalidResponse},
		{errspkg.NewMissingInteractorError("x.Y"), OutcomeMissingInteractor},
		{fmt.Errorf("wrapped: %w", errspkg.NewRejectedByLimiterError("x.Y", "k")), OutcomeRejected},
		{errspkg.WrapUnexpected(errors.New("db down")), OutcomeUnexpected},
		{errors.New("raw"), OutcomeUnexpected},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, OutcomeOf(tc.err), "%v", tc.err)
	}
}
