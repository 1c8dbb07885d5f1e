// Package metrics exposes Prometheus collectors for dispatches and keeps an
// in-memory per request type summary for the web UI.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "interactor"
	subsystem = "dispatch"
)

// DispatchMetrics tracks dispatch statistics.
type DispatchMetrics struct {
	mu sync.RWMutex

	// Per request type counts
	byType map[string]*RequestTypeMetrics

	// Prometheus collectors
	dispatchesTotal     *prometheus.CounterVec
	durationSeconds     *prometheus.HistogramVec
	inFlight            *prometheus.GaugeVec
	rewrappedTotal      *prometheus.CounterVec
	rejectionsTotal     *prometheus.CounterVec
	remoteMessagesTotal *prometheus.CounterVec

	registerer prometheus.Registerer
	registered bool
}

// RequestTypeMetrics holds counters for one request type.
type RequestTypeMetrics struct {
	Dispatched       uint64             `json:"dispatched"`
	Succeeded        uint64             `json:"succeeded"`
	Failed           uint64             `json:"failed"`
	Rewrapped        uint64             `json:"rewrapped"`
	Rejected         uint64             `json:"rejected"`
	InFlight         int64              `json:"in_flight"`
	Outcomes         map[Outcome]uint64 `json:"outcomes"`
	AvgDurationMS    float64            `json:"avg_duration_ms"`
	LastDispatchedAt time.Time          `json:"last_dispatched_at,omitempty"`
}

func (m *RequestTypeMetrics) clone() *RequestTypeMetrics {
	c := *m
	c.Outcomes = make(map[Outcome]uint64, len(m.Outcomes))
	for k, v := range m.Outcomes {
		c.Outcomes[k] = v
	}
	return &c
}

// Snapshot provides a point-in-time view of dispatch metrics.
type Snapshot struct {
	TotalDispatched uint64                         `json:"total_dispatched"`
	TotalFailed     uint64                         `json:"total_failed"`
	TotalRewrapped  uint64                         `json:"total_rewrapped"`
	RequestTypes    map[string]*RequestTypeMetrics `json:"request_types"`
	CollectedAt     time.Time                      `json:"collected_at"`
}

func counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewDispatchMetrics creates a collector set bound to registerer, or the
// Prometheus default registerer when nil.
func NewDispatchMetrics(registerer prometheus.Registerer) *DispatchMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &DispatchMetrics{
		byType:          make(map[string]*RequestTypeMetrics),
		registerer:      registerer,
		dispatchesTotal: counterVec("total", "Total number of dispatches by request type and outcome", "request_type", "outcome"),
		durationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "duration_seconds",
			Help:      "Time spent dispatching a request, validation included",
			Buckets:   prometheus.DefBuckets,
		}, []string{"request_type"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "in_flight",
			Help:      "Dispatches currently running",
		}, []string{"request_type"}),
		rewrappedTotal:      counterVec("rewrapped_total", "Foreign errors rewrapped as unexpected errors", "request_type"),
		rejectionsTotal:     counterVec("limiter_rejections_total", "Requests rejected by the limiter", "request_type"),
		remoteMessagesTotal: counterVec("remote_messages_total", "Messages handled by the remote bridge", "direction", "outcome"),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *DispatchMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.dispatchesTotal,
		m.durationSeconds,
		m.inFlight,
		m.rewrappedTotal,
		m.rejectionsTotal,
		m.remoteMessagesTotal,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// Begin marks a dispatch of requestType as in flight. The returned func
// records the outcome and must be called exactly once.
func (m *DispatchMetrics) Begin(requestType string) func(outcome Outcome) {
	start := time.Now()

	m.mu.Lock()
	metrics := m.getOrCreate(requestType)
	metrics.InFlight++
	m.mu.Unlock()
	m.inFlight.WithLabelValues(requestType).Inc()

	var once sync.Once
	return func(outcome Outcome) {
		once.Do(func() {
			m.inFlight.WithLabelValues(requestType).Dec()
			m.observe(requestType, outcome, time.Since(start), true)
		})
	}
}

// ObserveDispatch records a finished dispatch that was not started with Begin.
func (m *DispatchMetrics) ObserveDispatch(requestType string, outcome Outcome, took time.Duration) {
	m.observe(requestType, outcome, took, false)
}

func (m *DispatchMetrics) observe(requestType string, outcome Outcome, took time.Duration, began bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreate(requestType)
	if began && metrics.InFlight > 0 {
		metrics.InFlight--
	}
	metrics.Dispatched++
	if outcome == OutcomeOK {
		metrics.Succeeded++
	} else {
		metrics.Failed++
	}
	metrics.Outcomes[outcome]++
	n := float64(metrics.Dispatched)
	metrics.AvgDurationMS = (metrics.AvgDurationMS*(n-1) + float64(took.Microseconds())/1000) / n
	metrics.LastDispatchedAt = time.Now()

	m.dispatchesTotal.WithLabelValues(requestType, string(outcome)).Inc()
	m.durationSeconds.WithLabelValues(requestType).Observe(took.Seconds())
}

// RecordRewrapped counts a foreign error rewrapped as UnexpectedError.
func (m *DispatchMetrics) RecordRewrapped(requestType string) {
	m.mu.Lock()
	m.getOrCreate(requestType).Rewrapped++
	m.mu.Unlock()
	m.rewrappedTotal.WithLabelValues(requestType).Inc()
}

// RecordLimiterRejection counts a request refused by the limiter.
func (m *DispatchMetrics) RecordLimiterRejection(requestType string) {
	m.mu.Lock()
	m.getOrCreate(requestType).Rejected++
	m.mu.Unlock()
	m.rejectionsTotal.WithLabelValues(requestType).Inc()
}

// RecordRemote counts one remote bridge message. direction is "sent",
// "received" or "replied".
func (m *DispatchMetrics) RecordRemote(direction string, outcome Outcome) {
	m.remoteMessagesTotal.WithLabelValues(direction, string(outcome)).Inc()
}

// Snapshot returns a point-in-time copy of all per request type metrics.
func (m *DispatchMetrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		RequestTypes: make(map[string]*RequestTypeMetrics, len(m.byType)),
		CollectedAt:  time.Now(),
	}
	for requestType, metrics := range m.byType {
		snapshot.RequestTypes[requestType] = metrics.clone()
		snapshot.TotalDispatched += metrics.Dispatched
		snapshot.TotalFailed += metrics.Failed
		snapshot.TotalRewrapped += metrics.Rewrapped
	}
	return snapshot
}

// RequestType returns a copy of the metrics for one request type, or nil.
func (m *DispatchMetrics) RequestType(requestType string) *RequestTypeMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if metrics, ok := m.byType[requestType]; ok {
		return metrics.clone()
	}
	return nil
}

func (m *DispatchMetrics) getOrCreate(requestType string) *RequestTypeMetrics {
	if metrics, ok := m.byType[requestType]; ok {
		return metrics
	}
	metrics := &RequestTypeMetrics{Outcomes: make(map[Outcome]uint64)}
	m.byType[requestType] = metrics
	return metrics
}

// Reset resets all metrics (useful for testing).
func (m *DispatchMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byType = make(map[string]*RequestTypeMetrics)
	m.dispatchesTotal.Reset()
	m.durationSeconds.Reset()
	m.inFlight.Reset()
	m.rewrappedTotal.Reset()
	m.rejectionsTotal.Reset()
	m.remoteMessagesTotal.Reset()
}
