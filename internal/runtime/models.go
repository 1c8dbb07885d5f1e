package runtime

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/drblury/interactor/internal/runtime/cancellation"
	errspkg "github.com/drblury/interactor/internal/runtime/errors"
	"github.com/drblury/interactor/internal/runtime/jsoncodec"
)

const (
	latencySampleSize    = 256
	throughputWindowSize = time.Minute
)

// InteractorStats aggregates the dispatches handled by one interactor. It is
// served as JSON by the web UI.
type InteractorStats struct {
	mu sync.Mutex

	Dispatched          uint64    `json:"dispatched"`
	Failed              uint64    `json:"failed"`
	TotalProcessingTime int64     `json:"total_processing_time_ns"`
	LastDispatchedAt    time.Time `json:"last_dispatched_at"`

	Latency      LatencyMetrics     `json:"latency"`
	Throughput   ThroughputMetrics  `json:"throughput"`
	Errors       ErrorBreakdown     `json:"errors"`
	Resource     ResourceUsage      `json:"resource"`
	Concurrency  ConcurrencyMetrics `json:"concurrency"`
	Dependencies []DependencyHealth `json:"dependencies"`

	latencyWindow    *latencyWindow
	throughputWindow *throughputWindow
	resourceSampler  *resourceTracker
	dependencyIndex  map[string]int
}

// InteractorInfo describes one registration.
type InteractorInfo struct {
	Name         string           `json:"name"`
	RequestType  string           `json:"request_type"`
	ResponseType string           `json:"response_type"`
	Remote       bool             `json:"remote"`
	Stats        *InteractorStats `json:"stats"`
}

type LatencyMetrics struct {
	AverageNs  int64 `json:"average_ns"`
	P50Ns      int64 `json:"p50_ns"`
	P95Ns      int64 `json:"p95_ns"`
	P99Ns      int64 `json:"p99_ns"`
	LastNs     int64 `json:"last_ns"`
	SampleSize int   `json:"sample_size"`
}

type ThroughputMetrics struct {
	CurrentRPS         float64 `json:"current_rps"`
	WindowSeconds      float64 `json:"window_seconds"`
	DispatchesInWindow uint64  `json:"dispatches_in_window"`
	TotalDispatches    uint64  `json:"total_dispatches"`
}

// ErrorBreakdown counts failures per ErrorCategory.
type ErrorBreakdown struct {
	Validation    uint64 `json:"validation"`
	Configuration uint64 `json:"configuration"`
	Policy        uint64 `json:"policy"`
	Cancelled     uint64 `json:"cancelled"`
	Unexpected    uint64 `json:"unexpected"`
	Other         uint64 `json:"other"`
	LastError     string `json:"last_error,omitempty"`
}

type ResourceUsage struct {
	CPUPercent  float64 `json:"cpu_percent"`
	MemoryBytes uint64  `json:"memory_bytes"`
	Goroutines  int     `json:"goroutines"`
}

type ConcurrencyMetrics struct {
	InFlight    uint64 `json:"in_flight"`
	MaxInFlight uint64 `json:"max_in_flight"`
}

// DependencyHealth reports the last observed state of something an
// interactor calls, such as another interactor or the remote bridge.
type DependencyHealth struct {
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	Details     string    `json:"details,omitempty"`
}

const (
	DependencyStatusUnknown  = "unknown"
	DependencyStatusHealthy  = "healthy"
	DependencyStatusDegraded = "degraded"
)

type ErrorCategory string

const (
	ErrorCategoryNone          ErrorCategory = "none"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryPolicy        ErrorCategory = "policy"
	ErrorCategoryCancelled     ErrorCategory = "cancelled"
	ErrorCategoryUnexpected    ErrorCategory = "unexpected"
	ErrorCategoryOther         ErrorCategory = "other"
)

// ErrorClassifier maps a classified dispatch error to a stats category.
type ErrorClassifier func(error) ErrorCategory

func newInteractorStats(dependencies []string, sampler *resourceTracker) *InteractorStats {
	stats := &InteractorStats{
		resourceSampler:  sampler,
		latencyWindow:    newLatencyWindow(latencySampleSize),
		throughputWindow: newThroughputWindow(throughputWindowSize),
		dependencyIndex:  make(map[string]int),
	}
	for _, dep := range dependencies {
		stats.addDependency(dep)
	}
	return stats
}

func (s *InteractorStats) addDependency(name string) {
	if _, ok := s.dependencyIndex[name]; ok || name == "" {
		return
	}
	s.Dependencies = append(s.Dependencies, DependencyHealth{
		Name:   name,
		Status: DependencyStatusUnknown,
	})
	s.dependencyIndex[name] = len(s.Dependencies) - 1
}

func (s *InteractorStats) onStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Concurrency.InFlight++
	if s.Concurrency.InFlight > s.Concurrency.MaxInFlight {
		s.Concurrency.MaxInFlight = s.Concurrency.InFlight
	}
}

func (s *InteractorStats) onFinish(duration time.Duration, err error, classifier ErrorClassifier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Concurrency.InFlight > 0 {
		s.Concurrency.InFlight--
	}

	now := time.Now()
	s.Dispatched++
	if err != nil {
		s.Failed++
	}
	s.TotalProcessingTime += int64(duration)
	s.LastDispatchedAt = now.UTC()

	if s.latencyWindow != nil {
		s.latencyWindow.Add(duration)
		snapshot := s.latencyWindow.Snapshot()
		snapshot.LastNs = int64(duration)
		snapshot.AverageNs = s.TotalProcessingTime / int64(s.Dispatched)
		s.Latency = snapshot
	}

	if s.throughputWindow != nil {
		snapshot := s.throughputWindow.AddAndSnapshot(now)
		s.Throughput.CurrentRPS = snapshot.CurrentRPS
		s.Throughput.WindowSeconds = snapshot.WindowSeconds
		s.Throughput.DispatchesInWindow = uint64(snapshot.Count)
	}
	s.Throughput.TotalDispatches = s.Dispatched

	if classifier == nil {
		classifier = defaultErrorClassifier
	}
	s.Errors.Record(classifier(err), err)

	if s.resourceSampler != nil {
		s.Resource = s.resourceSampler.Snapshot()
	}
}

// SetDependencyStatus records the health of a named dependency.
func (s *InteractorStats) SetDependencyStatus(name, status, details string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addDependency(name)
	idx := s.dependencyIndex[name]
	dep := s.Dependencies[idx]
	dep.Status = status
	dep.Details = details
	dep.LastChecked = time.Now().UTC()
	s.Dependencies[idx] = dep
}

// Snapshot returns a copy safe to read without holding the stats lock.
func (s *InteractorStats) Snapshot() *InteractorStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &InteractorStats{
		Dispatched:          s.Dispatched,
		Failed:              s.Failed,
		TotalProcessingTime: s.TotalProcessingTime,
		LastDispatchedAt:    s.LastDispatchedAt,
		Latency:             s.Latency,
		Throughput:          s.Throughput,
		Errors:              s.Errors,
		Resource:            s.Resource,
		Concurrency:         s.Concurrency,
		Dependencies:        append([]DependencyHealth(nil), s.Dependencies...),
	}
}

func (s *InteractorStats) MarshalJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type Alias InteractorStats
	return jsoncodec.Marshal((*Alias)(s))
}

func (e *ErrorBreakdown) Record(category ErrorCategory, err error) {
	switch category {
	case ErrorCategoryNone:
		if err == nil {
			return
		}
		e.Other++
	case ErrorCategoryValidation:
		e.Validation++
	case ErrorCategoryConfiguration:
		e.Configuration++
	case ErrorCategoryPolicy:
		e.Policy++
	case ErrorCategoryCancelled:
		e.Cancelled++
	case ErrorCategoryUnexpected:
		e.Unexpected++
	default:
		e.Other++
	}
	if err != nil {
		e.LastError = err.Error()
	}
}

type latencyWindow struct {
	samples []int64
	next    int
	filled  int
	last    int64
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = latencySampleSize
	}
	return &latencyWindow{samples: make([]int64, size)}
}

func (lw *latencyWindow) Add(d time.Duration) {
	if lw == nil || len(lw.samples) == 0 {
		return
	}
	lw.samples[lw.next] = int64(d)
	lw.last = int64(d)
	lw.next = (lw.next + 1) % len(lw.samples)
	if lw.filled < len(lw.samples) {
		lw.filled++
	}
}

func (lw *latencyWindow) Snapshot() LatencyMetrics {
	var m LatencyMetrics
	if lw == nil {
		return m
	}
	m.LastNs = lw.last
	if lw.filled == 0 {
		return m
	}
	samples := make([]int64, lw.filled)
	for i := range lw.filled {
		idx := lw.next - lw.filled + i
		if idx < 0 {
			idx += len(lw.samples)
		}
		samples[i] = lw.samples[idx]
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	m.SampleSize = lw.filled
	m.P50Ns = percentile(samples, 0.50)
	m.P95Ns = percentile(samples, 0.95)
	m.P99Ns = percentile(samples, 0.99)
	var sum int64
	for _, v := range samples {
		sum += v
	}
	m.AverageNs = sum / int64(len(samples))
	return m
}

func percentile(samples []int64, quantile float64) int64 {
	if len(samples) == 0 {
		return 0
	}
	if quantile <= 0 {
		return samples[0]
	}
	if quantile >= 1 {
		return samples[len(samples)-1]
	}
	pos := quantile * float64(len(samples)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return samples[lower]
	}
	frac := pos - float64(lower)
	return samples[lower] + int64(float64(samples[upper]-samples[lower])*frac)
}

type throughputWindow struct {
	horizon time.Duration
	samples []time.Time
}

type throughputSnapshot struct {
	Count         int
	WindowSeconds float64
	CurrentRPS    float64
}

func newThroughputWindow(horizon time.Duration) *throughputWindow {
	return &throughputWindow{
		horizon: horizon,
		samples: make([]time.Time, 0, 64),
	}
}

func (tw *throughputWindow) AddAndSnapshot(now time.Time) throughputSnapshot {
	if tw == nil {
		return throughputSnapshot{}
	}
	tw.samples = append(tw.samples, now)
	tw.cleanup(now)
	return tw.snapshot(now)
}

func (tw *throughputWindow) cleanup(now time.Time) {
	if len(tw.samples) == 0 {
		return
	}
	cutoff := now.Add(-tw.horizon)
	idx := 0
	for idx < len(tw.samples) && tw.samples[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		copy(tw.samples, tw.samples[idx:])
		tw.samples = tw.samples[:len(tw.samples)-idx]
	}
}

func (tw *throughputWindow) snapshot(now time.Time) throughputSnapshot {
	if len(tw.samples) == 0 {
		return throughputSnapshot{}
	}
	span := now.Sub(tw.samples[0])
	if span <= 0 {
		span = time.Nanosecond
	}
	count := len(tw.samples)
	return throughputSnapshot{
		Count:         count,
		WindowSeconds: span.Seconds(),
		CurrentRPS:    float64(count) / span.Seconds(),
	}
}

func defaultErrorClassifier(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}
	if cancellation.IsCancellation(err) {
		return ErrorCategoryCancelled
	}
	if _, ok := errspkg.AsValidationError(err); ok {
		return ErrorCategoryValidation
	}
	var missing *errspkg.MissingInteractorError
	if errors.As(err, &missing) {
		return ErrorCategoryConfiguration
	}
	var rejected *errspkg.RejectedByLimiterError
	if errors.As(err, &rejected) {
		return ErrorCategoryPolicy
	}
	var unexpected *errspkg.UnexpectedError
	if errors.As(err, &unexpected) {
		return ErrorCategoryUnexpected
	}
	return ErrorCategoryOther
}
