// Package metrics provides observability for futurize controllers.
package metrics

import (
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/caihong2050-art/futurize/futurize"
)

const maxDurations = 10000

// Collector collects and exposes metrics for controllers.
type Collector struct {
	mu sync.RWMutex

	// Counters
	tasksCreated   atomic.Int64
	tasksStarted   atomic.Int64
	tasksCompleted atomic.Int64
	tasksFailed    atomic.Int64
	tasksCanceled  atomic.Int64
	tasksDetached  atomic.Int64
	cancelRequests atomic.Int64
	progressPolls  atomic.Int64

	// Gauges
	tasksActive atomic.Int64

	durations []time.Duration
	byKind    map[int]*kindMetrics
}

type kindMetrics struct {
	started   int64
	completed int64
	failed    int64
	canceled  int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		durations: make([]time.Duration, 0, 64),
		byKind:    make(map[int]*kindMetrics),
	}
}

// AttachToEventBus subscribes to controller events for automatic metrics collection.
func (c *Collector) AttachToEventBus(eb *futurize.EventBus) {
	eb.SubscribeAll(c.handleEvent)
}

func (c *Collector) handleEvent(e futurize.Event) {
	switch e.Type {
	case futurize.EventCreated:
		c.tasksCreated.Add(1)

	case futurize.EventStarted:
		c.tasksStarted.Add(1)
		c.tasksActive.Add(1)
		c.recordKind(e.TaskID, func(km *kindMetrics) { km.started++ })

	case futurize.EventProgress:
		c.progressPolls.Add(1)

	case futurize.EventCompleted:
		c.tasksCompleted.Add(1)
		c.tasksActive.Add(-1)
		c.recordKind(e.TaskID, func(km *kindMetrics) { km.completed++ })
		c.recordOutcome(e.Data)

	case futurize.EventFailed:
		c.tasksFailed.Add(1)
		c.tasksActive.Add(-1)
		c.recordKind(e.TaskID, func(km *kindMetrics) { km.failed++ })
		c.recordOutcome(e.Data)

	case futurize.EventCanceled:
		c.tasksCanceled.Add(1)
		c.tasksActive.Add(-1)
		c.recordKind(e.TaskID, func(km *kindMetrics) { km.canceled++ })
		c.recordOutcome(e.Data)

	case futurize.EventCancelRequested:
		c.cancelRequests.Add(1)

	case futurize.EventDetached:
		c.tasksDetached.Add(1)
		c.tasksActive.Add(-1)
	}
}

func (c *Collector) recordOutcome(data any) {
	if out, ok := data.(futurize.OutcomeData); ok {
		c.RecordDuration(out.Elapsed)
	}
}

func (c *Collector) recordKind(id int, fn func(*kindMetrics)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	km, ok := c.byKind[id]
	if !ok {
		km = &kindMetrics{}
		c.byKind[id] = km
	}
	fn(km)
}

// RecordDuration records the time from dispatch to delivered outcome.
func (c *Collector) RecordDuration(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.durations) >= maxDurations {
		c.durations = c.durations[1:]
	}
	c.durations = append(c.durations, d)
}

// Snapshot returns a snapshot of current metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		TasksCreated:   c.tasksCreated.Load(),
		TasksStarted:   c.tasksStarted.Load(),
		TasksCompleted: c.tasksCompleted.Load(),
		TasksFailed:    c.tasksFailed.Load(),
		TasksCanceled:  c.tasksCanceled.Load(),
		TasksDetached:  c.tasksDetached.Load(),
		CancelRequests: c.cancelRequests.Load(),
		ProgressPolls:  c.progressPolls.Load(),
		TasksActive:    c.tasksActive.Load(),
		Timestamp:      time.Now(),
	}

	if len(c.durations) > 0 {
		sorted := slices.Clone(c.durations)
		slices.Sort(sorted)
		s.DurationP50 = percentile(sorted, 0.50)
		s.DurationP90 = percentile(sorted, 0.90)
		s.DurationP99 = percentile(sorted, 0.99)
	}

	s.ByKind = make(map[string]KindSnapshot, len(c.byKind))
	for id, km := range c.byKind {
		s.ByKind[strconv.Itoa(id)] = KindSnapshot{
			Started:   km.started,
			Completed: km.completed,
			Failed:    km.failed,
			Canceled:  km.canceled,
		}
	}

	return s
}

// percentile picks the p-th percentile of an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	TasksCreated   int64 `json:"tasks_created"`
	TasksStarted   int64 `json:"tasks_started"`
	TasksCompleted int64 `json:"tasks_completed"`
	TasksFailed    int64 `json:"tasks_failed"`
	TasksCanceled  int64 `json:"tasks_canceled"`
	TasksDetached  int64 `json:"tasks_detached"`
	CancelRequests int64 `json:"cancel_requests"`
	ProgressPolls  int64 `json:"progress_polls"`
	TasksActive    int64 `json:"tasks_active"`

	DurationP50 time.Duration `json:"duration_p50"`
	DurationP90 time.Duration `json:"duration_p90"`
	DurationP99 time.Duration `json:"duration_p99"`

	ByKind    map[string]KindSnapshot `json:"by_kind,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// KindSnapshot contains metrics for one task kind tag.
type KindSnapshot struct {
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Canceled  int64 `json:"canceled"`
}

// SuccessRate is completed over completed plus failed. Canceled tasks are
// left out: they ended because someone asked them to.
func (s Snapshot) SuccessRate() float64 {
	total := s.TasksCompleted + s.TasksFailed
	if total == 0 {
		return 0
	}
	return float64(s.TasksCompleted) / float64(total)
}

// Reset clears all metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tasksCreated.Store(0)
	c.tasksStarted.Store(0)
	c.tasksCompleted.Store(0)
	c.tasksFailed.Store(0)
	c.tasksCanceled.Store(0)
	c.tasksDetached.Store(0)
	c.cancelRequests.Store(0)
	c.progressPolls.Store(0)
	c.tasksActive.Store(0)
	c.durations = c.durations[:0]
	c.byKind = make(map[int]*kindMetrics)
}

// Exporter defines an interface for metrics export.
type Exporter interface {
	Export(Snapshot) error
}

// LogExporter writes snapshots as structured log records.
type LogExporter struct {
	Logger *slog.Logger
}

// Export implements Exporter.
func (e *LogExporter) Export(s Snapshot) error {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("task metrics",
		"created", s.TasksCreated,
		"started", s.TasksStarted,
		"completed", s.TasksCompleted,
		"failed", s.TasksFailed,
		"canceled", s.TasksCanceled,
		"detached", s.TasksDetached,
		"cancel_requests", s.CancelRequests,
		"active", s.TasksActive,
		"p50", s.DurationP50,
		"p90", s.DurationP90,
		"p99", s.DurationP99,
		"success_rate", s.SuccessRate(),
	)
	return nil
}
