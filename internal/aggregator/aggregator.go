package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/Aikhjarto/ping-process/internal/model"
)

// Stats holds a point-in-time snapshot of aggregated metrics.
type Stats struct {
	Uptime        string           `json:"uptime"`
	LinesRead     uint64           `json:"lines_read"`
	TotalEvents   int64            `json:"total_events"`
	EPS           float64          `json:"eps"`
	EventCounts   map[string]int64 `json:"event_counts"`
	DroppedEvents int64            `json:"dropped_events"`
	LastEvent     string           `json:"last_event"`
}

// Aggregator subscribes to the Hub and computes time-windowed metrics over
// the classifier's output: anomalies, misses, heartbeats, parse errors.
type Aggregator struct {
	mu          sync.RWMutex
	startTime   time.Time
	totalEvents int64
	kindCounts  map[string]int64
	lastEvent   string
	window      []time.Time // timestamps for EPS calculation (last 5 seconds)
	lines       func() uint64
	dropped     func() int64
	events      <-chan model.Event
}

// New creates an Aggregator that reads from the given Hub subscriber channel.
// linesFn and droppedFn provide live values from the pipeline and Hub.
func New(events <-chan model.Event, linesFn func() uint64, droppedFn func() int64) *Aggregator {
	return &Aggregator{
		startTime:  time.Now(),
		kindCounts: make(map[string]int64),
		lines:      linesFn,
		dropped:    droppedFn,
		events:     events,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	counts := make(map[string]int64)
	for k, v := range a.kindCounts {
		counts[k] = v
	}

	// Calculate EPS from the sliding window.
	now := time.Now()
	cutoff := now.Add(-5 * time.Second)
	var recent int
	for _, t := range a.window {
		if t.After(cutoff) {
			recent++
		}
	}
	eps := float64(recent) / 5.0

	return Stats{
		Uptime:        time.Since(a.startTime).Truncate(time.Second).String(),
		LinesRead:     a.lines(),
		TotalEvents:   a.totalEvents,
		EPS:           eps,
		EventCounts:   counts,
		DroppedEvents: a.dropped(),
		LastEvent:     a.lastEvent,
	}
}

// Start begins consuming events and updating metrics. Blocks until context
// is cancelled or the subscription closes.
func (a *Aggregator) Start(ctx context.Context) {
	// Periodically prune the sliding window.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.events:
			if !ok {
				return
			}
			a.record(ev)
		case <-ticker.C:
			a.prune()
		}
	}
}

// record adds an event to the metrics.
func (a *Aggregator) record(ev model.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalEvents++
	a.kindCounts[string(ev.Kind)]++
	a.lastEvent = ev.Text
	a.window = append(a.window, time.Now())
}

// prune removes timestamps older than 5 seconds from the sliding window.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-5 * time.Second)
	i := 0
	for _, t := range a.window {
		if t.After(cutoff) {
			a.window[i] = t
			i++
		}
	}
	a.window = a.window[:i]
}
