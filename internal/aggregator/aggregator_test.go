package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/Aikhjarto/ping-process/internal/model"
)

func TestEPSCalculation(t *testing.T) {
	ch := make(chan model.Event, 100)
	agg := New(ch, func() uint64 { return 42 }, func() int64 { return 0 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go agg.Start(ctx)

	// Send 10 events quickly.
	for i := 0; i < 10; i++ {
		ch <- model.Event{Kind: model.KindAnomaly, Text: "test"}
	}

	// Wait for processing.
	time.Sleep(200 * time.Millisecond)

	stats := agg.Snapshot()
	if stats.TotalEvents != 10 {
		t.Errorf("expected 10 total events, got %d", stats.TotalEvents)
	}
	if stats.EPS <= 0 {
		t.Errorf("expected positive EPS, got %f", stats.EPS)
	}
	if stats.LinesRead != 42 {
		t.Errorf("expected 42 lines read, got %d", stats.LinesRead)
	}

	cancel()
}

func TestEventKindCounts(t *testing.T) {
	ch := make(chan model.Event, 100)
	agg := New(ch, func() uint64 { return 0 }, func() int64 { return 7 })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go agg.Start(ctx)

	// Send events of different kinds.
	ch <- model.Event{Kind: model.KindAnomaly, Text: "a"}
	ch <- model.Event{Kind: model.KindAnomaly, Text: "b"}
	ch <- model.Event{Kind: model.KindMissed, Text: "c"}
	ch <- model.Event{Kind: model.KindHeartbeat, Text: "d"}
	ch <- model.Event{Kind: model.KindMissed, Text: "e"}

	time.Sleep(200 * time.Millisecond)

	stats := agg.Snapshot()
	if stats.EventCounts["anomaly"] != 2 {
		t.Errorf("expected 2 anomalies, got %d", stats.EventCounts["anomaly"])
	}
	if stats.EventCounts["missed"] != 2 {
		t.Errorf("expected 2 missed, got %d", stats.EventCounts["missed"])
	}
	if stats.EventCounts["heartbeat"] != 1 {
		t.Errorf("expected 1 heartbeat, got %d", stats.EventCounts["heartbeat"])
	}
	if stats.DroppedEvents != 7 {
		t.Errorf("expected 7 dropped, got %d", stats.DroppedEvents)
	}
	if stats.LastEvent != "e" {
		t.Errorf("expected last event 'e', got %q", stats.LastEvent)
	}

	cancel()
}
