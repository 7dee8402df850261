package sink

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Aikhjarto/ping-process/internal/model"
)

func TestTextSinkPlain(t *testing.T) {
	var buf bytes.Buffer
	s := NewText(&buf, false)

	ev := model.Event{
		Kind: model.KindAnomaly,
		When: "2020-08-11 19:20:38",
		Text: "2020-08-11 19:20:38 [1597166438.798339] 64 bytes from 8.8.8.8: icmp_seq=1 ttl=118 time=750.0 ms",
	}
	if err := s.Emit(ev); err != nil {
		t.Fatal(err)
	}

	want := ev.Text + "\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSON(&buf)

	ev := model.Event{
		Kind: model.KindMissed,
		When: "2020-08-11 19:20:38",
		Text: "2020-08-11 19:20:38 Missed icmp_seq=10:15 (5 packets)",
	}
	if err := s.Emit(ev); err != nil {
		t.Fatal(err)
	}

	var got model.Event
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON output: %v\nraw: %s", err, buf.String())
	}
	if got.Kind != model.KindMissed {
		t.Errorf("expected kind missed, got %s", got.Kind)
	}
	if got.Text != ev.Text {
		t.Errorf("expected %q, got %q", ev.Text, got.Text)
	}
}

func TestJSONSinkConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSON(&buf)

	const writers, perWriter = 8, 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = s.Emit(model.Event{
					Kind: model.KindStatus,
					Text: fmt.Sprintf("writer %d event %d", w, i),
				})
			}
		}(w)
	}
	wg.Wait()

	// Every emitted line must still be a complete JSON object.
	dec := json.NewDecoder(&buf)
	var count int
	for dec.More() {
		var ev model.Event
		if err := dec.Decode(&ev); err != nil {
			t.Fatalf("interleaved output at object %d: %v", count, err)
		}
		count++
	}
	if count != writers*perWriter {
		t.Errorf("expected %d objects, got %d", writers*perWriter, count)
	}
}

type failingSink struct{ err error }

func (s failingSink) Emit(model.Event) error { return s.err }

func TestMultiSinkFanOut(t *testing.T) {
	var a, b bytes.Buffer
	m := MultiSink{NewText(&a, false), NewText(&b, false)}

	if err := m.Emit(model.Event{Kind: model.KindHeartbeat, Text: "hb"}); err != nil {
		t.Fatal(err)
	}
	if a.String() != "hb\n" || b.String() != "hb\n" {
		t.Errorf("expected fan-out to both sinks, got %q and %q", a.String(), b.String())
	}
}

func TestMultiSinkReportsFirstErrorButEmitsToAll(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	m := MultiSink{failingSink{boom}, NewText(&buf, false)}

	err := m.Emit(model.Event{Kind: model.KindStatus, Text: "still here"})
	if !errors.Is(err, boom) {
		t.Errorf("expected first error reported, got %v", err)
	}
	if buf.String() != "still here\n" {
		t.Errorf("later sinks must still receive the event, got %q", buf.String())
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	ch := make(chan model.Event, 1)
	s := NewChannel(ch)

	if err := s.Emit(model.Event{Text: "one"}); err != nil {
		t.Fatal(err)
	}
	// Channel is full; this must not block.
	if err := s.Emit(model.Event{Text: "two"}); err != nil {
		t.Fatal(err)
	}

	got := <-ch
	if got.Text != "one" {
		t.Errorf("expected first event delivered, got %q", got.Text)
	}
	select {
	case ev := <-ch:
		t.Errorf("expected second event dropped, got %q", ev.Text)
	default:
	}
}
