package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Aikhjarto/ping-process/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// Sink accepts one output record. The classifier writes anomalies to a
// primary sink and heartbeat/status lines to a secondary one; everything
// downstream of the reducer is a Sink.
type Sink interface {
	Emit(ev model.Event) error
}

// ---------------------------------------------------------------------------
// Text Sink (optionally colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleAnomaly   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red bold
	styleMissed    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))            // yellow
	styleHeartbeat = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleParseErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("208")) // orange
	styleStatus    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // cyan
)

// TextSink writes rendered event lines to a writer, with severity-based
// colors when the destination is a terminal.
type TextSink struct {
	w     io.Writer
	color bool
}

// NewText returns a TextSink. Pass color=false when the writer is a pipe so
// the output stays grep-clean.
func NewText(w io.Writer, color bool) *TextSink {
	return &TextSink{w: w, color: color}
}

func (s *TextSink) Emit(ev model.Event) error {
	line := ev.Text
	if s.color {
		line = styleFor(ev.Kind).Render(line)
	}
	_, err := fmt.Fprintln(s.w, line)
	return err
}

func styleFor(kind model.EventKind) lipgloss.Style {
	switch kind {
	case model.KindAnomaly:
		return styleAnomaly
	case model.KindMissed:
		return styleMissed
	case model.KindHeartbeat:
		return styleHeartbeat
	case model.KindParseErr:
		return styleParseErr
	default:
		return styleStatus
	}
}

// ---------------------------------------------------------------------------
// JSON Sink (structured output for piping)
// ---------------------------------------------------------------------------

// JSONSink prints each event as a single JSON object per line. Emit is
// safe for concurrent use: the signal-triggered status report writes to the
// same encoder as the reducer, and json.Encoder is not concurrency-safe on
// its own.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSON(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

func (s *JSONSink) Emit(ev model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(ev)
}

// ---------------------------------------------------------------------------
// Fan-out and channel adapters
// ---------------------------------------------------------------------------

// MultiSink emits to several sinks in order and reports the first failure.
type MultiSink []Sink

func (m MultiSink) Emit(ev model.Event) error {
	var firstErr error
	for _, s := range m {
		if err := s.Emit(ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ChannelSink feeds events into a channel without blocking the reducer.
// Events are dropped when the channel is full.
type ChannelSink struct {
	ch      chan<- model.Event
	dropped int64
}

func NewChannel(ch chan<- model.Event) *ChannelSink {
	return &ChannelSink{ch: ch}
}

func (s *ChannelSink) Emit(ev model.Event) error {
	select {
	case s.ch <- ev:
	default:
		s.dropped++
		log.Printf("sink: dropped event for slow consumer (total dropped: %d)", s.dropped)
	}
	return nil
}
