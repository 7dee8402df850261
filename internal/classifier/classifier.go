package classifier

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Aikhjarto/ping-process/internal/model"
	"github.com/Aikhjarto/ping-process/internal/sink"
	"github.com/lestrrat-go/strftime"
)

// ErrNoTimestampPrefix reports a stream produced by plain `ping` instead of
// `ping -D`. Every line of such a stream is ambiguous, so processing cannot
// continue.
var ErrNoTimestampPrefix = errors.New("got 8 columns; maybe you missed -D when calling \"ping -D x.x.x.x\"")

const (
	// seqModulo is the wrap point of the icmp_seq counter.
	seqModulo = 65536

	// plainTokenCount is the field count of a `ping` reply without -D;
	// the timestamp prefix adds one more.
	plainTokenCount = 8

	// canonicalTokenCount is the field count of a normal `ping -D` reply:
	// [ts] 64 bytes from x.x.x.x: icmp_seq=1 ttl=118 time=14.2 ms
	canonicalTokenCount = 9

	seqPrefix = "icmp_seq="
	rttPrefix = "time="

	// DefaultTimeFormat renders output timestamps when no pattern is given.
	DefaultTimeFormat = "%Y-%m-%d %H:%M:%S"
)

// Config is the immutable tuning of a Classifier.
type Config struct {
	MaxRTT            float64 // milliseconds; round trips above this are anomalies
	TimeFormat        string  // strftime pattern for output timestamps
	HeartbeatInterval float64 // seconds; 0 disables heartbeats
	AllowedSeqGap     int     // tolerated icmp_seq jump before reporting a miss
}

// Classifier is a stateful reducer over the lines of a `ping -D` stream.
// Anomalous lines go to the primary sink, heartbeats to the heartbeat sink,
// and parse diagnostics plus on-demand status lines to the status sink.
//
// Process must be called from a single goroutine. ReportStatus may be called
// from a signal handler between Process calls; the status snapshot is
// guarded so a partial update is never observed.
type Classifier struct {
	cfg  Config
	tfmt *strftime.Strftime

	primary   sink.Sink
	heartbeat sink.Sink
	status    sink.Sink

	lastSeq   int     // -1 until the first parsed sequence number
	lastEvent float64 // unix seconds when output was last produced

	mu       sync.RWMutex
	lastLine string
	lastTime string

	now func() time.Time
}

// New creates a Classifier writing to the given sinks. The time format is
// validated here; an invalid strftime pattern is a configuration error.
func New(cfg Config, primary, heartbeat, status sink.Sink) (*Classifier, error) {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = DefaultTimeFormat
	}
	if cfg.AllowedSeqGap < 0 {
		return nil, fmt.Errorf("allowed sequence gap must not be negative, got %d", cfg.AllowedSeqGap)
	}
	tfmt, err := strftime.New(cfg.TimeFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid time format %q: %w", cfg.TimeFormat, err)
	}

	c := &Classifier{
		cfg:       cfg,
		tfmt:      tfmt,
		primary:   primary,
		heartbeat: heartbeat,
		status:    status,
		lastSeq:   -1,
		now:       time.Now,
	}
	c.lastEvent = unixSeconds(c.now())
	return c, nil
}

// Process consumes one line of `ping -D` output, updates the reducer state
// and emits zero or more events. Malformed lines are absorbed; the only
// error returned is the fatal ErrNoTimestampPrefix.
func (c *Classifier) Process(line string) error {
	raw := strings.TrimRight(line, "\r\n")

	c.mu.Lock()
	c.lastLine = raw
	c.mu.Unlock()

	tokens := strings.Split(raw, " ")
	if len(tokens) == plainTokenCount {
		return fmt.Errorf("%w (line %q)", ErrNoTimestampPrefix, raw)
	}
	if tokens[0] == "PING" {
		// banner line carries no data
		return nil
	}

	ts, ok := parseTimestamp(tokens[0])
	if !ok {
		ev := model.Event{Kind: model.KindParseErr, Text: "Unparseable timestamp: " + raw}
		c.emit(c.primary, ev)
		c.emit(c.status, ev)
		return nil
	}
	when := c.tfmt.FormatString(timeFromUnix(ts))

	c.mu.Lock()
	c.lastTime = when
	c.mu.Unlock()

	rec := parseRecord(tokens, raw)
	rec.Timestamp = ts

	if !rec.HasSeq {
		// No usable sequence number: the line itself is the anomaly.
		c.emit(c.primary, model.Event{Kind: model.KindAnomaly, When: when, Text: when + " " + raw})
		c.lastEvent = ts
	} else {
		// A reply without a time= field is a filtered/unreachable report
		// and counts as an anomaly just like an excessive round trip or a
		// trailing annotation such as (DUP!).
		if !rec.HasRTT || rec.RTT > c.cfg.MaxRTT || rec.HasSuffix {
			c.emit(c.primary, model.Event{Kind: model.KindAnomaly, When: when, Text: when + " " + raw})
			c.lastEvent = ts
		}

		if c.lastSeq >= 0 {
			gap := (rec.Seq - c.lastSeq + seqModulo) % seqModulo
			if gap > c.cfg.AllowedSeqGap {
				text := fmt.Sprintf("%s Missed icmp_seq=%d:%d (%d packets)", when, c.lastSeq, rec.Seq, gap)
				c.emit(c.primary, model.Event{Kind: model.KindMissed, When: when, Text: text})
				c.lastEvent = ts
			}
		}
	}

	if c.cfg.HeartbeatInterval > 0 && ts-c.lastEvent > c.cfg.HeartbeatInterval {
		text := fmt.Sprintf("No anomalies found in the last %g s. Last input was at %s",
			c.cfg.HeartbeatInterval, when)
		c.emit(c.heartbeat, model.Event{Kind: model.KindHeartbeat, When: when, Text: text})
		// Re-arm with wall-clock time so a stalled input stream cannot
		// flood heartbeats once it resumes.
		c.lastEvent = unixSeconds(c.now())
	}

	if rec.HasSeq {
		c.lastSeq = rec.Seq
	}
	return nil
}

// ReportStatus emits a one-line summary of the most recent input to the
// status sink. It never fails, is idempotent, and is safe to call from a
// signal handler between Process calls.
func (c *Classifier) ReportStatus() {
	c.mu.RLock()
	line, when := c.lastLine, c.lastTime
	c.mu.RUnlock()

	c.emit(c.status, model.Event{
		Kind: model.KindStatus,
		When: when,
		Text: fmt.Sprintf("Last line at %s: %q", when, line),
	})
}

func (c *Classifier) emit(s sink.Sink, ev model.Event) {
	if s == nil {
		return
	}
	if err := s.Emit(ev); err != nil {
		log.Printf("classifier: emit failed: %v", err)
	}
}

// parseTimestamp extracts the float seconds from a `[<float>]` or
// `[<float>]:` token.
func parseTimestamp(tok string) (float64, bool) {
	if len(tok) < 3 || tok[0] != '[' {
		return 0, false
	}
	s := tok[1:]
	switch {
	case strings.HasSuffix(s, "]:"):
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "]"):
		s = s[:len(s)-1]
	default:
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseRecord scans the tokens after the timestamp for the icmp_seq= and
// time= fields. Either may be absent; position is not assumed so filtered
// and unreachable shapes parse the same way as replies.
func parseRecord(tokens []string, raw string) model.ProbeRecord {
	rec := model.ProbeRecord{
		Raw:       raw,
		HasSuffix: len(tokens) > canonicalTokenCount,
	}
	for _, tok := range tokens[1:] {
		switch {
		case !rec.HasSeq && strings.HasPrefix(tok, seqPrefix):
			if n, err := strconv.Atoi(tok[len(seqPrefix):]); err == nil && n >= 0 {
				rec.Seq = n % seqModulo
				rec.HasSeq = true
			}
		case !rec.HasRTT && strings.HasPrefix(tok, rttPrefix):
			if f, err := strconv.ParseFloat(tok[len(rttPrefix):], 64); err == nil {
				rec.RTT = f
				rec.HasRTT = true
			}
		}
	}
	return rec
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
