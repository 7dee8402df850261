package model

// EventKind classifies an output record produced by the classifier.
type EventKind string

const (
	KindAnomaly   EventKind = "anomaly"   // excessive rtt, missing rtt, or suffix annotation
	KindMissed    EventKind = "missed"    // sequence gap report
	KindHeartbeat EventKind = "heartbeat" // liveness message
	KindParseErr  EventKind = "parse_err" // unparseable timestamp
	KindStatus    EventKind = "status"    // on-demand status line
)

// Event is one output record. Text carries the fully rendered line;
// When holds the formatted probe timestamp separately for structured output.
type Event struct {
	Kind EventKind `json:"kind"`
	When string    `json:"when,omitempty"`
	Text string    `json:"text"`
}

// ProbeRecord is one parsed `ping -D` line. HasSeq/HasRTT distinguish
// absent fields from zero values (filtered/unreachable lines carry a
// sequence number but no round-trip time).
type ProbeRecord struct {
	Timestamp float64 // seconds since epoch, from the bracketed prefix
	Seq       int
	HasSeq    bool
	RTT       float64 // milliseconds
	HasRTT    bool
	HasSuffix bool // trailing annotation such as (DUP!)
	Raw       string
}

// RawLine is one unparsed line read from a source.
type RawLine struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}
