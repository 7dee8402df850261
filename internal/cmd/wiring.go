package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/Aikhjarto/ping-process/internal/aggregator"
	"github.com/Aikhjarto/ping-process/internal/classifier"
	"github.com/Aikhjarto/ping-process/internal/hub"
	"github.com/Aikhjarto/ping-process/internal/model"
	"github.com/Aikhjarto/ping-process/internal/server"
	"github.com/Aikhjarto/ping-process/internal/sink"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// newClassifier assembles the sinks and builds the reducer from the
// effective configuration. When events is non-nil, every emitted event is
// additionally tapped into it for the dashboard hub.
func newClassifier(events chan<- model.Event) (*classifier.Classifier, error) {
	cfg := classifier.Config{
		MaxRTT:            viper.GetFloat64("max-time-ms"),
		TimeFormat:        viper.GetString("fmt"),
		HeartbeatInterval: viper.GetFloat64("heartbeat-interval"),
		AllowedSeqGap:     viper.GetInt("allowed-seq-diff"),
	}

	wrap := func(s sink.Sink) sink.Sink { return s }
	if events != nil {
		tap := sink.NewChannel(events)
		wrap = func(s sink.Sink) sink.Sink { return sink.MultiSink{s, tap} }
	}

	primary := wrap(consoleSink(os.Stdout))
	status := wrap(consoleSink(os.Stderr))
	heartbeat := status
	if viper.GetBool("heartbeat-stdout") {
		heartbeat = primary
	}

	return classifier.New(cfg, primary, heartbeat, status)
}

// consoleSink picks the renderer for a console stream: JSON when requested,
// colorized text on terminals, plain text on pipes.
func consoleSink(f *os.File) sink.Sink {
	if outputFmt == "json" {
		return sink.NewJSON(f)
	}
	return sink.NewText(f, term.IsTerminal(int(f.Fd())))
}

// countingProcessor wraps the classifier and counts processed lines for the
// aggregator.
type countingProcessor struct {
	next *classifier.Classifier
	n    atomic.Uint64
}

func (c *countingProcessor) Process(line string) error {
	c.n.Add(1)
	return c.next.Process(line)
}

func (c *countingProcessor) count() uint64 {
	return c.n.Load()
}

// watchSignals cancels the context on SIGINT/SIGTERM and answers SIGUSR1
// with a status report. The classifier reference is threaded explicitly;
// there is no package-level state.
func watchSignals(ctx context.Context, cancel context.CancelFunc, cls *classifier.Classifier) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				if sig == syscall.SIGUSR1 {
					cls.ReportStatus()
					continue
				}
				fmt.Fprintln(os.Stderr, "ping-process shutting down...")
				cancel()
				return
			}
		}
	}()
}

// startDashboard wires the hub, aggregator and web server around the event
// tap and runs them for the lifetime of the context.
func startDashboard(ctx context.Context, events <-chan model.Event, linesFn func() uint64) {
	h := hub.New(events)
	agg := aggregator.New(h.Subscribe(), linesFn, h.Dropped)

	go h.Start(ctx)
	go agg.Start(ctx)

	srv := server.New(h, agg, viper.GetString("port"))
	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("dashboard server stopped: %v", err)
		}
	}()
}
