package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/Aikhjarto/ping-process/internal/model"
	"github.com/Aikhjarto/ping-process/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// ErrInteractiveInput is returned when stdin is a terminal instead of a pipe.
var ErrInteractiveInput = errors.New("stdin is a terminal; this command reads from a pipe, e.g. `ping -D x.x.x.x | ping-process pipe`")

var pipeCmd = &cobra.Command{
	Use:   "pipe",
	Short: "Filter ping -D output arriving on stdin",
	Long: `Read "ping -D" output from stdin and forward only anomalous lines to
stdout, each prefixed with a human readable timestamp.

Examples:
  ping -D 8.8.8.8 | ping-process pipe
  ping -D 8.8.8.8 | tee -a raw.log | ping-process pipe --heartbeat-interval 60
  ping -D 8.8.8.8 | ping-process pipe --serve --port 8632`,
	Args: cobra.NoArgs,
	RunE: runPipe,
}

func init() {
	rootCmd.AddCommand(pipeCmd)
}

func runPipe(cmd *cobra.Command, args []string) error {
	// Refuse to sit on an interactive terminal before reading anything.
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return ErrInteractiveInput
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events chan model.Event
	if viper.GetBool("serve") {
		events = make(chan model.Event, 256)
	}

	cls, err := newClassifier(events)
	if err != nil {
		return err
	}

	proc := &countingProcessor{next: cls}
	if events != nil {
		startDashboard(ctx, events, proc.count)
	}

	watchSignals(ctx, cancel, cls)

	return pipeline.Run(ctx, os.Stdin, proc)
}
