package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Aikhjarto/ping-process/internal/model"
	"github.com/Aikhjarto/ping-process/internal/pipeline"
	"github.com/Aikhjarto/ping-process/internal/tailer"
	"github.com/Aikhjarto/ping-process/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Follow growing ping capture files",
	Long: `Follow one or more raw capture files (or glob patterns) written by
"ping -D host | tee -a raw.log" and classify newly appended lines.
The tail position survives restarts via a small state file.

Examples:
  ping-process watch raw.log
  ping-process watch "/var/log/pings/**/*.log" --heartbeat-interval 60`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := watcher.New(args)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	watchedPaths := w.Paths()
	if len(watchedPaths) == 0 {
		return fmt.Errorf("no files matched the given patterns: %v", args)
	}

	fmt.Fprintf(os.Stderr, "ping-process watching %d file(s):\n", len(watchedPaths))
	for _, p := range watchedPaths {
		fmt.Fprintf(os.Stderr, "   %s\n", p)
	}

	ckptPath := filepath.Join(".", ".ping-process-state.json")
	ckpt, err := tailer.NewCheckpoint(ckptPath)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}

	t := tailer.New(w, ckpt)

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

	go w.Start(ctx)
	go t.Start(ctx)

	return pipeline.Consume(ctx, t.Lines(), proc)
}
