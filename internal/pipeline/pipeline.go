package pipeline

import (
	"bufio"
	"context"
	"io"

	"github.com/Aikhjarto/ping-process/internal/model"
)

// Processor consumes one raw line and may fail fatally. The classifier is
// the only implementation; the interface keeps the driver testable.
type Processor interface {
	Process(line string) error
}

// Run feeds lines from r to the processor, strictly in order, one at a time.
// It returns nil when the source closes, the processor's error when a line
// is fatally unprocessable, and stops between lines once ctx is cancelled.
func Run(ctx context.Context, r io.Reader, p Processor) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if err := p.Process(scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Consume drains raw lines from a channel (the tailer's output in watch
// mode) into the processor. Same ordering and error contract as Run.
func Consume(ctx context.Context, lines <-chan model.RawLine, p Processor) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-lines:
			if !ok {
				return nil
			}
			if err := p.Process(raw.Text); err != nil {
				return err
			}
		}
	}
}
