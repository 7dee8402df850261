package tailer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Aikhjarto/ping-process/internal/watcher"
)

func TestTailNewLines(t *testing.T) {
	// Create a temp capture file with some pre-existing content.
	dir := t.TempDir()
	logPath := filepath.Join(dir, "raw.log")
	if err := os.WriteFile(logPath, []byte("PING 8.8.8.8 (8.8.8.8) 56(84) bytes of data.\n"), 0644); err != nil {
		t.Fatal(err)
	}

	// Set up watcher, checkpoint, and tailer.
	w, err := watcher.New([]string{logPath})
	if err != nil {
		t.Fatal(err)
	}

	ckptPath := filepath.Join(dir, ".ping-process-state.json")
	ckpt, err := NewCheckpoint(ckptPath)
	if err != nil {
		t.Fatal(err)
	}

	tail := New(w, ckpt)

	ctx, cancel := context.WithCancel(context.Background())

	go w.Start(ctx)
	go tail.Start(ctx)

	// Give the tailer a moment to initialize and seek to end.
	time.Sleep(300 * time.Millisecond)

	// Append a new line — this should be picked up.
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	line := "[1597166438.798339] 64 bytes from 8.8.8.8: icmp_seq=1 ttl=118 time=14.2 ms"
	_, _ = f.WriteString(line + "\n")
	f.Close()

	// Wait for the line.
	select {
	case raw := <-tail.Lines():
		if raw.Text != line {
			t.Errorf("expected %q, got %q", line, raw.Text)
		}
		if raw.Source != logPath {
			t.Errorf("expected source %q, got %q", logPath, raw.Source)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for appended line")
	}

	// Cancel and allow goroutines to stop before TempDir cleanup.
	cancel()
	time.Sleep(200 * time.Millisecond)
}

func TestPartialLineHeldUntilNewline(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "raw.log")
	if err := os.WriteFile(logPath, []byte{}, 0644); err != nil {
		t.Fatal(err)
	}

	w, err := watcher.New([]string{logPath})
	if err != nil {
		t.Fatal(err)
	}
	ckpt, err := NewCheckpoint(filepath.Join(dir, ".ping-process-state.json"))
	if err != nil {
		t.Fatal(err)
	}
	tail := New(w, ckpt)

	ctx, cancel := context.WithCancel(context.Background())

	go w.Start(ctx)
	go tail.Start(ctx)

	time.Sleep(300 * time.Millisecond)

	line := "[1597166438.798339] 64 bytes from 8.8.8.8: icmp_seq=1 ttl=118 time=14.2 ms"

	// Write the line in two chunks, the first without a newline.
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(line[:30])
	f.Close()

	time.Sleep(300 * time.Millisecond)

	// The unterminated fragment must be held back, not emitted.
	select {
	case raw := <-tail.Lines():
		t.Fatalf("fragment emitted as a line: %q", raw.Text)
	default:
	}

	f, err = os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(line[30:] + "\n")
	f.Close()

	// Now the whole line arrives intact.
	select {
	case raw := <-tail.Lines():
		if raw.Text != line {
			t.Errorf("expected intact line %q, got %q", line, raw.Text)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for completed line")
	}

	cancel()
	time.Sleep(200 * time.Millisecond)
}

func TestCheckpointSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ckpt.json")

	// Create and save checkpoint.
	c1, err := NewCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	c1.Set("/var/log/pings/raw.log", 42)
	c1.Set("/var/log/pings/dsl.log", 1024)
	if err := c1.Save(); err != nil {
		t.Fatal(err)
	}

	// Load checkpoint in a new instance.
	c2, err := NewCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}

	v1, ok := c2.Get("/var/log/pings/raw.log")
	if !ok || v1 != 42 {
		t.Errorf("expected 42, got %d (found=%v)", v1, ok)
	}

	v2, ok := c2.Get("/var/log/pings/dsl.log")
	if !ok || v2 != 1024 {
		t.Errorf("expected 1024, got %d (found=%v)", v2, ok)
	}

	_, ok = c2.Get("/nonexistent")
	if ok {
		t.Error("expected missing key to return false")
	}
}
