package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"
)

type FileConfig struct {
	Name string
	Path string
	// Interval is the pacing delay between replayed lines.
	Interval time.Duration
	// Loop restarts the file from the top after the last line.
	Loop bool
}

// File replays a recorded line log, pacing lines at a fixed interval.
// Blank lines and '#' comment lines (recorder headers) are skipped, so a
// recorder output file replays cleanly.
type File struct {
	cfg    FileConfig
	onLine OnLine

	started atomic.Bool
	closed  atomic.Bool

	health

	cancel context.CancelFunc
	done   chan struct{}
}

func NewFile(cfg FileConfig, onLine OnLine) (*File, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("file source name is required")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("file source path is required")
	}
	if onLine == nil {
		return nil, fmt.Errorf("file source line handler is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}

	f := &File{
		cfg:    cfg,
		onLine: onLine,
		done:   make(chan struct{}),
	}
	f.state = "stopped"
	return f, nil
}

func (f *File) Name() string { return f.cfg.Name }

func (f *File) Start(ctx context.Context) error {
	if f.closed.Load() {
		return fmt.Errorf("file source is closed")
	}
	if f.started.Swap(true) {
		return fmt.Errorf("file source already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	go func() {
		defer close(f.done)
		f.run(runCtx)
	}()
	return nil
}

func (f *File) Close() {
	if f.closed.Swap(true) {
		return
	}
	if f.cancel != nil {
		f.cancel()
	}
	<-f.done
}

func (f *File) Snapshot(nowUTC time.Time) Snapshot {
	out := Snapshot{
		Name:     f.cfg.Name,
		Type:     "file",
		Endpoint: f.cfg.Path,
	}
	f.fill(&out)
	return out
}

func (f *File) run(ctx context.Context) {
	for {
		err := f.playOnce(ctx)
		if ctx.Err() != nil {
			f.setState("stopped", "")
			return
		}
		if err != nil {
			f.setState("error", err.Error())
			return
		}
		if !f.cfg.Loop {
			f.setState("finished", "")
			return
		}
	}
}

func (f *File) playOnce(ctx context.Context) error {
	file, err := os.Open(f.cfg.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	f.setState("playing", "")

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 256), 4096)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f.onLine(line)
		f.sawLine(time.Now().UTC())

		if !sleepCtx(ctx, f.cfg.Interval) {
			return nil
		}
	}
	return scanner.Err()
}
