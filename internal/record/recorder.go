// Package record appends raw sentences to a plain-text log. The output
// replays directly through the file source: one sentence per line, with
// '#' header lines marking each recording session.
package record

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"time"
)

const flushInterval = time.Second

// Recorder is safe for use from multiple source goroutines. Writes are
// buffered and flushed at most once per second, so a power cut loses at
// most the last second of traffic.
type Recorder struct {
	path string

	mu        sync.Mutex
	f         *os.File
	w         *bufio.Writer
	lines     uint64
	lastFlush time.Time
	closed    bool
}

type Snapshot struct {
	Path  string `json:"path"`
	Lines uint64 `json:"lines"`
}

// Open appends to path, creating it if needed, and writes a session
// header so replays can tell recordings apart.
func Open(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 64*1024)
	if _, err := fmt.Fprintf(w, "# smart0183d %s\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Recorder{path: path, f: f, w: w, lastFlush: time.Now()}, nil
}

func (r *Recorder) WriteLine(line string) error {
	if line == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder is closed")
	}

	if _, err := r.w.WriteString(line); err != nil {
		return err
	}
	if err := r.w.WriteByte('\n'); err != nil {
		return err
	}
	r.lines++

	if now := time.Now(); now.Sub(r.lastFlush) >= flushInterval {
		r.lastFlush = now
		return r.w.Flush()
	}
	return nil
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{Path: r.path, Lines: r.lines}
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		return err
	}
	return r.f.Close()
}
