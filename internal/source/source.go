// Package source implements the line transports that feed the decode
// pipelines: serial ports, TCP endpoints, supervised child processes and
// recorded files.
package source

import (
	"context"
	"sync"
	"time"
)

// DefaultReconnectDelay is the pause between transport reconnect
// attempts.
const DefaultReconnectDelay = 5 * time.Second

// OnLine receives one trimmed line on the transport's read goroutine.
// It should be fast; slow work belongs elsewhere.
type OnLine func(line string)

// Source is the common shape of all line transports.
type Source interface {
	Name() string
	// Start launches the read loop and returns immediately; lines flow to
	// the OnLine callback given at construction.
	Start(ctx context.Context) error
	// Close stops the transport and waits for its goroutine to exit.
	Close()
	Snapshot(nowUTC time.Time) Snapshot
}

// Snapshot is the common wire form of a transport's health.
type Snapshot struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Endpoint    string   `json:"endpoint"`
	Connected   bool     `json:"connected"`
	State       string   `json:"state"`
	LastError   string   `json:"last_error,omitempty"`
	LastLineUTC string   `json:"last_line_utc,omitempty"`
	Lines       uint64   `json:"lines"`
	PID         int      `json:"pid,omitempty"`
	StderrTail  []string `json:"stderr_tail,omitempty"`
}

// health tracks the mutable state every transport shares.
type health struct {
	mu       sync.RWMutex
	state    string
	lastErr  string
	lastLine time.Time
	lines    uint64
}

func (h *health) setState(state, lastErr string) {
	h.mu.Lock()
	h.state = state
	if lastErr != "" {
		h.lastErr = lastErr
	} else {
		// Clear stale errors on healthy/neutral states so status output
		// doesn't look broken after a transient failure.
		switch state {
		case "connected", "connecting", "running", "playing", "stopped":
			h.lastErr = ""
		}
	}
	h.mu.Unlock()
}

func (h *health) sawLine(nowUTC time.Time) {
	h.mu.Lock()
	h.lastLine = nowUTC
	h.lines++
	h.mu.Unlock()
}

func (h *health) fill(out *Snapshot) {
	h.mu.RLock()
	out.State = h.state
	out.LastError = h.lastErr
	out.Lines = h.lines
	if !h.lastLine.IsZero() {
		out.LastLineUTC = h.lastLine.UTC().Format(time.RFC3339Nano)
	}
	h.mu.RUnlock()

	switch out.State {
	case "connected", "running", "playing":
		out.Connected = true
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
