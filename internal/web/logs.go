package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogBuffer keeps the most recent log lines in a ring so the dashboard
// can show them without shell access to the Pi. It implements io.Writer
// and is fed by tee-ing the process logger into it.
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	ring    []string
	next    int
	full    bool
	partial []byte
	dropped uint64
}

func NewLogBuffer(maxLines int) *LogBuffer {
	if maxLines <= 0 {
		maxLines = 2000
	}
	return &LogBuffer{max: maxLines, ring: make([]string, maxLines)}
}

// Write implements io.Writer. Input is split on newlines; a trailing
// fragment without one is held back until the next write completes it.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := append(b.partial, p...)
	b.partial = nil

	for {
		nl := bytes.IndexByte(data, '\n')
		if nl < 0 {
			break
		}
		b.appendLineLocked(string(data[:nl]))
		data = data[nl+1:]
	}
	if len(data) > 0 {
		b.partial = append([]byte(nil), data...)
	}

	return len(p), nil
}

func (b *LogBuffer) appendLineLocked(line string) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return
	}
	if b.full {
		b.dropped++
	}
	b.ring[b.next] = line
	b.next = (b.next + 1) % b.max
	if b.next == 0 {
		b.full = true
	}
}

// Snapshot returns up to tail of the newest lines, oldest first, along
// with how many older lines the ring has discarded.
func (b *LogBuffer) Snapshot(tail int) (lines []string, dropped uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tail <= 0 {
		tail = 200
	}

	var ordered []string
	if b.full {
		ordered = make([]string, 0, b.max)
		ordered = append(ordered, b.ring[b.next:]...)
		ordered = append(ordered, b.ring[:b.next]...)
	} else {
		ordered = b.ring[:b.next]
	}
	if tail > len(ordered) {
		tail = len(ordered)
	}
	lines = append([]string(nil), ordered[len(ordered)-tail:]...)
	return lines, b.dropped
}

type LogsResponse struct {
	NowUTC  string   `json:"now_utc"`
	Dropped uint64   `json:"dropped"`
	Lines   []string `json:"lines"`
}

func (b *LogBuffer) handleGet(w http.ResponseWriter, r *http.Request) {
	tail := 200
	if s := strings.TrimSpace(r.URL.Query().Get("tail")); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 || v > 5000 {
			http.Error(w, "tail must be an integer in [1,5000]", http.StatusBadRequest)
			return
		}
		tail = v
	}

	lines, dropped := b.Snapshot(tail)

	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if dropped > 0 {
			_, _ = fmt.Fprintf(w, "[dropped=%d]\n", dropped)
		}
		for _, line := range lines {
			_, _ = w.Write([]byte(line))
			_, _ = w.Write([]byte("\n"))
		}
		return
	}

	resp := LogsResponse{
		NowUTC:  time.Now().UTC().Format(time.RFC3339Nano),
		Dropped: dropped,
		Lines:   lines,
	}
	bts, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(bts)
	_, _ = w.Write([]byte("\n"))
}
