package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

type TCPConfig struct {
	Name string
	// Addr is the host:port of a TCP sentence feed, e.g. a WiFi
	// multiplexer or a ser2net bridge.
	Addr string

	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	MaxLineBytes   int
}

// TCP reads newline-delimited sentences from a TCP endpoint and
// reconnects with a fixed delay whenever the peer goes away.
type TCP struct {
	cfg    TCPConfig
	onLine OnLine

	started atomic.Bool
	closed  atomic.Bool

	health

	cancel context.CancelFunc
	done   chan struct{}
}

func NewTCP(cfg TCPConfig, onLine OnLine) (*TCP, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("tcp source name is required")
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("tcp source addr is required")
	}
	if onLine == nil {
		return nil, fmt.Errorf("tcp source line handler is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 4096
	}

	t := &TCP{cfg: cfg, onLine: onLine, done: make(chan struct{})}
	t.state = "stopped"
	return t, nil
}

func (t *TCP) Name() string { return t.cfg.Name }

func (t *TCP) Start(ctx context.Context) error {
	if t.closed.Load() {
		return fmt.Errorf("tcp source is closed")
	}
	if t.started.Swap(true) {
		return fmt.Errorf("tcp source already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.setState("connecting", "")

	go func() {
		defer close(t.done)
		t.runLoop(runCtx)
	}()
	return nil
}

func (t *TCP) Close() {
	if t.closed.Swap(true) {
		return
	}
	if t.cancel != nil {
		t.cancel()
	}
	<-t.done
}

func (t *TCP) Snapshot(nowUTC time.Time) Snapshot {
	out := Snapshot{Name: t.cfg.Name, Type: "tcp", Endpoint: t.cfg.Addr}
	t.fill(&out)
	return out
}

func (t *TCP) runLoop(ctx context.Context) {
	dialer := &net.Dialer{Timeout: t.cfg.DialTimeout}

	for {
		select {
		case <-ctx.Done():
			t.setState("stopped", "")
			return
		default:
		}

		t.setState("connecting", "")
		conn, err := dialer.DialContext(ctx, "tcp", t.cfg.Addr)
		if err != nil {
			t.setState("error", err.Error())
			if !sleepCtx(ctx, t.cfg.ReconnectDelay) {
				t.setState("stopped", "")
				return
			}
			continue
		}

		t.setState("connected", "")
		t.readConn(ctx, conn)

		if ctx.Err() != nil {
			t.setState("stopped", "")
			return
		}
		if !sleepCtx(ctx, t.cfg.ReconnectDelay) {
			t.setState("stopped", "")
			return
		}
	}
}

func (t *TCP) readConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	// Unblock the blocking read when the context goes away.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				t.setState("disconnected", "")
			} else {
				t.setState("disconnected", err.Error())
			}
			return
		}
		if len(line) > t.cfg.MaxLineBytes {
			t.setState("error", fmt.Sprintf("line too large (%d bytes)", len(line)))
			continue
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		t.onLine(string(line))
		t.sawLine(time.Now().UTC())
	}
}
