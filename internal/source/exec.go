package source

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type ExecConfig struct {
	Name string
	// Command is a child process whose stdout is the sentence stream,
	// e.g. an SDR AIS decoder.
	Command string
	Args    []string

	BackoffInitial  time.Duration
	BackoffMax      time.Duration
	StderrTailLines int
	MaxLineBytes    int
}

// Exec supervises a child process and consumes its stdout as the line
// stream. The child is restarted with exponential backoff; a run that
// produced lines resets the backoff. Stderr is kept in a bounded tail for
// diagnostics.
type Exec struct {
	cfg    ExecConfig
	onLine OnLine

	started atomic.Bool
	closed  atomic.Bool
	pid     atomic.Int64

	health

	stderr *lineTail

	cancel context.CancelFunc
	done   chan struct{}
}

func NewExec(cfg ExecConfig, onLine OnLine) (*Exec, error) {
	cfg.Command = strings.TrimSpace(cfg.Command)
	if cfg.Name == "" {
		return nil, fmt.Errorf("exec source name is required")
	}
	if cfg.Command == "" {
		return nil, fmt.Errorf("exec source command is required")
	}
	if onLine == nil {
		return nil, fmt.Errorf("exec source line handler is required")
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 250 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 10 * time.Second
	}
	if cfg.StderrTailLines <= 0 {
		cfg.StderrTailLines = 50
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 4096
	}

	e := &Exec{
		cfg:    cfg,
		onLine: onLine,
		stderr: newLineTail(cfg.StderrTailLines),
		done:   make(chan struct{}),
	}
	e.state = "stopped"
	return e, nil
}

func (e *Exec) Name() string { return e.cfg.Name }

func (e *Exec) Start(ctx context.Context) error {
	if e.closed.Load() {
		return fmt.Errorf("exec source is closed")
	}
	if e.started.Swap(true) {
		return fmt.Errorf("exec source already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.setState("starting", "")

	go func() {
		defer close(e.done)
		e.runLoop(runCtx)
	}()
	return nil
}

func (e *Exec) Close() {
	if e.closed.Swap(true) {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	<-e.done
}

func (e *Exec) Snapshot(nowUTC time.Time) Snapshot {
	endpoint := e.cfg.Command
	if len(e.cfg.Args) > 0 {
		endpoint += " " + strings.Join(e.cfg.Args, " ")
	}
	out := Snapshot{
		Name:       e.cfg.Name,
		Type:       "exec",
		Endpoint:   endpoint,
		PID:        int(e.pid.Load()),
		StderrTail: e.stderr.snapshot(),
	}
	e.fill(&out)
	return out
}

func (e *Exec) runLoop(ctx context.Context) {
	backoff := e.cfg.BackoffInitial
	for {
		select {
		case <-ctx.Done():
			e.setState("stopped", "")
			return
		default:
		}

		sawLines, err := e.runOnce(ctx)
		if ctx.Err() != nil {
			e.setState("stopped", "")
			return
		}
		if err != nil {
			e.setState("exited", err.Error())
		} else {
			e.setState("exited", "")
		}
		if sawLines {
			backoff = e.cfg.BackoffInitial
		}

		if !sleepCtx(ctx, backoff) {
			e.setState("stopped", "")
			return
		}
		backoff *= 2
		if backoff > e.cfg.BackoffMax {
			backoff = e.cfg.BackoffMax
		}
		e.setState("restarting", "")
	}
}

func (e *Exec) runOnce(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, e.cfg.Command, e.cfg.Args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return false, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return false, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("start: %w", err)
	}
	if cmd.Process != nil {
		e.pid.Store(int64(cmd.Process.Pid))
	}
	e.setState("running", "")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderrPipe)
		scanner.Buffer(make([]byte, 0, 4096), 64*1024)
		for scanner.Scan() {
			e.stderr.add(scanner.Text())
		}
	}()

	sawLines := false
	scanner := bufio.NewScanner(stdoutPipe)
	scanner.Buffer(make([]byte, 0, 256), e.cfg.MaxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		e.onLine(line)
		e.sawLine(time.Now().UTC())
		sawLines = true
	}

	waitErr := cmd.Wait()
	wg.Wait()
	e.pid.Store(0)

	if waitErr == nil || ctx.Err() != nil {
		return sawLines, nil
	}
	return sawLines, waitErr
}

// lineTail keeps the last N lines of a child's stderr.
type lineTail struct {
	mu    sync.Mutex
	max   int
	next  int
	full  bool
	lines []string
}

func newLineTail(max int) *lineTail {
	if max <= 0 {
		max = 50
	}
	return &lineTail{max: max, lines: make([]string, max)}
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	t.lines[t.next] = line
	t.next = (t.next + 1) % t.max
	if t.next == 0 {
		t.full = true
	}
	t.mu.Unlock()
}

func (t *lineTail) snapshot() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.full {
		return append([]string(nil), t.lines[:t.next]...)
	}
	out := make([]string, 0, t.max)
	out = append(out, t.lines[t.next:]...)
	out = append(out, t.lines[:t.next]...)
	return out
}
