package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type SerialConfig struct {
	Name string
	// Device is the serial device path. Empty auto-detects the first
	// /dev/ttyUSB* or /dev/ttyACM* present.
	Device string
	// Baud defaults to 4800, the NMEA-0183 standard rate.
	Baud int

	ReconnectDelay time.Duration
}

// Serial reads sentences from a serial port in raw 8N1 mode. The port is
// reopened with a fixed delay after open or read failures, so unplugged
// USB adapters recover on their own.
type Serial struct {
	cfg    SerialConfig
	onLine OnLine

	started atomic.Bool
	closed  atomic.Bool

	health

	mu     sync.Mutex
	port   io.Closer
	device string

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSerial(cfg SerialConfig, onLine OnLine) (*Serial, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("serial source name is required")
	}
	if onLine == nil {
		return nil, fmt.Errorf("serial source line handler is required")
	}
	if cfg.Baud == 0 {
		cfg.Baud = 4800
	}
	if !supportedBaud(cfg.Baud) {
		return nil, fmt.Errorf("serial source: unsupported baud %d", cfg.Baud)
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	s := &Serial{cfg: cfg, onLine: onLine, done: make(chan struct{})}
	s.state = "stopped"
	s.device = cfg.Device
	return s, nil
}

func (s *Serial) Name() string { return s.cfg.Name }

func (s *Serial) Start(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("serial source is closed")
	}
	if s.started.Swap(true) {
		return fmt.Errorf("serial source already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.setState("connecting", "")

	go func() {
		defer close(s.done)
		s.runLoop(runCtx)
	}()
	return nil
}

func (s *Serial) Close() {
	if s.closed.Swap(true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	// Close the open port to unblock a pending read.
	s.mu.Lock()
	port := s.port
	s.port = nil
	s.mu.Unlock()
	if port != nil {
		_ = port.Close()
	}
	<-s.done
}

func (s *Serial) Snapshot(nowUTC time.Time) Snapshot {
	s.mu.Lock()
	device := s.device
	s.mu.Unlock()
	if device == "" {
		device = "auto"
	}

	out := Snapshot{
		Name:     s.cfg.Name,
		Type:     "serial",
		Endpoint: fmt.Sprintf("%s@%d", device, s.cfg.Baud),
	}
	s.fill(&out)
	return out
}

func (s *Serial) runLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.setState("stopped", "")
			return
		default:
		}

		device := strings.TrimSpace(s.cfg.Device)
		if device == "" {
			device = autoDetectDevice()
			if device == "" {
				s.setState("error", "no /dev/ttyUSB* or /dev/ttyACM* found")
				if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
					s.setState("stopped", "")
					return
				}
				continue
			}
		}
		s.mu.Lock()
		s.device = device
		s.mu.Unlock()

		s.setState("connecting", "")
		f, err := openSerial(device, s.cfg.Baud)
		if err != nil {
			s.setState("error", fmt.Sprintf("open %s: %v", device, err))
			if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
				s.setState("stopped", "")
				return
			}
			continue
		}

		s.mu.Lock()
		s.port = f
		s.mu.Unlock()

		s.setState("connected", "")
		s.readPort(ctx, f)

		s.mu.Lock()
		s.port = nil
		s.mu.Unlock()

		if ctx.Err() != nil {
			s.setState("stopped", "")
			return
		}
		if !sleepCtx(ctx, s.cfg.ReconnectDelay) {
			s.setState("stopped", "")
			return
		}
	}
}

func (s *Serial) readPort(ctx context.Context, f *os.File) {
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	// NMEA sentences are typically < 82 chars, but allow some headroom.
	scanner.Buffer(make([]byte, 0, 256), 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			if ctx.Err() == nil {
				s.setState("disconnected", fmt.Sprintf("read stopped: %v", err))
			}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.onLine(line)
		s.sawLine(time.Now().UTC())
	}
}

func supportedBaud(baud int) bool {
	switch baud {
	case 4800, 9600, 19200, 38400, 57600, 115200:
		return true
	}
	return false
}

func autoDetectDevice() string {
	candidates := make([]string, 0, 20)
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
