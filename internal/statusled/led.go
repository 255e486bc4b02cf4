// Package statusled drives a panel LED that shows at a glance whether
// sentences are flowing: solid ON while any source is healthy, OFF
// otherwise.
package statusled

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var pollInterval = time.Second

type ledDriver interface {
	Set(on bool) error
	Close() error
}

type Config struct {
	Enable bool
	// Pin is BCM GPIO numbering.
	Pin int
	// Healthy reports whether any source is currently delivering lines.
	Healthy func(nowUTC time.Time) bool
}

type Snapshot struct {
	Enabled      bool      `json:"enabled"`
	Available    bool      `json:"available"`
	On           bool      `json:"on"`
	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

type Service struct {
	cfg Config

	mu   sync.RWMutex
	snap Snapshot

	drvMu sync.Mutex
	drv   ledDriver

	wg sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(cfg Config) *Service {
	if cfg.Pin == 0 {
		cfg.Pin = 17
	}
	return &Service{cfg: cfg, stopCh: make(chan struct{})}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("statusled: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if s.cfg.Healthy == nil {
		return fmt.Errorf("statusled: health predicate is required")
	}

	s.setState(func(sn *Snapshot) {
		sn.Enabled = true
	})

	drv, err := openLEDFn(s.cfg.Pin)
	if err != nil {
		s.setErr(err.Error())
		return err
	}
	s.drvMu.Lock()
	s.drv = drv
	s.drvMu.Unlock()

	s.setState(func(sn *Snapshot) {
		sn.Available = true
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, drv)
	}()

	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})

	s.wg.Wait()

	s.drvMu.Lock()
	drv := s.drv
	s.drv = nil
	s.drvMu.Unlock()
	if drv != nil {
		_ = drv.Close()
	}
}

func (s *Service) run(ctx context.Context, drv ledDriver) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// The driver opens with the LED off; track the last written level so
	// the GPIO is only touched on transitions.
	lit := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
		}

		want := s.cfg.Healthy(time.Now().UTC())
		if want == lit {
			continue
		}
		if err := drv.Set(want); err != nil {
			s.setErr(fmt.Sprintf("statusled: set failed: %v", err))
			continue
		}
		lit = want
		s.setState(func(sn *Snapshot) {
			sn.On = want
			sn.LastError = ""
		})
	}
}

func (s *Service) setErr(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.LastError = msg
	s.snap.LastUpdateAt = time.Now().UTC()
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
	s.snap.LastUpdateAt = time.Now().UTC()
}
