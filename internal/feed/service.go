// Package feed runs the per-source decode pipeline: raw sentence lines
// in, catalog-driven measurements out.
package feed

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"smart0183d/internal/catalog"
	"smart0183d/internal/measure"
)

type Config struct {
	// Name identifies the source feeding this pipeline.
	Name    string
	Catalog *catalog.Catalog

	// MinInterval throttles repeated sights of one sentence id. Zero means
	// the default.
	MinInterval time.Duration

	// SweepInterval and StaleWindow control availability sweeps. Zero
	// means the defaults.
	SweepInterval time.Duration
	StaleWindow   time.Duration

	// OnRaw, when set, receives every sentence line before throttling.
	OnRaw func(line string)

	Log zerolog.Logger
}

type Service struct {
	cfg      Config
	reg      *measure.Registry
	throttle *measure.Throttle
	log      zerolog.Logger

	lines         atomic.Uint64
	processed     atomic.Uint64
	throttled     atomic.Uint64
	skipped       atomic.Uint64
	malformed     atomic.Uint64
	invalidUTF8   atomic.Uint64
	skippedFields atomic.Uint64
	convertErrors atomic.Uint64
}

// Snapshot is the wire form of the pipeline counters.
type Snapshot struct {
	Name          string `json:"name"`
	Measurements  int    `json:"measurements"`
	Lines         uint64 `json:"lines"`
	Processed     uint64 `json:"processed"`
	Throttled     uint64 `json:"throttled"`
	Skipped       uint64 `json:"skipped"`
	Malformed     uint64 `json:"malformed"`
	InvalidUTF8   uint64 `json:"invalid_utf8"`
	SkippedFields uint64 `json:"skipped_fields"`
	ConvertErrors uint64 `json:"convert_errors"`
}

func New(cfg Config) (*Service, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("feed name is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("feed catalog is required")
	}

	s := &Service{
		cfg:      cfg,
		reg:      measure.NewRegistry(),
		throttle: measure.NewThrottle(cfg.MinInterval),
		log:      cfg.Log.With().Str("source", cfg.Name).Logger(),
	}
	s.reg.AddObserver(logObserver{log: s.log})
	return s, nil
}

// Start launches the availability sweeper. It stops when ctx is
// cancelled; line handling itself needs no goroutine of its own.
func (s *Service) Start(ctx context.Context) {
	sw := &measure.Sweeper{
		Registry: s.reg,
		Interval: s.cfg.SweepInterval,
		Window:   s.cfg.StaleWindow,
	}
	go sw.Run(ctx)
}

func (s *Service) Name() string { return s.cfg.Name }

// Registry exposes the measurements decoded by this pipeline.
func (s *Service) Registry() *measure.Registry { return s.reg }

func (s *Service) Snapshot() Snapshot {
	return Snapshot{
		Name:          s.cfg.Name,
		Measurements:  s.reg.Len(),
		Lines:         s.lines.Load(),
		Processed:     s.processed.Load(),
		Throttled:     s.throttled.Load(),
		Skipped:       s.skipped.Load(),
		Malformed:     s.malformed.Load(),
		InvalidUTF8:   s.invalidUTF8.Load(),
		SkippedFields: s.skippedFields.Load(),
		ConvertErrors: s.convertErrors.Load(),
	}
}

// logObserver mirrors measurement lifecycle into the source log: new keys
// are worth an info line, refreshes are debug noise.
type logObserver struct {
	log zerolog.Logger
}

func (o logObserver) OnNewMeasurement(m measure.Measurement) {
	o.log.Info().
		Str("key", m.Key).
		Str("name", m.DisplayName).
		Str("unit", m.Unit).
		Msg("new measurement")
}

func (o logObserver) OnMeasurementUpdated(m measure.Measurement) {
	o.log.Debug().
		Str("key", m.Key).
		Str("value", m.Value).
		Msg("measurement updated")
}
