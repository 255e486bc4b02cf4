package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"smart0183d/internal/catalog"
	"smart0183d/internal/config"
	"smart0183d/internal/feed"
	"smart0183d/internal/record"
	"smart0183d/internal/source"
	"smart0183d/internal/statusled"
	"smart0183d/internal/udp"
	"smart0183d/internal/web"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the instrument hub",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, cfg)
		},
	}
}

// hubRuntime owns every long-lived component of a serve run.
type hubRuntime struct {
	hub       *web.Hub
	feeds     []*feed.Service
	sources   []source.Source
	forwarder *udp.Forwarder
	recorder  *record.Recorder
	led       *statusled.Service
	log       zerolog.Logger
}

func runServe(ctx context.Context, cfg config.Config) error {
	logBuf := web.NewLogBuffer(2000)
	log := newLogger(cfg.Log.Level, logBuf)

	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return err
	}
	log.Info().Int("sentences", cat.Sentences()).Int("fields", cat.FieldCount()).Msg("catalog loaded")

	rt, err := newHubRuntime(ctx, cfg, cat, log)
	if err != nil {
		return err
	}
	defer rt.Close()

	log.Info().
		Int("sources", len(rt.sources)).
		Str("listen", cfg.Web.Listen).
		Msg("smart0183d started")

	srv := web.NewServer(rt.hub, logBuf, log)
	err = srv.Serve(ctx, cfg.Web.Listen)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("smart0183d stopping")
	return nil
}

func newHubRuntime(ctx context.Context, cfg config.Config, cat *catalog.Catalog, log zerolog.Logger) (*hubRuntime, error) {
	rt := &hubRuntime{log: log}

	if cfg.Forward.Enable {
		fwd, err := udp.NewForwarder(cfg.Forward.Dest)
		if err != nil {
			return nil, fmt.Errorf("forward init failed: %w", err)
		}
		rt.forwarder = fwd
		log.Info().Str("dest", cfg.Forward.Dest).Msg("forwarding raw sentences")
	}

	if cfg.Record.Enable {
		rec, err := record.Open(cfg.Record.Path)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("record init failed: %w", err)
		}
		rt.recorder = rec
		log.Info().Str("path", cfg.Record.Path).Msg("recording raw sentences")
	}

	onRaw := rt.rawFanout()

	for _, srcCfg := range cfg.Sources {
		f, err := feed.New(feed.Config{
			Name:    srcCfg.Name,
			Catalog: cat,
			OnRaw:   onRaw,
			Log:     log,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
		f.Start(ctx)

		src, err := buildSource(srcCfg, func(line string) {
			f.HandleLine(time.Now().UTC(), line)
		})
		if err != nil {
			rt.Close()
			return nil, err
		}

		rt.feeds = append(rt.feeds, f)
		rt.sources = append(rt.sources, src)
	}

	rt.hub = &web.Hub{
		Service: "smart0183d",
		Version: resolveVersion(),
		Started: time.Now().UTC(),
		Feeds:   rt.feeds,
		Sources: rt.sources,
		Forward: rt.forwarder,
		Record:  rt.recorder,
	}

	if cfg.LED.Enable {
		led := statusled.New(statusled.Config{
			Enable:  true,
			Pin:     cfg.LED.Pin,
			Healthy: rt.hub.Healthy,
		})
		if err := led.Start(ctx); err != nil {
			// A missing GPIO must not take the hub down.
			log.Warn().Err(err).Msg("status led unavailable")
		} else {
			rt.led = led
			rt.hub.LED = led
		}
	}

	for _, src := range rt.sources {
		if err := src.Start(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("source %s: %w", src.Name(), err)
		}
		snap := src.Snapshot(time.Now().UTC())
		log.Info().Str("source", snap.Name).Str("type", snap.Type).Str("endpoint", snap.Endpoint).Msg("source started")
	}

	return rt, nil
}

// rawFanout mirrors every raw sentence to the forwarder and recorder.
func (rt *hubRuntime) rawFanout() func(line string) {
	if rt.forwarder == nil && rt.recorder == nil {
		return nil
	}
	return func(line string) {
		if rt.forwarder != nil {
			if err := rt.forwarder.Send(line); err != nil {
				rt.log.Debug().Err(err).Msg("forward failed")
			}
		}
		if rt.recorder != nil {
			if err := rt.recorder.WriteLine(line); err != nil {
				rt.log.Warn().Err(err).Msg("record failed")
			}
		}
	}
}

func buildSource(cfg config.SourceConfig, onLine source.OnLine) (source.Source, error) {
	switch cfg.Type {
	case "serial":
		return source.NewSerial(source.SerialConfig{
			Name:   cfg.Name,
			Device: cfg.Device,
			Baud:   cfg.Baud,
		}, onLine)
	case "tcp":
		return source.NewTCP(source.TCPConfig{
			Name: cfg.Name,
			Addr: cfg.Addr,
		}, onLine)
	case "exec":
		return source.NewExec(source.ExecConfig{
			Name:    cfg.Name,
			Command: cfg.Command,
			Args:    cfg.Args,
		}, onLine)
	case "file":
		return source.NewFile(source.FileConfig{
			Name:     cfg.Name,
			Path:     cfg.Path,
			Interval: cfg.Interval,
			Loop:     cfg.Loop,
		}, onLine)
	default:
		return nil, fmt.Errorf("source %s: unknown type %q", cfg.Name, cfg.Type)
	}
}

func (rt *hubRuntime) Close() {
	for _, src := range rt.sources {
		src.Close()
	}
	if rt.led != nil {
		rt.led.Close()
	}
	if rt.forwarder != nil {
		_ = rt.forwarder.Close()
	}
	if rt.recorder != nil {
		_ = rt.recorder.Close()
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

func newLogger(level string, buf *web.LogBuffer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var w io.Writer = os.Stderr
	if buf != nil {
		w = zerolog.MultiLevelWriter(os.Stderr, buf)
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "smart0183d").Logger()
}
