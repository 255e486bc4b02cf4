// Package web serves the dashboard and the JSON API over HTTP.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"
)

//go:embed assets/*
var embeddedAssets embed.FS

type Server struct {
	hub  *Hub
	logs *LogBuffer
	log  zerolog.Logger
}

func NewServer(hub *Hub, logs *LogBuffer, log zerolog.Logger) *Server {
	return &Server{hub: hub, logs: logs, log: log}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/sources", s.handleSources)
		r.Get("/measurements", s.handleMeasurements)
		r.Get("/measurements/{source}/{key}", s.handleMeasurement)
		r.Get("/about", s.handleAbout)
		if s.logs != nil {
			r.Get("/logs", s.logs.handleGet)
		}
	})

	if assetsFS, err := fs.Sub(embeddedAssets, "assets"); err == nil {
		fileServer := http.FileServer(http.FS(assetsFS))
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// Prevent stale UI assets during development.
			w.Header().Set("Cache-Control", "no-store")
			fileServer.ServeHTTP(w, req)
		})))
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			b, err := fs.ReadFile(assetsFS, "index.html")
			if err != nil {
				http.Error(w, "ui unavailable", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(b)
		})
	}

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.hub.Status(time.Now().UTC()))
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	now := time.Now().UTC()
	doc := s.hub.Status(now)
	writeJSON(w, struct {
		NowUTC  string      `json:"now_utc"`
		Sources interface{} `json:"sources"`
	}{NowUTC: doc.NowUTC, Sources: doc.Sources})
}

func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	filter := strings.TrimSpace(r.URL.Query().Get("source"))
	groups, ok := s.hub.Measurements(filter)
	if !ok {
		http.Error(w, "unknown source", http.StatusNotFound)
		return
	}
	writeJSON(w, struct {
		NowUTC  string               `json:"now_utc"`
		Sources []SourceMeasurements `json:"sources"`
	}{NowUTC: time.Now().UTC().Format(time.RFC3339Nano), Sources: groups})
}

func (s *Server) handleMeasurement(w http.ResponseWriter, r *http.Request) {
	sourceName := chi.URLParam(r, "source")
	key := chi.URLParam(r, "key")
	m, ok := s.hub.Measurement(sourceName, key)
	if !ok {
		http.Error(w, "unknown source or measurement", http.StatusNotFound)
		return
	}
	writeJSON(w, m)
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

// Serve blocks until ctx is cancelled or the listener fails.
func (s *Server) Serve(ctx context.Context, listenAddr string) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", listenAddr).Msg("web listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
