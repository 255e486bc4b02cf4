package web

import (
	"time"

	"smart0183d/internal/feed"
	"smart0183d/internal/measure"
	"smart0183d/internal/record"
	"smart0183d/internal/source"
	"smart0183d/internal/statusled"
	"smart0183d/internal/udp"
)

// Hub collects the live components the API reports on. Optional parts
// stay nil when not configured.
type Hub struct {
	Service string
	Version string
	Started time.Time

	Feeds   []*feed.Service
	Sources []source.Source
	Forward *udp.Forwarder
	Record  *record.Recorder
	LED     *statusled.Service
}

type StatusDoc struct {
	Service   string              `json:"service"`
	Version   string              `json:"version,omitempty"`
	NowUTC    string              `json:"now_utc"`
	UptimeSec int64               `json:"uptime_sec"`
	Sources   []source.Snapshot   `json:"sources"`
	Feeds     []feed.Snapshot     `json:"feeds"`
	Forward   *udp.Snapshot       `json:"forward,omitempty"`
	Record    *record.Snapshot    `json:"record,omitempty"`
	LED       *statusled.Snapshot `json:"led,omitempty"`
}

func (h *Hub) Status(nowUTC time.Time) StatusDoc {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}

	doc := StatusDoc{
		Service: h.Service,
		Version: h.Version,
		NowUTC:  nowUTC.Format(time.RFC3339Nano),
		Sources: make([]source.Snapshot, 0, len(h.Sources)),
		Feeds:   make([]feed.Snapshot, 0, len(h.Feeds)),
	}
	if !h.Started.IsZero() {
		doc.UptimeSec = int64(nowUTC.Sub(h.Started).Seconds())
	}
	for _, src := range h.Sources {
		doc.Sources = append(doc.Sources, src.Snapshot(nowUTC))
	}
	for _, f := range h.Feeds {
		doc.Feeds = append(doc.Feeds, f.Snapshot())
	}
	if h.Forward != nil {
		snap := h.Forward.Snapshot()
		doc.Forward = &snap
	}
	if h.Record != nil {
		snap := h.Record.Snapshot()
		doc.Record = &snap
	}
	if h.LED != nil {
		snap := h.LED.Snapshot()
		doc.LED = &snap
	}
	return doc
}

// SourceMeasurements groups one feed's registry for the API.
type SourceMeasurements struct {
	Source       string                `json:"source"`
	Measurements []measure.Measurement `json:"measurements"`
}

func (h *Hub) feed(name string) *feed.Service {
	for _, f := range h.Feeds {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// Measurements returns the registries of all feeds, or of just one when
// filter is non-empty. ok is false when the filter names no feed.
func (h *Hub) Measurements(filter string) (groups []SourceMeasurements, ok bool) {
	if filter != "" {
		f := h.feed(filter)
		if f == nil {
			return nil, false
		}
		return []SourceMeasurements{{
			Source:       f.Name(),
			Measurements: f.Registry().Snapshot(),
		}}, true
	}

	groups = make([]SourceMeasurements, 0, len(h.Feeds))
	for _, f := range h.Feeds {
		groups = append(groups, SourceMeasurements{
			Source:       f.Name(),
			Measurements: f.Registry().Snapshot(),
		})
	}
	return groups, true
}

// Measurement looks up one registry entry by feed name and key.
func (h *Hub) Measurement(sourceName, key string) (measure.Measurement, bool) {
	f := h.feed(sourceName)
	if f == nil {
		return measure.Measurement{}, false
	}
	return f.Registry().Get(key)
}

// Healthy reports whether any source is connected and has delivered a
// line recently. The status LED polls this.
func (h *Hub) Healthy(nowUTC time.Time) bool {
	for _, src := range h.Sources {
		snap := src.Snapshot(nowUTC)
		if !snap.Connected || snap.LastLineUTC == "" {
			continue
		}
		last, err := time.Parse(time.RFC3339Nano, snap.LastLineUTC)
		if err != nil {
			continue
		}
		if nowUTC.Sub(last) < 10*time.Second {
			return true
		}
	}
	return false
}
