package measure

import (
	"sort"
	"sync"
	"time"
)

// Update carries everything needed to create or refresh a measurement.
type Update struct {
	Key          string
	DisplayName  string
	Group        string
	Unit         string
	DeviceName   string
	SentenceType string
	Value        string
}

// Registry is a monotonically growing key -> Measurement map. Keys are
// never removed during a session; staleness is expressed through the
// Available flag instead.
type Registry struct {
	mu        sync.RWMutex
	items     map[string]Measurement
	observers []Observer
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Measurement)}
}

// AddObserver registers o for lifecycle callbacks. Observers must be added
// before feeding begins.
func (r *Registry) AddObserver(o Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

// Upsert creates the measurement on first sight of the key and refreshes
// it afterwards. The update path touches only Value, LastUpdated and
// Available; identity fields keep their creation-time values. An empty
// value marks the measurement unavailable but still stamps LastUpdated.
// Reports whether the key was newly created.
func (r *Registry) Upsert(nowUTC time.Time, u Update) (Measurement, bool) {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}

	r.mu.Lock()
	m, exists := r.items[u.Key]
	if !exists {
		m = Measurement{
			Key:          u.Key,
			DisplayName:  u.DisplayName,
			Group:        u.Group,
			Unit:         u.Unit,
			DeviceName:   u.DeviceName,
			SentenceType: u.SentenceType,
		}
	}
	m.Value = u.Value
	m.LastUpdated = nowUTC.UTC()
	m.Available = u.Value != ""
	r.items[u.Key] = m
	obs := r.observers
	r.mu.Unlock()

	for _, o := range obs {
		if exists {
			o.OnMeasurementUpdated(m)
		} else {
			o.OnNewMeasurement(m)
		}
	}
	return m, !exists
}

func (r *Registry) Get(key string) (Measurement, bool) {
	r.mu.RLock()
	m, ok := r.items[key]
	r.mu.RUnlock()
	return m, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	n := len(r.items)
	r.mu.RUnlock()
	return n
}

// Snapshot returns a copy of all measurements sorted by key.
func (r *Registry) Snapshot() []Measurement {
	r.mu.RLock()
	out := make([]Measurement, 0, len(r.items))
	for _, m := range r.items {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SweepAvailability recomputes Available for every measurement: a
// measurement is available while its last update is younger than window.
// Returns how many flags changed.
func (r *Registry) SweepAvailability(nowUTC time.Time, window time.Duration) int {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	changed := 0
	for k, m := range r.items {
		avail := nowUTC.Sub(m.LastUpdated) < window
		if avail != m.Available {
			m.Available = avail
			r.items[k] = m
			changed++
		}
	}
	return changed
}
