package measure

import (
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu      sync.Mutex
	created []string
	updated []string
}

func (o *recordingObserver) OnNewMeasurement(m Measurement) {
	o.mu.Lock()
	o.created = append(o.created, m.Key)
	o.mu.Unlock()
}

func (o *recordingObserver) OnMeasurementUpdated(m Measurement) {
	o.mu.Lock()
	o.updated = append(o.updated, m.Key)
	o.mu.Unlock()
}

func TestRegistryUpsertCreatesOncePerKey(t *testing.T) {
	r := NewRegistry()
	obs := &recordingObserver{}
	r.AddObserver(obs)

	now := time.Date(2024, 3, 11, 16, 0, 0, 0, time.UTC)
	u := Update{
		Key:          "GP_GGA_2",
		DisplayName:  "Latitude",
		Group:        "GPS",
		Unit:         "°",
		DeviceName:   "GPS Fix Data (GP)",
		SentenceType: "GGA",
		Value:        "4807.038",
	}

	m, created := r.Upsert(now, u)
	if !created {
		t.Fatalf("expected first upsert to create")
	}
	if !m.Available {
		t.Fatalf("expected available")
	}
	if m.LastUpdated != now {
		t.Fatalf("expected last_updated %v, got %v", now, m.LastUpdated)
	}

	u.Value = "4807.100"
	u.DisplayName = "Renamed"
	m, created = r.Upsert(now.Add(6*time.Second), u)
	if created {
		t.Fatalf("expected second upsert to update")
	}
	if m.Value != "4807.100" {
		t.Fatalf("expected refreshed value, got %q", m.Value)
	}
	if m.DisplayName != "Latitude" {
		t.Fatalf("identity fields must not change on update, got %q", m.DisplayName)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 measurement, got %d", r.Len())
	}

	if len(obs.created) != 1 || obs.created[0] != "GP_GGA_2" {
		t.Fatalf("expected one create callback, got %v", obs.created)
	}
	if len(obs.updated) != 1 {
		t.Fatalf("expected one update callback, got %v", obs.updated)
	}
}

func TestRegistryEmptyValueIsUnavailableButStamped(t *testing.T) {
	r := NewRegistry()
	now := time.Now().UTC()

	m, _ := r.Upsert(now, Update{Key: "WI_MWV_1", Value: ""})
	if m.Available {
		t.Fatalf("expected empty value to be unavailable")
	}
	if m.LastUpdated != now {
		t.Fatalf("expected empty value to still stamp last_updated")
	}

	m, _ = r.Upsert(now.Add(time.Second), Update{Key: "WI_MWV_1", Value: "18.2"})
	if !m.Available {
		t.Fatalf("expected non-empty value to restore availability")
	}
}

func TestRegistrySnapshotSortedByKey(t *testing.T) {
	r := NewRegistry()
	now := time.Now().UTC()
	for _, k := range []string{"SD_DPT_1", "GP_GGA_2", "WI_MWV_1", "GP_GGA_2_decimal"} {
		r.Upsert(now, Update{Key: k, Value: "1"})
	}

	snap := r.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("expected 4 measurements, got %d", len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if snap[i-1].Key >= snap[i].Key {
			t.Fatalf("snapshot not sorted: %q before %q", snap[i-1].Key, snap[i].Key)
		}
	}
}

func TestRegistrySweepAvailability(t *testing.T) {
	r := NewRegistry()
	now := time.Now().UTC()

	r.Upsert(now.Add(-5*time.Minute), Update{Key: "GP_GGA_2", Value: "4807.038"})
	r.Upsert(now.Add(-time.Minute), Update{Key: "SD_DPT_1", Value: "2.4"})

	changed := r.SweepAvailability(now, 4*time.Minute)
	if changed != 1 {
		t.Fatalf("expected 1 change, got %d", changed)
	}
	if m, _ := r.Get("GP_GGA_2"); m.Available {
		t.Fatalf("expected stale measurement to be unavailable")
	}
	if m, _ := r.Get("SD_DPT_1"); !m.Available {
		t.Fatalf("expected fresh measurement to stay available")
	}

	// A second sweep with nothing aged further changes nothing.
	if changed := r.SweepAvailability(now, 4*time.Minute); changed != 0 {
		t.Fatalf("expected idempotent sweep, got %d changes", changed)
	}
}
