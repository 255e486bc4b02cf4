package feed

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smart0183d/internal/catalog"
)

const ggaLine = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"

func newTestFeed(t *testing.T) *Service {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	s, err := New(Config{Name: "test", Catalog: cat, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s
}

func TestFeedRequiresNameAndCatalog(t *testing.T) {
	cat, _ := catalog.Default()
	if _, err := New(Config{Catalog: cat}); err == nil {
		t.Fatalf("expected error without name")
	}
	if _, err := New(Config{Name: "x"}); err == nil {
		t.Fatalf("expected error without catalog")
	}
}

func TestFeedGGACreatesCoordinatePairs(t *testing.T) {
	s := newTestFeed(t)
	now := time.Date(2024, 3, 11, 16, 0, 0, 0, time.UTC)

	s.HandleLine(now, ggaLine)

	reg := s.Registry()
	if got := reg.Len(); got != 16 {
		t.Fatalf("expected 16 measurements (14 fields + 2 decimal), got %d", got)
	}

	lat, ok := reg.Get("GP_GGA_2")
	if !ok {
		t.Fatalf("expected GP_GGA_2")
	}
	if lat.Value != "4807.038" || lat.Unit != "°" {
		t.Fatalf("unexpected raw latitude %+v", lat)
	}
	if lat.DeviceName != "Global Positioning System Fix Data (GP)" {
		t.Fatalf("unexpected device name %q", lat.DeviceName)
	}

	dec, ok := reg.Get("GP_GGA_2_decimal")
	if !ok {
		t.Fatalf("expected derived latitude")
	}
	if dec.Value != "48.117300" {
		t.Fatalf("expected decimal latitude 48.117300, got %q", dec.Value)
	}
	if !strings.HasSuffix(dec.DisplayName, "Decimal Conversion") {
		t.Fatalf("unexpected derived name %q", dec.DisplayName)
	}

	lon, ok := reg.Get("GP_GGA_4_decimal")
	if !ok {
		t.Fatalf("expected derived longitude")
	}
	if lon.Value != "11.516667" {
		t.Fatalf("expected decimal longitude 11.516667, got %q", lon.Value)
	}

	alt, _ := reg.Get("GP_GGA_9")
	if alt.Unit != "m" || alt.Value != "545.4" {
		t.Fatalf("unexpected altitude %+v", alt)
	}

	// Trailing empty fields are recorded but unavailable.
	age, ok := reg.Get("GP_GGA_13")
	if !ok {
		t.Fatalf("expected GP_GGA_13")
	}
	if age.Available || age.Value != "" {
		t.Fatalf("expected empty field to be unavailable, got %+v", age)
	}

	snap := s.Snapshot()
	if snap.Processed != 1 || snap.Measurements != 16 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestFeedKeysAreTalkerQualified(t *testing.T) {
	s := newTestFeed(t)
	now := time.Now().UTC()

	s.HandleLine(now, ggaLine)
	s.HandleLine(now, "$GNGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*59")

	reg := s.Registry()
	if _, ok := reg.Get("GP_GGA_2"); !ok {
		t.Fatalf("expected GP talker key")
	}
	if _, ok := reg.Get("GN_GGA_2"); !ok {
		t.Fatalf("expected GN talker key")
	}
	if got := reg.Len(); got != 32 {
		t.Fatalf("expected both talkers to coexist, got %d measurements", got)
	}
}

func TestFeedThrottlesPerSentenceID(t *testing.T) {
	s := newTestFeed(t)
	t0 := time.Date(2024, 3, 11, 16, 0, 0, 0, time.UTC)

	s.HandleLine(t0, "$SDDPT,2.4,0.6*57")
	s.HandleLine(t0.Add(3*time.Second), "$SDDPT,9.9,0.6*51")
	// A different sentence id passes while DPT is gated.
	s.HandleLine(t0.Add(3*time.Second), "$IIMTW,19.5,C*1E")

	reg := s.Registry()
	depth, _ := reg.Get("SD_DPT_1")
	if depth.Value != "2.4" {
		t.Fatalf("expected throttled line to be dropped, got value %q", depth.Value)
	}

	s.HandleLine(t0.Add(6*time.Second), "$SDDPT,9.9,0.6*51")
	depth, _ = reg.Get("SD_DPT_1")
	if depth.Value != "9.9" {
		t.Fatalf("expected update after interval, got %q", depth.Value)
	}

	snap := s.Snapshot()
	if snap.Lines != 4 || snap.Processed != 3 || snap.Throttled != 1 {
		t.Fatalf("unexpected counters %+v", snap)
	}
}

func TestFeedSkipsNoise(t *testing.T) {
	s := newTestFeed(t)
	now := time.Now().UTC()

	s.HandleLine(now, "")
	s.HandleLine(now, "!AIVDM,1,1,,A,13u?etPv2;0n:dDPwUM1U1Cb069D,0*24")
	s.HandleLine(now, "$GP,1,2*33")
	s.HandleLine(now, "\xff\xfe$GPGGA,123519*00")

	if got := s.Registry().Len(); got != 0 {
		t.Fatalf("expected no measurements from noise, got %d", got)
	}
	snap := s.Snapshot()
	if snap.Lines != 4 {
		t.Fatalf("expected 4 lines, got %d", snap.Lines)
	}
	if snap.Skipped != 1 || snap.Malformed != 1 || snap.InvalidUTF8 != 1 {
		t.Fatalf("unexpected counters %+v", snap)
	}
}

func TestFeedUnitRefOutsideSentenceSkipsField(t *testing.T) {
	cat, err := catalog.Parse([]byte(`[
  {
    "group": "Test",
    "sentence_description": "Test Sentence",
    "fields": [
      { "unique_id": "AAA_1", "full_description": "Value", "unit_of_measurement": "#5" }
    ]
  }
]`))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	s, err := New(Config{Name: "test", Catalog: cat, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.HandleLine(time.Now().UTC(), "$GPAAA,7,x*19")

	if got := s.Registry().Len(); got != 0 {
		t.Fatalf("expected field with dangling unit ref to be skipped, got %d", got)
	}
	if snap := s.Snapshot(); snap.SkippedFields != 1 {
		t.Fatalf("unexpected counters %+v", snap)
	}
}

func TestFeedWindSpeedUnitFromReference(t *testing.T) {
	s := newTestFeed(t)
	now := time.Now().UTC()

	s.HandleLine(now, "$WIMWV,18.2,R,9.9,N,A*18")
	s.HandleLine(now, "$IIMTW,19.5,C*1E")

	reg := s.Registry()
	wind, _ := reg.Get("WI_MWV_3")
	if wind.Unit != "kn" || wind.Value != "9.9" {
		t.Fatalf("unexpected wind speed %+v", wind)
	}
	temp, _ := reg.Get("II_MTW_1")
	if temp.Unit != "C" {
		t.Fatalf("expected unmapped code to pass through, got %q", temp.Unit)
	}
}

func TestFeedEmptyCoordinateSkipsOnlyDerived(t *testing.T) {
	s := newTestFeed(t)
	now := time.Now().UTC()

	// GGA without a fix: coordinates empty.
	s.HandleLine(now, "$GPGGA,123519,,,,,0,00,,,M,,M,,*6B")

	reg := s.Registry()
	if _, ok := reg.Get("GP_GGA_2_decimal"); ok {
		t.Fatalf("expected no derived measurement without a fix")
	}
	lat, ok := reg.Get("GP_GGA_2")
	if !ok {
		t.Fatalf("expected raw latitude key even without a fix")
	}
	if lat.Available {
		t.Fatalf("expected empty latitude to be unavailable")
	}
	if snap := s.Snapshot(); snap.ConvertErrors != 0 {
		t.Fatalf("no-fix lines are not conversion errors: %+v", snap)
	}
}

func TestFeedBadCoordinateCountsConvertError(t *testing.T) {
	s := newTestFeed(t)
	now := time.Now().UTC()

	s.HandleLine(now, "$GPGGA,123519,junk,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*43")

	reg := s.Registry()
	lat, ok := reg.Get("GP_GGA_2")
	if !ok || lat.Value != "junk" {
		t.Fatalf("raw field must be recorded even when conversion fails: %+v", lat)
	}
	if _, ok := reg.Get("GP_GGA_2_decimal"); ok {
		t.Fatalf("expected conversion failure to skip the derived measurement")
	}
	if snap := s.Snapshot(); snap.ConvertErrors != 1 {
		t.Fatalf("unexpected counters %+v", snap)
	}
}

func TestFeedRawFanout(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	var mu sync.Mutex
	var raw []string
	s, err := New(Config{
		Name:    "test",
		Catalog: cat,
		Log:     zerolog.Nop(),
		OnRaw: func(line string) {
			mu.Lock()
			raw = append(raw, line)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	now := time.Now().UTC()
	s.HandleLine(now, ggaLine)
	s.HandleLine(now, ggaLine) // throttled, still forwarded
	s.HandleLine(now, "!AIVDM,1,1,,A,13u?etPv2;0n:dDPwUM1U1Cb069D,0*24")
	s.HandleLine(now, "noise")

	mu.Lock()
	defer mu.Unlock()
	if len(raw) != 3 {
		t.Fatalf("expected 3 forwarded lines, got %d: %v", len(raw), raw)
	}
}
