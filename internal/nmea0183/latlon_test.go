package nmea0183

import (
	"math"
	"testing"
)

func TestParseLatitude(t *testing.T) {
	tests := []struct {
		raw, hemi string
		want      float64
	}{
		{"4916.455", "N", 49.274250},
		{"4916.455", "S", -49.274250},
		{"4807.038", "N", 48.117300},
		{"0000.000", "N", 0},
		// Hemisphere letters other than S never flip the sign.
		{"4916.455", "X", 49.274250},
		{"4916.455", "", 49.274250},
	}
	for _, tt := range tests {
		got, err := ParseLatitude(tt.raw, tt.hemi)
		if err != nil {
			t.Fatalf("ParseLatitude(%q, %q): %v", tt.raw, tt.hemi, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("ParseLatitude(%q, %q) = %v, want %v", tt.raw, tt.hemi, got, tt.want)
		}
	}
}

func TestParseLongitude(t *testing.T) {
	tests := []struct {
		raw, hemi string
		want      float64
	}{
		{"12311.12", "W", -123.185333},
		{"12311.12", "E", 123.185333},
		{"01131.000", "E", 11.516667},
	}
	for _, tt := range tests {
		got, err := ParseLongitude(tt.raw, tt.hemi)
		if err != nil {
			t.Fatalf("ParseLongitude(%q, %q): %v", tt.raw, tt.hemi, err)
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("ParseLongitude(%q, %q) = %v, want %v", tt.raw, tt.hemi, got, tt.want)
		}
	}
}

func TestParseCoordinate_Bad(t *testing.T) {
	for _, raw := range []string{"", "49", "abc.def", "49xx.455"} {
		if _, err := ParseLatitude(raw, "N"); err == nil {
			t.Fatalf("ParseLatitude(%q): expected error", raw)
		}
	}
	if _, err := ParseLongitude("123", "E"); err == nil {
		t.Fatalf("expected error for longitude with no minutes")
	}
}
