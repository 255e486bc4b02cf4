package nmea0183

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseLatitude converts an NMEA ddmm.mmmm latitude plus hemisphere letter
// to signed decimal degrees, rounded to 6 decimal places. South is
// negative; any other hemisphere leaves the sign alone.
func ParseLatitude(raw, hemisphere string) (float64, error) {
	v, err := parseCoordinate(raw, 2)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(hemisphere) == "S" {
		v = -v
	}
	return round6(v), nil
}

// ParseLongitude converts an NMEA dddmm.mmmm longitude plus hemisphere
// letter to signed decimal degrees, rounded to 6 decimal places. West is
// negative.
func ParseLongitude(raw, hemisphere string) (float64, error) {
	v, err := parseCoordinate(raw, 3)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(hemisphere) == "W" {
		v = -v
	}
	return round6(v), nil
}

func parseCoordinate(raw string, degDigits int) (float64, error) {
	if len(raw) <= degDigits {
		return 0, fmt.Errorf("nmea0183: coordinate %q too short", raw)
	}
	deg, err := strconv.Atoi(raw[:degDigits])
	if err != nil {
		return 0, fmt.Errorf("nmea0183: bad coordinate %q", raw)
	}
	mins, err := strconv.ParseFloat(raw[degDigits:], 64)
	if err != nil {
		return 0, fmt.Errorf("nmea0183: bad coordinate %q", raw)
	}
	return float64(deg) + mins/60.0, nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
