package nmea0183

import (
	"fmt"
	"strconv"
	"strings"
)

// unitNames maps the single-letter unit codes instruments put on the wire
// to display units. Unknown codes pass through unchanged.
var unitNames = map[string]string{
	"N": "kn",
	"K": "kn",
	"M": "m/s",
}

// TranslateUnit maps a cross-referenced unit token to its display form.
func TranslateUnit(token string) string {
	if u, ok := unitNames[strings.ToUpper(token)]; ok {
		return u
	}
	return token
}

// IsGPSHint reports whether a catalog unit hint is a coordinate directive
// rather than a unit.
func IsGPSHint(hint string) bool {
	return strings.HasPrefix(hint, "GPS")
}

// GPSDirective is a parsed GPS{LAT|LON}{d} unit hint: which axis the raw
// field carries and the index of its hemisphere letter within the same
// sentence.
type GPSDirective struct {
	Longitude       bool
	HemisphereIndex int
}

// ParseGPSDirective parses hints of the form GPSLAT3 or GPSLON5.
func ParseGPSDirective(hint string) (GPSDirective, error) {
	if len(hint) < 7 || !strings.HasPrefix(hint, "GPS") {
		return GPSDirective{}, fmt.Errorf("nmea0183: bad coordinate directive %q", hint)
	}
	last := hint[len(hint)-1]
	if last < '0' || last > '9' {
		return GPSDirective{}, fmt.Errorf("nmea0183: coordinate directive %q has no hemisphere index", hint)
	}
	d := GPSDirective{HemisphereIndex: int(last - '0')}
	switch hint[3:6] {
	case "LAT":
	case "LON":
		d.Longitude = true
	default:
		return GPSDirective{}, fmt.Errorf("nmea0183: bad coordinate directive %q", hint)
	}
	return d, nil
}

// ResolveUnit turns a catalog unit hint into the unit recorded on the
// measurement. "#N" (N all digits) re-reads field N of the current
// sentence and translates the code found there; coordinate directives
// resolve to degrees; anything else is taken verbatim. An error means the
// hint references a field the sentence does not have, and the whole field
// must be skipped this cycle.
func ResolveUnit(hint string, fields []string) (string, error) {
	switch {
	case hint == "":
		return "", nil
	case strings.HasPrefix(hint, "#") && isDigits(hint[1:]):
		n, _ := strconv.Atoi(hint[1:])
		if n < 1 || n >= len(fields) {
			return "", fmt.Errorf("nmea0183: unit ref %q outside sentence", hint)
		}
		return TranslateUnit(fields[n]), nil
	case IsGPSHint(hint):
		return "°", nil
	default:
		return hint, nil
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
