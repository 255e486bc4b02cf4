// Package nmea0183 decodes NMEA-0183 sentence lines and the unit
// conventions marine instrument catalogs attach to their fields.
package nmea0183

import (
	"errors"
	"fmt"
	"strings"
)

// Decode errors. Callers dispatch with errors.Is: a line that is not a
// sentence is skipped silently, a malformed sentence is trace noise.
var (
	ErrNotASentence = errors.New("nmea0183: not a sentence")
	ErrMalformed    = errors.New("nmea0183: malformed sentence")
)

// Sentence is one decoded NMEA-0183 line.
type Sentence struct {
	// SentenceID is the five characters after '$': talker + type ("GPGGA").
	SentenceID string
	// DeviceID is the two-letter talker prefix ("GP").
	DeviceID string
	// Type is the three-letter sentence type ("GGA").
	Type string
	// Fields is the full comma split, including the leading "$GPGGA" token
	// and the trailing check field. Data fields are 1..len(Fields)-2.
	Fields []string
}

// Decode splits line into a Sentence. The checksum is separated into a
// trailing field of its own but never verified.
func Decode(line string) (Sentence, error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] != '$' {
		return Sentence{}, ErrNotASentence
	}
	// Cut the checksum into its own field: "...,E*47" -> "...,E,47".
	if star := strings.LastIndexByte(line, '*'); star != -1 && star >= len(line)-3 {
		line = line[:star] + "," + line[star+1:]
	}
	fields := strings.Split(line, ",")
	if len(fields[0]) < 6 {
		return Sentence{}, fmt.Errorf("%w: short header %q", ErrMalformed, fields[0])
	}
	id := fields[0][1:6]
	return Sentence{
		SentenceID: id,
		DeviceID:   id[:2],
		Type:       id[2:],
		Fields:     fields,
	}, nil
}
