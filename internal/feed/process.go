package feed

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"smart0183d/internal/catalog"
	"smart0183d/internal/measure"
	"smart0183d/internal/nmea0183"
)

// throttleKeyLen keys the throttle on "$GPGGA"-style prefixes: one gate
// per talker and sentence type.
const throttleKeyLen = 6

// HandleLine feeds one raw line through the pipeline. Sources call it
// from their read goroutine with the receive time.
func (s *Service) HandleLine(nowUTC time.Time, line string) {
	s.lines.Add(1)

	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if !utf8.ValidString(line) {
		s.invalidUTF8.Add(1)
		return
	}

	// Raw fan-out sees every sentence, including AIS "!" lines the decoder
	// has no use for, and is never throttled.
	if s.cfg.OnRaw != nil && (line[0] == '$' || line[0] == '!') {
		s.cfg.OnRaw(line)
	}

	key := line
	if len(key) > throttleKeyLen {
		key = key[:throttleKeyLen]
	}
	if !s.throttle.Allow(key, nowUTC) {
		s.throttled.Add(1)
		return
	}

	s.process(nowUTC, line)
}

func (s *Service) process(nowUTC time.Time, line string) {
	sent, err := nmea0183.Decode(line)
	if err != nil {
		if errors.Is(err, nmea0183.ErrMalformed) {
			s.malformed.Add(1)
			s.log.Debug().Err(err).Str("line", line).Msg("malformed sentence")
		} else {
			s.skipped.Add(1)
		}
		return
	}
	s.processed.Add(1)

	for idx := 1; idx < len(sent.Fields)-1; idx++ {
		desc, ok := s.cfg.Catalog.Lookup(sent.Type, idx)
		if !ok {
			continue
		}

		unit, err := nmea0183.ResolveUnit(desc.Unit, sent.Fields)
		if err != nil {
			s.skippedFields.Add(1)
			s.log.Warn().Err(err).
				Str("field", sent.Type+"_"+strconv.Itoa(idx)).
				Msg("unit did not resolve")
			continue
		}

		key := sent.DeviceID + "_" + sent.Type + "_" + strconv.Itoa(idx)
		deviceName := desc.SentenceDescription + " (" + sent.DeviceID + ")"
		value := sent.Fields[idx]

		s.reg.Upsert(nowUTC, measure.Update{
			Key:          key,
			DisplayName:  desc.FullDescription,
			Group:        desc.Group,
			Unit:         unit,
			DeviceName:   deviceName,
			SentenceType: sent.Type,
			Value:        value,
		})

		if nmea0183.IsGPSHint(desc.Unit) {
			s.deriveCoordinate(nowUTC, sent, desc, key, value, deviceName)
		}
	}
}

// deriveCoordinate maintains the "<key>_decimal" companion of a raw
// coordinate field. Failures skip only the companion; the raw field was
// already recorded.
func (s *Service) deriveCoordinate(nowUTC time.Time, sent nmea0183.Sentence, desc catalog.Descriptor, key, raw, deviceName string) {
	d, err := nmea0183.ParseGPSDirective(desc.Unit)
	if err != nil {
		s.convertErrors.Add(1)
		s.log.Warn().Err(err).Str("key", key).Msg("coordinate conversion failed")
		return
	}
	if d.HemisphereIndex >= len(sent.Fields) {
		s.convertErrors.Add(1)
		s.log.Warn().
			Int("index", d.HemisphereIndex).
			Str("key", key).
			Msg("hemisphere index outside sentence")
		return
	}
	if raw == "" {
		// No fix yet.
		s.log.Debug().Str("key", key).Msg("no coordinate data")
		return
	}

	hemi := strings.TrimSpace(sent.Fields[d.HemisphereIndex])
	var v float64
	if d.Longitude {
		v, err = nmea0183.ParseLongitude(raw, hemi)
	} else {
		v, err = nmea0183.ParseLatitude(raw, hemi)
	}
	if err != nil {
		s.convertErrors.Add(1)
		s.log.Warn().Err(err).Str("key", key).Msg("coordinate conversion failed")
		return
	}

	s.reg.Upsert(nowUTC, measure.Update{
		Key:          key + "_decimal",
		DisplayName:  desc.FullDescription + " Decimal Conversion",
		Group:        desc.Group,
		Unit:         "°",
		DeviceName:   deviceName,
		SentenceType: sent.Type,
		Value:        strconv.FormatFloat(v, 'f', 6, 64),
	})
}
