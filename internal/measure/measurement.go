// Package measure holds the per-source measurement registry: a
// dynamically growing set of decoded instrument readings with staleness
// tracking.
package measure

import "time"

// Measurement is one decoded instrument reading. Identity fields are set
// when the key is first seen and never change; Value, LastUpdated and
// Available track the latest sight.
type Measurement struct {
	Key          string    `json:"key"`
	DisplayName  string    `json:"display_name"`
	Value        string    `json:"value"`
	Group        string    `json:"group"`
	Unit         string    `json:"unit,omitempty"`
	DeviceName   string    `json:"device_name"`
	SentenceType string    `json:"sentence_type"`
	LastUpdated  time.Time `json:"last_updated"`
	Available    bool      `json:"available"`
}

// Observer receives registry lifecycle callbacks. Callbacks run on the
// upserting goroutine, outside the registry lock.
type Observer interface {
	OnNewMeasurement(m Measurement)
	OnMeasurementUpdated(m Measurement)
}
