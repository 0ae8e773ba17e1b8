// Package synth fabricates dashboard security events from cached feed data.
package synth

import (
	"time"

	"threatdash/internal/common"
)

// Location is a point on the threat map.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Class says which path produced an event.
type Class string

const (
	ClassExploit    Class = "exploit"
	ClassHost       Class = "host"
	ClassFabricated Class = "fabricated"
)

// Event is one synthesized security event as streamed to dashboard clients.
type Event struct {
	Timestamp     time.Time       `json:"timestamp"`
	Type          string          `json:"type"`
	SourceAddress string          `json:"source_ip"`
	Severity      common.Severity `json:"severity"`
	Confidence    float64         `json:"confidence"`
	Location      Location        `json:"location"`
	CountryCode   string          `json:"country,omitempty"`
	Detail        string          `json:"details,omitempty"`
	Class         Class           `json:"-"`
}
