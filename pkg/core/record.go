// Package core holds the shared data model for the location broadcast
// pipeline: identifiers, location records and snapshots.
package core

import (
	"math"
	"time"
)

// Identifier is the opaque, case-sensitive key a participant broadcasts
// under. In the original demo this is a phone number, but nothing in the
// pipeline interprets it.
type Identifier string

// LocationRecord is a single broadcast location fix. Records are treated
// as immutable once published.
type LocationRecord struct {
	Identifier Identifier `json:"identifier"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Accuracy   *float64   `json:"accuracy,omitempty"` // meters, optional
	Timestamp  int64      `json:"timestamp"`          // epoch milliseconds
}

// HasValidPosition reports whether the record carries usable coordinates:
// finite numbers with latitude in [-90,90] and longitude in [-180,180].
// Records failing this check are excluded from rendering, never rejected
// with an error.
func (r LocationRecord) HasValidPosition() bool {
	if math.IsNaN(r.Latitude) || math.IsInf(r.Latitude, 0) {
		return false
	}
	if math.IsNaN(r.Longitude) || math.IsInf(r.Longitude, 0) {
		return false
	}
	return r.Latitude >= -90 && r.Latitude <= 90 &&
		r.Longitude >= -180 && r.Longitude <= 180
}

// Position returns the record's coordinates as a Position.
func (r LocationRecord) Position() Position {
	return Position{Lat: r.Latitude, Lon: r.Longitude}
}

// Time converts the epoch-millisecond timestamp to a time.Time.
func (r LocationRecord) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Snapshot is a full replacement of the broadcast roster: every currently
// published record keyed by identifier. Deltas are never exchanged.
type Snapshot map[Identifier]LocationRecord

// Clone returns a shallow copy of the snapshot. Records are value types,
// so the copy is safe to hand to another goroutine.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
