// Package parser handles the compact publish line format used by the
// /publish text path and the demo publisher:
//
//	identifier,lat,lon[,accuracy[,timestampMillis]]
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/locshare/locshare/pkg/core"
)

// ErrMalformedRecord is returned when a line cannot be parsed.
var ErrMalformedRecord = errors.New("malformed location record")

// ParseLine parses one publish line. The timestamp defaults to the current
// time when omitted. Coordinates are parsed, not validated; range checks
// happen at render time so an out-of-range record is stored but never drawn.
func ParseLine(line string) (core.LocationRecord, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 3 || len(fields) > 5 {
		return core.LocationRecord{}, fmt.Errorf("%w: expected 3 to 5 fields, got %d", ErrMalformedRecord, len(fields))
	}

	id := strings.TrimSpace(fields[0])
	if id == "" {
		return core.LocationRecord{}, fmt.Errorf("%w: empty identifier", ErrMalformedRecord)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return core.LocationRecord{}, fmt.Errorf("%w: latitude: %v", ErrMalformedRecord, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return core.LocationRecord{}, fmt.Errorf("%w: longitude: %v", ErrMalformedRecord, err)
	}

	rec := core.LocationRecord{
		Identifier: core.Identifier(id),
		Latitude:   lat,
		Longitude:  lon,
		Timestamp:  time.Now().UnixMilli(),
	}

	if len(fields) > 3 && strings.TrimSpace(fields[3]) != "" {
		acc, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		if err != nil {
			return core.LocationRecord{}, fmt.Errorf("%w: accuracy: %v", ErrMalformedRecord, err)
		}
		rec.Accuracy = &acc
	}

	if len(fields) > 4 {
		ts, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64)
		if err != nil {
			return core.LocationRecord{}, fmt.Errorf("%w: timestamp: %v", ErrMalformedRecord, err)
		}
		rec.Timestamp = ts
	}

	return rec, nil
}

// FormatLine renders a record back into the publish line format.
func FormatLine(rec core.LocationRecord) string {
	var b strings.Builder
	b.WriteString(string(rec.Identifier))
	b.WriteString(",")
	b.WriteString(strconv.FormatFloat(rec.Latitude, 'f', -1, 64))
	b.WriteString(",")
	b.WriteString(strconv.FormatFloat(rec.Longitude, 'f', -1, 64))
	if rec.Accuracy != nil {
		b.WriteString(",")
		b.WriteString(strconv.FormatFloat(*rec.Accuracy, 'f', -1, 64))
	} else if rec.Timestamp != 0 {
		b.WriteString(",")
	}
	if rec.Timestamp != 0 {
		b.WriteString(",")
		b.WriteString(strconv.FormatInt(rec.Timestamp, 10))
	}
	return b.String()
}
