package telemetry

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigFastest

// Accepted layouts for the record timestamp, tried in order. The first two
// cover RFC 3339 with and without sub-second precision; the last covers
// producers that omit the zone designator.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Record is a decoded telemetry payload. Only "type" and "timestamp" are
// interpreted; every other field passes through to the output verbatim.
type Record map[string]any

// MalformedRecordError marks a record that cannot be partitioned because a
// required field is missing or unparsable. Such records are dropped from the
// flush, never fatal to it.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: field %q %s", e.Field, e.Reason)
}

// PartitionKey identifies one append target: all records of the same type
// logged within the same hour share a key.
type PartitionKey struct {
	Type string
	Date string // YYYYMMDD
	Hour string // HH, zero-padded
}

// TargetName returns the append target name for the key.
func (k PartitionKey) TargetName() string {
	return fmt.Sprintf("%s.%s.%s.fd", k.Type, k.Date, k.Hour)
}

// KeyOf derives the partition key from a record's type and timestamp fields.
// The hour is the wall-clock hour of the timestamp as written, without zone
// conversion, so producers control which hourly target their records land in.
func KeyOf(r Record) (PartitionKey, error) {
	recType, ok := r["type"].(string)
	if !ok || recType == "" {
		return PartitionKey{}, &MalformedRecordError{Field: "type", Reason: "missing or not a string"}
	}

	rawTS, ok := r["timestamp"].(string)
	if !ok || rawTS == "" {
		return PartitionKey{}, &MalformedRecordError{Field: "timestamp", Reason: "missing or not a string"}
	}

	var ts time.Time
	var err error
	for _, layout := range timestampLayouts {
		ts, err = time.Parse(layout, rawTS)
		if err == nil {
			break
		}
	}
	if err != nil {
		return PartitionKey{}, &MalformedRecordError{Field: "timestamp", Reason: fmt.Sprintf("not ISO-8601: %q", rawTS)}
	}

	return PartitionKey{
		Type: recType,
		Date: ts.Format("20060102"),
		Hour: ts.Format("15"),
	}, nil
}
