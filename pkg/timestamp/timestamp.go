// Package timestamp converts between time.Time and the hub's wire timestamps.
//
// The wire form is a (seconds, nanos) pair where nanos always lies in
// [0, 1e9). Instants before 1970 therefore carry negative seconds and a
// positive nanosecond remainder, never negative nanos.
//
// Values arriving at the ingestion boundary may carry a timestamp as a
// time.Time, Unix milliseconds or an RFC3339 string; Parse normalizes all
// of them.
//
//	sec, nanos := timestamp.Split(t)
//	t = timestamp.Join(sec, nanos)
//
//	ts, ok := timestamp.Parse("2023-01-15T12:30:45Z")
package timestamp

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

const nanosPerSecond = int64(time.Second)

// Epoch is the instant a decoded message falls back to when it carries no timestamp.
var Epoch = time.Unix(0, 0).UTC()

// Split returns t as whole seconds since the Unix epoch and a nanosecond
// remainder in [0, 1e9).
func Split(t time.Time) (seconds int64, nanos int32) {
	seconds = t.Unix()
	n := int64(t.Nanosecond())
	return seconds, int32(n)
}

// Join rebuilds a UTC time from seconds and nanos. Out-of-range nanos are
// carried into seconds.
func Join(seconds int64, nanos int32) time.Time {
	n := int64(nanos)
	seconds += floorDiv(n, nanosPerSecond)
	n = floorMod(n, nanosPerSecond)
	return time.Unix(seconds, n).UTC()
}

// FromUnixMs converts Unix milliseconds to time.Time.
func FromUnixMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Parse converts the timestamp representations accepted at the ingestion
// boundary into a time.Time. Supported inputs:
//   - time.Time and *time.Time
//   - integers and floats, read as Unix milliseconds
//   - strings in RFC3339 (with or without fractional seconds) or numeric milliseconds
//
// ok is false for nil, zero and unparseable input.
func Parse(input any) (time.Time, bool) {
	switch v := input.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case int64:
		return FromUnixMs(v), true
	case int:
		return FromUnixMs(int64(v)), true
	case int32:
		return FromUnixMs(int64(v)), true
	case uint32:
		return FromUnixMs(int64(v)), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, false
		}
		ms := math.Floor(v)
		frac := v - ms
		return FromUnixMs(int64(ms)).Add(time.Duration(frac * float64(time.Millisecond))), true
	case string:
		if v == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return FromUnixMs(ms), true
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return Parse(f)
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

// Format renders t for logs and status text. The zero time renders empty.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Validate checks that seconds and nanos form a legal wire timestamp.
func Validate(seconds int64, nanos int32) error {
	if nanos < 0 || int64(nanos) >= nanosPerSecond {
		return fmt.Errorf("timestamp nanos out of range: %d", nanos)
	}
	// year 1 .. 9999 keeps RFC3339 rendering valid
	if seconds < -62135596800 || seconds > 253402300799 {
		return fmt.Errorf("timestamp seconds out of range: %d", seconds)
	}
	return nil
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
