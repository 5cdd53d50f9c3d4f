package provider

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/c360/datahub/hub"
)

// Entry is one leaf of an ingested payload
type Entry struct {
	Key       string
	Value     any
	Quality   hub.Quality
	Timestamp time.Time // zero means "now"
}

// Flatten turns a nested payload into dotted leaf keys. Maps contribute
// "parent.child", slices "parent[i]". A map holding "value" together with
// "quality" or "timestamp" is an extended value and stays a single leaf.
// A scalar at the root gets the key "value". Nil leaves are skipped.
// Map keys are visited in sorted order so new variables get stable IDs.
func Flatten(prefix string, payload any) []Entry {
	var out []Entry
	flatten(prefix, payload, &out)
	return out
}

func flatten(prefix string, v any, out *[]Entry) {
	if v == nil {
		return
	}

	switch t := v.(type) {
	case hub.Value:
		*out = append(*out, Entry{Key: leafKey(prefix), Value: t})
		return
	case time.Time:
		*out = append(*out, Entry{Key: leafKey(prefix), Value: t.Format(time.RFC3339Nano)})
		return
	case json.Number:
		*out = append(*out, Entry{Key: leafKey(prefix), Value: t})
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			*out = append(*out, Entry{Key: leafKey(prefix), Value: v})
			return
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		if e, ok := extendedValue(prefix, m); ok {
			if e.Value != nil {
				*out = append(*out, e)
			}
			return
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(join(prefix, k), m[k], out)
		}
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			*out = append(*out, Entry{Key: leafKey(prefix), Value: v})
			return
		}
		for i := 0; i < rv.Len(); i++ {
			flatten(prefix+"["+strconv.Itoa(i)+"]", rv.Index(i).Interface(), out)
		}
	case reflect.Pointer:
		if rv.IsNil() {
			return
		}
		flatten(prefix, rv.Elem().Interface(), out)
	default:
		*out = append(*out, Entry{Key: leafKey(prefix), Value: v})
	}
}

func extendedValue(prefix string, m map[string]any) (Entry, bool) {
	val, hasValue := m["value"]
	q, hasQuality := m["quality"]
	ts, hasTimestamp := m["timestamp"]
	if !hasValue || (!hasQuality && !hasTimestamp) {
		return Entry{}, false
	}

	e := Entry{Key: leafKey(prefix), Value: val}
	if hasQuality && q != nil {
		e.Quality = hub.ParseQuality(fmt.Sprint(q))
	}
	if hasTimestamp {
		e.Timestamp = parseTimestamp(ts)
	}
	return e, true
}

// parseTimestamp accepts time.Time, Unix milliseconds or RFC 3339 text.
// Anything else yields the zero time.
func parseTimestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case float64:
		return time.UnixMilli(int64(t))
	case int64:
		return time.UnixMilli(t)
	case int:
		return time.UnixMilli(int64(t))
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			return time.UnixMilli(ms)
		}
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
	}
	return time.Time{}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func leafKey(prefix string) string {
	if prefix == "" {
		return "value"
	}
	return strings.TrimSpace(prefix)
}
