package hub

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/c360/datahub/errors"
)

// Value is a tagged union holding exactly one of int64, float64, bool or string.
// The zero Value has kind DataTypeUnknown.
type Value struct {
	kind DataType
	i    int64
	f    float64
	b    bool
	s    string
}

// Int64Value returns an INT64 value.
func Int64Value(v int64) Value { return Value{kind: DataTypeInt64, i: v} }

// Float64Value returns a FLOAT64 value.
func Float64Value(v float64) Value { return Value{kind: DataTypeFloat64, f: v} }

// BoolValue returns a BOOLEAN value.
func BoolValue(v bool) Value { return Value{kind: DataTypeBoolean, b: v} }

// StringValue returns a STRING value.
func StringValue(v string) Value { return Value{kind: DataTypeString, s: v} }

// ZeroValue returns the zero value for d: false, 0, 0.0 or "".
// Unknown types fall back to the empty string.
func ZeroValue(d DataType) Value {
	switch d {
	case DataTypeBoolean:
		return BoolValue(false)
	case DataTypeInt64:
		return Int64Value(0)
	case DataTypeFloat64:
		return Float64Value(0)
	default:
		return StringValue("")
	}
}

// Kind returns which member of the union is set.
func (v Value) Kind() DataType { return v.kind }

// Int64 returns the INT64 member.
func (v Value) Int64() int64 { return v.i }

// Float64 returns the FLOAT64 member.
func (v Value) Float64() float64 { return v.f }

// Bool returns the BOOLEAN member.
func (v Value) Bool() bool { return v.b }

// Str returns the STRING member.
func (v Value) Str() string { return v.s }

// Interface returns the set member as a plain Go value, or nil for an unset Value.
func (v Value) Interface() any {
	switch v.kind {
	case DataTypeBoolean:
		return v.b
	case DataTypeInt64:
		return v.i
	case DataTypeFloat64:
		return v.f
	case DataTypeString:
		return v.s
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case DataTypeBoolean:
		return strconv.FormatBool(v.b)
	case DataTypeInt64:
		return strconv.FormatInt(v.i, 10)
	case DataTypeFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case DataTypeString:
		return v.s
	default:
		return "<unset>"
	}
}

// MarshalJSON encodes the set member as a plain JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == DataTypeFloat64 && (math.IsNaN(v.f) || math.IsInf(v.f, 0)) {
		return json.Marshal(v.String())
	}
	return json.Marshal(v.Interface())
}

// InferType picks a DataType for a raw ingested value: booleans are BOOLEAN,
// integral numbers INT64, other numbers FLOAT64 and everything else STRING.
func InferType(v any) DataType {
	switch n := v.(type) {
	case bool:
		return DataTypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return DataTypeInt64
	case float32:
		return inferFloat(float64(n))
	case float64:
		return inferFloat(n)
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return DataTypeInt64
		}
		if f, err := n.Float64(); err == nil {
			return inferFloat(f)
		}
		return DataTypeString
	case Value:
		if n.kind.Valid() {
			return n.kind
		}
		return DataTypeString
	default:
		return DataTypeString
	}
}

func inferFloat(f float64) DataType {
	if !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return DataTypeInt64
	}
	return DataTypeFloat64
}

// Coerce converts a raw value to the declared type d. The result is always a
// set union member: nil, and anything that does not convert (a non-numeric
// string or an object for a numeric slot, NaN for INT64), yields the zero
// value of d. Structured values destined for a STRING slot are rendered as
// JSON text. Only channels, functions and complex numbers fail, with
// errors.ErrUnsupportedValueType.
func Coerce(d DataType, raw any) (Value, error) {
	if raw == nil {
		return ZeroValue(d), nil
	}
	if v, ok := raw.(Value); ok {
		if v.kind == d {
			return v, nil
		}
		raw = v.Interface()
		if raw == nil {
			return ZeroValue(d), nil
		}
	}
	if err := checkEncodable(raw); err != nil {
		return Value{}, err
	}

	switch d {
	case DataTypeBoolean:
		return BoolValue(truthy(raw)), nil
	case DataTypeInt64:
		f, ok := toFloat(raw)
		if !ok {
			return ZeroValue(d), nil
		}
		if i, ok := raw.(int64); ok {
			return Int64Value(i), nil
		}
		if u, ok := raw.(uint64); ok {
			return Int64Value(int64(min(u, math.MaxInt64))), nil
		}
		return Int64Value(truncInt64(f)), nil
	case DataTypeFloat64:
		f, ok := toFloat(raw)
		if !ok {
			return ZeroValue(d), nil
		}
		return Float64Value(f), nil
	default:
		return StringValue(toString(raw)), nil
	}
}

// truncInt64 truncates f toward zero, saturating at the int64 bounds.
// NaN and infinities become zero.
func truncInt64(f float64) int64 {
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(math.Trunc(f))
}

func checkEncodable(raw any) error {
	switch reflect.ValueOf(raw).Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return fmt.Errorf("%w: %T", errors.ErrUnsupportedValueType, raw)
	}
	return nil
}

func truthy(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
		return v != ""
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return !rv.IsNil()
	}
	return true
}

func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func toString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case json.Number:
		return v.String()
	}
	switch reflect.ValueOf(raw).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		if b, err := json.Marshal(raw); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(raw)
}
