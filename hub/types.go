package hub

import "strings"

// DataType is the declared type of a variable. Numeric values match the wire enum.
type DataType uint8

const (
	// DataTypeUnknown is only produced when decoding an unspecified or unrecognized wire value.
	DataTypeUnknown DataType = iota
	DataTypeBoolean
	DataTypeInt64
	DataTypeFloat64
	DataTypeString
)

func (d DataType) String() string {
	switch d {
	case DataTypeBoolean:
		return "BOOLEAN"
	case DataTypeInt64:
		return "INT64"
	case DataTypeFloat64:
		return "FLOAT64"
	case DataTypeString:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether d names a concrete type.
func (d DataType) Valid() bool {
	return d >= DataTypeBoolean && d <= DataTypeString
}

// ParseDataType accepts the canonical names case-insensitively, plus "BOOL" and "DOUBLE".
func ParseDataType(s string) DataType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BOOLEAN", "BOOL":
		return DataTypeBoolean
	case "INT64", "INT", "INTEGER":
		return DataTypeInt64
	case "FLOAT64", "FLOAT", "DOUBLE":
		return DataTypeFloat64
	case "STRING":
		return DataTypeString
	default:
		return DataTypeUnknown
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d DataType) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DataType) UnmarshalText(b []byte) error {
	*d = ParseDataType(string(b))
	return nil
}

// Access is the access mode of a variable. Numeric values match the wire enum.
type Access uint8

const (
	AccessUnspecified Access = iota
	AccessReadOnly
	AccessReadWrite
)

func (a Access) String() string {
	switch a {
	case AccessReadOnly:
		return "READ_ONLY"
	case AccessReadWrite:
		return "READ_WRITE"
	default:
		return "UNSPECIFIED"
	}
}

// Writable reports whether consumers may write the variable.
func (a Access) Writable() bool { return a == AccessReadWrite }

// ParseAccess maps "READ_WRITE" (any case) to AccessReadWrite and everything else to AccessReadOnly.
func ParseAccess(s string) Access {
	if strings.EqualFold(strings.TrimSpace(s), "READ_WRITE") {
		return AccessReadWrite
	}
	return AccessReadOnly
}

// MarshalText implements encoding.TextMarshaler.
func (a Access) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Access) UnmarshalText(b []byte) error {
	*a = ParseAccess(string(b))
	return nil
}

// Quality describes how trustworthy a value is. Numeric values match the wire enum.
type Quality uint8

const (
	QualityGood Quality = iota
	QualityBad
	QualityUncertain
	// QualityGoodLocalOverride marks a value set by a consumer write rather than its source.
	QualityGoodLocalOverride
)

func (q Quality) String() string {
	switch q {
	case QualityBad:
		return "BAD"
	case QualityUncertain:
		return "UNCERTAIN"
	case QualityGoodLocalOverride:
		return "GOOD_LOCAL_OVERRIDE"
	default:
		return "GOOD"
	}
}

// ParseQuality is case-insensitive; unknown names yield QualityGood.
func ParseQuality(s string) Quality {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BAD":
		return QualityBad
	case "UNCERTAIN":
		return QualityUncertain
	case "GOOD_LOCAL_OVERRIDE":
		return QualityGoodLocalOverride
	default:
		return QualityGood
	}
}

// MarshalText implements encoding.TextMarshaler.
func (q Quality) MarshalText() ([]byte, error) { return []byte(q.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Quality) UnmarshalText(b []byte) error {
	*q = ParseQuality(string(b))
	return nil
}

// RegistryState is the lifecycle state the hub registry broadcasts.
type RegistryState uint8

const (
	RegistryStateUnspecified RegistryState = iota
	RegistryStateRunning
	RegistryStateStopped
)

func (r RegistryState) String() string {
	switch r {
	case RegistryStateRunning:
		return "RUNNING"
	case RegistryStateStopped:
		return "STOPPED"
	default:
		return "UNSPECIFIED"
	}
}
