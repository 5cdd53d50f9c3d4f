package timestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitJoin(t *testing.T) {
	tests := []struct {
		name      string
		in        time.Time
		wantSec   int64
		wantNanos int32
	}{
		{"epoch", time.Unix(0, 0), 0, 0},
		{"whole seconds", time.Unix(1700000000, 0), 1700000000, 0},
		{"fractional", time.Unix(1700000000, 123456789), 1700000000, 123456789},
		{"pre-1970 fractional", time.Unix(-1, 500000000), -1, 500000000},
		{"pre-1970 from negative nanos", time.Unix(0, -250000000), -1, 750000000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sec, nanos := Split(tt.in)
			assert.Equal(t, tt.wantSec, sec)
			assert.Equal(t, tt.wantNanos, nanos)
			assert.GreaterOrEqual(t, nanos, int32(0))
			assert.Less(t, nanos, int32(1e9))
			assert.True(t, tt.in.Equal(Join(sec, nanos)))
		})
	}
}

func TestJoin_NormalizesNanos(t *testing.T) {
	assert.True(t, time.Unix(2, 500).Equal(Join(1, 1000000500)))
	assert.True(t, time.Unix(0, 999999999).Equal(Join(1, -1)))
}

func TestParse(t *testing.T) {
	ref := time.Date(2023, 1, 15, 12, 30, 45, 0, time.UTC)

	tests := []struct {
		name   string
		input  any
		want   time.Time
		wantOK bool
	}{
		{"nil", nil, time.Time{}, false},
		{"time", ref, ref, true},
		{"pointer", &ref, ref, true},
		{"int64 ms", ref.UnixMilli(), ref, true},
		{"int ms", int(ref.UnixMilli()), ref, true},
		{"float ms", float64(ref.UnixMilli()), ref, true},
		{"rfc3339", "2023-01-15T12:30:45Z", ref, true},
		{"rfc3339 nano", "2023-01-15T12:30:45.000Z", ref, true},
		{"numeric string", "1673785845000", ref, true},
		{"garbage", "yesterday", time.Time{}, false},
		{"empty", "", time.Time{}, false},
		{"unsupported", struct{}{}, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(0, 0))
	assert.NoError(t, Validate(-1, 999999999))
	assert.Error(t, Validate(0, -1))
	assert.Error(t, Validate(0, 1000000000))
	assert.Error(t, Validate(253402300800, 0))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(time.Time{}))
	assert.Equal(t, "2023-01-15T12:30:45Z", Format(time.Date(2023, 1, 15, 12, 30, 45, 0, time.UTC)))
}
