// Package codec encodes and decodes hub messages in the FlatBuffers wire
// format described by fbs/hub.fbs.
//
// Encoders take typed hub values and never leave a value union unset: a
// state whose value does not match its definition's type is coerced (see
// hub.Coerce) before it is written. Decoders never panic on malformed
// input; they return an error wrapping errors.ErrInvalidData.
package codec

import (
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/c360/datahub/codec/fbs"
	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/hub"
	"github.com/c360/datahub/pkg/timestamp"
)

const initialBufferSize = 1024

// now is replaced in tests.
var now = time.Now

func decode[T any](payload []byte, what string, fn func() (T, error)) (out T, err error) {
	if len(payload) < flatbuffers.SizeUOffsetT*2 {
		return out, errors.WrapInvalid(
			fmt.Errorf("%w: %d byte payload", errors.ErrInvalidData, len(payload)),
			"Codec", "Decode"+what, "payload length check")
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidData, r),
				"Codec", "Decode"+what, "table traversal")
		}
	}()
	return fn()
}

func toWireDataType(d hub.DataType) fbs.VariableDataType {
	if !d.Valid() {
		return fbs.VariableDataTypeSTRING
	}
	return fbs.VariableDataType(d)
}

func fromWireDataType(d fbs.VariableDataType) hub.DataType {
	dt := hub.DataType(d)
	if !dt.Valid() {
		return hub.DataTypeUnknown
	}
	return dt
}

func toWireAccess(a hub.Access) fbs.VariableAccessType {
	if a == hub.AccessReadWrite {
		return fbs.VariableAccessTypeREAD_WRITE
	}
	return fbs.VariableAccessTypeREAD_ONLY
}

func fromWireAccess(a fbs.VariableAccessType) hub.Access {
	if a == fbs.VariableAccessTypeREAD_WRITE {
		return hub.AccessReadWrite
	}
	return hub.AccessReadOnly
}

func toWireQuality(q hub.Quality) fbs.VariableQuality {
	if q > hub.QualityGoodLocalOverride {
		return fbs.VariableQualityGOOD
	}
	return fbs.VariableQuality(q)
}

func fromWireQuality(q fbs.VariableQuality) hub.Quality {
	if q > fbs.VariableQualityGOOD_LOCAL_OVERRIDE {
		return hub.QualityGood
	}
	return hub.Quality(q)
}

func readTimestamp(ts *fbs.Timestamp) (time.Time, bool) {
	if ts == nil {
		return time.Time{}, false
	}
	return timestamp.Join(ts.Seconds(), ts.Nanos()), true
}
