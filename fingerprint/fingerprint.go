// Package fingerprint computes the identity of a provider definition set.
//
// Every implementation on the bus must produce the same value for the same
// set, so the canonical record form is fixed: definitions are ordered by ID
// and each contributes
//
//	{id}:{key}:{DATA_TYPE}:{ACCESS}:{experimental}
//
// to a single running SHA-256, with no separator between records. Enum
// tokens are the upper-case names (INT64, FLOAT64, BOOLEAN, STRING,
// READ_ONLY, READ_WRITE) and the flag is the lower-case literal true or
// false. The fingerprint is the first eight digest bytes read big-endian.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/c360/datahub/hub"
)

// Empty is the fingerprint of a set with no definitions.
const Empty uint64 = 0xe3b0c44298fc1c14

// Compute returns the fingerprint of defs. The input order is irrelevant
// and defs is not modified.
func Compute(defs []hub.VariableDefinition) uint64 {
	h := sha256.New()
	for _, def := range hub.SortByID(defs) {
		writeRecord(h, def)
	}
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// Record returns the canonical text a single definition contributes.
func Record(def hub.VariableDefinition) string {
	b := make([]byte, 0, len(def.Key)+40)
	b = strconv.AppendUint(b, uint64(def.ID), 10)
	b = append(b, ':')
	b = append(b, def.Key...)
	b = append(b, ':')
	b = append(b, def.DataType.String()...)
	b = append(b, ':')
	b = append(b, def.Access.String()...)
	b = append(b, ':')
	b = strconv.AppendBool(b, def.Experimental)
	return string(b)
}

func writeRecord(w io.Writer, def hub.VariableDefinition) {
	_, _ = io.WriteString(w, Record(def))
}

// Matches reports whether fp is the fingerprint of defs.
func Matches(fp uint64, defs []hub.VariableDefinition) bool {
	return Compute(defs) == fp
}
