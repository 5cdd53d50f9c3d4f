// Package hub defines the data model shared by providers and consumers of the
// variable bus: variable definitions, provider definition sets, the typed
// value union, quality and timestamps.
//
// Values enter the system untyped (decoded JSON, user payloads). InferType
// picks a DataType for a new variable at that boundary, and Coerce converts
// a raw value to the declared type of an existing variable. The wire codec
// only ever sees a typed Value.
//
//	dt := hub.InferType(payload)        // 42 -> INT64, 1.5 -> FLOAT64
//	v, err := hub.Coerce(dt, payload)   // nil -> zero value of dt
package hub
