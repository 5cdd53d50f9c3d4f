// Package fbs holds the FlatBuffers table accessors and builders for the
// hub wire schema in hub.fbs. The layout follows what flatc emits for Go:
// one reader type per table wrapping flatbuffers.Table, plus Start/Add/End
// builder functions. Field slots and defaults must stay in step with
// hub.fbs.
package fbs
