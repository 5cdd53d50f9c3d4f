package fbs

import flatbuffers "github.com/google/flatbuffers/go"

// Timestamp is an inline struct: seconds at offset 0, nanos at offset 8, 16 bytes total.
type Timestamp struct {
	_tab flatbuffers.Struct
}

func (rcv *Timestamp) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *Timestamp) Seconds() int64 {
	return rcv._tab.GetInt64(rcv._tab.Pos + flatbuffers.UOffsetT(0))
}

func (rcv *Timestamp) Nanos() int32 {
	return rcv._tab.GetInt32(rcv._tab.Pos + flatbuffers.UOffsetT(8))
}

// CreateTimestamp writes the struct inline. It must be called directly
// before the Add call that stores it, while the owning table is open.
func CreateTimestamp(builder *flatbuffers.Builder, seconds int64, nanos int32) flatbuffers.UOffsetT {
	builder.Prep(8, 16)
	builder.Pad(4)
	builder.PrependInt32(nanos)
	builder.PrependInt64(seconds)
	return builder.Offset()
}
