package fbs

import flatbuffers "github.com/google/flatbuffers/go"

type VariableValueBoolean struct {
	_tab flatbuffers.Table
}

func (rcv *VariableValueBoolean) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *VariableValueBoolean) Value() bool {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetBool(o + rcv._tab.Pos)
	}
	return false
}

func VariableValueBooleanStart(builder *flatbuffers.Builder) { builder.StartObject(1) }
func VariableValueBooleanAddValue(builder *flatbuffers.Builder, value bool) {
	builder.PrependBoolSlot(0, value, false)
}
func VariableValueBooleanEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type VariableValueInt64 struct {
	_tab flatbuffers.Table
}

func (rcv *VariableValueInt64) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *VariableValueInt64) Value() int64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetInt64(o + rcv._tab.Pos)
	}
	return 0
}

func VariableValueInt64Start(builder *flatbuffers.Builder) { builder.StartObject(1) }
func VariableValueInt64AddValue(builder *flatbuffers.Builder, value int64) {
	builder.PrependInt64Slot(0, value, 0)
}
func VariableValueInt64End(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type VariableValueFloat64 struct {
	_tab flatbuffers.Table
}

func (rcv *VariableValueFloat64) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *VariableValueFloat64) Value() float64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetFloat64(o + rcv._tab.Pos)
	}
	return 0.0
}

func VariableValueFloat64Start(builder *flatbuffers.Builder) { builder.StartObject(1) }
func VariableValueFloat64AddValue(builder *flatbuffers.Builder, value float64) {
	builder.PrependFloat64Slot(0, value, 0.0)
}
func VariableValueFloat64End(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type VariableValueString struct {
	_tab flatbuffers.Table
}

func (rcv *VariableValueString) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *VariableValueString) Value() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

func VariableValueStringStart(builder *flatbuffers.Builder) { builder.StartObject(1) }
func VariableValueStringAddValue(builder *flatbuffers.Builder, value flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, value, 0)
}
func VariableValueStringEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
