package fbs

import flatbuffers "github.com/google/flatbuffers/go"

type Variable struct {
	_tab flatbuffers.Table
}

func (rcv *Variable) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *Variable) Table() flatbuffers.Table {
	return rcv._tab
}

func (rcv *Variable) ValueType() VariableValue {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return VariableValue(rcv._tab.GetByte(o + rcv._tab.Pos))
	}
	return VariableValueNONE
}

// Value points obj at the union member; interpret it according to ValueType.
func (rcv *Variable) Value(obj *flatbuffers.Table) bool {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		rcv._tab.Union(obj, o)
		return true
	}
	return false
}

func (rcv *Variable) Id() uint32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(8))
	if o != 0 {
		return rcv._tab.GetUint32(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *Variable) Quality() VariableQuality {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(10))
	if o != 0 {
		return VariableQuality(rcv._tab.GetByte(o + rcv._tab.Pos))
	}
	return VariableQualityGOOD
}

func (rcv *Variable) Timestamp(obj *Timestamp) *Timestamp {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(12))
	if o != 0 {
		x := o + rcv._tab.Pos
		if obj == nil {
			obj = new(Timestamp)
		}
		obj.Init(rcv._tab.Bytes, x)
		return obj
	}
	return nil
}

func VariableStart(builder *flatbuffers.Builder) {
	builder.StartObject(5)
}
func VariableAddValueType(builder *flatbuffers.Builder, valueType VariableValue) {
	builder.PrependByteSlot(0, byte(valueType), 0)
}
func VariableAddValue(builder *flatbuffers.Builder, value flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(1, value, 0)
}
func VariableAddId(builder *flatbuffers.Builder, id uint32) {
	builder.PrependUint32Slot(2, id, 0)
}
func VariableAddQuality(builder *flatbuffers.Builder, quality VariableQuality) {
	builder.PrependByteSlot(3, byte(quality), 0)
}
func VariableAddTimestamp(builder *flatbuffers.Builder, timestamp flatbuffers.UOffsetT) {
	builder.PrependStructSlot(4, timestamp, 0)
}
func VariableEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type VariableList struct {
	_tab flatbuffers.Table
}

func (rcv *VariableList) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *VariableList) ProviderDefinitionFingerprint() uint64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetUint64(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *VariableList) BaseTimestamp(obj *Timestamp) *Timestamp {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		x := o + rcv._tab.Pos
		if obj == nil {
			obj = new(Timestamp)
		}
		obj.Init(rcv._tab.Bytes, x)
		return obj
	}
	return nil
}

func (rcv *VariableList) Items(obj *Variable, j int) bool {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(8))
	if o != 0 {
		x := rcv._tab.Vector(o)
		x += flatbuffers.UOffsetT(j) * 4
		x = rcv._tab.Indirect(x)
		obj.Init(rcv._tab.Bytes, x)
		return true
	}
	return false
}

func (rcv *VariableList) ItemsLength() int {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(8))
	if o != 0 {
		return rcv._tab.VectorLen(o)
	}
	return 0
}

func VariableListStart(builder *flatbuffers.Builder) {
	builder.StartObject(3)
}
func VariableListAddProviderDefinitionFingerprint(builder *flatbuffers.Builder, fingerprint uint64) {
	builder.PrependUint64Slot(0, fingerprint, 0)
}
func VariableListAddBaseTimestamp(builder *flatbuffers.Builder, baseTimestamp flatbuffers.UOffsetT) {
	builder.PrependStructSlot(1, baseTimestamp, 0)
}
func VariableListAddItems(builder *flatbuffers.Builder, items flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(2, items, 0)
}
func VariableListStartItemsVector(builder *flatbuffers.Builder, numElems int) flatbuffers.UOffsetT {
	return builder.StartVector(4, numElems, 4)
}
func VariableListEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
