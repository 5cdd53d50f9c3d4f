package fbs

import flatbuffers "github.com/google/flatbuffers/go"

type VariableDefinition struct {
	_tab flatbuffers.Table
}

func (rcv *VariableDefinition) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *VariableDefinition) Id() uint32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetUint32(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *VariableDefinition) Key() []byte {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return rcv._tab.ByteVector(o + rcv._tab.Pos)
	}
	return nil
}

func (rcv *VariableDefinition) DataType() VariableDataType {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(8))
	if o != 0 {
		return VariableDataType(rcv._tab.GetByte(o + rcv._tab.Pos))
	}
	return VariableDataTypeUNSPECIFIED
}

func (rcv *VariableDefinition) AccessType() VariableAccessType {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(10))
	if o != 0 {
		return VariableAccessType(rcv._tab.GetByte(o + rcv._tab.Pos))
	}
	return VariableAccessTypeUNSPECIFIED
}

func (rcv *VariableDefinition) Experimental() bool {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(12))
	if o != 0 {
		return rcv._tab.GetBool(o + rcv._tab.Pos)
	}
	return false
}

func VariableDefinitionStart(builder *flatbuffers.Builder) {
	builder.StartObject(5)
}
func VariableDefinitionAddId(builder *flatbuffers.Builder, id uint32) {
	builder.PrependUint32Slot(0, id, 0)
}
func VariableDefinitionAddKey(builder *flatbuffers.Builder, key flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(1, key, 0)
}
func VariableDefinitionAddDataType(builder *flatbuffers.Builder, dataType VariableDataType) {
	builder.PrependByteSlot(2, byte(dataType), 0)
}
func VariableDefinitionAddAccessType(builder *flatbuffers.Builder, accessType VariableAccessType) {
	builder.PrependByteSlot(3, byte(accessType), 0)
}
func VariableDefinitionAddExperimental(builder *flatbuffers.Builder, experimental bool) {
	builder.PrependBoolSlot(4, experimental, false)
}
func VariableDefinitionEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type ProviderDefinition struct {
	_tab flatbuffers.Table
}

func (rcv *ProviderDefinition) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *ProviderDefinition) Fingerprint() uint64 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.GetUint64(o + rcv._tab.Pos)
	}
	return 0
}

func (rcv *ProviderDefinition) VariableDefinitions(obj *VariableDefinition, j int) bool {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		x := rcv._tab.Vector(o)
		x += flatbuffers.UOffsetT(j) * 4
		x = rcv._tab.Indirect(x)
		obj.Init(rcv._tab.Bytes, x)
		return true
	}
	return false
}

func (rcv *ProviderDefinition) VariableDefinitionsLength() int {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(6))
	if o != 0 {
		return rcv._tab.VectorLen(o)
	}
	return 0
}

func ProviderDefinitionStart(builder *flatbuffers.Builder) {
	builder.StartObject(2)
}
func ProviderDefinitionAddFingerprint(builder *flatbuffers.Builder, fingerprint uint64) {
	builder.PrependUint64Slot(0, fingerprint, 0)
}
func ProviderDefinitionAddVariableDefinitions(builder *flatbuffers.Builder, variableDefinitions flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(1, variableDefinitions, 0)
}
func ProviderDefinitionStartVariableDefinitionsVector(builder *flatbuffers.Builder, numElems int) flatbuffers.UOffsetT {
	return builder.StartVector(4, numElems, 4)
}
func ProviderDefinitionEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
