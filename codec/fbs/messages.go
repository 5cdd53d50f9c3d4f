package fbs

import flatbuffers "github.com/google/flatbuffers/go"

type ProviderDefinitionChangedEvent struct {
	_tab flatbuffers.Table
}

func GetRootAsProviderDefinitionChangedEvent(buf []byte, offset flatbuffers.UOffsetT) *ProviderDefinitionChangedEvent {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &ProviderDefinitionChangedEvent{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *ProviderDefinitionChangedEvent) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *ProviderDefinitionChangedEvent) ProviderDefinition(obj *ProviderDefinition) *ProviderDefinition {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		x := rcv._tab.Indirect(o + rcv._tab.Pos)
		if obj == nil {
			obj = new(ProviderDefinition)
		}
		obj.Init(rcv._tab.Bytes, x)
		return obj
	}
	return nil
}

func ProviderDefinitionChangedEventStart(builder *flatbuffers.Builder) {
	builder.StartObject(1)
}
func ProviderDefinitionChangedEventAddProviderDefinition(builder *flatbuffers.Builder, providerDefinition flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, providerDefinition, 0)
}
func ProviderDefinitionChangedEventEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type ReadProviderDefinitionQueryResponse struct {
	_tab flatbuffers.Table
}

func GetRootAsReadProviderDefinitionQueryResponse(buf []byte, offset flatbuffers.UOffsetT) *ReadProviderDefinitionQueryResponse {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &ReadProviderDefinitionQueryResponse{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *ReadProviderDefinitionQueryResponse) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *ReadProviderDefinitionQueryResponse) ProviderDefinition(obj *ProviderDefinition) *ProviderDefinition {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		x := rcv._tab.Indirect(o + rcv._tab.Pos)
		if obj == nil {
			obj = new(ProviderDefinition)
		}
		obj.Init(rcv._tab.Bytes, x)
		return obj
	}
	return nil
}

func ReadProviderDefinitionQueryResponseStart(builder *flatbuffers.Builder) {
	builder.StartObject(1)
}
func ReadProviderDefinitionQueryResponseAddProviderDefinition(builder *flatbuffers.Builder, providerDefinition flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, providerDefinition, 0)
}
func ReadProviderDefinitionQueryResponseEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type ReadProviderDefinitionQueryRequest struct {
	_tab flatbuffers.Table
}

func GetRootAsReadProviderDefinitionQueryRequest(buf []byte, offset flatbuffers.UOffsetT) *ReadProviderDefinitionQueryRequest {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &ReadProviderDefinitionQueryRequest{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *ReadProviderDefinitionQueryRequest) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func ReadProviderDefinitionQueryRequestStart(builder *flatbuffers.Builder) {
	builder.StartObject(0)
}
func ReadProviderDefinitionQueryRequestEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

// variableListHolder is the shape shared by every message whose only field
// is a VariableList in slot 0.
type variableListHolder struct {
	_tab flatbuffers.Table
}

func (rcv *variableListHolder) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *variableListHolder) list(obj *VariableList) *VariableList {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		x := rcv._tab.Indirect(o + rcv._tab.Pos)
		if obj == nil {
			obj = new(VariableList)
		}
		obj.Init(rcv._tab.Bytes, x)
		return obj
	}
	return nil
}

type VariablesChangedEvent struct {
	variableListHolder
}

func GetRootAsVariablesChangedEvent(buf []byte, offset flatbuffers.UOffsetT) *VariablesChangedEvent {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &VariablesChangedEvent{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *VariablesChangedEvent) ChangedVariables(obj *VariableList) *VariableList {
	return rcv.list(obj)
}

func VariablesChangedEventStart(builder *flatbuffers.Builder) {
	builder.StartObject(1)
}
func VariablesChangedEventAddChangedVariables(builder *flatbuffers.Builder, changedVariables flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, changedVariables, 0)
}
func VariablesChangedEventEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type ReadVariablesQueryResponse struct {
	variableListHolder
}

func GetRootAsReadVariablesQueryResponse(buf []byte, offset flatbuffers.UOffsetT) *ReadVariablesQueryResponse {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &ReadVariablesQueryResponse{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *ReadVariablesQueryResponse) Variables(obj *VariableList) *VariableList {
	return rcv.list(obj)
}

func ReadVariablesQueryResponseStart(builder *flatbuffers.Builder) {
	builder.StartObject(1)
}
func ReadVariablesQueryResponseAddVariables(builder *flatbuffers.Builder, variables flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, variables, 0)
}
func ReadVariablesQueryResponseEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type WriteVariablesCommand struct {
	variableListHolder
}

func GetRootAsWriteVariablesCommand(buf []byte, offset flatbuffers.UOffsetT) *WriteVariablesCommand {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &WriteVariablesCommand{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *WriteVariablesCommand) Variables(obj *VariableList) *VariableList {
	return rcv.list(obj)
}

func WriteVariablesCommandStart(builder *flatbuffers.Builder) {
	builder.StartObject(1)
}
func WriteVariablesCommandAddVariables(builder *flatbuffers.Builder, variables flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, variables, 0)
}
func WriteVariablesCommandEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type ReadVariablesQueryRequest struct {
	_tab flatbuffers.Table
}

func GetRootAsReadVariablesQueryRequest(buf []byte, offset flatbuffers.UOffsetT) *ReadVariablesQueryRequest {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &ReadVariablesQueryRequest{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *ReadVariablesQueryRequest) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *ReadVariablesQueryRequest) Ids(j int) uint32 {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		a := rcv._tab.Vector(o)
		return rcv._tab.GetUint32(a + flatbuffers.UOffsetT(j*4))
	}
	return 0
}

func (rcv *ReadVariablesQueryRequest) IdsLength() int {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return rcv._tab.VectorLen(o)
	}
	return 0
}

func ReadVariablesQueryRequestStart(builder *flatbuffers.Builder) {
	builder.StartObject(1)
}
func ReadVariablesQueryRequestAddIds(builder *flatbuffers.Builder, ids flatbuffers.UOffsetT) {
	builder.PrependUOffsetTSlot(0, ids, 0)
}
func ReadVariablesQueryRequestStartIdsVector(builder *flatbuffers.Builder, numElems int) flatbuffers.UOffsetT {
	return builder.StartVector(4, numElems, 4)
}
func ReadVariablesQueryRequestEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}

type RegistryStateChangedEvent struct {
	_tab flatbuffers.Table
}

func GetRootAsRegistryStateChangedEvent(buf []byte, offset flatbuffers.UOffsetT) *RegistryStateChangedEvent {
	n := flatbuffers.GetUOffsetT(buf[offset:])
	x := &RegistryStateChangedEvent{}
	x.Init(buf, n+offset)
	return x
}

func (rcv *RegistryStateChangedEvent) Init(buf []byte, i flatbuffers.UOffsetT) {
	rcv._tab.Bytes = buf
	rcv._tab.Pos = i
}

func (rcv *RegistryStateChangedEvent) State() RegistryState {
	o := flatbuffers.UOffsetT(rcv._tab.Offset(4))
	if o != 0 {
		return RegistryState(rcv._tab.GetByte(o + rcv._tab.Pos))
	}
	return RegistryStateUNSPECIFIED
}

func RegistryStateChangedEventStart(builder *flatbuffers.Builder) {
	builder.StartObject(1)
}
func RegistryStateChangedEventAddState(builder *flatbuffers.Builder, state RegistryState) {
	builder.PrependByteSlot(0, byte(state), 0)
}
func RegistryStateChangedEventEnd(builder *flatbuffers.Builder) flatbuffers.UOffsetT {
	return builder.EndObject()
}
