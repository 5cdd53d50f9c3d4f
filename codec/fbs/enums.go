package fbs

import "strconv"

// VariableDataType is the wire enum for a variable's declared type.
type VariableDataType byte

const (
	VariableDataTypeUNSPECIFIED VariableDataType = 0
	VariableDataTypeBOOLEAN     VariableDataType = 1
	VariableDataTypeINT64       VariableDataType = 2
	VariableDataTypeFLOAT64     VariableDataType = 3
	VariableDataTypeSTRING      VariableDataType = 4
)

// VariableAccessType is the wire enum for a variable's access mode.
type VariableAccessType byte

const (
	VariableAccessTypeUNSPECIFIED VariableAccessType = 0
	VariableAccessTypeREAD_ONLY   VariableAccessType = 1
	VariableAccessTypeREAD_WRITE  VariableAccessType = 2
)

// VariableQuality is the wire enum for value quality.
type VariableQuality byte

const (
	VariableQualityGOOD                VariableQuality = 0
	VariableQualityBAD                 VariableQuality = 1
	VariableQualityUNCERTAIN           VariableQuality = 2
	VariableQualityGOOD_LOCAL_OVERRIDE VariableQuality = 3
)

// RegistryState is the wire enum broadcast by the registry.
type RegistryState byte

const (
	RegistryStateUNSPECIFIED RegistryState = 0
	RegistryStateRUNNING     RegistryState = 1
	RegistryStateSTOPPED     RegistryState = 2
)

// VariableValue is the union discriminator for Variable.value.
type VariableValue byte

const (
	VariableValueNONE        VariableValue = 0
	VariableValueTypeBoolean VariableValue = 1
	VariableValueTypeInt64   VariableValue = 2
	VariableValueTypeFloat64 VariableValue = 3
	VariableValueTypeString  VariableValue = 4
)

var EnumNamesVariableValue = map[VariableValue]string{
	VariableValueNONE:        "NONE",
	VariableValueTypeBoolean: "Boolean",
	VariableValueTypeInt64:   "Int64",
	VariableValueTypeFloat64: "Float64",
	VariableValueTypeString:  "String",
}

func (v VariableValue) String() string {
	if s, ok := EnumNamesVariableValue[v]; ok {
		return s
	}
	return "VariableValue(" + strconv.FormatInt(int64(v), 10) + ")"
}
