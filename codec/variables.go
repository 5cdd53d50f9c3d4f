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

type item struct {
	id      uint32
	value   hub.Value
	quality hub.Quality
	ts      time.Time
}

// EncodeVariableList encodes the states that have a definition in defs as a
// VariablesChangedEvent. Items follow the order of defs; states without a
// definition are skipped.
func EncodeVariableList(defs []hub.VariableDefinition, states []hub.VariableState, fingerprint uint64) ([]byte, error) {
	items, err := itemsFor(defs, states)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Codec", "EncodeVariableList", "value coercion")
	}
	b := flatbuffers.NewBuilder(initialBufferSize)
	list := buildVariableList(b, items, fingerprint)
	fbs.VariablesChangedEventStart(b)
	fbs.VariablesChangedEventAddChangedVariables(b, list)
	b.Finish(fbs.VariablesChangedEventEnd(b))
	return b.FinishedBytes(), nil
}

// EncodeReadResponse encodes states like EncodeVariableList, as the reply to a vars.qry.read request.
func EncodeReadResponse(defs []hub.VariableDefinition, states []hub.VariableState, fingerprint uint64) ([]byte, error) {
	items, err := itemsFor(defs, states)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Codec", "EncodeReadResponse", "value coercion")
	}
	b := flatbuffers.NewBuilder(initialBufferSize)
	list := buildVariableList(b, items, fingerprint)
	fbs.ReadVariablesQueryResponseStart(b)
	fbs.ReadVariablesQueryResponseAddVariables(b, list)
	b.Finish(fbs.ReadVariablesQueryResponseEnd(b))
	return b.FinishedBytes(), nil
}

// EncodeWriteCommand encodes updates as a WriteVariablesCommand. Updates
// without a DataType take the type inferred from their value. Every item is
// stamped with the current time and quality GOOD.
func EncodeWriteCommand(updates []hub.WriteUpdate, fingerprint uint64) ([]byte, error) {
	ts := now()
	items := make([]item, 0, len(updates))
	for _, u := range updates {
		dt := u.DataType
		if !dt.Valid() {
			dt = hub.InferType(u.Value)
		}
		v, err := hub.Coerce(dt, u.Value)
		if err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("variable %d: %w", u.ID, err),
				"Codec", "EncodeWriteCommand", "value coercion")
		}
		items = append(items, item{id: u.ID, value: v, quality: hub.QualityGood, ts: ts})
	}

	b := flatbuffers.NewBuilder(initialBufferSize)
	list := buildVariableList(b, items, fingerprint)
	fbs.WriteVariablesCommandStart(b)
	fbs.WriteVariablesCommandAddVariables(b, list)
	b.Finish(fbs.WriteVariablesCommandEnd(b))
	return b.FinishedBytes(), nil
}

func itemsFor(defs []hub.VariableDefinition, states []hub.VariableState) ([]item, error) {
	byID := make(map[uint32]hub.VariableState, len(states))
	for _, s := range states {
		byID[s.ID] = s
	}

	items := make([]item, 0, len(states))
	for _, def := range defs {
		s, ok := byID[def.ID]
		if !ok {
			continue
		}
		dt := def.DataType
		if !dt.Valid() {
			dt = hub.DataTypeString
		}
		v, err := hub.Coerce(dt, s.Value)
		if err != nil {
			return nil, fmt.Errorf("variable %d (%s): %w", def.ID, def.Key, err)
		}
		ts := s.Timestamp
		if ts.IsZero() {
			ts = now()
		}
		items = append(items, item{id: def.ID, value: v, quality: s.Quality, ts: ts})
	}
	return items, nil
}

func buildVariableList(b *flatbuffers.Builder, items []item, fingerprint uint64) flatbuffers.UOffsetT {
	// union members are tables and must be finished before any Variable is started
	values := make([]flatbuffers.UOffsetT, len(items))
	kinds := make([]fbs.VariableValue, len(items))
	for i, it := range items {
		values[i], kinds[i] = buildValue(b, it.value)
	}

	vars := make([]flatbuffers.UOffsetT, len(items))
	for i, it := range items {
		sec, nanos := timestamp.Split(it.ts)
		fbs.VariableStart(b)
		fbs.VariableAddTimestamp(b, fbs.CreateTimestamp(b, sec, nanos))
		fbs.VariableAddValue(b, values[i])
		fbs.VariableAddId(b, it.id)
		fbs.VariableAddQuality(b, toWireQuality(it.quality))
		fbs.VariableAddValueType(b, kinds[i])
		vars[i] = fbs.VariableEnd(b)
	}

	fbs.VariableListStartItemsVector(b, len(vars))
	for i := len(vars) - 1; i >= 0; i-- {
		b.PrependUOffsetT(vars[i])
	}
	vec := b.EndVector(len(vars))

	base := now()
	if len(items) > 0 {
		base = items[0].ts
	}
	sec, nanos := timestamp.Split(base)

	fbs.VariableListStart(b)
	fbs.VariableListAddBaseTimestamp(b, fbs.CreateTimestamp(b, sec, nanos))
	fbs.VariableListAddProviderDefinitionFingerprint(b, fingerprint)
	fbs.VariableListAddItems(b, vec)
	return fbs.VariableListEnd(b)
}

func buildValue(b *flatbuffers.Builder, v hub.Value) (flatbuffers.UOffsetT, fbs.VariableValue) {
	switch v.Kind() {
	case hub.DataTypeBoolean:
		fbs.VariableValueBooleanStart(b)
		fbs.VariableValueBooleanAddValue(b, v.Bool())
		return fbs.VariableValueBooleanEnd(b), fbs.VariableValueTypeBoolean
	case hub.DataTypeInt64:
		fbs.VariableValueInt64Start(b)
		fbs.VariableValueInt64AddValue(b, v.Int64())
		return fbs.VariableValueInt64End(b), fbs.VariableValueTypeInt64
	case hub.DataTypeFloat64:
		fbs.VariableValueFloat64Start(b)
		fbs.VariableValueFloat64AddValue(b, v.Float64())
		return fbs.VariableValueFloat64End(b), fbs.VariableValueTypeFloat64
	default:
		s := b.CreateString(v.Str())
		fbs.VariableValueStringStart(b)
		fbs.VariableValueStringAddValue(b, s)
		return fbs.VariableValueStringEnd(b), fbs.VariableValueTypeString
	}
}

// DecodeVariableList decodes the states carried by a VariablesChangedEvent,
// ReadVariablesQueryResponse or WriteVariablesCommand.
func DecodeVariableList(payload []byte) ([]hub.VariableState, error) {
	list, err := DecodeVariableListFull(payload)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// DecodeVariableListFull is DecodeVariableList including the fingerprint and
// base timestamp. Items without their own timestamp inherit the base
// timestamp; a list without a base timestamp reports timestamp.Epoch.
func DecodeVariableListFull(payload []byte) (hub.VariableList, error) {
	return decode(payload, "VariableList", func() (hub.VariableList, error) {
		// all three roots hold the VariableList in slot 0
		root := fbs.GetRootAsVariablesChangedEvent(payload, 0)
		vl := root.ChangedVariables(nil)
		if vl == nil {
			return hub.VariableList{BaseTimestamp: timestamp.Epoch}, nil
		}

		out := hub.VariableList{
			ProviderDefinitionFingerprint: vl.ProviderDefinitionFingerprint(),
			BaseTimestamp:                 timestamp.Epoch,
			Items:                         make([]hub.VariableState, 0, vl.ItemsLength()),
		}
		if base, ok := readTimestamp(vl.BaseTimestamp(nil)); ok {
			out.BaseTimestamp = base
		}

		var v fbs.Variable
		for i := 0; i < vl.ItemsLength(); i++ {
			if !vl.Items(&v, i) {
				continue
			}
			ts, ok := readTimestamp(v.Timestamp(nil))
			if !ok {
				ts = out.BaseTimestamp
			}
			out.Items = append(out.Items, hub.VariableState{
				ID:        v.Id(),
				Value:     readValue(&v),
				Quality:   fromWireQuality(v.Quality()),
				Timestamp: ts,
			})
		}
		return out, nil
	})
}

// DecodeWriteCommand decodes the updates of a WriteVariablesCommand together
// with the fingerprint the writer resolved them against.
func DecodeWriteCommand(payload []byte) ([]hub.VariableState, uint64, error) {
	list, err := DecodeVariableListFull(payload)
	if err != nil {
		return nil, 0, err
	}
	return list.Items, list.ProviderDefinitionFingerprint, nil
}

func readValue(v *fbs.Variable) hub.Value {
	var t flatbuffers.Table
	if !v.Value(&t) {
		return hub.Value{}
	}
	switch v.ValueType() {
	case fbs.VariableValueTypeBoolean:
		var x fbs.VariableValueBoolean
		x.Init(t.Bytes, t.Pos)
		return hub.BoolValue(x.Value())
	case fbs.VariableValueTypeInt64:
		var x fbs.VariableValueInt64
		x.Init(t.Bytes, t.Pos)
		return hub.Int64Value(x.Value())
	case fbs.VariableValueTypeFloat64:
		var x fbs.VariableValueFloat64
		x.Init(t.Bytes, t.Pos)
		return hub.Float64Value(x.Value())
	case fbs.VariableValueTypeString:
		var x fbs.VariableValueString
		x.Init(t.Bytes, t.Pos)
		return hub.StringValue(string(x.Value()))
	default:
		return hub.Value{}
	}
}
