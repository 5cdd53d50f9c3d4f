package codec

import (
	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/c360/datahub/codec/fbs"
	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/hub"
)

// EncodeDefinition encodes def as a ProviderDefinitionChangedEvent, the
// payload published on a provider's def.evt.changed subject.
func EncodeDefinition(def hub.ProviderDefinition) []byte {
	b := flatbuffers.NewBuilder(initialBufferSize)
	pd := buildProviderDefinition(b, def)
	fbs.ProviderDefinitionChangedEventStart(b)
	fbs.ProviderDefinitionChangedEventAddProviderDefinition(b, pd)
	b.Finish(fbs.ProviderDefinitionChangedEventEnd(b))
	return b.FinishedBytes()
}

// EncodeDefinitionResponse encodes def as the reply to a def.qry.read request.
func EncodeDefinitionResponse(def hub.ProviderDefinition) []byte {
	b := flatbuffers.NewBuilder(initialBufferSize)
	pd := buildProviderDefinition(b, def)
	fbs.ReadProviderDefinitionQueryResponseStart(b)
	fbs.ReadProviderDefinitionQueryResponseAddProviderDefinition(b, pd)
	b.Finish(fbs.ReadProviderDefinitionQueryResponseEnd(b))
	return b.FinishedBytes()
}

// EncodeDefinitionQuery returns the body of a def.qry.read request.
func EncodeDefinitionQuery() []byte {
	b := flatbuffers.NewBuilder(16)
	fbs.ReadProviderDefinitionQueryRequestStart(b)
	b.Finish(fbs.ReadProviderDefinitionQueryRequestEnd(b))
	return b.FinishedBytes()
}

func buildProviderDefinition(b *flatbuffers.Builder, def hub.ProviderDefinition) flatbuffers.UOffsetT {
	keys := make([]flatbuffers.UOffsetT, len(def.Variables))
	for i, v := range def.Variables {
		keys[i] = b.CreateString(v.Key)
	}

	defs := make([]flatbuffers.UOffsetT, len(def.Variables))
	for i, v := range def.Variables {
		fbs.VariableDefinitionStart(b)
		fbs.VariableDefinitionAddId(b, v.ID)
		fbs.VariableDefinitionAddKey(b, keys[i])
		fbs.VariableDefinitionAddDataType(b, toWireDataType(v.DataType))
		fbs.VariableDefinitionAddAccessType(b, toWireAccess(v.Access))
		fbs.VariableDefinitionAddExperimental(b, v.Experimental)
		defs[i] = fbs.VariableDefinitionEnd(b)
	}

	fbs.ProviderDefinitionStartVariableDefinitionsVector(b, len(defs))
	for i := len(defs) - 1; i >= 0; i-- {
		b.PrependUOffsetT(defs[i])
	}
	vec := b.EndVector(len(defs))

	fbs.ProviderDefinitionStart(b)
	fbs.ProviderDefinitionAddFingerprint(b, def.Fingerprint)
	fbs.ProviderDefinitionAddVariableDefinitions(b, vec)
	return fbs.ProviderDefinitionEnd(b)
}

// DecodeDefinition decodes a ProviderDefinitionChangedEvent or a
// ReadProviderDefinitionQueryResponse; both carry the definition in slot 0.
// A message without a definition is reported as errors.ErrDefinitionNotFound.
// Unknown data types decode as hub.DataTypeUnknown and unknown access types
// as hub.AccessReadOnly.
func DecodeDefinition(payload []byte) (hub.ProviderDefinition, error) {
	return decode(payload, "Definition", func() (hub.ProviderDefinition, error) {
		root := fbs.GetRootAsProviderDefinitionChangedEvent(payload, 0)
		pd := root.ProviderDefinition(nil)
		if pd == nil {
			return hub.ProviderDefinition{}, errors.ErrDefinitionNotFound
		}

		out := hub.ProviderDefinition{
			Fingerprint: pd.Fingerprint(),
			Variables:   make([]hub.VariableDefinition, 0, pd.VariableDefinitionsLength()),
		}
		var vd fbs.VariableDefinition
		for i := 0; i < pd.VariableDefinitionsLength(); i++ {
			if !pd.VariableDefinitions(&vd, i) {
				continue
			}
			out.Variables = append(out.Variables, hub.VariableDefinition{
				ID:           vd.Id(),
				Key:          string(vd.Key()),
				DataType:     fromWireDataType(vd.DataType()),
				Access:       fromWireAccess(vd.AccessType()),
				Experimental: vd.Experimental(),
			})
		}
		return out, nil
	})
}
