package codec

import (
	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/c360/datahub/codec/fbs"
	"github.com/c360/datahub/hub"
)

// EncodeReadQuery returns the body of a vars.qry.read request. An empty ids
// slice asks for all variables, so callers that resolved a specific key set
// to nothing must not send it.
func EncodeReadQuery(ids []uint32) []byte {
	b := flatbuffers.NewBuilder(16 + 4*len(ids))
	fbs.ReadVariablesQueryRequestStartIdsVector(b, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		b.PrependUint32(ids[i])
	}
	vec := b.EndVector(len(ids))

	fbs.ReadVariablesQueryRequestStart(b)
	fbs.ReadVariablesQueryRequestAddIds(b, vec)
	b.Finish(fbs.ReadVariablesQueryRequestEnd(b))
	return b.FinishedBytes()
}

// DecodeReadQuery returns the requested IDs; nil means all variables.
func DecodeReadQuery(payload []byte) ([]uint32, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	return decode(payload, "ReadQuery", func() ([]uint32, error) {
		q := fbs.GetRootAsReadVariablesQueryRequest(payload, 0)
		n := q.IdsLength()
		if n == 0 {
			return nil, nil
		}
		ids := make([]uint32, n)
		for i := range ids {
			ids[i] = q.Ids(i)
		}
		return ids, nil
	})
}

// EncodeRegistryState returns a RegistryStateChangedEvent body.
func EncodeRegistryState(state hub.RegistryState) []byte {
	b := flatbuffers.NewBuilder(16)
	fbs.RegistryStateChangedEventStart(b)
	fbs.RegistryStateChangedEventAddState(b, fbs.RegistryState(state))
	b.Finish(fbs.RegistryStateChangedEventEnd(b))
	return b.FinishedBytes()
}

// DecodeRegistryState reads the state from a RegistryStateChangedEvent.
func DecodeRegistryState(payload []byte) (hub.RegistryState, error) {
	return decode(payload, "RegistryState", func() (hub.RegistryState, error) {
		ev := fbs.GetRootAsRegistryStateChangedEvent(payload, 0)
		return hub.RegistryState(ev.State()), nil
	})
}
