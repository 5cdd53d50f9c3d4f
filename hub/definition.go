package hub

import (
	"sort"
	"time"
)

// VariableDefinition describes one variable a provider exposes.
// ID is unique within a provider and stable for a key within one definition set.
type VariableDefinition struct {
	ID           uint32   `json:"id"`
	Key          string   `json:"key"`
	DataType     DataType `json:"dataType"`
	Access       Access   `json:"access"`
	Experimental bool     `json:"experimental,omitempty"`
}

// ProviderDefinition is a provider's full definition set and its fingerprint.
type ProviderDefinition struct {
	Fingerprint uint64               `json:"fingerprint"`
	Variables   []VariableDefinition `json:"variables"`
}

// ByID returns the definition with the given ID.
func (p ProviderDefinition) ByID(id uint32) (VariableDefinition, bool) {
	for _, v := range p.Variables {
		if v.ID == id {
			return v, true
		}
	}
	return VariableDefinition{}, false
}

// ByKey returns the definition with the given key.
func (p ProviderDefinition) ByKey(key string) (VariableDefinition, bool) {
	for _, v := range p.Variables {
		if v.Key == key {
			return v, true
		}
	}
	return VariableDefinition{}, false
}

// IsEmpty reports whether the definition has no variables.
func (p ProviderDefinition) IsEmpty() bool { return len(p.Variables) == 0 }

// SortByID returns a copy of defs ordered by ascending ID.
func SortByID(defs []VariableDefinition) []VariableDefinition {
	out := make([]VariableDefinition, len(defs))
	copy(out, defs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// VariableState is the current value of one variable.
type VariableState struct {
	ID        uint32    `json:"id"`
	Value     Value     `json:"value"`
	Quality   Quality   `json:"quality"`
	Timestamp time.Time `json:"timestamp"`
}

// VariableList is a batch of states tied to the definition set they were produced under.
type VariableList struct {
	ProviderDefinitionFingerprint uint64
	BaseTimestamp                 time.Time
	Items                         []VariableState
}

// WriteUpdate is one requested change in a write command. A zero DataType
// means the type is inferred from Value.
type WriteUpdate struct {
	ID       uint32
	Value    any
	DataType DataType
}
