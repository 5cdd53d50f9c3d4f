// Package subject builds the bus addresses of the variable hub.
//
// Every address starts with the version and location segments "v1.loc".
// Provider IDs are embedded as a single token, so they must be non-empty
// and free of '.', '*', '>' and whitespace; Validate checks this.
package subject

import (
	"fmt"
	"strings"
)

const prefix = "v1.loc"

// RegistryStateChanged is where the registry announces its lifecycle state.
const RegistryStateChanged = prefix + ".registry.state.evt.changed"

// VarsChanged is where a provider publishes value changes.
func VarsChanged(providerID string) string {
	return prefix + "." + providerID + ".vars.evt.changed"
}

// DefinitionChanged is where a provider announces its definition set.
func DefinitionChanged(providerID string) string {
	return prefix + "." + providerID + ".def.evt.changed"
}

// ReadVariablesQuery is the request subject for a provider's current values.
func ReadVariablesQuery(providerID string) string {
	return prefix + "." + providerID + ".vars.qry.read"
}

// ReadDefinitionQuery is the request subject answered by the provider itself.
func ReadDefinitionQuery(providerID string) string {
	return prefix + "." + providerID + ".def.qry.read"
}

// RegistryDefinitionQuery is the request subject answered by the registry on
// behalf of a provider.
func RegistryDefinitionQuery(providerID string) string {
	return prefix + ".registry.providers." + providerID + ".def.qry.read"
}

// WriteVariablesCommand is where consumers send write commands to a provider.
func WriteVariablesCommand(providerID string) string {
	return prefix + "." + providerID + ".vars.cmd.write"
}

// Validate reports whether providerID can be used as a subject token.
func Validate(providerID string) error {
	if providerID == "" {
		return fmt.Errorf("provider id is empty")
	}
	if strings.ContainsAny(providerID, ".*> \t\r\n") {
		return fmt.Errorf("provider id %q contains a subject delimiter, wildcard or whitespace", providerID)
	}
	return nil
}
