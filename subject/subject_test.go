package subject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubjects(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"vars changed", VarsChanged("p"), "v1.loc.p.vars.evt.changed"},
		{"definition changed", DefinitionChanged("p"), "v1.loc.p.def.evt.changed"},
		{"read variables", ReadVariablesQuery("p"), "v1.loc.p.vars.qry.read"},
		{"read definition", ReadDefinitionQuery("p"), "v1.loc.p.def.qry.read"},
		{"registry definition", RegistryDefinitionQuery("p"), "v1.loc.registry.providers.p.def.qry.read"},
		{"registry state", RegistryStateChanged, "v1.loc.registry.state.evt.changed"},
		{"write", WriteVariablesCommand("p"), "v1.loc.p.vars.cmd.write"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := []string{"nodered", "u_os_sbm", "provider-1"}
	for _, id := range valid {
		assert.NoError(t, Validate(id), id)
	}

	invalid := []string{"", "a.b", "a*", "a>", "a b"}
	for _, id := range invalid {
		assert.Error(t, Validate(id), id)
	}
}
