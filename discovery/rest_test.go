package discovery

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/hub"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func TestRESTClient_Variables(t *testing.T) {
	tests := []struct {
		name          string
		body          string
		want          []hub.VariableDefinition
		wantHeuristic bool
	}{
		{
			name: "array with ids",
			body: `[{"id":5,"key":"x","dataType":"FLOAT64","access":"READ_WRITE"}]`,
			want: []hub.VariableDefinition{
				{ID: 5, Key: "x", DataType: hub.DataTypeFloat64, Access: hub.AccessReadWrite},
			},
		},
		{
			name: "wrapped with alternate field names",
			body: `{"variables":[{"id":0,"key":"y","data_type":"bool","accessType":"READ_ONLY","experimental":true}]}`,
			want: []hub.VariableDefinition{
				{ID: 0, Key: "y", DataType: hub.DataTypeBoolean, Access: hub.AccessReadOnly, Experimental: true},
			},
		},
		{
			name: "missing ids are positional",
			body: `[{"key":"a","dataType":"STRING"},{"key":"b","dataType":"INT64"}]`,
			want: []hub.VariableDefinition{
				{ID: 1, Key: "a", DataType: hub.DataTypeString, Access: hub.AccessReadOnly},
				{ID: 2, Key: "b", DataType: hub.DataTypeInt64, Access: hub.AccessReadOnly},
			},
			wantHeuristic: true,
		},
		{
			name: "positional ids skip explicit ones",
			body: `[{"key":"c"},{"id":1,"key":"a"},{"key":"b"},{"id":3,"key":"d"},{"key":"e"}]`,
			want: []hub.VariableDefinition{
				{ID: 2, Key: "c", Access: hub.AccessReadOnly},
				{ID: 1, Key: "a", Access: hub.AccessReadOnly},
				{ID: 4, Key: "b", Access: hub.AccessReadOnly},
				{ID: 3, Key: "d", Access: hub.AccessReadOnly},
				{ID: 5, Key: "e", Access: hub.AccessReadOnly},
			},
			wantHeuristic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := restServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(tt.body))
			})
			c.tokens = staticToken("tok")

			got, heuristic, err := c.Variables(context.Background(), "p1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantHeuristic, heuristic)
		})
	}
}

func TestRESTClient_LegacyFallback(t *testing.T) {
	var paths []string
	c := restServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path == APIPathV1+"/providers" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"providers":[{"id":"legacy"}]}`))
	})

	got, err := c.Providers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ProviderInfo{{ID: "legacy"}}, got)
	assert.Equal(t, []string{APIPathV1 + "/providers", APIPathLegacy + "/providers"}, paths)
}

func TestRESTClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		check    func(error) bool
		sentinel error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, check: errors.IsFatal, sentinel: errors.ErrAuthFailure},
		{name: "forbidden", status: http.StatusForbidden, check: errors.IsFatal, sentinel: errors.ErrAuthFailure},
		{name: "not found on both roots", status: http.StatusNotFound, check: errors.IsInvalid, sentinel: errors.ErrDefinitionNotFound},
		{name: "server error", status: http.StatusBadGateway, check: errors.IsTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := restServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, _, err := c.Variables(context.Background(), "p1")
			require.Error(t, err)
			assert.True(t, tt.check(err))
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
		})
	}
}
