// Package config loads the datahub process configuration.
//
// A configuration names the hub (host, port, OAuth client credentials and
// scope), tunes the shared session and the definition cache, and lists the
// providers this process serves and the providers it consumes.
//
// # Loading
//
// Files are JSON or YAML, chosen by extension. Layers merge in order, later
// layers overriding individual fields of earlier ones; lists are replaced
// whole. Each layer is checked against an embedded JSON schema before it is
// merged, so unknown fields and malformed durations are rejected early.
//
//	loader := config.NewLoader()
//	loader.AddLayer("datahub.yaml")
//	loader.AddLayer("datahub.prod.yaml")
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//
// Durations accept Go syntax ("500ms", "2s") plus whole days ("7d"), or an
// integer number of nanoseconds.
//
// # Environment
//
// Variables prefixed with DATAHUB_ override the hub section after all layers
// are merged: DATAHUB_HOST, DATAHUB_PORT, DATAHUB_CLIENT_ID,
// DATAHUB_CLIENT_SECRET, DATAHUB_CLIENT_NAME, DATAHUB_SCOPE,
// DATAHUB_TOKEN_URL and DATAHUB_API_URL. Keeping the client secret in the
// environment is the usual deployment.
//
// # Manual variables
//
// A consumer may carry a "key:id, key:id" list used when no discovery
// strategy can produce a definition. OverridesFor merges those lists with
// discovery.overrides for a provider, and FilterKeys adds their keys to the
// consumer's key filter.
//
// Config.String redacts the client secret; SaveToFile does not.
package config
