// Package token caches and refreshes the bearer token used to authenticate
// to the hub bus.
//
// A Manager hands out a cached token while it stays valid for more than the
// safety margin (60s), fetches a new one otherwise, and collapses concurrent
// fetches into one. After every successful fetch a timer on the injected
// clock refreshes the token at expiry minus the margin; a failed scheduled
// refresh is retried every 5s.
//
// Fetch failures open a short cooldown (10s) during which Token and
// CheckCircuit fail fast with errors.ErrAuthCooldown, so a rejected client
// secret does not hammer the identity provider on every reconnect.
//
// OAuthFetcher implements Fetcher with the OAuth2 client-credentials grant
// against https://<host>/oauth2/token using HTTP Basic client authentication.
package token
