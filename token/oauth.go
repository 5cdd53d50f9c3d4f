package token

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/c360/datahub/errors"
)

// DefaultScopes are requested when none are configured
var DefaultScopes = []string{
	"hub.variables.provide",
	"hub.variables.readwrite",
	"hub.variables.readonly",
}

// DefaultExpiresIn is assumed when the token response omits expires_in
const DefaultExpiresIn = 3600 * time.Second

// TokenURL returns the identity provider endpoint for a hub host
func TokenURL(host string) string {
	return "https://" + strings.TrimSuffix(host, "/") + "/oauth2/token"
}

// OAuthConfig configures an OAuthFetcher
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	HTTPClient   *http.Client
	Clock        clock.Clock
}

// OAuthFetcher fetches tokens with the client-credentials grant
type OAuthFetcher struct {
	cfg    clientcredentials.Config
	client *http.Client
	clock  clock.Clock
}

// NewOAuthFetcher validates cfg and builds a fetcher
func NewOAuthFetcher(cfg OAuthConfig) (*OAuthFetcher, error) {
	if cfg.TokenURL == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "OAuthFetcher", "New", "token url required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "OAuthFetcher", "New", "client credentials required")
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &OAuthFetcher{
		cfg: clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		client: client,
		clock:  clk,
	}, nil
}

// Fetch requests a new token. Expiry is computed from expires_in against the
// fetcher's clock rather than the oauth2 library's wall clock.
func (f *OAuthFetcher) Fetch(ctx context.Context) (Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.client)

	tok, err := f.cfg.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if stderrors.As(err, &re) && re.Response != nil {
			switch re.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
				return Token{}, fmt.Errorf("%w: %w", errors.ErrAuthFailure, err)
			}
		}
		return Token{}, err
	}

	expiresIn := DefaultExpiresIn
	if secs, ok := seconds(tok.Extra("expires_in")); ok && secs > 0 {
		expiresIn = time.Duration(secs) * time.Second
	}

	scope, _ := tok.Extra("scope").(string)

	return Token{
		AccessToken: tok.AccessToken,
		ExpiresAt:   f.clock.Now().Add(expiresIn),
		Scope:       scope,
	}, nil
}

func seconds(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}
