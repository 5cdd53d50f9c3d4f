package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/hub"
)

// REST API roots, tried in order. The second serves older firmware.
const (
	APIPathV1     = "/u-os-hub/api/v1"
	APIPathLegacy = "/datahub/v1"
)

// TokenSource yields a bearer token for REST calls
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ProviderInfo is one entry of the REST provider list
type ProviderInfo struct {
	ID string `json:"id"`
}

// RESTClient reads provider and variable listings from the hub's HTTP API
type RESTClient struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// NewRESTClient creates a client for baseURL, e.g. "https://hub.local"
func NewRESTClient(baseURL string, tokens TokenSource, client *http.Client) *RESTClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RESTClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		tokens:  tokens,
		http:    client,
	}
}

// restVariable is the REST shape of a variable definition. ID is a pointer
// because some firmware omits it.
type restVariable struct {
	ID           *uint32 `json:"id"`
	Key          string  `json:"key"`
	DataType     string  `json:"dataType"`
	DataTypeAlt  string  `json:"data_type"`
	Access       string  `json:"access"`
	AccessAlt    string  `json:"accessType"`
	Experimental bool    `json:"experimental"`
}

// Variables lists a provider's variables. The bool result reports whether
// any IDs were assigned positionally because the response lacked them.
func (c *RESTClient) Variables(ctx context.Context, providerID string) ([]hub.VariableDefinition, bool, error) {
	body, err := c.getWithFallback(ctx, "/providers/"+providerID+"/variables")
	if err != nil {
		return nil, false, err
	}

	var list []restVariable
	if err := json.Unmarshal(body, &list); err != nil {
		var wrapped struct {
			Variables []restVariable `json:"variables"`
		}
		if err2 := json.Unmarshal(body, &wrapped); err2 != nil {
			return nil, false, errors.WrapInvalid(err, "RESTClient", "Variables", "decode variable list")
		}
		list = wrapped.Variables
	}

	taken := make(map[uint32]bool, len(list))
	for _, v := range list {
		if v.ID != nil && v.Key != "" {
			taken[*v.ID] = true
		}
	}

	// Missing IDs are numbered by position from 1, skipping every ID the
	// listing does carry. Zero stays free because writers treat it as unset.
	heuristic := false
	next := uint32(1)
	defs := make([]hub.VariableDefinition, 0, len(list))
	for _, v := range list {
		if v.Key == "" {
			continue
		}
		def := hub.VariableDefinition{
			Key:          v.Key,
			DataType:     hub.ParseDataType(firstNonEmpty(v.DataType, v.DataTypeAlt)),
			Access:       hub.ParseAccess(firstNonEmpty(v.Access, v.AccessAlt)),
			Experimental: v.Experimental,
		}
		if v.ID != nil {
			def.ID = *v.ID
		} else {
			for taken[next] {
				next++
			}
			def.ID = next
			taken[next] = true
			heuristic = true
		}
		defs = append(defs, def)
	}
	return defs, heuristic, nil
}

// Providers lists the providers known to the hub
func (c *RESTClient) Providers(ctx context.Context) ([]ProviderInfo, error) {
	body, err := c.getWithFallback(ctx, "/providers")
	if err != nil {
		return nil, err
	}

	var infos []ProviderInfo
	if err := json.Unmarshal(body, &infos); err == nil {
		return infos, nil
	}
	var ids []string
	if err := json.Unmarshal(body, &ids); err == nil {
		infos = make([]ProviderInfo, len(ids))
		for i, id := range ids {
			infos[i] = ProviderInfo{ID: id}
		}
		return infos, nil
	}
	var wrapped struct {
		Providers []ProviderInfo `json:"providers"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, errors.WrapInvalid(err, "RESTClient", "Providers", "decode provider list")
	}
	return wrapped.Providers, nil
}

func (c *RESTClient) getWithFallback(ctx context.Context, path string) ([]byte, error) {
	body, status, err := c.get(ctx, APIPathV1+path)
	if err == nil {
		return body, nil
	}
	if status != http.StatusNotFound {
		return nil, err
	}
	body, _, err = c.get(ctx, APIPathLegacy+path)
	return body, err
}

func (c *RESTClient) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, errors.WrapInvalid(err, "RESTClient", "get", "build request")
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, 0, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, errors.WrapTransient(err, "RESTClient", "get", "GET "+path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, errors.WrapTransient(err, "RESTClient", "get", "read body")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, resp.StatusCode, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, errors.WrapFatal(
			fmt.Errorf("%w: HTTP %d", errors.ErrAuthFailure, resp.StatusCode), "RESTClient", "get", "GET "+path)
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp.StatusCode, errors.WrapInvalid(
			fmt.Errorf("%w: HTTP 404 %s", errors.ErrDefinitionNotFound, path), "RESTClient", "get", "GET "+path)
	default:
		return nil, resp.StatusCode, errors.WrapTransient(
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), "RESTClient", "get", "GET "+path)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
