// Package remote implements the HTTP client for the sync authority's
// push/pull delta endpoint. It is the engine's only network surface;
// cancellation and timeouts belong to the injected http.Client.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/lexisync/internal/auth"
	"github.com/dmitrijs2005/lexisync/internal/common"
	"github.com/dmitrijs2005/lexisync/internal/protocol"
)

// API is the remote surface the orchestrator depends on. Tests substitute a
// fake; production uses *Client.
type API interface {
	// Delta pushes the pending changes and pulls remote ones in a single
	// round trip.
	Delta(ctx context.Context, accessToken string, req protocol.DeltaRequest) (*protocol.DeltaResponse, error)

	// Refresh exchanges a refresh token for a new token set.
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
}

// Client talks JSON over HTTP to the sync authority.
type Client struct {
	baseURL string
	appID   string
	apiKey  string
	http    *http.Client
}

// NewClient returns a client for the authority at baseURL. httpClient may be
// nil, in which case http.DefaultClient is used.
func NewClient(baseURL, appID, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		apiKey:  apiKey,
		http:    httpClient,
	}
}

func (c *Client) Delta(ctx context.Context, accessToken string, req protocol.DeltaRequest) (*protocol.DeltaResponse, error) {
	var resp protocol.DeltaResponse
	if err := c.post(ctx, "/sync/delta", accessToken, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error) {
	req := map[string]string{"refreshToken": refreshToken}
	var t auth.Tokens
	if err := c.post(ctx, "/auth/refresh", "", req, &t); err != nil {
		return auth.Tokens{}, err
	}
	return t, nil
}

func (c *Client) post(ctx context.Context, path, accessToken string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Id", c.appID)
	req.Header.Set("X-Api-Key", c.apiKey)
	if accessToken != "" {
		req.Header.Set(common.AccessTokenHeaderName, "Bearer "+accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", path, common.ErrorNotAuthenticated)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("server returned %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
