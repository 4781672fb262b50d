package operations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPExternalResourceAdapter forwards external-resource actions to a
// generic HTTP collaborator, the production counterpart to the in-test
// stub adapter. Since §1 leaves "the universe of operation kinds" open,
// this adapter does not interpret Args itself: it forwards the action and
// opaque input verbatim and returns whatever body the collaborator sends
// back, the same pass-through shape ledger.HTTPAdapter and
// dr.HTTPAdapter use for their own external collaborators.
type HTTPExternalResourceAdapter struct {
	client  *http.Client
	baseURL string
}

// NewHTTPExternalResourceAdapter builds an HTTPExternalResourceAdapter
// posting to baseURL. A nil client defaults to a 30-second-timeout
// http.Client.
func NewHTTPExternalResourceAdapter(baseURL string, client *http.Client) *HTTPExternalResourceAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPExternalResourceAdapter{client: client, baseURL: baseURL}
}

type externalResourceRequest struct {
	Action     ExternalResourceAction `json:"action"`
	ResourceID string                 `json:"resource_id,omitempty"`
	Args       json.RawMessage        `json:"args,omitempty"`
}

func (a *HTTPExternalResourceAdapter) do(ctx context.Context, path string, action ExternalResourceAction, input ExternalResourceInput) ([]byte, error) {
	body, err := json.Marshal(externalResourceRequest{Action: action, ResourceID: input.ResourceID, Args: input.Args})
	if err != nil {
		return nil, fmt.Errorf("operations: encode external resource %s request: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("operations: build external resource %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("operations: external resource %s: %w", action, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("operations: read external resource %s response: %w", action, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("operations: external resource %s: upstream returned status %d", action, resp.StatusCode)
	}
	return respBody, nil
}

// Validate checks the resource reference against the collaborator's
// /validate endpoint without performing any effect.
func (a *HTTPExternalResourceAdapter) Validate(ctx context.Context, action ExternalResourceAction, input ExternalResourceInput) error {
	_, err := a.do(ctx, "/validate", action, input)
	return err
}

// Invoke performs action against the collaborator's /invoke endpoint.
func (a *HTTPExternalResourceAdapter) Invoke(ctx context.Context, action ExternalResourceAction, input ExternalResourceInput) ([]byte, error) {
	return a.do(ctx, "/invoke", action, input)
}
