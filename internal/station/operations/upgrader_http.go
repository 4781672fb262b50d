package operations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPUpgrader invokes the external upgrader collaborator over HTTP, the
// production counterpart to the in-test stub Upgrader. §1 keeps "upgrader
// canister mechanics" out of scope, so this only delivers the request; it
// does not poll for completion or retry.
type HTTPUpgrader struct {
	client  *http.Client
	baseURL string
}

// NewHTTPUpgrader builds an HTTPUpgrader posting to baseURL + "/upgrade".
// A nil client defaults to a 30-second-timeout http.Client.
func NewHTTPUpgrader(baseURL string, client *http.Client) *HTTPUpgrader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPUpgrader{client: client, baseURL: baseURL}
}

type upgradeRequest struct {
	ModuleHash string `json:"module_hash"`
	Args       []byte `json:"args,omitempty"`
}

func (u *HTTPUpgrader) Upgrade(ctx context.Context, moduleHash string, args []byte) error {
	body, err := json.Marshal(upgradeRequest{ModuleHash: moduleHash, Args: args})
	if err != nil {
		return fmt.Errorf("operations: encode upgrade request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/upgrade", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("operations: build upgrade request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("operations: upgrade: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("operations: upgrade: upstream returned status %d", resp.StatusCode)
	}
	return nil
}
