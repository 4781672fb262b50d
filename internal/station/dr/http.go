package dr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPAdapter posts snapshots to an external mirror service over HTTP, the
// production counterpart to a test stub Adapter.
type HTTPAdapter struct {
	client  *http.Client
	baseURL string
}

// NewHTTPAdapter builds an HTTPAdapter posting to baseURL. A nil client
// defaults to a 30-second-timeout http.Client.
func NewHTTPAdapter(baseURL string, client *http.Client) *HTTPAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPAdapter{client: client, baseURL: baseURL}
}

type setAccountsRequest struct {
	Accounts []AccountPayload `json:"accounts"`
	Assets   []AssetPayload   `json:"assets"`
}

type setCommitteeRequest struct {
	Committee CommitteePayload `json:"committee"`
}

func (a *HTTPAdapter) post(ctx context.Context, path string, body any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("dr: encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("dr: build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("dr: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("dr: %s: upstream returned status %d", path, resp.StatusCode)
	}
	return nil
}

func (a *HTTPAdapter) SetDisasterRecoveryAccounts(ctx context.Context, snapshot AccountsSnapshot) error {
	return a.post(ctx, "/set_disaster_recovery_accounts", setAccountsRequest{Accounts: snapshot.Accounts, Assets: snapshot.Assets})
}

func (a *HTTPAdapter) SetDisasterRecoveryCommittee(ctx context.Context, committee CommitteePayload) error {
	return a.post(ctx, "/set_disaster_recovery_committee", setCommitteeRequest{Committee: committee})
}
