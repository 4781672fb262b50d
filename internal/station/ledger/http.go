package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/orbit-station/station/internal/station/domain"
)

// HTTPAdapter submits transfers to an external chain-submission service
// over HTTP, the production counterpart to MockAdapter.
type HTTPAdapter struct {
	client  *http.Client
	baseURL string
}

// NewHTTPAdapter builds an HTTPAdapter posting to baseURL + "/submit". A
// nil client defaults to a 30-second-timeout http.Client.
func NewHTTPAdapter(baseURL string, client *http.Client) *HTTPAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPAdapter{client: client, baseURL: baseURL}
}

type submitRequest struct {
	Blockchain    string `json:"blockchain"`
	Standard      string `json:"standard"`
	FromAddress   string `json:"from_address"`
	ToAddress     string `json:"to_address"`
	Amount        string `json:"amount"`
	IdempotencyID string `json:"idempotency_id"`
}

type submitResponse struct {
	Details   map[string]string `json:"details"`
	Retryable bool              `json:"retryable"`
	Error     string            `json:"error,omitempty"`
}

func (a *HTTPAdapter) SubmitTransaction(ctx context.Context, account domain.Account, transfer domain.Transfer) (SubmissionDetails, error) {
	body, err := json.Marshal(submitRequest{
		Blockchain:    account.Blockchain,
		Standard:      account.Standard,
		FromAddress:   account.Address,
		ToAddress:     transfer.ToAddress,
		Amount:        transfer.Amount,
		IdempotencyID: transfer.ID.String(),
	})
	if err != nil {
		return SubmissionDetails{}, fmt.Errorf("ledger: encode submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/submit", bytes.NewReader(body))
	if err != nil {
		return SubmissionDetails{}, fmt.Errorf("ledger: build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return SubmissionDetails{}, &AdapterError{Retryable: true, Info: err.Error()}
	}
	defer resp.Body.Close()

	var parsed submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return SubmissionDetails{}, &AdapterError{Retryable: true, Info: fmt.Sprintf("decode response: %v", err)}
	}

	if resp.StatusCode >= 300 || parsed.Error != "" {
		return SubmissionDetails{}, &AdapterError{Retryable: parsed.Retryable, Info: parsed.Error}
	}

	return SubmissionDetails{Details: parsed.Details}, nil
}
