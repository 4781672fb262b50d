package ledger

import (
	"context"
	"sync"

	"github.com/orbit-station/station/internal/station/domain"
)

// MockAdapter is an in-memory Adapter for tests and local runs: it records
// every submission and returns a canned (details, error) pair, keyed by
// transfer ID so repeated submit_transaction calls for the same Transfer
// are idempotent exactly like a real chain adapter must be.
type MockAdapter struct {
	mu       sync.Mutex
	seen     map[domain.ID]SubmissionDetails
	OnSubmit func(account domain.Account, transfer domain.Transfer) (SubmissionDetails, error)
}

// NewMockAdapter builds a MockAdapter. onSubmit may be nil, in which case
// every submission succeeds with no details.
func NewMockAdapter(onSubmit func(domain.Account, domain.Transfer) (SubmissionDetails, error)) *MockAdapter {
	return &MockAdapter{seen: make(map[domain.ID]SubmissionDetails), OnSubmit: onSubmit}
}

func (m *MockAdapter) SubmitTransaction(_ context.Context, account domain.Account, transfer domain.Transfer) (SubmissionDetails, error) {
	m.mu.Lock()
	if details, ok := m.seen[transfer.ID]; ok {
		m.mu.Unlock()
		return details, nil
	}
	m.mu.Unlock()

	var details SubmissionDetails
	var err error
	if m.OnSubmit != nil {
		details, err = m.OnSubmit(account, transfer)
	}
	if err == nil {
		m.mu.Lock()
		m.seen[transfer.ID] = details
		m.mu.Unlock()
	}
	return details, err
}
