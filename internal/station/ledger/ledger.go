// Package ledger defines the outbound asset-transfer adapter contract the
// transfer execution job drives, and the adapters that implement it (§6
// "Ledger adapter contract").
package ledger

import (
	"context"
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
)

// MaxSubmitRetries bounds submit_transaction retries on transient
// AdapterError before the transfer execution job gives up and fails the
// Transfer terminally (§9 Open Question: bounded retry count).
const MaxSubmitRetries = 10

// SubmissionDetails carries the adapter's outcome; Details holds at least
// transaction_hash when the chain reports one (§6).
type SubmissionDetails struct {
	Details map[string]string
}

// TransactionHash is a convenience accessor for the "transaction_hash" key.
func (s SubmissionDetails) TransactionHash() (string, bool) {
	hash, ok := s.Details["transaction_hash"]
	return hash, ok
}

// AdapterError reports a ledger-adapter failure, distinguishing transient
// faults (worth retrying up to MaxSubmitRetries) from permanent ones.
type AdapterError struct {
	Retryable bool
	Info      string
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("ledger: adapter error (retryable=%t): %s", e.Retryable, e.Info)
}

// Adapter submits a native-asset transfer to its blockchain, selected per
// (blockchain, standard) by a Registry. Implementations must deduplicate
// using transfer's ID as the idempotency memo, since submit_transaction may
// be retried by the execution job on transient faults (§5 "Idempotence
// under retries").
type Adapter interface {
	SubmitTransaction(ctx context.Context, account domain.Account, transfer domain.Transfer) (SubmissionDetails, error)
}

// Registry selects an Adapter by (blockchain, standard).
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func registryKey(blockchain, standard string) string { return blockchain + ":" + standard }

// Register binds adapter to (blockchain, standard), replacing any prior
// registration for the same pair.
func (r *Registry) Register(blockchain, standard string, adapter Adapter) {
	r.adapters[registryKey(blockchain, standard)] = adapter
}

// ErrNoAdapter is returned when no Adapter is registered for a pair.
var ErrNoAdapter = fmt.Errorf("ledger: no adapter registered")

// Resolve looks up the Adapter for (blockchain, standard).
func (r *Registry) Resolve(blockchain, standard string) (Adapter, error) {
	adapter, ok := r.adapters[registryKey(blockchain, standard)]
	if !ok {
		return nil, ErrNoAdapter
	}
	return adapter, nil
}
