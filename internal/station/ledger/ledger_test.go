package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbit-station/station/internal/station/domain"
)

func TestRegistryResolvesByBlockchainAndStandard(t *testing.T) {
	registry := NewRegistry()
	adapter := NewMockAdapter(nil)
	registry.Register("ethereum", "erc20", adapter)

	resolved, err := registry.Resolve("ethereum", "erc20")
	require.NoError(t, err)
	require.Same(t, adapter, resolved)

	_, err = registry.Resolve("bitcoin", "native")
	require.ErrorIs(t, err, ErrNoAdapter)
}

func TestMockAdapterIsIdempotentPerTransfer(t *testing.T) {
	calls := 0
	adapter := NewMockAdapter(func(domain.Account, domain.Transfer) (SubmissionDetails, error) {
		calls++
		return SubmissionDetails{Details: map[string]string{"transaction_hash": "0xabc"}}, nil
	})

	transfer := domain.Transfer{ID: domain.NewID()}
	account := domain.Account{}

	first, err := adapter.SubmitTransaction(context.Background(), account, transfer)
	require.NoError(t, err)
	hash, ok := first.TransactionHash()
	require.True(t, ok)
	require.Equal(t, "0xabc", hash)

	second, err := adapter.SubmitTransaction(context.Background(), account, transfer)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
}

func TestMockAdapterPropagatesPermanentFailure(t *testing.T) {
	adapter := NewMockAdapter(func(domain.Account, domain.Transfer) (SubmissionDetails, error) {
		return SubmissionDetails{}, &AdapterError{Retryable: false, Info: "insufficient funds"}
	})

	_, err := adapter.SubmitTransaction(context.Background(), domain.Account{}, domain.Transfer{ID: domain.NewID()})
	require.Error(t, err)
	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	require.False(t, adapterErr.Retryable)
}
