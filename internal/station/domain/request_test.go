package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRequestHasVotedSingleDecision(t *testing.T) {
	approver := NewID()
	other := NewID()
	r := Request{
		Approvals: []Approval{
			{ApproverID: approver, Decision: DecisionApproved, DecidedAt: 1},
		},
	}

	require.True(t, r.HasVoted(approver))
	require.False(t, r.HasVoted(other))
}

func TestRequestStatusTerminal(t *testing.T) {
	require.True(t, RequestStatus{Kind: RequestStatusCompleted}.IsTerminal())
	require.True(t, RequestStatus{Kind: RequestStatusFailed}.IsTerminal())
	require.True(t, RequestStatus{Kind: RequestStatusRejected}.IsTerminal())
	require.True(t, RequestStatus{Kind: RequestStatusCancelled}.IsTerminal())
	require.False(t, RequestStatus{Kind: RequestStatusCreated}.IsTerminal())
	require.False(t, RequestStatus{Kind: RequestStatusScheduled}.IsTerminal())
}

func TestPolicySnapshotIsValueCopy(t *testing.T) {
	rule := Rule{Kind: RuleAutoApproved}
	snap := PolicySnapshot{Rule: rule, EligibleApprovers: []ID{NewID()}}
	r := Request{PolicySnapshot: snap}

	// Mutating the source rule after the request captured its snapshot must
	// not affect the request (§3 "never re-reads live policies").
	rule.Kind = RuleAutoRejected
	require.Equal(t, RuleAutoApproved, r.PolicySnapshot.Rule.Kind)
}

func TestTransferStatusTerminal(t *testing.T) {
	require.True(t, TransferStatus{Kind: TransferCompleted}.IsTerminal())
	require.True(t, TransferStatus{Kind: TransferFailed}.IsTerminal())
	require.False(t, TransferStatus{Kind: TransferProcessing}.IsTerminal())
}
