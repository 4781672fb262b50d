package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orbit-station/station/internal/station/domain"
)

func TestTransitionFullHappyPath(t *testing.T) {
	req := domain.Request{Status: domain.RequestStatus{Kind: domain.RequestStatusCreated}}

	status, err := Transition(req, domain.RequestStatus{Kind: domain.RequestStatusApproved})
	require.NoError(t, err)
	req.Status = status

	status, err = Transition(req, domain.RequestStatus{Kind: domain.RequestStatusScheduled})
	require.NoError(t, err)
	req.Status = status

	status, err = Transition(req, domain.RequestStatus{Kind: domain.RequestStatusProcessing})
	require.NoError(t, err)
	req.Status = status

	status, err = Transition(req, domain.RequestStatus{Kind: domain.RequestStatusCompleted})
	require.NoError(t, err)
	require.True(t, status.IsTerminal())
}

func TestTransitionRejectsSkippingStates(t *testing.T) {
	req := domain.Request{Status: domain.RequestStatus{Kind: domain.RequestStatusCreated}}

	_, err := Transition(req, domain.RequestStatus{Kind: domain.RequestStatusProcessing})
	require.Error(t, err)
	var forbidden *ErrForbiddenTransition
	require.ErrorAs(t, err, &forbidden)
}

func TestTransitionRejectsMutatingTerminalState(t *testing.T) {
	req := domain.Request{Status: domain.RequestStatus{Kind: domain.RequestStatusCompleted}}

	_, err := Transition(req, domain.RequestStatus{Kind: domain.RequestStatusFailed})
	require.ErrorIs(t, err, ErrTerminal)
}

func TestCanTransitionMatchesTable(t *testing.T) {
	require.True(t, CanTransition(domain.RequestStatusCreated, domain.RequestStatusCancelled))
	require.False(t, CanTransition(domain.RequestStatusCreated, domain.RequestStatusCompleted))
	require.False(t, CanTransition(domain.RequestStatusCompleted, domain.RequestStatusFailed))
}
