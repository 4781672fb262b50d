// Package lifecycle implements the Request status state machine's fixed
// transition table (§4.5).
package lifecycle

import (
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
)

// ErrForbiddenTransition is returned when a requested transition is not in
// the fixed table (§4.5 "Status transitions outside the above table are
// forbidden").
type ErrForbiddenTransition struct {
	From domain.RequestStatusKind
	To   domain.RequestStatusKind
}

func (e *ErrForbiddenTransition) Error() string {
	return fmt.Sprintf("lifecycle: transition %s -> %s is forbidden", e.From, e.To)
}

// ErrTerminal is returned when attempting to transition a request already
// in a terminal state.
var ErrTerminal = fmt.Errorf("lifecycle: request is in a terminal state")

// allowed enumerates every permitted (from, to) edge in the table. Created
// has no "from" predecessor in the table (it is produced by create_request,
// not a transition), so it is never a value here.
var allowed = map[domain.RequestStatusKind]map[domain.RequestStatusKind]bool{
	domain.RequestStatusCreated: {
		domain.RequestStatusApproved:  true,
		domain.RequestStatusRejected:  true,
		domain.RequestStatusCancelled: true,
	},
	domain.RequestStatusApproved: {
		domain.RequestStatusScheduled: true,
	},
	domain.RequestStatusScheduled: {
		domain.RequestStatusProcessing: true,
	},
	domain.RequestStatusProcessing: {
		domain.RequestStatusCompleted: true,
		domain.RequestStatusFailed:    true,
	},
}

// Transition validates and applies the move from req's current status to
// next, returning the updated RequestStatus. It never mutates req; callers
// persist the returned status themselves.
func Transition(req domain.Request, next domain.RequestStatus) (domain.RequestStatus, error) {
	if req.Status.IsTerminal() {
		return domain.RequestStatus{}, ErrTerminal
	}
	edges, ok := allowed[req.Status.Kind]
	if !ok || !edges[next.Kind] {
		return domain.RequestStatus{}, &ErrForbiddenTransition{From: req.Status.Kind, To: next.Kind}
	}
	return next, nil
}

// CanTransition reports whether from -> to is a permitted edge, without
// constructing an error.
func CanTransition(from, to domain.RequestStatusKind) bool {
	return allowed[from][to]
}
