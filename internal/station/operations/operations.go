// Package operations implements the per-kind request handlers: build (at
// create_request time), on_created (optional post-create side effect), and
// execute (the approved effect), per §4.6.
package operations

import (
	"context"
	"fmt"
	"time"

	"github.com/orbit-station/station/internal/station/domain"
)

// ExecuteOutcome is the result of a handler's Execute call: either a
// completed effect (with an opaque output blob to store on the Request's
// Operation.Output) or a failure reason, mirroring the reference's
// ExecuteStage/ExecuteError split (§4.6).
type ExecuteOutcome struct {
	Completed bool
	Output    []byte
	Reason    string
}

// Completed builds a successful ExecuteOutcome.
func Completed(output []byte) ExecuteOutcome {
	return ExecuteOutcome{Completed: true, Output: output}
}

// Failed builds a failed ExecuteOutcome with a human-readable reason.
func Failed(reason string) ExecuteOutcome {
	return ExecuteOutcome{Completed: false, Reason: reason}
}

// Handler implements the capability set for one RequestOperationType
// (§4.6). OnCreated is optional — a no-op default is fine for kinds with no
// post-create side effect.
type Handler interface {
	Type() domain.RequestOperationType
	// Build constructs the Request for a freshly-submitted input, including
	// its policy snapshot. It must not mutate any repository.
	Build(ctx context.Context, params BuildParams) (domain.Request, error)
	// OnCreated runs immediately after the Request is persisted.
	OnCreated(ctx context.Context, req domain.Request) error
	// Execute performs the approved effect.
	Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error)
}

// BuildParams carries everything a handler needs to construct a Request,
// decoupled from any particular transport encoding.
type BuildParams struct {
	RequestedBy    domain.ID
	Title          string
	Summary        string
	Now            time.Time
	ExpiresAt      time.Time
	Input          []byte
	PolicySnapshot domain.PolicySnapshot
	// ExecutionPlan carries the caller's requested execution_plan (§3):
	// zero-value means Immediate. evaluate() decides the actual plan at
	// Approved time, honoring a Scheduled{at} here instead of forcing now.
	ExecutionPlan domain.ExecutionPlan
}

// NewRequest builds the common Request envelope every handler's Build
// wraps its typed Operation.TargetID/Input around.
func NewRequest(opType domain.RequestOperationType, targetID domain.ID, params BuildParams) domain.Request {
	now := params.Now.UnixNano()
	return domain.Request{
		ID:          domain.NewID(),
		RequestedBy: params.RequestedBy,
		Operation: domain.Operation{
			Type:     opType,
			TargetID: targetID,
			Input:    params.Input,
		},
		Status:         domain.RequestStatus{Kind: domain.RequestStatusCreated, At: now},
		Title:          params.Title,
		Summary:        params.Summary,
		CreatedAt:      now,
		ExpirationDt:   params.ExpiresAt.UnixNano(),
		PolicySnapshot: params.PolicySnapshot,
		ExecutionPlan:  params.ExecutionPlan,
	}
}

// Registry resolves a Handler by operation kind.
type Registry struct {
	handlers map[domain.RequestOperationType]Handler
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.RequestOperationType]Handler)}
}

// Register binds h under its own Type(), panicking on a duplicate
// registration since that always indicates a wiring bug, never user input.
func (r *Registry) Register(h Handler) {
	if _, exists := r.handlers[h.Type()]; exists {
		panic(fmt.Sprintf("operations: handler for %s already registered", h.Type()))
	}
	r.handlers[h.Type()] = h
}

// ErrUnknownOperation is returned by Resolve for an unregistered kind.
var ErrUnknownOperation = fmt.Errorf("operations: no handler registered for operation type")

// Resolve looks up the Handler for opType.
func (r *Registry) Resolve(opType domain.RequestOperationType) (Handler, error) {
	h, ok := r.handlers[opType]
	if !ok {
		return nil, ErrUnknownOperation
	}
	return h, nil
}

// noopOnCreated is embedded by handlers with no post-create side effect.
type noopOnCreated struct{}

func (noopOnCreated) OnCreated(context.Context, domain.Request) error { return nil }
