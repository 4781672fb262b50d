package api

import (
	"encoding/json"
	"time"

	"github.com/orbit-station/station/internal/station/domain"
)

// createRequestRequest is the wire shape of create_request's
// CreateRequestInput (§6): the operation tag plus its opaque, handler-typed
// input payload.
type createRequestRequest struct {
	OperationType  domain.RequestOperationType `json:"operation_type"`
	OperationInput json.RawMessage             `json:"operation_input"`
	Title          string                      `json:"title"`
	Summary        string                      `json:"summary,omitempty"`
	ExpiresIn      string                      `json:"expires_in,omitempty"` // e.g. "168h"; defaults server-side when empty
	// ExecutionPlan is the wire form of §3's execution_plan ∈ {Immediate,
	// Scheduled(at)}; omitted or Kind=="" defaults to Immediate.
	ExecutionPlan *wireExecutionPlanInput `json:"execution_plan,omitempty"`
}

// wireExecutionPlanInput is the inbound counterpart of wireExecutionPlan:
// At is parsed as RFC3339 only when Kind is Scheduled.
type wireExecutionPlanInput struct {
	Kind domain.ExecutionPlanKind `json:"kind"`
	At   string                   `json:"at,omitempty"`
}

type submitRequestApprovalRequest struct {
	RequestID string                  `json:"request_id"`
	Decision  domain.ApprovalDecision `json:"decision"`
	Reason    string                  `json:"reason,omitempty"`
}

type notifyFailedUpgradeRequest struct {
	Reason string `json:"reason"`
}

type notifyFailedUpgradeResponse struct {
	Acknowledged bool   `json:"acknowledged"`
	ReceivedAt   string `json:"received_at"`
}

// wireApproval, wireStatus, wireExecutionPlan, and wireRequest present
// domain.Request over the wire with RFC3339 timestamps (§6 "Timestamps on
// the wire are RFC3339 strings; internal storage is nanoseconds"), leaving
// the domain type itself free to keep the cheaper int64 nanosecond form.
type wireApproval struct {
	ApproverID string                  `json:"approver_id"`
	Decision   domain.ApprovalDecision `json:"decision"`
	Reason     string                  `json:"reason,omitempty"`
	DecidedAt  string                  `json:"decided_at"`
}

type wireStatus struct {
	Kind      domain.RequestStatusKind `json:"kind"`
	Reason    string                   `json:"reason,omitempty"`
	At        string                   `json:"at,omitempty"`
	StartedAt string                   `json:"started_at,omitempty"`
}

type wireExecutionPlan struct {
	Kind domain.ExecutionPlanKind `json:"kind"`
	At   string                   `json:"at,omitempty"`
}

type wireRequest struct {
	ID                        string                         `json:"id"`
	RequestedBy               string                         `json:"requested_by"`
	Operation                 domain.Operation               `json:"operation"`
	Status                    wireStatus                     `json:"status"`
	Title                     string                         `json:"title"`
	Summary                   string                         `json:"summary,omitempty"`
	CreatedAt                 string                         `json:"created_at"`
	ExpirationDt              string                         `json:"expiration_dt"`
	ExecutionPlan             wireExecutionPlan              `json:"execution_plan"`
	Approvals                 []wireApproval                 `json:"approvals"`
	PolicySnapshot            domain.PolicySnapshot          `json:"policy_snapshot"`
	TransferID                string                         `json:"transfer_id,omitempty"`
	LastModificationTimestamp string                         `json:"last_modification_timestamp"`
}

func toWireRequest(r domain.Request) wireRequest {
	approvals := make([]wireApproval, len(r.Approvals))
	for i, a := range r.Approvals {
		approvals[i] = wireApproval{
			ApproverID: a.ApproverID.String(),
			Decision:   a.Decision,
			Reason:     a.Reason,
			DecidedAt:  rfc3339(a.DecidedAt),
		}
	}
	var transferID string
	if r.TransferID != nil {
		transferID = r.TransferID.String()
	}
	return wireRequest{
		ID:          r.ID.String(),
		RequestedBy: r.RequestedBy.String(),
		Operation:   r.Operation,
		Status: wireStatus{
			Kind:      r.Status.Kind,
			Reason:    r.Status.Reason,
			At:        rfc3339(r.Status.At),
			StartedAt: rfc3339(r.Status.StartedAt),
		},
		Title:        r.Title,
		Summary:      r.Summary,
		CreatedAt:    rfc3339(r.CreatedAt),
		ExpirationDt: rfc3339(r.ExpirationDt),
		ExecutionPlan: wireExecutionPlan{
			Kind: r.ExecutionPlan.Kind,
			At:   rfc3339(r.ExecutionPlan.At),
		},
		Approvals:                 approvals,
		PolicySnapshot:            r.PolicySnapshot,
		TransferID:                transferID,
		LastModificationTimestamp: rfc3339(r.LastModificationTimestamp),
	}
}

type requestEnvelope struct {
	Request    wireRequest                      `json:"request"`
	Privileges *domain.RequestCallerPrivileges `json:"privileges,omitempty"`
}

type listRequestsResponse struct {
	Requests   []wireRequest `json:"requests"`
	Total      int           `json:"total"`
	NextOffset *int          `json:"next_offset,omitempty"`
}

func rfc3339(ns int64) string {
	if ns == 0 {
		return ""
	}
	return time.Unix(0, ns).UTC().Format(time.RFC3339)
}
