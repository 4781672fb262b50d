package domain

// RequestStatusKind enumerates the states of the lifecycle FSM (§4.5).
type RequestStatusKind string

const (
	RequestStatusCreated    RequestStatusKind = "created"
	RequestStatusApproved   RequestStatusKind = "approved"
	RequestStatusRejected   RequestStatusKind = "rejected"
	RequestStatusCancelled  RequestStatusKind = "cancelled"
	RequestStatusScheduled  RequestStatusKind = "scheduled"
	RequestStatusProcessing RequestStatusKind = "processing"
	RequestStatusCompleted  RequestStatusKind = "completed"
	RequestStatusFailed     RequestStatusKind = "failed"
)

// RequestStatus carries the status-specific payload alongside the kind,
// mirroring the reference's enum-with-payload states.
type RequestStatus struct {
	Kind      RequestStatusKind `json:"kind"`
	Reason    string            `json:"reason,omitempty"`
	At        int64             `json:"at,omitempty"`
	StartedAt int64             `json:"started_at,omitempty"`
}

// IsTerminal reports whether the status admits no further transition.
func (s RequestStatus) IsTerminal() bool {
	switch s.Kind {
	case RequestStatusRejected, RequestStatusCancelled, RequestStatusCompleted, RequestStatusFailed:
		return true
	default:
		return false
	}
}

// ApprovalDecision is Approved or Rejected, never both, per approver.
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionRejected ApprovalDecision = "rejected"
)

// Approval is one approver's immutable decision on a Request.
type Approval struct {
	ApproverID ID               `json:"approver_id"`
	Decision   ApprovalDecision `json:"decision"`
	Reason     string           `json:"reason,omitempty"`
	DecidedAt  int64            `json:"decided_at"`
}

// ExecutionPlanKind is Immediate or Scheduled(at).
type ExecutionPlanKind string

const (
	ExecutionImmediate ExecutionPlanKind = "immediate"
	ExecutionScheduled ExecutionPlanKind = "scheduled"
)

// ExecutionPlan describes when an Approved request should run.
type ExecutionPlan struct {
	Kind ExecutionPlanKind `json:"kind"`
	At   int64             `json:"at,omitempty"`
}

// PolicySnapshot is the evaluated rule tree plus the eligible-approver set
// captured at request creation (§3, §4.4). A Request never re-reads live
// policies after creation — NamedRule references are fully expanded here.
type PolicySnapshot struct {
	Rule              Rule `json:"rule"`
	EligibleApprovers []ID `json:"eligible_approvers"`
}

// Operation is the tagged payload of a Request: a kind plus an opaque,
// handler-defined input/output blob. Concrete handlers (internal/station/
// operations) decode Input/Output into their own typed structs; the
// repository and policy layers only need OperationType and TargetID.
type Operation struct {
	Type     RequestOperationType `json:"operation_type"`
	TargetID ID                   `json:"target_id,omitempty"`
	Input    []byte               `json:"input"`
	Output   []byte               `json:"output,omitempty"`
}

// Request is the central entity: a proposed privileged action subject to
// voting before execution (§3).
type Request struct {
	ID                        ID             `json:"id"`
	RequestedBy               ID             `json:"requested_by"`
	Operation                 Operation      `json:"operation"`
	Status                    RequestStatus  `json:"status"`
	Title                     string         `json:"title"`
	Summary                   string         `json:"summary,omitempty"`
	CreatedAt                 int64          `json:"created_at"`
	ExpirationDt              int64          `json:"expiration_dt"`
	ExecutionPlan             ExecutionPlan  `json:"execution_plan"`
	Approvals                 []Approval     `json:"approvals"`
	PolicySnapshot            PolicySnapshot `json:"policy_snapshot"`
	TransferID                *ID            `json:"transfer_id,omitempty"`
	LastModificationTimestamp int64          `json:"last_modification_timestamp"`
}

// RequestCallerPrivileges projects what the caller may do with a Request record.
type RequestCallerPrivileges struct {
	ID        ID   `json:"id"`
	CanApprove bool `json:"can_approve"`
}

// HasVoted reports whether approver already placed a decision (§8 invariant
// 1: "single-decision").
func (r Request) HasVoted(approver ID) bool {
	for _, a := range r.Approvals {
		if a.ApproverID == approver {
			return true
		}
	}
	return false
}

// IsEligibleApprover reports whether approver appears in the policy
// snapshot's eligible set.
func (r Request) IsEligibleApprover(approver ID) bool {
	for _, id := range r.PolicySnapshot.EligibleApprovers {
		if id == approver {
			return true
		}
	}
	return false
}
