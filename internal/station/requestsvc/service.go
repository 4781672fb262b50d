// Package requestsvc orchestrates the request lifecycle end to end: create,
// vote, schedule and execute, wiring the policy evaluator, lifecycle FSM,
// scheduler and operation registry onto the repository layer (§4.5, §6).
package requestsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/orbit-station/station/internal/platform/metrics"
	"github.com/orbit-station/station/internal/station/authz"
	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/ledger"
	"github.com/orbit-station/station/internal/station/lifecycle"
	"github.com/orbit-station/station/internal/station/operations"
	"github.com/orbit-station/station/internal/station/policy"
	"github.com/orbit-station/station/internal/station/repo"
	"github.com/orbit-station/station/internal/station/scheduler"
	"github.com/orbit-station/station/internal/station/stationerr"
	"github.com/orbit-station/station/internal/station/store"
)

// Clock abstracts wall time, matching scheduler.Clock so a Service and its
// Scheduler can share one fake clock under test.
type Clock func() time.Time

// Config bundles everything Service needs to wire every operation's
// collaborators in one place.
type Config struct {
	Requests        *repo.Requests
	Users           *repo.Users
	UserGroups      *repo.UserGroups
	Accounts        *repo.Accounts
	AddressBook     *repo.AddressBook
	Permissions     *repo.Permissions
	PolicyBindings  *repo.PolicyBindings
	NamedRules      *repo.NamedRules
	Transfers       *repo.Transfers
	SystemInfo      *operations.SystemInfoStore
	Registry        *operations.Registry
	Ledgers         *ledger.Registry
	ApprovalWindow  time.Duration
	// BatchSize caps how many due items ExecuteScheduledRequests/
	// ExecuteCreatedTransfers process per firing (§5 "MAX_BATCH_SIZE");
	// defaultBatchSize is used when unset.
	BatchSize int
	Metrics   *metrics.Metrics
	Now       Clock
	Log       *logrus.Entry
}

// Service is the station's request-approval-execution orchestrator. It
// implements scheduler.JobRunner, so a *Scheduler built elsewhere can drive
// it directly.
type Service struct {
	requests       *repo.Requests
	users          *repo.Users
	userGroups     *repo.UserGroups
	accounts       *repo.Accounts
	addressBook    *repo.AddressBook
	permissions    *repo.Permissions
	policyBindings *repo.PolicyBindings
	namedRules     *repo.NamedRules
	transfers      *repo.Transfers
	systemInfo     *operations.SystemInfoStore
	registry       *operations.Registry
	ledgers        *ledger.Registry
	approvalWindow time.Duration
	batchSize      int
	metrics        *metrics.Metrics
	now            Clock
	log            *logrus.Entry

	locks     *keyedMutex
	scheduler *scheduler.Scheduler
}

// defaultBatchSize is used when Config.BatchSize is unset (§5
// "MAX_BATCH_SIZE").
const defaultBatchSize = 50

// New builds a Service from cfg. AttachScheduler must be called afterward
// before CreateRequest/SubmitRequestApproval are used, since those methods
// arm timers on it.
func New(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{
		requests:       cfg.Requests,
		users:          cfg.Users,
		userGroups:     cfg.UserGroups,
		accounts:       cfg.Accounts,
		addressBook:    cfg.AddressBook,
		permissions:    cfg.Permissions,
		policyBindings: cfg.PolicyBindings,
		namedRules:     cfg.NamedRules,
		transfers:      cfg.Transfers,
		systemInfo:     cfg.SystemInfo,
		registry:       cfg.Registry,
		ledgers:        cfg.Ledgers,
		approvalWindow: cfg.ApprovalWindow,
		batchSize:      batchSize,
		metrics:        cfg.Metrics,
		now:            now,
		log:            log,
		locks:          newKeyedMutex(),
	}
}

// AttachScheduler binds the Scheduler that arms CancelExpiredRequests/
// ExecuteScheduledRequests/ExecuteCreatedTransfers timers. Split from New
// since the Scheduler's own constructor takes a JobRunner and Service is it.
func (s *Service) AttachScheduler(sched *scheduler.Scheduler) {
	s.scheduler = sched
}

func (s *Service) membership(ctx context.Context) membership {
	return newMembership(ctx, s.users, s.addressBook, s.accounts)
}

// resolvePolicySnapshot computes the PolicySnapshot a newly built Request
// should carry: the first PolicyBinding whose specifier matches opType
// (instance-specific bindings are resolved by the handler itself before the
// target ID exists, e.g. TransferHandler's own per-account lookup — so
// Matches is checked against domain.ZeroID here, which only misses bindings
// carrying non-empty TargetIDs), expanded against live NamedRules, falling
// back to a default Quorum rule over every active user when no binding
// applies at all (§3 "default_quorum" / "default_quorum_percent" exist
// precisely to seed this fallback).
func (s *Service) resolvePolicySnapshot(ctx context.Context, opType domain.RequestOperationType, requester domain.ID) (domain.PolicySnapshot, error) {
	rule, err := s.resolveRule(ctx, opType)
	if err != nil {
		return domain.PolicySnapshot{}, err
	}
	expanded, err := policy.Expand(rule, s.namedRuleResolver(ctx))
	if err != nil {
		return domain.PolicySnapshot{}, stationerr.Fatal("policy tree failed to expand", err)
	}
	m := s.membership(ctx)
	approvers := policy.EligibleApprovers(expanded, requester, m)
	return domain.PolicySnapshot{Rule: expanded, EligibleApprovers: approvers}, nil
}

func (s *Service) resolveRule(ctx context.Context, opType domain.RequestOperationType) (domain.Rule, error) {
	bindings, err := s.policyBindings.ForOperation(ctx, opType)
	if err != nil {
		return domain.Rule{}, err
	}
	for _, binding := range bindings {
		if binding.Specifier.Matches(opType, domain.ZeroID) {
			return binding.Rule, nil
		}
	}
	return s.defaultRule(ctx)
}

func (s *Service) defaultRule(ctx context.Context) (domain.Rule, error) {
	info, err := s.systemInfo.Get(ctx)
	if err != nil {
		return domain.Rule{}, err
	}
	if info.DefaultQuorumPercent > 0 {
		return domain.Rule{Kind: domain.RuleQuorumPercentage, Approvers: domain.AnySpecifier(), MinPercent: info.DefaultQuorumPercent}, nil
	}
	min := info.DefaultQuorum
	if min <= 0 {
		min = 1
	}
	return domain.Rule{Kind: domain.RuleQuorum, Approvers: domain.AnySpecifier(), MinVotes: min}, nil
}

func (s *Service) namedRuleResolver(ctx context.Context) policy.ResolveNamedRule {
	return func(id domain.ID) (domain.Rule, error) {
		rule, err := s.namedRules.Get(ctx, id)
		if err != nil {
			return domain.Rule{}, err
		}
		return rule.Rule, nil
	}
}

// CreateRequestInput is the transport-independent envelope create_request
// decodes from (§6 "Operation input envelope"): an operation kind tag plus
// its own opaque JSON body.
type CreateRequestInput struct {
	OperationType domain.RequestOperationType `json:"operation_type"`
	Title         string                      `json:"title"`
	Summary       string                      `json:"summary,omitempty"`
	ExpiresIn     time.Duration               `json:"expires_in,omitempty"`
	// ExecutionPlan is the caller's requested execution_plan (§3, §6
	// "CreateRequestInput.execution_plan?: Immediate | Scheduled{at}"). Nil
	// means Immediate, decided at Approved time.
	ExecutionPlan  *domain.ExecutionPlan `json:"execution_plan,omitempty"`
	OperationInput json.RawMessage       `json:"operation_input"`
}

// defaultExpiry is used when CreateRequestInput.ExpiresIn is unset, mirroring
// the reference's default_expiration_dt_ns of one week.
const defaultExpiry = 7 * 24 * time.Hour

// CreateRequest validates caller's permission to act on input's resource
// kind, resolves the operation handler and policy snapshot, and persists a
// new Request in Created status (§4.1, §4.3, §4.4, §4.6).
func (s *Service) CreateRequest(ctx context.Context, caller authz.Caller, input CreateRequestInput) (domain.Request, error) {
	if caller.IsAnonymous || !caller.User.IsActive() {
		return domain.Request{}, stationerr.Forbidden("caller must be an active, authenticated user")
	}
	handler, err := s.registry.Resolve(input.OperationType)
	if err != nil {
		return domain.Request{}, stationerr.Validation(fmt.Sprintf("unknown operation type %q", input.OperationType))
	}
	resource := domain.Resource{Kind: input.OperationType.ResourceKind(), Action: domain.ActionCreate}
	permission, err := s.permissions.Get(ctx, resource)
	if err != nil {
		if err != store.ErrNotFound {
			return domain.Request{}, err
		}
		// No Permission configured for this resource: default-deny, the
		// zero-value Permission's Restricted scope with empty allow lists.
		permission = domain.Permission{Resource: resource}
	}
	if !authz.IsAllowed(permission, caller) {
		return domain.Request{}, stationerr.Forbidden(fmt.Sprintf("not permitted to create %s requests", input.OperationType))
	}

	now := s.now()
	expiresIn := input.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiry
	}
	snapshot, err := s.resolvePolicySnapshot(ctx, input.OperationType, caller.User.ID)
	if err != nil {
		return domain.Request{}, err
	}

	var plan domain.ExecutionPlan
	if input.ExecutionPlan != nil {
		plan = *input.ExecutionPlan
	}
	params := operations.BuildParams{
		RequestedBy:    caller.User.ID,
		Title:          input.Title,
		Summary:        input.Summary,
		Now:            now,
		ExpiresAt:      now.Add(expiresIn),
		Input:          input.OperationInput,
		PolicySnapshot: snapshot,
		ExecutionPlan:  plan,
	}
	req, err := handler.Build(ctx, params)
	if err != nil {
		return domain.Request{}, err
	}
	if err := s.requests.Upsert(ctx, req); err != nil {
		return domain.Request{}, err
	}
	if err := handler.OnCreated(ctx, req); err != nil {
		s.log.WithError(err).WithField("request_id", req.ID).Error("on_created hook failed")
	}
	if s.scheduler != nil {
		s.scheduler.ScheduleCancelExpiredRequest(ctx, req.ID, time.Unix(0, req.ExpirationDt))
	}

	if evaluated, changed := s.evaluate(ctx, req); changed {
		if err := s.requests.Upsert(ctx, evaluated); err != nil {
			return domain.Request{}, err
		}
		s.armFollowupTimers(ctx, evaluated)
		return evaluated, nil
	}
	return req, nil
}

// evaluate runs the policy evaluator against req's current approvals and
// applies whatever lifecycle transition the outcome permits, returning the
// possibly-updated Request and whether it actually changed. req must be in
// Created status; anything else is a no-op.
func (s *Service) evaluate(ctx context.Context, req domain.Request) (domain.Request, bool) {
	if req.Status.Kind != domain.RequestStatusCreated {
		return req, false
	}
	outcome := policy.Evaluate(req.PolicySnapshot.Rule, req, s.membership(ctx))
	if s.metrics != nil {
		s.metrics.RecordPolicyEvaluation(string(req.PolicySnapshot.Rule.Kind), string(outcome))
	}
	var next domain.RequestStatus
	switch outcome {
	case policy.Approved:
		next = domain.RequestStatus{Kind: domain.RequestStatusApproved, At: s.now().UnixNano()}
	case policy.Rejected:
		next = domain.RequestStatus{Kind: domain.RequestStatusRejected, At: s.now().UnixNano()}
	default:
		return req, false
	}
	status, err := lifecycle.Transition(req, next)
	if err != nil {
		s.log.WithError(err).WithField("request_id", req.ID).Error("policy outcome produced an illegal transition")
		return req, false
	}
	req.Status = status
	req.LastModificationTimestamp = s.now().UnixNano()
	if s.metrics != nil {
		s.metrics.RecordRequestStatus(string(req.Operation.Type), string(status.Kind))
	}

	if status.Kind == domain.RequestStatusApproved {
		scheduled, err := lifecycle.Transition(req, domain.RequestStatus{Kind: domain.RequestStatusScheduled, At: s.now().UnixNano()})
		if err == nil {
			req.Status = scheduled
			// at = execution_plan.at or now (§4.5): honor a caller-requested
			// Scheduled{at}, otherwise run immediately.
			at := s.now().UnixNano()
			kind := domain.ExecutionImmediate
			if req.ExecutionPlan.Kind == domain.ExecutionScheduled && req.ExecutionPlan.At > at {
				kind = domain.ExecutionScheduled
				at = req.ExecutionPlan.At
			}
			req.ExecutionPlan = domain.ExecutionPlan{Kind: kind, At: at}
			if s.metrics != nil {
				s.metrics.RecordRequestStatus(string(req.Operation.Type), string(scheduled.Kind))
			}
		}
	}
	return req, true
}

// armFollowupTimers cancels req's expiration timer (it has already left
// Created) and, if req is now Scheduled, arms its execution timer.
func (s *Service) armFollowupTimers(ctx context.Context, req domain.Request) {
	if s.scheduler == nil {
		return
	}
	s.scheduler.CancelPendingExpiration(req.ID)
	if req.Status.Kind == domain.RequestStatusScheduled {
		s.scheduler.ScheduleExecuteRequests(ctx, time.Unix(0, req.ExecutionPlan.At))
	}
}

// GetRequest loads id and projects caller's privileges over it (§6).
func (s *Service) GetRequest(ctx context.Context, caller authz.Caller, id domain.ID) (domain.Request, domain.RequestCallerPrivileges, error) {
	req, err := s.requests.Get(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return domain.Request{}, domain.RequestCallerPrivileges{}, stationerr.NotFound("request", id.String())
		}
		return domain.Request{}, domain.RequestCallerPrivileges{}, err
	}
	privileges := domain.RequestCallerPrivileges{
		ID:         req.ID,
		CanApprove: !caller.IsAnonymous && req.Status.Kind == domain.RequestStatusCreated && req.IsEligibleApprover(caller.User.ID) && !req.HasVoted(caller.User.ID),
	}
	return req, privileges, nil
}

// SubmitRequestApprovalInput carries one approver's decision.
type SubmitRequestApprovalInput struct {
	RequestID domain.ID               `json:"request_id"`
	Decision  domain.ApprovalDecision `json:"decision"`
	Reason    string                  `json:"reason,omitempty"`
}

// SubmitRequestApproval records caller's decision on a Created request,
// re-evaluates the policy, and applies any transition the new outcome
// permits (§4.4, §4.5, §8 invariant 1 "single-decision"). Access to a given
// Request is serialized by s.locks so two concurrent votes can never race
// each other into the index.
func (s *Service) SubmitRequestApproval(ctx context.Context, caller authz.Caller, input SubmitRequestApprovalInput) (domain.Request, error) {
	if caller.IsAnonymous || !caller.User.IsActive() {
		return domain.Request{}, stationerr.Forbidden("caller must be an active, authenticated user")
	}
	unlock := s.locks.Lock(input.RequestID.String())
	defer unlock()

	req, err := s.requests.Get(ctx, input.RequestID)
	if err != nil {
		if err == store.ErrNotFound {
			return domain.Request{}, stationerr.NotFound("request", input.RequestID.String())
		}
		return domain.Request{}, err
	}
	if req.Status.Kind != domain.RequestStatusCreated {
		return domain.Request{}, stationerr.NotAllowedModification("request is no longer accepting decisions")
	}
	if !req.IsEligibleApprover(caller.User.ID) {
		return domain.Request{}, stationerr.Forbidden("caller is not an eligible approver")
	}
	if req.HasVoted(caller.User.ID) {
		return domain.Request{}, stationerr.NotAllowedModification("caller already decided this request")
	}

	req.Approvals = append(req.Approvals, domain.Approval{
		ApproverID: caller.User.ID,
		Decision:   input.Decision,
		Reason:     input.Reason,
		DecidedAt:  s.now().UnixNano(),
	})
	req.LastModificationTimestamp = s.now().UnixNano()

	evaluated, changed := s.evaluate(ctx, req)
	if err := s.requests.Upsert(ctx, evaluated); err != nil {
		return domain.Request{}, err
	}
	if changed {
		s.armFollowupTimers(ctx, evaluated)
	}
	return evaluated, nil
}

// GetNextApprovableRequest returns an arbitrary Created request caller is
// eligible to approve and has not yet decided, or store.ErrNotFound if none
// remain (§6 "get_next_approvable_request").
func (s *Service) GetNextApprovableRequest(ctx context.Context, caller authz.Caller) (domain.Request, error) {
	if caller.IsAnonymous {
		return domain.Request{}, stationerr.Forbidden("caller must be authenticated")
	}
	candidates, err := s.requests.ByApprover(ctx, caller.User.ID)
	if err != nil {
		return domain.Request{}, err
	}
	for _, req := range candidates {
		if req.Status.Kind == domain.RequestStatusCreated && !req.HasVoted(caller.User.ID) {
			return req, nil
		}
	}
	return domain.Request{}, stationerr.NotFound("approvable request", "")
}

// CancelExpiredRequests implements scheduler.JobRunner: it transitions
// requestID to Cancelled unless it already left Created by some other
// means (a vote resolved it before the timer fired, §4.5 "Cancel_job").
func (s *Service) CancelExpiredRequests(ctx context.Context, requestID domain.ID) {
	unlock := s.locks.Lock(requestID.String())
	defer unlock()

	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		if err != store.ErrNotFound {
			s.log.WithError(err).WithField("request_id", requestID).Error("cancel_expired_requests: load failed")
		}
		return
	}
	if req.Status.Kind != domain.RequestStatusCreated {
		return
	}
	status, err := lifecycle.Transition(req, domain.RequestStatus{Kind: domain.RequestStatusCancelled, Reason: "expired", At: s.now().UnixNano()})
	if err != nil {
		s.log.WithError(err).WithField("request_id", requestID).Error("cancel_expired_requests: illegal transition")
		return
	}
	req.Status = status
	req.LastModificationTimestamp = s.now().UnixNano()
	if err := s.requests.Upsert(ctx, req); err != nil {
		s.log.WithError(err).WithField("request_id", requestID).Error("cancel_expired_requests: persist failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordRequestStatus(string(req.Operation.Type), string(req.Status.Kind))
	}
}

// ExecuteScheduledRequests implements scheduler.JobRunner: it sweeps every
// Scheduled request whose execution time has arrived, runs its handler's
// Execute, and applies the resulting Completed/Failed transition (§4.6).
// Each firing processes at most s.batchSize due requests; when more remain
// it immediately reschedules itself instead of draining the whole backlog
// in one tick (§5 "MAX_BATCH_SIZE").
func (s *Service) ExecuteScheduledRequests(ctx context.Context) {
	due, err := s.requests.ByStatus(ctx, domain.RequestStatusScheduled)
	if err != nil {
		s.log.WithError(err).Error("execute_scheduled_requests: list failed")
		return
	}
	now := s.now().UnixNano()
	var ready []domain.Request
	for _, req := range due {
		if req.ExecutionPlan.At > now {
			continue
		}
		ready = append(ready, req)
	}

	batch := ready
	saturated := len(ready) > s.batchSize
	if saturated {
		batch = ready[:s.batchSize]
	}
	for _, req := range batch {
		s.executeOne(ctx, req)
	}
	if s.metrics != nil {
		s.metrics.RecordSchedulerTick("execute_scheduled_requests", len(batch), "ok")
	}
	if saturated && s.scheduler != nil {
		s.scheduler.ScheduleExecuteRequests(ctx, s.now())
	}
}

func (s *Service) executeOne(ctx context.Context, req domain.Request) {
	unlock := s.locks.Lock(req.ID.String())
	defer unlock()

	processing, err := lifecycle.Transition(req, domain.RequestStatus{Kind: domain.RequestStatusProcessing, StartedAt: s.now().UnixNano()})
	if err != nil {
		return
	}
	req.Status = processing
	if err := s.requests.Upsert(ctx, req); err != nil {
		s.log.WithError(err).WithField("request_id", req.ID).Error("execute_scheduled_requests: persist processing failed")
		return
	}

	handler, err := s.registry.Resolve(req.Operation.Type)
	if err != nil {
		s.failRequest(ctx, req, fmt.Sprintf("no handler registered for %s", req.Operation.Type))
		return
	}
	outcome, err := handler.Execute(ctx, req)
	if err != nil {
		s.failRequest(ctx, req, err.Error())
		return
	}
	if !outcome.Completed {
		s.failRequest(ctx, req, outcome.Reason)
		return
	}

	req.Operation.Output = outcome.Output
	completed, err := lifecycle.Transition(req, domain.RequestStatus{Kind: domain.RequestStatusCompleted, At: s.now().UnixNano()})
	if err != nil {
		s.log.WithError(err).WithField("request_id", req.ID).Error("execute_scheduled_requests: illegal completed transition")
		return
	}
	req.Status = completed
	req.LastModificationTimestamp = s.now().UnixNano()
	if err := s.requests.Upsert(ctx, req); err != nil {
		s.log.WithError(err).WithField("request_id", req.ID).Error("execute_scheduled_requests: persist completed failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordRequestStatus(string(req.Operation.Type), string(req.Status.Kind))
	}
	// A Transfer's own terminal state is reached later, through
	// ExecuteCreatedTransfers; arm its sweep now instead of waiting on
	// whatever tick happens to land next (§9 "Transfers.Created: arm
	// submission").
	if req.Operation.Type == domain.OperationTransfer && s.scheduler != nil {
		s.scheduler.ScheduleExecuteTransfers(ctx, s.now())
	}
}

func (s *Service) failRequest(ctx context.Context, req domain.Request, reason string) {
	failed, err := lifecycle.Transition(req, domain.RequestStatus{Kind: domain.RequestStatusFailed, Reason: reason, At: s.now().UnixNano()})
	if err != nil {
		s.log.WithError(err).WithField("request_id", req.ID).Error("execute_scheduled_requests: illegal failed transition")
		return
	}
	req.Status = failed
	req.LastModificationTimestamp = s.now().UnixNano()
	if err := s.requests.Upsert(ctx, req); err != nil {
		s.log.WithError(err).WithField("request_id", req.ID).Error("execute_scheduled_requests: persist failed-status failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordRequestStatus(string(req.Operation.Type), string(req.Status.Kind))
	}
}

// ExecuteCreatedTransfers implements scheduler.JobRunner: it sweeps every
// Transfer still in Created status, submits it through the ledger adapter
// registered for its account's (blockchain, standard), and bounds retries
// on a transient AdapterError at ledger.MaxSubmitRetries before failing the
// Transfer and its parent Request terminally (§9 Open Question: bounded
// retry count).
func (s *Service) ExecuteCreatedTransfers(ctx context.Context) {
	pending, err := s.transfers.ByStatus(ctx, domain.TransferCreated)
	if err != nil {
		s.log.WithError(err).Error("execute_created_transfers: list failed")
		return
	}

	batch := pending
	saturated := len(pending) > s.batchSize
	if saturated {
		batch = pending[:s.batchSize]
	}
	for _, transfer := range batch {
		s.submitOne(ctx, transfer)
	}
	if s.metrics != nil {
		s.metrics.RecordSchedulerTick("execute_created_transfers", len(batch), "ok")
	}
	if saturated && s.scheduler != nil {
		s.scheduler.ScheduleExecuteTransfers(ctx, s.now())
	}
}

func (s *Service) submitOne(ctx context.Context, transfer domain.Transfer) {
	account, err := s.accounts.Get(ctx, transfer.FromAccount)
	if err != nil {
		s.finishTransfer(ctx, transfer, domain.TransferFailed, fmt.Sprintf("source account not found: %v", err))
		return
	}
	adapter, err := s.ledgers.Resolve(account.Blockchain, account.Standard)
	if err != nil {
		s.finishTransfer(ctx, transfer, domain.TransferFailed, fmt.Sprintf("no ledger adapter for %s/%s", account.Blockchain, account.Standard))
		return
	}

	transfer.Status = domain.TransferStatus{Kind: domain.TransferProcessing, StartedAt: s.now().UnixNano()}
	transfer.LastModificationTimestamp = s.now().UnixNano()
	if err := s.transfers.Upsert(ctx, transfer); err != nil {
		s.log.WithError(err).WithField("transfer_id", transfer.ID).Error("execute_created_transfers: persist processing failed")
		return
	}

	details, err := adapter.SubmitTransaction(ctx, account, transfer)
	if err == nil {
		hash, _ := details.TransactionHash()
		transfer.Status = domain.TransferStatus{Kind: domain.TransferCompleted, At: s.now().UnixNano(), Hash: hash}
		transfer.LastModificationTimestamp = s.now().UnixNano()
		if err := s.transfers.Upsert(ctx, transfer); err != nil {
			s.log.WithError(err).WithField("transfer_id", transfer.ID).Error("execute_created_transfers: persist completed failed")
			return
		}
		if s.metrics != nil {
			s.metrics.RecordTransferTerminal(string(domain.TransferCompleted))
		}
		s.completeTransferRequest(ctx, transfer)
		return
	}

	var adapterErr *ledger.AdapterError
	retryable := false
	if se, ok := err.(*ledger.AdapterError); ok {
		adapterErr = se
		retryable = se.Retryable
	}
	transfer.SubmitAttempts++
	if retryable && transfer.SubmitAttempts < ledger.MaxSubmitRetries {
		// Revert to Created so the next ExecuteCreatedTransfers sweep (which
		// only scans TransferCreated) picks this transfer back up.
		transfer.Status = domain.TransferStatus{Kind: domain.TransferCreated}
		transfer.LastModificationTimestamp = s.now().UnixNano()
		if err := s.transfers.Upsert(ctx, transfer); err != nil {
			s.log.WithError(err).WithField("transfer_id", transfer.ID).Error("execute_created_transfers: persist retry failed")
		}
		return
	}
	reason := err.Error()
	if adapterErr != nil {
		reason = adapterErr.Info
	}
	s.finishTransfer(ctx, transfer, domain.TransferFailed, reason)
}

func (s *Service) finishTransfer(ctx context.Context, transfer domain.Transfer, kind domain.TransferStatusKind, reason string) {
	transfer.Status = domain.TransferStatus{Kind: kind, At: s.now().UnixNano(), Reason: reason}
	transfer.LastModificationTimestamp = s.now().UnixNano()
	if err := s.transfers.Upsert(ctx, transfer); err != nil {
		s.log.WithError(err).WithField("transfer_id", transfer.ID).Error("execute_created_transfers: persist terminal status failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTransferTerminal(string(kind))
	}
	if kind == domain.TransferFailed {
		s.failTransferRequest(ctx, transfer, reason)
	}
}

func (s *Service) completeTransferRequest(ctx context.Context, transfer domain.Transfer) {
	req, err := s.requests.Get(ctx, transfer.RequestID)
	if err != nil {
		s.log.WithError(err).WithField("request_id", transfer.RequestID).Error("execute_created_transfers: parent request load failed")
		return
	}
	output, _ := json.Marshal(transfer)
	req.Operation.Output = output
	completed, err := lifecycle.Transition(req, domain.RequestStatus{Kind: domain.RequestStatusCompleted, At: s.now().UnixNano()})
	if err != nil {
		return
	}
	req.Status = completed
	req.LastModificationTimestamp = s.now().UnixNano()
	if err := s.requests.Upsert(ctx, req); err != nil {
		s.log.WithError(err).WithField("request_id", req.ID).Error("execute_created_transfers: persist parent completed failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordRequestStatus(string(req.Operation.Type), string(req.Status.Kind))
	}
}

func (s *Service) failTransferRequest(ctx context.Context, transfer domain.Transfer, reason string) {
	req, err := s.requests.Get(ctx, transfer.RequestID)
	if err != nil {
		s.log.WithError(err).WithField("request_id", transfer.RequestID).Error("execute_created_transfers: parent request load failed")
		return
	}
	s.failRequest(ctx, req, reason)
}
