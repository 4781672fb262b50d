package repo

import (
	"context"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

// Requests is the repository of domain.Request, carrying every secondary
// index named in §4.1: status, {requester, operation_type/target},
// approver, and expiration time (bucketed for the scheduler's
// CancelExpiredRequests job, §9).
type Requests struct {
	repo *store.Repository[domain.Request]

	byStatus      *store.Index[domain.RequestStatusKind]
	byRequester   *store.Index[string]
	byOperation   *store.Index[string] // key: operation_type + ":" + target_id
	byApprover    *store.Index[string]
	byExpiration  *store.Index[int64] // key: bucketed expiration timestamp
}

// ExpirationTolerance buckets ExpirationDt into coarse slots so the
// scheduler dedups timers across requests expiring within the same window,
// mirroring the bucket(t) scheme described in §5.
const ExpirationTolerance = int64(5)

func expirationBucket(at int64) int64 {
	if ExpirationTolerance <= 0 {
		return at
	}
	return at - (at % ExpirationTolerance)
}

func operationKey(op domain.Operation) string {
	return string(op.Type) + ":" + op.TargetID.String()
}

// NewRequests builds a Requests repository over backend.
func NewRequests(backend store.Backend) *Requests {
	r := &Requests{
		repo:         store.NewRepository[domain.Request]("requests", backend, nil),
		byStatus:     store.NewIndex[domain.RequestStatusKind](),
		byRequester:  store.NewIndex[string](),
		byOperation:  store.NewIndex[string](),
		byApprover:   store.NewIndex[string](),
		byExpiration: store.NewIndex[int64](),
	}
	r.repo.AddObserver(r)
	return r
}

func (r *Requests) indexAll(req domain.Request) {
	r.byStatus.Add(req.Status.Kind, req.EntityKey())
	r.byRequester.Add(req.RequestedBy.String(), req.EntityKey())
	r.byOperation.Add(operationKey(req.Operation), req.EntityKey())
	r.byExpiration.Add(expirationBucket(req.ExpirationDt), req.EntityKey())
	for _, approval := range req.Approvals {
		r.byApprover.Add(approval.ApproverID.String(), req.EntityKey())
	}
	for _, approver := range req.PolicySnapshot.EligibleApprovers {
		r.byApprover.Add(approver.String(), req.EntityKey())
	}
}

func (r *Requests) unindexAll(req domain.Request) {
	r.byStatus.Remove(req.Status.Kind, req.EntityKey())
	r.byRequester.Remove(req.RequestedBy.String(), req.EntityKey())
	r.byOperation.Remove(operationKey(req.Operation), req.EntityKey())
	r.byExpiration.Remove(expirationBucket(req.ExpirationDt), req.EntityKey())
	for _, approval := range req.Approvals {
		r.byApprover.Remove(approval.ApproverID.String(), req.EntityKey())
	}
	for _, approver := range req.PolicySnapshot.EligibleApprovers {
		r.byApprover.Remove(approver.String(), req.EntityKey())
	}
}

func (r *Requests) AfterInsert(_ context.Context, req domain.Request) {
	r.indexAll(req)
}

func (r *Requests) AfterRemove(_ context.Context, req domain.Request) {
	r.unindexAll(req)
}

// Rebuild replays every persisted Request into the in-memory indexes,
// restoring ByStatus/ByRequester/ByOperation/ByApprover/ExpiringInBucket
// lookups after a restart (§9 "schedulers are created at boot by
// replaying" — this is the repository half of that replay).
func (r *Requests) Rebuild(ctx context.Context) error {
	all, err := r.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, req := range all {
		r.indexAll(req)
	}
	return nil
}

func (r *Requests) Get(ctx context.Context, id domain.ID) (domain.Request, error) {
	return r.repo.Get(ctx, id.String())
}

// Upsert writes req, refreshing every index: since status/approvals change
// across the lifecycle, stale index entries from the prior revision must be
// dropped before the new ones are added (§8 invariant 5 "index
// consistency").
func (r *Requests) Upsert(ctx context.Context, req domain.Request) error {
	if existing, err := r.Get(ctx, req.ID); err == nil {
		r.unindexAll(existing)
	} else if err != store.ErrNotFound {
		return err
	}
	return r.repo.Insert(ctx, req)
}

func (r *Requests) Remove(ctx context.Context, id domain.ID) error {
	return r.repo.Remove(ctx, id.String())
}

func (r *Requests) List(ctx context.Context) ([]domain.Request, error) {
	return r.repo.List(ctx)
}

func (r *Requests) resolve(ctx context.Context, ids []string) ([]domain.Request, error) {
	out := make([]domain.Request, 0, len(ids))
	for _, id := range ids {
		req, err := r.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// ByStatus returns every Request currently in status.
func (r *Requests) ByStatus(ctx context.Context, status domain.RequestStatusKind) ([]domain.Request, error) {
	return r.resolve(ctx, r.byStatus.Lookup(status))
}

// ByRequester returns every Request created by requester.
func (r *Requests) ByRequester(ctx context.Context, requester domain.ID) ([]domain.Request, error) {
	return r.resolve(ctx, r.byRequester.Lookup(requester.String()))
}

// ByOperation returns every Request whose operation matches (opType,
// targetID).
func (r *Requests) ByOperation(ctx context.Context, opType domain.RequestOperationType, targetID domain.ID) ([]domain.Request, error) {
	return r.resolve(ctx, r.byOperation.Lookup(string(opType)+":"+targetID.String()))
}

// ByApprover returns every Request on which approver has voted or is
// eligible to vote.
func (r *Requests) ByApprover(ctx context.Context, approver domain.ID) ([]domain.Request, error) {
	return r.resolve(ctx, r.byApprover.Lookup(approver.String()))
}

// ExpiringInBucket returns every Request whose expiration falls in the
// same coarse bucket as at, the set the scheduler's CancelExpiredRequests
// timer callback reconciles (§5, §9).
func (r *Requests) ExpiringInBucket(ctx context.Context, at int64) ([]domain.Request, error) {
	return r.resolve(ctx, r.byExpiration.Lookup(expirationBucket(at)))
}
