package repo

import (
	"context"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

// Transfers is the repository of domain.Transfer, indexed by status (so
// the scheduler's ExecuteCreatedTransfers job can find work without a full
// scan, §9) and by the originating request ID.
type Transfers struct {
	repo        *store.Repository[domain.Transfer]
	byStatus    *store.Index[domain.TransferStatusKind]
	byRequestID *store.Index[string]
}

// NewTransfers builds a Transfers repository over backend.
func NewTransfers(backend store.Backend) *Transfers {
	t := &Transfers{
		repo:        store.NewRepository[domain.Transfer]("transfers", backend, nil),
		byStatus:    store.NewIndex[domain.TransferStatusKind](),
		byRequestID: store.NewIndex[string](),
	}
	t.repo.AddObserver(t)
	return t
}

func (t *Transfers) AfterInsert(_ context.Context, transfer domain.Transfer) {
	t.byStatus.Add(transfer.Status.Kind, transfer.EntityKey())
	t.byRequestID.Add(transfer.RequestID.String(), transfer.EntityKey())
}

func (t *Transfers) AfterRemove(_ context.Context, transfer domain.Transfer) {
	t.byStatus.Remove(transfer.Status.Kind, transfer.EntityKey())
	t.byRequestID.Remove(transfer.RequestID.String(), transfer.EntityKey())
}

// Rebuild replays every persisted Transfer into byStatus/byRequestID,
// restoring ByStatus/ByRequestID lookups (and ExecuteCreatedTransfers'
// view of pending work) after a restart.
func (t *Transfers) Rebuild(ctx context.Context) error {
	all, err := t.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, transfer := range all {
		t.byStatus.Add(transfer.Status.Kind, transfer.EntityKey())
		t.byRequestID.Add(transfer.RequestID.String(), transfer.EntityKey())
	}
	return nil
}

func (t *Transfers) Get(ctx context.Context, id domain.ID) (domain.Transfer, error) {
	return t.repo.Get(ctx, id.String())
}

// Upsert writes transfer, refreshing the status index: a changed Status
// requires removing the stale index entry before Insert re-adds the
// current one, since Repository.Insert alone only appends.
func (t *Transfers) Upsert(ctx context.Context, transfer domain.Transfer) error {
	if existing, err := t.Get(ctx, transfer.ID); err == nil {
		t.byStatus.Remove(existing.Status.Kind, existing.EntityKey())
	} else if err != store.ErrNotFound {
		return err
	}
	return t.repo.Insert(ctx, transfer)
}

func (t *Transfers) Remove(ctx context.Context, id domain.ID) error {
	return t.repo.Remove(ctx, id.String())
}

func (t *Transfers) List(ctx context.Context) ([]domain.Transfer, error) {
	return t.repo.List(ctx)
}

// ByStatus returns every Transfer currently in status.
func (t *Transfers) ByStatus(ctx context.Context, status domain.TransferStatusKind) ([]domain.Transfer, error) {
	ids := t.byStatus.Lookup(status)
	out := make([]domain.Transfer, 0, len(ids))
	for _, id := range ids {
		transfer, err := t.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, transfer)
	}
	return out, nil
}

// ByRequestID returns the Transfer created by requestID, if any.
func (t *Transfers) ByRequestID(ctx context.Context, requestID domain.ID) (domain.Transfer, bool, error) {
	ids := t.byRequestID.Lookup(requestID.String())
	if len(ids) == 0 {
		return domain.Transfer{}, false, nil
	}
	transfer, err := t.repo.Get(ctx, ids[0])
	if err != nil {
		return domain.Transfer{}, false, err
	}
	return transfer, true, nil
}
