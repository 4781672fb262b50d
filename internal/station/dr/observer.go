package dr

import (
	"context"
	"sync"

	"github.com/orbit-station/station/internal/station/domain"
)

// UserObserver adapts Syncer to store.Observer[domain.User]: it remembers
// each user's last-seen committee membership so AfterInsert (which only
// ever sees the post-commit entity, for both genuine inserts and updates)
// can still detect a join/leave edge the way
// disaster_recovery_observes_insert_user does from an explicit prev.
type UserObserver struct {
	syncer *Syncer

	mu   sync.Mutex
	seen map[domain.ID]bool // last-known "is an active committee member"
}

// NewUserObserver builds a UserObserver bound to syncer. Register it with
// repo.Users's backing store.Repository via AddObserver.
func NewUserObserver(syncer *Syncer) *UserObserver {
	return &UserObserver{syncer: syncer, seen: make(map[domain.ID]bool)}
}

func (o *UserObserver) isMember(ctx context.Context, user domain.User) bool {
	committee, ok := o.syncer.committee(ctx)
	if !ok {
		return false
	}
	return user.IsActive() && user.InGroup(committee.UserGroupID)
}

func (o *UserObserver) AfterInsert(ctx context.Context, user domain.User) {
	now := o.isMember(ctx, user)

	o.mu.Lock()
	was := o.seen[user.ID]
	o.seen[user.ID] = now
	o.mu.Unlock()

	if now == was {
		return
	}
	if !o.syncer.Ready() {
		return
	}
	if err := o.syncer.SyncCommittee(ctx); err != nil {
		o.syncer.warn(ctx, "sync_committee", err)
	}
}

func (o *UserObserver) AfterRemove(ctx context.Context, user domain.User) {
	o.mu.Lock()
	was := o.seen[user.ID]
	delete(o.seen, user.ID)
	o.mu.Unlock()

	if !was {
		return
	}
	if !o.syncer.Ready() {
		return
	}
	if err := o.syncer.SyncCommittee(ctx); err != nil {
		o.syncer.warn(ctx, "sync_committee", err)
	}
}

// AccountObserver adapts Syncer to store.Observer[domain.Account]: every
// account insert or removal re-syncs the account snapshot, mirroring
// disaster_recovery_observes_insert_account (the original has no
// corresponding remove hook, but a removed account must not linger in the
// mirror either).
type AccountObserver struct {
	syncer *Syncer
}

// NewAccountObserver builds an AccountObserver bound to syncer. Register it
// with repo.Accounts's backing store.Repository via AddObserver.
func NewAccountObserver(syncer *Syncer) *AccountObserver {
	return &AccountObserver{syncer: syncer}
}

func (o *AccountObserver) AfterInsert(ctx context.Context, _ domain.Account) {
	o.syncer.OnAccountChanged(ctx)
}

func (o *AccountObserver) AfterRemove(ctx context.Context, _ domain.Account) {
	o.syncer.OnAccountChanged(ctx)
}
