package dr

import (
	"context"
	"sync/atomic"

	"github.com/orbit-station/station/internal/platform/logging"
	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/operations"
	"github.com/orbit-station/station/internal/station/repo"
)

// Syncer drives Adapter with the station's current accounts, assets, and
// disaster-recovery committee. UserObserver and AccountObserver wrap it as
// store.Observer implementations registered on repo.Users's and
// repo.Accounts's backing repositories, so sync happens automatically on
// the relevant writes, mirroring the original's disaster_recovery_observes_*
// listeners.
type Syncer struct {
	accounts *repo.Accounts
	assets   *repo.Assets
	users    *repo.Users
	info     *operations.SystemInfoStore
	adapter  Adapter
	log      *logging.Logger

	ready atomic.Bool
}

// NewSyncer builds a Syncer. It starts not-ready: MarkReady must be called
// once system setup completes before membership-change hooks will sync
// anything, mirroring the original's "skip syncing during system init".
func NewSyncer(accounts *repo.Accounts, assets *repo.Assets, users *repo.Users, info *operations.SystemInfoStore, adapter Adapter, log *logging.Logger) *Syncer {
	return &Syncer{accounts: accounts, assets: assets, users: users, info: info, adapter: adapter, log: log}
}

// MarkReady enables the membership-change hooks. Call once after initial
// system setup (seed users, seed committee) has finished.
func (s *Syncer) MarkReady() { s.ready.Store(true) }

// Ready reports whether MarkReady has been called.
func (s *Syncer) Ready() bool { return s.ready.Load() }

func (s *Syncer) warn(ctx context.Context, action string, err error) {
	if s.log == nil {
		return
	}
	s.log.WithContext(ctx).WithField("action", action).WithError(err).Warn("disaster recovery sync failed")
}

// SyncAccounts pushes the current account and asset lists to the mirror
// target.
func (s *Syncer) SyncAccounts(ctx context.Context) error {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return err
	}
	assets, err := s.assets.List(ctx)
	if err != nil {
		return err
	}

	snapshot := AccountsSnapshot{Accounts: make([]AccountPayload, len(accounts)), Assets: make([]AssetPayload, len(assets))}
	for i, a := range accounts {
		snapshot.Accounts[i] = accountToPayload(a)
	}
	for i, a := range assets {
		snapshot.Assets[i] = assetToPayload(a)
	}
	return s.adapter.SetDisasterRecoveryAccounts(ctx, snapshot)
}

// SyncCommittee pushes the current disaster-recovery committee membership
// (the active users in its user group) to the mirror target. An
// unconfigured committee syncs as an empty one, clearing any previously
// mirrored committee.
func (s *Syncer) SyncCommittee(ctx context.Context) error {
	info, err := s.info.Get(ctx)
	if err != nil {
		return err
	}

	payload := CommitteePayload{}
	if info.DisasterRecovery != nil {
		payload.Quorum = info.DisasterRecovery.Quorum
		members, err := s.activeUsersInGroup(ctx, info.DisasterRecovery.UserGroupID)
		if err != nil {
			return err
		}
		payload.Users = members
	}
	return s.adapter.SetDisasterRecoveryCommittee(ctx, payload)
}

func (s *Syncer) activeUsersInGroup(ctx context.Context, groupID domain.ID) ([]CommitteeUser, error) {
	all, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	var members []CommitteeUser
	for _, u := range all {
		if u.IsActive() && u.InGroup(groupID) {
			members = append(members, userToCommitteeUser(u))
		}
	}
	return members, nil
}

// SyncAll syncs the committee then the accounts, logging but not
// propagating either failure: a mirror outage must never fail the caller
// that triggered the sync.
func (s *Syncer) SyncAll(ctx context.Context) {
	if err := s.SyncCommittee(ctx); err != nil {
		s.warn(ctx, "sync_committee", err)
	}
	if err := s.SyncAccounts(ctx); err != nil {
		s.warn(ctx, "sync_accounts", err)
	}
}

// OnAccountChanged re-syncs accounts after an account is inserted or
// removed. Skipped until MarkReady, so bulk seeding during system init does
// not trigger a flood of syncs.
func (s *Syncer) OnAccountChanged(ctx context.Context) {
	if !s.Ready() {
		return
	}
	if err := s.SyncAccounts(ctx); err != nil {
		s.warn(ctx, "sync_accounts", err)
	}
}

// committee is also used by UserObserver to evaluate membership without
// duplicating the SystemInfoStore lookup.
func (s *Syncer) committee(ctx context.Context) (domain.DisasterRecoveryCommittee, bool) {
	info, err := s.info.Get(ctx)
	if err != nil || info.DisasterRecovery == nil {
		return domain.DisasterRecoveryCommittee{}, false
	}
	return *info.DisasterRecovery, true
}
