package dr

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/operations"
	"github.com/orbit-station/station/internal/station/repo"
	"github.com/orbit-station/station/internal/station/store"
)

var errSyncFailed = errors.New("mirror unreachable")

func newFixture(t *testing.T) (*Syncer, *MockAdapter, *repo.Users, *repo.Accounts, *operations.SystemInfoStore) {
	t.Helper()
	backend := store.NewMemoryBackend()
	users := repo.NewUsers(backend, 0)
	accounts := repo.NewAccounts(backend, 0)
	assets := repo.NewAssets(backend)
	info := operations.NewSystemInfoStore(backend)

	adapter := NewMockAdapter()
	syncer := NewSyncer(accounts, assets, users, info, adapter, nil)
	return syncer, adapter, users, accounts, info
}

func setCommittee(t *testing.T, info *operations.SystemInfoStore, groupID domain.ID, quorum int) {
	t.Helper()
	handler := operations.NewSetDisasterRecoveryHandler(info, func(domain.ID) bool { return true })
	input, err := json.Marshal(operations.SetDisasterRecoveryInput{UserGroupID: groupID, Quorum: quorum})
	require.NoError(t, err)
	req, err := handler.Build(context.Background(), operations.BuildParams{Input: input, Now: time.Unix(1_700_000_000, 0).UTC()})
	require.NoError(t, err)
	_, err = handler.Execute(context.Background(), req)
	require.NoError(t, err)
}

func TestSyncAccountsPostsCurrentAccountsAndAssets(t *testing.T) {
	syncer, adapter, _, accounts, _ := newFixture(t)
	account := domain.Account{ID: domain.NewID(), Address: "0xabc", Symbol: "ETH", Name: "ops"}
	require.NoError(t, accounts.Insert(context.Background(), account))

	require.NoError(t, syncer.SyncAccounts(context.Background()))
	require.Len(t, adapter.AccountsCalls, 1)
	require.Len(t, adapter.AccountsCalls[0].Accounts, 1)
	require.Equal(t, account.ID.String(), adapter.AccountsCalls[0].Accounts[0].ID)
}

func TestSyncCommitteeWithNoCommitteeConfiguredSendsEmptyPayload(t *testing.T) {
	syncer, adapter, _, _, _ := newFixture(t)

	require.NoError(t, syncer.SyncCommittee(context.Background()))
	require.Len(t, adapter.CommitteeCalls, 1)
	require.Empty(t, adapter.CommitteeCalls[0].Users)
	require.Equal(t, 0, adapter.CommitteeCalls[0].Quorum)
}

func TestSyncCommitteeIncludesOnlyActiveGroupMembers(t *testing.T) {
	syncer, adapter, users, _, info := newFixture(t)
	group := domain.NewID()
	setCommittee(t, info, group, 2)

	active := domain.User{ID: domain.NewID(), Status: domain.UserStatusActive, Identities: []string{"pk-1"}, Groups: []domain.ID{group}}
	inactive := domain.User{ID: domain.NewID(), Status: domain.UserStatusInactive, Identities: []string{"pk-2"}, Groups: []domain.ID{group}}
	outsider := domain.User{ID: domain.NewID(), Status: domain.UserStatusActive, Identities: []string{"pk-3"}}
	require.NoError(t, users.Insert(context.Background(), active))
	require.NoError(t, users.Insert(context.Background(), inactive))
	require.NoError(t, users.Insert(context.Background(), outsider))

	require.NoError(t, syncer.SyncCommittee(context.Background()))
	require.Len(t, adapter.CommitteeCalls, 1)
	require.Len(t, adapter.CommitteeCalls[0].Users, 1)
	require.Equal(t, active.ID.String(), adapter.CommitteeCalls[0].Users[0].ID)
	require.Equal(t, 2, adapter.CommitteeCalls[0].Quorum)
}

func TestSyncAllSwallowsFailures(t *testing.T) {
	syncer, adapter, _, _, _ := newFixture(t)
	adapter.OnCommitteeSync = func(CommitteePayload) error { return errSyncFailed }
	adapter.OnAccountsSync = func(AccountsSnapshot) error { return errSyncFailed }

	require.NotPanics(t, func() { syncer.SyncAll(context.Background()) })
	require.Equal(t, 1, adapter.committeeCallCount())
	require.Equal(t, 1, adapter.accountsCallCount())
}

func TestAccountObserverSkipsSyncBeforeReady(t *testing.T) {
	syncer, adapter, _, accounts, _ := newFixture(t)
	observer := NewAccountObserver(syncer)

	observer.AfterInsert(context.Background(), domain.Account{ID: domain.NewID()})
	require.Equal(t, 0, adapter.accountsCallCount())

	syncer.MarkReady()
	require.NoError(t, accounts.Insert(context.Background(), domain.Account{ID: domain.NewID(), Address: "0xdef", Symbol: "BTC"}))
	observer.AfterInsert(context.Background(), domain.Account{ID: domain.NewID()})
	require.Equal(t, 1, adapter.accountsCallCount())
}

func TestUserObserverSyncsOnlyOnMembershipFlip(t *testing.T) {
	syncer, adapter, _, _, info := newFixture(t)
	observer := NewUserObserver(syncer)
	group := domain.NewID()
	setCommittee(t, info, group, 1)
	syncer.MarkReady()

	user := domain.User{ID: domain.NewID(), Status: domain.UserStatusActive, Identities: []string{"pk-1"}}
	observer.AfterInsert(context.Background(), user) // not a member yet: no flip
	require.Equal(t, 0, adapter.committeeCallCount())

	user.Groups = []domain.ID{group}
	observer.AfterInsert(context.Background(), user) // joins: flip, syncs
	require.Equal(t, 1, adapter.committeeCallCount())

	observer.AfterInsert(context.Background(), user) // unchanged membership: no re-sync
	require.Equal(t, 1, adapter.committeeCallCount())

	observer.AfterRemove(context.Background(), user) // removed while a member: syncs
	require.Equal(t, 2, adapter.committeeCallCount())
}
