// Package dr mirrors the station's accounts and disaster-recovery committee
// out to an external mirror target whenever either changes, the outbound
// counterpart to operations.SetDisasterRecoveryHandler's inbound
// configuration. Sync failures are logged and swallowed rather than
// propagated: a mirror outage must never block normal station operation.
package dr

import (
	"context"
	"time"

	"github.com/orbit-station/station/internal/station/domain"
)

// AssetPayload is the wire shape of one supported asset in a Snapshot.
type AssetPayload struct {
	ID         string `json:"id"`
	Blockchain string `json:"blockchain"`
	Standard   string `json:"standard"`
	Symbol     string `json:"symbol"`
	Decimals   uint32 `json:"decimals"`
	Name       string `json:"name"`
}

// AccountPayload is the wire shape of one treasury account in a Snapshot.
type AccountPayload struct {
	ID       string            `json:"id"`
	Address  string            `json:"address"`
	AssetID  string            `json:"asset_id,omitempty"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CommitteeUser is the wire shape of one disaster-recovery committee member.
type CommitteeUser struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	Identities []string `json:"identities"`
}

// CommitteePayload is the wire shape of the active disaster-recovery
// committee. An empty Users slice and zero Quorum mean no committee is
// configured (domain.SystemInfo.DisasterRecovery is nil).
type CommitteePayload struct {
	Users  []CommitteeUser `json:"users"`
	Quorum int             `json:"quorum"`
}

// AccountsSnapshot is what sync_accounts sends: the full current account and
// asset lists, taken together since accounts reference assets by ID.
type AccountsSnapshot struct {
	Timestamp time.Time
	Accounts  []AccountPayload
	Assets    []AssetPayload
}

// Adapter is the outbound mirror target the Syncer drives. HTTPAdapter is
// the production implementation; tests use a stub.
type Adapter interface {
	SetDisasterRecoveryAccounts(ctx context.Context, snapshot AccountsSnapshot) error
	SetDisasterRecoveryCommittee(ctx context.Context, committee CommitteePayload) error
}

func accountToPayload(a domain.Account) AccountPayload {
	return AccountPayload{
		ID:       a.ID.String(),
		Address:  a.Address,
		Name:     a.Name,
		Metadata: a.Metadata,
	}
}

func assetToPayload(a domain.Asset) AssetPayload {
	return AssetPayload{
		ID:         a.ID.String(),
		Blockchain: a.Blockchain,
		Standard:   a.Standard,
		Symbol:     a.Symbol,
		Decimals:   a.Decimals,
		Name:       a.Name,
	}
}

func userToCommitteeUser(u domain.User) CommitteeUser {
	return CommitteeUser{ID: u.ID.String(), Name: u.Name, Identities: u.Identities}
}
