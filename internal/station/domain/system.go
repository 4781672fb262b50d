package domain

// SystemInfo is the station's single process-wide global configuration
// record (§9 "Global state"). Unlike every other entity it has no ID: there
// is always exactly one, addressed directly by the service layer rather
// than through a repository.
type SystemInfo struct {
	Name                      string `json:"name"`
	DefaultQuorum             int    `json:"default_quorum"`
	DefaultQuorumPercent      int    `json:"default_quorum_percent"`
	UpgraderAddress           string `json:"upgrader_address,omitempty"`
	LastUpgradeTimestamp      int64  `json:"last_upgrade_timestamp,omitempty"`
	DisasterRecovery          *DisasterRecoveryCommittee `json:"disaster_recovery,omitempty"`
	LastModificationTimestamp int64  `json:"last_modification_timestamp"`
}

// DisasterRecoveryCommittee names the outbound DR mirror target and quorum
// consumed by internal/station/dr's sync component.
type DisasterRecoveryCommittee struct {
	UserGroupID ID  `json:"user_group_id"`
	Quorum      int `json:"quorum"`
}

// Validate checks SystemInfo's structural invariants.
func (s SystemInfo) Validate() error {
	if s.Name == "" {
		return ValidationErrorf("system_info", "name", "name is required")
	}
	if s.DefaultQuorum < 0 {
		return ValidationErrorf("system_info", "default_quorum", "must be non-negative")
	}
	if s.DefaultQuorumPercent < 0 || s.DefaultQuorumPercent > 100 {
		return ValidationErrorf("system_info", "default_quorum_percent", "must be between 0 and 100")
	}
	if s.DisasterRecovery != nil && s.DisasterRecovery.Quorum < 0 {
		return ValidationErrorf("system_info", "disaster_recovery.quorum", "must be non-negative")
	}
	return nil
}
