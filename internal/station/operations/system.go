package operations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/orbit-station/station/internal/station/domain"
	"github.com/orbit-station/station/internal/station/store"
)

const systemInfoFamily = "system_info"
const systemInfoKey = "singleton"

// SystemInfoStore persists the single process-wide domain.SystemInfo record
// directly on a store.Backend, bypassing store.Repository since there is
// exactly one record and no secondary index makes sense over it.
type SystemInfoStore struct {
	backend store.Backend
}

// NewSystemInfoStore builds a SystemInfoStore over backend.
func NewSystemInfoStore(backend store.Backend) *SystemInfoStore {
	return &SystemInfoStore{backend: backend}
}

// Get returns the current SystemInfo, or the zero value if it was never set.
func (s *SystemInfoStore) Get(ctx context.Context) (domain.SystemInfo, error) {
	raw, ok, err := s.backend.Load(ctx, systemInfoFamily, systemInfoKey)
	if err != nil {
		return domain.SystemInfo{}, err
	}
	if !ok {
		return domain.SystemInfo{}, nil
	}
	var info domain.SystemInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return domain.SystemInfo{}, fmt.Errorf("operations: decode system info: %w", err)
	}
	return info, nil
}

func (s *SystemInfoStore) put(ctx context.Context, info domain.SystemInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.backend.Save(ctx, systemInfoFamily, systemInfoKey, raw)
}

// ManageSystemInfoInput carries the mutable SystemInfo fields ManageSystemInfo
// may change; nil fields leave the existing value untouched.
type ManageSystemInfoInput struct {
	Name                 *string `json:"name,omitempty"`
	DefaultQuorum        *int    `json:"default_quorum,omitempty"`
	DefaultQuorumPercent *int    `json:"default_quorum_percent,omitempty"`
}

// ManageSystemInfoHandler implements ManageSystemInfo (§9 "Global state").
type ManageSystemInfoHandler struct {
	noopOnCreated
	info *SystemInfoStore
}

// NewManageSystemInfoHandler builds a ManageSystemInfoHandler.
func NewManageSystemInfoHandler(info *SystemInfoStore) *ManageSystemInfoHandler {
	return &ManageSystemInfoHandler{info: info}
}

func (h *ManageSystemInfoHandler) Type() domain.RequestOperationType {
	return domain.OperationManageSystemInfo
}

func (h *ManageSystemInfoHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input ManageSystemInfoInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode manage_system_info input: %w", err)
	}
	return NewRequest(domain.OperationManageSystemInfo, domain.ZeroID, params), nil
}

func (h *ManageSystemInfoHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input ManageSystemInfoInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode manage_system_info input: %w", err)
	}
	info, err := h.info.Get(ctx)
	if err != nil {
		return ExecuteOutcome{}, err
	}
	if input.Name != nil {
		info.Name = *input.Name
	}
	if input.DefaultQuorum != nil {
		info.DefaultQuorum = *input.DefaultQuorum
	}
	if input.DefaultQuorumPercent != nil {
		info.DefaultQuorumPercent = *input.DefaultQuorumPercent
	}
	info.LastModificationTimestamp = req.CreatedAt
	if err := info.Validate(); err != nil {
		return ExecuteOutcome{}, err
	}
	if err := h.info.put(ctx, info); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(info)
	return Completed(output), nil
}

// SetDisasterRecoveryInput names the committee that should receive the
// outbound DR mirror sync (§2 disaster-recovery sync component).
type SetDisasterRecoveryInput struct {
	UserGroupID domain.ID `json:"user_group_id"`
	Quorum      int       `json:"quorum"`
}

// SetDisasterRecoveryHandler implements SetDisasterRecovery.
type SetDisasterRecoveryHandler struct {
	noopOnCreated
	info       *SystemInfoStore
	groupExists func(domain.ID) bool
}

// NewSetDisasterRecoveryHandler builds a SetDisasterRecoveryHandler.
func NewSetDisasterRecoveryHandler(info *SystemInfoStore, groupExists func(domain.ID) bool) *SetDisasterRecoveryHandler {
	return &SetDisasterRecoveryHandler{info: info, groupExists: groupExists}
}

func (h *SetDisasterRecoveryHandler) Type() domain.RequestOperationType {
	return domain.OperationSetDisasterRecovery
}

func (h *SetDisasterRecoveryHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input SetDisasterRecoveryInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode set_disaster_recovery input: %w", err)
	}
	if !h.groupExists(input.UserGroupID) {
		return domain.Request{}, domain.ValidationErrorf("system_info", "user_group_id", "group %s does not exist", input.UserGroupID)
	}
	if input.Quorum < 0 {
		return domain.Request{}, domain.ValidationErrorf("system_info", "quorum", "must be non-negative")
	}
	return NewRequest(domain.OperationSetDisasterRecovery, domain.ZeroID, params), nil
}

func (h *SetDisasterRecoveryHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input SetDisasterRecoveryInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode set_disaster_recovery input: %w", err)
	}
	info, err := h.info.Get(ctx)
	if err != nil {
		return ExecuteOutcome{}, err
	}
	info.DisasterRecovery = &domain.DisasterRecoveryCommittee{UserGroupID: input.UserGroupID, Quorum: input.Quorum}
	info.LastModificationTimestamp = req.CreatedAt
	if err := h.info.put(ctx, info); err != nil {
		return ExecuteOutcome{}, err
	}
	output, _ := json.Marshal(info)
	return Completed(output), nil
}

// Upgrader invokes the out-of-scope external upgrader process. The only
// caller is ChangeCanisterHandler.Execute.
type Upgrader interface {
	Upgrade(ctx context.Context, moduleHash string, args []byte) error
}

// ChangeCanisterInput names the target module to self-upgrade to (kept as
// "canister" in the wire tag per the terminology open question, §9).
type ChangeCanisterInput struct {
	ModuleHash string `json:"module_hash"`
	Args       []byte `json:"args,omitempty"`
}

// ChangeCanisterHandler implements ChangeCanister: the only operation whose
// Execute invokes the external upgrader adapter.
type ChangeCanisterHandler struct {
	noopOnCreated
	info     *SystemInfoStore
	upgrader Upgrader
}

// NewChangeCanisterHandler builds a ChangeCanisterHandler.
func NewChangeCanisterHandler(info *SystemInfoStore, upgrader Upgrader) *ChangeCanisterHandler {
	return &ChangeCanisterHandler{info: info, upgrader: upgrader}
}

func (h *ChangeCanisterHandler) Type() domain.RequestOperationType {
	return domain.OperationChangeCanister
}

func (h *ChangeCanisterHandler) Build(ctx context.Context, params BuildParams) (domain.Request, error) {
	var input ChangeCanisterInput
	if err := json.Unmarshal(params.Input, &input); err != nil {
		return domain.Request{}, fmt.Errorf("operations: decode change_canister input: %w", err)
	}
	if input.ModuleHash == "" {
		return domain.Request{}, domain.ValidationErrorf("system_info", "module_hash", "module_hash is required")
	}
	return NewRequest(domain.OperationChangeCanister, domain.ZeroID, params), nil
}

func (h *ChangeCanisterHandler) Execute(ctx context.Context, req domain.Request) (ExecuteOutcome, error) {
	var input ChangeCanisterInput
	if err := json.Unmarshal(req.Operation.Input, &input); err != nil {
		return ExecuteOutcome{}, fmt.Errorf("operations: decode change_canister input: %w", err)
	}
	if err := h.upgrader.Upgrade(ctx, input.ModuleHash, input.Args); err != nil {
		return Failed(err.Error()), nil
	}
	info, err := h.info.Get(ctx)
	if err != nil {
		return ExecuteOutcome{}, err
	}
	info.LastUpgradeTimestamp = req.CreatedAt
	if err := h.info.put(ctx, info); err != nil {
		return ExecuteOutcome{}, err
	}
	return Completed(nil), nil
}
