package domain

// Account bounds, mirrored from the reference's model constants.
const (
	AccountSymbolMin   = 1
	AccountSymbolMax   = 8
	AccountAddressMin  = 1
	AccountAddressMax  = 255
	AccountMaxPolicies = 8
)

// Account is a treasury account holding a balance of one asset on one
// blockchain.
type Account struct {
	ID                        ID                `json:"id"`
	Blockchain                string            `json:"blockchain"`
	Standard                  string            `json:"standard"`
	Address                   string            `json:"address"`
	Symbol                    string            `json:"symbol"`
	Decimals                  uint32            `json:"decimals"`
	Name                      string            `json:"name"`
	Balance                   *AccountBalance   `json:"balance,omitempty"`
	Metadata                  map[string]string `json:"metadata,omitempty"`
	TransferRequestPolicyID   *ID               `json:"transfer_request_policy_id,omitempty"`
	ConfigsRequestPolicyID    *ID               `json:"configs_request_policy_id,omitempty"`
	LastModificationTimestamp int64             `json:"last_modification_timestamp"`
}

// AccountBalance is the last-observed balance of an Account.
type AccountBalance struct {
	Amount        string `json:"amount"`
	LastUpdatedAt int64  `json:"last_updated_at"`
}

// AccountCallerPrivileges projects what the caller may do with an Account record.
type AccountCallerPrivileges struct {
	ID          ID   `json:"id"`
	CanEdit     bool `json:"can_edit"`
	CanTransfer bool `json:"can_transfer"`
}

// Validate checks Account's structural invariants. policyExists is a hook
// disabled in unit tests per §4.2.
func (a Account) Validate(policyExists func(ID) bool) error {
	if len(a.Symbol) < AccountSymbolMin || len(a.Symbol) > AccountSymbolMax {
		return ValidationErrorf("account", "symbol", "length must be between %d and %d", AccountSymbolMin, AccountSymbolMax)
	}
	if len(a.Address) < AccountAddressMin || len(a.Address) > AccountAddressMax {
		return ValidationErrorf("account", "address", "length must be between %d and %d", AccountAddressMin, AccountAddressMax)
	}
	if policyExists != nil {
		if a.TransferRequestPolicyID != nil && !policyExists(*a.TransferRequestPolicyID) {
			return ValidationErrorf("account", "transfer_request_policy_id", "policy %s does not exist", *a.TransferRequestPolicyID)
		}
		if a.ConfigsRequestPolicyID != nil && !policyExists(*a.ConfigsRequestPolicyID) {
			return ValidationErrorf("account", "configs_request_policy_id", "policy %s does not exist", *a.ConfigsRequestPolicyID)
		}
	}
	return nil
}
