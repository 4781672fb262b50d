package domain

// RequestOperationType identifies the operation kind of a Request, used by
// the {operation_type, target_resource} secondary index and by policy
// specifiers. Recovered from the reference's request_operation_type.rs,
// which the distilled spec leaves as a non-exhaustive prose list.
type RequestOperationType string

const (
	OperationTransfer                 RequestOperationType = "transfer"
	OperationAddAccount                RequestOperationType = "add_account"
	OperationEditAccount                RequestOperationType = "edit_account"
	OperationAddUser                   RequestOperationType = "add_user"
	OperationEditUser                  RequestOperationType = "edit_user"
	OperationAddUserGroup               RequestOperationType = "add_user_group"
	OperationEditUserGroup              RequestOperationType = "edit_user_group"
	OperationRemoveUserGroup            RequestOperationType = "remove_user_group"
	OperationAddAddressBookEntry        RequestOperationType = "add_address_book_entry"
	OperationEditAddressBookEntry       RequestOperationType = "edit_address_book_entry"
	OperationRemoveAddressBookEntry     RequestOperationType = "remove_address_book_entry"
	OperationEditPermission             RequestOperationType = "edit_permission"
	OperationAddRequestPolicy           RequestOperationType = "add_request_policy"
	OperationEditRequestPolicy          RequestOperationType = "edit_request_policy"
	OperationRemoveRequestPolicy        RequestOperationType = "remove_request_policy"
	OperationManageSystemInfo           RequestOperationType = "manage_system_info"
	OperationSetDisasterRecovery        RequestOperationType = "set_disaster_recovery_committee"
	OperationChangeCanister             RequestOperationType = "change_canister"
	OperationCreateExternalResource     RequestOperationType = "create_external_resource"
	OperationChangeExternalResource     RequestOperationType = "change_external_resource"
	OperationConfigureExternalResource  RequestOperationType = "configure_external_resource"
	OperationCallExternalResource       RequestOperationType = "call_external_resource"
	OperationFundExternalResource       RequestOperationType = "fund_external_resource"
)

// resourceKinds maps each operation kind to the ResourceKind its create_request
// permission check is evaluated against, mirroring the reference's
// mappers/resource.rs Resource::from(&RequestOperation).
var resourceKinds = map[RequestOperationType]ResourceKind{
	OperationTransfer:                  ResourceAccount,
	OperationAddAccount:                ResourceAccount,
	OperationEditAccount:               ResourceAccount,
	OperationAddUser:                   ResourceUser,
	OperationEditUser:                  ResourceUser,
	OperationAddUserGroup:              ResourceUserGroup,
	OperationEditUserGroup:             ResourceUserGroup,
	OperationRemoveUserGroup:           ResourceUserGroup,
	OperationAddAddressBookEntry:       ResourceAddressBook,
	OperationEditAddressBookEntry:      ResourceAddressBook,
	OperationRemoveAddressBookEntry:    ResourceAddressBook,
	OperationEditPermission:            ResourcePermission,
	OperationAddRequestPolicy:          ResourceRequestPolicy,
	OperationEditRequestPolicy:         ResourceRequestPolicy,
	OperationRemoveRequestPolicy:       ResourceRequestPolicy,
	OperationManageSystemInfo:          ResourceSystemInfo,
	OperationSetDisasterRecovery:       ResourceSystemInfo,
	OperationChangeCanister:            ResourceSystemInfo,
	OperationCreateExternalResource:    ResourceExternalResource,
	OperationChangeExternalResource:    ResourceExternalResource,
	OperationConfigureExternalResource: ResourceExternalResource,
	OperationCallExternalResource:      ResourceExternalResource,
	OperationFundExternalResource:      ResourceExternalResource,
}

// ResourceKind returns the ResourceKind a create_request permission check
// should be evaluated against for this operation type.
func (t RequestOperationType) ResourceKind() ResourceKind {
	return resourceKinds[t]
}
