package domain

// ResourceKind names the kind of resource a Permission or policy specifier
// targets, mirrored from the reference's mappers/resource.rs taxonomy.
type ResourceKind string

const (
	ResourceAccount          ResourceKind = "account"
	ResourceUser             ResourceKind = "user"
	ResourceUserGroup        ResourceKind = "user_group"
	ResourceAddressBook      ResourceKind = "address_book"
	ResourcePermission       ResourceKind = "permission"
	ResourceRequestPolicy    ResourceKind = "request_policy"
	ResourceRequest          ResourceKind = "request"
	ResourceSystemInfo       ResourceKind = "system_info"
	ResourceExternalResource ResourceKind = "external_resource"
)

// ResourceAction names the action being authorized against a resource
// (Create/Read/Update/Delete/List), mirrored from the same taxonomy.
type ResourceAction string

const (
	ActionCreate ResourceAction = "create"
	ActionRead   ResourceAction = "read"
	ActionUpdate ResourceAction = "update"
	ActionDelete ResourceAction = "delete"
	ActionList   ResourceAction = "list"
)

// Resource identifies a concrete authorizable target: a kind, an action,
// and optionally a specific entity ID (absent means "any" of that kind,
// used for create/list checks).
type Resource struct {
	Kind   ResourceKind   `json:"kind"`
	Action ResourceAction `json:"action"`
	ID     *ID            `json:"id,omitempty"`
}

// Key returns a string uniquely identifying the resource for use as a
// Permission table key.
func (r Resource) Key() string {
	if r.ID == nil {
		return string(r.Kind) + ":" + string(r.Action) + ":*"
	}
	return string(r.Kind) + ":" + string(r.Action) + ":" + r.ID.String()
}
