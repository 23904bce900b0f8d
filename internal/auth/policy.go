package auth

import "fmt"

// Action names a guarded operation. The constant value doubles as the
// audit log label for the decision.
type Action string

const (
	ActionBuildingCreate    Action = "building.create"
	ActionBuildingRead      Action = "building.read"
	ActionBuildingList      Action = "building.list"
	ActionBuildingListMine  Action = "building.list_mine"
	ActionBuildingUpdate    Action = "building.update"
	ActionBuildingDelete    Action = "building.delete"
	ActionBuildingCheckName Action = "building.check_name"

	ActionUnitCreate       Action = "unit.create"
	ActionUnitRead         Action = "unit.read"
	ActionUnitList         Action = "unit.list"
	ActionUnitListByOwner  Action = "unit.list_by_owner"
	ActionUnitListByTenant Action = "unit.list_by_tenant"
	ActionUnitListMine     Action = "unit.list_mine"
	ActionUnitUpdate       Action = "unit.update"
	ActionUnitDelete       Action = "unit.delete"
	ActionUnitAssignOwner  Action = "unit.assign_owner"
	ActionUnitAssignTenant Action = "unit.assign_tenant"
	ActionUnitRemoveOwner  Action = "unit.remove_owner"
	ActionUnitRemoveTenant Action = "unit.remove_tenant"
	ActionUnitSummary      Action = "unit.summary"
	ActionUnitCheckNumber  Action = "unit.check_number"
)

// ContextField names the ResourceContext field an ownership rule compares
// against the principal id.
type ContextField int

const (
	FieldNone ContextField = iota
	FieldOwnerID
	FieldTenantID
)

// ResourceContext carries the resource attributes a decision may depend on.
// Nil fields mean "not applicable to this request".
type ResourceContext struct {
	BuildingID *int64
	OwnerID    *int64
	TenantID   *int64
}

// ownership grants a role access only when the named context field equals
// the principal's own id.
type ownership struct {
	Role  Role
	Field ContextField
}

type rule struct {
	Roles []Role
	Owner *ownership
}

// DenyReason classifies why a decision came back negative.
type DenyReason string

const (
	DenyUnknownAction    DenyReason = "unknown_action"
	DenyInsufficientRole DenyReason = "insufficient_role"
)

// Decision is the structured outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

// Err maps a denial to the error the boundary layer reports.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInsufficientRole, d.Reason)
}

// policy is the single source of truth for role access. Changing access
// for an operation means editing exactly one entry here.
var policy = map[Action]rule{
	ActionBuildingCreate:    {Roles: []Role{RoleAdmin}},
	ActionBuildingRead:      {Roles: Roles},
	ActionBuildingList:      {Roles: []Role{RoleAdmin}},
	ActionBuildingListMine:  {Roles: []Role{RoleAdmin, RoleBoardMember}},
	ActionBuildingUpdate:    {Roles: []Role{RoleAdmin, RoleBoardMember}},
	ActionBuildingDelete:    {Roles: []Role{RoleAdmin}},
	ActionBuildingCheckName: {Roles: []Role{RoleAdmin}},

	ActionUnitCreate:       {Roles: []Role{RoleAdmin, RoleBoardMember}},
	ActionUnitRead:         {Roles: Roles},
	ActionUnitList:         {Roles: Roles},
	ActionUnitListByOwner:  {Roles: []Role{RoleAdmin, RoleBoardMember}, Owner: &ownership{Role: RoleOwner, Field: FieldOwnerID}},
	ActionUnitListByTenant: {Roles: []Role{RoleAdmin, RoleBoardMember}, Owner: &ownership{Role: RoleTenant, Field: FieldTenantID}},
	ActionUnitListMine:     {Roles: []Role{RoleOwner, RoleTenant}},
	ActionUnitUpdate:       {Roles: []Role{RoleAdmin, RoleBoardMember}},
	ActionUnitDelete:       {Roles: []Role{RoleAdmin}},
	ActionUnitAssignOwner:  {Roles: []Role{RoleAdmin, RoleBoardMember}},
	ActionUnitAssignTenant: {Roles: []Role{RoleAdmin, RoleBoardMember}},
	ActionUnitRemoveOwner:  {Roles: []Role{RoleAdmin, RoleBoardMember}},
	ActionUnitRemoveTenant: {Roles: []Role{RoleAdmin, RoleBoardMember}},
	ActionUnitSummary:      {Roles: []Role{RoleAdmin, RoleBoardMember}},
	ActionUnitCheckNumber:  {Roles: []Role{RoleAdmin, RoleBoardMember}},
}

// Authorize evaluates the policy table for the principal, action and
// resource context. It is a pure function of its inputs.
func Authorize(p Principal, action Action, rc ResourceContext) Decision {
	r, ok := policy[action]
	if !ok {
		return Decision{Reason: DenyUnknownAction}
	}
	for _, role := range r.Roles {
		if p.Role == role {
			return Decision{Allowed: true}
		}
	}
	if own := r.Owner; own != nil && p.Role == own.Role {
		var field *int64
		switch own.Field {
		case FieldOwnerID:
			field = rc.OwnerID
		case FieldTenantID:
			field = rc.TenantID
		}
		if field != nil && *field == p.ID {
			return Decision{Allowed: true}
		}
	}
	return Decision{Reason: DenyInsufficientRole}
}

// ValidateOwnerAssignment checks that an identity may be attached to a unit
// as its owner.
func ValidateOwnerAssignment(identity *Identity) error {
	if identity == nil || !identity.Active {
		return fmt.Errorf("%w: identity is not active", ErrInvalidAssignment)
	}
	switch identity.Role {
	case RoleOwner, RoleAdmin:
		return nil
	}
	return fmt.Errorf("%w: role %s cannot own a unit", ErrInvalidAssignment, identity.Role)
}

// ValidateTenantAssignment checks that an identity may occupy a unit as
// its tenant.
func ValidateTenantAssignment(identity *Identity) error {
	if identity == nil || !identity.Active {
		return fmt.Errorf("%w: identity is not active", ErrInvalidAssignment)
	}
	switch identity.Role {
	case RoleTenant, RoleOwner, RoleAdmin:
		return nil
	}
	return fmt.Errorf("%w: role %s cannot occupy a unit", ErrInvalidAssignment, identity.Role)
}

// ValidateBuildingManager checks that an identity may be recorded as a
// building's manager.
func ValidateBuildingManager(identity *Identity) error {
	if identity == nil || !identity.Active {
		return fmt.Errorf("%w: identity is not active", ErrInvalidAssignment)
	}
	switch identity.Role {
	case RoleAdmin, RoleBoardMember:
		return nil
	}
	return fmt.Errorf("%w: role %s cannot manage a building", ErrInvalidAssignment, identity.Role)
}
