package model

import (
	"github.com/samber/lo"
)

// Role is the closed set of user roles known to the workflow.
type Role string

const (
	RoleRequestor  Role = "requestor"
	RoleApprover   Role = "approver"
	RoleBoth       Role = "both"
	RoleManager    Role = "manager"
	RoleSuperAdmin Role = "super_admin"
)

// Capability is a single action a role may be allowed to perform.
type Capability string

const (
	CapCreateRequest    Capability = "requests.create"
	CapApproveRequest   Capability = "requests.approve"
	CapViewAllRequests  Capability = "requests.view_all"
	CapCancelAnyRequest Capability = "requests.cancel_any"
	CapAdminister       Capability = "admin"
)

var roleCapabilities = map[Role][]Capability{
	RoleRequestor: {CapCreateRequest},
	RoleApprover:  {CapApproveRequest},
	RoleBoth:      {CapCreateRequest, CapApproveRequest},
	RoleManager:   {CapCreateRequest, CapApproveRequest},
	RoleSuperAdmin: {
		CapCreateRequest,
		CapApproveRequest,
		CapViewAllRequests,
		CapCancelAnyRequest,
		CapAdminister,
	},
}

// AllRoles lists every role in a stable order.
var AllRoles = []Role{RoleRequestor, RoleApprover, RoleBoth, RoleManager, RoleSuperAdmin}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Can is the single authorization predicate used by services and middleware.
func (r Role) Can(c Capability) bool {
	return lo.Contains(roleCapabilities[r], c)
}

// RolesWith returns the roles holding the capability, in AllRoles order.
func RolesWith(c Capability) []Role {
	return lo.Filter(AllRoles, func(r Role, _ int) bool {
		return r.Can(c)
	})
}
