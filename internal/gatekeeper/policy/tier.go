// Package policy holds the fixed role hierarchy and the authorization rule
// table. Everything here is pure: no storage, no context, no logging.
package policy

import "github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"

// Well-known role names. Anything else is a custom role.
const (
	RoleSuperAdmin = domain.SuperAdminRoleName
	RoleAdmin      = "Admin"
	RoleManager    = "Manager"
	RoleAccounts   = "Accounts"
	RoleCustomer   = "Customer"
)

// Tier is the privilege rank of a role name. Custom roles rank lowest for
// listing purposes but only a SuperAdmin may manage them.
type Tier int

const (
	TierCustom Tier = iota
	TierStaff
	TierAdmin
	TierSuperAdmin
)

func (t Tier) String() string {
	switch t {
	case TierSuperAdmin:
		return "superadmin"
	case TierAdmin:
		return "admin"
	case TierStaff:
		return "staff"
	default:
		return "custom"
	}
}

// TierOf maps a role name to its tier. Names are case-sensitive.
func TierOf(roleName string) Tier {
	switch roleName {
	case RoleSuperAdmin:
		return TierSuperAdmin
	case RoleAdmin:
		return TierAdmin
	case RoleManager, RoleAccounts, RoleCustomer:
		return TierStaff
	default:
		return TierCustom
	}
}

// ReservedNames lists the fixed hierarchy from the top down.
func ReservedNames() []string {
	return []string{RoleSuperAdmin, RoleAdmin, RoleManager, RoleAccounts, RoleCustomer}
}

// IsReserved reports whether name belongs to the fixed hierarchy rather than
// being a custom role.
func IsReserved(roleName string) bool {
	return TierOf(roleName) != TierCustom
}
