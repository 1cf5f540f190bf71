package domain

import "time"

// SuperAdminRoleName is the name of the role reserved for the bootstrap holder.
const SuperAdminRoleName = "SuperAdmin"

type Role struct {
	ID          string
	Name        string
	Description *string // nil when unset
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsSuperAdmin reports whether r is the reserved SuperAdmin role.
func (r Role) IsSuperAdmin() bool { return r.Name == SuperAdminRoleName }
