package policy

import "github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"

// CanList reports whether target appears in actor's user listing.
// SuperAdmin sees everyone, Admin sees everyone below the Admin tier and
// any other role sees only itself.
func CanList(actor, target Subject) bool {
	switch TierOf(actor.Role) {
	case TierSuperAdmin:
		return true
	case TierAdmin:
		t := TierOf(target.Role)
		return t != TierSuperAdmin && t != TierAdmin
	default:
		return actor.ID != "" && actor.ID == target.ID
	}
}

// VisibleUsers filters users down to what actor may list, preserving order.
// Pagination must be applied to the result, never before it, so page
// boundaries cannot leak or hide rows.
func VisibleUsers(actor Subject, users []domain.UserWithRole) []domain.UserWithRole {
	out := make([]domain.UserWithRole, 0, len(users))
	for _, u := range users {
		if CanList(actor, Subject{ID: u.ID, Role: u.Role.Name}) {
			out = append(out, u)
		}
	}
	return out
}
