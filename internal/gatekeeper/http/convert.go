package http

import (
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/pkg/rbacsdk"
)

func toRoleResponse(r domain.Role) rbacsdk.RoleResponse {
	return rbacsdk.RoleResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toRoleResponses(roles []domain.Role) []rbacsdk.RoleResponse {
	out := make([]rbacsdk.RoleResponse, len(roles))
	for i, r := range roles {
		out[i] = toRoleResponse(r)
	}
	return out
}

func toUserResponse(u domain.UserWithRole) rbacsdk.UserResponse {
	return rbacsdk.UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      toRoleResponse(u.Role),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toUserResponses(users []domain.UserWithRole) []rbacsdk.UserResponse {
	out := make([]rbacsdk.UserResponse, len(users))
	for i, u := range users {
		out[i] = toUserResponse(u)
	}
	return out
}
