package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/policy"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

type RoleInput struct {
	Name        string
	Description *string
}

type RolesService struct {
	Store store.Store
}

// ListRoleOptions returns every role. It needs no actor: sign-up forms use it.
func (s *RolesService) ListRoleOptions(ctx context.Context) ([]domain.Role, error) {
	roles, err := s.Store.Roles().ListAll(ctx)
	if err != nil {
		return nil, internal(err)
	}
	return roles, nil
}

func requireSuperAdmin(actor domain.Actor) error {
	if policy.TierOf(actor.RoleName) != policy.TierSuperAdmin {
		return forbidden("only SuperAdmin may do this")
	}
	return nil
}

// ListRoles is the administrative listing, SuperAdmin only.
func (s *RolesService) ListRoles(ctx context.Context, actor domain.Actor) ([]domain.Role, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	return s.ListRoleOptions(ctx)
}

// GetRole is SuperAdmin only.
func (s *RolesService) GetRole(ctx context.Context, actor domain.Actor, roleID string) (domain.Role, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return domain.Role{}, err
	}
	return getRole(ctx, s.Store, roleID)
}

func (s *RolesService) CreateRole(ctx context.Context, actor domain.Actor, in RoleInput) (domain.Role, error) {
	name := strings.TrimSpace(in.Name)
	if err := checkRoleName(name); err != nil {
		return domain.Role{}, err
	}
	if err := authorize(ctx, actor, policy.CreateRole, policy.Subject{Role: name}); err != nil {
		return domain.Role{}, err
	}

	now := time.Now().UTC()
	role := domain.Role{
		ID:          idx.New().String(),
		Name:        name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := ensureRoleNameFree(ctx, tx, name, ""); err != nil {
			return err
		}
		return fromStore(tx.Roles().CreateRole(ctx, role), "role "+name+" already exists")
	})
	if err != nil {
		return domain.Role{}, err
	}

	slogx.FromContext(ctx).Info("role created", slog.String("role_id", role.ID), slog.String("name", role.Name))
	return role, nil
}

// UpdateRole renames a role and replaces its description. The SuperAdmin role
// can never be renamed, and no role can be renamed to SuperAdmin.
func (s *RolesService) UpdateRole(ctx context.Context, actor domain.Actor, roleID string, in RoleInput) (domain.Role, error) {
	name := strings.TrimSpace(in.Name)

	var updated domain.Role
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		current, err := getRole(ctx, tx, roleID)
		if err != nil {
			return err
		}
		if current.IsSuperAdmin() && name != current.Name {
			return invalidOperation("the SuperAdmin role cannot be renamed")
		}
		if err := authorize(ctx, actor, policy.UpdateRole, policy.Subject{Role: current.Name}); err != nil {
			return err
		}
		// Renaming into another tier is a grant of that tier.
		if name != current.Name {
			if err := checkRoleName(name); err != nil {
				return err
			}
			if err := authorize(ctx, actor, policy.UpdateRole, policy.Subject{Role: name}); err != nil {
				return err
			}
			if err := ensureRoleNameFree(ctx, tx, name, current.ID); err != nil {
				return err
			}
		}

		updated = current
		updated.Name = name
		updated.Description = in.Description
		updated.UpdatedAt = time.Now().UTC()
		return fromWrite(tx.Roles().UpdateRole(ctx, updated),
			"role "+name+" already exists",
			"role "+current.Name+" changed concurrently")
	})
	if err != nil {
		return domain.Role{}, err
	}

	slogx.FromContext(ctx).Info("role updated", slog.String("role_id", updated.ID), slog.String("name", updated.Name))
	return updated, nil
}

// DeleteRole removes a role that no user holds. The SuperAdmin role is only
// removed through the SuperAdmin controller.
func (s *RolesService) DeleteRole(ctx context.Context, actor domain.Actor, roleID string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, err := getRole(ctx, tx, roleID)
		if err != nil {
			return err
		}
		if role.IsSuperAdmin() {
			return invalidOperation("the SuperAdmin role cannot be deleted here")
		}
		if err := authorize(ctx, actor, policy.DeleteRole, policy.Subject{Role: role.Name}); err != nil {
			return err
		}
		if err := ensureNoMembers(ctx, tx, role); err != nil {
			return err
		}
		return fromWrite(tx.Roles().DeleteRole(ctx, role.ID),
			"role "+role.Name+" gained members",
			"role "+role.Name+" changed concurrently")
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("role deleted", slog.String("role_id", roleID))
	return nil
}

// checkRoleName rejects blank names and custom names that differ from a
// reserved one only by case.
func checkRoleName(name string) error {
	if name == "" {
		return invalidOperation("role name must not be blank")
	}
	if policy.IsReserved(name) {
		return nil
	}
	for _, reserved := range policy.ReservedNames() {
		if strings.EqualFold(name, reserved) {
			return invalidOperation("role name %q clashes with reserved role %s", name, reserved)
		}
	}
	return nil
}

func ensureRoleNameFree(ctx context.Context, repos store.Repos, name, selfID string) error {
	existing, err := repos.Roles().GetRoleByName(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return internal(err)
	case existing.ID != selfID:
		return conflict("role %s already exists", name)
	}
	return nil
}

func ensureNoMembers(ctx context.Context, repos store.Repos, role domain.Role) error {
	n, err := repos.Roles().CountMembers(ctx, role.ID)
	if err != nil {
		return internal(err)
	}
	if n > 0 {
		return invalidOperation("role %s still has %d member(s)", role.Name, n)
	}
	return nil
}
