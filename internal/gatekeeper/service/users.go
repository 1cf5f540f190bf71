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

// Listing defaults.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000
)

type CreateUserInput struct {
	Email    string
	Name     string // defaults to the local part of Email
	Password string
	RoleID   string
}

// UpdateUserInput holds optional changes; nil fields are left untouched.
type UpdateUserInput struct {
	Email    *string
	Name     *string
	Password *string
	RoleID   *string
}

type Page struct {
	Offset int
	Limit  int
}

// Normalize clamps the page into the accepted range.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

type UserPage struct {
	Users []domain.UserWithRole
	Total int // visible users before paging
}

type UserService struct {
	Store       store.Store
	Credentials Credentials
}

func targetOf(u domain.UserWithRole) policy.Subject {
	return policy.Subject{ID: u.ID, Role: u.Role.Name}
}

func getTarget(ctx context.Context, repos store.Repos, userID string) (domain.UserWithRole, error) {
	u, err := repos.Users().GetUserWithRole(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.UserWithRole{}, notFound("user %s not found", userID)
	}
	if err != nil {
		return domain.UserWithRole{}, internal(err)
	}
	return u, nil
}

func getRole(ctx context.Context, repos store.Repos, roleID string) (domain.Role, error) {
	r, err := repos.Roles().GetRoleByID(ctx, roleID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Role{}, notFound("role %s not found", roleID)
	}
	if err != nil {
		return domain.Role{}, internal(err)
	}
	return r, nil
}

// ensureEmailFree fails with Conflict when email belongs to a user other than selfID.
func ensureEmailFree(ctx context.Context, repos store.Repos, email, selfID string) error {
	existing, err := repos.Users().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return internal(err)
	case existing.ID != selfID:
		return conflict("email %s is already registered", email)
	}
	return nil
}

func defaultName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

func (s *UserService) CreateUser(ctx context.Context, actor domain.Actor, in CreateUserInput) (domain.UserWithRole, error) {
	log := slogx.FromContext(ctx)
	email := strings.TrimSpace(in.Email)

	var created domain.UserWithRole
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, err := getRole(ctx, tx, in.RoleID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, actor, policy.CreateUser, policy.Subject{Role: role.Name}); err != nil {
			return err
		}
		if err := ensureEmailFree(ctx, tx, email, ""); err != nil {
			return err
		}

		hash, err := s.Credentials.Hash(in.Password)
		if err != nil {
			return internal(err)
		}

		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = defaultName(email)
		}
		now := time.Now().UTC()
		u := domain.User{
			ID:           idx.New().String(),
			Email:        email,
			Name:         name,
			PasswordHash: hash,
			RoleID:       role.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return fromStore(err, "email "+email+" is already registered")
		}
		created = domain.UserWithRole{User: u, Role: role}
		return nil
	})
	if err != nil {
		return domain.UserWithRole{}, err
	}

	log.Info("user created",
		slog.String("user_id", created.ID),
		slog.String("role", created.Role.Name),
	)
	return created, nil
}

func (s *UserService) GetUser(ctx context.Context, actor domain.Actor, userID string) (domain.UserWithRole, error) {
	u, err := getTarget(ctx, s.Store, userID)
	if err != nil {
		return domain.UserWithRole{}, err
	}
	if err := authorize(ctx, actor, policy.ViewUser, targetOf(u)); err != nil {
		return domain.UserWithRole{}, err
	}
	return u, nil
}

// ListUsers returns the page of users visible to actor. Filtering happens
// before paging so page boundaries never change which rows are visible.
func (s *UserService) ListUsers(ctx context.Context, actor domain.Actor, page Page) (UserPage, error) {
	page = page.Normalize()

	all, err := s.Store.Users().ListUsersWithRole(ctx)
	if err != nil {
		return UserPage{}, internal(err)
	}
	visible := policy.VisibleUsers(subjectOf(actor), all)

	out := UserPage{Total: len(visible), Users: []domain.UserWithRole{}}
	if page.Offset >= len(visible) {
		return out, nil
	}
	end := min(page.Offset+page.Limit, len(visible))
	out.Users = visible[page.Offset:end]
	return out, nil
}

// UpdateUser applies the non-nil fields of in. Users may always change their
// own name, email and password; a role change is authorized against both the
// current and the new role even for self.
func (s *UserService) UpdateUser(ctx context.Context, actor domain.Actor, userID string, in UpdateUserInput) (domain.UserWithRole, error) {
	var updated domain.UserWithRole
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		target, err := getTarget(ctx, tx, userID)
		if err != nil {
			return err
		}

		if actor.ID != target.ID {
			if err := authorize(ctx, actor, policy.UpdateUser, targetOf(target)); err != nil {
				return err
			}
		}

		u := target.User
		role := target.Role

		if in.RoleID != nil && *in.RoleID != target.RoleID {
			newRole, err := getRole(ctx, tx, *in.RoleID)
			if err != nil {
				return err
			}
			if err := authorizeAssignment(ctx, actor, target, newRole); err != nil {
				return err
			}
			u.RoleID, role = newRole.ID, newRole
		}

		if in.Email != nil {
			email := strings.TrimSpace(*in.Email)
			if email != u.Email {
				if err := ensureEmailFree(ctx, tx, email, u.ID); err != nil {
					return err
				}
				u.Email = email
			}
		}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return invalidOperation("name must not be blank")
			}
			u.Name = name
		}
		if in.Password != nil {
			hash, err := s.Credentials.Hash(*in.Password)
			if err != nil {
				return internal(err)
			}
			u.PasswordHash = hash
		}

		if err := tx.Users().UpdateUser(ctx, u); err != nil {
			return fromWrite(err, "email "+u.Email+" is already registered", "user changed concurrently")
		}
		updated = domain.UserWithRole{User: u, Role: role}
		return nil
	})
	if err != nil {
		return domain.UserWithRole{}, err
	}

	slogx.FromContext(ctx).Info("user updated", slog.String("user_id", updated.ID))
	return updated, nil
}

func (s *UserService) DeleteUser(ctx context.Context, actor domain.Actor, userID string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		target, err := getTarget(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, actor, policy.DeleteUser, targetOf(target)); err != nil {
			return err
		}
		return fromStore(tx.Users().DeleteUser(ctx, target.ID), "user changed concurrently")
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("user deleted", slog.String("user_id", userID))
	return nil
}

// AssignRole moves a user to another role.
func (s *UserService) AssignRole(ctx context.Context, actor domain.Actor, userID, roleID string) (domain.UserWithRole, error) {
	var updated domain.UserWithRole
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		target, err := getTarget(ctx, tx, userID)
		if err != nil {
			return err
		}
		newRole, err := getRole(ctx, tx, roleID)
		if err != nil {
			return err
		}
		if err := authorizeAssignment(ctx, actor, target, newRole); err != nil {
			return err
		}

		u := target.User
		u.RoleID = newRole.ID
		if err := tx.Users().UpdateUser(ctx, u); err != nil {
			return fromStore(err, "user changed concurrently")
		}
		updated = domain.UserWithRole{User: u, Role: newRole}
		return nil
	})
	if err != nil {
		return domain.UserWithRole{}, err
	}

	slogx.FromContext(ctx).Info("role assigned",
		slog.String("user_id", updated.ID),
		slog.String("role", updated.Role.Name),
	)
	return updated, nil
}

// authorizeAssignment checks AssignRole against the role being taken away and
// the role being granted, so nobody can demote a user they could not manage.
func authorizeAssignment(ctx context.Context, actor domain.Actor, target domain.UserWithRole, newRole domain.Role) error {
	if err := authorize(ctx, actor, policy.AssignRole, targetOf(target)); err != nil {
		return err
	}
	return authorize(ctx, actor, policy.AssignRole, policy.Subject{ID: target.ID, Role: newRole.Name})
}
