package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// State of the SuperAdmin seat.
type State int

const (
	// StateAbsent: no SuperAdmin role, or nobody holds it.
	StateAbsent State = iota
	// StatePresent: exactly one user holds the SuperAdmin role.
	StatePresent
	// StateReplacing only exists inside a forced re-initialization transaction.
	StateReplacing
)

func (s State) String() string {
	switch s {
	case StatePresent:
		return "present"
	case StateReplacing:
		return "replacing"
	default:
		return "absent"
	}
}

const superAdminRoleDescription = "Super Administrator with full access"

// SuperAdminService owns the lifecycle of the single privileged identity.
// Initialize is the unauthenticated root of trust; when BootstrapToken is set
// callers must present it.
type SuperAdminService struct {
	Store          store.Store
	Credentials    Credentials
	BootstrapToken string
}

func (s *SuperAdminService) State(ctx context.Context) (State, error) {
	role, err := s.Store.Roles().GetRoleByName(ctx, domain.SuperAdminRoleName)
	if errors.Is(err, store.ErrNotFound) {
		return StateAbsent, nil
	}
	if err != nil {
		return StateAbsent, internal(err)
	}
	n, err := s.Store.Roles().CountMembers(ctx, role.ID)
	if err != nil {
		return StateAbsent, internal(err)
	}
	if n == 0 {
		return StateAbsent, nil
	}
	return StatePresent, nil
}

// Initialize creates the SuperAdmin (and its role when missing). With Force
// an existing holder is replaced; the whole exchange is one transaction, so
// a failure leaves the previous holder in place.
func (s *SuperAdminService) Initialize(ctx context.Context, token string, in domain.SuperAdminInit) (domain.UserWithRole, error) {
	log := slogx.FromContext(ctx)

	if s.BootstrapToken != "" && !cryptox.EqualTokens(token, s.BootstrapToken) {
		log.Warn("superadmin init rejected: bad bootstrap token")
		return domain.UserWithRole{}, unauthorized("invalid bootstrap token")
	}

	email := strings.TrimSpace(in.Email)
	var (
		created  domain.UserWithRole
		replaced []string
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, roleExists, err := lookupSuperAdminRole(ctx, tx)
		if err != nil {
			return err
		}

		var holders []domain.UserWithRole
		if roleExists {
			if holders, err = tx.Users().ListUsersByRole(ctx, role.ID); err != nil {
				return internal(err)
			}
		}

		if len(holders) > 0 && !in.Force {
			return conflict("SuperAdmin already exists; use force to replace it")
		}

		existing, err := tx.Users().GetUserByEmail(ctx, email)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return internal(err)
		case !roleExists || existing.RoleID != role.ID:
			return conflict("email %s is already registered", email)
		}

		if len(holders) > 0 {
			log.Warn("replacing SuperAdmin", slog.String("state", StateReplacing.String()), slog.Int("holders", len(holders)))
			for _, h := range holders {
				if err := tx.Users().DeleteUser(ctx, h.ID); err != nil {
					return fromStore(err, "SuperAdmin changed concurrently")
				}
				replaced = append(replaced, h.ID)
			}
		}

		if !roleExists {
			now := time.Now().UTC()
			desc := superAdminRoleDescription
			role = domain.Role{
				ID:          idx.New().String(),
				Name:        domain.SuperAdminRoleName,
				Description: &desc,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := tx.Roles().CreateRole(ctx, role); err != nil {
				return fromStore(err, "SuperAdmin already exists")
			}
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

		// The seat is the arbiter when two initializations race.
		if err := tx.Seats().Claim(ctx, u.ID); err != nil {
			return fromStore(err, "SuperAdmin already exists")
		}

		created = domain.UserWithRole{User: u, Role: role}
		return nil
	})
	if err != nil {
		return domain.UserWithRole{}, err
	}

	log.Info("superadmin initialized",
		slog.String("user_id", created.ID),
		slog.String("state", StatePresent.String()),
		slog.Any("replaced", replaced),
	)
	return created, nil
}

func lookupSuperAdminRole(ctx context.Context, repos store.Repos) (domain.Role, bool, error) {
	role, err := repos.Roles().GetRoleByName(ctx, domain.SuperAdminRoleName)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Role{}, false, nil
	}
	if err != nil {
		return domain.Role{}, false, internal(err)
	}
	return role, true, nil
}

func requireSuperAdminRole(ctx context.Context, repos store.Repos) (domain.Role, error) {
	role, ok, err := lookupSuperAdminRole(ctx, repos)
	if err != nil {
		return domain.Role{}, err
	}
	if !ok {
		return domain.Role{}, notFound("SuperAdmin role not found")
	}
	return role, nil
}

// DeleteSuperAdminUser removes a SuperAdmin holder. Removing the last one is
// allowed: the system drops to StateAbsent and Initialize recovers it.
func (s *SuperAdminService) DeleteSuperAdminUser(ctx context.Context, actor domain.Actor, userID string) (domain.SuperAdminDeletion, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return domain.SuperAdminDeletion{}, err
	}

	var out domain.SuperAdminDeletion
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, err := requireSuperAdminRole(ctx, tx)
		if err != nil {
			return err
		}
		target, err := tx.Users().GetUserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("user %s not found", userID)
		}
		if err != nil {
			return internal(err)
		}
		if target.RoleID != role.ID {
			return invalidOperation("user %s is not a SuperAdmin", userID)
		}

		n, err := tx.Roles().CountMembers(ctx, role.ID)
		if err != nil {
			return internal(err)
		}
		if err := tx.Users().DeleteUser(ctx, target.ID); err != nil {
			return fromStore(err, "SuperAdmin changed concurrently")
		}

		out = domain.SuperAdminDeletion{
			UserID:            target.ID,
			Email:             target.Email,
			WasSelfDeletion:   target.ID == actor.ID,
			WasLastSuperAdmin: n <= 1,
		}
		return nil
	})
	if err != nil {
		return domain.SuperAdminDeletion{}, err
	}

	slogx.FromContext(ctx).Warn("superadmin deleted",
		slog.String("user_id", out.UserID),
		slog.Bool("self", out.WasSelfDeletion),
		slog.Bool("last", out.WasLastSuperAdmin),
	)
	return out, nil
}

// DeleteSuperAdminRole removes the SuperAdmin role once nobody holds it.
// There is no role gate: while the role has members the call is refused,
// and once it is empty nobody can hold it anyway.
func (s *SuperAdminService) DeleteSuperAdminRole(ctx context.Context, actor domain.Actor) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		role, err := requireSuperAdminRole(ctx, tx)
		if err != nil {
			return err
		}
		if err := ensureNoMembers(ctx, tx, role); err != nil {
			return err
		}
		return fromWrite(tx.Roles().DeleteRole(ctx, role.ID), "SuperAdmin role gained a member", "SuperAdmin role changed concurrently")
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Warn("superadmin role deleted", slog.String("actor_id", actor.ID))
	return nil
}

// ListSuperAdmins is SuperAdmin only.
func (s *SuperAdminService) ListSuperAdmins(ctx context.Context, actor domain.Actor) ([]domain.UserWithRole, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return nil, err
	}
	role, ok, err := lookupSuperAdminRole(ctx, s.Store)
	if err != nil || !ok {
		return []domain.UserWithRole{}, err
	}
	users, err := s.Store.Users().ListUsersByRole(ctx, role.ID)
	if err != nil {
		return nil, internal(err)
	}
	if users == nil {
		users = []domain.UserWithRole{}
	}
	return users, nil
}

// GetSuperAdmin is SuperAdmin only.
func (s *SuperAdminService) GetSuperAdmin(ctx context.Context, actor domain.Actor, userID string) (domain.UserWithRole, error) {
	if err := requireSuperAdmin(actor); err != nil {
		return domain.UserWithRole{}, err
	}
	role, err := requireSuperAdminRole(ctx, s.Store)
	if err != nil {
		return domain.UserWithRole{}, err
	}
	u, err := s.Store.Users().GetUserWithRole(ctx, userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && u.RoleID != role.ID) {
		return domain.UserWithRole{}, notFound("SuperAdmin user %s not found", userID)
	}
	if err != nil {
		return domain.UserWithRole{}, internal(err)
	}
	return u, nil
}
