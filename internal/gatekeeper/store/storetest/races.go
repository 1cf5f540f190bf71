package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/stretchr/testify/require"
)

// RunServiceRaces drives the services concurrently against a real driver so
// its locking, not the pre-checks, decides the outcome.
func RunServiceRaces(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("InitializeOnce", func(t *testing.T) { testInitializeOnce(t, newStore(t)) })
	t.Run("ForcedInitializeKeepsOneHolder", func(t *testing.T) { testForcedInitialize(t, newStore(t)) })
	t.Run("CreateRoleOnce", func(t *testing.T) { testCreateRoleOnce(t, newStore(t)) })
}

type plainCredentials struct{}

func (plainCredentials) Hash(pw string) (string, error) { return "plain:" + pw, nil }
func (plainCredentials) Verify(pw, encoded string) error {
	if encoded != "plain:"+pw {
		return errors.New("mismatch")
	}
	return nil
}
func (plainCredentials) NeedsRehash(string) bool { return false }

func superAdminService(s store.Store) *service.SuperAdminService {
	return &service.SuperAdminService{Store: s, Credentials: plainCredentials{}}
}

func initInput(i int, force bool) domain.SuperAdminInit {
	return domain.SuperAdminInit{
		Email:    fmt.Sprintf("root%d@x.com", i),
		Password: "rootpassword",
		Force:    force,
	}
}

func requireSingleHolder(t *testing.T, s store.Store) domain.UserWithRole {
	t.Helper()
	ctx := context.Background()
	role, err := s.Roles().GetRoleByName(ctx, domain.SuperAdminRoleName)
	require.NoError(t, err)
	holders, err := s.Users().ListUsersByRole(ctx, role.ID)
	require.NoError(t, err)
	require.Len(t, holders, 1)

	seat, err := s.Seats().Holder(ctx)
	require.NoError(t, err)
	require.Equal(t, holders[0].ID, seat)
	return holders[0]
}

func testInitializeOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	sa := superAdminService(s)

	errs := race(func(i int) error {
		_, err := sa.Initialize(ctx, "", initInput(i, false))
		return err
	})
	winner := requireOneWinner(t, errs, service.ErrConflict)

	holder := requireSingleHolder(t, s)
	require.Equal(t, fmt.Sprintf("root%d@x.com", winner), holder.Email)
}

// Forced replacements may serialize (all succeed in turn) or collide (the
// loser finds its holder already gone). Either way nothing but Conflict may
// surface and exactly one SuperAdmin remains.
func testForcedInitialize(t *testing.T, s store.Store) {
	ctx := context.Background()
	sa := superAdminService(s)

	_, err := sa.Initialize(ctx, "", domain.SuperAdminInit{Email: "first@x.com", Password: "rootpassword"})
	require.NoError(t, err)

	errs := race(func(i int) error {
		_, err := sa.Initialize(ctx, "", initInput(i, true))
		return err
	})

	succeeded := map[string]bool{}
	for i, err := range errs {
		if err == nil {
			succeeded[fmt.Sprintf("root%d@x.com", i)] = true
			continue
		}
		require.Equal(t, service.ErrConflict, service.KindOf(err), "racer %d: %v", i, err)
	}
	require.NotEmpty(t, succeeded)

	holder := requireSingleHolder(t, s)
	require.True(t, succeeded[holder.Email], "holder %s did not report success", holder.Email)
}

func testCreateRoleOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	root, err := superAdminService(s).Initialize(ctx, "", domain.SuperAdminInit{Email: "root@x.com", Password: "rootpassword"})
	require.NoError(t, err)
	actor := domain.Actor{ID: root.ID, Email: root.Email, RoleName: domain.SuperAdminRoleName}
	roles := &service.RolesService{Store: s}

	errs := race(func(int) error {
		_, err := roles.CreateRole(ctx, actor, service.RoleInput{Name: "Auditor"})
		return err
	})
	requireOneWinner(t, errs, service.ErrConflict)

	_, err = s.Roles().GetRoleByName(ctx, "Auditor")
	require.NoError(t, err)
}
