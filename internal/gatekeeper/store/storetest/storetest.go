// Package storetest is a conformance suite every store driver runs.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store"
	"github.com/aussiebroadwan/gatekeeper/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Run exercises a migrated, empty store. newStore is called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("RoleRoundTrip", func(t *testing.T) { testRoleRoundTrip(t, newStore(t)) })
	t.Run("RoleNameUnique", func(t *testing.T) { testRoleNameUnique(t, newStore(t)) })
	t.Run("UserEmailUnique", func(t *testing.T) { testUserEmailUnique(t, newStore(t)) })
	t.Run("UserNeedsExistingRole", func(t *testing.T) { testUserNeedsRole(t, newStore(t)) })
	t.Run("RoleWithMembersCannotBeDeleted", func(t *testing.T) { testRoleDeleteRestricted(t, newStore(t)) })
	t.Run("UserUpdateAndDelete", func(t *testing.T) { testUserUpdateAndDelete(t, newStore(t)) })
	t.Run("ListingsOrderedByID", func(t *testing.T) { testListings(t, newStore(t)) })
	t.Run("SeatIsSingle", func(t *testing.T) { testSeatSingle(t, newStore(t)) })
	t.Run("SeatReleasedWithUser", func(t *testing.T) { testSeatCascade(t, newStore(t)) })
	t.Run("TxRollsBack", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("ConcurrentRoleCreate", func(t *testing.T) { testConcurrentRoleCreate(t, newStore(t)) })
	t.Run("ConcurrentSeatClaims", func(t *testing.T) { testConcurrentSeatClaims(t, newStore(t)) })
}

// racers is how many goroutines the concurrency cases start at once.
const racers = 8

// race runs fn on racers goroutines released together and collects the
// results in goroutine order.
func race(fn func(i int) error) []error {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, racers)
	)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

// requireOneWinner asserts exactly one nil result and that every other
// result matches loser.
func requireOneWinner(t *testing.T, errs []error, loser error) int {
	t.Helper()
	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one racer succeeded")
			winner = i
			continue
		}
		require.ErrorIs(t, err, loser, "racer %d", i)
	}
	require.NotEqual(t, -1, winner, "no racer succeeded")
	return winner
}

func desc(s string) *string { return &s }

// NewRole builds a role with a fresh id.
func NewRole(name string, description *string) domain.Role {
	now := time.Now().UTC()
	return domain.Role{ID: idx.New().String(), Name: name, Description: description, CreatedAt: now, UpdatedAt: now}
}

// NewUser builds a user with a fresh id.
func NewUser(email, roleID string) domain.User {
	now := time.Now().UTC()
	return domain.User{
		ID: idx.New().String(), Email: email, Name: email, PasswordHash: "hash",
		RoleID: roleID, CreatedAt: now, UpdatedAt: now,
	}
}

func seedRole(t *testing.T, s store.Store, name string) domain.Role {
	t.Helper()
	r := NewRole(name, nil)
	require.NoError(t, s.Roles().CreateRole(context.Background(), r))
	return r
}

func seedUser(t *testing.T, s store.Store, email, roleID string) domain.User {
	t.Helper()
	u := NewUser(email, roleID)
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func testRoleRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := NewRole("Auditor", desc("reads the books"))
	require.NoError(t, s.Roles().CreateRole(ctx, r))

	got, err := s.Roles().GetRoleByName(ctx, "Auditor")
	require.NoError(t, err)
	require.Equal(t, r.ID, got.ID)
	require.Equal(t, "Auditor", got.Name)
	require.Equal(t, "reads the books", *got.Description)

	got.Name = "Inspector"
	got.Description = nil
	require.NoError(t, s.Roles().UpdateRole(ctx, got))

	got, err = s.Roles().GetRoleByID(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, "Inspector", got.Name)
	require.Nil(t, got.Description)

	_, err = s.Roles().GetRoleByName(ctx, "Auditor")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testRoleNameUnique(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedRole(t, s, "Manager")
	other := seedRole(t, s, "Accounts")

	require.ErrorIs(t, s.Roles().CreateRole(ctx, NewRole("Manager", nil)), store.ErrAlreadyExists)

	other.Name = "Manager"
	require.ErrorIs(t, s.Roles().UpdateRole(ctx, other), store.ErrAlreadyExists)

	// Case-sensitive names.
	require.NoError(t, s.Roles().CreateRole(ctx, NewRole("manager", nil)))
}

func testUserEmailUnique(t *testing.T, s store.Store) {
	role := seedRole(t, s, "Customer")
	seedUser(t, s, "a@x.com", role.ID)

	err := s.Users().CreateUser(context.Background(), NewUser("a@x.com", role.ID))
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func testUserNeedsRole(t *testing.T, s store.Store) {
	err := s.Users().CreateUser(context.Background(), NewUser("a@x.com", idx.New().String()))
	require.ErrorIs(t, err, store.ErrConstraint)
}

func testRoleDeleteRestricted(t *testing.T, s store.Store) {
	ctx := context.Background()
	role := seedRole(t, s, "Customer")
	u := seedUser(t, s, "a@x.com", role.ID)

	n, err := s.Roles().CountMembers(ctx, role.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.ErrorIs(t, s.Roles().DeleteRole(ctx, role.ID), store.ErrConstraint)

	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))
	require.NoError(t, s.Roles().DeleteRole(ctx, role.ID))
	require.ErrorIs(t, s.Roles().DeleteRole(ctx, role.ID), store.ErrNotFound)
}

func testUserUpdateAndDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	customer := seedRole(t, s, "Customer")
	manager := seedRole(t, s, "Manager")
	u := seedUser(t, s, "a@x.com", customer.ID)

	u.Email = "b@x.com"
	u.Name = "Bee"
	u.RoleID = manager.ID
	require.NoError(t, s.Users().UpdateUser(ctx, u))

	got, err := s.Users().GetUserWithRole(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "b@x.com", got.Email)
	require.Equal(t, "Bee", got.Name)
	require.Equal(t, "Manager", got.Role.Name)

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "rehashed"))
	byEmail, err := s.Users().GetUserByEmail(ctx, "b@x.com")
	require.NoError(t, err)
	require.Equal(t, "rehashed", byEmail.PasswordHash)

	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))
	_, err = s.Users().GetUserByID(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.Users().DeleteUser(ctx, u.ID), store.ErrNotFound)
	require.ErrorIs(t, s.Users().UpdateUser(ctx, u), store.ErrNotFound)
}

func testListings(t *testing.T, s store.Store) {
	ctx := context.Background()
	customer := seedRole(t, s, "Customer")
	admin := seedRole(t, s, "Admin")

	var want []string
	for i, email := range []string{"c@x.com", "a@x.com", "b@x.com"} {
		roleID := customer.ID
		if i == 1 {
			roleID = admin.ID
		}
		want = append(want, seedUser(t, s, email, roleID).ID)
	}

	all, err := s.Users().ListUsersWithRole(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, u := range all {
		require.Equal(t, want[i], u.ID)
	}

	members, err := s.Users().ListUsersByRole(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, "Customer", members[0].Role.Name)

	roles, err := s.Roles().ListAll(ctx)
	require.NoError(t, err)
	require.Equal(t, "Admin", roles[0].Name)
	require.Equal(t, "Customer", roles[1].Name)
}

func testSeatSingle(t *testing.T, s store.Store) {
	ctx := context.Background()
	role := seedRole(t, s, domain.SuperAdminRoleName)
	first := seedUser(t, s, "root@x.com", role.ID)
	second := seedUser(t, s, "root2@x.com", role.ID)

	_, err := s.Seats().Holder(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Seats().Claim(ctx, first.ID))
	require.ErrorIs(t, s.Seats().Claim(ctx, second.ID), store.ErrAlreadyExists)

	holder, err := s.Seats().Holder(ctx)
	require.NoError(t, err)
	require.Equal(t, first.ID, holder)
}

func testSeatCascade(t *testing.T, s store.Store) {
	ctx := context.Background()
	role := seedRole(t, s, domain.SuperAdminRoleName)
	u := seedUser(t, s, "root@x.com", role.ID)
	require.NoError(t, s.Seats().Claim(ctx, u.ID))

	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))

	_, err := s.Seats().Holder(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Roles().CreateRole(ctx, NewRole("Temp", nil)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Roles().GetRoleByName(ctx, "Temp")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Roles().CreateRole(ctx, NewRole("Kept", nil))
	}))
	_, err = s.Roles().GetRoleByName(ctx, "Kept")
	require.NoError(t, err)
}

func testConcurrentRoleCreate(t *testing.T, s store.Store) {
	ctx := context.Background()
	errs := race(func(int) error {
		return s.Roles().CreateRole(ctx, NewRole("Auditor", nil))
	})
	requireOneWinner(t, errs, store.ErrAlreadyExists)

	roles, err := s.Roles().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 1)
}

func testConcurrentSeatClaims(t *testing.T, s store.Store) {
	ctx := context.Background()
	role := seedRole(t, s, domain.SuperAdminRoleName)

	users := make([]domain.User, racers)
	for i := range users {
		users[i] = NewUser(fmt.Sprintf("root%d@x.com", i), role.ID)
	}
	errs := race(func(i int) error {
		return s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().CreateUser(ctx, users[i]); err != nil {
				return err
			}
			return tx.Seats().Claim(ctx, users[i].ID)
		})
	})
	winner := requireOneWinner(t, errs, store.ErrAlreadyExists)

	holder, err := s.Seats().Holder(ctx)
	require.NoError(t, err)
	require.Equal(t, users[winner].ID, holder)

	// Losers rolled back their user along with the claim.
	n, err := s.Roles().CountMembers(ctx, role.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
