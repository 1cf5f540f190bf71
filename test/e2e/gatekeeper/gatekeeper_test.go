package gatekeeper_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/rbacsdk"
	"github.com/stretchr/testify/require"
)

func TestHealthBeforeBootstrap(t *testing.T) {
	client := setupContainer(t)

	live, err := client.Livez(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.Readyz(t.Context())
	require.NoError(t, err)
	require.Equal(t, "absent", ready.Checks.SuperAdmin)
}

func TestBootstrapRequiresToken(t *testing.T) {
	client := setupContainer(t)

	_, err := client.InitSuperAdmin(t.Context(), "wrong", rbacsdk.SuperAdminInitRequest{
		Email:    rootEmail,
		Password: rootPassword,
	})
	requireStatus(t, err, http.StatusUnauthorized)

	bootstrap(t, client)

	_, err = client.InitSuperAdmin(t.Context(), bootstrapToken, rbacsdk.SuperAdminInitRequest{
		Email:    "other@example.com",
		Password: rootPassword,
	})
	requireStatus(t, err, http.StatusConflict)
}

func TestRoleHierarchy(t *testing.T) {
	client := setupContainer(t)
	root := bootstrap(t, client)
	ctx := t.Context()

	admin, err := root.CreateRole(ctx, rbacsdk.RoleRequest{Name: "Admin"})
	require.NoError(t, err)
	manager, err := root.CreateRole(ctx, rbacsdk.RoleRequest{Name: "Manager"})
	require.NoError(t, err)

	_, err = root.CreateUser(ctx, rbacsdk.CreateUserRequest{
		Email: "admin@example.com", Password: "AdminPassw0rd", RoleID: admin.ID,
	})
	require.NoError(t, err)

	adminSession, err := client.Login(ctx, "admin@example.com", "AdminPassw0rd")
	require.NoError(t, err)

	staff, err := adminSession.CreateUser(ctx, rbacsdk.CreateUserRequest{
		Email: "manager@example.com", Password: "ManagerPassw0rd", RoleID: manager.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "Manager", staff.Role.Name)

	// Admins cannot mint peers.
	_, err = adminSession.CreateUser(ctx, rbacsdk.CreateUserRequest{
		Email: "admin2@example.com", Password: "AdminPassw0rd", RoleID: admin.ID,
	})
	requireStatus(t, err, http.StatusForbidden)

	managerSession, err := client.Login(ctx, "manager@example.com", "ManagerPassw0rd")
	require.NoError(t, err)
	list, err := managerSession.ListUsers(ctx, 0, 50)
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	require.Equal(t, staff.ID, list.Users[0].ID)

	require.NoError(t, adminSession.DeleteUser(ctx, staff.ID))
	_, err = managerSession.Me(ctx)
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestSuperAdminTeardown(t *testing.T) {
	client := setupContainer(t)
	root := bootstrap(t, client)
	ctx := t.Context()

	supers, err := root.ListSuperAdmins(ctx)
	require.NoError(t, err)
	require.Len(t, supers, 1)

	_, err = root.DeleteSuperAdminRole(ctx)
	requireStatus(t, err, http.StatusBadRequest)

	deleted, err := root.DeleteSuperAdminUser(ctx, supers[0].ID)
	require.NoError(t, err)
	require.True(t, deleted.WasSelfDeletion)
	require.True(t, deleted.WasLastSuperAdmin)

	ready, err := client.Readyz(ctx)
	require.NoError(t, err)
	require.Equal(t, "absent", ready.Checks.SuperAdmin)

	// The system can be bootstrapped again.
	bootstrap(t, client)
}
