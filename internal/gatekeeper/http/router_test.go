package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	httpapi "github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/http"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeeper/pkg/cryptox"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/rbacsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "gatekeeper-http")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

// testLimits keep rate limiting out of the way except where a test asks for it.
var testLimits = httpx.RateLimits{
	Strict:   httpx.RateLimitConfig{RequestsPerWindow: 50, Window: time.Minute, Burst: 50},
	Moderate: httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000},
	Lenient:  httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000},
	Public:   httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000},
}

type harness struct {
	t      *testing.T
	router http.Handler
}

func newHarness(t *testing.T, bootstrapToken string) *harness {
	t.Helper()
	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "gatekeeper.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	secret := []byte(strings.Repeat("s", 32))
	signer, err := jwtx.NewSignerHS256(secret)
	require.NoError(t, err)

	creds := cryptox.PasswordHasher{}
	r := httpapi.NewRouter("test", st, slogx.Discard(), true)
	r.AuthService = &service.AuthService{
		Store: st, Credentials: creds, Signer: signer,
		Verifier: jwtx.NewVerifierHS256(secret, "gatekeeper"), Issuer: "gatekeeper", TTL: time.Hour,
	}
	r.UserService = &service.UserService{Store: st, Credentials: creds}
	r.RolesService = &service.RolesService{Store: st}
	r.SuperAdminService = &service.SuperAdminService{Store: st, Credentials: creds, BootstrapToken: bootstrapToken}
	r.Limits = testLimits
	r.ApplyRoutes()

	return &harness{t: t, router: r}
}

// do sends a JSON request and decodes the response into out when non-nil.
func (h *harness) do(method, path, token string, body, out any, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func (h *harness) login(email, password string) string {
	h.t.Helper()
	var tok rbacsdk.TokenResponse
	rec := h.do(http.MethodPost, "/v1/auth/token", "", rbacsdk.LoginRequest{Email: email, Password: password}, &tok)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return tok.AccessToken
}

func (h *harness) initSuperAdmin() string {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/v1/superadmin/init", "", rbacsdk.SuperAdminInitRequest{
		Email: "root@example.com", Name: "Root", Password: "rootpassword",
	}, nil)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return h.login("root@example.com", "rootpassword")
}

func (h *harness) createRole(token, name string) rbacsdk.RoleResponse {
	h.t.Helper()
	var role rbacsdk.RoleResponse
	rec := h.do(http.MethodPost, "/v1/roles", token, rbacsdk.RoleRequest{Name: name}, &role)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return role
}

func (h *harness) createUser(token, email, roleID string) rbacsdk.UserResponse {
	h.t.Helper()
	var u rbacsdk.UserResponse
	rec := h.do(http.MethodPost, "/v1/users", token, rbacsdk.CreateUserRequest{
		Email: email, Password: "password123", RoleID: roleID,
	}, &u)
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return u
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e rbacsdk.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e.Error
}

func TestHealth(t *testing.T) {
	h := newHarness(t, "")

	var live rbacsdk.HealthResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/livez", "", nil, &live).Code)
	require.Equal(t, "test", live.Version)

	var ready rbacsdk.HealthResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/readyz", "", nil, &ready).Code)
	require.Equal(t, "absent", ready.Checks.SuperAdmin)

	h.initSuperAdmin()
	h.do(http.MethodGet, "/readyz", "", nil, &ready)
	require.Equal(t, "present", ready.Checks.SuperAdmin)
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	h := newHarness(t, "")
	rec := h.do(http.MethodGet, "/livez", "", nil, nil)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t, "")
	root := h.initSuperAdmin()

	rec := h.do(http.MethodGet, "/v1/auth/me", "", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/v1/auth/me", "garbage", nil, nil).Code)

	var me rbacsdk.UserResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/auth/me", root, nil, &me).Code)
	require.Equal(t, "SuperAdmin", me.Role.Name)

	rec = h.do(http.MethodPost, "/v1/auth/token", "", rbacsdk.LoginRequest{Email: "root@example.com", Password: "nope"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, rbacsdk.ErrorCodeUnauthorized, errorCode(t, rec))

	rec = h.do(http.MethodPost, "/v1/auth/token", "", map[string]string{"email": "not-an-email"}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestLoginRateLimited(t *testing.T) {
	h := newHarness(t, "")
	var last int
	for range testLimits.Strict.Burst + 1 {
		last = h.do(http.MethodPost, "/v1/auth/token", "", rbacsdk.LoginRequest{Email: "x@example.com", Password: "p"}, nil).Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)

	// A different account from the same client still gets through to the check.
	rec := h.do(http.MethodPost, "/v1/auth/token", "", rbacsdk.LoginRequest{Email: "y@example.com", Password: "p"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminWorkflow(t *testing.T) {
	h := newHarness(t, "")
	root := h.initSuperAdmin()

	adminRole := h.createRole(root, "Admin")
	managerRole := h.createRole(root, "Manager")
	customerRole := h.createRole(root, "Customer")

	h.createUser(root, "admin@example.com", adminRole.ID)
	admin := h.login("admin@example.com", "password123")

	t.Run("admin cannot create admin", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/v1/users", admin, rbacsdk.CreateUserRequest{
			Email: "a2@example.com", Password: "password123", RoleID: adminRole.ID,
		}, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, rbacsdk.ErrorCodeForbidden, errorCode(t, rec))
	})

	mgr := h.createUser(admin, "mgr@example.com", managerRole.ID)
	cust := h.createUser(admin, "cust@example.com", customerRole.ID)

	t.Run("admin listing hides privileged users", func(t *testing.T) {
		var list rbacsdk.ListUsersResponse
		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/users", admin, nil, &list).Code)
		require.Equal(t, 2, list.Total)
		for _, u := range list.Users {
			require.NotContains(t, []string{"SuperAdmin", "Admin"}, u.Role.Name)
		}

		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/users?offset=1&limit=1", admin, nil, &list).Code)
		require.Len(t, list.Users, 1)
		require.Equal(t, 1, list.Offset)
		require.Equal(t, 1, list.Limit)

		rec := h.do(http.MethodGet, "/v1/users?limit=0", admin, nil, nil)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("assign role and see it on next request", func(t *testing.T) {
		custTok := h.login("cust@example.com", "password123")

		var u rbacsdk.UserResponse
		rec := h.do(http.MethodPut, "/v1/users/"+cust.ID+"/role/"+managerRole.ID, admin, nil, &u)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Equal(t, "Manager", u.Role.Name)

		var me rbacsdk.UserResponse
		h.do(http.MethodGet, "/v1/auth/me", custTok, nil, &me)
		require.Equal(t, "Manager", me.Role.Name)
	})

	t.Run("self update", func(t *testing.T) {
		tok := h.login("mgr@example.com", "password123")
		name := "Morgan"
		var u rbacsdk.UserResponse
		rec := h.do(http.MethodPut, "/v1/users/"+mgr.ID, tok, rbacsdk.UpdateUserRequest{Name: &name}, &u)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Equal(t, "Morgan", u.Name)
	})

	t.Run("role with members cannot be deleted", func(t *testing.T) {
		rec := h.do(http.MethodDelete, "/v1/roles/"+managerRole.ID, root, nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, rbacsdk.ErrorCodeInvalidOperation, errorCode(t, rec))
	})

	t.Run("delete user", func(t *testing.T) {
		require.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/v1/users/"+mgr.ID, admin, nil, nil).Code)
		require.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/v1/users/"+mgr.ID, admin, nil, nil).Code)
	})

	t.Run("duplicate role name", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/v1/roles", root, rbacsdk.RoleRequest{Name: "Customer"}, nil)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("role listing is superadmin only", func(t *testing.T) {
		require.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/v1/roles", admin, nil, nil).Code)
		var roles rbacsdk.ListRolesResponse
		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/auth/roles-options", "", nil, &roles).Code)
		require.Len(t, roles.Roles, 4)
	})
}

func TestSuperAdminLifecycle(t *testing.T) {
	h := newHarness(t, "")
	root := h.initSuperAdmin()

	rec := h.do(http.MethodPost, "/v1/superadmin/init", "", rbacsdk.SuperAdminInitRequest{
		Email: "other@example.com", Password: "password123",
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	var list rbacsdk.ListUsersResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/superadmin/users", root, nil, &list).Code)
	require.Len(t, list.Users, 1)
	rootID := list.Users[0].ID

	var del rbacsdk.SuperAdminDeletionResponse
	rec = h.do(http.MethodDelete, "/v1/superadmin/users/"+rootID, root, nil, &del)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.True(t, del.WasSelfDeletion)
	require.True(t, del.WasLastSuperAdmin)
	require.NotEmpty(t, del.Note)

	// The deleted SuperAdmin's token no longer works.
	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/v1/auth/me", root, nil, nil).Code)

	// Re-initialize through force and check the replacement.
	rec = h.do(http.MethodPost, "/v1/superadmin/init", "", rbacsdk.SuperAdminInitRequest{
		Email: "root2@example.com", Password: "password123", Force: true,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	root2 := h.login("root2@example.com", "password123")

	rec = h.do(http.MethodDelete, "/v1/superadmin/role", root2, nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBootstrapToken(t *testing.T) {
	h := newHarness(t, "let-me-in")
	req := rbacsdk.SuperAdminInitRequest{Email: "root@example.com", Password: "password123"}

	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/v1/superadmin/init", "", req, nil).Code)
	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/v1/superadmin/init", "", req, nil, "X-Bootstrap-Token", "nope").Code)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/superadmin/init", "", req, nil, "X-Bootstrap-Token", "let-me-in").Code)
}
