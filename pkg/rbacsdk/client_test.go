package rbacsdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestLoginAndMe(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "hunter22" {
			httpx.WriteError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "Incorrect email or password")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, TokenResponse{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 60})
	})
	mux.HandleFunc("GET /v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			httpx.WriteError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, UserResponse{ID: "u1", Email: "a@example.com", Role: RoleResponse{Name: "Admin"}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL + "/")
	ctx := context.Background()

	_, err := c.Login(ctx, "a@example.com", "wrong")
	require.True(t, IsStatus(err, http.StatusUnauthorized))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, ErrorCodeUnauthorized, apiErr.Code)
	require.Equal(t, "Incorrect email or password", apiErr.Description)

	sess, err := c.Login(ctx, "a@example.com", "hunter22")
	require.NoError(t, err)
	require.Equal(t, "tok", sess.Token())
	require.False(t, sess.Expired())

	me, err := sess.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "Admin", me.Role.Name)
}

func TestInitSuperAdminSendsBootstrapToken(t *testing.T) {
	t.Parallel()

	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Bootstrap-Token")
		httpx.WriteJSON(w, http.StatusCreated, SuperAdminInitResponse{Message: "ok", User: UserResponse{ID: "root"}})
	}))
	t.Cleanup(srv.Close)

	out, err := NewClient(srv.URL).InitSuperAdmin(context.Background(), "s3cret", SuperAdminInitRequest{
		Email: "root@example.com", Password: "password1",
	})
	require.NoError(t, err)
	require.Equal(t, "root", out.User.ID)
	require.Equal(t, "s3cret", gotToken)
}

func TestListUsersQuery(t *testing.T) {
	t.Parallel()

	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		httpx.WriteJSON(w, http.StatusOK, ListUsersResponse{Total: 0, Users: []UserResponse{}})
	}))
	t.Cleanup(srv.Close)

	sess := NewClient(srv.URL).NewSession("tok", 60)
	_, err := sess.ListUsers(context.Background(), 10, 5)
	require.NoError(t, err)
	require.Equal(t, "limit=5&offset=10", gotQuery)

	_, err = sess.ListUsers(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Empty(t, gotQuery)
}

func TestNonJSONErrorFallsBack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	err := NewClient(srv.URL).NewSession("tok", 60).DeleteUser(context.Background(), "u1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	require.Equal(t, ErrorCodeServerError, apiErr.Code)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.Nil(t, Validate(CreateUserRequest{Email: "a@example.com", Password: "password1", RoleID: "r"}))

	errs := Validate(CreateUserRequest{Email: "nope", Password: "short"})
	require.Equal(t, "email", errs["email"])
	require.Equal(t, "min=8", errs["password"])
	require.Equal(t, "required", errs["role_id"])

	short := "x"
	require.Equal(t, "min=8", Validate(UpdateUserRequest{Password: &short})["password"])
	require.Nil(t, Validate(UpdateUserRequest{}))
}
