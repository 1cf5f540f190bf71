package rbacsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client talks to the unauthenticated endpoints and opens Sessions.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Session is an authenticated handle holding a bearer token.
type Session struct {
	client *Client

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
}

// NewSession wraps an existing access token.
func (c *Client) NewSession(accessToken string, expiresIn int64) *Session {
	return &Session{
		client:    c,
		token:     accessToken,
		expiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Expired reports whether the token has passed its advertised lifetime.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.expiresAt.IsZero() && time.Now().After(s.expiresAt)
}

// do sends body as JSON and decodes a want-status response into out.
func (c *Client) do(ctx context.Context, method, path, token string, headers map[string]string, body, out any, want int) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != want {
		return parseErrorResponse(resp, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (s *Session) do(ctx context.Context, method, path string, body, out any, want int) error {
	return s.client.do(ctx, method, path, s.Token(), nil, body, out, want)
}

// ============================================================================
// Unauthenticated
// ============================================================================

// Login exchanges credentials for a Session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var tok TokenResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/token", "", nil,
		LoginRequest{Email: email, Password: password}, &tok, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return c.NewSession(tok.AccessToken, tok.ExpiresIn), nil
}

// RoleOptions lists every role; it needs no token.
func (c *Client) RoleOptions(ctx context.Context) ([]RoleResponse, error) {
	var out ListRolesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/auth/roles-options", "", nil, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

// InitSuperAdmin creates or, with Force, replaces the SuperAdmin. The
// bootstrap token may be empty when the server has none configured.
func (c *Client) InitSuperAdmin(ctx context.Context, bootstrapToken string, req SuperAdminInitRequest) (*SuperAdminInitResponse, error) {
	var headers map[string]string
	if bootstrapToken != "" {
		headers = map[string]string{"X-Bootstrap-Token": bootstrapToken}
	}
	var out SuperAdminInitResponse
	if err := c.do(ctx, http.MethodPost, "/v1/superadmin/init", "", headers, req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Livez(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/livez", "", nil, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Readyz(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.do(ctx, http.MethodGet, "/readyz", "", nil, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================================
// Session: self
// ============================================================================

func (s *Session) Me(ctx context.Context) (*UserResponse, error) {
	var out UserResponse
	if err := s.do(ctx, http.MethodGet, "/v1/auth/me", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================================
// Session: roles
// ============================================================================

func (s *Session) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	var out ListRolesResponse
	if err := s.do(ctx, http.MethodGet, "/v1/roles", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

func (s *Session) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	var out RoleResponse
	if err := s.do(ctx, http.MethodGet, "/v1/roles/"+url.PathEscape(id), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) CreateRole(ctx context.Context, req RoleRequest) (*RoleResponse, error) {
	var out RoleResponse
	if err := s.do(ctx, http.MethodPost, "/v1/roles", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) UpdateRole(ctx context.Context, id string, req RoleRequest) (*RoleResponse, error) {
	var out RoleResponse
	if err := s.do(ctx, http.MethodPut, "/v1/roles/"+url.PathEscape(id), req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteRole(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodDelete, "/v1/roles/"+url.PathEscape(id), nil, nil, http.StatusNoContent)
}

// ============================================================================
// Session: users
// ============================================================================

// ListUsers returns the page of users visible to the session's user. A zero
// limit lets the server pick its default.
func (s *Session) ListUsers(ctx context.Context, offset, limit int) (*ListUsersResponse, error) {
	q := url.Values{}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/users"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out ListUsersResponse
	if err := s.do(ctx, http.MethodGet, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	var out UserResponse
	if err := s.do(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(id), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	var out UserResponse
	if err := s.do(ctx, http.MethodPost, "/v1/users", req, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	var out UserResponse
	if err := s.do(ctx, http.MethodPut, "/v1/users/"+url.PathEscape(id), req, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteUser(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodDelete, "/v1/users/"+url.PathEscape(id), nil, nil, http.StatusNoContent)
}

func (s *Session) AssignRole(ctx context.Context, userID, roleID string) (*UserResponse, error) {
	var out UserResponse
	path := "/v1/users/" + url.PathEscape(userID) + "/role/" + url.PathEscape(roleID)
	if err := s.do(ctx, http.MethodPut, path, nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ============================================================================
// Session: SuperAdmin
// ============================================================================

func (s *Session) ListSuperAdmins(ctx context.Context) ([]UserResponse, error) {
	var out ListUsersResponse
	if err := s.do(ctx, http.MethodGet, "/v1/superadmin/users", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (s *Session) GetSuperAdmin(ctx context.Context, id string) (*UserResponse, error) {
	var out UserResponse
	if err := s.do(ctx, http.MethodGet, "/v1/superadmin/users/"+url.PathEscape(id), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteSuperAdminUser(ctx context.Context, id string) (*SuperAdminDeletionResponse, error) {
	var out SuperAdminDeletionResponse
	if err := s.do(ctx, http.MethodDelete, "/v1/superadmin/users/"+url.PathEscape(id), nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Session) DeleteSuperAdminRole(ctx context.Context) (*MessageResponse, error) {
	var out MessageResponse
	if err := s.do(ctx, http.MethodDelete, "/v1/superadmin/role", nil, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
