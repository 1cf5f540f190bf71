package rbacsdk

import (
	"errors"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse = httpx.ErrorResponse

// Error codes carried in ErrorResponse.Error.
const (
	ErrorCodeUnauthorized     = "unauthorized"
	ErrorCodeForbidden        = "forbidden"
	ErrorCodeNotFound         = "not_found"
	ErrorCodeConflict         = "conflict"
	ErrorCodeInvalidOperation = "invalid_operation"
	ErrorCodeInvalidRequest   = "invalid_request"
	ErrorCodeRateLimited      = "rate_limit_exceeded"
	ErrorCodeServerError      = "server_error"
)

// ============================================================================
// Auth
// ============================================================================

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
}

// ============================================================================
// Roles
// ============================================================================

type RoleResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ListRolesResponse struct {
	Roles []RoleResponse `json:"roles"`
}

// RoleRequest creates or replaces a role. A nil Description clears it.
type RoleRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=64"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=255"`
}

// ============================================================================
// Users
// ============================================================================

type UserResponse struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	Role      RoleResponse `json:"role"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type ListUsersResponse struct {
	Users  []UserResponse `json:"users"`
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name,omitempty" validate:"omitempty,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	RoleID   string `json:"role_id" validate:"required"`
}

// UpdateUserRequest changes only the fields that are present.
type UpdateUserRequest struct {
	Email    *string `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
	RoleID   *string `json:"role_id,omitempty" validate:"omitempty,min=1"`
}

// ============================================================================
// SuperAdmin
// ============================================================================

type SuperAdminInitRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"omitempty,max=100"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Force    bool   `json:"force"`
}

type SuperAdminInitResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type SuperAdminDeletionResponse struct {
	Message           string `json:"message"`
	DeletedUserID     string `json:"deleted_user_id"`
	DeletedUserEmail  string `json:"deleted_user_email"`
	WasSelfDeletion   bool   `json:"was_self_deletion"`
	WasLastSuperAdmin bool   `json:"was_last_superadmin"`
	Note              string `json:"note,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// Health
// ============================================================================

type HealthChecks struct {
	Database   string `json:"database"`
	SuperAdmin string `json:"superadmin"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// Validate checks v against its validate tags and returns field errors
// keyed by json name, or nil.
func Validate(v any) map[string]string {
	err := httpx.ValidateStruct(v)
	if err == nil {
		return nil
	}
	var ire *httpx.InvalidRequestError
	if errors.As(err, &ire) && len(ire.Fields) > 0 {
		return ire.Fields
	}
	return map[string]string{"": err.Error()}
}
