package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/rbacsdk"
)

type AuthHandler struct {
	AuthService  *service.AuthService
	RolesService *service.RolesService
}

// HandleToken handles login
//
//	@Summary		Log in
//	@Description	Exchanges an email and password for a JWT access token. Unknown emails and wrong passwords return the same error.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		rbacsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	rbacsdk.TokenResponse	"Access token"
//	@Failure		401		{object}	rbacsdk.ErrorResponse	"Incorrect email or password"
//	@Failure		422		{object}	rbacsdk.ErrorResponse	"Invalid request body"
//	@Failure		429		{object}	rbacsdk.ErrorResponse	"Too many attempts"
//	@Router			/v1/auth/token [post].
func (h *AuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req rbacsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteInvalidRequest(w, err)
		return
	}

	res, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, rbacsdk.TokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresIn:   res.ExpiresIn,
		User:        toUserResponse(res.User),
	})
}

// HandleMe returns the current user
//
//	@Summary		Current user
//	@Description	Returns the authenticated user with its role.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	rbacsdk.UserResponse
//	@Failure		401	{object}	rbacsdk.ErrorResponse	"Missing or invalid token"
//	@Security		BearerAuth
//	@Router			/v1/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.AuthService.Me(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// HandleRoleOptions lists roles for sign-up forms
//
//	@Summary		Role options
//	@Description	Lists every role. No authentication required.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	rbacsdk.ListRolesResponse
//	@Router			/v1/auth/roles-options [get].
func (h *AuthHandler) HandleRoleOptions(w http.ResponseWriter, r *http.Request) {
	roles, err := h.RolesService.ListRoleOptions(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rbacsdk.ListRolesResponse{Roles: toRoleResponses(roles)})
}
