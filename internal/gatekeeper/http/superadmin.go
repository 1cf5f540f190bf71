package http

import (
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/rbacsdk"
)

type SuperAdminHandler struct {
	SuperAdminService *service.SuperAdminService
}

// HandleInit establishes the SuperAdmin
//
//	@Summary		Initialize SuperAdmin
//	@Description	Creates the SuperAdmin role if needed and its single holder. Fails with 409 when one exists unless force is set, which replaces it atomically.
//	@Description	Requires X-Bootstrap-Token only when the server has BOOTSTRAP_TOKEN configured.
//	@Tags			SuperAdmin
//	@Accept			json
//	@Produce		json
//	@Param			X-Bootstrap-Token	header		string							false	"Bootstrap token"
//	@Param			request				body		rbacsdk.SuperAdminInitRequest	true	"SuperAdmin"
//	@Success		201					{object}	rbacsdk.SuperAdminInitResponse
//	@Failure		401					{object}	rbacsdk.ErrorResponse	"Invalid bootstrap token"
//	@Failure		409					{object}	rbacsdk.ErrorResponse	"SuperAdmin exists or email taken"
//	@Failure		422					{object}	rbacsdk.ErrorResponse
//	@Router			/v1/superadmin/init [post].
func (h *SuperAdminHandler) HandleInit(w http.ResponseWriter, r *http.Request) {
	var req rbacsdk.SuperAdminInitRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteInvalidRequest(w, err)
		return
	}

	u, err := h.SuperAdminService.Initialize(r.Context(), r.Header.Get("X-Bootstrap-Token"), domain.SuperAdminInit{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Force:    req.Force,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, rbacsdk.SuperAdminInitResponse{
		Message: "Super Admin created successfully",
		User:    toUserResponse(u),
	})
}

// HandleList lists SuperAdmin holders
//
//	@Summary		List SuperAdmins
//	@Tags			SuperAdmin
//	@Produce		json
//	@Success		200	{object}	rbacsdk.ListUsersResponse
//	@Failure		403	{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/superadmin/users [get].
func (h *SuperAdminHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.SuperAdminService.ListSuperAdmins(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rbacsdk.ListUsersResponse{
		Users: toUserResponses(users),
		Total: len(users),
		Limit: len(users),
	})
}

// HandleGet returns one SuperAdmin holder
//
//	@Summary		Get SuperAdmin
//	@Tags			SuperAdmin
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	rbacsdk.UserResponse
//	@Failure		403	{object}	rbacsdk.ErrorResponse
//	@Failure		404	{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/superadmin/users/{id} [get].
func (h *SuperAdminHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.SuperAdminService.GetSuperAdmin(r.Context(), actorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// HandleDeleteUser removes a SuperAdmin holder
//
//	@Summary		Delete SuperAdmin user
//	@Description	Deleting the last SuperAdmin is allowed; POST /v1/superadmin/init recreates one.
//	@Tags			SuperAdmin
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	rbacsdk.SuperAdminDeletionResponse
//	@Failure		400	{object}	rbacsdk.ErrorResponse	"User is not a SuperAdmin"
//	@Failure		403	{object}	rbacsdk.ErrorResponse
//	@Failure		404	{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/superadmin/users/{id} [delete].
func (h *SuperAdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	res, err := h.SuperAdminService.DeleteSuperAdminUser(r.Context(), actorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := rbacsdk.SuperAdminDeletionResponse{
		Message:           fmt.Sprintf("SuperAdmin user %s (%s) deleted", res.UserID, res.Email),
		DeletedUserID:     res.UserID,
		DeletedUserEmail:  res.Email,
		WasSelfDeletion:   res.WasSelfDeletion,
		WasLastSuperAdmin: res.WasLastSuperAdmin,
	}
	if res.WasSelfDeletion {
		out.Message += ". You have been logged out."
	}
	if res.WasLastSuperAdmin {
		out.Note = "No SuperAdmin remains. Create one with POST /v1/superadmin/init"
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleDeleteRole removes the empty SuperAdmin role
//
//	@Summary		Delete SuperAdmin role
//	@Description	Only succeeds once no user holds the role.
//	@Tags			SuperAdmin
//	@Produce		json
//	@Success		200	{object}	rbacsdk.MessageResponse
//	@Failure		400	{object}	rbacsdk.ErrorResponse	"Role still has members"
//	@Failure		404	{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/superadmin/role [delete].
func (h *SuperAdminHandler) HandleDeleteRole(w http.ResponseWriter, r *http.Request) {
	if err := h.SuperAdminService.DeleteSuperAdminRole(r.Context(), actorFrom(r.Context())); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rbacsdk.MessageResponse{Message: "SuperAdmin role deleted"})
}
