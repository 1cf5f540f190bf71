package http

import (
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/rbacsdk"
)

type RolesHandler struct {
	RolesService *service.RolesService
}

// HandleList lists roles
//
//	@Summary		List roles
//	@Description	Lists every role. SuperAdmin only.
//	@Tags			Roles
//	@Produce		json
//	@Success		200	{object}	rbacsdk.ListRolesResponse
//	@Failure		401	{object}	rbacsdk.ErrorResponse
//	@Failure		403	{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/roles [get].
func (h *RolesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.RolesService.ListRoles(r.Context(), actorFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rbacsdk.ListRolesResponse{Roles: toRoleResponses(roles)})
}

// HandleGet returns one role
//
//	@Summary		Get role
//	@Description	SuperAdmin only.
//	@Tags			Roles
//	@Produce		json
//	@Param			id	path		string	true	"Role ID"
//	@Success		200	{object}	rbacsdk.RoleResponse
//	@Failure		403	{object}	rbacsdk.ErrorResponse
//	@Failure		404	{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/roles/{id} [get].
func (h *RolesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	role, err := h.RolesService.GetRole(r.Context(), actorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRoleResponse(role))
}

// HandleCreate creates a role
//
//	@Summary		Create role
//	@Description	Admin may create staff roles; every other role needs SuperAdmin. Nobody creates SuperAdmin here.
//	@Tags			Roles
//	@Accept			json
//	@Produce		json
//	@Param			request	body		rbacsdk.RoleRequest	true	"Role"
//	@Success		201		{object}	rbacsdk.RoleResponse
//	@Failure		403		{object}	rbacsdk.ErrorResponse
//	@Failure		409		{object}	rbacsdk.ErrorResponse	"Name taken"
//	@Failure		422		{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/roles [post].
func (h *RolesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req rbacsdk.RoleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteInvalidRequest(w, err)
		return
	}

	role, err := h.RolesService.CreateRole(r.Context(), actorFrom(r.Context()), service.RoleInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toRoleResponse(role))
}

// HandleUpdate renames a role or replaces its description
//
//	@Summary		Update role
//	@Tags			Roles
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Role ID"
//	@Param			request	body		rbacsdk.RoleRequest	true	"Role"
//	@Success		200		{object}	rbacsdk.RoleResponse
//	@Failure		400		{object}	rbacsdk.ErrorResponse	"SuperAdmin role cannot be renamed"
//	@Failure		403		{object}	rbacsdk.ErrorResponse
//	@Failure		404		{object}	rbacsdk.ErrorResponse
//	@Failure		409		{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/roles/{id} [put].
func (h *RolesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req rbacsdk.RoleRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteInvalidRequest(w, err)
		return
	}

	role, err := h.RolesService.UpdateRole(r.Context(), actorFrom(r.Context()), r.PathValue("id"), service.RoleInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toRoleResponse(role))
}

// HandleDelete deletes an unused role
//
//	@Summary		Delete role
//	@Tags			Roles
//	@Param			id	path	string	true	"Role ID"
//	@Success		204
//	@Failure		400	{object}	rbacsdk.ErrorResponse	"Role still has members, or is SuperAdmin"
//	@Failure		403	{object}	rbacsdk.ErrorResponse
//	@Failure		404	{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/roles/{id} [delete].
func (h *RolesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.RolesService.DeleteRole(r.Context(), actorFrom(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
