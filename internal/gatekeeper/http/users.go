package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/service"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/rbacsdk"
)

type UsersHandler struct {
	UserService *service.UserService
}

// HandleList lists visible users
//
//	@Summary		List users
//	@Description	SuperAdmin sees everyone, Admin sees users outside the SuperAdmin and Admin roles, everyone else sees only themselves.
//	@Tags			Users
//	@Produce		json
//	@Param			offset	query		int	false	"Rows to skip"
//	@Param			limit	query		int	false	"Page size (default 100, max 1000)"
//	@Success		200		{object}	rbacsdk.ListUsersResponse
//	@Failure		401		{object}	rbacsdk.ErrorResponse
//	@Failure		422		{object}	rbacsdk.ErrorResponse	"Bad paging parameters"
//	@Security		BearerAuth
//	@Router			/v1/users [get].
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		httpx.WriteInvalidRequest(w, err)
		return
	}

	res, err := h.UserService.ListUsers(r.Context(), actorFrom(r.Context()), page)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	page = page.Normalize()
	httpx.WriteJSON(w, http.StatusOK, rbacsdk.ListUsersResponse{
		Users:  toUserResponses(res.Users),
		Total:  res.Total,
		Offset: page.Offset,
		Limit:  page.Limit,
	})
}

func parsePage(r *http.Request) (service.Page, error) {
	var page service.Page
	fields := map[string]string{}
	q := r.URL.Query()

	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			fields["offset"] = "min=0"
		}
		page.Offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fields["limit"] = "min=1"
		}
		page.Limit = n
	}
	if len(fields) > 0 {
		return page, &httpx.InvalidRequestError{Reason: "invalid paging parameters", Fields: fields}
	}
	return page, nil
}

// HandleGet returns one user
//
//	@Summary		Get user
//	@Tags			Users
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	rbacsdk.UserResponse
//	@Failure		403	{object}	rbacsdk.ErrorResponse
//	@Failure		404	{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/users/{id} [get].
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.UserService.GetUser(r.Context(), actorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// HandleCreate creates a user
//
//	@Summary		Create user
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			request	body		rbacsdk.CreateUserRequest	true	"User"
//	@Success		201		{object}	rbacsdk.UserResponse
//	@Failure		403		{object}	rbacsdk.ErrorResponse
//	@Failure		404		{object}	rbacsdk.ErrorResponse	"Role not found"
//	@Failure		409		{object}	rbacsdk.ErrorResponse	"Email taken"
//	@Failure		422		{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/users [post].
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req rbacsdk.CreateUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteInvalidRequest(w, err)
		return
	}

	u, err := h.UserService.CreateUser(r.Context(), actorFrom(r.Context()), service.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		RoleID:   req.RoleID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toUserResponse(u))
}

// HandleUpdate changes a user
//
//	@Summary		Update user
//	@Description	Users may always change their own name, email and password. Role changes need AssignRole on both roles.
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"User ID"
//	@Param			request	body		rbacsdk.UpdateUserRequest	true	"Changes"
//	@Success		200		{object}	rbacsdk.UserResponse
//	@Failure		403		{object}	rbacsdk.ErrorResponse
//	@Failure		404		{object}	rbacsdk.ErrorResponse
//	@Failure		409		{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/users/{id} [put].
func (h *UsersHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req rbacsdk.UpdateUserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteInvalidRequest(w, err)
		return
	}

	u, err := h.UserService.UpdateUser(r.Context(), actorFrom(r.Context()), r.PathValue("id"), service.UpdateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		RoleID:   req.RoleID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}

// HandleDelete deletes a user
//
//	@Summary		Delete user
//	@Tags			Users
//	@Param			id	path	string	true	"User ID"
//	@Success		204
//	@Failure		403	{object}	rbacsdk.ErrorResponse
//	@Failure		404	{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/users/{id} [delete].
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.UserService.DeleteUser(r.Context(), actorFrom(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAssignRole moves a user to another role
//
//	@Summary		Assign role
//	@Tags			Users
//	@Produce		json
//	@Param			id		path		string	true	"User ID"
//	@Param			role_id	path		string	true	"Role ID"
//	@Success		200		{object}	rbacsdk.UserResponse
//	@Failure		403		{object}	rbacsdk.ErrorResponse
//	@Failure		404		{object}	rbacsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/users/{id}/role/{role_id} [put].
func (h *UsersHandler) HandleAssignRole(w http.ResponseWriter, r *http.Request) {
	u, err := h.UserService.AssignRole(r.Context(), actorFrom(r.Context()), r.PathValue("id"), r.PathValue("role_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toUserResponse(u))
}
