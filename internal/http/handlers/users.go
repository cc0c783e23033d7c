package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/account"
	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/query"
)

type UsersHandler struct {
	accounts AccountService
}

func NewUsersHandler(accounts AccountService) *UsersHandler {
	return &UsersHandler{accounts: accounts}
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	u, err := h.accounts.Me(ctx.Request.Context(), actor)
	if err != nil {
		Fail(ctx, err)
		return
	}
	RespondDoc(ctx, http.StatusOK, u)
}

func (h *UsersHandler) UpdateMe(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req account.ProfileInput
	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.accounts.UpdateMe(ctx.Request.Context(), actor, req)
	if err != nil {
		Fail(ctx, err)
		return
	}
	RespondData(ctx, http.StatusOK, gin.H{"user": u})
}

func (h *UsersHandler) DeleteMe(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	if err := h.accounts.DeleteMe(ctx.Request.Context(), actor); err != nil {
		Fail(ctx, err)
		return
	}
	RespondNoContent(ctx)
}

func (h *UsersHandler) List(ctx *gin.Context) {
	spec := query.Translate(ctx.Request.URL.Query(), account.UserSchema)

	users, err := h.accounts.ListUsers(ctx.Request.Context(), spec)
	if err != nil {
		Fail(ctx, err)
		return
	}
	items, err := query.Project(users, spec.Fields)
	if err != nil {
		Fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, listPayload(items, len(users)))
}

func (h *UsersHandler) Get(ctx *gin.Context) {
	u, err := h.accounts.GetUser(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		Fail(ctx, err)
		return
	}
	RespondDoc(ctx, http.StatusOK, u)
}

// Create exists so the route answers; accounts are only made through signup.
func (h *UsersHandler) Create(ctx *gin.Context) {
	Fail(ctx, apperr.New(apperr.NotImplemented, "This route is not defined! Please use /signup instead"))
}

func (h *UsersHandler) Update(ctx *gin.Context) {
	var req account.AdminUpdate
	if !BindJSON(ctx, &req) {
		return
	}
	u, err := h.accounts.UpdateUser(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		Fail(ctx, err)
		return
	}
	RespondDoc(ctx, http.StatusOK, u)
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	if err := h.accounts.DeleteUser(ctx.Request.Context(), ctx.Param("id")); err != nil {
		Fail(ctx, err)
		return
	}
	RespondNoContent(ctx)
}
