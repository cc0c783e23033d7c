package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/account"
	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/http/middlewares"
	"github.com/tourhub/tourhub/internal/query"
)

type AccountService interface {
	Signup(ctx context.Context, in account.SignupInput, profileURL string) (account.Session, error)
	Login(ctx context.Context, email, password string) (account.Session, error)
	RequestReset(ctx context.Context, email string, resetURL func(raw string) string) error
	ResetPassword(ctx context.Context, raw string, p user.Password) (account.Session, error)
	UpdatePassword(ctx context.Context, actor user.User, current string, p user.Password) (account.Session, error)
	Me(ctx context.Context, actor user.User) (user.User, error)
	UpdateMe(ctx context.Context, actor user.User, in account.ProfileInput) (user.User, error)
	DeleteMe(ctx context.Context, actor user.User) error
	ListUsers(ctx context.Context, spec query.Spec) ([]user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	UpdateUser(ctx context.Context, id string, in account.AdminUpdate) (user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// CookieConfig controls the session cookie set on token responses.
type CookieConfig struct {
	TTL    time.Duration
	Secure bool
}

type AuthHandler struct {
	accounts AccountService
	cookie   CookieConfig
}

func NewAuthHandler(accounts AccountService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{accounts: accounts, cookie: cookie}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req account.SignupInput
	if !BindJSON(ctx, &req) {
		return
	}

	sess, err := h.accounts.Signup(ctx.Request.Context(), req, baseURL(ctx)+"/me")
	if err != nil {
		Fail(ctx, err)
		return
	}
	h.sendSession(ctx, http.StatusCreated, sess)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	sess, err := h.accounts.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		Fail(ctx, err)
		return
	}
	h.sendSession(ctx, http.StatusOK, sess)
}

// Logout replaces the session cookie with one that expires almost at once.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.setCookie(ctx, "loggedout", 5*time.Second)
	ctx.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	base := baseURL(ctx)
	err := h.accounts.RequestReset(ctx.Request.Context(), req.Email, func(raw string) string {
		return base + "/api/v1/users/resetPassword/" + raw
	})
	if err != nil {
		Fail(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Token sent to email!",
	})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req user.Password
	if !BindJSON(ctx, &req) {
		return
	}

	sess, err := h.accounts.ResetPassword(ctx.Request.Context(), ctx.Param("token"), req)
	if err != nil {
		Fail(ctx, err)
		return
	}
	h.sendSession(ctx, http.StatusOK, sess)
}

func (h *AuthHandler) UpdatePassword(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req UpdatePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	sess, err := h.accounts.UpdatePassword(ctx.Request.Context(), actor, req.PasswordCurrent, user.Password{
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		Fail(ctx, err)
		return
	}
	h.sendSession(ctx, http.StatusOK, sess)
}

func (h *AuthHandler) sendSession(ctx *gin.Context, status int, sess account.Session) {
	h.setCookie(ctx, sess.Token, h.cookie.TTL)
	ctx.JSON(status, gin.H{
		"status": "success",
		"token":  sess.Token,
		"data":   gin.H{"user": sess.User},
	})
}

func (h *AuthHandler) setCookie(ctx *gin.Context, value string, ttl time.Duration) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(
		middlewares.TokenCookie,
		value,
		int(ttl.Seconds()),
		"/",
		"",
		h.cookie.Secure,
		true, // HttpOnly.
	)
}

// actorFrom returns the authenticated user or fails the request.
func actorFrom(ctx *gin.Context) (user.User, bool) {
	u, ok := middlewares.UserFromContext(ctx)
	if !ok {
		Fail(ctx, apperr.New(apperr.NoCredentials, "You are not logged in! Please log in to get access"))
		return user.User{}, false
	}
	return u, true
}

// baseURL is the scheme and host the client used to reach us.
func baseURL(ctx *gin.Context) string {
	scheme := "http"
	if ctx.Request.TLS != nil {
		scheme = "https"
	}
	if p := ctx.GetHeader("X-Forwarded-Proto"); p == "https" || p == "http" {
		scheme = p
	}
	return scheme + "://" + ctx.Request.Host
}
