package middlewares

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/actorctx"
	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/auth"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/repo"
)

// TokenCookie carries the access token for browser sessions.
const TokenCookie = "jwt"

// Keep these small so tests can fake them easily.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.Claims, error)
}

type SubjectLoader interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

// Gate authenticates requests and authorizes them by role.
type Gate struct {
	tokens TokenVerifier
	users  SubjectLoader
}

func NewGate(tokens TokenVerifier, users SubjectLoader) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Protect rejects the request unless it carries a valid token whose subject
// still exists and has not changed password since the token was issued.
func (g *Gate) Protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			raw = cookieToken(c)
		}
		if raw == "" {
			abortWith(c, apperr.New(apperr.NoCredentials, "You are not logged in! Please log in to get access"))
			return
		}

		u, err := g.authenticate(c.Request.Context(), raw)
		if err != nil {
			abortWith(c, err)
			return
		}

		setUser(c, u)
		c.Next()
	}
}

// SoftAuth attaches the subject of a valid session cookie and never fails.
// Pages use it to render differently for signed in visitors.
func (g *Gate) SoftAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := cookieToken(c); raw != "" {
			if u, err := g.authenticate(c.Request.Context(), raw); err == nil {
				setUser(c, u)
			}
		}
		c.Next()
	}
}

// RestrictTo must run after Protect.
func RestrictTo(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := UserFromContext(c)
		if !ok {
			abortWith(c, apperr.New(apperr.NoCredentials, "You are not logged in! Please log in to get access"))
			return
		}
		if !u.HasRole(roles...) {
			abortWith(c, apperr.New(apperr.Forbidden, "You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}

func (g *Gate) authenticate(ctx context.Context, raw string) (user.User, error) {
	claims, err := g.tokens.Verify(ctx, raw)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return user.User{}, err
		}
		return user.User{}, apperr.Wrap(apperr.InvalidToken, "Invalid token. Please log in again!", err)
	}

	u, err := g.users.GetByID(ctx, claims.SubjectID)
	if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrInvalidID) {
		return user.User{}, apperr.New(apperr.SubjectGone, "The user belonging to this token does no longer exist")
	}
	if err != nil {
		return user.User{}, err
	}

	if u.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return user.User{}, apperr.New(apperr.StalePassword, "User recently changed password! Please log in again.")
	}
	return u, nil
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

func cookieToken(c *gin.Context) string {
	v, err := c.Cookie(TokenCookie)
	if err != nil {
		return ""
	}
	return v
}

func setUser(c *gin.Context, u user.User) {
	c.Set(ctxUserKey, u)
	c.Request = c.Request.WithContext(actorctx.WithUser(c.Request.Context(), u))
}

// UserFromContext returns the subject attached by Protect or SoftAuth.
func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	u, ok := UserFromContext(c)
	if !ok {
		return "", false
	}
	return u.ID.Hex(), true
}

// abortWith hands err to ErrorHandler and stops the chain.
func abortWith(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
