package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/apperr"
)

// RequireJSON rejects bodies that are not JSON. Requests without a body pass.
func RequireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength == 0 {
				break
			}
			ct := c.GetHeader("Content-Type")
			// allow "application/json; charset=utf-8"
			if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
				abortWith(c, apperr.New(apperr.UnsupportedMedia, "Content-Type must be application/json"))
				return
			}
		}
		c.Next()
	}
}
