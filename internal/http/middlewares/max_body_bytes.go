package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/apperr"
)

// MaxBodyBytes caps request bodies. A declared length over the cap is
// rejected up front; otherwise reads fail once the cap is crossed.
func MaxBodyBytes(max int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.ContentLength > max {
			abortWith(ctx, apperr.New(apperr.PayloadTooLarge, "Request body too large"))
			return
		}
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, max)

		ctx.Next()
	}
}
