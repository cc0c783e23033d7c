package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/apperr"
)

// Fail hands err to the error middleware, which renders the envelope.
func Fail(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	ctx.Abort()
}

func RespondBadRequest(ctx *gin.Context, message string, details any) {
	Fail(ctx, apperr.WithDetails(apperr.BadRequest, message, details))
}

func RespondData(ctx *gin.Context, status int, data gin.H) {
	ctx.JSON(status, gin.H{
		"status": "success",
		"data":   data,
	})
}

// RespondDoc wraps a single document the way every CRUD endpoint does.
func RespondDoc(ctx *gin.Context, status int, doc any) {
	RespondData(ctx, status, gin.H{"data": doc})
}

func listPayload(items any, n int) gin.H {
	return gin.H{
		"status":  "success",
		"results": n,
		"data":    gin.H{"data": items},
	}
}

func RespondNoContent(ctx *gin.Context) {
	ctx.Status(http.StatusNoContent)
}
