package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RespondJSONWithETag tags the body with a content hash and answers 304 when
// the client already holds it.
func RespondJSONWithETag(ctx *gin.Context, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		Fail(ctx, err)
		return
	}

	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:16]) + `"`
	ctx.Header("ETag", etag)

	if status == http.StatusOK && etagMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}
	ctx.Data(status, "application/json; charset=utf-8", body)
}

func etagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		// weak comparison, W/"x" matches "x"
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}
