package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	apiCSP = "default-src 'none'; frame-ancestors 'none'"
	// Pages load their own scripts and styles plus the map tiles and fonts.
	pageCSP = "default-src 'self'; base-uri 'self'; frame-ancestors 'none'; object-src 'none'; img-src 'self' data: https:; font-src 'self' https://fonts.gstatic.com; style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; script-src 'self'; connect-src 'self'"
)

func SecurityHeaders(hsts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("X-XSS-Protection", "0")
		c.Header("X-DNS-Prefetch-Control", "off")
		c.Header("Cross-Origin-Opener-Policy", "same-origin")
		if hsts {
			c.Header("Strict-Transport-Security", "max-age=15552000; includeSubDomains")
		}
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Content-Security-Policy", apiCSP)
		} else {
			c.Header("Content-Security-Policy", pageCSP)
		}
		c.Next()
	}
}
