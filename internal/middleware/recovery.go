package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
)

// RecoveryWithLog turns a panic into a 500, logging the request that caused it.
// Browsers get the engine's 500.html template, everything else a JSON error.
func RecoveryWithLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered",
					"panic", rec,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				if strings.Contains(c.GetHeader("Accept"), "text/html") {
					c.HTML(http.StatusInternalServerError, "500.html", gin.H{
						"Title":     "Error",
						"Notices":   nil,
						"CSRFToken": "",
					})
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
