package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

const (
	CSRFCookieName = "csrftoken"
	CSRFFieldName  = "csrf_token"
	CSRFHeaderName = "X-CSRF-Token"
)

type CSRFOptions struct {
	// Key authenticates the token cookie and must be 32 bytes.
	Key    []byte
	Secure bool
	MaxAge time.Duration
}

// CSRF wraps gorilla/csrf for gin. Unsafe requests must echo the masked
// token in the csrf_token field or the X-CSRF-Token header.
func CSRF(opts CSRFOptions) gin.HandlerFunc {
	if opts.MaxAge <= 0 {
		opts.MaxAge = 365 * 24 * time.Hour
	}

	protect := csrf.Protect(opts.Key,
		csrf.CookieName(CSRFCookieName),
		csrf.FieldName(CSRFFieldName),
		csrf.RequestHeader(CSRFHeaderName),
		csrf.Path("/"),
		csrf.MaxAge(int(opts.MaxAge/time.Second)),
		csrf.Secure(opts.Secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
	)

	return func(c *gin.Context) {
		if !opts.Secure {
			c.Request = csrf.PlaintextHTTPRequest(c.Request)
		}

		passed := false
		protect(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
		}
	}
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	slog.Warn("csrf verification failed",
		"method", r.Method,
		"path", r.URL.Path,
		"reason", csrf.FailureReason(r),
	)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte("CSRF verification failed. Request aborted."))
}

// CSRFToken returns the masked token forms on this request must submit.
func CSRFToken(c *gin.Context) string {
	return csrf.Token(c.Request)
}
