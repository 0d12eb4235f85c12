// Package flash carries one-shot notices from the request that produced them
// to the next page that renders them.
package flash

import (
	"errors"
	"net/http"
	"time"

	"task-tracker/internal/models"
)

var ErrStoreUnavailable = errors.New("notice store unavailable")

// Store queues notices for the client behind r and drains them. Add may be
// called once per request; Pop returns queued notices in insertion order and
// forgets them.
type Store interface {
	Add(w http.ResponseWriter, r *http.Request, notices ...models.Notice) error
	Pop(w http.ResponseWriter, r *http.Request) ([]models.Notice, error)
}

type CookieOptions struct {
	TTL    time.Duration
	Secure bool
}

func (o CookieOptions) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(o.TTL / time.Second),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
