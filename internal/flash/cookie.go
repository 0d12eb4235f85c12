package flash

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"task-tracker/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const NoticeCookieName = "notices"

type noticeClaims struct {
	Notices []models.Notice `json:"notices"`
	jwt.RegisteredClaims
}

// CookieStore keeps notices in the client's cookie jar as a signed token, so
// nothing is held server side.
type CookieStore struct {
	key     []byte
	options CookieOptions
	logger  *slog.Logger
}

func NewCookieStore(key []byte, options CookieOptions) (*CookieStore, error) {
	if len(key) == 0 {
		return nil, errors.New("cookie store requires a signing key")
	}
	if options.TTL <= 0 {
		options.TTL = 5 * time.Minute
	}
	return &CookieStore{key: key, options: options, logger: slog.Default()}, nil
}

func (s *CookieStore) Add(w http.ResponseWriter, r *http.Request, notices ...models.Notice) error {
	if len(notices) == 0 {
		return nil
	}

	queued := append(s.read(r), notices...)

	now := time.Now()
	claims := noticeClaims{
		Notices: queued,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.options.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return fmt.Errorf("failed to sign notices: %w", err)
	}

	http.SetCookie(w, s.options.cookie(NoticeCookieName, signed))
	return nil
}

// Pop never fails: an unreadable or forged cookie is dropped and treated as
// carrying no notices.
func (s *CookieStore) Pop(w http.ResponseWriter, r *http.Request) ([]models.Notice, error) {
	if _, err := r.Cookie(NoticeCookieName); err != nil {
		return nil, nil
	}

	notices := s.read(r)
	http.SetCookie(w, expiredCookie(NoticeCookieName, s.options.Secure))
	return notices, nil
}

func (s *CookieStore) read(r *http.Request) []models.Notice {
	cookie, err := r.Cookie(NoticeCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	claims := &noticeClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.key, nil
	})
	if err != nil || !token.Valid {
		s.logger.Warn("discarding unreadable notice cookie", "error", err)
		return nil
	}

	return claims.Notices
}
