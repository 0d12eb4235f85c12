package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"task-tracker/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var csrfKey = []byte("csrf-test-key-csrf-test-key-1234")

func setupCSRFRouter(key []byte) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(middleware.CSRF(middleware.CSRFOptions{Key: key}))
	router.GET("/form", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.CSRFToken(c))
	})
	router.POST("/submit", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func fetchToken(t *testing.T, router *gin.Engine) (string, *http.Cookie) {
	t.Helper()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/form", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CSRFCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "expected csrf cookie")
	require.NotEmpty(t, w.Body.String())
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	return w.Body.String(), cookie
}

func postForm(router *gin.Engine, values url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCSRF_AcceptsMatchingToken(t *testing.T) {
	router := setupCSRFRouter(csrfKey)
	token, cookie := fetchToken(t, router)

	w := postForm(router, url.Values{middleware.CSRFFieldName: {token}}, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCSRF_AcceptsHeaderToken(t *testing.T) {
	router := setupCSRFRouter(csrfKey)
	token, cookie := fetchToken(t, router)

	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.Header.Set(middleware.CSRFHeaderName, token)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCSRF_Rejects(t *testing.T) {
	router := setupCSRFRouter(csrfKey)
	token, cookie := fetchToken(t, router)
	foreignToken, foreign := fetchToken(t, setupCSRFRouter([]byte("some-other-key-some-other-key-12")))

	tests := []struct {
		name   string
		values url.Values
		cookie *http.Cookie
	}{
		{"missing field", url.Values{}, cookie},
		{"missing cookie", url.Values{middleware.CSRFFieldName: {token}}, nil},
		{"mismatched field", url.Values{middleware.CSRFFieldName: {token + "x"}}, cookie},
		{"cookie signed with another key", url.Values{middleware.CSRFFieldName: {foreignToken}}, foreign},
		{"unsigned cookie", url.Values{middleware.CSRFFieldName: {"abc"}}, &http.Cookie{Name: middleware.CSRFCookieName, Value: "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postForm(router, tt.values, tt.cookie)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "CSRF verification failed. Request aborted.", w.Body.String())
		})
	}
}

func TestCSRF_ReusesValidCookie(t *testing.T) {
	router := setupCSRFRouter(csrfKey)
	_, cookie := fetchToken(t, router)

	req := httptest.NewRequest(http.MethodGet, "/form", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Result().Cookies(), "a valid cookie should not be reissued")

	// Each page gets a freshly masked token for the same cookie.
	w = postForm(router, url.Values{middleware.CSRFFieldName: {w.Body.String()}}, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCSRF_SecureRequiresReferer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.CSRF(middleware.CSRFOptions{Key: csrfKey, Secure: true}))
	router.GET("/form", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.CSRFToken(c))
	})
	router.POST("/submit", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	token, cookie := fetchToken(t, router)
	assert.True(t, cookie.Secure)

	w := postForm(router, url.Values{middleware.CSRFFieldName: {token}}, cookie)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(url.Values{middleware.CSRFFieldName: {token}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "https://example.com/form")
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
