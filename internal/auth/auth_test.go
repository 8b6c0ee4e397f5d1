package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/sellerdesk/internal/auth/config"
	"github.com/iurnickita/sellerdesk/internal/token"
)

func echoOperator() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, UserCode(r.Context()))
	})
}

func TestMiddlewareDisabled(t *testing.T) {
	a := NewAuth(config.Config{}, nil)
	require.False(t, a.Enabled())

	rec := httptest.NewRecorder()
	a.Middleware(echoOperator()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, LocalOperator, rec.Body.String())
}

func TestMiddlewareTokenSources(t *testing.T) {
	a := NewAuth(config.Config{JWTSecret: "secret"}, nil)
	require.True(t, a.Enabled())
	tok, err := token.BuildJWTString("op-1", "secret", time.Hour)
	require.NoError(t, err)
	h := a.Middleware(echoOperator())

	// cookie
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: cookieUserToken, Value: tok})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "op-1", rec.Body.String())

	// bearer
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "op-1", rec.Body.String())

	// без токена
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// чужая подпись
	bad, _ := token.BuildJWTString("op-1", "other", time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+bad)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
