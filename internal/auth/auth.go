package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/iurnickita/sellerdesk/internal/auth/config"
	"github.com/iurnickita/sellerdesk/internal/token"
)

type Auth interface {
	// Enabled reports whether requests must carry a valid token.
	Enabled() bool
	Middleware(h http.Handler) http.Handler
}

const (
	cookieUserToken = "sellerdeskToken"
	// LocalOperator is used for every request when authentication is off.
	LocalOperator = "local"
)

var ErrNoToken = errors.New("no token")

type ctxKey struct{}

type auth struct {
	secret string
	zaplog *zap.Logger
}

func NewAuth(cfg config.Config, zaplog *zap.Logger) Auth {
	if zaplog == nil {
		zaplog = zap.NewNop()
	}
	return &auth{secret: cfg.JWTSecret, zaplog: zaplog}
}

func (a *auth) Enabled() bool {
	return a.secret != ""
}

func (a *auth) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCode := LocalOperator
		if a.Enabled() {
			// получение кода оператора
			var err error
			userCode, err = a.getUserCode(r)
			if err != nil {
				a.zaplog.Debug("unauthorized request",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
		}

		// передаём управление хендлеру
		h.ServeHTTP(w, r.WithContext(WithUserCode(r.Context(), userCode)))
	})
}

func (a *auth) getUserCode(r *http.Request) (string, error) {
	var raw string
	if tokenCookie, err := r.Cookie(cookieUserToken); err == nil {
		raw = tokenCookie.Value
	} else if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		raw = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	if raw == "" {
		return "", ErrNoToken
	}
	return token.GetUserCode(raw, a.secret)
}

func WithUserCode(ctx context.Context, userCode string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userCode)
}

// UserCode returns the operator set by the middleware.
func UserCode(ctx context.Context) string {
	if code, ok := ctx.Value(ctxKey{}).(string); ok {
		return code
	}
	return LocalOperator
}
