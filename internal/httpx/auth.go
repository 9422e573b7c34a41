package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const (
	ctxCustomerRef ctxKey = iota
	ctxAdmin
)

// Auth verifies tokens issued by the external identity collaborator. The
// core only reads the opaque subject (customer ref) and the role flag; it
// never manages credentials itself.
type Auth struct {
	Secret []byte
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" || raw == r.Header.Get("Authorization") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			return a.Secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !tok.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid claims")
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			writeError(w, http.StatusUnauthorized, "missing subject")
			return
		}
		role, _ := claims["role"].(string)

		ctx := context.WithValue(r.Context(), ctxCustomerRef, sub)
		ctx = context.WithValue(ctx, ctxAdmin, role == "admin")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin allows only role=admin tokens through; mount after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CustomerRef(ctx context.Context) string {
	s, _ := ctx.Value(ctxCustomerRef).(string)
	return s
}

func IsAdmin(ctx context.Context) bool {
	b, _ := ctx.Value(ctxAdmin).(bool)
	return b
}
