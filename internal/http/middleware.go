package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/victor-jaber/cara-pt-ecom-sub000/internal/domain"
)

type contextKey string

const userContextKey contextKey = "user"

// AuthMiddleware validates the bearer token and puts the authenticated user
// in the request context. Routes that require auth check for the user
// themselves, so unauthenticated requests still reach public endpoints.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			token, err := jwt.ParseWithClaims(
				strings.TrimPrefix(header, "Bearer "),
				&jwt.MapClaims{},
				func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return secret, nil
				},
			)
			if err != nil || !token.Valid {
				respondError(w, http.StatusUnauthorized, "invalid_token", "invalid or expired token")
				return
			}

			claims := *token.Claims.(*jwt.MapClaims)
			user := &domain.User{}
			if sub, ok := claims["sub"].(string); ok {
				user.ID = sub
			}
			if email, ok := claims["email"].(string); ok {
				user.Email = email
			}
			if name, ok := claims["name"].(string); ok {
				user.Name = name
			}
			if address, ok := claims["clinic_address"].(string); ok {
				user.ClinicAddress = address
			}
			if admin, ok := claims["admin"].(bool); ok {
				user.Admin = admin
			}
			if user.ID == "" {
				respondError(w, http.StatusUnauthorized, "invalid_token", "token has no subject")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userFromContext(ctx context.Context) *domain.User {
	if user, ok := ctx.Value(userContextKey).(*domain.User); ok {
		return user
	}
	return nil
}
