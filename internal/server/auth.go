package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/solardesk/solardesk/internal/domain"
	"github.com/solardesk/solardesk/internal/service"
)

type actorKey struct{}

// actorFrom returns the authenticated actor stored by the auth middleware.
func actorFrom(ctx context.Context) (service.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(service.Actor)
	return a, ok
}

// authClaims is the verified token payload. Token issuance belongs to the
// identity service; this middleware only verifies and extracts.
type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// authMiddleware verifies the Bearer token and injects the actor identity
// with its role claim into the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, r, errUnauthenticated("missing bearer token"))
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &authClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		})
		if err != nil {
			s.writeError(w, r, errUnauthenticated("invalid token: "+err.Error()))
			return
		}
		if claims.Subject == "" || !domain.ValidRoles[claims.Role] {
			s.writeError(w, r, errUnauthenticated("token missing subject or valid role claim"))
			return
		}

		actor := service.Actor{ID: claims.Subject, Role: domain.Role(claims.Role)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}
