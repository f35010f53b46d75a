package httpapi

import (
	"context"
	"net/http"
	"strings"

	"paradise.network/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

var publicPrefixes = []string{
	"/v1/registrations/",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// withAuth verifies bearer tokens on everything except the public surface
// and places the identity into the request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := auth.ContextWithAccount(r.Context(), claims.Subject, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errMissingToken
	}
	if !strings.HasPrefix(header, bearer) {
		return "", errMissingToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearer))
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}

var errMissingToken = &authError{"missing or malformed bearer token"}

type authError struct{ msg string }

func (e *authError) Error() string { return e.msg }

// requireAdmin gates administrative endpoints on the admin role.
func (a *API) requireAdmin(ctx context.Context, w http.ResponseWriter, r *http.Request) bool {
	if auth.HasRole(ctx, auth.RoleAdmin) {
		return true
	}
	writeError(w, r, http.StatusForbidden, "admin role required")
	return false
}
