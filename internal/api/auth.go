package api

import (
	"net/http"
	"strings"

	"ecomap/internal/auth"
)

// getPrincipal extracts the caller identity.
// - If Authorization: Bearer is present, uses the configured verifier.
// - Else falls back to the X-Role header for dev.
func (s *Server) getPrincipal(r *http.Request) auth.Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return pr
		}
	}
	role := strings.ToLower(r.Header.Get("X-Role"))
	if role == "" {
		role = auth.RoleAdmin
	}
	return auth.Principal{Role: role}
}

// canWrite reports whether the principal may mutate depots, waste points, or
// optimization results. Viewers are read-only.
func canWrite(p auth.Principal) bool {
	return p.Role == auth.RoleAdmin || p.Role == auth.RoleOperator
}
