package api

import (
    "net/http"
    "strings"

    "vrpsolver/internal/auth"
)

type Principal struct {
    Tenant string
    Role   string // admin, planner, viewer
}

const defaultTenant = "t_demo"

// getPrincipal extracts tenant and role from the bearer token or headers.
// - If Authorization: Bearer is present, uses the configured verifier (dev/hmac/jwks).
// - Else, in dev mode only, falls back to X-Tenant-Id / X-Role.
// A zero Principal means the caller is not authenticated.
func (s *Server) getPrincipal(r *http.Request) Principal {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        if pr, err := s.Auth.Verify(tok); err == nil {
            return Principal{Tenant: pr.Tenant, Role: pr.Role}
        }
        return Principal{}
    }
    if s.Auth != nil && s.Auth.Mode != "dev" {
        return Principal{}
    }
    tenant := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
    if tenant == "" { tenant = defaultTenant }
    role := r.Header.Get("X-Role")
    if role == "" { role = auth.RoleAdmin }
    return Principal{Tenant: tenant, Role: auth.NormalizeRole(role)}
}

func (p Principal) IsAdmin() bool { return p.Role == auth.RoleAdmin }

// CanSolve reports whether the principal may create problems and run solves.
func (p Principal) CanSolve() bool { return p.Role == auth.RoleAdmin || p.Role == auth.RolePlanner }

// authorize writes 401/403 and returns false unless the principal passes allow.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, allow func(Principal) bool, need string) (Principal, bool) {
    p := s.getPrincipal(r)
    if p.Tenant == "" {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid bearer token required", r.URL.Path)
        return p, false
    }
    if allow != nil && !allow(p) {
        writeProblem(w, http.StatusForbidden, "Forbidden", need+" required", r.URL.Path)
        return p, false
    }
    return p, true
}

func anyRole(Principal) bool { return true }
