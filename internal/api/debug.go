package api

import (
    "net/http"
    "time"

    "vrpsolver/internal/buildinfo"
)

// DebugJSON reports build info and the effective config. Secrets and
// connection strings are reported only as present or absent.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    if _, ok := s.authorize(w, r, Principal.IsAdmin, "admin"); !ok { return }
    c := s.Config
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "port":               c.Port,
            "store":              c.StoreKind(),
            "dbMigrate":          c.DBMigrate,
            "migrationsDir":      c.MigrationsDir,
            "hasRedisURL":        c.RedisURL != "",
            "allowOrigins":       c.AllowOrigins,
            "authMode":           c.Auth.Mode,
            "hasHMACSecret":      c.Auth.HMACSecret != "",
            "jwksURL":            c.Auth.JWKSURL,
            "rateRPS":            c.Rate.RPS,
            "rateBurst":          c.Rate.Burst,
            "webhookMaxAttempts": c.Webhooks.MaxAttempts,
            "webhookPoll":        c.Webhooks.PollInterval.String(),
            "maxExactJobs":       c.Solver.MaxExactJobs,
            "defaultAlgorithm":   c.Solver.DefaultAlgorithm,
            "objective":          c.Solver.Objective,
            "logLevel":           c.Log.Level,
        },
    }
    writeJSON(w, http.StatusOK, info)
}
