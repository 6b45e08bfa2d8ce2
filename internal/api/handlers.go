package api

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/url"
    "strings"
    "time"

    "vrpsolver/internal/buildinfo"
    "vrpsolver/internal/model"
    "vrpsolver/internal/opt"
    "vrpsolver/internal/webhooks"
)

// sseHeartbeat is the idle interval between SSE keep-alive comments.
var sseHeartbeat = 15 * time.Second

// RootHandler handles GET / with the service banner.
func (s *Server) RootHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    writeJSON(w, http.StatusOK, map[string]string{
        "message": "VRP Solver API is running!",
        "version": buildinfo.Version,
        "docs":    "/docs",
    })
}

// OptimizeHandler handles POST /optimize and POST /v1/optimize. The legacy
// path solves exactly unless the request names an algorithm.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p, ok := s.authorize(w, r, Principal.CanSolve, "planner or admin")
    if !ok { return }
    var req model.OptimizeRequest
    if !decodeJSON(w, r, &req) { return }
    if err := req.Validate(); err != nil {
        writeError(w, r, "Invalid optimize request", err)
        return
    }
    var fallback opt.Algorithm
    if r.URL.Path == "/optimize" { fallback = opt.AlgorithmExact }
    o, err := s.solveOptions(r.Context(), p.Tenant, req.Algorithm, req.Objective, fallback)
    if err != nil { writeError(w, r, "Resolve solver options failed", err); return }
    resp, err := s.solve(r.Context(), p.Tenant, "", req, o)
    if err != nil { writeError(w, r, "Solve failed", err); return }
    writeJSON(w, http.StatusOK, resp)
}

// ProblemsHandler handles POST/GET /v1/problems
func (s *Server) ProblemsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/problems" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    switch r.Method {
    case http.MethodPost:
        p, ok := s.authorize(w, r, Principal.CanSolve, "planner or admin")
        if !ok { return }
        var req model.OptimizeRequest
        if !decodeJSON(w, r, &req) { return }
        if err := req.Validate(); err != nil {
            writeError(w, r, "Invalid problem", err)
            return
        }
        prob, err := s.Store.CreateProblem(r.Context(), p.Tenant, req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create problem failed", err.Error(), r.URL.Path)
            return
        }
        s.Pub.Emit(r.Context(), p.Tenant, webhooks.EventProblemCreated, prob.Summary())
        w.Header().Set("Location", "/v1/problems/"+prob.ID)
        writeJSON(w, http.StatusCreated, prob)
    case http.MethodGet:
        p, ok := s.authorize(w, r, anyRole, "")
        if !ok { return }
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListProblems(r.Context(), p.Tenant, cursor, limit)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List problems failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// ProblemByIDHandler handles /v1/problems/{id} and its solve, runs and
// events/stream sub-resources.
func (s *Server) ProblemByIDHandler(w http.ResponseWriter, r *http.Request) {
    rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/problems/"), "/")
    parts := strings.Split(rest, "/")
    if rest == "" || parts[0] == "" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    id := parts[0]
    switch {
    case len(parts) == 1:
        s.problemResource(w, r, id)
    case len(parts) == 2 && parts[1] == "solve":
        s.solveProblem(w, r, id)
    case len(parts) == 2 && parts[1] == "runs":
        s.listRuns(w, r, id)
    case len(parts) == 3 && parts[1] == "events" && parts[2] == "stream":
        s.streamProblemEvents(w, r, id)
    default:
        writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
    }
}

func (s *Server) problemResource(w http.ResponseWriter, r *http.Request, id string) {
    switch r.Method {
    case http.MethodGet:
        p, ok := s.authorize(w, r, anyRole, "")
        if !ok { return }
        prob, err := s.Store.GetProblem(r.Context(), p.Tenant, id)
        if err != nil { writeError(w, r, "Get problem failed", err); return }
        writeJSON(w, http.StatusOK, prob)
    case http.MethodDelete:
        p, ok := s.authorize(w, r, Principal.CanSolve, "planner or admin")
        if !ok { return }
        if err := s.Store.DeleteProblem(r.Context(), p.Tenant, id); err != nil { writeError(w, r, "Delete problem failed", err); return }
        w.WriteHeader(http.StatusNoContent)
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// solveProblem handles POST /v1/problems/{id}/solve?algorithm=&objective=
func (s *Server) solveProblem(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, ok := s.authorize(w, r, Principal.CanSolve, "planner or admin")
    if !ok { return }
    prob, err := s.Store.GetProblem(r.Context(), p.Tenant, id)
    if err != nil { writeError(w, r, "Get problem failed", err); return }
    q := r.URL.Query()
    algorithm := firstNonEmpty(q.Get("algorithm"), prob.Request.Algorithm)
    objective := firstNonEmpty(q.Get("objective"), prob.Request.Objective)
    if objective != "" && objective != "duration" && objective != "travel" {
        writeProblem(w, http.StatusBadRequest, "Invalid objective", "want duration or travel", r.URL.Path)
        return
    }
    o, err := s.solveOptions(r.Context(), p.Tenant, algorithm, objective, "")
    if err != nil { writeError(w, r, "Resolve solver options failed", err); return }
    resp, err := s.solve(r.Context(), p.Tenant, prob.ID, prob.Request, o)
    if err != nil { writeError(w, r, "Solve failed", err); return }
    writeJSON(w, http.StatusOK, resp)
}

// listRuns handles GET /v1/problems/{id}/runs
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, ok := s.authorize(w, r, anyRole, "")
    if !ok { return }
    limit, err := queryInt(r, "limit", 100)
    if err != nil { writeProblem(w, http.StatusBadRequest, "Invalid limit", err.Error(), r.URL.Path); return }
    runs, err := s.Store.ListSolveRuns(r.Context(), p.Tenant, id, limit)
    if err != nil { writeError(w, r, "List runs failed", err); return }
    writeJSON(w, http.StatusOK, map[string]any{"items": runs})
}

// streamProblemEvents handles GET /v1/problems/{id}/events/stream as SSE.
func (s *Server) streamProblemEvents(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    p, ok := s.authorize(w, r, anyRole, "")
    if !ok { return }
    if _, err := s.Store.GetProblem(r.Context(), p.Tenant, id); err != nil { writeError(w, r, "Get problem failed", err); return }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path); return }

    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)

    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    w.WriteHeader(http.StatusOK)
    fmt.Fprint(w, ": connected\n\n")
    flusher.Flush()

    hb := time.NewTicker(sseHeartbeat)
    defer hb.Stop()
    for {
        select {
        case <-r.Context().Done():
            return
        case <-hb.C:
            fmt.Fprint(w, ": ping\n\n")
            flusher.Flush()
        case evt, ok := <-ch:
            if !ok { return }
            data, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
            flusher.Flush()
        }
    }
}

// OptimizerConfigHandler returns the effective solver settings for the caller's tenant.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/optimizer/config" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p, ok := s.authorize(w, r, anyRole, "")
    if !ok { return }
    eff := model.OptimizerConfig{
        MaxExactJobs:     s.Config.Solver.MaxExactJobs,
        DefaultAlgorithm: s.Config.Solver.DefaultAlgorithm,
        Objective:        s.Config.Solver.Objective,
    }
    // overlay tenant config if present
    cfg, err := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
    if err != nil { writeProblem(w, 500, "Get optimizer config failed", err.Error(), r.URL.Path); return }
    if cfg != nil {
        if cfg.MaxExactJobs > 0 { eff.MaxExactJobs = cfg.MaxExactJobs }
        if cfg.DefaultAlgorithm != "" { eff.DefaultAlgorithm = cfg.DefaultAlgorithm }
        if cfg.Objective != "" { eff.Objective = cfg.Objective }
    }
    writeJSON(w, 200, map[string]any{"defaults": eff})
}

// AdminOptimizerConfigHandler gets or sets the tenant's optimizer config.
func (s *Server) AdminOptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/optimizer/config" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    switch r.Method {
    case http.MethodGet:
        cfg, err := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
        if err != nil { writeProblem(w, 500, "Get optimizer config failed", err.Error(), r.URL.Path); return }
        if cfg == nil { cfg = &model.OptimizerConfig{} }
        writeJSON(w, 200, map[string]any{"config": cfg})
    case http.MethodPut:
        var body struct{ Config *model.OptimizerConfig `json:"config"` }
        if !decodeJSON(w, r, &body) { return }
        if body.Config == nil { writeProblem(w, 400, "Missing config", "", r.URL.Path); return }
        if err := validateOptimizerConfig(*body.Config); err != nil { writeProblem(w, 400, "Invalid config", err.Error(), r.URL.Path); return }
        if err := s.Store.SaveOptimizerConfig(r.Context(), p.Tenant, *body.Config); err != nil { writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]bool{"ok": true})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

func validateOptimizerConfig(c model.OptimizerConfig) error {
    if c.MaxExactJobs < 0 { return fmt.Errorf("maxExactJobs must be >= 0") }
    if _, err := opt.ParseAlgorithm(c.DefaultAlgorithm); err != nil { return err }
    switch c.Objective {
    case "", "duration", "travel":
    default:
        return fmt.Errorf("unknown objective %q (want duration or travel)", c.Objective)
    }
    return nil
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions (admin)
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/subscriptions" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    switch r.Method {
    case http.MethodPost:
        p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
        if !ok { return }
        var req model.SubscriptionRequest
        if !decodeJSON(w, r, &req) { return }
        req.TenantID = p.Tenant
        if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
            writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url must be an absolute http(s) URL", r.URL.Path)
            return
        }
        if len(req.Events) == 0 { writeProblem(w, http.StatusBadRequest, "Invalid subscription", "at least one event is required", r.URL.Path); return }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
        if !ok { return }
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Subscription delete (admin)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeError(w, r, "Delete subscription failed", err); return }
    w.WriteHeader(204)
}

// Admin: webhook deliveries list and retry
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil { writeError(w, r, "Retry delivery failed", err); return }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Admin: webhook DLQ list
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-dlq" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDLQ(r.Context(), p.Tenant, cursor, limit)
    if err != nil { writeProblem(w, 500, "List DLQ failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// SolveMetricsHandler reports the latest solve statistics of a problem per
// algorithm. Persisted runs are preferred; the in-process record is the
// fallback.
func (s *Server) SolveMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/solve-metrics" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p, ok := s.authorize(w, r, Principal.IsAdmin, "admin")
    if !ok { return }
    problemID := r.URL.Query().Get("problemId")
    if problemID == "" { writeProblem(w, 400, "Missing problemId", "", r.URL.Path); return }
    algo := r.URL.Query().Get("algorithm")

    items := []map[string]any{}
    runs, err := s.Store.ListSolveRuns(r.Context(), p.Tenant, problemID, 500)
    if err != nil { writeError(w, r, "Metrics failed", err); return }
    seen := map[string]bool{}
    // runs are newest first
    for _, run := range runs {
        if seen[run.Algorithm] || (algo != "" && run.Algorithm != algo) { continue }
        seen[run.Algorithm] = true
        items = append(items, map[string]any{
            "algorithm":           run.Algorithm,
            "objective":           run.Objective,
            "runId":               run.ID,
            "totalDuration":       run.TotalDuration,
            "feasible":            run.Feasible,
            "assignments":         run.Assignments,
            "feasibleAssignments": run.FeasibleAssignments,
            "permutations":        run.Permutations,
            "elapsedMs":           run.ElapsedMs,
            "source":              "store",
        })
    }
    if len(items) == 0 {
        for a, st := range opt.LastStats(p.Tenant, problemID) {
            if algo != "" && string(a) != algo { continue }
            items = append(items, map[string]any{
                "algorithm":           string(a),
                "objective":           st.Objective.String(),
                "feasible":            st.Feasible,
                "assignments":         st.Assignments,
                "feasibleAssignments": st.FeasibleAssignments,
                "permutations":        st.Permutations,
                "elapsedMs":           float64(st.Elapsed.Microseconds()) / 1000,
                "source":              "memory",
            })
        }
    }
    writeJSON(w, 200, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using a SQL store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

func firstNonEmpty(vals ...string) string {
    for _, v := range vals {
        if v != "" { return v }
    }
    return ""
}
