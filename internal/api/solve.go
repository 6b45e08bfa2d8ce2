package api

import (
    "context"
    "errors"
    "fmt"

    log "github.com/sirupsen/logrus"

    "vrpsolver/internal/logging"
    "vrpsolver/internal/metrics"
    "vrpsolver/internal/model"
    "vrpsolver/internal/opt"
    "vrpsolver/internal/webhooks"
)

// solveOptions resolves the solver options for one request. Each setting
// comes from the request, then the tenant's optimizer config, then the
// service config. fallback is used when none of them names an algorithm.
func (s *Server) solveOptions(ctx context.Context, tenant, algorithm, objective string, fallback opt.Algorithm) (opt.Options, error) {
    o := opt.Options{
        MaxExactJobs: s.Config.Solver.MaxExactJobs,
        Objective:    opt.ParseObjective(s.Config.Solver.Objective),
    }
    defAlgo := s.Config.Solver.DefaultAlgorithm
    tc, err := s.Store.GetOptimizerConfig(ctx, tenant)
    if err != nil { return o, err }
    if tc != nil {
        if tc.MaxExactJobs > 0 { o.MaxExactJobs = tc.MaxExactJobs }
        if tc.DefaultAlgorithm != "" { defAlgo = tc.DefaultAlgorithm }
        if tc.Objective != "" { o.Objective = opt.ParseObjective(tc.Objective) }
    }
    if objective != "" { o.Objective = opt.ParseObjective(objective) }

    name := algorithm
    if name == "" && fallback != "" { name = string(fallback) }
    if name == "" { name = defAlgo }
    a, err := opt.ParseAlgorithm(name)
    if err != nil {
        return o, fmt.Errorf("%w: %v", model.ErrInvalidProblem, err)
    }
    o.Algorithm = a
    return o, nil
}

// solve runs one solve and records its outcome. A non-empty problemID marks
// a stored problem: its run is persisted and events go to stream subscribers
// and webhooks.
func (s *Server) solve(ctx context.Context, tenant, problemID string, req model.OptimizeRequest, o opt.Options) (model.OptimizeResponse, error) {
    entry := logging.FromContext(ctx).WithFields(log.Fields{"tenant": tenant, "jobs": len(req.Jobs), "vehicles": len(req.Vehicles)})
    if problemID != "" {
        entry = entry.WithField("problem", problemID)
        s.Broker.Publish(problemID, SSEEvent{Type: EventSolveStarted, Data: map[string]any{
            "problemId": problemID,
            "algorithm": string(opt.Choose(o.Algorithm, len(req.Jobs), o.MaxExactJobs)),
        }})
    }

    sol, st, err := opt.Solve(ctx, req.Problem(), o)
    if err != nil {
        algo := opt.Choose(o.Algorithm, len(req.Jobs), o.MaxExactJobs)
        metrics.ObserveSolveError(algo, failureReason(err))
        entry.WithError(err).WithField("algorithm", algo).Warn("solve failed")
        if problemID != "" {
            data := map[string]any{"problemId": problemID, "algorithm": string(algo), "error": err.Error()}
            s.Broker.Publish(problemID, SSEEvent{Type: EventSolveFailed, Data: data})
            s.Pub.Emit(ctx, tenant, webhooks.EventSolveFailed, data)
        }
        return model.OptimizeResponse{}, err
    }
    metrics.ObserveSolve(st)
    resp := model.NewOptimizeResponse(sol, st)
    entry.WithFields(log.Fields{
        "algorithm": st.Algorithm,
        "total":     sol.TotalDuration,
        "feasible":  st.Feasible,
        "elapsed":   st.Elapsed,
    }).Info("solve completed")
    if problemID == "" {
        return resp, nil
    }

    opt.RecordStats(tenant, problemID, st)
    run, err := s.Store.SaveSolveRun(ctx, model.SolveRun{
        TenantID:            tenant,
        ProblemID:           problemID,
        Algorithm:           string(st.Algorithm),
        Objective:           st.Objective.String(),
        TotalDuration:       sol.TotalDuration,
        Feasible:            st.Feasible,
        Unassigned:          len(st.Unassigned),
        Assignments:         st.Assignments,
        FeasibleAssignments: st.FeasibleAssignments,
        Permutations:        st.Permutations,
        ElapsedMs:           resp.Stats.ElapsedMs,
    })
    if err != nil {
        // The solution is still valid; only its statistics are lost.
        entry.WithError(err).Error("save solve run failed")
    }
    resp.ProblemID = problemID
    resp.RunID = run.ID

    data := map[string]any{
        "problemId":             problemID,
        "runId":                 run.ID,
        "algorithm":             resp.Algorithm,
        "totalDeliveryDuration": resp.TotalDeliveryDuration,
        "feasible":              resp.Feasible,
        "unassigned":            resp.Unassigned,
    }
    s.Broker.Publish(problemID, SSEEvent{Type: EventSolveCompleted, Data: data})
    s.Pub.Emit(ctx, tenant, webhooks.EventSolveCompleted, data)
    return resp, nil
}

func failureReason(err error) string {
    switch {
    case errors.Is(err, opt.ErrTooManyJobs):
        return "too_many_jobs"
    case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
        return "cancelled"
    }
    return "error"
}
