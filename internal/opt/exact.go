package opt

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrTooManyJobs is returned when the exact solver is asked to enumerate an
// instance above its job ceiling.
var ErrTooManyJobs = errors.New("too many jobs for exact solver")

// ctxCheckEvery controls how often the enumeration polls for cancellation.
const ctxCheckEvery = 1024

// ExactSolver enumerates every job-to-vehicle assignment and sequences each
// vehicle's jobs exhaustively. MaxJobs <= 0 disables the ceiling.
type ExactSolver struct {
	MaxJobs   int
	Objective Objective
}

// SolveExact returns the minimum-duration solution over all assignments.
// Without jobs, or when no assignment is feasible, every vehicle gets an
// empty route and the total is 0.
func SolveExact(p Problem) Solution {
	sol, _, _ := ExactSolver{}.Solve(context.Background(), p)
	return sol
}

// assignmentResult is the outcome of scoring one assignment. ok is false
// when at least one vehicle would be over capacity.
type assignmentResult struct {
	routes []Route
	total  int64
	ok     bool
}

// Solve runs the enumeration and reports counters alongside the solution.
func (s ExactSolver) Solve(ctx context.Context, p Problem) (Solution, Stats, error) {
	started := time.Now()
	stats := Stats{Algorithm: AlgorithmExact, Objective: s.Objective}
	if s.MaxJobs > 0 && len(p.Jobs) > s.MaxJobs {
		return Solution{}, stats, fmt.Errorf("%w: %d jobs, limit %d", ErrTooManyJobs, len(p.Jobs), s.MaxJobs)
	}
	if len(p.Jobs) == 0 {
		stats.Feasible = true
		stats.Unassigned = []string{}
		stats.Elapsed = time.Since(started)
		return emptySolution(p.Vehicles), stats, nil
	}

	seq := &sequencer{m: p.Matrix, obj: s.Objective}
	assign := make([]int, len(p.Jobs))
	parts := make([][]Job, len(p.Vehicles))
	var best assignmentResult

	if len(p.Vehicles) > 0 {
		for {
			if stats.Assignments%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return Solution{}, stats, err
				}
			}
			stats.Assignments++
			res := evaluateAssignment(p, seq, assign, parts)
			if res.ok {
				stats.FeasibleAssignments++
				if !best.ok || res.total < best.total {
					best = res
				}
			}
			if !advance(assign, len(p.Vehicles)) {
				break
			}
		}
	}
	stats.Permutations = seq.perms
	stats.Elapsed = time.Since(started)

	log.WithFields(log.Fields{
		"component":   "opt",
		"vehicles":    len(p.Vehicles),
		"jobs":        len(p.Jobs),
		"assignments": stats.Assignments,
		"feasible":    stats.FeasibleAssignments,
		"best":        best.total,
	}).Debug("exact enumeration finished")

	if !best.ok {
		stats.Unassigned = jobIDs(p.Jobs)
		return emptySolution(p.Vehicles), stats, nil
	}
	sol := Solution{Routes: make(map[string]Route, len(p.Vehicles)), TotalDuration: best.total}
	for i, v := range p.Vehicles {
		sol.Routes[v.ID] = best.routes[i]
	}
	stats.Feasible = true
	stats.Unassigned = []string{}
	return sol, stats, nil
}

// evaluateAssignment partitions jobs by assign (keeping input order inside
// each partition), rejects the assignment if any partition overflows its
// vehicle, and otherwise sequences every vehicle.
func evaluateAssignment(p Problem, seq *sequencer, assign []int, parts [][]Job) assignmentResult {
	for v := range parts {
		parts[v] = parts[v][:0]
	}
	for j, v := range assign {
		parts[v] = append(parts[v], p.Jobs[j])
	}
	for v, veh := range p.Vehicles {
		if !Feasible(veh, parts[v]) {
			return assignmentResult{}
		}
	}
	res := assignmentResult{routes: make([]Route, len(p.Vehicles)), ok: true}
	for v, veh := range p.Vehicles {
		order, cost := seq.bestOrder(veh.Start, parts[v])
		res.routes[v] = Route{Jobs: jobIDs(order), Duration: cost}
		res.total += cost
	}
	return res
}

// advance steps assign like an odometer over base n, last position fastest.
// It reports false after the final assignment.
func advance(assign []int, n int) bool {
	for i := len(assign) - 1; i >= 0; i-- {
		assign[i]++
		if assign[i] < n {
			return true
		}
		assign[i] = 0
	}
	return false
}
