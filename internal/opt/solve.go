package opt

import (
	"context"
	"fmt"
)

// DefaultMaxExactJobs is the job count above which auto selection falls
// back to the greedy solver.
const DefaultMaxExactJobs = 8

// Options configures Solve.
type Options struct {
	Algorithm    Algorithm
	MaxExactJobs int
	Objective    Objective
}

// Choose picks a concrete algorithm for a problem with the given job count.
// Explicit choices pass through; auto selects exact up to maxExact jobs.
func Choose(a Algorithm, jobs, maxExact int) Algorithm {
	switch a {
	case AlgorithmExact, AlgorithmGreedy:
		return a
	}
	if maxExact <= 0 {
		maxExact = DefaultMaxExactJobs
	}
	if jobs <= maxExact {
		return AlgorithmExact
	}
	return AlgorithmGreedy
}

// ParseAlgorithm accepts exact, greedy, auto or the empty string (auto).
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case "", AlgorithmAuto:
		return AlgorithmAuto, nil
	case AlgorithmExact, AlgorithmGreedy:
		return Algorithm(s), nil
	}
	return "", fmt.Errorf("unknown algorithm %q (want exact, greedy or auto)", s)
}

// Solve dispatches to the configured solver. An explicit exact request
// honours MaxExactJobs as a hard ceiling.
func Solve(ctx context.Context, p Problem, o Options) (Solution, Stats, error) {
	switch Choose(o.Algorithm, len(p.Jobs), o.MaxExactJobs) {
	case AlgorithmExact:
		return ExactSolver{MaxJobs: o.MaxExactJobs, Objective: o.Objective}.Solve(ctx, p)
	default:
		sol, stats := GreedySolver{Objective: o.Objective}.Solve(p)
		return sol, stats, nil
	}
}
