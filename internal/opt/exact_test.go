package opt

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveExactOrdersSingleVehicle(t *testing.T) {
	p := Problem{
		Vehicles: []Vehicle{{ID: "v1", Start: 0}},
		Jobs:     []Job{{ID: "j1", Location: 1, Delivery: 1}, {ID: "j2", Location: 2, Delivery: 1}},
		Matrix:   triangle,
	}
	sol := SolveExact(p)
	want := Solution{
		Routes:        map[string]Route{"v1": {Jobs: []string{"j1", "j2"}, Duration: 8}},
		TotalDuration: 8,
	}
	if diff := cmp.Diff(want, sol); diff != "" {
		t.Fatalf("solution mismatch (-want +got):\n%s", diff)
	}
}

func TestSolveExactCapacityFallback(t *testing.T) {
	p := Problem{
		Vehicles: []Vehicle{{ID: "v1", Start: 0, Capacity: Limit(5)}},
		Jobs:     []Job{{ID: "a", Location: 1, Delivery: 3}, {ID: "b", Location: 2, Delivery: 4}},
		Matrix:   triangle,
	}
	sol, stats, err := ExactSolver{}.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Zero(t, sol.TotalDuration)
	assert.Equal(t, map[string]Route{"v1": {Jobs: []string{}}}, sol.Routes)
	assert.False(t, stats.Feasible)
	assert.Equal(t, int64(1), stats.Assignments)
	assert.Zero(t, stats.FeasibleAssignments)
	assert.Equal(t, []string{"a", "b"}, stats.Unassigned)
}

func TestSolveExactCapacityForcesSplit(t *testing.T) {
	p := Problem{
		Vehicles: []Vehicle{
			{ID: "v1", Start: 0, Capacity: Limit(5)},
			{ID: "v2", Start: 0, Capacity: Limit(5)},
		},
		Jobs:   []Job{{ID: "a", Location: 1, Delivery: 3}, {ID: "b", Location: 2, Delivery: 4}},
		Matrix: triangle,
	}
	sol, stats, err := ExactSolver{}.Solve(context.Background(), p)
	require.NoError(t, err)
	// (v1:a, v2:b) and (v1:b, v2:a) tie at 14; the first one enumerated wins.
	want := Solution{
		Routes: map[string]Route{
			"v1": {Jobs: []string{"a"}, Duration: 5},
			"v2": {Jobs: []string{"b"}, Duration: 9},
		},
		TotalDuration: 14,
	}
	if diff := cmp.Diff(want, sol); diff != "" {
		t.Fatalf("solution mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, int64(4), stats.Assignments)
	assert.Equal(t, int64(2), stats.FeasibleAssignments)
	assert.True(t, stats.Feasible)
}

func TestSolveExactNoJobs(t *testing.T) {
	p := Problem{
		Vehicles: []Vehicle{{ID: "v1"}, {ID: "v2", Capacity: Limit(1)}},
		Matrix:   Matrix{{0}},
	}
	for name, sol := range map[string]Solution{"exact": SolveExact(p), "greedy": SolveGreedy(p)} {
		assert.Zero(t, sol.TotalDuration, name)
		assert.Len(t, sol.Routes, 2, name)
		for id, r := range sol.Routes {
			assert.Empty(t, r.Jobs, "%s %s", name, id)
			assert.Zero(t, r.Duration, "%s %s", name, id)
		}
	}
	_, stats, err := ExactSolver{}.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Zero(t, stats.Assignments)
	assert.True(t, stats.Feasible)
}

func TestSolveExactCountsAssignments(t *testing.T) {
	p := Problem{
		Vehicles: []Vehicle{{ID: "v1", Start: 0}, {ID: "v2", Start: 0}},
		Jobs: []Job{
			{ID: "a", Location: 1, Delivery: 1},
			{ID: "b", Location: 2, Delivery: 1},
			{ID: "c", Location: 1, Delivery: 1},
		},
		Matrix: triangle,
	}
	_, stats, err := ExactSolver{}.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(8), stats.Assignments)
	assert.Equal(t, int64(8), stats.FeasibleAssignments)
}

func TestSolveExactIncludesServiceTime(t *testing.T) {
	p := Problem{
		Vehicles: []Vehicle{{ID: "v1", Start: 0}},
		Jobs:     []Job{{ID: "a", Location: 1, Delivery: 1, Service: 10}},
		Matrix:   triangle,
	}
	assert.Equal(t, int64(15), SolveExact(p).TotalDuration)

	sol, stats, err := ExactSolver{Objective: TravelOnly}.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(5), sol.TotalDuration)
	assert.Equal(t, TravelOnly, stats.Objective)
}

func TestExactSolverJobCeiling(t *testing.T) {
	p := Problem{
		Vehicles: []Vehicle{{ID: "v1"}},
		Jobs:     []Job{{ID: "a", Location: 1}, {ID: "b", Location: 2}, {ID: "c", Location: 1}},
		Matrix:   triangle,
	}
	_, _, err := ExactSolver{MaxJobs: 2}.Solve(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyJobs))

	_, _, err = ExactSolver{MaxJobs: 3}.Solve(context.Background(), p)
	assert.NoError(t, err)
}

func TestExactSolverHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Problem{
		Vehicles: []Vehicle{{ID: "v1"}},
		Jobs:     []Job{{ID: "a", Location: 1}},
		Matrix:   triangle,
	}
	_, _, err := ExactSolver{}.Solve(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolveExactBeatsGreedy(t *testing.T) {
	// Nearest-first walks 0->1->2 for 11; the optimum is 0->2->1 for 3.
	p := Problem{
		Vehicles: []Vehicle{{ID: "v1", Start: 0}},
		Jobs:     []Job{{ID: "a", Location: 1, Delivery: 1}, {ID: "b", Location: 2, Delivery: 1}},
		Matrix:   Matrix{{0, 1, 2}, {1, 0, 10}, {2, 1, 0}},
	}
	assert.Equal(t, int64(11), SolveGreedy(p).TotalDuration)
	exact := SolveExact(p)
	assert.Equal(t, int64(3), exact.TotalDuration)
	assert.Equal(t, []string{"b", "a"}, exact.Routes["v1"].Jobs)
}

func TestSolversAreIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		p := randomProblem(rng, 3, 5)
		require.True(t, cmp.Equal(SolveExact(p), SolveExact(p)), "exact case %d", i)
		require.True(t, cmp.Equal(SolveGreedy(p), SolveGreedy(p)), "greedy case %d", i)
	}
}

func TestSolversRespectCapacity(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 60; i++ {
		p := randomProblem(rng, 3, 5)
		for name, sol := range map[string]Solution{"exact": SolveExact(p), "greedy": SolveGreedy(p)} {
			require.Len(t, sol.Routes, len(p.Vehicles), "%s case %d", name, i)
			var total int64
			for _, v := range p.Vehicles {
				r := sol.Routes[v.ID]
				require.True(t, Feasible(v, lookupJobs(p, r.Jobs)), "%s case %d vehicle %s", name, i, v.ID)
				total += r.Duration
			}
			require.Equal(t, total, sol.TotalDuration, "%s case %d", name, i)
		}
	}
}

func TestSolveExactIsOptimal(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	for i := 0; i < 60; i++ {
		p := randomProblem(rng, 3, 4)
		sol, stats, err := ExactSolver{}.Solve(context.Background(), p)
		require.NoError(t, err)

		ref, ok := referenceOptimum(p)
		require.Equal(t, ok, stats.Feasible, "case %d", i)
		if ok {
			require.Equal(t, ref, sol.TotalDuration, "case %d", i)
		}

		g, gstats := GreedySolver{}.Solve(p)
		if gstats.Feasible {
			require.LessOrEqual(t, sol.TotalDuration, g.TotalDuration, "case %d", i)
		}
	}
}

func randomProblem(rng *rand.Rand, maxVehicles, maxJobs int) Problem {
	locs := 1 + rng.Intn(5)
	m := make(Matrix, locs)
	for i := range m {
		m[i] = make([]int64, locs)
		for j := range m[i] {
			if i != j {
				m[i][j] = int64(rng.Intn(20))
			}
		}
	}
	p := Problem{Matrix: m}
	nv, nj := 1+rng.Intn(maxVehicles), rng.Intn(maxJobs+1)
	for v := 0; v < nv; v++ {
		c := Unlimited()
		if rng.Intn(3) > 0 {
			c = Limit(int64(2 + rng.Intn(7)))
		}
		p.Vehicles = append(p.Vehicles, Vehicle{ID: string(rune('A' + v)), Start: rng.Intn(locs), Capacity: c})
	}
	for j := 0; j < nj; j++ {
		p.Jobs = append(p.Jobs, Job{
			ID:       string(rune('a' + j)),
			Location: rng.Intn(locs),
			Delivery: int64(rng.Intn(5)),
			Service:  int64(rng.Intn(4)),
		})
	}
	return p
}

func lookupJobs(p Problem, ids []string) []Job {
	var out []Job
	for _, id := range ids {
		for _, j := range p.Jobs {
			if j.ID == id {
				out = append(out, j)
			}
		}
	}
	return out
}

// referenceOptimum recursively assigns jobs and tries every order per
// vehicle, independent of the odometer and permutation code under test.
func referenceOptimum(p Problem) (int64, bool) {
	if len(p.Jobs) == 0 {
		return 0, true
	}
	parts := make([][]Job, len(p.Vehicles))
	best, found := int64(0), false
	var assign func(j int)
	assign = func(j int) {
		if j == len(p.Jobs) {
			var total int64
			for v, veh := range p.Vehicles {
				if !Feasible(veh, parts[v]) {
					return
				}
				total += cheapestTour(p.Matrix, veh.Start, parts[v])
			}
			if !found || total < best {
				best, found = total, true
			}
			return
		}
		for v := range p.Vehicles {
			parts[v] = append(parts[v], p.Jobs[j])
			assign(j + 1)
			parts[v] = parts[v][:len(parts[v])-1]
		}
	}
	assign(0)
	return best, found
}

func cheapestTour(m Matrix, at int, jobs []Job) int64 {
	if len(jobs) == 0 {
		return 0
	}
	best := int64(-1)
	for i, j := range jobs {
		rest := append(append([]Job(nil), jobs[:i]...), jobs[i+1:]...)
		c := m[at][j.Location] + j.Service + cheapestTour(m, j.Location, rest)
		if best < 0 || c < best {
			best = c
		}
	}
	return best
}
