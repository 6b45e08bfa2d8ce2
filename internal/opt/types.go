// Package opt implements the routing solvers: an exhaustive exact search and
// a capacity-aware nearest-neighbour heuristic. Both operate on a validated
// Problem and never touch I/O.
package opt

import "time"

// Matrix holds travel times; Matrix[i][j] is the time from location i to j.
type Matrix [][]int64

// Vehicle is a single vehicle of the fleet.
type Vehicle struct {
	ID       string
	Start    int
	Capacity Capacity
}

// Job is a delivery stop.
type Job struct {
	ID       string
	Location int
	Delivery int64
	Service  int64
}

// Problem is an immutable solver input. Validation (square matrix, indices in
// range, unique ids) happens before a Problem reaches this package.
type Problem struct {
	Vehicles []Vehicle
	Jobs     []Job
	Matrix   Matrix
}

// Route is the ordered job ids of one vehicle plus the route duration.
type Route struct {
	Jobs     []string
	Duration int64
}

// Solution maps every vehicle id to its route.
type Solution struct {
	Routes        map[string]Route
	TotalDuration int64
}

// Algorithm names a solving strategy.
type Algorithm string

const (
	AlgorithmExact  Algorithm = "exact"
	AlgorithmGreedy Algorithm = "greedy"
	AlgorithmAuto   Algorithm = "auto"
)

// Stats describes a single solve.
type Stats struct {
	Algorithm           Algorithm
	Objective           Objective
	Assignments         int64
	FeasibleAssignments int64
	Permutations        int64
	Unassigned          []string
	// Feasible is false when some job could not be routed. A problem with
	// no jobs is feasible.
	Feasible bool
	Elapsed  time.Duration
}

func emptySolution(vehicles []Vehicle) Solution {
	routes := make(map[string]Route, len(vehicles))
	for _, v := range vehicles {
		routes[v.ID] = Route{Jobs: []string{}}
	}
	return Solution{Routes: routes}
}

func jobIDs(jobs []Job) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}
