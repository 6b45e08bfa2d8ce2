package opt

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// GreedySolver builds routes vehicle by vehicle, always extending the
// current route with the nearest job that still fits.
type GreedySolver struct {
	Objective Objective
}

// SolveGreedy runs the nearest-feasible-job heuristic. Jobs that no vehicle
// can take are left out of every route and out of the total.
func SolveGreedy(p Problem) Solution {
	sol, _ := GreedySolver{}.Solve(p)
	return sol
}

// Solve returns the greedy solution and the ids of jobs left unassigned.
func (g GreedySolver) Solve(p Problem) (Solution, Stats) {
	started := time.Now()
	pool := make([]Job, len(p.Jobs))
	copy(pool, p.Jobs)

	sol := Solution{Routes: make(map[string]Route, len(p.Vehicles))}
	for _, v := range p.Vehicles {
		route := Route{Jobs: []string{}}
		at := v.Start
		remaining := v.Capacity
		for {
			pick := nearestFitting(p.Matrix, at, remaining, pool)
			if pick < 0 {
				break
			}
			j := pool[pick]
			route.Jobs = append(route.Jobs, j.ID)
			route.Duration += p.Matrix.Leg(at, j.Location)
			if g.Objective == DurationWithService {
				route.Duration += j.Service
			}
			at = j.Location
			remaining = remaining.Sub(j.Delivery)
			pool = append(pool[:pick], pool[pick+1:]...)
		}
		sol.Routes[v.ID] = route
		sol.TotalDuration += route.Duration
	}

	stats := Stats{
		Algorithm:  AlgorithmGreedy,
		Objective:  g.Objective,
		Unassigned: jobIDs(pool),
		Feasible:   len(pool) == 0,
		Elapsed:    time.Since(started),
	}
	if len(pool) > 0 {
		log.WithFields(log.Fields{
			"component":  "opt",
			"unassigned": len(pool),
		}).Debug("greedy left jobs unassigned")
	}
	return sol, stats
}

// nearestFitting returns the pool index of the job with the shortest leg
// from at whose delivery fits remaining, or -1. Ties go to the lower index.
func nearestFitting(m Matrix, at int, remaining Capacity, pool []Job) int {
	pick := -1
	var best int64
	for i, j := range pool {
		if !remaining.Fits(j.Delivery) {
			continue
		}
		leg := m.Leg(at, j.Location)
		if pick < 0 || leg < best {
			pick = i
			best = leg
		}
	}
	return pick
}
