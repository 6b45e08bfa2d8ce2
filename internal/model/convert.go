package model

import (
	"vrpsolver/internal/opt"
)

// Problem converts a validated request into solver input. Capacity and
// delivery are normalized here, once.
func (r OptimizeRequest) Problem() opt.Problem {
	p := opt.Problem{
		Vehicles: make([]opt.Vehicle, len(r.Vehicles)),
		Jobs:     make([]opt.Job, len(r.Jobs)),
		Matrix:   opt.Matrix(r.Matrix),
	}
	for i, v := range r.Vehicles {
		p.Vehicles[i] = opt.Vehicle{ID: v.ID, Start: v.StartIndex, Capacity: v.Capacity.Capacity()}
	}
	for i, j := range r.Jobs {
		var service int64
		if j.Service != nil {
			service = *j.Service
		}
		p.Jobs[i] = opt.Job{ID: j.ID, Location: j.LocationIndex, Delivery: j.Delivery.Delivery(), Service: service}
	}
	return p
}

// NewOptimizeResponse renders a solution and its stats for the wire.
func NewOptimizeResponse(sol opt.Solution, st opt.Stats) OptimizeResponse {
	routes := make(map[string]RouteOut, len(sol.Routes))
	for id, rt := range sol.Routes {
		jobs := rt.Jobs
		if jobs == nil {
			jobs = []string{}
		}
		routes[id] = RouteOut{Jobs: jobs, DeliveryDuration: rt.Duration}
	}
	unassigned := st.Unassigned
	if unassigned == nil {
		unassigned = []string{}
	}
	return OptimizeResponse{
		TotalDeliveryDuration: sol.TotalDuration,
		Routes:                routes,
		Unassigned:            unassigned,
		Feasible:              st.Feasible,
		Algorithm:             string(st.Algorithm),
		Objective:             st.Objective.String(),
		Stats: SolveStats{
			Assignments:         st.Assignments,
			FeasibleAssignments: st.FeasibleAssignments,
			Permutations:        st.Permutations,
			ElapsedMs:           float64(st.Elapsed.Microseconds()) / 1000,
		},
	}
}

// Summary returns the list view of a stored problem.
func (p Problem) Summary() ProblemSummary {
	return ProblemSummary{
		ID:        p.ID,
		Name:      p.Name,
		Vehicles:  len(p.Request.Vehicles),
		Jobs:      len(p.Request.Jobs),
		CreatedAt: p.CreatedAt,
	}
}
