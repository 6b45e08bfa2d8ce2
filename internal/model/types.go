package model

import "time"

// Wire types for the optimize API and the problem files read by vrpctl.

type VehicleIn struct {
    ID         string   `json:"id" yaml:"id"`
    StartIndex int      `json:"start_index" yaml:"start_index"`
    Capacity   Quantity `json:"capacity" yaml:"capacity"`
}

type JobIn struct {
    ID            string   `json:"id" yaml:"id"`
    LocationIndex int      `json:"location_index" yaml:"location_index"`
    Delivery      Quantity `json:"delivery" yaml:"delivery"`
    Service       *int64   `json:"service,omitempty" yaml:"service,omitempty"`
}

type OptimizeRequest struct {
    Name      string      `json:"name,omitempty" yaml:"name,omitempty"`
    Algorithm string      `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
    Objective string      `json:"objective,omitempty" yaml:"objective,omitempty"`
    Vehicles  []VehicleIn `json:"vehicles" yaml:"vehicles"`
    Jobs      []JobIn     `json:"jobs" yaml:"jobs"`
    Matrix    [][]int64   `json:"matrix" yaml:"matrix"`
}

type RouteOut struct {
    Jobs             []string `json:"jobs" yaml:"jobs"`
    DeliveryDuration int64    `json:"delivery_duration" yaml:"delivery_duration"`
}

type SolveStats struct {
    Assignments         int64   `json:"assignments" yaml:"assignments"`
    FeasibleAssignments int64   `json:"feasible_assignments" yaml:"feasible_assignments"`
    Permutations        int64   `json:"permutations" yaml:"permutations"`
    ElapsedMs           float64 `json:"elapsed_ms" yaml:"elapsed_ms"`
}

type OptimizeResponse struct {
    TotalDeliveryDuration int64               `json:"total_delivery_duration" yaml:"total_delivery_duration"`
    Routes                map[string]RouteOut `json:"routes" yaml:"routes"`
    Unassigned            []string            `json:"unassigned" yaml:"unassigned"`
    Feasible              bool                `json:"feasible" yaml:"feasible"`
    Algorithm             string              `json:"algorithm" yaml:"algorithm"`
    Objective             string              `json:"objective" yaml:"objective"`
    ProblemID             string              `json:"problem_id,omitempty" yaml:"problem_id,omitempty"`
    RunID                 string              `json:"run_id,omitempty" yaml:"run_id,omitempty"`
    Stats                 SolveStats          `json:"stats" yaml:"stats"`
}

// Problem is a stored problem instance. Solutions are never stored.
type Problem struct {
    ID        string          `json:"id"`
    TenantID  string          `json:"tenantId"`
    Name      string          `json:"name,omitempty"`
    Request   OptimizeRequest `json:"request"`
    CreatedAt time.Time       `json:"createdAt"`
}

// ProblemSummary is the list view of a stored problem.
type ProblemSummary struct {
    ID        string    `json:"id"`
    Name      string    `json:"name,omitempty"`
    Vehicles  int       `json:"vehicles"`
    Jobs      int       `json:"jobs"`
    CreatedAt time.Time `json:"createdAt"`
}

// SolveRun records the statistics of one solve of a stored problem.
type SolveRun struct {
    ID                  string    `json:"id"`
    TenantID            string    `json:"tenantId"`
    ProblemID           string    `json:"problemId"`
    Algorithm           string    `json:"algorithm"`
    Objective           string    `json:"objective"`
    TotalDuration       int64     `json:"totalDuration"`
    Feasible            bool      `json:"feasible"`
    Unassigned          int       `json:"unassigned"`
    Assignments         int64     `json:"assignments"`
    FeasibleAssignments int64     `json:"feasibleAssignments"`
    Permutations        int64     `json:"permutations"`
    ElapsedMs           float64   `json:"elapsedMs"`
    CreatedAt           time.Time `json:"createdAt"`
}

// OptimizerConfig is the per-tenant solver policy.
type OptimizerConfig struct {
    MaxExactJobs     int    `json:"maxExactJobs"`
    DefaultAlgorithm string `json:"defaultAlgorithm,omitempty"`
    Objective        string `json:"objective,omitempty"`
}

type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}
