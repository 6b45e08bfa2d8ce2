package metrics

import (
    "strconv"
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"

    "vrpsolver/internal/opt"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )
    // RateLimited counts requests rejected by the per-tenant limiter
    RateLimited = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected with 429."},
    )

    // Solves counts finished solves by algorithm and feasibility
    Solves = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "vrp_solves_total", Help: "Solves by algorithm and feasibility."},
        []string{"algorithm", "feasible"},
    )
    // SolveErrors counts solves that returned an error (ceiling, cancellation)
    SolveErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "vrp_solve_errors_total", Help: "Solves that failed."},
        []string{"algorithm", "reason"},
    )
    // SolveDuration records solver wall time in seconds
    SolveDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "vrp_solve_duration_seconds", Help: "Solver wall time in seconds.", Buckets: prometheus.ExponentialBuckets(0.0001, 4, 12)},
        []string{"algorithm"},
    )
    // Assignments counts job-to-vehicle assignments enumerated by the exact solver
    Assignments = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "vrp_exact_assignments_total", Help: "Assignments enumerated by the exact solver."},
    )
    // Permutations counts job orders scored by the sequencer
    Permutations = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "vrp_sequencer_permutations_total", Help: "Job orders scored by the sequencer."},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(RateLimited)
        Registry.MustRegister(Solves)
        Registry.MustRegister(SolveErrors)
        Registry.MustRegister(SolveDuration)
        Registry.MustRegister(Assignments)
        Registry.MustRegister(Permutations)
        Registry.MustRegister(WebhookDeliveries)
        Registry.MustRegister(WebhookLatency)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once

// ObserveSolve records a finished solve.
func ObserveSolve(st opt.Stats) {
    algo := string(st.Algorithm)
    Solves.WithLabelValues(algo, strconv.FormatBool(st.Feasible)).Inc()
    SolveDuration.WithLabelValues(algo).Observe(st.Elapsed.Seconds())
    Assignments.Add(float64(st.Assignments))
    Permutations.Add(float64(st.Permutations))
}

// ObserveSolveError records a solve that returned err.
func ObserveSolveError(algo opt.Algorithm, reason string) {
    SolveErrors.WithLabelValues(string(algo), reason).Inc()
}
