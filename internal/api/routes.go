package api

import (
    "net/http"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "vrpsolver/internal/metrics"
)

// Routes registers every endpoint and wraps the mux in the middleware chain.
func (s *Server) Routes() http.Handler {
    mux := http.NewServeMux()

    mux.HandleFunc("/", s.RootHandler)

    // Optimization
    mux.HandleFunc("/optimize", s.OptimizeHandler)
    mux.HandleFunc("/v1/optimize", s.OptimizeHandler)
    mux.HandleFunc("/v1/optimizer/config", s.OptimizerConfigHandler)
    mux.HandleFunc("/v1/admin/optimizer/config", s.AdminOptimizerConfigHandler)

    // Problems; includes /solve, /runs, /events/stream
    mux.HandleFunc("/v1/problems", s.ProblemsHandler)
    mux.HandleFunc("/v1/problems/", s.ProblemByIDHandler)
    mux.HandleFunc("/v1/ws", s.ProblemEventsWSHandler)

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler)

    // Admin
    mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", s.WebhookDeliveryRetryHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq", s.WebhookDLQHandler)
    mux.HandleFunc("/v1/admin/solve-metrics", s.SolveMetricsHandler)

    // Health, metrics, debug
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
    mux.HandleFunc("/debug/info", s.DebugJSON)

    // Docs
    mux.HandleFunc("/openapi.yaml", s.OpenAPIHandler)
    mux.HandleFunc("/openapi.json", s.OpenAPIJSONHandler)
    mux.HandleFunc("/docs", s.DocsHandler)

    // outermost first
    return s.requestID(accessLog(recoverer(s.cors(s.rateLimit(mux)))))
}
