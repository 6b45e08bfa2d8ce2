package store

import (
    "context"
    "errors"
    "time"

    "vrpsolver/internal/model"
)

// Store is the persistence interface used by the API server. It keeps problem
// instances and solve statistics, never solutions.
type Store interface {
    // Problems
    CreateProblem(ctx context.Context, tenantID string, req model.OptimizeRequest) (model.Problem, error)
    GetProblem(ctx context.Context, tenantID, id string) (model.Problem, error)
    ListProblems(ctx context.Context, tenantID, cursor string, limit int) ([]model.ProblemSummary, string, error)
    DeleteProblem(ctx context.Context, tenantID, id string) error

    // Solve statistics
    SaveSolveRun(ctx context.Context, run model.SolveRun) (model.SolveRun, error)
    ListSolveRuns(ctx context.Context, tenantID, problemID string, limit int) ([]model.SolveRun, error)

    // Optimizer config per tenant; nil when unset
    GetOptimizerConfig(ctx context.Context, tenantID string) (*model.OptimizerConfig, error)
    SaveOptimizerConfig(ctx context.Context, tenantID string, cfg model.OptimizerConfig) error

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
    RetryWebhookDelivery(ctx context.Context, tenantID, id string) error
    ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error)
}

var ErrNotFound = errors.New("not found")

func clampLimit(limit int) int {
    if limit <= 0 || limit > 500 {
        return 100
    }
    return limit
}
