package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/samber/lo"

    "vrpsolver/internal/model"
)

// Memory is a simple in-memory store used when no database is configured.
type Memory struct {
    mu       sync.Mutex
    problems map[string]model.Problem          // id -> problem
    byTen    map[string][]string               // tenant -> problem ids
    runs     map[string][]model.SolveRun       // problem id -> runs, oldest first
    optCfg   map[string]model.OptimizerConfig  // tenant -> config
    subs     map[string][]model.Subscription   // tenant -> subscriptions
    // Webhooks queue state
    deliveries         map[string]*memDelivery // id -> delivery state
    deliveriesByTenant map[string][]string     // tenant -> delivery ids
    dedup              map[string]string       // tenant|event|url|key -> delivery id
    dlq                []map[string]any        // dead-lettered deliveries
    now                func() time.Time
}

func NewMemory() *Memory {
    return &Memory{
        problems:           map[string]model.Problem{},
        byTen:              map[string][]string{},
        runs:               map[string][]model.SolveRun{},
        optCfg:             map[string]model.OptimizerConfig{},
        subs:               map[string][]model.Subscription{},
        deliveries:         map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
        dedup:              map[string]string{},
        dlq:                []map[string]any{},
        now:                time.Now,
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
    CreatedAt     time.Time
}

func (m *Memory) CreateProblem(ctx context.Context, tenantID string, req model.OptimizeRequest) (model.Problem, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p := model.Problem{ID: uuid.New().String(), TenantID: tenantID, Name: req.Name, Request: req, CreatedAt: m.now().UTC()}
    m.problems[p.ID] = p
    m.byTen[tenantID] = append(m.byTen[tenantID], p.ID)
    return p, nil
}

func (m *Memory) GetProblem(ctx context.Context, tenantID, id string) (model.Problem, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.problems[id]
    if !ok || p.TenantID != tenantID { return model.Problem{}, ErrNotFound }
    return p, nil
}

func (m *Memory) ListProblems(ctx context.Context, tenantID, cursor string, limit int) ([]model.ProblemSummary, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    limit = clampLimit(limit)
    ids := append([]string(nil), m.byTen[tenantID]...)
    sort.Strings(ids)
    out := []model.ProblemSummary{}
    for _, id := range ids {
        if cursor != "" && id <= cursor { continue }
        out = append(out, m.problems[id].Summary())
        if len(out) == limit { break }
    }
    next := ""
    if len(out) == limit { next = out[len(out)-1].ID }
    return out, next, nil
}

func (m *Memory) DeleteProblem(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.problems[id]
    if !ok || p.TenantID != tenantID { return ErrNotFound }
    delete(m.problems, id)
    delete(m.runs, id)
    m.byTen[tenantID] = lo.Without(m.byTen[tenantID], id)
    return nil
}

func (m *Memory) SaveSolveRun(ctx context.Context, run model.SolveRun) (model.SolveRun, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if p, ok := m.problems[run.ProblemID]; !ok || p.TenantID != run.TenantID { return model.SolveRun{}, ErrNotFound }
    run.ID = uuid.New().String()
    run.CreatedAt = m.now().UTC()
    m.runs[run.ProblemID] = append(m.runs[run.ProblemID], run)
    return run, nil
}

// ListSolveRuns returns the newest runs first.
func (m *Memory) ListSolveRuns(ctx context.Context, tenantID, problemID string, limit int) ([]model.SolveRun, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if p, ok := m.problems[problemID]; !ok || p.TenantID != tenantID { return nil, ErrNotFound }
    limit = clampLimit(limit)
    runs := m.runs[problemID]
    out := make([]model.SolveRun, 0, len(runs))
    for i := len(runs) - 1; i >= 0 && len(out) < limit; i-- {
        out = append(out, runs[i])
    }
    return out, nil
}

func (m *Memory) GetOptimizerConfig(ctx context.Context, tenantID string) (*model.OptimizerConfig, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if cfg, ok := m.optCfg[tenantID]; ok { return &cfg, nil }
    return nil, nil
}

func (m *Memory) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg model.OptimizerConfig) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.optCfg[tenantID] = cfg
    return nil
}

// Subscriptions
func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return lo.Filter(m.subs[tenantID], func(s model.Subscription, _ int) bool {
        return lo.Contains(s.Events, eventType)
    }), nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    limit = clampLimit(limit)
    all := append([]model.Subscription(nil), m.subs[tenantID]...)
    sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
    out := []model.Subscription{}
    for _, s := range all {
        if cursor != "" && s.ID <= cursor { continue }
        out = append(out, s)
        if len(out) == limit { break }
    }
    next := ""
    if len(out) == limit { next = out[len(out)-1].ID }
    return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.subs[tenantID] = lo.Reject(m.subs[tenantID], func(s model.Subscription, _ int) bool { return s.ID == id })
    return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    key := tenantID + "|" + eventType + "|" + url + "|" + computeDedupKey(payload)
    if id, ok := m.dedup[key]; ok { return id, nil }
    id := uuid.New().String()
    now := m.now()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: StatusPending}, NextAttemptAt: now, CreatedAt: now}
    m.deliveries[id] = d
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    m.dedup[key] = id
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := m.now()
    due := []*memDelivery{}
    for _, d := range m.deliveries {
        if (d.Status == StatusPending || d.Status == StatusRetry) && !d.NextAttemptAt.After(now) {
            due = append(due, d)
        }
    }
    sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
    if limit > 0 && len(due) > limit { due = due[:limit] }
    return lo.Map(due, func(d *memDelivery, _ int) WebhookDelivery { return d.WebhookDelivery }), nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = StatusDelivered
        now := m.now()
        d.DeliveredAt = &now
        return nil
    }
    d.Status = StatusRetry
    d.LastError = lastError
    if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = m.now().Add(1 * time.Minute) }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.Status = StatusFailed
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    m.dlq = append(m.dlq, map[string]any{
        "id":           uuid.New().String(),
        "tenantId":     d.TenantID,
        "deliveryId":   d.ID,
        "eventType":    d.EventType,
        "url":          d.URL,
        "attempts":     d.Attempts,
        "lastError":    lastError,
        "responseCode": responseCode,
        "createdAt":    m.now().UTC(),
    })
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    limit = clampLimit(limit)
    ids := append([]string(nil), m.deliveriesByTenant[tenantID]...)
    sort.Strings(ids)
    out := []map[string]any{}
    var last string
    for _, id := range ids {
        if cursor != "" && id <= cursor { continue }
        d := m.deliveries[id]
        if status != "" && d.Status != status { continue }
        out = append(out, deliveryItem(d.ID, d.EventType, d.Status, d.URL, d.Attempts, d.NextAttemptAt, d.LastError, d.ResponseCode))
        last = id
        if len(out) == limit { break }
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil || d.TenantID != tenantID { return ErrNotFound }
    d.Status = StatusPending
    d.NextAttemptAt = m.now()
    return nil
}

func (m *Memory) ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    limit = clampLimit(limit)
    items := lo.Filter(m.dlq, func(it map[string]any, _ int) bool { return it["tenantId"] == tenantID })
    sort.Slice(items, func(i, j int) bool { return items[i]["id"].(string) < items[j]["id"].(string) })
    out := []map[string]any{}
    for _, it := range items {
        if cursor != "" && it["id"].(string) <= cursor { continue }
        out = append(out, it)
        if len(out) == limit { break }
    }
    next := ""
    if len(out) == limit { next = out[len(out)-1]["id"].(string) }
    return out, next, nil
}

func deliveryItem(id, eventType, status, url string, attempts int, nextAt time.Time, lastErr string, code int) map[string]any {
    item := map[string]any{"id": id, "eventType": eventType, "status": status, "attempts": attempts, "url": url}
    if !nextAt.IsZero() && (status == StatusPending || status == StatusRetry) { item["nextAttemptAt"] = nextAt.UTC() }
    if lastErr != "" { item["lastError"] = lastErr }
    if code != 0 { item["responseCode"] = code }
    return item
}
