package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/samber/lo"
    log "github.com/sirupsen/logrus"

    "vrpsolver/internal/model"
)

type dialect int

const (
    dialectPostgres dialect = iota
    dialectSQLite
)

func (d dialect) String() string {
    if d == dialectSQLite { return "sqlite" }
    return "postgres"
}

// SQL implements Store over database/sql. Queries are written with '?'
// placeholders and rebound for Postgres.
type SQL struct {
    db      *sql.DB
    dialect dialect
    log     *log.Entry
    now     func() time.Time
}

func newSQL(db *sql.DB, d dialect) *SQL {
    return &SQL{db: db, dialect: d, log: log.WithFields(log.Fields{"component": "store", "driver": d.String()}), now: time.Now}
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) Close() error { return s.db.Close() }

// q rewrites '?' placeholders to $n when talking to Postgres.
func (s *SQL) q(query string) string {
    if s.dialect != dialectPostgres { return query }
    return rebind(query)
}

func rebind(query string) string {
    var b strings.Builder
    n := 0
    for _, r := range query {
        if r == '?' {
            n++
            b.WriteByte('$')
            b.WriteString(strconv.Itoa(n))
            continue
        }
        b.WriteRune(r)
    }
    return b.String()
}

func (s *SQL) millis() int64 { return s.now().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

// Problems

func (s *SQL) CreateProblem(ctx context.Context, tenantID string, req model.OptimizeRequest) (model.Problem, error) {
    body, err := json.Marshal(req)
    if err != nil { return model.Problem{}, fmt.Errorf("failed to encode problem: %w", err) }
    p := model.Problem{ID: uuid.New().String(), TenantID: tenantID, Name: req.Name, Request: req, CreatedAt: fromMillis(s.millis())}
    _, err = s.db.ExecContext(ctx, s.q(`INSERT INTO problems (id, tenant_id, name, request, vehicles, jobs, created_at) VALUES (?,?,?,?,?,?,?)`),
        p.ID, tenantID, nullIfEmpty(req.Name), string(body), len(req.Vehicles), len(req.Jobs), p.CreatedAt.UnixMilli())
    if err != nil { return model.Problem{}, fmt.Errorf("failed to insert problem: %w", err) }
    return p, nil
}

func (s *SQL) GetProblem(ctx context.Context, tenantID, id string) (model.Problem, error) {
    var p model.Problem
    var name sql.NullString
    var body string
    var created int64
    err := s.db.QueryRowContext(ctx, s.q(`SELECT id, tenant_id, name, request, created_at FROM problems WHERE tenant_id=? AND id=?`), tenantID, id).
        Scan(&p.ID, &p.TenantID, &name, &body, &created)
    if errors.Is(err, sql.ErrNoRows) { return model.Problem{}, ErrNotFound }
    if err != nil { return model.Problem{}, fmt.Errorf("failed to get problem: %w", err) }
    if err := json.Unmarshal([]byte(body), &p.Request); err != nil {
        return model.Problem{}, fmt.Errorf("failed to decode problem %s: %w", id, err)
    }
    p.Name = name.String
    p.CreatedAt = fromMillis(created)
    return p, nil
}

func (s *SQL) ListProblems(ctx context.Context, tenantID, cursor string, limit int) ([]model.ProblemSummary, string, error) {
    limit = clampLimit(limit)
    rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, name, vehicles, jobs, created_at FROM problems WHERE tenant_id=? AND id > ? ORDER BY id LIMIT ?`), tenantID, cursor, limit)
    if err != nil { return nil, "", fmt.Errorf("failed to list problems: %w", err) }
    defer rows.Close()
    out := []model.ProblemSummary{}
    for rows.Next() {
        var ps model.ProblemSummary
        var name sql.NullString
        var created int64
        if err := rows.Scan(&ps.ID, &name, &ps.Vehicles, &ps.Jobs, &created); err != nil { return nil, "", err }
        ps.Name = name.String
        ps.CreatedAt = fromMillis(created)
        out = append(out, ps)
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = out[len(out)-1].ID }
    return out, next, nil
}

func (s *SQL) DeleteProblem(ctx context.Context, tenantID, id string) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func() { _ = tx.Rollback() }()
    if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM solve_runs WHERE tenant_id=? AND problem_id=?`), tenantID, id); err != nil {
        return fmt.Errorf("failed to delete runs: %w", err)
    }
    res, err := tx.ExecContext(ctx, s.q(`DELETE FROM problems WHERE tenant_id=? AND id=?`), tenantID, id)
    if err != nil { return fmt.Errorf("failed to delete problem: %w", err) }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return tx.Commit()
}

// Solve runs

func (s *SQL) SaveSolveRun(ctx context.Context, run model.SolveRun) (model.SolveRun, error) {
    var n int
    if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM problems WHERE tenant_id=? AND id=?`), run.TenantID, run.ProblemID).Scan(&n); err != nil {
        return model.SolveRun{}, fmt.Errorf("failed to check problem: %w", err)
    }
    if n == 0 { return model.SolveRun{}, ErrNotFound }
    run.ID = uuid.New().String()
    run.CreatedAt = fromMillis(s.millis())
    _, err := s.db.ExecContext(ctx, s.q(`INSERT INTO solve_runs (id, tenant_id, problem_id, algorithm, objective, total_duration, feasible, unassigned, assignments, feasible_assignments, permutations, elapsed_ms, created_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`),
        run.ID, run.TenantID, run.ProblemID, run.Algorithm, run.Objective, run.TotalDuration, run.Feasible, run.Unassigned,
        run.Assignments, run.FeasibleAssignments, run.Permutations, run.ElapsedMs, run.CreatedAt.UnixMilli())
    if err != nil { return model.SolveRun{}, fmt.Errorf("failed to insert solve run: %w", err) }
    return run, nil
}

func (s *SQL) ListSolveRuns(ctx context.Context, tenantID, problemID string, limit int) ([]model.SolveRun, error) {
    if _, err := s.GetProblem(ctx, tenantID, problemID); err != nil { return nil, err }
    limit = clampLimit(limit)
    rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, algorithm, objective, total_duration, feasible, unassigned, assignments, feasible_assignments, permutations, elapsed_ms, created_at
        FROM solve_runs WHERE tenant_id=? AND problem_id=? ORDER BY created_at DESC, id DESC LIMIT ?`), tenantID, problemID, limit)
    if err != nil { return nil, fmt.Errorf("failed to list solve runs: %w", err) }
    defer rows.Close()
    out := []model.SolveRun{}
    for rows.Next() {
        r := model.SolveRun{TenantID: tenantID, ProblemID: problemID}
        var created int64
        if err := rows.Scan(&r.ID, &r.Algorithm, &r.Objective, &r.TotalDuration, &r.Feasible, &r.Unassigned, &r.Assignments, &r.FeasibleAssignments, &r.Permutations, &r.ElapsedMs, &created); err != nil {
            return nil, err
        }
        r.CreatedAt = fromMillis(created)
        out = append(out, r)
    }
    return out, rows.Err()
}

// Optimizer config

func (s *SQL) GetOptimizerConfig(ctx context.Context, tenantID string) (*model.OptimizerConfig, error) {
    var js string
    err := s.db.QueryRowContext(ctx, s.q(`SELECT config FROM optimizer_config WHERE tenant_id=?`), tenantID).Scan(&js)
    if errors.Is(err, sql.ErrNoRows) { return nil, nil }
    if err != nil { return nil, fmt.Errorf("failed to get optimizer config: %w", err) }
    var cfg model.OptimizerConfig
    if err := json.Unmarshal([]byte(js), &cfg); err != nil { return nil, err }
    return &cfg, nil
}

func (s *SQL) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg model.OptimizerConfig) error {
    js, err := json.Marshal(cfg)
    if err != nil { return err }
    _, err = s.db.ExecContext(ctx, s.q(`INSERT INTO optimizer_config (tenant_id, config, updated_at) VALUES (?,?,?)
        ON CONFLICT (tenant_id) DO UPDATE SET config=excluded.config, updated_at=excluded.updated_at`), tenantID, string(js), s.millis())
    if err != nil { return fmt.Errorf("failed to save optimizer config: %w", err) }
    return nil
}

// Subscriptions

func (s *SQL) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.Events)
    _, err := s.db.ExecContext(ctx, s.q(`INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES (?,?,?,?,?)`), id, req.TenantID, req.URL, string(ev), nullIfEmpty(req.Secret))
    if err != nil { return model.Subscription{}, fmt.Errorf("failed to insert subscription: %w", err) }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (s *SQL) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    all, err := s.querySubscriptions(ctx, `SELECT id, url, secret, events FROM subscriptions WHERE tenant_id=? ORDER BY id`, tenantID)
    if err != nil { return nil, err }
    return lo.Filter(all, func(sub model.Subscription, _ int) bool { return lo.Contains(sub.Events, eventType) }), nil
}

func (s *SQL) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    limit = clampLimit(limit)
    out, err := s.querySubscriptions(ctx, `SELECT id, url, secret, events FROM subscriptions WHERE tenant_id=? AND id > ? ORDER BY id LIMIT ?`, tenantID, cursor, limit)
    if err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = out[len(out)-1].ID }
    return out, next, nil
}

func (s *SQL) querySubscriptions(ctx context.Context, query string, args ...any) ([]model.Subscription, error) {
    tenantID := args[0].(string)
    rows, err := s.db.QueryContext(ctx, s.q(query), args...)
    if err != nil { return nil, fmt.Errorf("failed to query subscriptions: %w", err) }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        sub := model.Subscription{TenantID: tenantID}
        var secret sql.NullString
        var ev string
        if err := rows.Scan(&sub.ID, &sub.URL, &secret, &ev); err != nil { return nil, err }
        sub.Secret = secret.String
        _ = json.Unmarshal([]byte(ev), &sub.Events)
        out = append(out, sub)
    }
    return out, rows.Err()
}

func (s *SQL) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    _, err := s.db.ExecContext(ctx, s.q(`DELETE FROM subscriptions WHERE tenant_id=? AND id=?`), tenantID, id)
    return err
}

// Webhook deliveries

func (s *SQL) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    now := s.millis()
    res, err := s.db.ExecContext(ctx, s.q(`INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?,0,?,?,?,?)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`),
        id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), string(payload), StatusPending, now, dk, now, now)
    if err != nil { return "", fmt.Errorf("failed to enqueue webhook: %w", err) }
    if n, _ := res.RowsAffected(); n == 0 {
        var existing string
        err := s.db.QueryRowContext(ctx, s.q(`SELECT id FROM webhook_deliveries WHERE tenant_id=? AND event_type=? AND url=? AND dedup_key=?`), tenantID, eventType, url, dk).Scan(&existing)
        if err != nil { return "", fmt.Errorf("failed to load deduplicated webhook: %w", err) }
        return existing, nil
    }
    return id, nil
}

func (s *SQL) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    if limit <= 0 { limit = 100 }
    rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, tenant_id, COALESCE(subscription_id,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN (?,?) AND next_attempt_at <= ? ORDER BY next_attempt_at ASC LIMIT ?`), StatusPending, StatusRetry, s.millis(), limit)
    if err != nil { return nil, fmt.Errorf("failed to fetch due webhooks: %w", err) }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        var payload string
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        d.Payload = []byte(payload)
        out = append(out, d)
    }
    return out, rows.Err()
}

func (s *SQL) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    now := s.millis()
    if success {
        _, err := s.db.ExecContext(ctx, s.q(`UPDATE webhook_deliveries SET attempts=attempts+1, status=?, delivered_at=?, updated_at=?, response_code=?, latency_ms=? WHERE id=?`),
            StatusDelivered, now, now, responseCode, latencyMs, id)
        return err
    }
    next := s.now().Add(1 * time.Minute)
    if nextAttemptAt != nil { next = *nextAttemptAt }
    _, err := s.db.ExecContext(ctx, s.q(`UPDATE webhook_deliveries SET attempts=attempts+1, status=?, last_error=?, next_attempt_at=?, updated_at=?, response_code=?, latency_ms=? WHERE id=?`),
        StatusRetry, nullIfEmpty(lastError), next.UnixMilli(), now, responseCode, latencyMs, id)
    return err
}

// FailWebhookDelivery marks the delivery failed and copies it to the DLQ.
func (s *SQL) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func() { _ = tx.Rollback() }()
    now := s.millis()
    res, err := tx.ExecContext(ctx, s.q(`UPDATE webhook_deliveries SET attempts=attempts+1, status=?, last_error=?, updated_at=?, response_code=?, latency_ms=? WHERE id=?`),
        StatusFailed, nullIfEmpty(lastError), now, responseCode, latencyMs, id)
    if err != nil { return fmt.Errorf("failed to mark webhook failed: %w", err) }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    var tenantID, eventType, url, payload string
    var attempts int
    err = tx.QueryRowContext(ctx, s.q(`SELECT tenant_id, event_type, url, payload, attempts FROM webhook_deliveries WHERE id=?`), id).
        Scan(&tenantID, &eventType, &url, &payload, &attempts)
    if err != nil { return fmt.Errorf("failed to load failed webhook: %w", err) }
    _, err = tx.ExecContext(ctx, s.q(`INSERT INTO webhook_dlq (id, tenant_id, delivery_id, event_type, url, payload, attempts, last_error, response_code, created_at) VALUES (?,?,?,?,?,?,?,?,?,?)`),
        uuid.New().String(), tenantID, id, eventType, url, payload, attempts, nullIfEmpty(lastError), responseCode, now)
    if err != nil { return fmt.Errorf("failed to insert dlq entry: %w", err) }
    return tx.Commit()
}

func (s *SQL) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    limit = clampLimit(limit)
    q := `SELECT id, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), url FROM webhook_deliveries WHERE tenant_id=? AND id > ?`
    args := []any{tenantID, cursor}
    if status != "" {
        q += ` AND status=?`
        args = append(args, status)
    }
    q += ` ORDER BY id LIMIT ?`
    args = append(args, limit)
    rows, err := s.db.QueryContext(ctx, s.q(q), args...)
    if err != nil { return nil, "", fmt.Errorf("failed to list webhook deliveries: %w", err) }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, typ, st, lastErr, url string
        var attempts, code int
        var nextAt int64
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &code, &url); err != nil { return nil, "", err }
        out = append(out, deliveryItem(id, typ, st, url, attempts, fromMillis(nextAt), lastErr, code))
        last = id
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (s *SQL) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    now := s.millis()
    res, err := s.db.ExecContext(ctx, s.q(`UPDATE webhook_deliveries SET status=?, next_attempt_at=?, updated_at=? WHERE tenant_id=? AND id=?`), StatusPending, now, now, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (s *SQL) ListWebhookDLQ(ctx context.Context, tenantID, cursor string, limit int) ([]map[string]any, string, error) {
    limit = clampLimit(limit)
    rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, delivery_id, event_type, url, attempts, COALESCE(last_error,''), COALESCE(response_code,0), created_at
        FROM webhook_dlq WHERE tenant_id=? AND id > ? ORDER BY id LIMIT ?`), tenantID, cursor, limit)
    if err != nil { return nil, "", fmt.Errorf("failed to list dlq: %w", err) }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, deliveryID, typ, url, lastErr string
        var attempts, code int
        var created int64
        if err := rows.Scan(&id, &deliveryID, &typ, &url, &attempts, &lastErr, &code, &created); err != nil { return nil, "", err }
        out = append(out, map[string]any{
            "id": id, "tenantId": tenantID, "deliveryId": deliveryID, "eventType": typ, "url": url,
            "attempts": attempts, "lastError": lastErr, "responseCode": code, "createdAt": fromMillis(created),
        })
        last = id
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}
