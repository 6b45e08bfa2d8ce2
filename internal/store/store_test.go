package store

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpsolver/internal/model"
)

func TestComputeDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"x"}`)
	assert.Equal(t, "evt_123", computeDedupKey(body))
}

func TestComputeDedupKeyFromHash(t *testing.T) {
	got := computeDedupKey([]byte(`{"notId":"x"}`))
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	require.NoError(t, err)
	assert.Len(t, b, 8)
	assert.Equal(t, got, computeDedupKey([]byte(`{"notId":"x"}`)))
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT a FROM t WHERE x=$1 AND y > $2 LIMIT $3", rebind("SELECT a FROM t WHERE x=? AND y > ? LIMIT ?"))
	assert.Equal(t, "SELECT 1", rebind("SELECT 1"))
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("-- header; ignored\nCREATE TABLE a (x INT);\n\nCREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, got)
}

func newSQLiteStore(t *testing.T) *SQL {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newSQLiteStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMemoryStore(t *testing.T) { runStoreSuite(t, func(t *testing.T) Store { return NewMemory() }) }

func TestSQLiteStore(t *testing.T) { runStoreSuite(t, func(t *testing.T) Store { return newSQLiteStore(t) }) }

func sampleRequest(name string) model.OptimizeRequest {
	return model.OptimizeRequest{
		Name:     name,
		Vehicles: []model.VehicleIn{{ID: "v1", StartIndex: 0, Capacity: model.Vector(4, 2)}},
		Jobs:     []model.JobIn{{ID: "j1", LocationIndex: 1, Delivery: model.Scalar(2)}},
		Matrix:   [][]int64{{0, 3}, {3, 0}},
	}
}

func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("problems", func(t *testing.T) {
		s := open(t)
		p, err := s.CreateProblem(ctx, "t1", sampleRequest("depot"))
		require.NoError(t, err)
		require.NotEmpty(t, p.ID)

		got, err := s.GetProblem(ctx, "t1", p.ID)
		require.NoError(t, err)
		assert.Equal(t, "depot", got.Name)
		assert.Equal(t, int64(4), mustLimit(t, got.Request.Vehicles[0].Capacity))
		assert.Equal(t, int64(2), got.Request.Jobs[0].Delivery.Delivery())

		_, err = s.GetProblem(ctx, "t2", p.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		for i := 0; i < 2; i++ {
			_, err := s.CreateProblem(ctx, "t1", sampleRequest(""))
			require.NoError(t, err)
		}
		page, next, err := s.ListProblems(ctx, "t1", "", 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		require.NotEmpty(t, next)
		rest, next2, err := s.ListProblems(ctx, "t1", next, 2)
		require.NoError(t, err)
		assert.Len(t, rest, 1)
		assert.Empty(t, next2)
		assert.Equal(t, 1, rest[0].Vehicles)

		require.NoError(t, s.DeleteProblem(ctx, "t1", p.ID))
		assert.ErrorIs(t, s.DeleteProblem(ctx, "t1", p.ID), ErrNotFound)
	})

	t.Run("solve runs", func(t *testing.T) {
		s := open(t)
		p, err := s.CreateProblem(ctx, "t1", sampleRequest("runs"))
		require.NoError(t, err)

		_, err = s.SaveSolveRun(ctx, model.SolveRun{TenantID: "t2", ProblemID: p.ID})
		assert.ErrorIs(t, err, ErrNotFound)

		first, err := s.SaveSolveRun(ctx, model.SolveRun{TenantID: "t1", ProblemID: p.ID, Algorithm: "exact", Objective: "duration", TotalDuration: 6, Feasible: true, Assignments: 1, FeasibleAssignments: 1, Permutations: 1, ElapsedMs: 0.25})
		require.NoError(t, err)
		require.NotEmpty(t, first.ID)
		time.Sleep(2 * time.Millisecond)
		_, err = s.SaveSolveRun(ctx, model.SolveRun{TenantID: "t1", ProblemID: p.ID, Algorithm: "greedy", Objective: "travel", TotalDuration: 3, Unassigned: 1})
		require.NoError(t, err)

		runs, err := s.ListSolveRuns(ctx, "t1", p.ID, 10)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "greedy", runs[0].Algorithm)
		assert.Equal(t, 1, runs[0].Unassigned)
		assert.False(t, runs[0].Feasible)
		assert.Equal(t, "exact", runs[1].Algorithm)
		assert.True(t, runs[1].Feasible)
		assert.Equal(t, 0.25, runs[1].ElapsedMs)

		_, err = s.ListSolveRuns(ctx, "t1", "missing", 10)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("optimizer config", func(t *testing.T) {
		s := open(t)
		cfg, err := s.GetOptimizerConfig(ctx, "t1")
		require.NoError(t, err)
		assert.Nil(t, cfg)

		require.NoError(t, s.SaveOptimizerConfig(ctx, "t1", model.OptimizerConfig{MaxExactJobs: 6}))
		require.NoError(t, s.SaveOptimizerConfig(ctx, "t1", model.OptimizerConfig{MaxExactJobs: 5, DefaultAlgorithm: "greedy"}))
		cfg, err = s.GetOptimizerConfig(ctx, "t1")
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Equal(t, model.OptimizerConfig{MaxExactJobs: 5, DefaultAlgorithm: "greedy"}, *cfg)
	})

	t.Run("subscriptions", func(t *testing.T) {
		s := open(t)
		a, err := s.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://a", Events: []string{"solve.completed"}, Secret: "k"})
		require.NoError(t, err)
		_, err = s.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "http://b", Events: []string{"problem.created"}})
		require.NoError(t, err)

		subs, err := s.GetSubscriptionsForEvent(ctx, "t1", "solve.completed")
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "http://a", subs[0].URL)
		assert.Equal(t, "k", subs[0].Secret)

		all, _, err := s.ListSubscriptions(ctx, "t1", "", 10)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		require.NoError(t, s.DeleteSubscription(ctx, "t1", a.ID))
		subs, err = s.GetSubscriptionsForEvent(ctx, "t1", "solve.completed")
		require.NoError(t, err)
		assert.Empty(t, subs)
	})

	t.Run("webhook lifecycle", func(t *testing.T) {
		s := open(t)
		payload := []byte(`{"id":"evt_1","type":"solve.completed"}`)
		id, err := s.EnqueueWebhook(ctx, "t1", "", "solve.completed", "http://a", "", payload)
		require.NoError(t, err)
		dup, err := s.EnqueueWebhook(ctx, "t1", "", "solve.completed", "http://a", "", payload)
		require.NoError(t, err)
		assert.Equal(t, id, dup)

		due, err := s.FetchDueWebhookDeliveries(ctx, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, payload, due[0].Payload)
		assert.Equal(t, StatusPending, due[0].Status)

		later := time.Now().Add(time.Hour)
		require.NoError(t, s.MarkWebhookDelivery(ctx, id, false, &later, "boom", 500, 12))
		due, err = s.FetchDueWebhookDeliveries(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		items, _, err := s.ListWebhookDeliveries(ctx, "t1", StatusRetry, "", 10)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "boom", items[0]["lastError"])
		assert.Equal(t, 1, items[0]["attempts"])

		require.NoError(t, s.RetryWebhookDelivery(ctx, "t1", id))
		assert.ErrorIs(t, s.RetryWebhookDelivery(ctx, "t2", id), ErrNotFound)
		due, err = s.FetchDueWebhookDeliveries(ctx, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)

		require.NoError(t, s.FailWebhookDelivery(ctx, id, "gone", 410, 3))
		dlq, _, err := s.ListWebhookDLQ(ctx, "t1", "", 10)
		require.NoError(t, err)
		require.Len(t, dlq, 1)
		assert.Equal(t, id, dlq[0]["deliveryId"])
		assert.Equal(t, 410, dlq[0]["responseCode"])
		assert.Equal(t, 2, dlq[0]["attempts"])

		other, _, err := s.ListWebhookDLQ(ctx, "t2", "", 10)
		require.NoError(t, err)
		assert.Empty(t, other)

		items, _, err = s.ListWebhookDeliveries(ctx, "t1", "", "", 10)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, StatusFailed, items[0]["status"])
	})

	t.Run("delivered", func(t *testing.T) {
		s := open(t)
		id, err := s.EnqueueWebhook(ctx, "t1", "sub", "solve.completed", "http://a", "k", []byte(`{"id":"evt_2"}`))
		require.NoError(t, err)
		require.NoError(t, s.MarkWebhookDelivery(ctx, id, true, nil, "", 204, 5))
		items, _, err := s.ListWebhookDeliveries(ctx, "t1", StatusDelivered, "", 10)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 204, items[0]["responseCode"])
		assert.NotContains(t, items[0], "nextAttemptAt")
	})
}

func mustLimit(t *testing.T, q model.Quantity) int64 {
	t.Helper()
	v, ok := q.Capacity().Value()
	require.True(t, ok)
	return v
}
