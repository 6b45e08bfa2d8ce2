package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tevino/abool"

	"vrpsolver/internal/config"
	"vrpsolver/internal/metrics"
	"vrpsolver/internal/store"
)

// Worker polls the store for due deliveries and POSTs them. Deliveries that
// fail MaxAttempts times are moved to the DLQ.
type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	MaxAttempts int
	Interval    time.Duration
	BatchSize   int

	running *abool.AtomicBool
	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	log     *log.Entry
}

func NewWorker(s store.Store, c config.Webhooks) *Worker {
	w := &Worker{
		Store:       s,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: c.MaxAttempts,
		Interval:    c.PollInterval,
		BatchSize:   c.BatchSize,
	}
	w.init()
	return w
}

func (w *Worker) init() {
	if w.running == nil {
		w.running = abool.New()
	}
	if w.log == nil {
		w.log = log.WithField("component", "webhooks")
	}
	if w.MaxAttempts <= 0 {
		w.MaxAttempts = 10
	}
	if w.Interval <= 0 {
		w.Interval = time.Second
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 50
	}
	if w.HTTP == nil {
		w.HTTP = &http.Client{Timeout: 5 * time.Second}
	}
}

// Running reports whether the poll loop is active.
func (w *Worker) Running() bool { return w.running != nil && w.running.IsSet() }

// Start launches the poll loop. Calling Start on a running worker is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.init()
	if !w.running.SetToIf(false, true) {
		return
	}
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(w.stop, w.done)
	w.log.WithField("interval", w.Interval).Info("webhook worker started")
}

// Stop ends the poll loop and waits for the in-flight batch.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running == nil || !w.running.SetToIf(true, false) {
		return
	}
	close(w.stop)
	<-w.done
	w.log.Info("webhook worker stopped")
}

func (w *Worker) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.processOnce()
		}
	}
}

func (w *Worker) processOnce() int {
	w.init()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, w.BatchSize)
	if err != nil {
		w.log.WithError(err).Warn("fetch due deliveries failed")
		return 0
	}
	for _, it := range items {
		w.deliver(ctx, it)
	}
	return len(items)
}

func (w *Worker) deliver(ctx context.Context, it store.WebhookDelivery) {
	entry := w.log.WithFields(log.Fields{"delivery": it.ID, "event": it.EventType, "attempt": it.Attempts + 1})
	success := false
	code := 0
	lastErr := ""
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
	if err == nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(EventTypeHeader, it.EventType)
		if it.Secret != "" {
			req.Header.Set(SignatureHeader, SignHMAC(it.Secret, it.Payload))
		}
		var resp *http.Response
		resp, err = w.HTTP.Do(req)
		if err == nil {
			code = resp.StatusCode
			_ = resp.Body.Close()
			success = code >= 200 && code < 300
			if !success {
				lastErr = http.StatusText(code)
			}
		}
	}
	if err != nil {
		lastErr = err.Error()
	}
	latency := int(time.Since(start).Milliseconds())

	status := store.StatusDelivered
	switch {
	case success:
		err = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
	case it.Attempts+1 >= w.MaxAttempts:
		status = store.StatusFailed
		entry.WithField("code", code).Warnf("webhook delivery failed permanently: %s", lastErr)
		err = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
	default:
		status = store.StatusRetry
		next := time.Now().Add(nextBackoff(it.Attempts))
		entry.WithFields(log.Fields{"code": code, "next": next}).Warnf("webhook delivery failed: %s", lastErr)
		err = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
	}
	if err != nil {
		entry.WithError(err).Error("recording delivery outcome failed")
	}
	metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
	metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
