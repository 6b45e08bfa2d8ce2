package api

import (
    "bufio"
    "fmt"
    "net"
    "net/http"
    "runtime/debug"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    log "github.com/sirupsen/logrus"
    "golang.org/x/time/rate"

    "vrpsolver/internal/config"
    "vrpsolver/internal/logging"
    "vrpsolver/internal/metrics"
)

const requestIDHeader = "X-Request-Id"

// statusRecorder captures the response status. It passes Flush and Hijack
// through so SSE and WebSocket handlers keep working behind the middleware.
type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (rw *statusRecorder) WriteHeader(code int) {
    rw.status = code
    rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Flush() {
    if f, ok := rw.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := rw.ResponseWriter.(http.Hijacker)
    if !ok { return nil, nil, fmt.Errorf("hijack not supported") }
    return h.Hijack()
}

// requestID assigns X-Request-Id and a request-scoped log entry.
func (s *Server) requestID(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        id := r.Header.Get(requestIDHeader)
        if id == "" { id = uuid.New().String() }
        w.Header().Set(requestIDHeader, id)
        entry := s.log.WithField("request_id", id)
        next.ServeHTTP(w, r.WithContext(logging.WithContext(r.Context(), entry)))
    })
}

// accessLog logs every request and records the HTTP metrics.
func accessLog(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rw, r)
        dur := time.Since(start)
        code := strconv.Itoa(rw.status)
        path := routeLabel(r.URL.Path)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(dur.Seconds())
        logging.FromContext(r.Context()).WithFields(log.Fields{
            "method":   r.Method,
            "path":     r.URL.Path,
            "status":   rw.status,
            "duration": dur,
            "remote":   r.RemoteAddr,
        }).Info("request")
    })
}

// routeLabel replaces resource ids with {id} to bound metric cardinality.
func routeLabel(path string) string {
    parts := strings.Split(path, "/")
    for i := 1; i < len(parts); i++ {
        switch parts[i-1] {
        case "problems", "subscriptions", "webhook-deliveries":
            if parts[i] != "" { parts[i] = "{id}" }
        }
    }
    return strings.Join(parts, "/")
}

// recoverer turns a handler panic into a 500 problem response.
func recoverer(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if v := recover(); v != nil {
                if v == http.ErrAbortHandler { panic(v) }
                logging.FromContext(r.Context()).WithField("panic", v).Errorf("handler panic\n%s", debug.Stack())
                writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "", r.URL.Path)
            }
        }()
        next.ServeHTTP(w, r)
    })
}

// tenantLimiter keeps one token bucket per tenant.
type tenantLimiter struct {
    mu       sync.Mutex
    rps      rate.Limit
    burst    int
    limiters map[string]*rate.Limiter
}

// newTenantLimiter returns nil when RPS is 0, which disables limiting.
func newTenantLimiter(c config.Rate) *tenantLimiter {
    if c.RPS <= 0 { return nil }
    burst := c.Burst
    if burst <= 0 { burst = 1 }
    return &tenantLimiter{rps: rate.Limit(c.RPS), burst: burst, limiters: map[string]*rate.Limiter{}}
}

func (l *tenantLimiter) allow(key string) bool {
    l.mu.Lock()
    lim, ok := l.limiters[key]
    if !ok {
        lim = rate.NewLimiter(l.rps, l.burst)
        l.limiters[key] = lim
    }
    l.mu.Unlock()
    return lim.Allow()
}

// rateLimit rejects requests over the caller's tenant budget with 429.
// Unauthenticated callers are keyed by remote host.
func (s *Server) rateLimit(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if s.limiter == nil || r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
            next.ServeHTTP(w, r)
            return
        }
        key := s.getPrincipal(r).Tenant
        if key == "" {
            host, _, err := net.SplitHostPort(r.RemoteAddr)
            if err != nil { host = r.RemoteAddr }
            key = "ip:" + host
        }
        if !s.limiter.allow(key) {
            metrics.RateLimited.Inc()
            w.Header().Set("Retry-After", "1")
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded for "+key, r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}

// cors allows the configured origins; "*" allows any.
func (s *Server) cors(next http.Handler) http.Handler {
    allowed := map[string]bool{}
    for _, o := range s.Config.AllowOrigins { allowed[o] = true }
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        origin := r.Header.Get("Origin")
        if origin != "" && (allowed["*"] || allowed[origin]) {
            w.Header().Set("Access-Control-Allow-Origin", origin)
            w.Header().Add("Vary", "Origin")
            w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
            w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Tenant-Id, X-Role, X-Request-Id")
            if r.Method == http.MethodOptions {
                w.WriteHeader(http.StatusNoContent)
                return
            }
        }
        next.ServeHTTP(w, r)
    })
}
