package opt

import "sync"

type statsKey struct {
	Tenant    string
	ProblemID string
	Algo      Algorithm
}

var (
	mu    sync.Mutex
	store = map[statsKey]Stats{}
)

// RecordStats keeps the latest stats for a tenant's problem and algorithm.
func RecordStats(tenant, problemID string, s Stats) {
	mu.Lock()
	store[statsKey{Tenant: tenant, ProblemID: problemID, Algo: s.Algorithm}] = s
	mu.Unlock()
}

// LastStats returns the recorded stats of a problem keyed by algorithm.
func LastStats(tenant, problemID string) map[Algorithm]Stats {
	mu.Lock()
	defer mu.Unlock()
	out := map[Algorithm]Stats{}
	for k, v := range store {
		if k.Tenant == tenant && k.ProblemID == problemID {
			out[k.Algo] = v
		}
	}
	return out
}
