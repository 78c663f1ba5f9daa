package station

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// failureMonitor tracks verification failures per sender. A token bucket per
// station id absorbs occasional honest mistakes (wrong stick, stale file);
// once a sender burns through its budget the service escalates log severity,
// which is the "repeated TrustError" signal operators are told to watch.
type failureMonitor struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*failureEntry
	hits  uint64
}

type failureEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newFailureMonitor() *failureMonitor {
	return &failureMonitor{
		// Three quick failures are tolerated, then one per ten minutes.
		limit:   rate.Every(10 * time.Minute),
		burst:   3,
		idleTTL: 24 * time.Hour,
		byKey:   make(map[string]*failureEntry),
	}
}

// record notes one failure for key at now and reports whether the sender is
// still within its budget. false means heightened logging.
func (m *failureMonitor) record(key string, now time.Time) bool {
	if m == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byKey[key]
	if !ok {
		e = &failureEntry{
			limiter:  rate.NewLimiter(m.limit, m.burst),
			lastSeen: now,
		}
		m.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	m.hits++
	if m.hits%256 == 0 {
		cutoff := now.Add(-m.idleTTL)
		for k, v := range m.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(m.byKey, k)
			}
		}
	}
	return allowed
}
