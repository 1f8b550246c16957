package rpcclient

import (
	"sync"
	"time"
)

// endpointHealth tracks one RPC endpoint's recent call history. The
// circuit-breaker bookkeeping (lifetime failure/success totals,
// open-circuit window) follows src/chainadapter/rpc/health.go's
// SimpleHealthTracker; BlockHeight/heightObservedAt has no teacher
// analogue — it exists because a NEAR full node can be perfectly
// reachable and fast (cheap to score well on latency/success rate
// alone) while still syncing behind chain head, silently serving stale
// `view_access_key`/`block` results. Endpoint selection has to weigh
// that separately from reachability.
type endpointHealth struct {
	TotalCalls      int64
	SuccessfulCalls int64
	FailedCalls     int64
	AvgLatencyMs    int64
	LastSuccess     int64
	LastFailure     int64
	CircuitOpen     bool

	BlockHeight      uint64
	HeightObservedAt int64
}

// HealthTracker is a drop-in replacement point for the default tracker;
// tests substitute a fake to force failover paths deterministically.
type HealthTracker interface {
	RecordSuccess(endpoint string, durationMs int64)
	RecordFailure(endpoint string, err error)
	RecordBlockHeight(endpoint string, height uint64)
	IsHealthy(endpoint string) bool
	GetBestEndpoint(endpoints []string, attempted map[string]bool) string
	Reset(endpoint string)
}

// SimpleHealthTracker implements HealthTracker with the same
// failure/success circuit breaker thresholds as the teacher's
// chain-adapter RPC layer: the circuit opens once an endpoint's failed
// calls outnumber its successful ones by failureThreshold, and closes once
// successes outnumber failures by successThreshold. Both compare lifetime
// totals, not runs of consecutive calls. It adds a sync-lag penalty in its
// scoring that the teacher's single-chain-head-agnostic tracker has no
// reason to carry.
type SimpleHealthTracker struct {
	mu     sync.RWMutex
	health map[string]*endpointHealth

	failureThreshold  int
	successThreshold  int
	circuitOpenWindow time.Duration

	// heightStaleWindow bounds how long a reported block height is
	// trusted as current before it stops counting toward freshness —
	// an endpoint that hasn't reported a height recently is scored as
	// unknown-freshness (neutral), not penalized as stale forever.
	heightStaleWindow time.Duration
}

func NewSimpleHealthTracker() *SimpleHealthTracker {
	return &SimpleHealthTracker{
		health:            make(map[string]*endpointHealth),
		failureThreshold:  3,
		successThreshold:  2,
		circuitOpenWindow: 30 * time.Second,
		heightStaleWindow: 2 * time.Minute,
	}
}

func (t *SimpleHealthTracker) getOrCreate(endpoint string) *endpointHealth {
	h, ok := t.health[endpoint]
	if !ok {
		h = &endpointHealth{}
		t.health[endpoint] = h
	}
	return h
}

func (t *SimpleHealthTracker) RecordSuccess(endpoint string, durationMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.getOrCreate(endpoint)
	h.TotalCalls++
	h.SuccessfulCalls++
	h.LastSuccess = time.Now().Unix()

	if h.AvgLatencyMs == 0 {
		h.AvgLatencyMs = durationMs
	} else {
		h.AvgLatencyMs = (h.AvgLatencyMs*9 + durationMs) / 10
	}

	if h.CircuitOpen {
		consecutive := h.SuccessfulCalls - h.FailedCalls
		if consecutive >= int64(t.successThreshold) {
			h.CircuitOpen = false
		}
	}
}

func (t *SimpleHealthTracker) RecordFailure(endpoint string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.getOrCreate(endpoint)
	h.TotalCalls++
	h.FailedCalls++
	h.LastFailure = time.Now().Unix()

	consecutive := h.FailedCalls - h.SuccessfulCalls
	if consecutive >= int64(t.failureThreshold) {
		h.CircuitOpen = true
	}
}

// RecordBlockHeight records the chain height endpoint reported on its
// most recent successful `block` call, used by GetBestEndpoint to
// penalize nodes that are reachable but behind head.
func (t *SimpleHealthTracker) RecordBlockHeight(endpoint string, height uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h := t.getOrCreate(endpoint)
	if height > h.BlockHeight {
		h.BlockHeight = height
	}
	h.HeightObservedAt = time.Now().Unix()
}

func (t *SimpleHealthTracker) IsHealthy(endpoint string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isHealthyLocked(endpoint)
}

// GetBestEndpoint picks the healthiest endpoint not yet in attempted,
// scoring success rate, latency, and sync freshness (how far the
// endpoint's last reported height trails the highest height seen across
// all endpoints). A node that is fast and error-free but stuck behind
// head still loses to one with a slightly worse latency but a current
// view of the chain, since the former can serve plausible-looking but
// stale nonces and balances.
func (t *SimpleHealthTracker) GetBestEndpoint(endpoints []string, attempted map[string]bool) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var maxHeight uint64
	for _, ep := range endpoints {
		if h, ok := t.health[ep]; ok && h.BlockHeight > maxHeight {
			maxHeight = h.BlockHeight
		}
	}

	var best string
	bestScore := -1.0
	for _, ep := range endpoints {
		if attempted[ep] {
			continue
		}
		if !t.isHealthyLocked(ep) {
			continue
		}

		h, ok := t.health[ep]
		if !ok {
			return ep
		}
		successRate := 1.0
		if h.TotalCalls > 0 {
			successRate = float64(h.SuccessfulCalls) / float64(h.TotalCalls)
		}
		latencyFactor := 1.0 / (float64(h.AvgLatencyMs) + 1.0)
		freshnessFactor := t.freshnessFactorLocked(h, maxHeight)

		score := successRate*0.5 + latencyFactor*0.2 + freshnessFactor*0.3
		if score > bestScore {
			bestScore = score
			best = ep
		}
	}
	return best
}

// freshnessFactorLocked returns 1.0 when an endpoint is at or above the
// observed chain head, decaying toward 0 as its lag grows, and a
// neutral 0.5 when no height has been reported recently (not yet
// measured, so neither rewarded nor punished).
func (t *SimpleHealthTracker) freshnessFactorLocked(h *endpointHealth, maxHeight uint64) float64 {
	if maxHeight == 0 || h.HeightObservedAt == 0 {
		return 0.5
	}
	if time.Now().Unix()-h.HeightObservedAt > int64(t.heightStaleWindow.Seconds()) {
		return 0.5
	}
	if h.BlockHeight >= maxHeight {
		return 1.0
	}
	lag := maxHeight - h.BlockHeight
	// 10 blocks (~10s at NEAR's ~1s block time) of lag halves the
	// factor; beyond that it keeps decaying toward 0 rather than
	// clamping, so a badly desynced node never outscores a synced one.
	return 1.0 / (1.0 + float64(lag)/10.0)
}

func (t *SimpleHealthTracker) isHealthyLocked(endpoint string) bool {
	h, ok := t.health[endpoint]
	if !ok {
		return true
	}
	if h.CircuitOpen {
		elapsed := time.Now().Unix() - h.LastFailure
		if elapsed < int64(t.circuitOpenWindow.Seconds()) {
			return false
		}
	}
	return true
}

func (t *SimpleHealthTracker) Reset(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.health, endpoint)
}
