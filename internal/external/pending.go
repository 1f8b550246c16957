// Package external implements the external-wallet request orchestrator
// from spec §4.4: deep-link dispatch, the WalletConnect relay client,
// the redirect flow, callback correlation, session persistence and
// mobile-only driver gating. The pending-request registry and its
// deadline handling are new (no teacher file correlates out-of-process
// callbacks), built in the mutex-guarded-map style used throughout the
// pack (internal/reliability.CircuitBreaker, internal/ratelimit.Limiter).
package external

import (
	"sync"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
)

// RequestKind tags what a pending external request is waiting on.
type RequestKind string

const (
	RequestConnect     RequestKind = "connect"
	RequestSign        RequestKind = "sign"
	RequestSignMessage RequestKind = "sign_message"
)

// pendingDeadline is the fixed timeout from spec §4.4: a deep-link/
// redirect request that never gets a callback is rejected after 5 min.
const pendingDeadline = 5 * time.Minute

// PendingRequest is one outstanding deep-link or redirect round trip,
// correlated by RequestID against the eventual callback.
type PendingRequest struct {
	RequestID string
	Kind      RequestKind
	WalletID  string
	EnqueuedAt time.Time
	Deadline   time.Time

	resolve func(result []byte)
	reject  func(err error)
}

// Registry tracks outstanding pending requests and rejects them once
// their deadline passes. A single mutator guards the map, matching
// spec §5's "Circuit entries are keyed by walletId; a single mutator"
// shared-resource rule generalized to request id.
type Registry struct {
	mu       sync.Mutex
	pending  map[string]*PendingRequest
	onExpire func(*PendingRequest)
}

func NewRegistry() *Registry {
	return &Registry{pending: make(map[string]*PendingRequest)}
}

// OnExpire registers a callback invoked when a pending request's deadline
// is reached before resolution (used to emit an "app not installed" or
// timeout hint).
func (r *Registry) OnExpire(f func(*PendingRequest)) {
	r.onExpire = f
}

// Register adds a pending request and returns a wait function that blocks
// until the request is resolved or rejected, or until the given timeout
// elapses (which yields a CONNECTION_TIMEOUT error).
func (r *Registry) Register(requestID string, kind RequestKind, walletID string) (wait func(timeout time.Duration) ([]byte, error)) {
	now := time.Now()
	resultCh := make(chan []byte, 1)
	errCh := make(chan error, 1)

	req := &PendingRequest{
		RequestID:  requestID,
		Kind:       kind,
		WalletID:   walletID,
		EnqueuedAt: now,
		Deadline:   now.Add(pendingDeadline),
		resolve:    func(result []byte) { resultCh <- result },
		reject:     func(err error) { errCh <- err },
	}

	r.mu.Lock()
	r.pending[requestID] = req
	r.mu.Unlock()

	return func(timeout time.Duration) ([]byte, error) {
		defer r.remove(requestID)
		select {
		case result := <-resultCh:
			return result, nil
		case err := <-errCh:
			return nil, err
		case <-time.After(timeout):
			return nil, nearerr.New(nearerr.ConnectionTimeout, "external wallet request timed out", nil, nearerr.RecoveryRetry)
		}
	}
}

func (r *Registry) remove(requestID string) {
	r.mu.Lock()
	delete(r.pending, requestID)
	r.mu.Unlock()
}

// Resolve completes a pending request with a successful result. Returns
// false if no matching pending request exists (already resolved,
// rejected, or unknown request id).
func (r *Registry) Resolve(requestID string, result []byte) bool {
	r.mu.Lock()
	req, ok := r.pending[requestID]
	delete(r.pending, requestID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	req.resolve(result)
	return true
}

// Reject completes a pending request with an error.
func (r *Registry) Reject(requestID string, err error) bool {
	r.mu.Lock()
	req, ok := r.pending[requestID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	req.reject(err)
	return true
}

// SweepExpired rejects and removes every pending request whose deadline
// has passed, invoking onExpire for each. Callers run this on a timer.
func (r *Registry) SweepExpired(now time.Time) {
	r.mu.Lock()
	var expired []*PendingRequest
	for id, req := range r.pending {
		if now.After(req.Deadline) {
			expired = append(expired, req)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()

	for _, req := range expired {
		req.reject(nearerr.New(nearerr.ConnectionTimeout, "pending external request expired", nil, nearerr.RecoveryRetry))
		if r.onExpire != nil {
			r.onExpire(req)
		}
	}
}

// Len returns the number of currently outstanding pending requests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
