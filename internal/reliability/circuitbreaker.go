package reliability

import (
	"sync"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
)

// CircuitBreakerConfig tunes the per-wallet breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int
	CooldownPeriod   time.Duration
}

// NewCircuitBreakerConfig returns the documented defaults: 5 consecutive
// failures opens the circuit, 30s cooldown before a half-open probe.
func NewCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		CooldownPeriod:   30 * time.Second,
	}
}

// CircuitBreaker gates calls per wallet key, rejecting while Open and
// admitting exactly one probe while HalfOpen.
type CircuitBreaker struct {
	mu      sync.Mutex
	cfg     CircuitBreakerConfig
	entries map[string]*model.CircuitEntry
	probing map[string]bool
}

// NewCircuitBreaker constructs a breaker with cfg (use NewCircuitBreakerConfig
// for defaults).
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		cfg:     cfg,
		entries: make(map[string]*model.CircuitEntry),
		probing: make(map[string]bool),
	}
}

func (cb *CircuitBreaker) getOrCreate(walletID string) *model.CircuitEntry {
	e, ok := cb.entries[walletID]
	if !ok {
		e = &model.CircuitEntry{State: model.CircuitClosed}
		cb.entries[walletID] = e
	}
	return e
}

// maybeHalfOpen transitions an Open entry to HalfOpen once the cooldown has
// elapsed (must hold cb.mu).
func (cb *CircuitBreaker) maybeHalfOpen(walletID string, e *model.CircuitEntry) {
	if e.State == model.CircuitOpen && time.Since(e.OpenedAt) >= cb.cfg.CooldownPeriod {
		e.State = model.CircuitHalfOpen
	}
}

// IsAllowed reports whether a call to walletID may be dispatched right now.
// HalfOpen admits exactly one concurrent probe.
func (cb *CircuitBreaker) IsAllowed(walletID string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	e := cb.getOrCreate(walletID)
	cb.maybeHalfOpen(walletID, e)

	switch e.State {
	case model.CircuitClosed:
		return true
	case model.CircuitHalfOpen:
		if cb.probing[walletID] {
			return false
		}
		cb.probing[walletID] = true
		return true
	default: // Open
		return false
	}
}

// RemainingCooldown returns how long until an Open circuit may try a probe.
func (cb *CircuitBreaker) RemainingCooldown(walletID string) time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	e := cb.getOrCreate(walletID)
	if e.State != model.CircuitOpen {
		return 0
	}
	remaining := cb.cfg.CooldownPeriod - time.Since(e.OpenedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordSuccess notifies the breaker of a successful call. A HalfOpen probe
// success closes the circuit and resets the failure counter.
func (cb *CircuitBreaker) RecordSuccess(walletID string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	e := cb.getOrCreate(walletID)
	e.LastSuccessAt = time.Now()
	e.ConsecutiveFailures = 0
	if e.State == model.CircuitHalfOpen {
		e.State = model.CircuitClosed
		delete(cb.probing, walletID)
	}
}

// RecordFailure notifies the breaker of a failed call. Closed escalates to
// Open at FailureThreshold; HalfOpen reopens immediately on probe failure.
func (cb *CircuitBreaker) RecordFailure(walletID string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	e := cb.getOrCreate(walletID)
	e.LastFailureAt = time.Now()

	if e.State == model.CircuitHalfOpen {
		e.State = model.CircuitOpen
		e.OpenedAt = time.Now()
		delete(cb.probing, walletID)
		return
	}

	e.ConsecutiveFailures++
	if e.ConsecutiveFailures >= cb.cfg.FailureThreshold {
		e.State = model.CircuitOpen
		e.OpenedAt = time.Now()
	}
}

// Reset manually returns walletID to Closed and clears its counters.
func (cb *CircuitBreaker) Reset(walletID string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.entries[walletID] = &model.CircuitEntry{State: model.CircuitClosed}
	delete(cb.probing, walletID)
}

// State returns a copy of the wallet's current entry.
func (cb *CircuitBreaker) State(walletID string) model.CircuitEntry {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return *cb.getOrCreate(walletID)
}

// Execute gates fn behind the breaker: rejects immediately if not allowed,
// otherwise runs fn and records the outcome.
func (cb *CircuitBreaker) Execute(walletID string, fn func() (any, error)) (any, error) {
	if !cb.IsAllowed(walletID) {
		remaining := cb.RemainingCooldown(walletID)
		return nil, nearerr.New(nearerr.ConnectionTimeout, "circuit open for "+walletID, nil, nearerr.RecoveryRetry).
			WithWallet(walletID).WithCooldown(remaining)
	}

	result, err := fn()
	if err != nil {
		if nearerr.Wrap(err).Kind != nearerr.UserRejected {
			cb.RecordFailure(walletID)
		}
		return nil, err
	}
	cb.RecordSuccess(walletID)
	return result, nil
}
