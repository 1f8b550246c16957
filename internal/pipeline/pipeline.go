// Package pipeline implements the cross-cutting operation pipeline from
// spec §4.5: every app-initiated operation (connect, sign, rpc) is routed
// through the same rate-limit -> circuit-breaker -> state-transition ->
// risk-analysis -> timed-dispatch -> record/emit sequence rather than each
// caller re-composing internal/ratelimit, internal/reliability and
// internal/security by hand. The composition style (a single Execute
// wrapping an arbitrary call with gate/record bookkeeping) follows
// internal/reliability.CircuitBreaker.Execute, generalized to the full
// seven-step sequence instead of just the breaker gate.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/audit"
	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
	"github.com/ShadowCorp-Dev/nearconnect/internal/ratelimit"
	"github.com/ShadowCorp-Dev/nearconnect/internal/reliability"
	"github.com/ShadowCorp-Dev/nearconnect/internal/security"
)

// OperationKind selects the rate-limit bucket an operation is checked
// against (spec §4.5 step 1's "connect", "sign", "rpc" kinds).
type OperationKind string

const (
	OpConnect OperationKind = "connect"
	OpSign    OperationKind = "sign"
	OpRPC     OperationKind = "rpc"
)

// Config wires the primitives Orchestrator composes. A nil field skips
// that stage entirely (a Request with no Tx skips risk analysis the same
// way; Breaker/Limiter/Audit being nil is mainly useful for unit-testing
// one stage of the pipeline in isolation).
type Config struct {
	Limiter *ratelimit.Limiter
	Breaker *reliability.CircuitBreaker
	Risk    *security.Analyzer
	Audit   *audit.Log
	Timeout time.Duration
}

// NewConfig returns the documented default: a 15s dispatch timeout.
func NewConfig() Config {
	return Config{Timeout: 15 * time.Second}
}

// Orchestrator drives every app-initiated operation through the
// cross-cutting pipeline, holding one internal/reliability.StateMachine
// per wallet so transitions stay totally ordered per spec §5.
type Orchestrator struct {
	cfg Config
	sms *stateMachines
}

// New constructs an Orchestrator bound to cfg.
func New(cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Orchestrator{cfg: cfg, sms: newStateMachines()}
}

// StateMachine returns (creating on first use) the state machine driving
// walletID's connection-state transitions.
func (o *Orchestrator) StateMachine(walletID string) *reliability.StateMachine {
	return o.sms.get(walletID)
}

// Request describes one pipeline run.
type Request struct {
	WalletID  string
	AccountID string
	Kind      OperationKind

	// InFlight is the state to transition to before dispatch (e.g.
	// Connecting, Signing); empty skips the pre-dispatch transition.
	// Settled is the state to transition to after a successful dispatch;
	// empty leaves the state machine in InFlight.
	InFlight model.ConnectionStateKind
	Settled  model.ConnectionStateKind
	Reason   string

	// Txs is non-empty only for signing paths (one entry for a single
	// SignAndSendTransaction, several for a SignAndSendTransactions
	// batch). The worst assessment across all entries gates dispatch; a
	// Critical assessment on any one of them aborts the whole call before
	// dispatch, emitting AuditTxBlocked. The InFlight transition has
	// already happened by then, so the state machine is settled to Error.
	Txs []security.Transaction

	SuccessEvent model.AuditEventType
	FailureEvent model.AuditEventType

	// Dispatch performs the actual driver call under the pipeline's
	// timeout budget.
	Dispatch func(ctx context.Context) (any, error)
}

// Run executes req through the full cross-cutting pipeline (spec §4.5)
// and returns Dispatch's result.
func (o *Orchestrator) Run(ctx context.Context, req Request) (any, error) {
	// Step 1: rate-limit the operation kind.
	if o.cfg.Limiter != nil {
		key := string(req.Kind)
		if req.WalletID != "" {
			key = key + ":" + req.WalletID
		}
		if res := o.cfg.Limiter.Check(key); !res.Allowed {
			err := nearerr.New(nearerr.ConnectionTimeout, "rate limit exceeded for "+key, nil, nearerr.RecoveryRetry).
				WithWallet(req.WalletID).WithCooldown(res.RetryAfter)
			o.record(req.WalletID, req.AccountID, model.AuditRateLimited, err)
			return nil, err
		}
	}

	// Step 2: circuit breaker gate on walletId.
	if o.cfg.Breaker != nil && !o.cfg.Breaker.IsAllowed(req.WalletID) {
		remaining := o.cfg.Breaker.RemainingCooldown(req.WalletID)
		err := nearerr.New(nearerr.ConnectionTimeout, "circuit open for "+req.WalletID, nil, nearerr.RecoveryRetry).
			WithWallet(req.WalletID).WithCooldown(remaining)
		return nil, err
	}

	sm := o.sms.get(req.WalletID)

	// Step 3: state machine transition to the in-flight state.
	if req.InFlight != "" {
		if err := sm.Transition(model.ConnectionState{Kind: req.InFlight}, req.Reason); err != nil {
			return nil, err
		}
	}

	// Step 4: risk analysis, signing paths only. Critical risk on any
	// transaction in the batch aborts before the driver is ever invoked.
	if len(req.Txs) > 0 && o.cfg.Risk != nil {
		var reasons []string
		critical := false
		for _, tx := range req.Txs {
			assessment := o.cfg.Risk.AnalyzeRisk(tx)
			reasons = append(reasons, assessment.Reasons...)
			if assessment.Level == model.RiskCritical {
				critical = true
			}
		}
		if critical {
			err := nearerr.New(nearerr.InvalidTransaction, "transaction blocked: "+strings.Join(reasons, "; "), nil).
				WithWallet(req.WalletID)
			o.record(req.WalletID, req.AccountID, model.AuditTxBlocked, err)
			o.settleError(sm, req.Reason)
			return nil, err
		}
	}

	// Step 5: dispatch to the driver under a timeout.
	result, dispatchErr := reliability.WithTimeout(func() (any, error) {
		return req.Dispatch(ctx)
	}, o.cfg.Timeout, string(req.Kind), nil, 0)

	if dispatchErr == nil {
		// Step 6: success path.
		if o.cfg.Breaker != nil {
			o.cfg.Breaker.RecordSuccess(req.WalletID)
		}
		if req.Settled != "" {
			_ = sm.Transition(model.ConnectionState{Kind: req.Settled, WalletID: req.WalletID}, req.Reason)
		}
		o.record(req.WalletID, req.AccountID, req.SuccessEvent, nil)
		return result, nil
	}

	// Step 7: failure path.
	wrapped := nearerr.Wrap(dispatchErr).WithWallet(req.WalletID)
	if o.cfg.Breaker != nil && wrapped.Kind != nearerr.UserRejected {
		o.cfg.Breaker.RecordFailure(req.WalletID)
	}
	o.settleError(sm, req.Reason)
	o.record(req.WalletID, req.AccountID, req.FailureEvent, wrapped)
	return nil, wrapped
}

// settleError best-effort transitions sm to Error; an already-terminal or
// otherwise illegal transition is not itself an error worth surfacing,
// since the caller is already unwinding a failure.
func (o *Orchestrator) settleError(sm *reliability.StateMachine, reason string) {
	_ = sm.Transition(model.ConnectionState{Kind: model.StateError}, reason)
}

// record appends an audit event when both a Log and a non-empty event
// type are configured; err (if any) is attached via Data.
func (o *Orchestrator) record(walletID, accountID string, evtType model.AuditEventType, err error) {
	if o.cfg.Audit == nil || evtType == "" {
		return
	}
	evt := model.AuditEvent{
		Type:      evtType,
		WalletID:  walletID,
		AccountID: accountID,
	}
	if err != nil {
		evt.Data = map[string]any{"error": err.Error()}
	}
	o.cfg.Audit.Record(evt)
}
