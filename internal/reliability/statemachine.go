package reliability

import (
	"sync"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
)

// transitionTable is the fixed allowed-next-state table from spec §4.1.
var transitionTable = map[model.ConnectionStateKind]map[model.ConnectionStateKind]bool{
	model.StateIdle: {
		model.StateDetecting:  true,
		model.StateConnecting: true,
	},
	model.StateDetecting: {
		model.StateConnecting: true,
		model.StateError:      true,
		model.StateIdle:       true,
	},
	model.StateConnecting: {
		model.StateAuthenticating: true,
		model.StateConnected:      true,
		model.StateError:          true,
		model.StateIdle:           true,
	},
	model.StateAuthenticating: {
		model.StateConnected: true,
		model.StateError:     true,
		model.StateIdle:      true,
	},
	model.StateConnected: {
		model.StateSigning:      true,
		model.StateDisconnecting: true,
		model.StateReconnecting: true,
		model.StateError:        true,
	},
	model.StateSigning: {
		model.StateConnected: true,
		model.StateError:     true,
	},
	model.StateReconnecting: {
		model.StateConnected: true,
		model.StateError:     true,
		model.StateIdle:      true,
	},
	model.StateDisconnecting: {
		model.StateIdle:  true,
		model.StateError: true,
	},
	model.StateError: {
		model.StateIdle:         true,
		model.StateConnecting:   true,
		model.StateReconnecting: true,
	},
}

// stableStates are the states waitForStable resolves on.
var stableStates = map[model.ConnectionStateKind]bool{
	model.StateIdle:      true,
	model.StateConnected: true,
	model.StateError:     true,
}

// TransitionRecord is one entry in the bounded history ring.
type TransitionRecord struct {
	From      model.ConnectionStateKind
	To        model.ConnectionStateKind
	At        time.Time
	Reason    string
}

// StateMachineConfig tunes the history ring capacity.
type StateMachineConfig struct {
	HistoryCapacity int
}

// NewStateMachineConfig returns the documented default: 50 history entries.
func NewStateMachineConfig() StateMachineConfig {
	return StateMachineConfig{HistoryCapacity: 50}
}

// StateMachine owns one wallet's connection state and enforces the fixed
// transition table. Enter/exit/transition hooks fire in that order.
type StateMachine struct {
	mu      sync.Mutex
	cfg     StateMachineConfig
	current model.ConnectionState
	history []TransitionRecord

	onExit       func(from model.ConnectionState)
	onEnter      func(to model.ConnectionState)
	onTransition func(rec TransitionRecord)
	onInvalid    func(from, to model.ConnectionStateKind)

	waiters []chan model.ConnectionState
}

// NewStateMachine starts in Idle.
func NewStateMachine(cfg StateMachineConfig) *StateMachine {
	if cfg.HistoryCapacity <= 0 {
		cfg = NewStateMachineConfig()
	}
	return &StateMachine{
		cfg:     cfg,
		current: model.ConnectionState{Kind: model.StateIdle, Timestamp: time.Now()},
	}
}

// OnExit, OnEnter, OnTransition, OnInvalid register the hooks invoked around
// a transition. Each accepts a single callback; later calls replace it.
func (sm *StateMachine) OnExit(f func(from model.ConnectionState))       { sm.onExit = f }
func (sm *StateMachine) OnEnter(f func(to model.ConnectionState))        { sm.onEnter = f }
func (sm *StateMachine) OnTransition(f func(rec TransitionRecord))       { sm.onTransition = f }
func (sm *StateMachine) OnInvalid(f func(from, to model.ConnectionStateKind)) { sm.onInvalid = f }

// Current returns a copy of the current state.
func (sm *StateMachine) Current() model.ConnectionState {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.current
}

// TimeInState returns how long the machine has held its current state.
func (sm *StateMachine) TimeInState() time.Duration {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return time.Since(sm.current.Timestamp)
}

// Transition attempts to move to next. Illegal transitions fail loudly
// (returning an UNKNOWN_ERROR-kind error), notify onInvalid and leave the
// state unchanged.
func (sm *StateMachine) Transition(next model.ConnectionState, reason string) error {
	sm.mu.Lock()

	from := sm.current
	if !transitionTable[from.Kind][next.Kind] {
		sm.mu.Unlock()
		if sm.onInvalid != nil {
			sm.onInvalid(from.Kind, next.Kind)
		}
		return nearerr.New(nearerr.UnknownError, "illegal transition "+string(from.Kind)+" -> "+string(next.Kind), nil)
	}

	next.Timestamp = time.Now()
	sm.current = next

	rec := TransitionRecord{From: from.Kind, To: next.Kind, At: next.Timestamp, Reason: reason}
	sm.history = append(sm.history, rec)
	if len(sm.history) > sm.cfg.HistoryCapacity {
		sm.history = sm.history[len(sm.history)-sm.cfg.HistoryCapacity:]
	}

	var toNotify []chan model.ConnectionState
	if stableStates[next.Kind] {
		toNotify = sm.waiters
		sm.waiters = nil
	}
	sm.mu.Unlock()

	if sm.onEnter != nil {
		sm.onEnter(next)
	}
	if sm.onExit != nil {
		sm.onExit(from)
	}
	if sm.onTransition != nil {
		sm.onTransition(rec)
	}
	for _, ch := range toNotify {
		ch <- next
	}
	return nil
}

// History returns a copy of the bounded transition history.
func (sm *StateMachine) History() []TransitionRecord {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]TransitionRecord, len(sm.history))
	copy(out, sm.history)
	return out
}

// WaitForStable blocks until the next {Idle, Connected, Error} state, or
// until timeout elapses (returning an error in that case).
func (sm *StateMachine) WaitForStable(timeout time.Duration) (model.ConnectionState, error) {
	sm.mu.Lock()
	if stableStates[sm.current.Kind] {
		cur := sm.current
		sm.mu.Unlock()
		return cur, nil
	}
	ch := make(chan model.ConnectionState, 1)
	sm.waiters = append(sm.waiters, ch)
	sm.mu.Unlock()

	select {
	case s := <-ch:
		return s, nil
	case <-time.After(timeout):
		return model.ConnectionState{}, nearerr.New(nearerr.Timeout, "waitForStable timed out", nil)
	}
}
