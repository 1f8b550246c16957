package pipeline

import (
	"sync"

	"github.com/ShadowCorp-Dev/nearconnect/internal/reliability"
)

// stateMachines lazily creates and holds one reliability.StateMachine per
// wallet, guarded by a single mutex (same per-key-mutator shape as
// ratelimit.Limiter and reliability.CircuitBreaker).
type stateMachines struct {
	mu  sync.Mutex
	all map[string]*reliability.StateMachine
}

func newStateMachines() *stateMachines {
	return &stateMachines{all: make(map[string]*reliability.StateMachine)}
}

func (s *stateMachines) get(walletID string) *reliability.StateMachine {
	s.mu.Lock()
	defer s.mu.Unlock()
	sm, ok := s.all[walletID]
	if !ok {
		sm = reliability.NewStateMachine(reliability.NewStateMachineConfig())
		s.all[walletID] = sm
	}
	return sm
}
