package session

import (
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/securestorage"
)

const stateKey = "state"

// persistedConnectionState is the JSON shape written under `<ns>:state`.
// model.ConnectionState.Err is an `error` interface and is only ever
// non-nil for the Error/Reconnecting kinds, neither of which this store
// ever persists (only Connected is restorable per spec §6.3), so it is
// dropped rather than round-tripped.
type persistedConnectionState struct {
	Kind      model.ConnectionStateKind `json:"kind"`
	WalletID  string                    `json:"walletId"`
	Accounts  []model.Account           `json:"accounts"`
	Timestamp time.Time                 `json:"timestamp"`
}

// StateConfig tunes how old a persisted connection state may be before
// it is treated as stale and discarded on restore.
type StateConfig struct {
	MaxAge time.Duration
}

// NewStateConfig returns the documented default: a persisted `connected`
// state older than one hour is not trusted, since by then the
// underlying wallet connection has almost certainly moved on (locked,
// disconnected, or superseded) without this tab observing it.
func NewStateConfig() StateConfig {
	return StateConfig{MaxAge: time.Hour}
}

// StateStore persists and restores the `<ns>:state` key: a snapshot of
// the connection state machine's current Kind, written only when it
// reaches Connected and restorable only while still Connected and
// within MaxAge — matching spec §6.3 ("only `connected` restored;
// dropped when older than TTL"), the same TTL-gated restore shape as
// Store.Restore for `<ns>:session`.
type StateStore struct {
	cfg     StateConfig
	backing *securestorage.Store
}

// NewStateStore constructs a StateStore bound to backing.
func NewStateStore(cfg StateConfig, backing *securestorage.Store) *StateStore {
	if cfg.MaxAge <= 0 {
		cfg = NewStateConfig()
	}
	return &StateStore{cfg: cfg, backing: backing}
}

// Save persists state if its Kind is Connected; any other Kind clears
// the persisted entry instead, since transient states are never
// restorable and leaving a stale one in storage would only let a later
// restore wrongly resurrect it.
func (s *StateStore) Save(state model.ConnectionState) error {
	if state.Kind != model.StateConnected {
		s.backing.Delete(stateKey)
		return nil
	}
	p := persistedConnectionState{
		Kind:      state.Kind,
		WalletID:  state.WalletID,
		Accounts:  state.Accounts,
		Timestamp: time.Now(),
	}
	return s.backing.Set(stateKey, p, securestorage.SetOptions{Encrypt: true})
}

// Restore loads the persisted connection state, discarding (and
// clearing) anything not Connected or older than MaxAge.
func (s *StateStore) Restore() (model.ConnectionState, bool, error) {
	var p persistedConnectionState
	ok, err := s.backing.Get(stateKey, &p)
	if err != nil || !ok {
		return model.ConnectionState{}, false, err
	}

	if p.Kind != model.StateConnected {
		s.backing.Delete(stateKey)
		return model.ConnectionState{}, false, nil
	}
	if time.Since(p.Timestamp) > s.cfg.MaxAge {
		s.backing.Delete(stateKey)
		return model.ConnectionState{}, false, nil
	}

	return model.ConnectionState{
		Kind:      p.Kind,
		WalletID:  p.WalletID,
		Accounts:  p.Accounts,
		Timestamp: p.Timestamp,
	}, true, nil
}

// Clear removes the persisted connection state.
func (s *StateStore) Clear() {
	s.backing.Delete(stateKey)
}
