// Package session implements session persistence and restore validation
// (spec §3 "Session", §6.3 persisted keys) and multi-tab cache-invalidation
// broadcast, layered on internal/securestorage.
package session

import (
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/securestorage"
)

// Config tunes max session age accepted on restore.
type Config struct {
	MaxAge time.Duration
}

// NewConfig returns the documented default: sessions older than 30 days
// are rejected on restore.
func NewConfig() Config {
	return Config{MaxAge: 30 * 24 * time.Hour}
}

const sessionKey = "session"

// Store persists and restores Session records through a secure-storage
// envelope, and fans out invalidation notices to registered listeners —
// the Go-native analogue of a BroadcastChannel between tabs.
type Store struct {
	cfg     Config
	backing *securestorage.Store

	listeners []func(model.Session)
}

// New constructs a Store bound to backing (the envelope already scoped to
// this runtime's namespace and session secret).
func New(cfg Config, backing *securestorage.Store) *Store {
	if cfg.MaxAge <= 0 {
		cfg = NewConfig()
	}
	return &Store{cfg: cfg, backing: backing}
}

// OnInvalidate registers a listener invoked whenever Save is called —
// modeling a BroadcastChannel message to other tabs. Per spec's
// shared-resource rule, receiving tabs MUST NOT treat this as proof of
// liveness, only as cache invalidation (re-fetch from storage).
func (s *Store) OnInvalidate(f func(model.Session)) {
	s.listeners = append(s.listeners, f)
}

// Save persists sess and notifies cache-invalidation listeners.
func (s *Store) Save(sess model.Session) error {
	sess.LastActiveAt = time.Now()
	if err := s.backing.Set(sessionKey, sess, securestorage.SetOptions{Encrypt: true}); err != nil {
		return err
	}
	for _, l := range s.listeners {
		l(sess)
	}
	return nil
}

// Restore loads the persisted session, validating its shape and max-age.
// A stale or malformed session is treated as absent (the caller should
// fall back to a fresh connect flow), matching spec §3's "restored
// sessions elevate to Connected only after a successful account re-fetch".
func (s *Store) Restore() (model.Session, bool, error) {
	var sess model.Session
	ok, err := s.backing.Get(sessionKey, &sess)
	if err != nil || !ok {
		return model.Session{}, false, err
	}

	if sess.WalletID == "" || len(sess.Accounts) == 0 {
		return model.Session{}, false, nil
	}
	if time.Since(sess.ConnectedAt) > s.cfg.MaxAge {
		s.backing.Delete(sessionKey)
		return model.Session{}, false, nil
	}

	return sess, true, nil
}

// Clear removes the persisted session (session:expire / explicit logout).
func (s *Store) Clear() {
	s.backing.Delete(sessionKey)
}
