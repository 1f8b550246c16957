package external

import (
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/securestorage"
)

const externalSessionKey = "external-session"
const externalSessionTTL = 24 * time.Hour

// CachedSession is the orchestrator's own connect cache, `<ns>:external-session`
// per spec §6.3 — distinct from internal/session.Store's core session
// record, since external wallets are reconnected via their own transport
// (deep link / WalletConnect / redirect) rather than the core state
// machine's restore path.
type CachedSession struct {
	WalletID  string    `json:"walletId"`
	Accounts  []string  `json:"accounts"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionCache persists and restores CachedSession with a 24h TTL.
type SessionCache struct {
	backing *securestorage.Store
}

func NewSessionCache(backing *securestorage.Store) *SessionCache {
	return &SessionCache{backing: backing}
}

// Save persists sess with the orchestrator's 24h TTL.
func (c *SessionCache) Save(sess CachedSession) error {
	sess.Timestamp = time.Now()
	return c.backing.Set(externalSessionKey, sess, securestorage.SetOptions{TTL: externalSessionTTL})
}

// Restore returns the cached session if present and not older than the
// TTL window (the envelope itself also expires by TTL, so an expired
// entry reads back as absent).
func (c *SessionCache) Restore() (CachedSession, bool, error) {
	var sess CachedSession
	ok, err := c.backing.Get(externalSessionKey, &sess)
	if err != nil || !ok {
		return CachedSession{}, false, err
	}
	if time.Since(sess.Timestamp) > externalSessionTTL {
		c.backing.Delete(externalSessionKey)
		return CachedSession{}, false, nil
	}
	return sess, true, nil
}

// Clear removes the cached session (explicit disconnect).
func (c *SessionCache) Clear() {
	c.backing.Delete(externalSessionKey)
}
