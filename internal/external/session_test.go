package external

import (
	"testing"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/securestorage"
	"github.com/stretchr/testify/require"
)

func newTestStore() *securestorage.Store {
	return securestorage.New(securestorage.NewMemoryBackend(), "test-ns", "test-secret")
}

func TestSessionCacheSaveAndRestore(t *testing.T) {
	cache := NewSessionCache(newTestStore())

	err := cache.Save(CachedSession{WalletID: "ledger", Accounts: []string{"alice.near"}})
	require.NoError(t, err)

	got, ok, err := cache.Restore()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ledger", got.WalletID)
}

func TestSessionCacheRestoreAbsentReturnsFalse(t *testing.T) {
	cache := NewSessionCache(newTestStore())
	_, ok, err := cache.Restore()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionCacheClear(t *testing.T) {
	cache := NewSessionCache(newTestStore())
	require.NoError(t, cache.Save(CachedSession{WalletID: "ledger"}))
	cache.Clear()

	_, ok, err := cache.Restore()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionCacheStaleEntryTreatedAsAbsent(t *testing.T) {
	backing := newTestStore()
	cache := NewSessionCache(backing)

	stale := CachedSession{WalletID: "ledger", Timestamp: time.Now().Add(-25 * time.Hour)}
	require.NoError(t, backing.Set(externalSessionKey, stale, securestorage.SetOptions{}))

	_, ok, err := cache.Restore()
	require.NoError(t, err)
	require.False(t, ok)
}
