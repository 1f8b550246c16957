package session

import (
	"testing"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/securestorage"
	"github.com/stretchr/testify/require"
)

func newStore() *Store {
	backing := securestorage.New(securestorage.NewMemoryBackend(), "ns", "secret")
	return New(NewConfig(), backing)
}

func TestSessionSaveAndRestore(t *testing.T) {
	s := newStore()
	sess := model.Session{
		WalletID:    "my-wallet",
		Accounts:    []model.Account{{AccountID: "alice.near"}},
		Network:     model.NetworkMainnet,
		ConnectedAt: time.Now(),
	}
	require.NoError(t, s.Save(sess))

	restored, ok, err := s.Restore()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "my-wallet", restored.WalletID)
}

func TestSessionRestoreRejectsExpired(t *testing.T) {
	s := New(Config{MaxAge: 10 * time.Millisecond}, securestorage.New(securestorage.NewMemoryBackend(), "ns", "secret"))
	require.NoError(t, s.Save(model.Session{
		WalletID:    "w",
		Accounts:    []model.Account{{AccountID: "a.near"}},
		ConnectedAt: time.Now().Add(-1 * time.Hour),
	}))

	_, ok, err := s.Restore()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionRestoreRejectsMalformedShape(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Save(model.Session{WalletID: "", Accounts: nil}))

	_, ok, _ := s.Restore()
	require.False(t, ok)
}

func TestSessionInvalidateBroadcast(t *testing.T) {
	s := newStore()
	var notified model.Session
	s.OnInvalidate(func(sess model.Session) { notified = sess })

	require.NoError(t, s.Save(model.Session{WalletID: "w", Accounts: []model.Account{{AccountID: "a.near"}}}))
	require.Equal(t, "w", notified.WalletID)
}
