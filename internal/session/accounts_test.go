package session

import (
	"testing"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/securestorage"
	"github.com/stretchr/testify/require"
)

func newAccountsStore() *AccountsStore {
	backing := securestorage.New(securestorage.NewMemoryBackend(), "ns", "secret")
	return NewAccountsStore(backing)
}

func TestAccountsStoreSaveAndRestore(t *testing.T) {
	a := newAccountsStore()
	require.NoError(t, a.Save(AccountsRecord{
		Accounts:        []model.Account{{AccountID: "alice.near"}, {AccountID: "bob.near"}},
		ActiveAccountID: "alice.near",
	}))

	rec, ok, err := a.Restore()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice.near", rec.ActiveAccountID)
	require.Len(t, rec.Accounts, 2)
}

func TestAccountsStoreRestoreAbsentReturnsFalse(t *testing.T) {
	a := newAccountsStore()
	_, ok, err := a.Restore()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAccountsStoreSetActiveSwitchesAccount(t *testing.T) {
	a := newAccountsStore()
	require.NoError(t, a.Save(AccountsRecord{
		Accounts:        []model.Account{{AccountID: "alice.near"}, {AccountID: "bob.near"}},
		ActiveAccountID: "alice.near",
	}))

	rec, err := a.SetActive("bob.near")
	require.NoError(t, err)
	require.Equal(t, "bob.near", rec.ActiveAccountID)

	restored, _, _ := a.Restore()
	require.Equal(t, "bob.near", restored.ActiveAccountID)
}

func TestAccountsStoreSetActiveRejectsUnknownAccount(t *testing.T) {
	a := newAccountsStore()
	require.NoError(t, a.Save(AccountsRecord{
		Accounts:        []model.Account{{AccountID: "alice.near"}},
		ActiveAccountID: "alice.near",
	}))

	_, err := a.SetActive("carol.near")
	require.Error(t, err)
}

func TestAccountsStoreSetActiveWithoutRecordErrors(t *testing.T) {
	a := newAccountsStore()
	_, err := a.SetActive("alice.near")
	require.Error(t, err)
}

func TestAccountsStoreClearRemovesEntry(t *testing.T) {
	a := newAccountsStore()
	require.NoError(t, a.Save(AccountsRecord{Accounts: []model.Account{{AccountID: "alice.near"}}}))
	a.Clear()

	_, ok, _ := a.Restore()
	require.False(t, ok)
}
