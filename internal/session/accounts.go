package session

import (
	"fmt"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/securestorage"
)

const accountsKey = "accounts"

// AccountsRecord is the `<ns>:accounts` persisted shape (spec §6.3): the
// full multi-account set authorized for the active wallet plus which one
// is active, kept separate from the Session record so switching the
// active account doesn't require rewriting session metadata.
type AccountsRecord struct {
	Accounts        []model.Account `json:"accounts"`
	ActiveAccountID string          `json:"activeAccountId"`
}

// AccountsStore persists and restores AccountsRecord, and is the backing
// store behind a AuditWalletSwitch event: switching the active account
// is just SetActive followed by a Record to the audit log.
type AccountsStore struct {
	backing *securestorage.Store
}

// NewAccountsStore constructs an AccountsStore bound to backing.
func NewAccountsStore(backing *securestorage.Store) *AccountsStore {
	return &AccountsStore{backing: backing}
}

// Save persists rec as-is; ActiveAccountID is not validated against
// Accounts here (callers route account-switch requests through
// SetActive, which does validate).
func (a *AccountsStore) Save(rec AccountsRecord) error {
	return a.backing.Set(accountsKey, rec, securestorage.SetOptions{Encrypt: true})
}

// Restore loads the persisted accounts record, treating a malformed or
// empty-accounts entry as absent.
func (a *AccountsStore) Restore() (AccountsRecord, bool, error) {
	var rec AccountsRecord
	ok, err := a.backing.Get(accountsKey, &rec)
	if err != nil || !ok {
		return AccountsRecord{}, false, err
	}
	if len(rec.Accounts) == 0 {
		return AccountsRecord{}, false, nil
	}
	return rec, true, nil
}

// SetActive switches ActiveAccountID to accountID and persists the
// update, rejecting accountID values not present in the currently
// persisted account set.
func (a *AccountsStore) SetActive(accountID string) (AccountsRecord, error) {
	rec, ok, err := a.Restore()
	if err != nil {
		return AccountsRecord{}, err
	}
	if !ok {
		return AccountsRecord{}, fmt.Errorf("no accounts record to switch within")
	}

	found := false
	for _, acc := range rec.Accounts {
		if acc.AccountID == accountID {
			found = true
			break
		}
	}
	if !found {
		return AccountsRecord{}, fmt.Errorf("account %q is not in the authorized set", accountID)
	}

	rec.ActiveAccountID = accountID
	if err := a.Save(rec); err != nil {
		return AccountsRecord{}, err
	}
	return rec, nil
}

// Clear removes the persisted accounts record.
func (a *AccountsStore) Clear() {
	a.backing.Delete(accountsKey)
}
