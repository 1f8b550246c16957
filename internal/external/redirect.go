package external

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/securestorage"
)

const redirectPendingKey = "redirect-pending"

// RedirectPendingRecord is stored in session-scoped storage before the
// page navigates away to a web-wallet's own origin, and read back on
// return to resume the request.
type RedirectPendingRecord struct {
	RequestID string      `json:"requestId"`
	Kind      RequestKind `json:"kind"`
	WalletID  string      `json:"walletId"`
	Payload   json.RawMessage `json:"payload"`
	StoredAt  time.Time   `json:"storedAt"`
}

// RedirectFlow stores and resumes the single in-flight redirect request
// a tab can have outstanding — the session-storage side of spec §4.4's
// redirect transport, layered on the same securestorage.Store envelope
// session persistence uses.
type RedirectFlow struct {
	backing *securestorage.Store
}

func NewRedirectFlow(backing *securestorage.Store) *RedirectFlow {
	return &RedirectFlow{backing: backing}
}

// Store persists rec ahead of the page navigation.
func (f *RedirectFlow) Store(rec RedirectPendingRecord) error {
	rec.StoredAt = time.Now()
	return f.backing.Set(redirectPendingKey, rec, securestorage.SetOptions{})
}

// Resume reads back the pending record on page return, merging it with
// the callback's query parameters. The stored record is cleared whether
// or not a matching callback is found, since a redirect flow resumes at
// most once.
func (f *RedirectFlow) Resume(callback CallbackResult) (RedirectPendingRecord, bool, error) {
	var rec RedirectPendingRecord
	ok, err := f.backing.Get(redirectPendingKey, &rec)
	if err != nil {
		return RedirectPendingRecord{}, false, err
	}
	f.backing.Delete(redirectPendingKey)
	if !ok {
		return RedirectPendingRecord{}, false, nil
	}
	if rec.RequestID != callback.RequestID {
		return RedirectPendingRecord{}, false, fmt.Errorf("redirect callback request_id mismatch: stored %q, got %q", rec.RequestID, callback.RequestID)
	}
	return rec, true, nil
}
