package external

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedirectFlowStoreAndResume(t *testing.T) {
	flow := NewRedirectFlow(newTestStore())

	payload, _ := json.Marshal(map[string]string{"foo": "bar"})
	require.NoError(t, flow.Store(RedirectPendingRecord{
		RequestID: "req-1",
		Kind:      RequestSign,
		WalletID:  "mobile-wallet",
		Payload:   payload,
	}))

	rec, ok, err := flow.Resume(CallbackResult{RequestID: "req-1"})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "mobile-wallet", rec.WalletID)
}

func TestRedirectFlowResumeAbsentReturnsFalse(t *testing.T) {
	flow := NewRedirectFlow(newTestStore())
	_, ok, err := flow.Resume(CallbackResult{RequestID: "req-1"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedirectFlowResumeMismatchedRequestIDErrors(t *testing.T) {
	flow := NewRedirectFlow(newTestStore())
	require.NoError(t, flow.Store(RedirectPendingRecord{RequestID: "req-1"}))

	_, _, err := flow.Resume(CallbackResult{RequestID: "req-2"})
	require.Error(t, err)
}

func TestRedirectFlowResumeIsOneShot(t *testing.T) {
	flow := NewRedirectFlow(newTestStore())
	require.NoError(t, flow.Store(RedirectPendingRecord{RequestID: "req-1"}))

	_, ok, _ := flow.Resume(CallbackResult{RequestID: "req-1"})
	require.True(t, ok)

	_, ok, _ = flow.Resume(CallbackResult{RequestID: "req-1"})
	require.False(t, ok)
}
