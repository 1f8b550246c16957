package external

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildDeepLinkURLWithTransaction(t *testing.T) {
	u, err := BuildDeepLinkURL("nearwallet", "sign", DeepLinkRequest{
		CallbackURL: "https://app.example.com/cb",
		RequestID:   "req-1",
		Network:     "mainnet",
		AppName:     "MyApp",
		Transaction: map[string]string{"receiverId": "bob.near"},
	})
	require.NoError(t, err)
	require.Contains(t, u, "nearwallet://sign?")
	require.Contains(t, u, "request_id=req-1")
	require.Contains(t, u, "transaction=")
}

func TestBuildDeepLinkURLRejectsBothPayloads(t *testing.T) {
	_, err := BuildDeepLinkURL("nearwallet", "sign", DeepLinkRequest{
		Transaction:    map[string]string{"a": "b"},
		MessagePayload: map[string]string{"c": "d"},
	})
	require.Error(t, err)
}

func TestParseCallbackURLWithResult(t *testing.T) {
	cr, err := ParseCallbackURL("https://app.example.com/cb?request_id=req-1&result=eyJvayI6dHJ1ZX0=")
	require.NoError(t, err)
	require.Equal(t, "req-1", cr.RequestID)
	require.JSONEq(t, `{"ok":true}`, string(cr.Result))
}

func TestParseCallbackURLWithError(t *testing.T) {
	cr, err := ParseCallbackURL("https://app.example.com/cb?request_id=req-1&error=user_rejected")
	require.NoError(t, err)
	require.Equal(t, "user_rejected", cr.Error)
}

func TestParseCallbackURLMissingRequestID(t *testing.T) {
	_, err := ParseCallbackURL("https://app.example.com/cb?result=eyJvayI6dHJ1ZX0=")
	require.Error(t, err)
}

type fakeFocusTracker struct{ focused bool }

func (f fakeFocusTracker) HasFocus() bool { return f.focused }

func TestDetectAppNotInstalledStillFocusedMeansNotInstalled(t *testing.T) {
	var slept time.Duration
	result := DetectAppNotInstalled(fakeFocusTracker{focused: true}, func(d time.Duration) { slept = d })
	require.True(t, result)
	require.Equal(t, appNotInstalledDelay, slept)
}

func TestDetectAppNotInstalledLostFocusMeansHandled(t *testing.T) {
	result := DetectAppNotInstalled(fakeFocusTracker{focused: false}, func(d time.Duration) {})
	require.False(t, result)
}
