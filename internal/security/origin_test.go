package security

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOriginGuardVerifyMessageOrigin(t *testing.T) {
	g := NewOriginGuard([]string{"https://app.example.com"}, false)
	g.TrustWalletOrigin("wallet-1", "https://wallet.example.com")

	require.True(t, g.VerifyMessageOrigin("https://wallet.example.com", "wallet-1"))
	require.False(t, g.VerifyMessageOrigin("https://evil.example.com", "wallet-1"))
	require.True(t, g.VerifyMessageOrigin("https://app.example.com", ""))
}

func TestOriginGuardVerifyCallbackUrl(t *testing.T) {
	g := NewOriginGuard([]string{"https://app.example.com"}, false)
	require.True(t, g.VerifyCallbackUrl("https://app.example.com/callback"))
	require.False(t, g.VerifyCallbackUrl("http://app.example.com/callback"), "http rejected outside dev mode")
	require.False(t, g.VerifyCallbackUrl("https://other.example.com/callback"))
}

func TestOriginGuardStateHMAC(t *testing.T) {
	g := NewOriginGuard(nil, false)
	state := g.generateState("req-1")

	require.True(t, g.VerifyState(state, "req-1"))
	require.False(t, g.VerifyState(state, "req-2"))
}

func TestOriginGuardGenerateSecureCallback(t *testing.T) {
	g := NewOriginGuard(nil, false)
	url := g.GenerateSecureCallback("https://app.example.com/cb", "req-1")
	require.Contains(t, url, "state=")
}
