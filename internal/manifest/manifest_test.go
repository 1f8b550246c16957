package manifest

import (
	"testing"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidManifest(t *testing.T) {
	raw := []byte(`{"id":"ledger","name":"Ledger","type":"privileged"}`)
	m, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "ledger", m.ID)
}

func TestDecodeRejectsMissingID(t *testing.T) {
	raw := []byte(`{"name":"Ledger","type":"privileged"}`)
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestDecodeRejectsExternalWithoutDeepLinkOrWalletConnect(t *testing.T) {
	raw := []byte(`{"id":"mobile-wallet","name":"Mobile Wallet","type":"external"}`)
	_, err := Decode(raw)
	require.Error(t, err)
}

func TestDecodeAllSkipsInvalidEntries(t *testing.T) {
	raw := []byte(`[
		{"id":"a","name":"A","type":"sandboxed"},
		{"name":"missing-id","type":"sandboxed"},
		{"id":"b","name":"B","type":"injected"}
	]`)
	repo, errs := DecodeAll(raw)
	require.Len(t, errs, 1)
	require.Len(t, repo.Wallets, 2)
}

func TestNewRepositoryDedupesByIDLastWins(t *testing.T) {
	raw := []byte(`[
		{"id":"a","name":"First","type":"sandboxed"},
		{"id":"a","name":"Second","type":"sandboxed"}
	]`)
	repo, errs := DecodeAll(raw)
	require.Empty(t, errs)
	require.Len(t, repo.Wallets, 1)
	require.Equal(t, "Second", repo.Wallets[0].Name)
}

func TestRepositoryByID(t *testing.T) {
	repo, _ := DecodeAll([]byte(`[{"id":"a","name":"A","type":"sandboxed"}]`))
	m, ok := repo.ByID("a")
	require.True(t, ok)
	require.Equal(t, "A", m.Name)

	_, ok = repo.ByID("missing")
	require.False(t, ok)
}

func TestRepositoryFilterByCapability(t *testing.T) {
	raw := []byte(`[
		{"id":"a","name":"A","type":"sandboxed","features":{"signMessage":true}},
		{"id":"b","name":"B","type":"sandboxed","features":{"signMessage":false}}
	]`)
	repo, _ := DecodeAll(raw)
	filtered := repo.FilterByCapability(func(c model.Capabilities) bool { return c.SignMessage })
	require.Len(t, filtered, 1)
	require.Equal(t, "a", filtered[0].ID)
}
