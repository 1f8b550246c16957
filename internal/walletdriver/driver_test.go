package walletdriver

import (
	"context"
	"errors"
	"testing"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/txcodec"
	"github.com/stretchr/testify/require"
)

// fakeDriver is a minimal in-memory Driver used to pin down the contract
// shape against real call sites, the way a concrete driver (browser
// extension, hardware session, external wallet) would.
type fakeDriver struct {
	walletID string
	accounts []model.Account
	signedIn bool
}

func (f *fakeDriver) WalletID() string { return f.walletID }

func (f *fakeDriver) SignIn(ctx context.Context, req SignInRequest) ([]model.Account, error) {
	f.signedIn = true
	return f.accounts, nil
}

func (f *fakeDriver) SignOut(ctx context.Context) error {
	f.signedIn = false
	return nil
}

func (f *fakeDriver) GetAccounts(ctx context.Context) ([]model.Account, error) {
	if !f.signedIn {
		return nil, errors.New("no active session")
	}
	return f.accounts, nil
}

func (f *fakeDriver) SignAndSendTransaction(ctx context.Context, tx txcodec.Transaction) (*TransactionResult, error) {
	return &TransactionResult{TransactionHash: "fake-hash"}, nil
}

func (f *fakeDriver) SignAndSendTransactions(ctx context.Context, txs []txcodec.Transaction) ([]TransactionResult, error) {
	results := make([]TransactionResult, len(txs))
	for i := range txs {
		results[i] = TransactionResult{TransactionHash: "fake-hash"}
	}
	return results, nil
}

func (f *fakeDriver) SignMessage(ctx context.Context, req SignMessageRequest) (*SignedMessage, error) {
	return &SignedMessage{AccountID: f.accounts[0].AccountID, PublicKey: f.accounts[0].PublicKey}, nil
}

var _ Driver = (*fakeDriver)(nil)

func TestDriverSignInThenGetAccounts(t *testing.T) {
	d := &fakeDriver{walletID: "ledger", accounts: []model.Account{{AccountID: "alice.near", PublicKey: "ed25519:abc"}}}

	accounts, err := d.SignIn(context.Background(), SignInRequest{NetworkID: "mainnet"})
	require.NoError(t, err)
	require.Equal(t, "alice.near", accounts[0].AccountID)

	got, err := d.GetAccounts(context.Background())
	require.NoError(t, err)
	require.Equal(t, accounts, got)
}

func TestDriverGetAccountsWithoutSignInErrors(t *testing.T) {
	d := &fakeDriver{walletID: "ledger"}
	_, err := d.GetAccounts(context.Background())
	require.Error(t, err)
}

func TestDriverSignOutIsIdempotent(t *testing.T) {
	d := &fakeDriver{walletID: "ledger", signedIn: true}
	require.NoError(t, d.SignOut(context.Background()))
	require.NoError(t, d.SignOut(context.Background()))
	require.False(t, d.signedIn)
}

func TestDriverSignAndSendTransactionsReturnsOneResultPerTransaction(t *testing.T) {
	d := &fakeDriver{walletID: "ledger"}
	txs := []txcodec.Transaction{{SignerID: "alice.near"}, {SignerID: "alice.near"}}

	results, err := d.SignAndSendTransactions(context.Background(), txs)
	require.NoError(t, err)
	require.Len(t, results, 2)
}
