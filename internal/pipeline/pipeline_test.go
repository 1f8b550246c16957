package pipeline

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ShadowCorp-Dev/nearconnect/internal/audit"
	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/ratelimit"
	"github.com/ShadowCorp-Dev/nearconnect/internal/reliability"
	"github.com/ShadowCorp-Dev/nearconnect/internal/security"
	"github.com/ShadowCorp-Dev/nearconnect/internal/txcodec"
	"github.com/ShadowCorp-Dev/nearconnect/internal/walletdriver"
	"github.com/stretchr/testify/require"
)

// fakeDriver is a minimal Driver whose SignIn/SignAndSendTransaction can be
// made to fail, to exercise the pipeline's failure path.
type fakeDriver struct {
	walletID string
	accounts []model.Account
	fail     error
}

func (f *fakeDriver) WalletID() string { return f.walletID }

func (f *fakeDriver) SignIn(ctx context.Context, req walletdriver.SignInRequest) ([]model.Account, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return f.accounts, nil
}

func (f *fakeDriver) SignOut(ctx context.Context) error { return f.fail }

func (f *fakeDriver) GetAccounts(ctx context.Context) ([]model.Account, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return f.accounts, nil
}

func (f *fakeDriver) SignAndSendTransaction(ctx context.Context, tx txcodec.Transaction) (*walletdriver.TransactionResult, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return &walletdriver.TransactionResult{TransactionHash: "fake-hash"}, nil
}

func (f *fakeDriver) SignAndSendTransactions(ctx context.Context, txs []txcodec.Transaction) ([]walletdriver.TransactionResult, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	out := make([]walletdriver.TransactionResult, len(txs))
	for i := range txs {
		out[i] = walletdriver.TransactionResult{TransactionHash: "fake-hash"}
	}
	return out, nil
}

func (f *fakeDriver) SignMessage(ctx context.Context, req walletdriver.SignMessageRequest) (*walletdriver.SignedMessage, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return &walletdriver.SignedMessage{AccountID: f.accounts[0].AccountID}, nil
}

var _ walletdriver.Driver = (*fakeDriver)(nil)

func newOrchestrator() *Orchestrator {
	cfg := NewConfig()
	cfg.Limiter = ratelimit.New(ratelimit.NewConfig())
	cfg.Breaker = reliability.NewCircuitBreaker(reliability.NewCircuitBreakerConfig())
	cfg.Risk = security.NewAnalyzer(security.Config{})
	cfg.Audit = audit.New(audit.NewConfig(), nil, nil, nil)
	cfg.Timeout = time.Second
	return New(cfg)
}

func TestOrchestratorConnectSucceedsAndTransitionsState(t *testing.T) {
	o := newOrchestrator()
	d := &fakeDriver{walletID: "ledger", accounts: []model.Account{{AccountID: "alice.near"}}}

	accounts, err := o.Connect(context.Background(), d, walletdriver.SignInRequest{NetworkID: "mainnet"})
	require.NoError(t, err)
	require.Equal(t, "alice.near", accounts[0].AccountID)
	require.Equal(t, model.StateConnected, o.StateMachine("ledger").Current().Kind)
}

func TestOrchestratorConnectFailureTransitionsToErrorWithoutBreakerFailureWhenUserRejected(t *testing.T) {
	o := newOrchestrator()
	d := &fakeDriver{walletID: "ledger", fail: errors.New("popup closed by user")}

	_, err := o.Connect(context.Background(), d, walletdriver.SignInRequest{})
	require.Error(t, err)
	require.Equal(t, model.StateError, o.StateMachine("ledger").Current().Kind)

	// A user-rejected classification must NOT count as a breaker failure.
	require.Equal(t, 0, o.cfg.Breaker.State("ledger").ConsecutiveFailures)
}

func TestOrchestratorConnectFailureCountsTowardBreakerWhenNotUserRejected(t *testing.T) {
	o := newOrchestrator()
	d := &fakeDriver{walletID: "ledger", fail: errors.New("some transport glitch")}

	_, err := o.Connect(context.Background(), d, walletdriver.SignInRequest{})
	require.Error(t, err)
	require.Equal(t, 1, o.cfg.Breaker.State("ledger").ConsecutiveFailures)
}

func TestOrchestratorRateLimitBlocksExcessConnects(t *testing.T) {
	o := newOrchestrator()
	o.cfg.Limiter = ratelimit.New(ratelimit.Config{MaxRequests: 1, Window: time.Minute, BlockDuration: time.Minute, SlidingWindow: true})
	d := &fakeDriver{walletID: "ledger", accounts: []model.Account{{AccountID: "alice.near"}}}

	_, err := o.Connect(context.Background(), d, walletdriver.SignInRequest{})
	require.NoError(t, err)

	_, err = o.Connect(context.Background(), d, walletdriver.SignInRequest{})
	require.Error(t, err)
}

func TestOrchestratorOpenCircuitRejectsWithoutDispatching(t *testing.T) {
	o := newOrchestrator()
	// The default limiter allows 5 connects per minute and would reject the
	// sixth call first; without it, only the breaker can reject.
	o.cfg.Limiter = nil
	d := &fakeDriver{walletID: "ledger", fail: errors.New("device busy")}

	for i := 0; i < 5; i++ {
		_, _ = o.Connect(context.Background(), d, walletdriver.SignInRequest{})
	}

	d.fail = nil
	d.accounts = []model.Account{{AccountID: "alice.near"}}
	_, err := o.Connect(context.Background(), d, walletdriver.SignInRequest{})
	require.Error(t, err, "the breaker should stay open and reject before the driver is ever invoked")
}

func TestOrchestratorSignAndSendTransactionBlocksCriticalRisk(t *testing.T) {
	o := newOrchestrator()
	o.cfg.Risk = security.NewAnalyzer(security.Config{ScamReceivers: map[string]bool{"scammer.near": true}})
	d := &fakeDriver{walletID: "ledger", accounts: []model.Account{{AccountID: "alice.near"}}}
	_, err := o.Connect(context.Background(), d, walletdriver.SignInRequest{})
	require.NoError(t, err)

	tx := txcodec.Transaction{ReceiverID: "scammer.near", Actions: []txcodec.Action{
		{Kind: txcodec.ActionTransfer, TransferDeposit: big.NewInt(1)},
	}}

	_, err = o.SignAndSendTransaction(context.Background(), d, tx)
	require.Error(t, err)
	require.Equal(t, model.StateError, o.StateMachine("ledger").Current().Kind,
		"a risk-blocked signature still settles the state machine back out of Signing")
}

func TestOrchestratorSignAndSendTransactionDispatchesWhenRiskIsLow(t *testing.T) {
	o := newOrchestrator()
	d := &fakeDriver{walletID: "ledger", accounts: []model.Account{{AccountID: "alice.near"}}}

	// Need a Connected state before Signing is a legal transition.
	_, err := o.Connect(context.Background(), d, walletdriver.SignInRequest{})
	require.NoError(t, err)

	tx := txcodec.Transaction{ReceiverID: "bob.near", Actions: []txcodec.Action{
		{Kind: txcodec.ActionTransfer, TransferDeposit: big.NewInt(1)},
	}}
	result, err := o.SignAndSendTransaction(context.Background(), d, tx)
	require.NoError(t, err)
	require.Equal(t, "fake-hash", result.TransactionHash)
}

func TestOrchestratorSignAndSendTransactionsBatchBlocksOnAnyCriticalMember(t *testing.T) {
	o := newOrchestrator()
	o.cfg.Risk = security.NewAnalyzer(security.Config{BlockedReceivers: map[string]bool{"blocked.near": true}})
	d := &fakeDriver{walletID: "ledger", accounts: []model.Account{{AccountID: "alice.near"}}}
	_, err := o.Connect(context.Background(), d, walletdriver.SignInRequest{})
	require.NoError(t, err)

	txs := []txcodec.Transaction{
		{ReceiverID: "bob.near", Actions: []txcodec.Action{{Kind: txcodec.ActionTransfer, TransferDeposit: big.NewInt(1)}}},
		{ReceiverID: "blocked.near", Actions: []txcodec.Action{{Kind: txcodec.ActionTransfer, TransferDeposit: big.NewInt(1)}}},
	}

	_, err = o.SignAndSendTransactions(context.Background(), d, txs)
	require.Error(t, err)
}
