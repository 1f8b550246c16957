package pipeline

import (
	"context"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/security"
	"github.com/ShadowCorp-Dev/nearconnect/internal/txcodec"
	"github.com/ShadowCorp-Dev/nearconnect/internal/walletdriver"
)

// toRiskTransaction projects a wire-format transaction onto the subset of
// fields the risk analyzer cares about; txcodec and security deliberately
// share no types (security.risk.go's doc comment notes it has no
// dependency on the wire-format package), so the pipeline is where the
// two get reconciled for one call.
func toRiskTransaction(tx txcodec.Transaction) security.Transaction {
	out := security.Transaction{ReceiverID: tx.ReceiverID}
	for _, act := range tx.Actions {
		a := security.Action{
			MethodName: act.MethodName,
			Gas:        act.Gas,
			Args:       act.Args,
		}
		switch act.Kind {
		case txcodec.ActionCreateAccount:
			a.Kind = security.ActionCreateAccount
		case txcodec.ActionDeployContract:
			a.Kind = security.ActionDeployContract
		case txcodec.ActionFunctionCall:
			a.Kind = security.ActionFunctionCall
			a.Deposit = act.Deposit
		case txcodec.ActionTransfer:
			a.Kind = security.ActionTransfer
			a.Deposit = act.TransferDeposit
		case txcodec.ActionStake:
			a.Kind = security.ActionStake
			a.Deposit = act.StakeAmount
		case txcodec.ActionAddKey:
			a.Kind = security.ActionAddKey
			if act.Permission == txcodec.PermissionFullAccess {
				a.Permission = security.PermissionFullAccess
			} else {
				a.Permission = security.PermissionFunctionCall
			}
		case txcodec.ActionDeleteKey:
			a.Kind = security.ActionDeleteKey
		case txcodec.ActionDeleteAccount:
			a.Kind = security.ActionDeleteAccount
		}
		out.Actions = append(out.Actions, a)
	}
	return out
}

// Connect runs driver.SignIn through the cross-cutting pipeline. Failure
// has no FailureEvent: the closed audit-event set (spec §4.2) has no
// connect-generic failure kind (only the hardware-specific
// hardware:error), so a failed connect is surfaced to the caller as the
// returned *nearerr.Error without a matching audit entry.
func (o *Orchestrator) Connect(ctx context.Context, driver walletdriver.Driver, req walletdriver.SignInRequest) ([]model.Account, error) {
	result, err := o.Run(ctx, Request{
		WalletID:     driver.WalletID(),
		Kind:         OpConnect,
		InFlight:     model.StateConnecting,
		Settled:      model.StateConnected,
		Reason:       "connect",
		SuccessEvent: model.AuditWalletConnect,
		Dispatch: func(ctx context.Context) (any, error) {
			return driver.SignIn(ctx, req)
		},
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.Account), nil
}

// Disconnect runs driver.SignOut through the pipeline. Rate limiting and
// the circuit breaker still gate it, but there is no risk analysis and no
// settled state beyond returning to Idle.
func (o *Orchestrator) Disconnect(ctx context.Context, driver walletdriver.Driver) error {
	_, err := o.Run(ctx, Request{
		WalletID:     driver.WalletID(),
		Kind:         OpConnect,
		InFlight:     model.StateDisconnecting,
		Settled:      model.StateIdle,
		Reason:       "disconnect",
		SuccessEvent: model.AuditWalletDisconnect,
		Dispatch: func(ctx context.Context) (any, error) {
			return nil, driver.SignOut(ctx)
		},
	})
	return err
}

// SignAndSendTransaction runs one driver.SignAndSendTransaction through
// the pipeline, including step 4's risk analysis.
func (o *Orchestrator) SignAndSendTransaction(ctx context.Context, driver walletdriver.Driver, tx txcodec.Transaction) (*walletdriver.TransactionResult, error) {
	result, err := o.Run(ctx, Request{
		WalletID:     driver.WalletID(),
		Kind:         OpSign,
		InFlight:     model.StateSigning,
		Settled:      model.StateConnected,
		Reason:       "sign",
		Txs:          []security.Transaction{toRiskTransaction(tx)},
		SuccessEvent: model.AuditTxBroadcast,
		FailureEvent: model.AuditTxFailed,
		Dispatch: func(ctx context.Context) (any, error) {
			return driver.SignAndSendTransaction(ctx, tx)
		},
	})
	if err != nil {
		return nil, err
	}
	return result.(*walletdriver.TransactionResult), nil
}

// SignAndSendTransactions runs a batch through the pipeline as a single
// operation: every transaction in the batch is risk-analyzed before any
// of them are dispatched, and the driver's own ordering/stop-at-first-
// failure contract (walletdriver.Driver.SignAndSendTransactions) governs
// dispatch itself.
func (o *Orchestrator) SignAndSendTransactions(ctx context.Context, driver walletdriver.Driver, txs []txcodec.Transaction) ([]walletdriver.TransactionResult, error) {
	riskTxs := make([]security.Transaction, len(txs))
	for i, tx := range txs {
		riskTxs[i] = toRiskTransaction(tx)
	}

	result, err := o.Run(ctx, Request{
		WalletID:     driver.WalletID(),
		Kind:         OpSign,
		InFlight:     model.StateSigning,
		Settled:      model.StateConnected,
		Reason:       "sign-batch",
		Txs:          riskTxs,
		SuccessEvent: model.AuditTxBroadcast,
		FailureEvent: model.AuditTxFailed,
		Dispatch: func(ctx context.Context) (any, error) {
			return driver.SignAndSendTransactions(ctx, txs)
		},
	})
	if err != nil {
		return nil, err
	}
	return result.([]walletdriver.TransactionResult), nil
}

// Accounts runs driver.GetAccounts through the pipeline. It does not
// transition connection state (a query doesn't change it) or run risk
// analysis (nothing to sign), but still passes through rate-limit and
// circuit-breaker gating like any other driver call.
func (o *Orchestrator) Accounts(ctx context.Context, driver walletdriver.Driver) ([]model.Account, error) {
	result, err := o.Run(ctx, Request{
		WalletID: driver.WalletID(),
		Kind:     OpRPC,
		Reason:   "get-accounts",
		Dispatch: func(ctx context.Context) (any, error) {
			return driver.GetAccounts(ctx)
		},
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.Account), nil
}

// SignMessage runs driver.SignMessage through the pipeline. NEP-413
// message signing has no on-chain risk profile (no receiver, no actions),
// so it skips step 4 entirely rather than analyzing an empty transaction.
// Failure has no FailureEvent for the same reason Connect doesn't: the
// closed audit-event set has no message-signing failure kind, and
// AuditTxFailed would misleadingly imply an on-chain transaction.
func (o *Orchestrator) SignMessage(ctx context.Context, driver walletdriver.Driver, req walletdriver.SignMessageRequest) (*walletdriver.SignedMessage, error) {
	result, err := o.Run(ctx, Request{
		WalletID:     driver.WalletID(),
		Kind:         OpSign,
		InFlight:     model.StateSigning,
		Settled:      model.StateConnected,
		Reason:       "sign-message",
		SuccessEvent: model.AuditMessageSign,
		Dispatch: func(ctx context.Context) (any, error) {
			return driver.SignMessage(ctx, req)
		},
	})
	if err != nil {
		return nil, err
	}
	return result.(*walletdriver.SignedMessage), nil
}
