// Package walletdriver defines the six-operation driver contract every
// wallet implementation (browser extension, hardware device, external
// mobile wallet) satisfies, per spec §6.1. The interface shape and its
// heavily-commented MUST/SHOULD/Errors contract style are grounded
// directly on src/chainadapter/adapter.go's ChainAdapter interface,
// carried over from "per-chain adapter" to "per-wallet driver".
package walletdriver

import (
	"context"

	"github.com/ShadowCorp-Dev/nearconnect/internal/model"
	"github.com/ShadowCorp-Dev/nearconnect/internal/txcodec"
)

// Driver is the unified interface every wallet implementation MUST
// satisfy. The connector routes every public operation through whichever
// Driver is currently active for a session.
//
// Contract guarantees:
// - All methods respect context cancellation.
// - All methods return *nearerr.Error values for error classification.
// - Thread-safe: methods may be called concurrently, but a single
//   hardware-backed Driver serializes its own device access internally.
type Driver interface {
	// WalletID returns the manifest-registered identifier for this
	// wallet (e.g. "my-near-wallet", "ledger").
	WalletID() string

	// SignIn establishes a connection and returns the accounts the user
	// authorized.
	//
	// Contract:
	// - MUST surface a user-facing prompt before accounts are returned,
	//   except for Browser-type wallets already holding an active
	//   session.
	// - MUST NOT return partial account lists; either a full
	//   authorized set or an error.
	// - SHOULD request the permissions passed in req.Permissions only;
	//   requesting a broader scope than asked is a driver bug.
	//
	// Errors:
	// - USER_REJECTED: user declined the connection prompt.
	// - EXTENSION_NOT_INSTALLED / EXTENSION_LOCKED: browser-wallet only.
	// - DEVICE_NOT_FOUND / DEVICE_LOCKED / APP_NOT_OPEN: hardware only.
	// - CONNECTION_TIMEOUT: no response within the driver's timeout budget.
	SignIn(ctx context.Context, req SignInRequest) ([]model.Account, error)

	// SignOut tears down the active connection and invalidates any
	// cached session for this wallet.
	//
	// Contract:
	// - MUST be idempotent: signing out twice is not an error.
	// - MUST NOT block on network or device I/O longer than its
	//   configured timeout; a slow teardown still clears local state.
	SignOut(ctx context.Context) error

	// GetAccounts returns the accounts currently authorized, without
	// prompting the user again.
	//
	// Contract:
	// - MUST return NO_ACTIVE_SESSION if SignIn has not completed.
	// - MUST reflect the most recently confirmed account set; it does
	//   not re-derive or re-fetch from the wallet.
	GetAccounts(ctx context.Context) ([]model.Account, error)

	// SignAndSendTransaction signs tx with the account's authorized key
	// and broadcasts it, returning the final execution outcome.
	//
	// Contract:
	// - MUST run the transaction through the security layer's risk
	//   analyzer before requesting a device/extension signature.
	// - MUST NOT broadcast a transaction the user did not confirm when
	//   Assessment.RequiresExplicitApproval is true.
	// - MUST return TRANSACTION_FAILED (not a generic error) when the
	//   chain rejects a correctly-signed transaction.
	//
	// Errors:
	// - USER_REJECTED, INSUFFICIENT_FUNDS, INVALID_TRANSACTION,
	//   GAS_EXCEEDED, SANDBOX_BLOCKED (see internal/nearerr).
	SignAndSendTransaction(ctx context.Context, tx txcodec.Transaction) (*TransactionResult, error)

	// SignAndSendTransactions signs and broadcasts a batch atomically
	// from the caller's perspective: either every transaction is
	// confirmed, or the batch stops at the first failure and returns
	// the results completed so far alongside the error.
	//
	// Contract:
	// - MUST preserve submission order.
	// - MUST stop at the first failure rather than attempting later
	//   transactions out of order.
	SignAndSendTransactions(ctx context.Context, txs []txcodec.Transaction) ([]TransactionResult, error)

	// SignMessage produces a NEP-413 signature over message without
	// broadcasting anything.
	//
	// Contract:
	// - MUST include the recipient and a fresh nonce in the signed
	//   payload (see internal/txcodec and spec §4.3's NEP-413 layout).
	// - MUST verify the request's origin via the security layer's
	//   origin guard before prompting for a signature.
	SignMessage(ctx context.Context, req SignMessageRequest) (*SignedMessage, error)
}

// SignInRequest carries the network and requested permission scope for
// SignIn.
type SignInRequest struct {
	NetworkID   string
	Permissions model.Permissions
	ContractID  string // optional: scope a FunctionCall-only key to this contract
}

// TransactionResult is the outcome the connector hands back to callers
// after SignAndSendTransaction(s).
type TransactionResult struct {
	TransactionHash string
	Outcome         interface{} // rpcclient.ExecutionOutcome, kept untyped to avoid a driver->rpcclient import cycle
}

// SignMessageRequest is a NEP-413 off-chain signing request.
type SignMessageRequest struct {
	Message   string
	Recipient string
	Nonce     [32]byte
	Callback  string
}

// SignedMessage is the NEP-413 signature result.
type SignedMessage struct {
	AccountID string
	PublicKey string // "ed25519:<base58>"
	Signature []byte // 64-byte ed25519 signature
}
