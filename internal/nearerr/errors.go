// Package nearerr defines the closed error taxonomy shared by every core
// subsystem: hardware transport, external-wallet orchestrator, reliability
// substrate and security layer all return *Error values built from Kind.
package nearerr

import (
	"fmt"
	"strings"
	"time"
)

// Kind is a namespaced error kind drawn from the closed set in spec §4.6.
type Kind string

const (
	WalletNotFound         Kind = "WALLET_NOT_FOUND"
	ExtensionNotInstalled  Kind = "EXTENSION_NOT_INSTALLED"
	ExtensionLocked        Kind = "EXTENSION_LOCKED"
	UserRejected           Kind = "USER_REJECTED"
	ConnectionTimeout      Kind = "CONNECTION_TIMEOUT"
	NetworkMismatch        Kind = "NETWORK_MISMATCH"
	NetworkError           Kind = "NETWORK_ERROR"
	RPCError               Kind = "RPC_ERROR"
	SessionExpired         Kind = "SESSION_EXPIRED"
	SessionInvalid         Kind = "SESSION_INVALID"
	NoActiveSession        Kind = "NO_ACTIVE_SESSION"
	TransactionFailed      Kind = "TRANSACTION_FAILED"
	InsufficientFunds      Kind = "INSUFFICIENT_FUNDS"
	InvalidTransaction     Kind = "INVALID_TRANSACTION"
	GasExceeded            Kind = "GAS_EXCEEDED"
	SandboxBlocked         Kind = "SANDBOX_BLOCKED"
	SandboxTimeout         Kind = "SANDBOX_TIMEOUT"
	ExecutorLoadFailed     Kind = "EXECUTOR_LOAD_FAILED"
	SignMessageFailed      Kind = "SIGN_MESSAGE_FAILED"
	SignTransactionFailed  Kind = "SIGN_TRANSACTION_FAILED"
	NoAccounts             Kind = "NO_ACCOUNTS"
	AccountNotFound        Kind = "ACCOUNT_NOT_FOUND"
	ManifestLoadFailed     Kind = "MANIFEST_LOAD_FAILED"
	InvalidManifest        Kind = "INVALID_MANIFEST"
	UnknownError           Kind = "UNKNOWN_ERROR"

	// Hardware-scoped kinds.
	DeviceNotFound         Kind = "DEVICE_NOT_FOUND"
	DeviceLocked           Kind = "DEVICE_LOCKED"
	DeviceBusy             Kind = "DEVICE_BUSY"
	AppNotOpen             Kind = "APP_NOT_OPEN"
	WrongApp               Kind = "WRONG_APP"
	AppVersionUnsupported  Kind = "APP_VERSION_UNSUPPORTED"
	Timeout                Kind = "TIMEOUT"
	InvalidData            Kind = "INVALID_DATA"
	DerivationPathError    Kind = "DERIVATION_PATH_ERROR"
	TransactionTooLarge    Kind = "TRANSACTION_TOO_LARGE"
	TransportError         Kind = "TRANSPORT_ERROR"
	WebHIDNotSupported     Kind = "WEBHID_NOT_SUPPORTED"
	Disconnected           Kind = "DISCONNECTED"
)

// RecoveryAction is drawn from the closed menu in spec §4.6.
type RecoveryAction string

const (
	RecoveryInstall               RecoveryAction = "install"
	RecoveryUnlock                RecoveryAction = "unlock"
	RecoveryRetry                 RecoveryAction = "retry"
	RecoverySwitchNetwork         RecoveryAction = "switch_network"
	RecoveryReconnect             RecoveryAction = "reconnect"
	RecoveryClearSession          RecoveryAction = "clear_session"
	RecoverySelectDifferentWallet RecoveryAction = "select_different_wallet"
	RecoveryCheckBalance          RecoveryAction = "check_balance"
	RecoveryContactSupport        RecoveryAction = "contact_support"
	RecoveryOpenApp               RecoveryAction = "open_app"
	RecoveryRefresh               RecoveryAction = "refresh"
)

// Error is the single error type returned across the core. It carries both
// a developer-facing message and a fixed, user-facing one.
type Error struct {
	Kind        Kind
	Message     string // developer message
	UserMessage string
	WalletID    string
	Cause       error
	Timestamp   time.Time
	Recovery    []RecoveryAction

	// RemainingCooldown is set on circuit-breaker rejections to tell the
	// caller how long until a probe will be allowed.
	RemainingCooldown time.Duration
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// nonRecoverable lists the kinds spec §4.6 marks as non-recoverable.
var nonRecoverable = map[Kind]bool{
	InvalidManifest:    true,
	InvalidTransaction: true,
}

// Recoverable reports whether the kind is a property-of-kind recoverable
// error (everything except the fixed non-recoverable set).
func (k Kind) Recoverable() bool {
	return !nonRecoverable[k]
}

// userMessages is the fixed table keyed by kind (spec §4.6).
var userMessages = map[Kind]string{
	WalletNotFound:        "We couldn't find that wallet.",
	ExtensionNotInstalled: "This wallet extension isn't installed.",
	ExtensionLocked:       "Your wallet extension is locked. Unlock it and try again.",
	UserRejected:          "The request was rejected.",
	ConnectionTimeout:     "The connection timed out. Please try again.",
	NetworkMismatch:       "Your wallet is on a different network than this app expects.",
	NetworkError:          "A network error occurred. Check your connection and try again.",
	RPCError:              "We couldn't reach the network. Please try again.",
	SessionExpired:        "Your session has expired. Please reconnect.",
	SessionInvalid:        "Your session is no longer valid. Please reconnect.",
	NoActiveSession:       "No wallet is connected.",
	TransactionFailed:     "The transaction failed.",
	InsufficientFunds:     "Insufficient funds for this transaction.",
	InvalidTransaction:    "This transaction is invalid and cannot be sent.",
	GasExceeded:           "The transaction exceeds the allowed gas limit.",
	SandboxBlocked:        "The wallet's secure frame was blocked.",
	SandboxTimeout:        "The wallet's secure frame timed out.",
	ExecutorLoadFailed:    "We couldn't load this wallet's secure frame.",
	SignMessageFailed:     "We couldn't sign that message.",
	SignTransactionFailed: "We couldn't sign that transaction.",
	NoAccounts:            "No accounts are available for this wallet.",
	AccountNotFound:       "That account wasn't found in this wallet.",
	ManifestLoadFailed:    "We couldn't load the wallet list. Please refresh.",
	InvalidManifest:       "One of the wallet definitions is invalid.",
	UnknownError:          "Something went wrong. Please try again.",

	DeviceNotFound:        "No hardware device was found. Check the connection.",
	DeviceLocked:          "Unlock your device and try again.",
	DeviceBusy:            "Your device is busy with another request.",
	AppNotOpen:            "Open the NEAR app on your device and try again.",
	WrongApp:              "Wrong app open on your device. Open the NEAR app.",
	AppVersionUnsupported: "Please update the NEAR app on your device.",
	Timeout:               "The device didn't respond in time.",
	InvalidData:           "The device rejected the request data.",
	DerivationPathError:   "That derivation path is invalid.",
	TransactionTooLarge:   "This transaction is too large for the device to sign.",
	TransportError:        "We lost communication with your device.",
	WebHIDNotSupported:    "Your browser doesn't support hardware wallets.",
	Disconnected:          "Your device was disconnected.",
}

// UserMessage returns the fixed user-facing message for a kind.
func UserMessage(k Kind) string {
	if m, ok := userMessages[k]; ok {
		return m
	}
	return userMessages[UnknownError]
}

// New constructs a new *Error, stamping the timestamp and resolving the
// user message from the fixed table.
func New(kind Kind, message string, cause error, recovery ...RecoveryAction) *Error {
	return &Error{
		Kind:        kind,
		Message:     message,
		UserMessage: UserMessage(kind),
		Cause:       cause,
		Timestamp:   time.Now(),
		Recovery:    recovery,
	}
}

// WithWallet returns a shallow copy of e tagged with walletID.
func (e *Error) WithWallet(walletID string) *Error {
	cp := *e
	cp.WalletID = walletID
	return &cp
}

// WithCooldown returns a shallow copy of e carrying a remaining-cooldown
// duration (circuit-breaker rejections).
func (e *Error) WithCooldown(d time.Duration) *Error {
	cp := *e
	cp.RemainingCooldown = d
	return &cp
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == kind
	}
	return false
}

// wrapRule is a single prioritized pattern rule used by Wrap.
type wrapRule struct {
	kind  Kind
	match func(msg string) bool
}

func contains(msg string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// wrapRules is evaluated top-to-bottom; the first match wins. It mirrors
// internal/lib/errors.go's MapWalletError priority-ordered pattern matching.
var wrapRules = []wrapRule{
	{UserRejected, func(m string) bool {
		return contains(m, "rejected", "denied", "cancelled", "canceled", "popup closed")
	}},
	{ConnectionTimeout, func(m string) bool {
		return contains(m, "timeout", "timed out")
	}},
	{NetworkMismatch, func(m string) bool {
		return contains(m, "network") && contains(m, "mismatch", "wrong", "invalid")
	}},
	{InsufficientFunds, func(m string) bool {
		return contains(m, "insufficient funds", "insufficient balance")
	}},
	{GasExceeded, func(m string) bool {
		return contains(m, "gas") && contains(m, "exceed", "limit", "not enough")
	}},
	{SignMessageFailed, func(m string) bool {
		return contains(m, "sign message") && contains(m, "failed", "error")
	}},
	{SignTransactionFailed, func(m string) bool {
		return contains(m, "sign") && contains(m, "failed", "error")
	}},
	{SandboxBlocked, func(m string) bool {
		return contains(m, "sandbox", "iframe", "blocked")
	}},
	{ExecutorLoadFailed, func(m string) bool {
		return contains(m, "executor", "failed to load")
	}},
	{RPCError, func(m string) bool {
		return contains(m, "rpc", "jsonrpc", "fetch failed", "network request")
	}},
	{SessionExpired, func(m string) bool {
		return contains(m, "session") && contains(m, "expired")
	}},
	{SessionInvalid, func(m string) bool {
		return contains(m, "session") && contains(m, "invalid")
	}},
	{NoAccounts, func(m string) bool {
		return contains(m, "no account")
	}},
	{AccountNotFound, func(m string) bool {
		return contains(m, "account not found")
	}},
	{ExtensionNotInstalled, func(m string) bool {
		return contains(m, "extension") && contains(m, "not installed")
	}},
	{ExtensionLocked, func(m string) bool {
		return contains(m, "extension") && contains(m, "locked")
	}},
}

// Wrap classifies an untyped error from a driver, RPC call, or host API into
// a *Error by matching prioritized text patterns against err's message.
// Already-typed *Error values pass through unchanged.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range wrapRules {
		if rule.match(msg) {
			return New(rule.kind, err.Error(), err)
		}
	}
	return New(UnknownError, err.Error(), err)
}
