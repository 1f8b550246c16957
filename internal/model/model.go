// Package model holds the plain data types shared across the core:
// accounts, wallet manifests, sessions, connection state, and the
// bookkeeping records owned by the reliability and security layers.
package model

import (
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
)

// Account identifies a NEAR account the runtime has a session for.
type Account struct {
	AccountID string
	PublicKey string // "ed25519:<base58 body>", empty if unknown
}

// EncodePublicKey renders a raw ed25519 public key in NEAR's tagged
// algorithm + base58 body format.
func EncodePublicKey(pub ed25519.PublicKey) string {
	return "ed25519:" + base58.Encode(pub)
}

// ImplicitAccountID derives the "implicit" account id from an ed25519
// public key as lowercase hex of the raw 32 bytes. The source sometimes
// uses base58 instead; hex is followed here per spec's documented choice.
func ImplicitAccountID(pub ed25519.PublicKey) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, len(pub)*2)
	for i, b := range pub {
		out[i*2] = hexdigits[b>>4]
		out[i*2+1] = hexdigits[b&0x0f]
	}
	return string(out)
}

// WalletType tags how a manifest's wallet is reached.
type WalletType string

const (
	WalletSandboxed WalletType = "sandboxed"
	WalletInjected  WalletType = "injected"
	WalletPrivileged WalletType = "privileged"
	WalletExternal  WalletType = "external"
)

// Capabilities is the feature-support set declared by a manifest.
type Capabilities struct {
	SignMessage      bool `json:"signMessage"`
	SignTransaction  bool `json:"signTransaction"`
	SignAndSend      bool `json:"signAndSend"`
	SignAndSendBatch bool `json:"signAndSendBatch"`
	Mainnet          bool `json:"mainnet"`
	Testnet          bool `json:"testnet"`
}

// Permissions is the declared permission set a manifest requests.
type Permissions struct {
	Storage       bool `json:"storage"`
	WalletConnect bool `json:"walletConnect"`
	HID           bool `json:"hid"`
	Clipboard     bool `json:"clipboard"`
}

// DeepLinkConfig describes how an external wallet is reached by deep link.
type DeepLinkConfig struct {
	Scheme string   `json:"scheme"`
	Paths  []string `json:"paths"`
}

// WalletConnectConfig describes WalletConnect-specific manifest fields.
type WalletConnectConfig struct {
	ProjectID string `json:"projectId"`
}

// WalletManifest is the declarative description of a wallet the runtime
// can drive. Manifests select a driver and gate feature availability.
type WalletManifest struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Icon         string               `json:"icon"`
	Description  string               `json:"description"`
	Website      string               `json:"website"`
	Version      string               `json:"version"`
	Type         WalletType           `json:"type"`
	Capabilities Capabilities         `json:"features"`
	Permissions  Permissions          `json:"permissions"`
	DeepLink     *DeepLinkConfig      `json:"deepLink,omitempty"`
	WalletConnect *WalletConnectConfig `json:"walletConnect,omitempty"`
	ExecutorURL  string               `json:"executor,omitempty"`
}

// Network is the NEAR network an account/session belongs to.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Session is the persisted tuple describing an active wallet connection.
type Session struct {
	WalletID     string
	Accounts     []Account
	Network      Network
	ConnectedAt  time.Time
	LastActiveAt time.Time
	Metadata     map[string]any
}

// ConnectionStateKind is the tag of the connection-state variant (§3).
type ConnectionStateKind string

const (
	StateIdle          ConnectionStateKind = "Idle"
	StateDetecting     ConnectionStateKind = "Detecting"
	StateConnecting    ConnectionStateKind = "Connecting"
	StateAuthenticating ConnectionStateKind = "Authenticating"
	StateConnected     ConnectionStateKind = "Connected"
	StateSigning       ConnectionStateKind = "Signing"
	StateReconnecting  ConnectionStateKind = "Reconnecting"
	StateDisconnecting ConnectionStateKind = "Disconnecting"
	StateError         ConnectionStateKind = "Error"
)

// ConnectionState is the tagged variant from spec §3. Fields not relevant
// to Kind are left zero.
type ConnectionState struct {
	Kind      ConnectionStateKind
	WalletID  string
	Accounts  []Account
	Op        string // for Signing: the in-flight operation kind
	Attempt   int    // for Reconnecting
	Err       error  // for Error
	Timestamp time.Time
}

// CircuitState is the per-wallet circuit breaker state.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitEntry tracks one wallet's circuit breaker bookkeeping.
type CircuitEntry struct {
	State               CircuitState
	ConsecutiveFailures int
	LastFailureAt       time.Time
	LastSuccessAt       time.Time
	OpenedAt            time.Time
}

// OperationKind enumerates queueable/dispatchable operation kinds.
type OperationKind string

const (
	OpSign            OperationKind = "sign"
	OpSend            OperationKind = "send"
	OpSignMessage     OperationKind = "signMessage"
	OpSignAndSend     OperationKind = "signAndSend"
	OpConnect         OperationKind = "connect"
	OpRPC             OperationKind = "rpc"
)

// QueuedOperation is a reconnection-queue entry awaiting FIFO replay.
type QueuedOperation struct {
	OpID        string
	Type        OperationKind
	Payload     any
	EnqueuedAt  time.Time
	Retries     int
	MaxRetries  int
	Resolve     func(result any)
	Reject      func(err error)
}

// RateLimitEntry is the per-action-key sliding window state.
type RateLimitEntry struct {
	Timestamps   []time.Time
	BlockedUntil time.Time
}

// RiskLevel is the ordered severity scale the risk analyzer produces.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// AuditEventType is the closed enumeration from spec §4.2.
type AuditEventType string

const (
	AuditWalletConnect     AuditEventType = "wallet:connect"
	AuditWalletDisconnect  AuditEventType = "wallet:disconnect"
	AuditWalletSwitch      AuditEventType = "wallet:switch"
	AuditTxSign            AuditEventType = "tx:sign"
	AuditTxBroadcast       AuditEventType = "tx:broadcast"
	AuditTxBlocked         AuditEventType = "tx:blocked"
	AuditTxFailed          AuditEventType = "tx:failed"
	AuditMessageSign       AuditEventType = "message:sign"
	AuditSecurityViolation AuditEventType = "security:violation"
	AuditSecurityWarning   AuditEventType = "security:warning"
	AuditRateLimited       AuditEventType = "rate:limited"
	AuditSessionCreate     AuditEventType = "session:create"
	AuditSessionRestore    AuditEventType = "session:restore"
	AuditSessionExpire     AuditEventType = "session:expire"
	AuditHardwareConnect   AuditEventType = "hardware:connect"
	AuditHardwareDisconnect AuditEventType = "hardware:disconnect"
	AuditHardwareError     AuditEventType = "hardware:error"
)

// AuditEvent is one entry in the append-only audit ring.
type AuditEvent struct {
	ID        string
	TimestampMs int64
	Type      AuditEventType
	WalletID  string
	AccountID string
	Data      map[string]any
	Risk      RiskLevel
	SessionID string
	UserAgent string
}

// PendingExternalRequestKind enumerates external-orchestrator request kinds.
type PendingExternalRequestKind string

const (
	ExternalConnect     PendingExternalRequestKind = "connect"
	ExternalSign        PendingExternalRequestKind = "sign"
	ExternalSignMessage PendingExternalRequestKind = "signMessage"
)

// PendingExternalRequest is an in-flight deep-link/redirect/WalletConnect
// request awaiting correlation with a callback.
type PendingExternalRequest struct {
	RequestID  string
	Kind       PendingExternalRequestKind
	WalletID   string
	EnqueuedAt time.Time
	Payload    any
	Resolve    func(result any)
	Reject     func(err error)
	Deadline   time.Time
}
