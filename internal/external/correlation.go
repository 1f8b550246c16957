package external

import (
	"encoding/json"
	"fmt"

	"github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"
)

// OriginVerifier is the subset of internal/security.OriginGuard the
// correlator needs: postMessage ingestion must pass origin verification
// before a pending request is allowed to resolve.
type OriginVerifier interface {
	VerifyMessageOrigin(origin, walletID string) bool
}

// Correlator ties the pending-request Registry to its two ingestion
// paths per spec §4.4: URL query parameters on page load, and
// postMessage events from wallet-owned windows.
type Correlator struct {
	registry *Registry
	origins  OriginVerifier
}

func NewCorrelator(registry *Registry, origins OriginVerifier) *Correlator {
	return &Correlator{registry: registry, origins: origins}
}

// IngestCallbackURL resolves or rejects the pending request named by a
// return-navigation URL (deep link or redirect callback).
func (c *Correlator) IngestCallbackURL(rawURL string) error {
	cr, err := ParseCallbackURL(rawURL)
	if err != nil {
		return err
	}
	return c.resolveOrReject(cr)
}

// PostMessageEvent is one inbound window.postMessage payload from a
// wallet-owned popup/iframe.
type PostMessageEvent struct {
	Origin    string
	WalletID  string
	RequestID string
	Result    json.RawMessage
	Error     string
}

// IngestPostMessage resolves or rejects the pending request named by a
// postMessage event, after verifying its origin against the trusted
// wallet origin registered for walletID.
func (c *Correlator) IngestPostMessage(evt PostMessageEvent) error {
	if !c.origins.VerifyMessageOrigin(evt.Origin, evt.WalletID) {
		return nearerr.New(nearerr.UnknownError, fmt.Sprintf("postMessage from untrusted origin %q for wallet %q", evt.Origin, evt.WalletID), nil)
	}

	cr := CallbackResult{RequestID: evt.RequestID, Result: evt.Result, Error: evt.Error}
	return c.resolveOrReject(cr)
}

func (c *Correlator) resolveOrReject(cr CallbackResult) error {
	if cr.Error != "" {
		if c.registry.Reject(cr.RequestID, fmt.Errorf("%s", cr.Error)) {
			return nil
		}
		return fmt.Errorf("no pending request for id %q", cr.RequestID)
	}
	if c.registry.Resolve(cr.RequestID, cr.Result) {
		return nil
	}
	return fmt.Errorf("no pending request for id %q", cr.RequestID)
}
