package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// OriginGuard verifies message/callback origins and mints CSRF-bound
// callback state tokens (spec §4.2 "Origin guard").
type OriginGuard struct {
	mu            sync.Mutex
	walletOrigins map[string]map[string]bool // walletId -> set of trusted origins
	appOrigins    map[string]bool
	devMode       bool

	sessionSecret []byte // generated once per tab, lazily
}

// NewOriginGuard constructs a guard with the given trusted app origins.
// devMode relaxes the HTTPS-only requirement on verifyCallbackUrl.
func NewOriginGuard(appOrigins []string, devMode bool) *OriginGuard {
	set := make(map[string]bool, len(appOrigins))
	for _, o := range appOrigins {
		set[o] = true
	}
	return &OriginGuard{
		walletOrigins: make(map[string]map[string]bool),
		appOrigins:    set,
		devMode:       devMode,
	}
}

// TrustWalletOrigin registers origin as legitimate for walletId.
func (g *OriginGuard) TrustWalletOrigin(walletID, origin string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.walletOrigins[walletID] == nil {
		g.walletOrigins[walletID] = make(map[string]bool)
	}
	g.walletOrigins[walletID][origin] = true
}

// VerifyMessageOrigin reports whether origin is trusted for a postMessage
// event, optionally scoped to expectedWalletID. With no expectation, any
// registered wallet origin or app origin is accepted.
func (g *OriginGuard) VerifyMessageOrigin(origin string, expectedWalletID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if expectedWalletID != "" {
		return g.walletOrigins[expectedWalletID][origin]
	}
	for _, origins := range g.walletOrigins {
		if origins[origin] {
			return true
		}
	}
	return g.appOrigins[origin]
}

// VerifyCallbackUrl requires HTTPS (unless devMode) and that the URL's
// origin is a trusted app origin.
func (g *OriginGuard) VerifyCallbackUrl(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "https" && !g.devMode {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.appOrigins[u.Scheme+"://"+u.Host]
}

// ensureSessionSecret lazily generates the per-tab HMAC secret.
func (g *OriginGuard) ensureSessionSecret() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessionSecret == nil {
		secret := make([]byte, 32)
		_, _ = rand.Read(secret)
		g.sessionSecret = secret
	}
	return g.sessionSecret
}

// generateState returns base64(HMAC-SHA256(requestID, sessionSecret)).
func (g *OriginGuard) generateState(requestID string) string {
	mac := hmac.New(sha256.New, g.ensureSessionSecret())
	mac.Write([]byte(requestID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// GenerateSecureCallback appends a CSRF state parameter bound to requestID
// to base, returning the full callback URL.
func (g *OriginGuard) GenerateSecureCallback(base, requestID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sstate=%s", base, sep, url.QueryEscape(g.generateState(requestID)))
}

// VerifyState checks state against a freshly-derived state for requestID
// using a timing-safe comparison.
func (g *OriginGuard) VerifyState(state, requestID string) bool {
	expected := g.generateState(requestID)
	return subtle.ConstantTimeCompare([]byte(state), []byte(expected)) == 1
}
