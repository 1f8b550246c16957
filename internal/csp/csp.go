// Package csp builds the Content-Security-Policy directive string the
// embedding page should set for the connector's origins (spec §6.7): the
// connector's own scripts plus every trusted wallet origin (extension,
// WalletConnect relay, external-wallet redirect targets). No teacher file
// has a direct analogue; this follows the plain constructor-with-defaults
// shape used throughout the pack (e.g. ratelimit.NewRateLimiter).
package csp

import "strings"

// Config lists the origins each directive should allow, beyond 'self'.
type Config struct {
	ConnectSrc []string // RPC endpoints, WalletConnect relay, deep-link origins
	FrameSrc   []string // redirect-flow wallet origins embedded in an iframe
	ScriptSrc  []string // extension-injected script origins, if any
}

// Build renders a single Content-Security-Policy header value from cfg.
// Directives with no configured origins still emit 'self' alone; callers
// needing no override can pass a zero Config.
func Build(cfg Config) string {
	directives := []struct {
		name    string
		origins []string
	}{
		{"connect-src", cfg.ConnectSrc},
		{"frame-src", cfg.FrameSrc},
		{"script-src", cfg.ScriptSrc},
	}

	var parts []string
	for _, d := range directives {
		tokens := append([]string{"'self'"}, dedupe(d.origins)...)
		parts = append(parts, d.name+" "+strings.Join(tokens, " "))
	}
	return strings.Join(parts, "; ")
}

func dedupe(origins []string) []string {
	seen := make(map[string]bool, len(origins))
	var out []string
	for _, o := range origins {
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}
