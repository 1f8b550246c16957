package external

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// DeepLinkRequest is the payload serialized into a deep-link URL's query
// parameters per spec §6.4.
type DeepLinkRequest struct {
	CallbackURL       string
	RequestID         string
	Network           string
	AppName           string
	Transaction       any // marshaled to transaction=<base64 JSON> when non-nil
	MessagePayload    any // marshaled to message_payload=<base64 JSON> when non-nil
}

// BuildDeepLinkURL constructs the wallet-scheme URL for req, following the
// contract `scheme://path?callback_url=…&request_id=…&network=…&app_name=…
// [&transaction=<base64 JSON>|&message_payload=<base64 JSON>]`.
func BuildDeepLinkURL(scheme, path string, req DeepLinkRequest) (string, error) {
	if req.Transaction != nil && req.MessagePayload != nil {
		return "", fmt.Errorf("deep link request must carry at most one of transaction or message_payload")
	}

	q := url.Values{}
	q.Set("callback_url", req.CallbackURL)
	q.Set("request_id", req.RequestID)
	q.Set("network", req.Network)
	q.Set("app_name", req.AppName)

	if req.Transaction != nil {
		encoded, err := encodeBase64JSON(req.Transaction)
		if err != nil {
			return "", fmt.Errorf("encode transaction payload: %w", err)
		}
		q.Set("transaction", encoded)
	}
	if req.MessagePayload != nil {
		encoded, err := encodeBase64JSON(req.MessagePayload)
		if err != nil {
			return "", fmt.Errorf("encode message payload: %w", err)
		}
		q.Set("message_payload", encoded)
	}

	u := url.URL{Scheme: scheme, Opaque: "//" + path, RawQuery: q.Encode()}
	return u.String(), nil
}

func encodeBase64JSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// CallbackResult is the parsed return leg of a deep-link round trip: the
// wallet app navigates back to callback_url carrying request_id and
// either a result or an error.
type CallbackResult struct {
	RequestID string
	Result    json.RawMessage
	Error     string
}

// ParseCallbackURL extracts a CallbackResult from the query string of a
// wallet's return-navigation URL.
func ParseCallbackURL(rawURL string) (CallbackResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("parse callback url: %w", err)
	}
	q := u.Query()

	requestID := q.Get("request_id")
	if requestID == "" {
		return CallbackResult{}, fmt.Errorf("callback url missing request_id")
	}

	cr := CallbackResult{RequestID: requestID}
	if errMsg := q.Get("error"); errMsg != "" {
		cr.Error = errMsg
		return cr, nil
	}

	resultB64 := q.Get("result")
	if resultB64 == "" {
		return CallbackResult{}, fmt.Errorf("callback url carries neither result nor error")
	}
	raw, err := base64.StdEncoding.DecodeString(resultB64)
	if err != nil {
		return CallbackResult{}, fmt.Errorf("decode callback result: %w", err)
	}
	cr.Result = raw
	return cr, nil
}

// FocusTracker abstracts the "did the browser tab keep focus" signal the
// app-not-installed heuristic depends on; the real implementation polls
// document.hasFocus() from JS, so this is a seam for that host binding.
type FocusTracker interface {
	HasFocus() bool
}

// appNotInstalledDelay is the ~1.5s window spec §4.4 gives a deep link
// scheme handoff before concluding the OS found no handler for it.
const appNotInstalledDelay = 1500 * time.Millisecond

// DetectAppNotInstalled waits appNotInstalledDelay after a deep-link
// navigation and reports true if the tab never lost focus — the
// heuristic signal that the target scheme has no registered handler.
func DetectAppNotInstalled(tracker FocusTracker, sleep func(time.Duration)) bool {
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(appNotInstalledDelay)
	return tracker.HasFocus()
}
