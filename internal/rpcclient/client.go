// Package rpcclient implements the NEAR JSON-RPC client with endpoint
// failover and health tracking (spec §6.6). It is grounded directly on
// src/chainadapter/rpc/{client.go,http.go,health.go}: the same
// round-robin-plus-circuit-breaker endpoint selection, applied to NEAR's
// query/block/broadcast_tx_commit methods instead of the teacher's
// per-chain eth_*/getblockcount surface.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Request is one JSON-RPC 2.0 call.
type Request struct {
	Method string
	Params interface{}
}

type jsonrpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *jsonrpcError) Error() string { return e.Message }

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

// Client is a NEAR JSON-RPC client with endpoint failover.
type Client struct {
	endpoints  []string
	tracker    HealthTracker
	httpClient *http.Client
	requestID  atomic.Int64
}

// New returns a Client. timeout bounds each individual HTTP attempt.
func New(endpoints []string, timeout time.Duration) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one rpc endpoint is required")
	}
	return &Client{
		endpoints:  endpoints,
		tracker:    NewSimpleHealthTracker(),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Call executes method with params against the healthiest endpoint,
// failing over to the next endpoint on error until all are exhausted.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	result, _, err := c.callWithFailover(ctx, method, params)
	return result, err
}

// callWithFailover is Call's implementation, additionally returning
// which endpoint actually served the request — callers that need to
// attribute a response to its source (e.g. recording the block height
// a `block` call reported) use this instead of racing a shared field.
func (c *Client) callWithFailover(ctx context.Context, method string, params interface{}) (json.RawMessage, string, error) {
	attempted := make(map[string]bool, len(c.endpoints))
	var lastErr error

	for len(attempted) < len(c.endpoints) {
		endpoint := c.tracker.GetBestEndpoint(c.endpoints, attempted)
		if endpoint == "" {
			break
		}
		attempted[endpoint] = true

		result, err := c.callEndpoint(ctx, endpoint, method, params)
		if err == nil {
			return result, endpoint, nil
		}
		lastErr = err
	}

	return nil, "", fmt.Errorf("all rpc endpoints failed, last error: %w", lastErr)
}

func (c *Client) callEndpoint(ctx context.Context, endpoint, method string, params interface{}) (json.RawMessage, error) {
	start := time.Now()
	id := c.requestID.Add(1)

	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.tracker.RecordFailure(endpoint, err)
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.tracker.RecordFailure(endpoint, err)
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
		c.tracker.RecordFailure(endpoint, err)
		return nil, err
	}

	var rpcResp jsonrpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		c.tracker.RecordFailure(endpoint, err)
		return nil, fmt.Errorf("parse rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		c.tracker.RecordFailure(endpoint, rpcResp.Error)
		return nil, fmt.Errorf("rpc error: %s", rpcResp.Error.Message)
	}

	c.tracker.RecordSuccess(endpoint, time.Since(start).Milliseconds())
	return rpcResp.Result, nil
}

// Close releases idle HTTP connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
