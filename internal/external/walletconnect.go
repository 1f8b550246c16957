package external

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WalletConnect method/event names from spec §6.5.
const (
	WCNamespaceKey       = "near"
	MethodSignAndSend    = "near_signAndSendTransaction"
	MethodSignMessage    = "near_signMessage"
	EventAccountsChanged = "accountsChanged"

	// sessionTTL mirrors the WalletConnect v2 relay's default pairing
	// lifetime: a topic the relay itself has expired is unusable even if
	// the socket reconnects, so the session must be re-proposed rather
	// than assumed to still be live.
	sessionTTL = 7 * 24 * time.Hour
)

type wcRequest struct {
	ID      int64       `json:"id"`
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type wcResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wcError        `json:"error,omitempty"`
}

type wcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *wcError) Error() string { return e.Message }

// RelayClient is a WalletConnect relay session client. The socket
// plumbing (connect/read loop/pending-call routing) follows
// src/chainadapter/rpc/websocket.go's WebSocketRPCClient, since a relay
// session is transported as JSON-RPC over WebSocket, but the session
// lifecycle it manages is WalletConnect-specific: a relay topic, once
// paired, survives independently of any one socket connection and
// expires on its own schedule (sessionTTL), so a plain socket
// reconnect is not sufficient to keep a session usable — the topic
// must be pinged and, if the relay has dropped it, the pairing
// must be renewed from scratch rather than resumed silently.
type RelayClient struct {
	url       string
	projectID string

	connMu sync.RWMutex
	conn   *websocket.Conn

	requestID atomic.Int64

	pendingMu sync.RWMutex
	pending   map[int64]chan *wcResponse

	closed    atomic.Bool
	closeChan chan struct{}

	reconnecting         atomic.Bool
	reconnectBackoff     time.Duration
	maxReconnectInterval time.Duration

	sessionMu     sync.RWMutex
	topic         string
	network       string
	sessionExpiry time.Time

	onAccountsChanged func(accounts []string)
	onSessionExpired  func()
}

// NewRelayClient dials relayURL and starts the read loop. projectID is
// carried in the initial session-proposal payload (format depends on the
// relay's pairing protocol version; opaque to this client).
func NewRelayClient(relayURL, projectID string) (*RelayClient, error) {
	c := &RelayClient{
		url:                  relayURL,
		projectID:            projectID,
		pending:              make(map[int64]chan *wcResponse),
		closeChan:            make(chan struct{}),
		reconnectBackoff:     time.Second,
		maxReconnectInterval: 60 * time.Second,
	}
	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("connect to walletconnect relay: %w", err)
	}
	go c.readLoop()
	return c, nil
}

func (c *RelayClient) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

// reconnect re-establishes the socket and then verifies the paired topic
// is still live on the relay. A socket reconnect says nothing about
// pairing state: the relay may have expired or evicted the topic while
// the socket was down, so every reconnect that finds an active topic
// pings it before declaring the session usable again, and tears the
// session down (notifying the caller) rather than leaving a client that
// believes it is connected to a topic the relay has already discarded.
func (c *RelayClient) reconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	backoff := c.reconnectBackoff
	for {
		select {
		case <-c.closeChan:
			return
		case <-time.After(backoff):
			if err := c.connect(); err != nil {
				backoff *= 2
				if backoff > c.maxReconnectInterval {
					backoff = c.maxReconnectInterval
				}
				continue
			}
			go c.readLoop()
			c.verifySessionAfterReconnect()
			return
		}
	}
}

// verifySessionAfterReconnect pings the paired topic once the socket is
// back up; a failed ping or an already-expired session clears local
// pairing state and notifies onSessionExpired so the orchestrator can
// re-propose a session instead of silently operating on a dead topic.
func (c *RelayClient) verifySessionAfterReconnect() {
	c.sessionMu.RLock()
	topic := c.topic
	expiry := c.sessionExpiry
	c.sessionMu.RUnlock()
	if topic == "" {
		return
	}

	if time.Now().After(expiry) {
		c.expireSession()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := c.call(ctx, "wc_sessionPing", map[string]interface{}{"topic": topic}); err != nil {
		c.expireSession()
	}
}

func (c *RelayClient) expireSession() {
	c.sessionMu.Lock()
	hadTopic := c.topic != ""
	c.topic = ""
	c.sessionExpiry = time.Time{}
	c.sessionMu.Unlock()

	if hadTopic && c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}

func (c *RelayClient) readLoop() {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return
	}

	for {
		select {
		case <-c.closeChan:
			return
		default:
			var msg json.RawMessage
			if err := conn.ReadJSON(&msg); err != nil {
				go c.reconnect()
				return
			}
			c.dispatch(msg)
		}
	}
}

func (c *RelayClient) dispatch(msg json.RawMessage) {
	var partial struct {
		ID     *int64          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(msg, &partial); err != nil {
		return
	}

	if partial.ID != nil {
		var resp wcResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			return
		}
		c.pendingMu.RLock()
		ch, exists := c.pending[*partial.ID]
		c.pendingMu.RUnlock()
		if exists {
			ch <- &resp
		}
		return
	}

	switch partial.Method {
	case "session_event":
		c.dispatchSessionEvent(partial.Params)
	case "session_delete":
		// the wallet or relay tore down the pairing out of band (user
		// disconnected from the wallet app); treat exactly like a
		// ping-detected expiry so callers re-propose rather than retry
		// requests against a topic nobody on the other end recognizes.
		c.expireSession()
	}
}

func (c *RelayClient) dispatchSessionEvent(params json.RawMessage) {
	if c.onAccountsChanged == nil {
		return
	}
	var evt struct {
		Event struct {
			Name string          `json:"name"`
			Data json.RawMessage `json:"data"`
		} `json:"event"`
	}
	if err := json.Unmarshal(params, &evt); err != nil || evt.Event.Name != EventAccountsChanged {
		return
	}
	var namespaced []string
	if json.Unmarshal(evt.Event.Data, &namespaced) != nil {
		return
	}
	c.onAccountsChanged(parseNamespacedAccounts(namespaced))
}

func parseNamespacedAccounts(namespaced []string) []string {
	accounts := make([]string, 0, len(namespaced))
	for _, ns := range namespaced {
		parts := strings.SplitN(ns, ":", 3)
		if len(parts) == 3 {
			accounts = append(accounts, parts[2])
		}
	}
	return accounts
}

func (c *RelayClient) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("walletconnect relay client is closed")
	}

	id := c.requestID.Add(1)
	respCh := make(chan *wcResponse, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return nil, fmt.Errorf("walletconnect relay not connected")
	}

	req := wcRequest{ID: id, JSONRPC: "2.0", Method: method, Params: params}
	if err := conn.WriteJSON(req); err != nil {
		go c.reconnect()
		return nil, fmt.Errorf("send walletconnect request: %w", err)
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closeChan:
		return nil, fmt.Errorf("walletconnect relay client closed")
	}
}

// Connect opens a session proposing the near:<network> chain and the
// signAndSendTransaction/signMessage method set, returning the accounts
// parsed from the session namespace strings ("near:<network>:<accountId>").
// The paired topic is stamped with sessionTTL so later reconnects know
// when it is due to expire even without a ping round-trip.
func (c *RelayClient) Connect(ctx context.Context, network string) ([]string, error) {
	chain := fmt.Sprintf("%s:%s", WCNamespaceKey, network)
	params := map[string]interface{}{
		"requiredNamespaces": map[string]interface{}{
			WCNamespaceKey: map[string]interface{}{
				"chains":  []string{chain},
				"methods": []string{MethodSignAndSend, MethodSignMessage},
				"events":  []string{EventAccountsChanged},
			},
		},
	}

	result, err := c.call(ctx, "wc_sessionRequest", params)
	if err != nil {
		return nil, err
	}

	var session struct {
		Topic      string `json:"topic"`
		Namespaces struct {
			Near struct {
				Accounts []string `json:"accounts"`
			} `json:"near"`
		} `json:"namespaces"`
	}
	if err := json.Unmarshal(result, &session); err != nil {
		return nil, fmt.Errorf("decode session response: %w", err)
	}

	c.sessionMu.Lock()
	c.topic = session.Topic
	c.network = network
	c.sessionExpiry = time.Now().Add(sessionTTL)
	c.sessionMu.Unlock()

	return parseNamespacedAccounts(session.Namespaces.Near.Accounts), nil
}

// Request dispatches a signing method over the active session's topic.
// A session past sessionExpiry is treated as already gone even if the
// socket never noticed, since the relay is free to garbage-collect an
// expired topic without telling a client that isn't asking.
func (c *RelayClient) Request(ctx context.Context, chainID, method string, params interface{}) (json.RawMessage, error) {
	c.sessionMu.RLock()
	topic := c.topic
	expired := topic != "" && time.Now().After(c.sessionExpiry)
	c.sessionMu.RUnlock()

	if topic == "" {
		return nil, fmt.Errorf("no active walletconnect session")
	}
	if expired {
		c.expireSession()
		return nil, fmt.Errorf("walletconnect session expired, re-pairing required")
	}

	return c.call(ctx, "wc_sessionRequest", map[string]interface{}{
		"topic":   topic,
		"chainId": chainID,
		"request": map[string]interface{}{"method": method, "params": params},
	})
}

// OnAccountsChanged registers a listener for namespace account-set
// updates delivered as session_event notifications.
func (c *RelayClient) OnAccountsChanged(f func(accounts []string)) {
	c.onAccountsChanged = f
}

// OnSessionExpired registers a listener invoked when the relay-side
// pairing is found to be gone (ping failure after reconnect, explicit
// session_delete, or local TTL expiry) so the orchestrator can clear any
// cached external session and prompt the user to re-pair.
func (c *RelayClient) OnSessionExpired(f func()) {
	c.onSessionExpired = f
}

// SessionExpired reports whether the current pairing, if any, is past
// sessionTTL.
func (c *RelayClient) SessionExpired() bool {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.topic != "" && time.Now().After(c.sessionExpiry)
}

// Disconnect closes the session and clears orchestrator-visible state.
func (c *RelayClient) Disconnect() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.closeChan)

	c.sessionMu.Lock()
	c.topic = ""
	c.sessionExpiry = time.Time{}
	c.sessionMu.Unlock()

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
