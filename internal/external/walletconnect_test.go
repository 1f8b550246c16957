package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func relayTestServer(t *testing.T, handle func(conn *websocket.Conn, req map[string]interface{})) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			var req map[string]interface{}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			handle(conn, req)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestRelayClientConnectParsesNamespaceAccounts(t *testing.T) {
	srv := relayTestServer(t, func(conn *websocket.Conn, req map[string]interface{}) {
		resp := wcResponse{
			ID: int64(req["id"].(float64)),
			Result: mustJSON(t, map[string]interface{}{
				"topic": "topic-1",
				"namespaces": map[string]interface{}{
					"near": map[string]interface{}{
						"accounts": []string{"near:testnet:alice.near", "near:testnet:bob.near"},
					},
				},
			}),
		}
		require.NoError(t, conn.WriteJSON(resp))
	})

	client, err := NewRelayClient(wsURL(srv.URL), "proj-1")
	require.NoError(t, err)
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	accounts, err := client.Connect(ctx, "testnet")
	require.NoError(t, err)
	require.Equal(t, []string{"alice.near", "bob.near"}, accounts)
}

func TestRelayClientRequestFailsWithoutActiveSession(t *testing.T) {
	srv := relayTestServer(t, func(conn *websocket.Conn, req map[string]interface{}) {})

	client, err := NewRelayClient(wsURL(srv.URL), "proj-1")
	require.NoError(t, err)
	defer client.Disconnect()

	_, err = client.Request(context.Background(), "near:testnet", MethodSignMessage, nil)
	require.Error(t, err)
}

func TestRelayClientCallSurfacesRelayError(t *testing.T) {
	srv := relayTestServer(t, func(conn *websocket.Conn, req map[string]interface{}) {
		resp := wcResponse{
			ID:    int64(req["id"].(float64)),
			Error: &wcError{Code: 1, Message: "rejected"},
		}
		require.NoError(t, conn.WriteJSON(resp))
	})

	client, err := NewRelayClient(wsURL(srv.URL), "proj-1")
	require.NoError(t, err)
	defer client.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = client.Connect(ctx, "testnet")
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected")
}

func TestRelayClientOnAccountsChangedFiresOnSessionEvent(t *testing.T) {
	var gotAccounts []string
	accountsCh := make(chan struct{})

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		time.Sleep(100 * time.Millisecond)
		evt := map[string]interface{}{
			"method": "session_event",
			"params": map[string]interface{}{
				"event": map[string]interface{}{
					"name": EventAccountsChanged,
					"data": []string{"near:testnet:carol.near"},
				},
			},
		}
		require.NoError(t, conn.WriteJSON(evt))

		for {
			var msg json.RawMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	client, err := NewRelayClient(wsURL(srv.URL), "proj-1")
	require.NoError(t, err)
	defer client.Disconnect()

	client.OnAccountsChanged(func(accounts []string) {
		gotAccounts = accounts
		close(accountsCh)
	})

	select {
	case <-accountsCh:
		require.Equal(t, []string{"carol.near"}, gotAccounts)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accountsChanged")
	}
}

func TestRelayClientDisconnectIsIdempotent(t *testing.T) {
	srv := relayTestServer(t, func(conn *websocket.Conn, req map[string]interface{}) {})

	client, err := NewRelayClient(wsURL(srv.URL), "proj-1")
	require.NoError(t, err)

	require.NoError(t, client.Disconnect())
	require.NoError(t, client.Disconnect())
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
