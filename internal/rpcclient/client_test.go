package rpcclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func jsonRPCServer(t *testing.T, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  result,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestViewAccessKeyDecodesFullAccessPermission(t *testing.T) {
	srv := jsonRPCServer(t, map[string]interface{}{
		"nonce":        42,
		"permission":   "FullAccess",
		"block_hash":   "abc",
		"block_height": 100,
	})
	defer srv.Close()

	c, err := New([]string{srv.URL}, time.Second)
	require.NoError(t, err)

	view, err := c.ViewAccessKey(context.Background(), "alice.near", "ed25519:abc")
	require.NoError(t, err)
	require.EqualValues(t, 42, view.Nonce)
	require.True(t, view.Permission.FullAccess)
}

func TestLatestBlockDecodesHeader(t *testing.T) {
	srv := jsonRPCServer(t, map[string]interface{}{
		"header": map[string]interface{}{"hash": "blockhash123", "height": 999},
	})
	defer srv.Close()

	c, err := New([]string{srv.URL}, time.Second)
	require.NoError(t, err)

	header, err := c.LatestBlock(context.Background())
	require.NoError(t, err)
	require.Equal(t, "blockhash123", header.Hash)
}

func TestCallFailsOverToSecondEndpoint(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := jsonRPCServer(t, map[string]interface{}{"nonce": 1, "permission": "FullAccess"})
	defer good.Close()

	c, err := New([]string{bad.URL, good.URL}, time.Second)
	require.NoError(t, err)

	view, err := c.ViewAccessKey(context.Background(), "alice.near", "ed25519:abc")
	require.NoError(t, err)
	require.EqualValues(t, 1, view.Nonce)
}

func TestCallReturnsErrorWhenAllEndpointsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	c, err := New([]string{bad.URL}, time.Second)
	require.NoError(t, err)

	_, err = c.ViewAccessKey(context.Background(), "alice.near", "ed25519:abc")
	require.Error(t, err)
}

func TestBroadcastTxCommitDecodesOutcome(t *testing.T) {
	srv := jsonRPCServer(t, map[string]interface{}{
		"status":      map[string]interface{}{"SuccessValue": ""},
		"transaction": "txhash123",
	})
	defer srv.Close()

	c, err := New([]string{srv.URL}, time.Second)
	require.NoError(t, err)

	outcome, err := c.BroadcastTxCommit(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, "txhash123", outcome.TransactionHash)
}
