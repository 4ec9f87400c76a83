package rpcx

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL:      srv.URL,
		Timeout:      2 * time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	})
}

func TestCall_SucceedsFirstTry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  42,
		})
	})

	var result int
	err := c.Call(t.Context(), "getEpochInfo", []interface{}{}, &result)
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestCall_RetriesOnTransientFailureThenSucceeds(t *testing.T) {
	var attempts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": "ok"})
	})

	var result string
	err := c.Call(t.Context(), "getEpochInfo", []interface{}{}, &result)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestCall_ExhaustsRetriesAndReturnsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	var result string
	err := c.Call(t.Context(), "getEpochInfo", []interface{}{}, &result)
	assert.Error(t, err)
}

func TestCall_PropagatesRPCError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]interface{}{"code": -32602, "message": "invalid params"},
		})
	})

	var result string
	err := c.Call(t.Context(), "getEpochInfo", []interface{}{}, &result)
	assert.Error(t, err)
}

func TestGetProgramAccounts_DecodesAccounts(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("hello"))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result": []map[string]interface{}{
				{
					"pubkey": "Acct1",
					"account": map[string]interface{}{
						"lamports":   1,
						"owner":      "Prog1",
						"executable": false,
						"rentEpoch":  0,
						"data":       []string{payload, "base64"},
					},
				},
			},
		})
	})

	accounts, err := c.GetProgramAccounts(t.Context(), "Prog1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Acct1", accounts[0].Pubkey)

	raw, err := accounts[0].Account.Decode()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(raw))
}

func TestGetAccountInfo_MissingAccountReturnsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result":  map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": nil},
		})
	})

	val, err := c.GetAccountInfo(t.Context(), "Missing")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestGetMultipleAccounts_PreservesOrderWithNils(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("x"))
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value": []interface{}{
					nil,
					map[string]interface{}{
						"lamports": 1, "owner": "P", "executable": false, "rentEpoch": 0,
						"data": []string{payload, "base64"},
					},
				},
			},
		})
	})

	vals, err := c.GetMultipleAccounts(t.Context(), []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, vals, 2)
	assert.Nil(t, vals[0])
	require.NotNil(t, vals[1])
}
