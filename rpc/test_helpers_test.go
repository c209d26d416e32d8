package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"recycless/core"
	"recycless/core/types"
	"recycless/crypto"
	"recycless/storage"
)

const testNetwork = "recycless-test"

var testContractAccount = common.HexToAddress("0x00000000000000000000000000000000000c0de0")

type testEnv struct {
	contract *core.Contract
	server   *Server
	handler  http.Handler
}

func newTestEnv(t *testing.T, reader BankReader, ledger core.AssetLedger, cfg ServerConfig) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	dispatcher := core.NewDispatcher(ledger, testContractAccount, 8, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dispatcher.Close(ctx)
	})
	contract := core.NewContract(db, dispatcher, core.Options{Network: testNetwork})
	srv := NewServer(contract, reader, cfg)
	return &testEnv{contract: contract, server: srv, handler: srv.Handler()}
}

type testKey struct {
	key  *crypto.PrivateKey
	addr common.Address
}

func newTestKey(t *testing.T) *testKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return &testKey{key: key, addr: key.PubKey().Address().Raw()}
}

func (k *testKey) signed(t *testing.T, method types.Method, nonce uint64, args interface{}) *types.Call {
	t.Helper()
	call := &types.Call{Network: testNetwork, Method: method, Nonce: nonce}
	if args != nil {
		raw, err := json.Marshal(args)
		require.NoError(t, err)
		call.Args = raw
	}
	require.NoError(t, call.Sign(k.key.PrivateKey))
	return call
}

type rpcResult struct {
	Status int
	Result json.RawMessage
	Error  *RPCError
}

func (e *testEnv) post(t *testing.T, method string, params ...interface{}) rpcResult {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		require.NoError(t, err)
		raw = append(raw, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: 1})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.1:1234"
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rpcResult{Status: rec.Code, Result: resp.Result, Error: resp.Error}
}
