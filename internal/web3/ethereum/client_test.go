package ethereum

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/internal/web3"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newRPCServer answers eth_chainId and eth_blockNumber with fixed values.
func newRPCServer(t *testing.T, chainID, block string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch req.Method {
		case "eth_chainId":
			resp["result"] = chainID
		case "eth_blockNumber":
			resp["result"] = block
		default:
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClientFetchChainSnapshot(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := newRPCServer(t, "0x539", "0x10")
	client, err := NewClient(ctx, Config{Name: "local", RPCURL: server.URL, Notes: "test node"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(client.Close)

	snapshot, err := client.FetchChainSnapshot(ctx)
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}
	if snapshot.ChainID != "0x539" || snapshot.BlockNumber != "0x10" || snapshot.Notes != "test node" {
		t.Fatalf("unexpected snapshot %+v", snapshot)
	}
	if client.Name() != "local" {
		t.Fatalf("unexpected name %s", client.Name())
	}
}

func TestVerifyEndpoint(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := newRPCServer(t, "0x1", "0x0")
	if err := VerifyEndpoint(ctx, server.URL, big.NewInt(1)); err != nil {
		t.Fatalf("verify matching chain: %v", err)
	}

	err := VerifyEndpoint(ctx, server.URL, big.NewInt(5))
	if !errors.Is(err, xerrors.New(web3.CodeChainMismatch, "")) {
		t.Fatalf("expected chain mismatch, got %v", err)
	}
	if meta := xerrors.CodeOf(err); meta != web3.CodeChainMismatch {
		t.Fatalf("unexpected code %s", meta)
	}
}

func TestClosedClientRejectsCalls(t *testing.T) {
	t.Parallel()

	server := newRPCServer(t, "0x1", "0x0")
	client, err := NewClient(context.Background(), Config{RPCURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.Close()
	if _, err := client.ChainID(context.Background()); err == nil {
		t.Fatal("expected error after close")
	}
	if _, err := NewClient(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty rpc url")
	}
}
