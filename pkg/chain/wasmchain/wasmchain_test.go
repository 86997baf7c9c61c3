package wasmchain_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"testing"

	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"
	tmtypes "github.com/tendermint/tendermint/types"

	fadromachain "github.com/luca992/fadroma/pkg/chain"
	"github.com/luca992/fadroma/pkg/chain/wasmchain"
	"github.com/luca992/fadroma/pkg/receipt"
)

type fakeRPC struct {
	height     int64
	nextCodeID uint64
	codeHash   string
	txCount    int
	// omitTxHash, when set, makes BroadcastTx leave txHash empty and hand
	// back raw txBytes instead, exercising Agent's tendermint-derived
	// fallback hash.
	omitTxHash bool
}

func (f *fakeRPC) EstimateGas(ctx context.Context, msgs []sdk.Msg) (uint64, error) { return 100000, nil }

func (f *fakeRPC) BroadcastTx(ctx context.Context, msgs []sdk.Msg, memo string, gas uint64) (string, []byte, map[string]string, error) {
	f.txCount++
	f.nextCodeID++
	events := map[string]string{
		"code_id":           "1",
		"_contract_address": "wasm1contractaddr",
	}
	txBytes := []byte("signed-tx-bytes")
	if f.omitTxHash {
		return "", txBytes, events, nil
	}
	return "TXHASH", txBytes, events, nil
}

func (f *fakeRPC) QueryCodeInfo(ctx context.Context, codeID uint64) (string, error) { return f.codeHash, nil }
func (f *fakeRPC) QueryContractInfo(ctx context.Context, address string) (uint64, string, error) {
	return 1, "label1", nil
}
func (f *fakeRPC) QueryHeight(ctx context.Context) (int64, error) { f.height++; return f.height, nil }
func (f *fakeRPC) QueryBalance(ctx context.Context, address, denom string) (string, error) {
	return "100", nil
}
func (f *fakeRPC) QuerySmart(ctx context.Context, address string, msg receipt.RawMessage) (receipt.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

const testAddr = "cosmos1qjs64apjq4fuh3zme4ea6flx9aasy97qxz6e4d"

func TestWasmchainUploadInstantiateExecute(t *testing.T) {
	rpc := &fakeRPC{height: 10, codeHash: "abc123"}
	c, err := wasmchain.New(fadromachain.Config{ID: "test-1", Mode: fadromachain.Testnet}, rpc)
	require.NoError(t, err)

	agent, err := c.GetAgent(context.Background(), fadromachain.AgentOpts{Address: testAddr})
	require.NoError(t, err)

	uploaded, err := agent.Upload(context.Background(), []byte("wasmbytes"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), uploaded.CodeID)

	inst, err := agent.Instantiate(context.Background(), uploaded, "label1", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, "wasm1contractaddr", inst.Address)

	result, err := agent.Execute(context.Background(), inst.Address, json.RawMessage(`{"x":1}`), fadromachain.ExecuteOptions{})
	require.NoError(t, err)
	require.Equal(t, "TXHASH", result.TxHash)
}

func TestWasmchainBundleSubmitsOneTx(t *testing.T) {
	rpc := &fakeRPC{height: 10}
	c, err := wasmchain.New(fadromachain.Config{ID: "test-1", Mode: fadromachain.Testnet}, rpc)
	require.NoError(t, err)
	agent, err := c.GetAgent(context.Background(), fadromachain.AgentOpts{Address: testAddr})
	require.NoError(t, err)

	txCountBefore := rpc.txCount
	_, err = fadromachain.Wrap(context.Background(), agent, agent.(*wasmchain.Agent), "memo", "", func(b *fadromachain.Bundle) {
		_, _ = b.Execute(context.Background(), "wasm1c", json.RawMessage(`{"a":1}`), fadromachain.ExecuteOptions{})
		_, _ = b.Execute(context.Background(), "wasm1c", json.RawMessage(`{"b":2}`), fadromachain.ExecuteOptions{})
	})
	require.NoError(t, err)
	require.Equal(t, txCountBefore+1, rpc.txCount, "two execute calls submit as a single tx")
}

func TestWasmchainDerivesTxHashWhenBroadcasterOmitsIt(t *testing.T) {
	rpc := &fakeRPC{height: 10, codeHash: "abc123", omitTxHash: true}
	c, err := wasmchain.New(fadromachain.Config{ID: "test-1", Mode: fadromachain.Testnet}, rpc)
	require.NoError(t, err)
	agent, err := c.GetAgent(context.Background(), fadromachain.AgentOpts{Address: testAddr})
	require.NoError(t, err)

	uploaded, err := agent.Upload(context.Background(), []byte("wasmbytes"))
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(tmtypes.Tx("signed-tx-bytes").Hash()), uploaded.UploadTx)
}

func TestWasmchainNextBlockResolvesOnIncrease(t *testing.T) {
	rpc := &fakeRPC{height: 10}
	c, err := wasmchain.New(fadromachain.Config{ID: "test-1", Mode: fadromachain.Devnet}, rpc)
	require.NoError(t, err)
	h, err := c.NextBlock(context.Background())
	require.NoError(t, err)
	require.Greater(t, h, int64(10))
}
