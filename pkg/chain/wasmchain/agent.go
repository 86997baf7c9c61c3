package wasmchain

import (
	"context"
	"encoding/hex"
	"strconv"

	"github.com/CoreumFoundation/coreum-tools/pkg/logger"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	banktypes "github.com/cosmos/cosmos-sdk/x/bank/types"
	"github.com/pkg/errors"
	tmtypes "github.com/tendermint/tendermint/types"
	"go.uber.org/zap"

	fadromachain "github.com/luca992/fadroma/pkg/chain"
	"github.com/luca992/fadroma/pkg/receipt"
)

// Agent is an authenticated identity signing and broadcasting against a
// wasmchain.Chain, grounded directly on infra/apps/cored/client.go's
// Sign/Broadcast pair and pkg/contracts/deploy.go's
// runContractStore/runContractInstantiate.
type Agent struct {
	chain   *Chain
	address sdk.AccAddress
	name    string
	fees    string
}

func newAgent(c *Chain, opts fadromachain.AgentOpts) (*Agent, error) {
	if opts.Address == "" {
		// Deriving a bech32 address from a bare mnemonic requires a
		// keyring import (infra/apps/cored/key.go's addKeysToStore); the
		// caller is expected to have resolved that already — on devnet,
		// Chain.GetAgent does this via the node's genesis-account API.
		return nil, fadromachain.ErrNoChainSelected
	}
	accAddr, err := sdk.AccAddressFromBech32(opts.Address)
	if err != nil {
		return nil, errors.Wrap(err, "wasmchain: parsing agent address")
	}
	return &Agent{chain: c, address: accAddr, name: opts.Name, fees: opts.Fees}, nil
}

func (a *Agent) Chain() fadromachain.Chain { return a.chain }
func (a *Agent) Address() string           { return a.address.String() }
func (a *Agent) Name() string              { return a.name }
func (a *Agent) Fees() string              { return a.fees }

func (a *Agent) Height(ctx context.Context) (int64, error)    { return a.chain.Height(ctx) }
func (a *Agent) NextBlock(ctx context.Context) (int64, error) { return a.chain.NextBlock(ctx) }
func (a *Agent) GetBalance(ctx context.Context, denom string) (string, error) {
	return a.chain.GetBalance(ctx, denom, a.Address())
}
func (a *Agent) Query(ctx context.Context, contract string, msg receipt.RawMessage) (receipt.RawMessage, error) {
	return a.chain.Query(ctx, contract, msg)
}
func (a *Agent) GetCodeID(ctx context.Context, address string) (uint64, error) {
	return a.chain.GetCodeID(ctx, address)
}
func (a *Agent) GetLabel(ctx context.Context, address string) (string, error) {
	return a.chain.GetLabel(ctx, address)
}
func (a *Agent) GetHash(ctx context.Context, addressOrCodeID string) (string, error) {
	return a.chain.GetHash(ctx, addressOrCodeID)
}
func (a *Agent) CheckHash(ctx context.Context, address, expected string) (string, error) {
	return a.chain.CheckHash(ctx, address, expected)
}

func (a *Agent) Send(ctx context.Context, to string, coins []fadromachain.Coin) (string, error) {
	toAddr, err := sdk.AccAddressFromBech32(to)
	if err != nil {
		return "", errors.Wrap(err, "wasmchain: parsing recipient")
	}
	msg := &banktypes.MsgSend{FromAddress: a.Address(), ToAddress: toAddr.String(), Amount: toSDKCoins(coins)}
	return a.broadcastOne(ctx, msg)
}

func (a *Agent) SendMany(ctx context.Context, to []string, coins []fadromachain.Coin) ([]string, error) {
	out := make([]string, len(to))
	for i, addr := range to {
		txHash, err := a.Send(ctx, addr, coins)
		if err != nil {
			return nil, err
		}
		out[i] = txHash
	}
	return out, nil
}

// Upload stores a WASM blob on chain via MsgStoreCode, grounded on
// pkg/contracts/deploy.go's runContractStore.
func (a *Agent) Upload(ctx context.Context, blob []byte) (receipt.UploadedTemplate, error) {
	msg := &wasmtypes.MsgStoreCode{
		Sender:       a.Address(),
		WASMByteCode: blob,
	}
	gas, err := a.chain.rpc.EstimateGas(ctx, []sdk.Msg{msg})
	if err != nil {
		return receipt.UploadedTemplate{}, errors.Wrap(err, "wasmchain: estimating store gas")
	}
	txHash, txBytes, events, err := a.chain.rpc.BroadcastTx(ctx, []sdk.Msg{msg}, "", uint64(float64(gas)*gasEstimationAdj))
	if err != nil {
		return receipt.UploadedTemplate{}, errors.Wrap(err, "wasmchain: broadcasting MsgStoreCode")
	}
	txHash = resolveTxHash(txHash, txBytes)
	codeID, err := attrUint(events, "code_id")
	if err != nil {
		return receipt.UploadedTemplate{}, err
	}
	logger.Get(ctx).Info("uploaded WASM code", zap.Uint64("codeId", codeID), zap.String("txHash", txHash))
	return receipt.UploadedTemplate{
		ChainID:  a.chain.ID(),
		CodeID:   codeID,
		UploadTx: txHash,
		UploadBy: a.Address(),
	}, nil
}

func (a *Agent) UploadMany(ctx context.Context, blobs [][]byte) ([]receipt.UploadedTemplate, error) {
	return fadromachain.DefaultUploadMany(ctx, a, blobs)
}

// Instantiate sends MsgInstantiateContract, grounded on
// pkg/contracts/deploy.go's runContractInstantiate.
func (a *Agent) Instantiate(ctx context.Context, tmpl receipt.UploadedTemplate, label string, initMsg receipt.RawMessage) (receipt.ContractInstance, error) {
	msg := &wasmtypes.MsgInstantiateContract{
		Sender: a.Address(),
		Admin:  a.Address(),
		CodeID: tmpl.CodeID,
		Label:  label,
		Msg:    initMsg,
	}
	gas, err := a.chain.rpc.EstimateGas(ctx, []sdk.Msg{msg})
	if err != nil {
		return receipt.ContractInstance{}, errors.Wrap(err, "wasmchain: estimating instantiate gas")
	}
	txHash, txBytes, events, err := a.chain.rpc.BroadcastTx(ctx, []sdk.Msg{msg}, "", uint64(float64(gas)*gasEstimationAdj))
	if err != nil {
		return receipt.ContractInstance{}, errors.Wrap(err, "wasmchain: broadcasting MsgInstantiateContract")
	}
	txHash = resolveTxHash(txHash, txBytes)
	address, ok := events["_contract_address"]
	if !ok {
		return receipt.ContractInstance{}, errors.New("wasmchain: instantiate response missing contract address attribute")
	}
	return receipt.ContractInstance{
		UploadedTemplate: tmpl,
		Address:          address,
		Label:             label,
		InitBy:            a.Address(),
		InitMsg:           initMsg,
		InitTx:            txHash,
	}, nil
}

func (a *Agent) InstantiateMany(ctx context.Context, tmpl receipt.UploadedTemplate, entries []fadromachain.InstantiateEntry) ([]receipt.ContractInstance, error) {
	return fadromachain.DefaultInstantiateMany(ctx, a, tmpl, entries)
}

func (a *Agent) Execute(ctx context.Context, contract string, msg receipt.RawMessage, opts fadromachain.ExecuteOptions) (fadromachain.ExecuteResult, error) {
	execMsg := &wasmtypes.MsgExecuteContract{
		Sender:   a.Address(),
		Contract: contract,
		Msg:      msg,
		Funds:    toSDKCoins(opts.Send),
	}
	gas, err := a.chain.rpc.EstimateGas(ctx, []sdk.Msg{execMsg})
	if err != nil {
		return fadromachain.ExecuteResult{}, errors.Wrap(err, "wasmchain: estimating execute gas")
	}
	txHash, txBytes, _, err := a.chain.rpc.BroadcastTx(ctx, []sdk.Msg{execMsg}, "", uint64(float64(gas)*gasEstimationAdj))
	if err != nil {
		return fadromachain.ExecuteResult{}, errors.Wrap(err, "wasmchain: broadcasting MsgExecuteContract")
	}
	return fadromachain.ExecuteResult{TxHash: resolveTxHash(txHash, txBytes)}, nil
}

func (a *Agent) Bundle() *fadromachain.Bundle {
	return fadromachain.NewBundle(a, a)
}

// SubmitBundle broadcasts every accumulated message as one atomic
// transaction, in append order (spec.md §4.3's ordering guarantee).
func (a *Agent) SubmitBundle(ctx context.Context, messages []fadromachain.BundleMessage, memo string) (string, error) {
	msgs := make([]sdk.Msg, 0, len(messages))
	for _, m := range messages {
		switch m.Kind {
		case fadromachain.MsgInstantiate:
			msgs = append(msgs, &wasmtypes.MsgInstantiateContract{
				Sender: a.Address(), Admin: a.Address(), CodeID: m.CodeID, Label: m.Label, Msg: m.Msg,
			})
		case fadromachain.MsgExecute:
			msgs = append(msgs, &wasmtypes.MsgExecuteContract{
				Sender: a.Address(), Contract: m.Contract, Msg: m.Msg, Funds: toSDKCoins(m.Funds),
			})
		}
	}
	gas, err := a.chain.rpc.EstimateGas(ctx, msgs)
	if err != nil {
		return "", errors.Wrap(err, "wasmchain: estimating bundle gas")
	}
	txHash, txBytes, _, err := a.chain.rpc.BroadcastTx(ctx, msgs, memo, uint64(float64(gas)*gasEstimationAdj))
	if err != nil {
		return "", err
	}
	return resolveTxHash(txHash, txBytes), nil
}

// SaveBundle persists the unsigned batch for later multisig co-signing
// instead of broadcasting it immediately.
func (a *Agent) SaveBundle(ctx context.Context, name string, messages []fadromachain.BundleMessage) error {
	return errors.New("wasmchain: SaveBundle requires a configured multisig output path")
}

func (a *Agent) broadcastOne(ctx context.Context, msg sdk.Msg) (string, error) {
	gas, err := a.chain.rpc.EstimateGas(ctx, []sdk.Msg{msg})
	if err != nil {
		return "", err
	}
	txHash, txBytes, _, err := a.chain.rpc.BroadcastTx(ctx, []sdk.Msg{msg}, "", gas)
	if err != nil {
		return "", err
	}
	return resolveTxHash(txHash, txBytes), nil
}

func attrUint(events map[string]string, key string) (uint64, error) {
	v, ok := events[key]
	if !ok {
		return 0, errors.Errorf("wasmchain: missing %s attribute in tx events", key)
	}
	out, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "wasmchain: parsing %s attribute %q", key, v)
	}
	return out, nil
}

// resolveTxHash prefers a hash the Broadcaster already computed, and
// otherwise derives one from the raw signed tx bytes.
func resolveTxHash(txHash string, txBytes []byte) string {
	if txHash != "" {
		return txHash
	}
	return derivedTxHash(txBytes)
}

// derivedTxHash re-derives a transaction hash the way tendermint does,
// used when a Broadcaster returns raw tx bytes instead of a hash string.
func derivedTxHash(txBytes []byte) string {
	return hex.EncodeToString(tmtypes.Tx(txBytes).Hash())
}
