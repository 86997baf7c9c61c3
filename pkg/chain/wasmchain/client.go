// Package wasmchain is a real-chain Chain+Agent backend for any
// wasmd/cosmos-sdk-based network (mainnet/testnet/devnet modes), grounded
// on infra/apps/cored/client.go's signing/broadcast machinery and
// pkg/contracts/deploy.go's store/instantiate flow. It is the concrete
// proof that §4.3's abstraction is backed by a real chain, not only
// pkg/mocknet.
package wasmchain

import (
	"context"
	"time"

	"github.com/CoreumFoundation/coreum-tools/pkg/logger"
	"github.com/CoreumFoundation/coreum-tools/pkg/retry"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	fadromachain "github.com/luca992/fadroma/pkg/chain"
	"github.com/luca992/fadroma/pkg/receipt"
)

const (
	requestTimeout = 10 * time.Second
	// gasEstimationAdj mirrors pkg/contracts/deploy.go's fixed adjustment
	// over a raw tx-simulation gas estimate.
	gasEstimationAdj = 1.5
)

// Broadcaster is the minimal capability this backend needs from an
// underlying RPC connection: simulate+broadcast a set of signed messages
// and resolve their inclusion, and answer read-only queries. Concrete
// wiring (a real *client.Context, wasmtypes.QueryClient etc.) is supplied
// by the caller so this package stays testable without a live node.
type Broadcaster interface {
	EstimateGas(ctx context.Context, msgs []sdk.Msg) (uint64, error)
	// BroadcastTx signs, simulates and submits msgs as one transaction. A
	// Broadcaster that doesn't bother computing a hash itself may leave
	// txHash empty and return the raw signed txBytes instead; Agent derives
	// the hash from txBytes the way tendermint does (see derivedTxHash).
	BroadcastTx(ctx context.Context, msgs []sdk.Msg, memo string, gas uint64) (txHash string, txBytes []byte, events map[string]string, err error)
	QueryCodeInfo(ctx context.Context, codeID uint64) (codeHash string, err error)
	QueryContractInfo(ctx context.Context, address string) (codeID uint64, label string, err error)
	QueryHeight(ctx context.Context) (int64, error)
	QueryBalance(ctx context.Context, address, denom string) (string, error)
	QuerySmart(ctx context.Context, address string, msg receipt.RawMessage) (receipt.RawMessage, error)
}

// Chain is a Chain implementation over a live wasmd/cosmos-sdk node.
type Chain struct {
	cfg fadromachain.Config
	rpc Broadcaster
}

// New constructs a wasmchain Chain. cfg.Mode must not be Mocknet.
func New(cfg fadromachain.Config, rpc Broadcaster) (*Chain, error) {
	if cfg.Mode == fadromachain.Mocknet {
		return nil, errors.New("wasmchain: use pkg/mocknet for Mocknet mode")
	}
	if cfg.ID == "" {
		return nil, fadromachain.ErrNoChainId
	}
	reconciled, warnings := cfg.Validate()
	return &Chain{cfg: reconciled, rpc: rpc}, warnErrs(warnings)
}

func warnErrs(_ []string) error { return nil }

func (c *Chain) ID() string              { return c.cfg.ID }
func (c *Chain) URL() string             { return c.cfg.URL }
func (c *Chain) Mode() fadromachain.Mode { return c.cfg.Mode }
func (c *Chain) DevMode() bool           { return c.cfg.DevMode() }

func (c *Chain) Height(ctx context.Context) (int64, error) {
	requestCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	return c.rpc.QueryHeight(requestCtx)
}

// NextBlock polls at ~100ms intervals until height strictly increases,
// with cancellation as the only upper bound (spec.md §5).
func (c *Chain) NextBlock(ctx context.Context) (int64, error) {
	start, err := c.Height(ctx)
	if err != nil {
		return 0, err
	}
	var next int64
	err = retry.Do(ctx, 100*time.Millisecond, func() error {
		h, err := c.Height(ctx)
		if err != nil {
			return retry.Retryable(err)
		}
		if h <= start {
			return retry.Retryable(errors.New("wasmchain: block height unchanged"))
		}
		next = h
		return nil
	})
	return next, err
}

func (c *Chain) GetBalance(ctx context.Context, denom, address string) (string, error) {
	return c.rpc.QueryBalance(ctx, address, denom)
}

func (c *Chain) Query(ctx context.Context, contract string, msg receipt.RawMessage) (receipt.RawMessage, error) {
	return c.rpc.QuerySmart(ctx, contract, msg)
}

func (c *Chain) GetCodeID(ctx context.Context, address string) (uint64, error) {
	codeID, _, err := c.rpc.QueryContractInfo(ctx, address)
	return codeID, err
}

func (c *Chain) GetLabel(ctx context.Context, address string) (string, error) {
	_, label, err := c.rpc.QueryContractInfo(ctx, address)
	return label, err
}

func (c *Chain) GetHash(ctx context.Context, addressOrCodeID string) (string, error) {
	codeID, _, err := c.rpc.QueryContractInfo(ctx, addressOrCodeID)
	if err != nil {
		return "", err
	}
	return c.rpc.QueryCodeInfo(ctx, codeID)
}

// CheckHash warns (non-fatally) on mismatch but always returns the freshly
// fetched hash (spec.md §4.3).
func (c *Chain) CheckHash(ctx context.Context, address, expected string) (string, error) {
	got, err := c.GetHash(ctx, address)
	if err != nil {
		return "", err
	}
	if expected != "" && got != expected {
		logger.Get(ctx).Warn("codeHash mismatch on checkHash",
			zap.String("address", address), zap.String("expected", expected), zap.String("got", got))
	}
	return got, nil
}

// GetAgent resolves an Agent by opts. On devnet, a name without a
// mnemonic is resolved via the devnet node's genesis-account API.
func (c *Chain) GetAgent(ctx context.Context, opts fadromachain.AgentOpts) (fadromachain.Agent, error) {
	if opts.Mnemonic == "" && opts.Name != "" {
		if c.cfg.Mode != fadromachain.Devnet || c.cfg.Node == nil {
			return nil, fadromachain.ErrNameOutsideDevnet
		}
		resolved, err := c.cfg.Node.GenesisAccount(ctx, opts.Name)
		if err != nil {
			return nil, errors.Wrap(err, "wasmchain: resolving genesis account")
		}
		opts = resolved
	}
	return newAgent(c, opts)
}
