// Package chain defines the Chain/Agent/Bundle abstraction of spec.md
// §4.3: a uniform API multiple backends (real chains, mocknet) implement,
// and the deferred-execution Bundle that groups messages into one atomic
// transaction. This package is backend-agnostic; pkg/chain/wasmchain and
// pkg/mocknet are concrete implementations.
package chain

import (
	"context"

	"github.com/pkg/errors"

	"github.com/luca992/fadroma/pkg/receipt"
)

// Mode identifies which kind of backend a Chain talks to.
type Mode string

const (
	Mainnet Mode = "mainnet"
	Testnet Mode = "testnet"
	Devnet  Mode = "devnet"
	Mocknet Mode = "mocknet"
)

// Node is present iff Mode == Devnet: the supervisor this Chain is bound
// to, used to resolve genesis accounts by name.
type Node interface {
	GenesisAccount(ctx context.Context, name string) (AgentOpts, error)
	URL() string
	ChainID() string
}

// Config constructs a Chain. When Node is non-nil but Mode != Devnet, the
// node is ignored and Config.Validate surfaces a warning rather than an
// error (spec.md §4.3).
type Config struct {
	ID   string
	URL  string
	Mode Mode
	Node Node
}

// Validate reconciles Node against Mode/URL/ID per spec.md §4.3: when
// devnet's node URL/chainId disagrees with provided values, the node
// values win; it returns the reconciled config plus any non-fatal
// warnings to log.
func (c Config) Validate() (Config, []string) {
	var warnings []string
	out := c
	if c.Node != nil && c.Mode != Devnet {
		warnings = append(warnings, "node provided for non-devnet chain mode; ignoring it")
		out.Node = nil
		return out, warnings
	}
	if c.Mode == Devnet && c.Node != nil {
		if c.Node.URL() != "" && c.Node.URL() != c.URL {
			warnings = append(warnings, "devnet node URL overrides configured URL")
			out.URL = c.Node.URL()
		}
		if c.Node.ChainID() != "" && c.Node.ChainID() != c.ID {
			warnings = append(warnings, "devnet node chainId overrides configured chainId")
			out.ID = c.Node.ChainID()
		}
	}
	return out, warnings
}

// DevMode reports whether this config is devnet or mocknet.
func (c Config) DevMode() bool {
	return c.Mode == Devnet || c.Mode == Mocknet
}

// Chain is a read-only connection to one backend.
type Chain interface {
	ID() string
	URL() string
	Mode() Mode
	DevMode() bool

	Height(ctx context.Context) (int64, error)
	// NextBlock resolves once the observed block height strictly
	// increases past the chain's current height, polling at ~100ms
	// intervals with no hard upper bound (spec.md §5) — cancel ctx to
	// give it one.
	NextBlock(ctx context.Context) (int64, error)
	GetBalance(ctx context.Context, denom, address string) (string, error)
	Query(ctx context.Context, contract string, msg receipt.RawMessage) (receipt.RawMessage, error)
	GetCodeID(ctx context.Context, address string) (uint64, error)
	GetLabel(ctx context.Context, address string) (string, error)
	GetHash(ctx context.Context, addressOrCodeID string) (string, error)
	// CheckHash warns (non-fatally) on mismatch but always returns the
	// freshly fetched hash.
	CheckHash(ctx context.Context, address string, expected string) (string, error)

	GetAgent(ctx context.Context, opts AgentOpts) (Agent, error)
}

// AgentOpts identifies (or authenticates) an Agent.
type AgentOpts struct {
	Name     string
	Address  string
	Mnemonic string
	Fees     string
}

var (
	ErrNoChainId         = errors.New("chain: NoChainId")
	ErrNoChainSelected   = errors.New("chain: NoChainSelected")
	ErrUnknownChain      = errors.New("chain: UnknownChainSelected")
	ErrNameOutsideDevnet = errors.New("chain: NameOutsideDevnet")
)
