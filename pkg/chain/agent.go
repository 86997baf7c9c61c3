package chain

import (
	"context"

	"github.com/luca992/fadroma/pkg/receipt"
)

// Coin is a minimal denom/amount pair, avoiding a direct dependency on any
// one backend's coin type at the abstraction boundary.
type Coin struct {
	Denom  string
	Amount string
}

// ExecuteOptions carries the optional funds sent alongside an execute call.
type ExecuteOptions struct {
	Send []Coin
}

// ExecuteResult is the backend-agnostic result of Agent.Execute.
type ExecuteResult struct {
	TxHash string
	Data   receipt.RawMessage
}

// Agent is an authenticated identity on a Chain. Read operations delegate
// to the underlying Chain; write operations are backend-specific.
type Agent interface {
	Chain() Chain
	Address() string
	Name() string
	Fees() string

	Height(ctx context.Context) (int64, error)
	NextBlock(ctx context.Context) (int64, error)
	GetBalance(ctx context.Context, denom string) (string, error)
	Query(ctx context.Context, contract string, msg receipt.RawMessage) (receipt.RawMessage, error)
	GetCodeID(ctx context.Context, address string) (uint64, error)
	GetLabel(ctx context.Context, address string) (string, error)
	GetHash(ctx context.Context, addressOrCodeID string) (string, error)
	CheckHash(ctx context.Context, address, expected string) (string, error)

	Send(ctx context.Context, to string, coins []Coin) (string, error)
	SendMany(ctx context.Context, to []string, coins []Coin) ([]string, error)
	Upload(ctx context.Context, blob []byte) (receipt.UploadedTemplate, error)
	UploadMany(ctx context.Context, blobs [][]byte) ([]receipt.UploadedTemplate, error)
	Instantiate(ctx context.Context, tmpl receipt.UploadedTemplate, label string, initMsg receipt.RawMessage) (receipt.ContractInstance, error)
	InstantiateMany(ctx context.Context, tmpl receipt.UploadedTemplate, entries []InstantiateEntry) ([]receipt.ContractInstance, error)
	Execute(ctx context.Context, contract string, msg receipt.RawMessage, opts ExecuteOptions) (ExecuteResult, error)

	// Bundle starts a deferred batch bound to this agent.
	Bundle() *Bundle
}

// InstantiateEntry is one (label, initMsg) pair fed to InstantiateMany.
type InstantiateEntry struct {
	Label   string
	InitMsg receipt.RawMessage
}

// DefaultUploadMany fans UploadMany out over the singular Upload,
// preserving order — the default implementation every backend may reuse
// verbatim per spec.md §4.3.
func DefaultUploadMany(ctx context.Context, a Agent, blobs [][]byte) ([]receipt.UploadedTemplate, error) {
	out := make([]receipt.UploadedTemplate, len(blobs))
	for i, blob := range blobs {
		u, err := a.Upload(ctx, blob)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}

// DefaultInstantiateMany fans InstantiateMany out over the singular
// Instantiate, preserving order and propagating tmpl's codeHash onto every
// result (spec.md §4.3).
func DefaultInstantiateMany(ctx context.Context, a Agent, tmpl receipt.UploadedTemplate, entries []InstantiateEntry) ([]receipt.ContractInstance, error) {
	out := make([]receipt.ContractInstance, len(entries))
	for i, e := range entries {
		inst, err := a.Instantiate(ctx, tmpl, e.Label, e.InitMsg)
		if err != nil {
			return nil, err
		}
		inst.CodeHash = tmpl.CodeHash
		out[i] = inst
	}
	return out, nil
}
