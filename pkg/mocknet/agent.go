package mocknet

import (
	"context"

	"github.com/pkg/errors"

	fadromachain "github.com/luca992/fadroma/pkg/chain"
	"github.com/luca992/fadroma/pkg/receipt"
)

// Agent is a mocknet identity. Mocknet has no real signing/authentication;
// any address string is accepted as one.
type Agent struct {
	mocknet *Mocknet
	address string
	name    string
	fees    string
}

func (a *Agent) Chain() fadromachain.Chain { return a.mocknet }
func (a *Agent) Address() string           { return a.address }
func (a *Agent) Name() string              { return a.name }
func (a *Agent) Fees() string              { return a.fees }

func (a *Agent) Height(ctx context.Context) (int64, error)    { return a.mocknet.Height(ctx) }
func (a *Agent) NextBlock(ctx context.Context) (int64, error) { return a.mocknet.NextBlock(ctx) }
func (a *Agent) GetBalance(ctx context.Context, denom string) (string, error) {
	return a.mocknet.GetBalance(ctx, denom, a.address)
}
func (a *Agent) Query(ctx context.Context, contract string, msg receipt.RawMessage) (receipt.RawMessage, error) {
	return a.mocknet.Query(ctx, contract, msg)
}
func (a *Agent) GetCodeID(ctx context.Context, address string) (uint64, error) {
	return a.mocknet.GetCodeID(ctx, address)
}
func (a *Agent) GetLabel(ctx context.Context, address string) (string, error) {
	return a.mocknet.GetLabel(ctx, address)
}
func (a *Agent) GetHash(ctx context.Context, addressOrCodeID string) (string, error) {
	return a.mocknet.GetHash(ctx, addressOrCodeID)
}
func (a *Agent) CheckHash(ctx context.Context, address, expected string) (string, error) {
	return a.mocknet.CheckHash(ctx, address, expected)
}

func (a *Agent) Send(ctx context.Context, to string, coins []fadromachain.Coin) (string, error) {
	for _, c := range coins {
		a.mocknet.SetBalance(to, c.Denom, c.Amount)
	}
	return "mock-tx-send", nil
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

func (a *Agent) Upload(ctx context.Context, blob []byte) (receipt.UploadedTemplate, error) {
	return a.mocknet.Upload(ctx, blob)
}
func (a *Agent) UploadMany(ctx context.Context, blobs [][]byte) ([]receipt.UploadedTemplate, error) {
	return fadromachain.DefaultUploadMany(ctx, a, blobs)
}
func (a *Agent) Instantiate(ctx context.Context, tmpl receipt.UploadedTemplate, label string, initMsg receipt.RawMessage) (receipt.ContractInstance, error) {
	return a.mocknet.Instantiate(ctx, a.address, tmpl, label, initMsg)
}
func (a *Agent) InstantiateMany(ctx context.Context, tmpl receipt.UploadedTemplate, entries []fadromachain.InstantiateEntry) ([]receipt.ContractInstance, error) {
	return fadromachain.DefaultInstantiateMany(ctx, a, tmpl, entries)
}
func (a *Agent) Execute(ctx context.Context, contract string, msg receipt.RawMessage, opts fadromachain.ExecuteOptions) (fadromachain.ExecuteResult, error) {
	return a.mocknet.Execute(ctx, contract, msg)
}

func (a *Agent) Bundle() *fadromachain.Bundle {
	return fadromachain.NewBundle(a, a)
}

// SubmitBundle runs every accumulated message against mocknet in append
// order, inside a single synthetic transaction (spec.md §4.3's ordering
// guarantee) — mocknet has no real multi-message tx, so "atomic" here
// means "executed in order, nothing else interleaves" since mocknet is
// single-threaded per call.
func (a *Agent) SubmitBundle(ctx context.Context, messages []fadromachain.BundleMessage, memo string) (string, error) {
	for _, m := range messages {
		switch m.Kind {
		case fadromachain.MsgInstantiate:
			if _, err := a.mocknet.Instantiate(ctx, a.address, receipt.UploadedTemplate{CodeID: m.CodeID}, m.Label, m.Msg); err != nil {
				return "", err
			}
		case fadromachain.MsgExecute:
			if _, err := a.mocknet.Execute(ctx, m.Contract, m.Msg); err != nil {
				return "", err
			}
		}
	}
	return "mock-tx-bundle", nil
}

func (a *Agent) SaveBundle(ctx context.Context, name string, messages []fadromachain.BundleMessage) error {
	return errors.New("mocknet: SaveBundle is not supported, mocknet has no multisig output")
}
