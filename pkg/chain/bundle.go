package chain

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/luca992/fadroma/pkg/receipt"
)

// MessageKind distinguishes the two message shapes a Bundle can carry.
type MessageKind int

const (
	MsgInstantiate MessageKind = iota
	MsgExecute
)

// BundleMessage is one deferred, not-yet-broadcast message.
type BundleMessage struct {
	Kind     MessageKind
	Contract string // execute target, empty for instantiate
	CodeID   uint64 // instantiate target
	Label    string
	Msg      receipt.RawMessage
	Funds    []Coin
}

// Broadcaster is implemented by a concrete backend Agent to actually
// submit (or persist unsigned, for multisig) a Bundle's accumulated
// messages as one atomic transaction.
type Broadcaster interface {
	SubmitBundle(ctx context.Context, messages []BundleMessage, memo string) (string, error)
	SaveBundle(ctx context.Context, name string, messages []BundleMessage) error
}

// NotInBundle is the programming error raised by any read/write operation
// that is forbidden mid-bundle because the batch must remain atomic.
type NotInBundle struct{ Op string }

func (e *NotInBundle) Error() string { return "chain: " + e.Op + " is not allowed inside a Bundle" }

// ErrEmptyBundle is raised by submit when no messages were appended.
var ErrEmptyBundle = errors.New("chain: EmptyBundle")

// Bundle is an Agent-shaped collector that defers broadcast: instantiate
// and execute calls append to an ordered message log instead of touching
// the chain, and the whole log submits as one atomic transaction on Run.
type Bundle struct {
	mu          sync.Mutex
	agent       Agent
	broadcaster Broadcaster
	messages    []BundleMessage
	depth       int
	addrSeq     int
}

// NewBundle wraps agent (which must also implement Broadcaster on its
// concrete backend) in a fresh, empty Bundle.
func NewBundle(agent Agent, broadcaster Broadcaster) *Bundle {
	return &Bundle{agent: agent, broadcaster: broadcaster}
}

func (b *Bundle) Chain() Chain   { return b.agent.Chain() }
func (b *Bundle) Address() string { return b.agent.Address() }
func (b *Bundle) Name() string    { return b.agent.Name() + "@BUNDLE" }
func (b *Bundle) Fees() string    { return b.agent.Fees() }

func (b *Bundle) Height(ctx context.Context) (int64, error) {
	return 0, &NotInBundle{Op: "height"}
}
func (b *Bundle) NextBlock(ctx context.Context) (int64, error) {
	return 0, &NotInBundle{Op: "nextBlock"}
}
func (b *Bundle) GetBalance(ctx context.Context, denom string) (string, error) {
	return "", &NotInBundle{Op: "getBalance"}
}
func (b *Bundle) Query(ctx context.Context, contract string, msg receipt.RawMessage) (receipt.RawMessage, error) {
	return nil, &NotInBundle{Op: "query"}
}
func (b *Bundle) Send(ctx context.Context, to string, coins []Coin) (string, error) {
	return "", &NotInBundle{Op: "send"}
}
func (b *Bundle) SendMany(ctx context.Context, to []string, coins []Coin) ([]string, error) {
	return nil, &NotInBundle{Op: "sendMany"}
}
func (b *Bundle) Upload(ctx context.Context, blob []byte) (receipt.UploadedTemplate, error) {
	return receipt.UploadedTemplate{}, &NotInBundle{Op: "upload"}
}
func (b *Bundle) UploadMany(ctx context.Context, blobs [][]byte) ([]receipt.UploadedTemplate, error) {
	return nil, &NotInBundle{Op: "uploadMany"}
}

// GetCodeID, GetLabel, GetHash and CheckHash are time-invariant reads and
// remain permitted inside a Bundle (spec.md §4.3).
func (b *Bundle) GetCodeID(ctx context.Context, address string) (uint64, error) {
	return b.agent.GetCodeID(ctx, address)
}
func (b *Bundle) GetLabel(ctx context.Context, address string) (string, error) {
	return b.agent.GetLabel(ctx, address)
}
func (b *Bundle) GetHash(ctx context.Context, addressOrCodeID string) (string, error) {
	return b.agent.GetHash(ctx, addressOrCodeID)
}
func (b *Bundle) CheckHash(ctx context.Context, address, expected string) (string, error) {
	return b.agent.CheckHash(ctx, address, expected)
}

// Instantiate appends a typed message record and synthesizes a provisional
// ContractInstance with Address == "" (spec.md §4.3).
func (b *Bundle) Instantiate(ctx context.Context, tmpl receipt.UploadedTemplate, label string, initMsg receipt.RawMessage) (receipt.ContractInstance, error) {
	b.mu.Lock()
	b.messages = append(b.messages, BundleMessage{Kind: MsgInstantiate, CodeID: tmpl.CodeID, Label: label, Msg: initMsg})
	b.mu.Unlock()
	return receipt.ContractInstance{UploadedTemplate: tmpl, Label: label, InitMsg: initMsg}, nil
}

// InstantiateMany fans out over Instantiate, same as any backend's default.
func (b *Bundle) InstantiateMany(ctx context.Context, tmpl receipt.UploadedTemplate, entries []InstantiateEntry) ([]receipt.ContractInstance, error) {
	return DefaultInstantiateMany(ctx, b, tmpl, entries)
}

// Execute appends a typed message record and synthesizes a provisional,
// unsubmitted result.
func (b *Bundle) Execute(ctx context.Context, contract string, msg receipt.RawMessage, opts ExecuteOptions) (ExecuteResult, error) {
	b.mu.Lock()
	b.messages = append(b.messages, BundleMessage{Kind: MsgExecute, Contract: contract, Msg: msg, Funds: opts.Send})
	b.mu.Unlock()
	return ExecuteResult{}, nil
}

// Bundle, called on a Bundle, flattens: the depth counter increments and
// the same Bundle is returned (spec.md §4.3 nesting-flatten behavior).
func (b *Bundle) Bundle() *Bundle {
	b.mu.Lock()
	b.depth++
	b.mu.Unlock()
	return b
}

// Run decrements the depth counter and returns (nil, nil) until depth
// reaches 0, at which point it submits the accumulated messages as one
// atomic transaction via memo, or persists them unsigned if save is set.
func (b *Bundle) Run(ctx context.Context, memo string, save string) (string, error) {
	b.mu.Lock()
	if b.depth > 0 {
		b.depth--
		b.mu.Unlock()
		return "", nil
	}
	messages := append([]BundleMessage(nil), b.messages...)
	b.mu.Unlock()

	if len(messages) == 0 {
		return "", ErrEmptyBundle
	}
	if save != "" {
		return "", b.broadcaster.SaveBundle(ctx, save, messages)
	}
	return b.broadcaster.SubmitBundle(ctx, messages, memo)
}

// Messages returns the bundle's accumulated message log, in append order.
// Exposed for tests asserting atomicity/ordering (spec.md §8).
func (b *Bundle) Messages() []BundleMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BundleMessage(nil), b.messages...)
}

// Wrap invokes cb with a fresh Bundle over agent, then Runs it. save, if
// non-empty, persists the unsigned batch under that name instead of
// submitting (spec.md §4.3's wrap(cb, opts, save?)).
func Wrap(ctx context.Context, agent Agent, broadcaster Broadcaster, memo, save string, cb func(*Bundle)) (string, error) {
	b := NewBundle(agent, broadcaster)
	cb(b)
	return b.Run(ctx, memo, save)
}
