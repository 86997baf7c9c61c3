// Package deployment implements the Contract lifecycle state machine and
// Deployment registry of spec.md §4.1: Declared → Built → Uploaded →
// Instantiated, with memoized per-stage tasks and receipt persistence.
package deployment

import (
	"context"
	"sync"

	"github.com/CoreumFoundation/coreum-tools/pkg/logger"
	"go.uber.org/zap"

	"github.com/luca992/fadroma/pkg/receipt"
)

// Builder is the subset of pkg/builder.Builder a Contract needs.
type Builder interface {
	Build(ctx context.Context, src receipt.ContractSource) (receipt.ContractTemplate, error)
}

// Uploader is the subset of pkg/uploader.Uploader a Contract needs.
type Uploader interface {
	Upload(ctx context.Context, agent Agent, chainID string, tmpl receipt.ContractTemplate) (receipt.UploadedTemplate, error)
}

// Agent is the narrow write-capability a Contract needs from a chain
// backend — the same shape pkg/chain.Agent satisfies.
type Agent interface {
	Upload(ctx context.Context, blob []byte) (receipt.UploadedTemplate, error)
	Instantiate(ctx context.Context, tmpl receipt.UploadedTemplate, label string, initMsg receipt.RawMessage) (receipt.ContractInstance, error)
}

// Contract drives one instance through the lifecycle. The back-reference
// to its owning Deployment is kept as an index (deployment name + save
// callback) rather than a pointer cycle — spec.md §9's "weak relation"
// design note, though Go's tracing collector does not actually require
// this to avoid a leak; it is kept anyway so a Contract remains usable
// detached from any Deployment (NewContract without a Save callback).
type Contract struct {
	mu sync.Mutex

	source  receipt.ContractSource
	prefix  string
	name    string
	suffix  string
	chainID string

	instance receipt.ContractInstance

	builder  Builder
	uploader Uploader
	agent    Agent

	buildTask  Task[receipt.ContractTemplate]
	uploadTask Task[receipt.UploadedTemplate]
	initTask   Task[receipt.ContractInstance]

	save func(receipt.ContractInstance) error
}

// Options configures a new Contract.
type Options struct {
	Source   receipt.ContractSource
	Prefix   string
	Name     string
	Suffix   string
	ChainID  string
	Builder  Builder
	Uploader Uploader
	Agent    Agent
	// Save persists a receipt once the contract reaches Instantiated.
	// Left nil for contracts not registered in a Deployment, which then
	// write no receipt.
	Save func(receipt.ContractInstance) error
}

// NewContract constructs a Contract in the Declared state.
func NewContract(opts Options) *Contract {
	return &Contract{
		source:   opts.Source,
		prefix:   opts.Prefix,
		name:     opts.Name,
		suffix:   opts.Suffix,
		chainID:  opts.ChainID,
		builder:  opts.Builder,
		uploader: opts.Uploader,
		agent:    opts.Agent,
		save:     opts.Save,
		instance: receipt.ContractInstance{
			UploadedTemplate: receipt.UploadedTemplate{ContractTemplate: receipt.ContractTemplate{ContractSource: opts.Source}},
			Name:             opts.Name,
			Prefix:           opts.Prefix,
			Suffix:           opts.Suffix,
		},
	}
}

// Name is the contract's registered name within its Deployment.
func (c *Contract) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// Instance returns the current (possibly partial) terminal state.
func (c *Contract) Instance() receipt.ContractInstance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instance
}

// Build advances Declared→Built. If the artifact is already set, it
// returns immediately without invoking the builder again.
func (c *Contract) Build(ctx context.Context) (receipt.ContractTemplate, error) {
	c.mu.Lock()
	tmpl := c.instance.ContractTemplate
	c.mu.Unlock()

	if tmpl.Built() {
		return tmpl, nil
	}
	if c.source.Crate == "" {
		return receipt.ContractTemplate{}, ErrNoCrate
	}
	if c.builder == nil {
		return receipt.ContractTemplate{}, ErrNoCrate
	}

	result, err := c.buildTask.Do(func() (receipt.ContractTemplate, error) {
		return c.builder.Build(ctx, c.source)
	})
	if err != nil {
		return receipt.ContractTemplate{}, err
	}

	c.mu.Lock()
	c.instance.ContractTemplate = result
	c.mu.Unlock()
	return result, nil
}

// Upload advances Built→Uploaded. If codeId is already set, it returns
// immediately.
func (c *Contract) Upload(ctx context.Context) (receipt.UploadedTemplate, error) {
	c.mu.Lock()
	uploaded := c.instance.UploadedTemplate
	c.mu.Unlock()

	if uploaded.Uploaded() {
		return uploaded, nil
	}
	tmpl, err := c.Build(ctx)
	if err != nil {
		return receipt.UploadedTemplate{}, err
	}
	if c.agent == nil {
		return receipt.UploadedTemplate{}, ErrNoAgent
	}
	if c.uploader == nil {
		return receipt.UploadedTemplate{}, ErrNoAgent
	}

	result, err := c.uploadTask.Do(func() (receipt.UploadedTemplate, error) {
		return c.uploader.Upload(ctx, c.agent, c.chainID, tmpl)
	})
	if err != nil {
		return receipt.UploadedTemplate{}, err
	}

	c.mu.Lock()
	c.instance.UploadedTemplate = result
	c.mu.Unlock()
	return result, nil
}

// Instantiate advances Uploaded→Instantiated. If address is already set,
// it returns immediately without calling the agent again.
func (c *Contract) Instantiate(ctx context.Context, initMsg receipt.RawMessage) (receipt.ContractInstance, error) {
	c.mu.Lock()
	current := c.instance
	c.mu.Unlock()

	if current.Instantiated() {
		return current, nil
	}

	uploaded, err := c.Upload(ctx)
	if err != nil {
		return receipt.ContractInstance{}, err
	}

	c.mu.Lock()
	name := c.name
	label := receipt.ComposeLabel(c.prefix, name, c.suffix)
	c.mu.Unlock()

	if name == "" {
		return receipt.ContractInstance{}, ErrNoName
	}
	if label == "" {
		return receipt.ContractInstance{}, ErrNoInitLabel
	}
	if len(initMsg) == 0 {
		return receipt.ContractInstance{}, ErrNoInitMessage
	}
	if uploaded.CodeID == 0 {
		return receipt.ContractInstance{}, ErrNoInitCodeId
	}
	if c.agent == nil {
		return receipt.ContractInstance{}, ErrNoAgent
	}

	result, err := c.initTask.Do(func() (receipt.ContractInstance, error) {
		return c.agent.Instantiate(ctx, uploaded, label, initMsg)
	})
	if err != nil {
		return receipt.ContractInstance{}, err
	}

	c.mu.Lock()
	result.Prefix = c.prefix
	result.Name = name
	result.Suffix = c.suffix
	result.InitMsg = initMsg
	result.UploadedTemplate = uploaded
	c.instance = result
	save := c.save
	c.mu.Unlock()

	if save != nil {
		if err := save(result); err != nil {
			logger.Get(ctx).Error("failed to persist instance receipt", zap.String("name", name), zap.Error(err))
			return result, err
		}
	}
	return result, nil
}

// LoadInstance restores a Contract from a previously persisted receipt,
// skipping straight to whatever stage the receipt reached.
func LoadInstance(inst receipt.ContractInstance, opts Options) *Contract {
	c := NewContract(opts)
	c.instance = inst
	c.name = inst.Name
	c.prefix = inst.Prefix
	c.suffix = inst.Suffix
	return c
}
