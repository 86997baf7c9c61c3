package deployment

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/luca992/fadroma/pkg/receipt"
)

// ContractOptions configures a single contract within a Deployment. Unset
// fields inherit the Deployment's defaults (agent, builder, uploader,
// workspace, revision) per spec.md §4.1's "Deployment registry" behavior.
type ContractOptions struct {
	Source  receipt.ContractSource
	Suffix  string
	ChainID string
}

// Deployment owns a named set of Contracts and their receipt files. Its
// Name is the prefix of every label its instances carry.
type Deployment struct {
	mu sync.Mutex

	Name           string
	DeploymentsDir string

	DefaultAgent    Agent
	DefaultBuilder  Builder
	DefaultUploader Uploader
	DefaultWorkspace string
	DefaultRevision  string
	DefaultChainID   string

	contracts map[string]*Contract
}

// New constructs an empty Deployment named name, rooted at deploymentsDir.
func New(name, deploymentsDir string) *Deployment {
	return &Deployment{
		Name:           name,
		DeploymentsDir: deploymentsDir,
		contracts:      make(map[string]*Contract),
	}
}

// Contract returns the existing contract registered under name, or
// creates one inheriting the deployment's defaults and registers it.
// Re-requesting an already-registered name returns that contract as it
// is; opts are then ignored and no error is raised (ErrNameAlreadyTaken
// only comes from Register).
func (d *Deployment) Contract(name string, opts ContractOptions) *Contract {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.contracts[name]; ok {
		return c
	}

	source := opts.Source
	if source.Workspace == "" {
		source.Workspace = d.DefaultWorkspace
	}
	if source.Revision == "" {
		source.Revision = d.DefaultRevision
	}
	chainID := opts.ChainID
	if chainID == "" {
		chainID = d.DefaultChainID
	}

	c := NewContract(Options{
		Source:   source,
		Prefix:   d.Name,
		Name:     name,
		Suffix:   opts.Suffix,
		ChainID:  chainID,
		Builder:  d.DefaultBuilder,
		Uploader: d.DefaultUploader,
		Agent:    d.DefaultAgent,
		Save: func(inst receipt.ContractInstance) error {
			return receipt.WriteInstance(d.DeploymentsDir, d.Name, inst)
		},
	})
	d.contracts[name] = c
	return c
}

// Register adds a freshly-constructed Contract under name, refusing any
// name that is already registered — the explicit
// resolution of spec.md §9's suffix/redeploy Open Question: names must be
// unique within a Deployment, full stop.
func (d *Deployment) Register(name string, c *Contract) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.contracts[name]; ok {
		return ErrNameAlreadyTaken
	}
	d.contracts[name] = c
	return nil
}

// All returns every registered contract, in no particular order.
func (d *Deployment) All() []*Contract {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Contract, 0, len(d.contracts))
	for _, c := range d.contracts {
		out = append(out, c)
	}
	return out
}

// Load reconstitutes every instance receipt under the deployment's
// directory into registered Contracts, each already at its terminal
// stage (spec.md §4.1: "a deployment can be loaded from its receipt
// directory"). Mirrors infra.Spec's own load-from-disk reconstruction.
func (d *Deployment) Load() error {
	instances, err := receipt.ListInstances(d.DeploymentsDir, d.Name)
	if err != nil {
		return errors.Wrapf(err, "deployment: loading %s", d.Name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, inst := range instances {
		c := LoadInstance(inst, Options{
			Source:   inst.ContractSource,
			Prefix:   d.Name,
			Name:     inst.Name,
			Suffix:   inst.Suffix,
			ChainID:  inst.ChainID,
			Builder:  d.DefaultBuilder,
			Uploader: d.DefaultUploader,
			Agent:    d.DefaultAgent,
			Save: func(i receipt.ContractInstance) error {
				return receipt.WriteInstance(d.DeploymentsDir, d.Name, i)
			},
		})
		d.contracts[inst.Name] = c
	}
	return nil
}

// activePointerPath is "<deploymentsDir>/.active", holding the active
// deployment's name. Resolves spec.md §9's Open Question on durable
// active-deployment selection: a pointer file, last-writer-wins.
func activePointerPath(deploymentsDir string) string {
	return filepath.Join(deploymentsDir, ".active")
}

// SetActive makes d the active deployment by atomically replacing the
// pointer file.
func SetActive(deploymentsDir, name string) error {
	if err := os.MkdirAll(deploymentsDir, 0o755); err != nil {
		return errors.Wrap(err, "deployment: creating deployments dir")
	}
	tmp, err := os.CreateTemp(deploymentsDir, ".tmp-active-*")
	if err != nil {
		return errors.Wrap(err, "deployment: creating temp active pointer")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(name); err != nil {
		tmp.Close()
		return errors.Wrap(err, "deployment: writing active pointer")
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), activePointerPath(deploymentsDir))
}

// ActiveName returns the name written by the most recent SetActive call,
// or "" if none has ever been set.
func ActiveName(deploymentsDir string) (string, error) {
	b, err := os.ReadFile(activePointerPath(deploymentsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "deployment: reading active pointer")
	}
	return string(b), nil
}
