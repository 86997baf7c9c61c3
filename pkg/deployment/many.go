package deployment

import (
	"context"

	"github.com/samber/lo"

	"github.com/luca992/fadroma/pkg/receipt"
)

// InitEntry is one (name, initMsg) pair fed to Many.
type InitEntry struct {
	Name    string
	InitMsg receipt.RawMessage
}

// Result is one peer's outcome from Many: either Instance is populated, or
// Err explains why that one peer failed — a failure never cancels its
// peers (spec.md §4.1 bulk-operation semantics).
type Result struct {
	Name     string
	Instance receipt.ContractInstance
	Err      error
}

// Many maps a shared template (built+uploaded exactly once) over N
// contract instances, instantiating each independently. Order is
// preserved; retrying Many with the same keys hits the Instantiated
// short-circuit for any peer that already succeeded.
func Many(ctx context.Context, d *Deployment, template receipt.ContractSource, entries []InitEntry) []Result {
	results := make([]Result, len(entries))

	contracts := lo.Map(entries, func(e InitEntry, _ int) *Contract {
		return d.Contract(e.Name, ContractOptions{Source: template})
	})

	// Build and upload the shared template once, through the first peer, and
	// seed every other peer with that result so none of them repeats either
	// stage. If that fails, each peer retries on its own and reports its error.
	if len(contracts) > 0 {
		if shared, err := contracts[0].Upload(ctx); err == nil {
			for _, c := range contracts[1:] {
				c.mu.Lock()
				if !c.instance.Uploaded() {
					c.instance.UploadedTemplate = shared
				}
				c.mu.Unlock()
			}
		}
	}

	for i, e := range entries {
		inst, err := contracts[i].Instantiate(ctx, e.InitMsg)
		results[i] = Result{Name: e.Name, Instance: inst, Err: err}
	}
	return results
}
