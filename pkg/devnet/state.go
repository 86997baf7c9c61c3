// Package devnet manages an ephemeral local chain node, one container per
// Supervisor, grounded on spec.md §4.5 and the teacher's infra/apps/cored
// container-lifecycle idiom.
package devnet

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// State is the on-disk record of one devnet node, persisted as
// state/<chainId>/devnet.json (spec.md §4.5).
type State struct {
	ChainID     string `json:"chainId"`
	ContainerID string `json:"containerId,omitempty"`
	Port        int    `json:"port"`
	Host        string `json:"host,omitempty"`
}

func statePath(dir string) string { return filepath.Join(dir, "devnet.json") }

// LoadState reconstitutes a devnet.json. A missing file is not an error —
// it signals no prior devnet in dir (the caller spawns fresh).
func LoadState(dir string) (*State, error) {
	raw, err := os.ReadFile(statePath(dir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "devnet: reading %s", statePath(dir))
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.Wrapf(err, "devnet: parsing %s", statePath(dir))
	}
	return &s, nil
}

// Save atomically (write-temp-then-rename) persists s to dir/devnet.json,
// matching the receipt store's crash-safety discipline (spec.md §5).
func (s *State) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "devnet: creating %s", dir)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "devnet: marshaling state")
	}
	tmp := statePath(dir) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return errors.Wrapf(err, "devnet: writing %s", tmp)
	}
	if err := os.Rename(tmp, statePath(dir)); err != nil {
		return errors.Wrapf(err, "devnet: renaming %s", tmp)
	}
	return nil
}

// Erase removes the state directory entirely (the "erase" half of
// terminate = kill + erase, spec.md §4.5).
func Erase(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "devnet: erasing %s", dir)
	}
	return nil
}
