package receipt

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// atomicWrite writes b to path via write-temp-then-rename, so a crashed
// write leaves either the prior or the new version intact, matching
// spec.md §5's receipt durability requirement.
func atomicWrite(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "receipt: creating directory for %s", path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "receipt: creating temp file for %s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "receipt: writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "receipt: closing %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "receipt: committing %s", path)
	}
	return nil
}

// InstancePath returns the receipt path for a contract instance under a
// deployment's receipt directory: <deployments>/<deploymentName>/<name>.yml
func InstancePath(deploymentsDir, deploymentName, instanceName string) string {
	return filepath.Join(deploymentsDir, deploymentName, instanceName+".yml")
}

// WriteInstance persists a ContractInstance receipt atomically. Partial
// stage completion must never call this — only a fully-advanced stage
// result is written (spec.md §4.1).
func WriteInstance(deploymentsDir, deploymentName string, inst ContractInstance) error {
	b, err := yaml.Marshal(inst)
	if err != nil {
		return errors.Wrap(err, "receipt: marshaling instance")
	}
	return atomicWrite(InstancePath(deploymentsDir, deploymentName, inst.Name), b)
}

// ReadInstance loads a single instance receipt from disk.
func ReadInstance(deploymentsDir, deploymentName, instanceName string) (ContractInstance, error) {
	var inst ContractInstance
	b, err := os.ReadFile(InstancePath(deploymentsDir, deploymentName, instanceName))
	if err != nil {
		return inst, errors.Wrapf(err, "receipt: reading instance %s", instanceName)
	}
	if err := yaml.Unmarshal(b, &inst); err != nil {
		return inst, errors.Wrapf(err, "receipt: parsing instance %s", instanceName)
	}
	return inst, nil
}

// ListInstances enumerates every *.yml receipt under a deployment's
// directory, reconstituting each instance's terminal state. Used by
// Deployment.Load (pkg/deployment/registry.go).
func ListInstances(deploymentsDir, deploymentName string) ([]ContractInstance, error) {
	dir := filepath.Join(deploymentsDir, deploymentName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "receipt: listing deployment %s", deploymentName)
	}
	var out []ContractInstance
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yml" {
			continue
		}
		name := e.Name()[:len(e.Name())-len(".yml")]
		inst, err := ReadInstance(deploymentsDir, deploymentName, name)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// UploadReceipt is the per-chain, per-codeHash upload receipt (spec.md §6).
type UploadReceipt struct {
	ChainID  string `json:"chainId"`
	CodeID   uint64 `json:"codeId"`
	CodeHash string `json:"codeHash"`
	UploadTx string `json:"uploadTx,omitempty"`
	UploadBy string `json:"uploadBy,omitempty"`
	Artifact string `json:"artifact,omitempty"`
}

// UploadReceiptPath returns <uploads>/<chainId>/<codeHash>.json.
func UploadReceiptPath(uploadsDir, chainID, codeHash string) string {
	return filepath.Join(uploadsDir, chainID, codeHash+".json")
}

// WriteUploadReceipt persists an upload receipt atomically.
func WriteUploadReceipt(uploadsDir string, r UploadReceipt) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "receipt: marshaling upload receipt")
	}
	return atomicWrite(UploadReceiptPath(uploadsDir, r.ChainID, r.CodeHash), b)
}

// ReadUploadReceipt loads the upload receipt for (chainID, codeHash), if
// one exists. A missing file is not an error: it returns (zero, false, nil).
func ReadUploadReceipt(uploadsDir, chainID, codeHash string) (UploadReceipt, bool, error) {
	var r UploadReceipt
	b, err := os.ReadFile(UploadReceiptPath(uploadsDir, chainID, codeHash))
	if err != nil {
		if os.IsNotExist(err) {
			return r, false, nil
		}
		return r, false, errors.Wrap(err, "receipt: reading upload receipt")
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return r, false, errors.Wrap(err, "receipt: parsing upload receipt")
	}
	return r, true, nil
}
