// Package receipt defines the identity and on-disk persistence formats
// that gate re-runs of the Fadroma deployment pipeline: content-addressed
// build/upload identity, instance labels, and the receipt files that
// record each lifecycle stage.
package receipt

import (
	"strings"

	"github.com/pkg/errors"
)

// ContractSource identifies what to build. revision "HEAD" means "working
// tree, may be dirty".
type ContractSource struct {
	Repository string   `yaml:"repository,omitempty" json:"repository,omitempty"`
	Revision   string   `yaml:"revision,omitempty" json:"revision,omitempty"`
	Workspace  string   `yaml:"workspace,omitempty" json:"workspace,omitempty"`
	Crate      string   `yaml:"crate" json:"crate"`
	Features   []string `yaml:"features,omitempty" json:"features,omitempty"`
	Dirty      bool     `yaml:"dirty,omitempty" json:"dirty,omitempty"`
}

// FeaturesJoined renders Features as the comma-joined string the receipt
// file format (§6) uses.
func (s ContractSource) FeaturesJoined() string {
	return strings.Join(s.Features, ",")
}

// ContractTemplate extends ContractSource with the build result. Invariant:
// sha256(bytes(Artifact)) == CodeHash.
type ContractTemplate struct {
	ContractSource `yaml:",inline"`
	BuilderID      string `yaml:"builderId,omitempty" json:"builderId,omitempty"`
	Artifact       string `yaml:"artifact,omitempty" json:"artifact,omitempty"`
	CodeHash       string `yaml:"codeHash,omitempty" json:"codeHash,omitempty"`
}

// Built reports whether the template has already reached the Built stage.
func (t ContractTemplate) Built() bool {
	return t.Artifact != ""
}

// UploadedTemplate extends ContractTemplate with the upload result. For a
// given (ChainID, CodeHash), CodeID is unique and stable.
type UploadedTemplate struct {
	ContractTemplate `yaml:",inline"`
	ChainID          string `yaml:"chainId,omitempty" json:"chainId,omitempty"`
	UploaderID       string `yaml:"uploaderId,omitempty" json:"uploaderId,omitempty"`
	UploadBy         string `yaml:"uploadBy,omitempty" json:"uploadBy,omitempty"`
	UploadTx         string `yaml:"uploadTx,omitempty" json:"uploadTx,omitempty"`
	CodeID           uint64 `yaml:"codeId,omitempty" json:"codeId,omitempty"`
}

// Uploaded reports whether the template has already reached the Uploaded stage.
func (t UploadedTemplate) Uploaded() bool {
	return t.CodeID != 0
}

// ContractInstance extends UploadedTemplate with the instantiation result.
type ContractInstance struct {
	UploadedTemplate `yaml:",inline"`
	Address          string          `yaml:"address,omitempty" json:"address,omitempty"`
	Label            string          `yaml:"label,omitempty" json:"label,omitempty"`
	Prefix           string          `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Name             string          `yaml:"name" json:"name"`
	Suffix           string          `yaml:"suffix,omitempty" json:"suffix,omitempty"`
	InitBy           string          `yaml:"initBy,omitempty" json:"initBy,omitempty"`
	InitMsg          RawMessage      `yaml:"initMsg,omitempty" json:"initMsg,omitempty"`
	InitTx           string          `yaml:"initTx,omitempty" json:"initTx,omitempty"`
}

// Instantiated reports whether the instance has already reached the
// Instantiated stage.
func (i ContractInstance) Instantiated() bool {
	return i.Address != ""
}

// Link returns the ICC-wire form of the instance.
func (i ContractInstance) Link() ContractLink {
	return ContractLink{Address: i.Address, CodeHash: i.CodeHash}
}

// ContractLink is the ICC-wire form of a ContractInstance, complete only
// for an instance that has reached the Instantiated stage (Address set).
type ContractLink struct {
	Address  string `yaml:"address" json:"address"`
	CodeHash string `yaml:"code_hash" json:"code_hash"`
}

// ComposeLabel builds the full label from a deployment prefix, an instance
// name, and an optional suffix: (prefix+"/")? + name + ("+"+suffix)?.
func ComposeLabel(prefix, name, suffix string) string {
	var b strings.Builder
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte('/')
	}
	b.WriteString(name)
	if suffix != "" {
		b.WriteByte('+')
		b.WriteString(suffix)
	}
	return b.String()
}

// ParseLabel inverts ComposeLabel by splitting on the last "+" and then the
// first "/": ParseLabel(ComposeLabel(prefix, name, suffix)) == (prefix,
// name, suffix) whenever prefix contains no "/" and neither prefix nor
// name contains "+". Other labels parse differently from how they were
// composed.
func ParseLabel(label string) (prefix, name, suffix string, err error) {
	if label == "" {
		return "", "", "", errors.New("receipt: empty label")
	}
	rest := label
	if idx := strings.LastIndex(rest, "+"); idx >= 0 {
		suffix = rest[idx+1:]
		rest = rest[:idx]
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		prefix = rest[:idx]
		name = rest[idx+1:]
	} else {
		name = rest
	}
	if name == "" {
		return "", "", "", errors.Errorf("receipt: label %q has no name component", label)
	}
	return prefix, name, suffix, nil
}
