// Package uploader drives ContractTemplate→UploadedTemplate, the
// artifact→code-id stage of spec.md §4.1's upload(), caching by
// (chainId, codeHash) so a given artifact is only ever uploaded once per
// chain.
package uploader

import (
	"context"
	"os"

	"github.com/CoreumFoundation/coreum-tools/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/luca992/fadroma/pkg/receipt"
)

// Agent is the subset of pkg/chain.Agent the uploader needs, kept narrow
// so this package has no import-cycle on pkg/chain.
type Agent interface {
	Upload(ctx context.Context, blob []byte) (receipt.UploadedTemplate, error)
}

// Uploader persists and reconciles upload receipts against a chain-scoped
// store rooted at UploadsDir (spec.md §6: <uploads>/<chainId>/<codeHash>.json).
type Uploader struct {
	UploadsDir string
}

// New constructs an Uploader rooted at uploadsDir.
func New(uploadsDir string) *Uploader {
	return &Uploader{UploadsDir: uploadsDir}
}

// Upload advances tmpl to UploadedTemplate against chainID via agent. The
// receipt store is checked first; a hit adopts the stored codeId without
// touching the chain. Skipping a contract whose codeId is already set is
// done by its caller (deployment.Contract.Upload), not here.
func (u *Uploader) Upload(ctx context.Context, agent Agent, chainID string, tmpl receipt.ContractTemplate) (receipt.UploadedTemplate, error) {
	if !tmpl.Built() {
		return receipt.UploadedTemplate{}, errors.New("uploader: template has no artifact to upload")
	}

	log := logger.Get(ctx).With(zap.String("chainId", chainID), zap.String("codeHash", tmpl.CodeHash))

	if existing, ok, err := receipt.ReadUploadReceipt(u.UploadsDir, chainID, tmpl.CodeHash); err != nil {
		return receipt.UploadedTemplate{}, err
	} else if ok {
		log.Info("reusing existing upload receipt", zap.Uint64("codeId", existing.CodeID))
		return receipt.UploadedTemplate{
			ContractTemplate: tmpl,
			ChainID:          chainID,
			CodeID:           existing.CodeID,
			UploadTx:         existing.UploadTx,
			UploadBy:         existing.UploadBy,
		}, nil
	}

	blob, err := os.ReadFile(tmpl.Artifact)
	if err != nil {
		return receipt.UploadedTemplate{}, errors.Wrapf(err, "uploader: reading artifact %s", tmpl.Artifact)
	}
	if got := receipt.HashBytes(blob); got != tmpl.CodeHash {
		log.Warn("artifact bytes do not match recorded codeHash", zap.String("expected", tmpl.CodeHash), zap.String("got", got))
	}

	log.Info("uploading artifact to chain")
	uploaded, err := agent.Upload(ctx, blob)
	if err != nil {
		return receipt.UploadedTemplate{}, errors.Wrap(err, "uploader: agent upload failed")
	}
	uploaded.ContractTemplate = tmpl
	uploaded.ChainID = chainID

	if err := receipt.WriteUploadReceipt(u.UploadsDir, receipt.UploadReceipt{
		ChainID:  chainID,
		CodeID:   uploaded.CodeID,
		CodeHash: tmpl.CodeHash,
		UploadTx: uploaded.UploadTx,
		UploadBy: uploaded.UploadBy,
		Artifact: tmpl.Artifact,
	}); err != nil {
		return receipt.UploadedTemplate{}, err
	}

	log.Info("upload complete", zap.Uint64("codeId", uploaded.CodeID))
	return uploaded, nil
}
