// Package builder turns a ContractSource into a deterministic WASM
// ContractTemplate inside a pinned toolchain, matching spec.md §4.2.
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/CoreumFoundation/coreum-tools/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/luca992/fadroma/pkg/receipt"
)

// Options configures a Builder.
type Options struct {
	// OutputDir receives the compiled artifact and its .sha256 sidecar.
	OutputDir string
	// ScratchDir holds bare clones and worktrees staged for non-HEAD revisions.
	ScratchDir string
	// Raw skips the container and builds with the host's Rust toolchain,
	// mirroring FADROMA_BUILD_RAW.
	Raw bool
	// Parallelism bounds concurrent Build calls. Zero means runtime.NumCPU().
	Parallelism int
}

// Builder compiles ContractSources into ContractTemplates, caching by
// content so unchanged (crate, revision, features, workspace) tuples never
// recompile (spec.md §4.1's build() idempotence and §8's build-determinism
// property).
type Builder struct {
	opts Options
	sem  chan struct{}

	pullOnce sync.Once
	pullErr  error
}

// New constructs a Builder bounded by opts.Parallelism (or NumCPU if zero),
// mirroring infra.AppSet.Deploy's deploymentSlots semaphore idiom — an Open
// Question in spec.md §9 resolved explicitly in DESIGN.md.
func New(opts Options) *Builder {
	n := opts.Parallelism
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Builder{opts: opts, sem: make(chan struct{}, n)}
}

// Build compiles src into a ContractTemplate. If the artifact for src's
// crate and revision already exists and both its .sha256 and .srchash
// sidecars match (the latter against the current source tree), Build
// returns that artifact without recompiling.
func (b *Builder) Build(ctx context.Context, src receipt.ContractSource) (receipt.ContractTemplate, error) {
	if src.Crate == "" {
		discovered, err := DiscoverCrateName(repositoryOrWorkspace(src))
		if err != nil {
			return receipt.ContractTemplate{}, errors.Wrap(err, "builder: NoCrate")
		}
		src.Crate = discovered
	}

	b.sem <- struct{}{}
	defer func() { <-b.sem }()

	log := logger.Get(ctx).With(zap.String("crate", src.Crate), zap.String("revision", src.Revision))

	revision := src.Revision
	if revision == "" {
		revision = "HEAD"
	}

	artifactName := ArtifactFilename(src.Crate, revision)
	artifactPath := filepath.Join(b.opts.OutputDir, artifactName)

	srcDir, dirty, err := stageRevision(ctx, repositoryOrWorkspace(src), revision, b.opts.ScratchDir)
	if err != nil {
		return receipt.ContractTemplate{}, errors.Wrap(err, "builder: staging source")
	}

	treeHash, err := sourceTreeHash(srcDir)
	if err != nil {
		return receipt.ContractTemplate{}, errors.Wrap(err, "builder: fingerprinting source tree")
	}

	if codeHash, ok := readSidecarHash(artifactPath); ok && matchesSrcHashSidecar(artifactPath, treeHash) {
		log.Info("source tree unchanged, skipping build", zap.String("artifact", artifactPath))
		tmpl := receipt.ContractTemplate{ContractSource: src, Artifact: artifactPath, CodeHash: codeHash}
		tmpl.Revision = revision
		tmpl.Dirty = dirty
		return tmpl, nil
	}

	if b.opts.Raw {
		if err := runHostBuild(ctx, srcDir, src.Crate); err != nil {
			return receipt.ContractTemplate{}, err
		}
	} else {
		b.pullOnce.Do(func() { b.pullErr = ensureImagePulled(ctx) })
		if b.pullErr != nil {
			return receipt.ContractTemplate{}, errors.Wrap(b.pullErr, "builder: pulling build image")
		}
		if err := runContainerBuild(ctx, srcDir, src.Crate); err != nil {
			return receipt.ContractTemplate{}, err
		}
	}

	rawWasm := filepath.Join(srcDir, "target", wasmTarget, "release", fmt.Sprintf("%s.wasm", sanitizeCrateName(src.Crate)))
	if _, err := os.Stat(rawWasm); err != nil {
		return receipt.ContractTemplate{}, errors.Wrapf(err, "builder: expected build output at %s", rawWasm)
	}

	if err := os.MkdirAll(b.opts.OutputDir, 0o755); err != nil {
		return receipt.ContractTemplate{}, errors.Wrap(err, "builder: creating output dir")
	}
	if err := runWasmOpt(ctx, rawWasm, artifactPath); err != nil {
		return receipt.ContractTemplate{}, err
	}

	codeHash, err := writeSidecarHash(artifactPath)
	if err != nil {
		return receipt.ContractTemplate{}, err
	}
	if err := writeSrcHashSidecar(artifactPath, treeHash); err != nil {
		return receipt.ContractTemplate{}, err
	}

	out := receipt.ContractTemplate{ContractSource: src, Artifact: artifactPath, CodeHash: codeHash}
	out.Revision = revision
	out.Dirty = dirty
	if out.Dirty {
		log.Warn("built from a dirty working tree", zap.String("artifact", artifactPath))
	}
	log.Info("build complete", zap.String("artifact", artifactPath), zap.String("codeHash", codeHash))
	return out, nil
}

func repositoryOrWorkspace(src receipt.ContractSource) string {
	if src.Repository != "" {
		return src.Repository
	}
	return src.Workspace
}

func readSidecarHash(artifactPath string) (string, bool) {
	b, err := os.ReadFile(artifactPath + ".sha256")
	if err != nil {
		return "", false
	}
	if _, statErr := os.Stat(artifactPath); statErr != nil {
		return "", false
	}
	return string(b), true
}

func writeSidecarHash(artifactPath string) (string, error) {
	b, err := os.ReadFile(artifactPath)
	if err != nil {
		return "", errors.Wrapf(err, "builder: reading artifact %s", artifactPath)
	}
	codeHash := receipt.HashBytes(b)
	if err := os.WriteFile(artifactPath+".sha256", []byte(codeHash), 0o644); err != nil {
		return "", errors.Wrap(err, "builder: writing sha256 sidecar")
	}
	return codeHash, nil
}
