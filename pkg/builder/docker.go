package builder

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/CoreumFoundation/coreum-tools/pkg/libexec"
	"github.com/pkg/errors"
)

// optimizedBuildImage is the pinned reproducible-build container, shared
// across all parallel builds and pulled exactly once (spec.md §4.2).
const optimizedBuildImage = "cosmwasm/rust-optimizer:0.12.13"

// ensureImagePulled pulls optimizedBuildImage if it is not already present
// locally. Safe to call concurrently: `docker pull` is itself idempotent
// and serializes internally, but callers should still gate this behind a
// single call before fan-out per spec.md §4.2.
func ensureImagePulled(ctx context.Context) error {
	cmd := exec.Command("docker", "image", "inspect", optimizedBuildImage)
	if err := libexec.Exec(ctx, cmd); err == nil {
		return nil
	}
	cmd = exec.Command("docker", "pull", optimizedBuildImage)
	if err := libexec.Exec(ctx, cmd); err != nil {
		return errors.Wrap(err, "builder: pulling build image")
	}
	return nil
}

// runContainerBuild runs `cargo build --release --target wasm32-unknown-unknown`
// for the given crate inside the pinned container, with the cargo
// registry and target dir mounted as shared volumes so repeated builds
// reuse the crate cache across contracts.
func runContainerBuild(ctx context.Context, srcDir, crate string) error {
	absSrc, err := filepath.Abs(srcDir)
	if err != nil {
		return errors.Wrapf(err, "builder: resolving %s", srcDir)
	}
	args := []string{
		"run", "--rm",
		"-v", fmt.Sprintf("%s:/code", absSrc),
		"--mount", "type=volume,source=fadroma_cargo_registry,target=/usr/local/cargo/registry",
		"--mount", fmt.Sprintf("type=volume,source=fadroma_target_%s,target=/code/target", sanitizeCrateName(crate)),
		"-e", "CARGO_TERM_COLOR=always",
		optimizedBuildImage,
		crate,
	}
	cmd := exec.Command("docker", args...)
	cmd.Dir = srcDir
	if err := libexec.Exec(ctx, cmd); err != nil {
		return errors.Wrap(err, "builder: containerized cargo build failed")
	}
	return nil
}

// runHostBuild is the FADROMA_BUILD_RAW path: it skips the container and
// invokes cargo/wasm-opt directly against the host toolchain.
func runHostBuild(ctx context.Context, srcDir, crate string) error {
	if err := ensureHostToolchain(ctx); err != nil {
		return err
	}
	cmd := exec.Command("cargo", "build", "-p", crate, "--release", "--target", wasmTarget)
	cmd.Dir = srcDir
	if err := libexec.Exec(ctx, cmd); err != nil {
		return errors.Wrap(err, "builder: host cargo build failed")
	}
	return nil
}

// runWasmOpt strips debug info and optimizes for size, matching
// `wasm-opt -g -Oz --strip-dwarf` exactly (spec.md §4.2 Phase 2).
func runWasmOpt(ctx context.Context, in, out string) error {
	cmd := exec.Command("wasm-opt", "-g", "-Oz", "--strip-dwarf", in, "-o", out)
	if err := libexec.Exec(ctx, cmd); err != nil {
		return errors.Wrap(err, "builder: wasm-opt failed")
	}
	return nil
}
