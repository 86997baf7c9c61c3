package builder

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strings"

	"github.com/CoreumFoundation/coreum-tools/pkg/libexec"
	"github.com/CoreumFoundation/coreum-tools/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"
)

const (
	minimalRustVersion  = "1.69.0"
	minimalCargoVersion = "1.69.0"
	wasmTarget          = "wasm32-unknown-unknown"
)

var versionRx = regexp.MustCompile(`([0-9]+\.[0-9]+\.[0-9]+)`)

var errToolNotInstalled = errors.New("builder: tool is not installed")

// ensureHostToolchain verifies rustup/cargo/rustc are present and at least
// at the minimal pinned version, for the FADROMA_BUILD_RAW host-toolchain
// build path (the container path needs none of this).
func ensureHostToolchain(ctx context.Context) error {
	log := logger.Get(ctx)

	if _, err := exec.LookPath("rustup"); err != nil {
		log.Warn("rustup not found; install from https://rustup.rs")
		return errors.Wrap(err, "builder: rustup not in PATH")
	}
	if _, err := exec.LookPath("cargo"); err != nil {
		return errors.Wrap(err, "builder: cargo not in PATH")
	}
	cargoVersion, err := readToolVersion(ctx, "cargo", "--version")
	if err != nil {
		return errors.Wrap(err, "builder: reading cargo version")
	}
	if isLessVersion(cargoVersion, minimalCargoVersion) {
		return errors.Errorf("builder: cargo %s found, minimal is %s", cargoVersion, minimalCargoVersion)
	}
	if _, err := exec.LookPath("rustc"); err != nil {
		return errors.Wrap(err, "builder: rustc not in PATH")
	}
	rustVersion, err := readToolVersion(ctx, "rustc", "--version")
	if err != nil {
		return errors.Wrap(err, "builder: reading rustc version")
	}
	if isLessVersion(rustVersion, minimalRustVersion) {
		return errors.Errorf("builder: rustc %s found, minimal is %s", rustVersion, minimalRustVersion)
	}
	return ensureRustTarget(ctx, wasmTarget)
}

func readToolVersion(ctx context.Context, tool string, args ...string) (string, error) {
	cmd := exec.Command(tool, args...)
	out := new(bytes.Buffer)
	cmd.Stdout = out
	if err := libexec.Exec(ctx, cmd); err != nil {
		return "", errors.Wrap(err, "builder: exec failed")
	}
	m := versionRx.FindStringSubmatch(out.String())
	if len(m) < 2 {
		return "", errors.WithStack(errToolNotInstalled)
	}
	return m[1], nil
}

func ensureRustTarget(ctx context.Context, target string) error {
	cmd := exec.Command("rustup", "target", "list", "--installed")
	out := new(bytes.Buffer)
	cmd.Stdout = out
	if err := libexec.Exec(ctx, cmd); err != nil {
		return errors.Wrap(err, "builder: exec failed")
	}
	if strings.Contains(out.String(), target) {
		return nil
	}
	logger.Get(ctx).Info("installing missing rustc target", zap.String("target", target))
	cmd = exec.Command("rustup", "target", "add", target)
	if err := libexec.Exec(ctx, cmd); err != nil {
		return errors.Wrap(err, "builder: exec failed")
	}
	return nil
}

func isLessVersion(a, b string) bool {
	return semver.Compare(ensureV(a), ensureV(b)) < 0
}

func ensureV(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
