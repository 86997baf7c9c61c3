package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// sanitizeForPath replaces "/" with "_" in strings destined for a single
// path segment (revisions, which may be refs like "feature/x").
func sanitizeForPath(s string) string {
	return strings.ReplaceAll(s, "/", "_")
}

// sanitizeCrateName replaces "-" with "_" in a crate name used as a
// filename stem, matching cargo's own crate->artifact name mangling.
func sanitizeCrateName(crate string) string {
	return strings.ReplaceAll(crate, "-", "_")
}

// ArtifactFilename composes the deterministic artifact filename:
// <sanitized-crate>@<sanitized-revision>.wasm
func ArtifactFilename(crate, revision string) string {
	return fmt.Sprintf("%s@%s.wasm", sanitizeCrateName(crate), sanitizeForPath(revision))
}

type cargoManifest struct {
	Package struct {
		Name string `toml:"name"`
	} `toml:"package"`
}

// ReadCrateName reads the package name out of a workspace member's
// Cargo.toml, used to derive the artifact filename stem when the caller
// only supplied a workspace path.
func ReadCrateName(cargoTomlPath string) (string, error) {
	b, err := os.ReadFile(cargoTomlPath)
	if err != nil {
		return "", errors.Wrapf(err, "builder: reading %s", cargoTomlPath)
	}
	var manifest cargoManifest
	if _, err := toml.Decode(string(b), &manifest); err != nil {
		return "", errors.Wrapf(err, "builder: parsing %s", cargoTomlPath)
	}
	if manifest.Package.Name == "" {
		return "", errors.Errorf("builder: %s has no [package].name", cargoTomlPath)
	}
	return manifest.Package.Name, nil
}

// DiscoverCrateName resolves the crate name for a workspace whose caller
// left --crate empty, by reading the workspace root's own Cargo.toml. It
// covers the single-member-workspace layout (the workspace directory is
// itself the crate), the default this package's callers promise.
func DiscoverCrateName(workspaceDir string) (string, error) {
	return ReadCrateName(filepath.Join(workspaceDir, "Cargo.toml"))
}
