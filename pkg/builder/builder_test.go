package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luca992/fadroma/pkg/receipt"
)

func TestArtifactFilenameSanitizes(t *testing.T) {
	require.Equal(t, "my_crate@feature_x.wasm", ArtifactFilename("my-crate", "feature/x"))
	require.Equal(t, "echo@HEAD.wasm", ArtifactFilename("echo", "HEAD"))
}

func TestBuildSkipsWhenSourceTreeUnchanged(t *testing.T) {
	outDir := t.TempDir()
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "lib.rs"), []byte("fn main(){}"), 0o644))

	artifactPath := filepath.Join(outDir, ArtifactFilename("echo", "HEAD"))
	require.NoError(t, os.WriteFile(artifactPath, []byte("fake wasm"), 0o644))
	codeHash := receipt.HashBytes([]byte("fake wasm"))
	require.NoError(t, os.WriteFile(artifactPath+".sha256", []byte(codeHash), 0o644))

	treeHash, err := sourceTreeHash(workspace)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(artifactPath+".srchash", []byte(treeHash), 0o644))

	b := New(Options{OutputDir: outDir})
	tmpl, err := b.Build(context.Background(), receipt.ContractSource{Crate: "echo", Workspace: workspace})
	require.NoError(t, err)
	require.Equal(t, artifactPath, tmpl.Artifact)
	require.Equal(t, codeHash, tmpl.CodeHash)
}

func TestBuildRebuildsWhenSourceTreeChangedSinceLastBuild(t *testing.T) {
	outDir := t.TempDir()
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "lib.rs"), []byte("fn main(){}"), 0o644))

	artifactPath := filepath.Join(outDir, ArtifactFilename("echo", "HEAD"))
	require.NoError(t, os.WriteFile(artifactPath, []byte("fake wasm"), 0o644))
	codeHash := receipt.HashBytes([]byte("fake wasm"))
	require.NoError(t, os.WriteFile(artifactPath+".sha256", []byte(codeHash), 0o644))
	require.NoError(t, os.WriteFile(artifactPath+".srchash", []byte("stale-hash-from-a-prior-build"), 0o644))

	b := New(Options{OutputDir: outDir, Raw: true})
	_, err := b.Build(context.Background(), receipt.ContractSource{Crate: "echo", Workspace: workspace})
	// falls through past the skip check into the real (host) build, which
	// fails in this test environment since there is no actual crate to
	// compile: the assertion that matters is that it did NOT skip.
	require.Error(t, err)
	require.NotContains(t, err.Error(), "NoCrate")
}

func TestBuildRequiresCrate(t *testing.T) {
	b := New(Options{OutputDir: t.TempDir()})
	_, err := b.Build(context.Background(), receipt.ContractSource{})
	require.Error(t, err)
}

func TestBuildDiscoversSoleWorkspaceMemberCrate(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "Cargo.toml"), []byte("[package]\nname = \"echo\"\n"), 0o644))

	b := New(Options{OutputDir: t.TempDir(), Raw: true})
	_, err := b.Build(context.Background(), receipt.ContractSource{Workspace: workspace})
	// still fails past crate discovery (no real toolchain here), but must
	// not fail with NoCrate: the workspace's Cargo.toml resolved "echo".
	require.Error(t, err)
	require.NotContains(t, err.Error(), "NoCrate")
}

func TestSourceTreeHashStable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib.rs"), []byte("fn main(){}"), 0o644))
	a, err := sourceTreeHash(dir)
	require.NoError(t, err)
	b, err := sourceTreeHash(dir)
	require.NoError(t, err)
	require.Equal(t, a, b)
}
