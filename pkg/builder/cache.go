package builder

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/mod/sumdb/dirhash"
)

// sourceTreeHash fingerprints a staged source directory so repeated
// builds against an unchanged working tree can be recognized, independent
// of the codeHash invariant (which covers the compiled artifact, not the
// source). Mirrors build/rust/contract.go's CompileSmartContract cache.
func sourceTreeHash(srcDir string) (string, error) {
	var files []string
	err := filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "target" || info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "builder: walking %s", srcDir)
	}
	h, err := dirhash.Hash1(files, func(name string) (io.ReadCloser, error) {
		return os.Open(name)
	})
	if err != nil {
		return "", errors.Wrap(err, "builder: hashing source tree")
	}
	return h, nil
}

// matchesSrcHashSidecar reports whether artifactPath's ".srchash" sidecar
// (written by writeSrcHashSidecar after the build that produced it) equals
// treeHash. A missing or stale sidecar means the artifact's provenance is
// unknown and the build must not be skipped, even if the compiled wasm and
// its codeHash sidecar are both still present.
func matchesSrcHashSidecar(artifactPath, treeHash string) bool {
	b, err := os.ReadFile(artifactPath + ".srchash")
	if err != nil {
		return false
	}
	return string(b) == treeHash
}

// writeSrcHashSidecar records the source tree fingerprint a successful
// build was produced from, so the next Build call against an unchanged
// working tree (in particular revision "HEAD", which stageRevision can
// hand back dirty) can be recognized and skipped.
func writeSrcHashSidecar(artifactPath, treeHash string) error {
	if err := os.WriteFile(artifactPath+".srchash", []byte(treeHash), 0o644); err != nil {
		return errors.Wrap(err, "builder: writing source tree hash sidecar")
	}
	return nil
}
