package builder

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/CoreumFoundation/coreum-tools/pkg/libexec"
	"github.com/CoreumFoundation/coreum-tools/pkg/logger"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// noFetchEnv, when set, forbids stageRevision from reaching out to origin
// for a missing ref (spec.md §4.2's "_NO_FETCH").
const noFetchEnv = "_NO_FETCH"

// stageRevision implements Phase 1 of the builder: locating the source
// tree to hand to the compiler. If revision is "HEAD" the working tree is
// used in place (possibly dirty). Otherwise the repository's .git is
// staged into scratchDir as a bare clone, the ref is resolved (fetching
// from origin unless _NO_FETCH is set), and a worktree is materialized at
// <scratchDir>/src/<sanitized-revision>.
func stageRevision(ctx context.Context, repository, revision, scratchDir string) (srcDir string, dirty bool, err error) {
	if revision == "" || revision == "HEAD" {
		dirty, err = workingTreeDirty(ctx, repository)
		return repository, dirty, err
	}

	bareDir := filepath.Join(scratchDir, "bare.git")
	if _, statErr := os.Stat(bareDir); os.IsNotExist(statErr) {
		if err := runGit(ctx, "", "clone", "--bare", repository, bareDir); err != nil {
			return "", false, errors.Wrap(err, "builder: staging bare clone")
		}
		// Strip the worktree config entry so this bare clone can serve as
		// the source for further `git clone` invocations below.
		if err := runGit(ctx, bareDir, "config", "--unset-all", "core.worktree"); err != nil {
			// absent entry is fine, only a real failure matters
			if !strings.Contains(err.Error(), "exit status 5") {
				return "", false, errors.Wrap(err, "builder: stripping worktree config")
			}
		}
	}

	if err := ensureRef(ctx, bareDir, revision); err != nil {
		return "", false, err
	}

	worktreeDir := filepath.Join(scratchDir, "src", sanitizeForPath(revision))
	if _, statErr := os.Stat(worktreeDir); os.IsNotExist(statErr) {
		if err := runGit(ctx, "", "clone", "--recursive", "-b", revision, bareDir, worktreeDir); err != nil {
			return "", false, errors.Wrap(err, "builder: cloning working tree")
		}
	}
	return worktreeDir, false, nil
}

func ensureRef(ctx context.Context, bareDir, revision string) error {
	if err := runGit(ctx, bareDir, "show-ref", "--verify", "--quiet", "refs/heads/"+revision); err == nil {
		return nil
	}
	if os.Getenv(noFetchEnv) != "" {
		return errors.Errorf("builder: ref refs/heads/%s missing and %s is set", revision, noFetchEnv)
	}
	logger.Get(ctx).Info("fetching missing revision from origin", zap.String("revision", revision))
	if err := runGit(ctx, bareDir, "fetch", "origin",
		revision+":refs/heads/"+revision); err != nil {
		return errors.Wrapf(err, "builder: fetching revision %s", revision)
	}
	return nil
}

func workingTreeDirty(ctx context.Context, repository string) (bool, error) {
	// A workspace outside any git checkout has nothing to compare against:
	// it is built in place and reported clean.
	probe := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	probe.Dir = repository
	if err := probe.Run(); err != nil {
		return false, nil
	}
	out := new(bytes.Buffer)
	cmd := exec.Command("git", "status", "-s")
	cmd.Dir = repository
	cmd.Stdout = out
	if err := libexec.Exec(ctx, cmd); err != nil {
		return false, errors.Wrap(err, "builder: git status")
	}
	return out.Len() > 0, nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if err := libexec.Exec(ctx, cmd); err != nil {
		return errors.Wrapf(err, "builder: git %s failed", strings.Join(args, " "))
	}
	return nil
}
