package uploader_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luca992/fadroma/pkg/receipt"
	"github.com/luca992/fadroma/pkg/uploader"
)

type countingAgent struct {
	calls int
	next  uint64
}

func (a *countingAgent) Upload(ctx context.Context, blob []byte) (receipt.UploadedTemplate, error) {
	a.calls++
	a.next++
	return receipt.UploadedTemplate{CodeID: a.next, UploadTx: "tx1"}, nil
}

func newTemplate(t *testing.T, dir string) receipt.ContractTemplate {
	t.Helper()
	artifact := filepath.Join(dir, "echo.wasm")
	require.NoError(t, os.WriteFile(artifact, []byte("wasm bytes"), 0o644))
	return receipt.ContractTemplate{
		ContractSource: receipt.ContractSource{Crate: "echo"},
		Artifact:       artifact,
		CodeHash:       receipt.HashBytes([]byte("wasm bytes")),
	}
}

func TestUploadIdempotent(t *testing.T) {
	dir := t.TempDir()
	u := uploader.New(filepath.Join(dir, "uploads"))
	tmpl := newTemplate(t, dir)
	agent := &countingAgent{}

	first, err := u.Upload(context.Background(), agent, "mocknet", tmpl)
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.CodeID)
	require.Equal(t, 1, agent.calls)

	second, err := u.Upload(context.Background(), agent, "mocknet", tmpl)
	require.NoError(t, err)
	require.Equal(t, first.CodeID, second.CodeID)
	require.Equal(t, 1, agent.calls, "second upload must not hit the chain again")
}

func TestUploadRequiresArtifact(t *testing.T) {
	u := uploader.New(t.TempDir())
	_, err := u.Upload(context.Background(), &countingAgent{}, "mocknet", receipt.ContractTemplate{})
	require.Error(t, err)
}
