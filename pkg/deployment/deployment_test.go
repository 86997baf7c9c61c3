package deployment_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luca992/fadroma/pkg/deployment"
	"github.com/luca992/fadroma/pkg/receipt"
)

type fakeBuilder struct{ calls int32 }

func (b *fakeBuilder) Build(ctx context.Context, src receipt.ContractSource) (receipt.ContractTemplate, error) {
	atomic.AddInt32(&b.calls, 1)
	time.Sleep(10 * time.Millisecond)
	return receipt.ContractTemplate{ContractSource: src, Artifact: "out.wasm", CodeHash: "hash1"}, nil
}

type fakeUploader struct{ calls int32 }

func (u *fakeUploader) Upload(ctx context.Context, agent deployment.Agent, chainID string, tmpl receipt.ContractTemplate) (receipt.UploadedTemplate, error) {
	atomic.AddInt32(&u.calls, 1)
	return receipt.UploadedTemplate{ContractTemplate: tmpl, ChainID: chainID, CodeID: 1}, nil
}

type fakeAgent struct{ addrSeq int }

func (a *fakeAgent) Upload(ctx context.Context, blob []byte) (receipt.UploadedTemplate, error) {
	return receipt.UploadedTemplate{CodeID: 1}, nil
}

func (a *fakeAgent) Instantiate(ctx context.Context, tmpl receipt.UploadedTemplate, label string, initMsg receipt.RawMessage) (receipt.ContractInstance, error) {
	a.addrSeq++
	return receipt.ContractInstance{UploadedTemplate: tmpl, Label: label, Address: label + "-addr"}, nil
}

func TestContractLifecycleMonotonic(t *testing.T) {
	b := &fakeBuilder{}
	u := &fakeUploader{}
	a := &fakeAgent{}
	dir := t.TempDir()
	d := deployment.New("dep1", dir)
	d.DefaultBuilder, d.DefaultUploader, d.DefaultAgent = b, u, a

	c := d.Contract("token", deployment.ContractOptions{Source: receipt.ContractSource{Crate: "token"}})
	inst, err := c.Instantiate(context.Background(), json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	require.True(t, inst.Instantiated())
	require.Equal(t, int32(1), b.calls)
	require.Equal(t, int32(1), u.calls)

	// re-run: every stage must short-circuit, no further backend calls.
	inst2, err := c.Instantiate(context.Background(), json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	require.Equal(t, inst.Address, inst2.Address)
	require.Equal(t, int32(1), b.calls)
	require.Equal(t, int32(1), u.calls)
}

func TestConcurrentBuildCollapses(t *testing.T) {
	b := &fakeBuilder{}
	d := deployment.New("dep1", t.TempDir())
	d.DefaultBuilder = b
	c := d.Contract("token", deployment.ContractOptions{Source: receipt.ContractSource{Crate: "token"}})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Build(context.Background())
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), b.calls)
}

func TestInstantiateMissingFieldsFail(t *testing.T) {
	d := deployment.New("dep1", t.TempDir())
	c := d.Contract("token", deployment.ContractOptions{})
	_, err := c.Instantiate(context.Background(), json.RawMessage(`{}`))
	require.ErrorIs(t, err, deployment.ErrNoCrate)
}

func TestDeploymentLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	inst := receipt.ContractInstance{
		UploadedTemplate: receipt.UploadedTemplate{
			ContractTemplate: receipt.ContractTemplate{ContractSource: receipt.ContractSource{Crate: "token"}, CodeHash: "h1"},
			ChainID:          "mocknet",
			CodeID:           1,
		},
		Name:    "token",
		Address: "addr1",
		Label:   "dep1/token",
	}
	require.NoError(t, receipt.WriteInstance(dir, "dep1", inst))

	d := deployment.New("dep1", dir)
	require.NoError(t, d.Load())
	c := d.Contract("token", deployment.ContractOptions{})
	require.True(t, c.Instance().Instantiated())
	require.Equal(t, "addr1", c.Instance().Address)
}

func TestActivePointerFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, deployment.SetActive(dir, "dep1"))
	name, err := deployment.ActiveName(dir)
	require.NoError(t, err)
	require.Equal(t, "dep1", name)

	require.NoError(t, deployment.SetActive(dir, "dep2"))
	name, err = deployment.ActiveName(dir)
	require.NoError(t, err)
	require.Equal(t, "dep2", name)
}

func TestMatchesAllProvidedKeysEqual(t *testing.T) {
	inst := receipt.ContractInstance{Name: "token", ChainID: "mocknet"}
	require.True(t, deployment.Matches(inst, nil))
	require.True(t, deployment.Matches(inst, map[string]string{"name": "token"}))
	require.False(t, deployment.Matches(inst, map[string]string{"name": "token", "chainId": "testnet"}))
	require.False(t, deployment.Matches(inst, map[string]string{"bogus": "x"}))
}

func TestManyPreservesOrderAndIsolatesFailures(t *testing.T) {
	b := &fakeBuilder{}
	u := &fakeUploader{}
	a := &fakeAgent{}
	d := deployment.New("dep1", t.TempDir())
	d.DefaultBuilder, d.DefaultUploader, d.DefaultAgent = b, u, a

	entries := []deployment.InitEntry{
		{Name: "a", InitMsg: json.RawMessage(`{}`)},
		{Name: "b", InitMsg: json.RawMessage(`{}`)},
		{Name: "c", InitMsg: json.RawMessage(`{}`)},
	}
	results := deployment.Many(context.Background(), d, receipt.ContractSource{Crate: "token"}, entries)
	require.Len(t, results, 3)
	for i, r := range results {
		require.Equal(t, entries[i].Name, r.Name)
		require.NoError(t, r.Err)
	}
	require.Equal(t, int32(1), b.calls, "template built only once across all peers")
	require.Equal(t, int32(1), u.calls, "template uploaded only once across all peers")
}

func TestInstantiationUniquenessViaRegister(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "deployments")
	d := deployment.New("dep1", dir)
	c1 := deployment.NewContract(deployment.Options{Name: "token"})
	require.NoError(t, d.Register("token", c1))
	c2 := deployment.NewContract(deployment.Options{Name: "token"})
	require.ErrorIs(t, d.Register("token", c2), deployment.ErrNameAlreadyTaken)
}
