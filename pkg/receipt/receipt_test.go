package receipt_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luca992/fadroma/pkg/receipt"
)

func TestLabelRoundTrip(t *testing.T) {
	cases := []struct{ prefix, name, suffix string }{
		{"mainnet-2024", "token", ""},
		{"mainnet-2024", "token", "v2"},
		{"", "token", ""},
		{"", "token", "v2"},
	}
	for _, c := range cases {
		label := receipt.ComposeLabel(c.prefix, c.name, c.suffix)
		prefix, name, suffix, err := receipt.ParseLabel(label)
		require.NoError(t, err)
		require.Equal(t, c.prefix, prefix)
		require.Equal(t, c.name, name)
		require.Equal(t, c.suffix, suffix)
	}
}

func TestParseLabelRejectsEmpty(t *testing.T) {
	_, _, _, err := receipt.ParseLabel("")
	require.Error(t, err)
}

func TestHashBytesStable(t *testing.T) {
	a := receipt.HashBytes([]byte("hello"))
	b := receipt.HashBytes([]byte("hello"))
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

func TestWriteReadInstance(t *testing.T) {
	dir := t.TempDir()
	inst := receipt.ContractInstance{
		UploadedTemplate: receipt.UploadedTemplate{
			ContractTemplate: receipt.ContractTemplate{
				ContractSource: receipt.ContractSource{Crate: "echo"},
				Artifact:       "echo.wasm",
				CodeHash:       "abc123",
			},
			ChainID: "mocknet",
			CodeID:  1,
		},
		Name:    "echo-1",
		Address: "mocknet1contract",
		Label:   "echo-1",
	}
	require.NoError(t, receipt.WriteInstance(dir, "2024-deployment", inst))

	got, err := receipt.ReadInstance(dir, "2024-deployment", "echo-1")
	require.NoError(t, err)
	require.Equal(t, inst.Address, got.Address)
	require.Equal(t, inst.CodeID, got.CodeID)

	all, err := receipt.ListInstances(dir, "2024-deployment")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestUploadReceiptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := receipt.UploadReceipt{ChainID: "mocknet", CodeID: 1, CodeHash: "abc123"}
	require.NoError(t, receipt.WriteUploadReceipt(dir, r))

	got, ok, err := receipt.ReadUploadReceipt(dir, "mocknet", "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, r.CodeID, got.CodeID)

	_, ok, err = receipt.ReadUploadReceipt(dir, "mocknet", "doesnotexist")
	require.NoError(t, err)
	require.False(t, ok)

	require.FileExists(t, filepath.Join(dir, "mocknet", "abc123.json"))
}
