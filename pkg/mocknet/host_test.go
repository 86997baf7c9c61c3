package mocknet_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luca992/fadroma/pkg/mocknet"
	"github.com/luca992/fadroma/pkg/receipt"
)

// echoStubWasm is a hand-assembled minimal WASM module (no Rust toolchain
// involved) exporting memory, allocate, deallocate, init, handle and
// query. allocate always hands back the same fixed Region, so whatever
// the host writes into it last is what init/handle/query read back out —
// an honest, if minimal, echo contract: init(env,msg) and handle(env,msg)
// echo msg (env is overwritten-then-clobbered by the second allocate
// call), query(msg) echoes msg verbatim.
var echoStubWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, 0x01, 0x10, 0x03, 0x60,
	0x01, 0x7f, 0x01, 0x7f, 0x60, 0x01, 0x7f, 0x00, 0x60, 0x02, 0x7f, 0x7f,
	0x01, 0x7f, 0x03, 0x06, 0x05, 0x00, 0x01, 0x02, 0x02, 0x00, 0x05, 0x03,
	0x01, 0x00, 0x02, 0x07, 0x3a, 0x06, 0x06, 0x6d, 0x65, 0x6d, 0x6f, 0x72,
	0x79, 0x02, 0x00, 0x08, 0x61, 0x6c, 0x6c, 0x6f, 0x63, 0x61, 0x74, 0x65,
	0x00, 0x00, 0x0a, 0x64, 0x65, 0x61, 0x6c, 0x6c, 0x6f, 0x63, 0x61, 0x74,
	0x65, 0x00, 0x01, 0x04, 0x69, 0x6e, 0x69, 0x74, 0x00, 0x02, 0x06, 0x68,
	0x61, 0x6e, 0x64, 0x6c, 0x65, 0x00, 0x03, 0x05, 0x71, 0x75, 0x65, 0x72,
	0x79, 0x00, 0x04, 0x0a, 0x18, 0x05, 0x04, 0x00, 0x41, 0x08, 0x0b, 0x02,
	0x00, 0x0b, 0x04, 0x00, 0x41, 0x08, 0x0b, 0x04, 0x00, 0x41, 0x08, 0x0b,
	0x04, 0x00, 0x41, 0x08, 0x0b, 0x0b, 0x12, 0x01, 0x00, 0x41, 0x08, 0x0b,
	0x0c, 0x40, 0x00, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00,
}

func TestBase64RoundTrip(t *testing.T) {
	decoded, err := mocknet.B64ToUtf8("IkVjaG8i")
	require.NoError(t, err)
	require.Equal(t, `"Echo"`, decoded)
	require.Equal(t, "IkVjaG8i", mocknet.Utf8ToB64(`"Echo"`))
}

func TestUploadAssignsMonotonicCodeIDs(t *testing.T) {
	ctx := context.Background()
	m := mocknet.New(ctx, "mock-1")
	defer m.Close(ctx)

	first, err := m.Upload(ctx, echoStubWasm)
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.CodeID)

	second, err := m.Upload(ctx, echoStubWasm)
	require.NoError(t, err)
	require.Equal(t, uint64(2), second.CodeID)
}

func TestInstantiateAndQueryEchoesMessage(t *testing.T) {
	ctx := context.Background()
	m := mocknet.New(ctx, "mock-1")
	defer m.Close(ctx)

	tmpl, err := m.Upload(ctx, echoStubWasm)
	require.NoError(t, err)

	inst, err := m.Instantiate(ctx, "creator1", tmpl, "echo-label", receipt.RawMessage(`{"ok":"IkVjaG8i"}`))
	require.NoError(t, err)
	require.NotEmpty(t, inst.Address)

	result, err := m.Query(ctx, inst.Address, receipt.RawMessage(`{"ok":"IkVjaG8i"}`))
	require.NoError(t, err)
	require.JSONEq(t, `"IkVjaG8i"`, string(result))

	decoded, err := mocknet.B64ToUtf8("IkVjaG8i")
	require.NoError(t, err)
	require.Equal(t, `"Echo"`, decoded)
}

func TestExecuteSurfacesCapitalizedErrEnvelopeAsFailure(t *testing.T) {
	ctx := context.Background()
	m := mocknet.New(ctx, "mock-1")
	defer m.Close(ctx)

	tmpl, err := m.Upload(ctx, echoStubWasm)
	require.NoError(t, err)
	inst, err := m.Instantiate(ctx, "creator1", tmpl, "echo-label", receipt.RawMessage(`{"Ok":""}`))
	require.NoError(t, err)

	failMsg := `{"Err":{"generic_err":{"msg":"this transaction always fails"}}}`
	_, err = m.Execute(ctx, inst.Address, receipt.RawMessage(failMsg))
	require.Error(t, err)
	require.Contains(t, err.Error(), "this transaction always fails")
}

func TestExecuteEchoesHandleMessage(t *testing.T) {
	ctx := context.Background()
	m := mocknet.New(ctx, "mock-1")
	defer m.Close(ctx)

	tmpl, err := m.Upload(ctx, echoStubWasm)
	require.NoError(t, err)
	inst, err := m.Instantiate(ctx, "creator1", tmpl, "echo-label", receipt.RawMessage(`{"ok":""}`))
	require.NoError(t, err)

	result, err := m.Execute(ctx, inst.Address, receipt.RawMessage(`{"ok":"aGVsbG8="}`))
	require.NoError(t, err)
	require.JSONEq(t, `"aGVsbG8="`, string(result.Data))
}

func TestGetHashAndCodeIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := mocknet.New(ctx, "mock-1")
	defer m.Close(ctx)

	tmpl, err := m.Upload(ctx, echoStubWasm)
	require.NoError(t, err)
	inst, err := m.Instantiate(ctx, "creator1", tmpl, "label", receipt.RawMessage(`{"ok":""}`))
	require.NoError(t, err)

	codeID, err := m.GetCodeID(ctx, inst.Address)
	require.NoError(t, err)
	require.Equal(t, tmpl.CodeID, codeID)

	hash, err := m.GetHash(ctx, inst.Address)
	require.NoError(t, err)
	require.Equal(t, tmpl.CodeHash, hash)
}

func TestNextBlockAdvancesHeight(t *testing.T) {
	ctx := context.Background()
	m := mocknet.New(ctx, "mock-1")
	defer m.Close(ctx)

	start, err := m.Height(ctx)
	require.NoError(t, err)
	next, err := m.NextBlock(ctx)
	require.NoError(t, err)
	require.Equal(t, start+1, next)
}
