package devnet_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luca992/fadroma/pkg/devnet"
)

func TestStateRoundTripsAcrossFreshSupervisor(t *testing.T) {
	dir := t.TempDir()

	state := &devnet.State{
		ChainID:     "fadroma-devnet-1",
		ContainerID: "deadbeef",
		Port:        40123,
		Host:        "127.0.0.1",
	}
	require.NoError(t, state.Save(dir))

	s, err := devnet.Load(context.Background(), dir, "fadroma-devnet-1", devnet.Options{Mode: devnet.ModeLCP})
	require.NoError(t, err)
	require.Equal(t, "fadroma-devnet-1", s.ChainID())
	require.Equal(t, "http://127.0.0.1:40123", s.URL())
}

func TestLoadWithMismatchedChainIDWarnsNotErrors(t *testing.T) {
	dir := t.TempDir()

	state := &devnet.State{ChainID: "old-chain", Port: 1317}
	require.NoError(t, state.Save(dir))

	s, err := devnet.Load(context.Background(), dir, "new-chain", devnet.Options{Mode: devnet.ModeLCP})
	require.NoError(t, err)
	require.Equal(t, "new-chain", s.ChainID())
	require.Equal(t, "http://127.0.0.1:1317", s.URL())
}

func TestFreePortIsWithinEphemeralRange(t *testing.T) {
	port, err := devnet.FreePort()
	require.NoError(t, err)
	require.GreaterOrEqual(t, port, 1024)
	require.LessOrEqual(t, port, 65535)
}

func TestTerminateErasesStateDirectory(t *testing.T) {
	dir := t.TempDir()
	state := &devnet.State{ChainID: "fadroma-devnet-1", Port: 1317}
	require.NoError(t, state.Save(dir))

	s, err := devnet.Load(context.Background(), dir, "fadroma-devnet-1", devnet.Options{Mode: devnet.ModeLCP})
	require.NoError(t, err)

	require.NoError(t, s.Terminate(context.Background()))

	reloaded, err := devnet.LoadState(dir)
	require.NoError(t, err)
	require.Nil(t, reloaded)
}

func TestGenesisAccountIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	state := &devnet.State{ChainID: "fadroma-devnet-1", Port: 1317}
	require.NoError(t, state.Save(dir))

	s, err := devnet.Load(context.Background(), dir, "fadroma-devnet-1", devnet.Options{Mode: devnet.ModeLCP})
	require.NoError(t, err)

	first, err := s.GenesisAccount(context.Background(), "alice")
	require.NoError(t, err)
	second, err := s.GenesisAccount(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, first.Address, second.Address)
	require.NotEmpty(t, first.Mnemonic)

	other, err := devnet.GenesisAccount("another-chain", "alice")
	require.NoError(t, err)
	require.NotEqual(t, first.Address, other.Address)
}

func TestLoadResolvesModeFromVariant(t *testing.T) {
	dir := t.TempDir()
	s, err := devnet.Load(context.Background(), dir, "fadroma-devnet-1", devnet.Options{Variant: "scrt_1.3"})
	require.NoError(t, err)
	require.Equal(t, devnet.ModeGRPCWeb, s.Mode())
}

func TestLoadFallsBackToLCPForUnknownVariant(t *testing.T) {
	dir := t.TempDir()
	s, err := devnet.Load(context.Background(), dir, "fadroma-devnet-1", devnet.Options{Variant: "scrt_9.9"})
	require.NoError(t, err)
	require.Equal(t, devnet.ModeLCP, s.Mode())
}

func TestGenesisAccountRejectsEmptyName(t *testing.T) {
	dir := t.TempDir()
	s, err := devnet.Load(context.Background(), dir, "fadroma-devnet-1", devnet.Options{Mode: devnet.ModeLCP})
	require.NoError(t, err)

	_, err = s.GenesisAccount(context.Background(), "")
	require.Error(t, err)
}
