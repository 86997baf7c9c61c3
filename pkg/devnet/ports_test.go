package devnet_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luca992/fadroma/pkg/devnet"
)

func TestPortsForVariantLCPEras(t *testing.T) {
	for _, variant := range []string{"scrt_1.2", "scrt_1.5", "scrt_1.6", "scrt_1.7", "scrt_1.8"} {
		mode, port, ok := devnet.PortsForVariant(variant)
		require.True(t, ok, variant)
		require.Equal(t, devnet.ModeLCP, mode, variant)
		require.Equal(t, 1317, port, variant)
	}
}

func TestPortsForVariantGRPCWebEra(t *testing.T) {
	for _, variant := range []string{"scrt_1.3", "scrt_1.4"} {
		mode, port, ok := devnet.PortsForVariant(variant)
		require.True(t, ok, variant)
		require.Equal(t, devnet.ModeGRPCWeb, mode, variant)
		require.Equal(t, 9091, port, variant)
	}
}

func TestPortsForVariantUnknown(t *testing.T) {
	_, _, ok := devnet.PortsForVariant("scrt_9.9")
	require.False(t, ok)
}

func TestFreePortIsUsable(t *testing.T) {
	port, err := devnet.FreePort()
	require.NoError(t, err)
	require.Greater(t, port, 0)
}
