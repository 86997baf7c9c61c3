package fadromaconfig_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luca992/fadroma/pkg/fadromaconfig"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := fadromaconfig.Load()
	require.NoError(t, err)
	require.Equal(t, "mocknet", cfg.Chain)
	require.False(t, cfg.BuildRaw)
	require.Equal(t, "secret-4", cfg.Scrt.MainnetChainID)
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("FADROMA_BUILD_RAW", "true")
	t.Setenv("FADROMA_CHAIN", "wasmchain")
	t.Setenv("SCRT_GAS_PRICE", "0.1uscrt")

	cfg, err := fadromaconfig.Load()
	require.NoError(t, err)
	require.True(t, cfg.BuildRaw)
	require.Equal(t, "wasmchain", cfg.Chain)
	require.Equal(t, "0.1uscrt", cfg.Scrt.GasPrice)
}

func TestBuilderOptionsProjectsRawFlag(t *testing.T) {
	cfg := &fadromaconfig.Config{BuildRaw: true}
	opts := cfg.BuilderOptions()
	require.True(t, opts.Raw)
}

func TestDevnetOptionsCarriesVariantWhenModeUnset(t *testing.T) {
	cfg := &fadromaconfig.Config{DevnetVariant: "scrt_1.3"}
	opts := cfg.DevnetOptions("", "cosmwasm/wasmd:v0.40.0")
	require.Equal(t, "scrt_1.3", opts.Variant)
	require.Empty(t, opts.Mode)
}

func init() {
	// Ensure a clean slate regardless of the invoking shell's environment.
	for _, key := range []string{"FADROMA_BUILD_RAW", "FADROMA_CHAIN", "SCRT_GAS_PRICE", "FADROMA_DEVNET_VARIANT"} {
		os.Unsetenv(key)
	}
}
