// Package fadromaconfig binds the FADROMA_* environment variables
// (spec.md §6) to a typed Config, mirroring the env-binding idiom of
// viper.Viper{SetEnvPrefix,AutomaticEnv,SetEnvKeyReplacer} used for
// service configuration elsewhere in the pack.
package fadromaconfig

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/luca992/fadroma/pkg/builder"
	"github.com/luca992/fadroma/pkg/devnet"
)

// Config holds every FADROMA_* knob spec.md §6 names.
type Config struct {
	Chain string `mapstructure:"chain"` // registry key selecting a Chain

	BuildRaw             bool   `mapstructure:"build_raw"`
	BuildManager         string `mapstructure:"build_manager"`
	BuildUnsafeMountKeys bool   `mapstructure:"build_unsafe_mount_keys"`

	UploadAlways bool `mapstructure:"upload_always"`

	DevnetManager   string `mapstructure:"devnet_manager"`
	DevnetEphemeral bool   `mapstructure:"devnet_ephemeral"`
	DevnetHost      string `mapstructure:"devnet_host"`
	DevnetVariant   string `mapstructure:"devnet_variant"` // e.g. "scrt_1.8", resolves the node's gateway port

	PrintTxs bool `mapstructure:"print_txs"`
	Rebuild  bool `mapstructure:"rebuild"`

	Scrt ScrtConfig `mapstructure:"scrt"`
}

// ScrtConfig groups the SCRT_* chain-family options spec.md §6 mentions
// alongside the generic FADROMA_* set.
type ScrtConfig struct {
	MainnetChainID string        `mapstructure:"mainnet_chain_id"`
	TestnetChainID string        `mapstructure:"testnet_chain_id"`
	GasPrice       string        `mapstructure:"gas_price"`
	TxTimeout      time.Duration `mapstructure:"tx_timeout"`
}

// Load reads FADROMA_* (and SCRT_*) environment variables into Config,
// applying the defaults set in setDefaults when a variable is unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FADROMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	scrtV := viper.New()
	scrtV.SetEnvPrefix("SCRT")
	scrtV.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	scrtV.AutomaticEnv()
	setScrtDefaults(scrtV)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "fadromaconfig: unmarshaling FADROMA_* vars")
	}
	if err := scrtV.Unmarshal(&cfg.Scrt); err != nil {
		return nil, errors.Wrap(err, "fadromaconfig: unmarshaling SCRT_* vars")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain", "mocknet")
	v.SetDefault("build_raw", false)
	v.SetDefault("build_manager", "docker")
	v.SetDefault("build_unsafe_mount_keys", false)
	v.SetDefault("upload_always", false)
	v.SetDefault("devnet_manager", "docker")
	v.SetDefault("devnet_ephemeral", false)
	v.SetDefault("devnet_host", "127.0.0.1")
	v.SetDefault("devnet_variant", "scrt_1.8")
	v.SetDefault("print_txs", false)
	v.SetDefault("rebuild", false)
}

func setScrtDefaults(v *viper.Viper) {
	v.SetDefault("mainnet_chain_id", "secret-4")
	v.SetDefault("testnet_chain_id", "pulsar-3")
	v.SetDefault("gas_price", "0.25uscrt")
	v.SetDefault("tx_timeout", "30s")
}

// BuilderOptions projects the build-related fields onto builder.Options,
// leaving OutputDir/ScratchDir/Parallelism for the caller to fill in.
func (c *Config) BuilderOptions() builder.Options {
	return builder.Options{Raw: c.BuildRaw}
}

// DevnetOptions projects the devnet-related fields onto devnet.Options. An
// explicit mode overrides c.DevnetVariant's resolved gateway; pass "" to
// let the variant table decide.
func (c *Config) DevnetOptions(mode devnet.PortMode, image string) devnet.Options {
	return devnet.Options{Image: image, Mode: mode, Variant: c.DevnetVariant}
}
