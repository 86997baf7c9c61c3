package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/CoreumFoundation/coreum-tools/pkg/logger"
	"github.com/CoreumFoundation/coreum-tools/pkg/must"
	"github.com/CoreumFoundation/coreum-tools/pkg/run"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/luca992/fadroma/pkg/builder"
	fadromachain "github.com/luca992/fadroma/pkg/chain"
	"github.com/luca992/fadroma/pkg/devnet"
	"github.com/luca992/fadroma/pkg/fadromaconfig"
	"github.com/luca992/fadroma/pkg/mocknet"
	"github.com/luca992/fadroma/pkg/receipt"
	"github.com/luca992/fadroma/pkg/uploader"
)

type RunE func(cmd *cobra.Command, args []string) error

func main() {
	run.Tool("fadroma", nil, func(ctx context.Context) error {
		cfg, err := fadromaconfig.Load()
		if err != nil {
			return err
		}

		rootCmd := &cobra.Command{
			SilenceUsage:  true,
			SilenceErrors: true,
			Short:         "Deterministic build, upload and deployment pipeline for CosmWasm smart contracts",
			Args:          cobra.NoArgs,
			CompletionOptions: cobra.CompletionOptions{
				DisableDefaultCmd: true,
			},
			RunE: rootRunE,
		}
		logger.AddFlags(logger.ToolDefaultConfig, rootCmd.PersistentFlags())

		var buildConfig BuildFlags
		buildCmd := &cobra.Command{
			Use:     "build <crate-dir>",
			Aliases: []string{"b"},
			Short:   "Compiles a crate to an optimized, content-hashed WASM artifact",
			Args:    cobra.ExactArgs(1),
			RunE:    buildRunE(ctx, cfg, &buildConfig),
		}
		addBuildFlags(buildCmd, &buildConfig)
		rootCmd.AddCommand(buildCmd)

		var uploadConfig UploadFlags
		uploadCmd := &cobra.Command{
			Use:     "upload <artifact>",
			Aliases: []string{"u"},
			Short:   "Uploads a built artifact to a chain, skipping if the codeHash is already stored",
			Args:    cobra.ExactArgs(1),
			RunE:    uploadRunE(ctx, cfg, &uploadConfig),
		}
		addUploadFlags(uploadCmd, &uploadConfig)
		rootCmd.AddCommand(uploadCmd)

		var instConfig InstantiateFlags
		instCmd := &cobra.Command{
			Use:     "instantiate <code-id> <label> [init-msg-json]",
			Aliases: []string{"i", "init"},
			Short:   "Instantiates an uploaded code ID, producing a contract address",
			Args:    cobra.RangeArgs(2, 3),
			RunE:    instantiateRunE(ctx, cfg, &instConfig),
		}
		addChainFlags(instCmd, &instConfig.Chain)
		rootCmd.AddCommand(instCmd)

		devnetCmd := &cobra.Command{
			Use:   "devnet",
			Short: "Manages the lifecycle of a local ephemeral chain node",
			Args:  cobra.NoArgs,
		}
		var devnetConfig DevnetFlags
		devnetUpCmd := &cobra.Command{
			Use:   "up",
			Short: "Spawns (or resumes) the devnet node and writes its state file",
			Args:  cobra.NoArgs,
			RunE:  devnetUpRunE(ctx, cfg, &devnetConfig),
		}
		addDevnetFlags(devnetUpCmd, &devnetConfig)
		devnetCmd.AddCommand(devnetUpCmd)

		devnetDownCmd := &cobra.Command{
			Use:   "down",
			Short: "Terminates the devnet node and erases its state file",
			Args:  cobra.NoArgs,
			RunE:  devnetDownRunE(ctx, cfg, &devnetConfig),
		}
		addDevnetFlags(devnetDownCmd, &devnetConfig)
		devnetCmd.AddCommand(devnetDownCmd)
		rootCmd.AddCommand(devnetCmd)

		return rootCmd.Execute()
	})
}

var rootRunE RunE = func(cmd *cobra.Command, args []string) error {
	return cmd.Help()
}

// BuildFlags configures the build command.
type BuildFlags struct {
	Crate      string
	Revision   string
	OutputDir  string
	ScratchDir string
}

func addBuildFlags(cmd *cobra.Command, f *BuildFlags) {
	cmd.Flags().StringVar(&f.Crate, "crate", "", "crate name within the workspace (defaults to the [package] name in <crate-dir>/Cargo.toml)")
	cmd.Flags().StringVar(&f.Revision, "revision", "HEAD", "git revision to build, HEAD means the working tree")
	cmd.Flags().StringVar(&f.OutputDir, "out", defaultString("FADROMA_BUILD_OUT", "artifacts"), "directory receiving the compiled artifact and its .sha256 sidecar")
	cmd.Flags().StringVar(&f.ScratchDir, "scratch", defaultString("FADROMA_BUILD_SCRATCH", ".fadroma-scratch"), "directory for staged non-HEAD revisions")
}

func buildRunE(ctx context.Context, cfg *fadromaconfig.Config, f *BuildFlags) RunE {
	return func(cmd *cobra.Command, args []string) error {
		workspace := args[0]
		b := builder.New(builder.Options{
			OutputDir:  f.OutputDir,
			ScratchDir: f.ScratchDir,
			Raw:        cfg.BuildRaw,
		})
		tmpl, err := b.Build(ctx, receipt.ContractSource{
			Workspace: workspace,
			Crate:     f.Crate,
			Revision:  f.Revision,
		})
		if err != nil {
			return err
		}
		return printJSON(tmpl)
	}
}

// UploadFlags configures the upload command.
type UploadFlags struct {
	Chain     ChainFlags
	UploadDir string
	CodeHash  string
}

func addUploadFlags(cmd *cobra.Command, f *UploadFlags) {
	addChainFlags(cmd, &f.Chain)
	cmd.Flags().StringVar(&f.UploadDir, "upload-dir", defaultString("FADROMA_UPLOAD_DIR", "uploads"), "directory storing per-(chainId,codeHash) upload receipts")
	cmd.Flags().StringVar(&f.CodeHash, "code-hash", "", "codeHash to record for the artifact; computed from its bytes if empty")
}

func uploadRunE(ctx context.Context, cfg *fadromaconfig.Config, f *UploadFlags) RunE {
	return func(cmd *cobra.Command, args []string) error {
		artifactPath := args[0]
		blob, err := os.ReadFile(artifactPath)
		if err != nil {
			return errors.Wrapf(err, "reading artifact %s", artifactPath)
		}
		codeHash := f.CodeHash
		if codeHash == "" {
			codeHash = receipt.HashBytes(blob)
		}

		c, agent, err := resolveChain(ctx, cfg, f.Chain)
		if err != nil {
			return err
		}

		u := uploader.New(f.UploadDir)
		tmpl, err := u.Upload(ctx, agent, c.ID(), receipt.ContractTemplate{
			ContractSource: receipt.ContractSource{Revision: "HEAD"},
			Artifact:       artifactPath,
			CodeHash:       codeHash,
		})
		if err != nil {
			return err
		}
		return printJSON(tmpl)
	}
}

// InstantiateFlags configures the instantiate command.
type InstantiateFlags struct {
	Chain ChainFlags
}

func instantiateRunE(ctx context.Context, cfg *fadromaconfig.Config, f *InstantiateFlags) RunE {
	return func(cmd *cobra.Command, args []string) error {
		label := args[1]
		initMsg := receipt.RawMessage("{}")
		if len(args) == 3 {
			initMsg = receipt.RawMessage(args[2])
		}

		_, agent, err := resolveChain(ctx, cfg, f.Chain)
		if err != nil {
			return err
		}

		codeID, err := parseUint64(args[0])
		if err != nil {
			return errors.Wrap(err, "parsing code-id")
		}

		inst, err := agent.Instantiate(ctx, receipt.UploadedTemplate{CodeID: codeID}, label, initMsg)
		if err != nil {
			return err
		}
		return printJSON(inst)
	}
}

// DevnetFlags configures devnet up/down.
type DevnetFlags struct {
	StateDir string
	ChainID  string
	Image    string
	Variant  string
}

func addDevnetFlags(cmd *cobra.Command, f *DevnetFlags) {
	cmd.Flags().StringVar(&f.StateDir, "state-dir", defaultString("FADROMA_DEVNET_STATE_DIR", ".fadroma-devnet"), "directory holding devnet.json")
	cmd.Flags().StringVar(&f.ChainID, "chain-id", defaultString("FADROMA_DEVNET_CHAIN_ID", "fadroma-devnet"), "chainId for the devnet node")
	cmd.Flags().StringVar(&f.Image, "image", defaultString("FADROMA_DEVNET_IMAGE", "cosmwasm/wasmd:v0.40.0"), "docker image running the devnet node")
	cmd.Flags().StringVar(&f.Variant, "variant", "", `chain variant (e.g. "scrt_1.8") used to resolve the node's gateway port; defaults to FADROMA_DEVNET_VARIANT`)
}

func devnetUpRunE(ctx context.Context, cfg *fadromaconfig.Config, f *DevnetFlags) RunE {
	return func(cmd *cobra.Command, args []string) error {
		opts := cfg.DevnetOptions("", f.Image)
		if f.Variant != "" {
			opts.Variant = f.Variant
		}
		sup, err := devnet.Load(ctx, f.StateDir, f.ChainID, opts)
		if err != nil {
			return err
		}
		if err := sup.Respawn(ctx); err != nil {
			return err
		}
		fmt.Println(sup.URL())
		return nil
	}
}

func devnetDownRunE(ctx context.Context, cfg *fadromaconfig.Config, f *DevnetFlags) RunE {
	return func(cmd *cobra.Command, args []string) error {
		opts := cfg.DevnetOptions("", f.Image)
		if f.Variant != "" {
			opts.Variant = f.Variant
		}
		sup, err := devnet.Load(ctx, f.StateDir, f.ChainID, opts)
		if err != nil {
			return err
		}
		return sup.Terminate(ctx)
	}
}

// ChainFlags selects which Chain backend a command targets.
type ChainFlags struct {
	Backend string // "mocknet" or "wasmchain"
	ChainID string
}

func addChainFlags(cmd *cobra.Command, f *ChainFlags) {
	cmd.Flags().StringVar(&f.Backend, "chain", defaultString("FADROMA_CHAIN", "mocknet"), `chain backend; only "mocknet" is supported by this CLI`)
	cmd.Flags().StringVar(&f.ChainID, "chain-id", defaultString("FADROMA_CHAIN_ID", "mocknet"), "chainId to target")
}

// resolveChain constructs a Chain+Agent pair for f.Backend. Only mocknet
// is constructed here; any other backend, "wasmchain" included, returns an
// error, since a wasmchain needs a Broadcaster this CLI does not build.
func resolveChain(ctx context.Context, cfg *fadromaconfig.Config, f ChainFlags) (fadromachain.Chain, fadromachain.Agent, error) {
	backend := f.Backend
	if backend == "" {
		backend = cfg.Chain
	}
	switch backend {
	case "mocknet", "":
		m := mocknet.New(ctx, f.ChainID)
		agent, err := m.GetAgent(ctx, fadromachain.AgentOpts{Name: "default"})
		if err != nil {
			return nil, nil, err
		}
		return m, agent, nil
	default:
		return nil, nil, errors.Errorf("unsupported chain backend %q; wire a wasmchain.Broadcaster for live chains", backend)
	}
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	must.OK(err)
	fmt.Println(string(out))
	return nil
}

func parseUint64(s string) (uint64, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}

func defaultString(env, def string) string {
	val := os.Getenv(env)
	if val == "" {
		val = def
	}
	return val
}
