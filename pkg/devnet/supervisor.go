package devnet

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/CoreumFoundation/coreum-tools/pkg/libexec"
	"github.com/CoreumFoundation/coreum-tools/pkg/logger"
	"github.com/CoreumFoundation/coreum-tools/pkg/retry"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	fadromaexec "github.com/luca992/fadroma/exec"

	fadromachain "github.com/luca992/fadroma/pkg/chain"
)

// Options configures a Supervisor.
type Options struct {
	Image string   // docker image tag running the node, e.g. "cosmwasm/wasmd:v0.40.0"
	Mode  PortMode // which gateway the node exposes for health checks
	// Variant, if set, resolves Mode from the chain-variant table (e.g.
	// "scrt_1.3") instead of requiring the caller to know the gateway
	// protocol. Ignored if Mode is already set.
	Variant string
}

// Supervisor manages one ephemeral local chain node container, one node
// per devnet object (spec.md §4.5). It implements fadromachain.Node so a
// devnet Chain can resolve genesis accounts by name.
type Supervisor struct {
	mu       sync.Mutex
	chainID  string
	stateDir string
	opts     Options
	state    *State
}

// Load reconstitutes a Supervisor from stateDir/devnet.json if present.
// A mismatched chainID against the stored state is a warning, not an
// error (spec.md §4.5).
func Load(ctx context.Context, stateDir, chainID string, opts Options) (*Supervisor, error) {
	if opts.Mode == "" && opts.Variant != "" {
		if mode, _, ok := PortsForVariant(opts.Variant); ok {
			opts.Mode = mode
		} else {
			logger.Get(ctx).Warn("unrecognized devnet chain variant, falling back to lcp", zap.String("variant", opts.Variant))
			opts.Mode = ModeLCP
		}
	}
	s := &Supervisor{chainID: chainID, stateDir: stateDir, opts: opts}
	stored, err := LoadState(stateDir)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		if stored.ChainID != chainID {
			logger.Get(ctx).Warn("devnet state chainId mismatch",
				zap.String("stored", stored.ChainID), zap.String("requested", chainID))
		}
		s.state = stored
	}
	return s, nil
}

func (s *Supervisor) ChainID() string { return s.chainID }

// Mode reports the gateway protocol this Supervisor resolved, whether
// passed explicitly in Options or derived from Options.Variant.
func (s *Supervisor) Mode() PortMode { return s.opts.Mode }

// URL returns the node's LCD/grpc-web base URL, empty until Spawn/Load
// populates state.
func (s *Supervisor) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return ""
	}
	host := s.state.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.state.Port)
}

func (s *Supervisor) containerName() string { return "fadroma-devnet-" + s.chainID }

// Spawn creates and starts the node container on a chosen port (fresh if
// none already recorded), then writes devnet.json (spec.md §4.5).
func (s *Supervisor) Spawn(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	port := 0
	if s.state != nil {
		port = s.state.Port
	}
	if port == 0 {
		var err error
		port, err = FreePort()
		if err != nil {
			return err
		}
	}

	runCmd := fadromaexec.Docker("run", "-d",
		"--name", s.containerName(),
		"-p", fmt.Sprintf("%d:%d", port, DefaultPort(s.opts.Mode)),
		"-e", "CHAIN_ID="+s.chainID,
		s.opts.Image,
	)
	outBuf := &bytes.Buffer{}
	runCmd.Stdout = outBuf
	if err := libexec.Exec(ctx, runCmd); err != nil {
		return errors.Wrap(err, "devnet: starting node container")
	}
	containerID := strings.TrimSpace(outBuf.String())

	s.state = &State{ChainID: s.chainID, ContainerID: containerID, Port: port, Host: "127.0.0.1"}
	if err := s.state.Save(s.stateDir); err != nil {
		return err
	}

	return s.waitHealthy(ctx)
}

// Respawn spawns only if the node is not already running.
func (s *Supervisor) Respawn(ctx context.Context) error {
	if s.running(ctx) {
		return nil
	}
	return s.Spawn(ctx)
}

func (s *Supervisor) running(ctx context.Context) bool {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == nil || state.ContainerID == "" {
		return false
	}
	cmd := fadromaexec.Docker("inspect", "-f", "{{.State.Running}}", state.ContainerID)
	outBuf := &bytes.Buffer{}
	cmd.Stdout = outBuf
	if err := libexec.Exec(ctx, cmd); err != nil {
		return false
	}
	return strings.TrimSpace(outBuf.String()) == "true"
}

// Kill stops the node container but leaves its recorded state intact.
func (s *Supervisor) Kill(ctx context.Context) error {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == nil || state.ContainerID == "" {
		return nil
	}
	if err := libexec.Exec(ctx, fadromaexec.Docker("stop", state.ContainerID)); err != nil {
		return errors.Wrap(err, "devnet: stopping node container")
	}
	return nil
}

// Terminate kills the node and erases the state directory.
func (s *Supervisor) Terminate(ctx context.Context) error {
	if err := s.Kill(ctx); err != nil {
		return err
	}
	return Erase(s.stateDir)
}

// GenesisAccount resolves name to a deterministic AgentOpts, satisfying
// fadromachain.Node.
func (s *Supervisor) GenesisAccount(ctx context.Context, name string) (fadromachain.AgentOpts, error) {
	if err := ValidateName(name); err != nil {
		return fadromachain.AgentOpts{}, err
	}
	return GenesisAccount(s.chainID, name)
}

func (s *Supervisor) waitHealthy(ctx context.Context) error {
	url := s.URL()
	return retry.Do(ctx, 200*time.Millisecond, func() error {
		reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url+"/status", nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return retry.Retryable(errors.WithStack(err))
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return retry.Retryable(errors.Errorf("devnet: node not ready, status %d", resp.StatusCode))
		}
		return nil
	})
}
