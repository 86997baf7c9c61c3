package mocknet

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"

	fadromachain "github.com/luca992/fadroma/pkg/chain"
	"github.com/luca992/fadroma/pkg/receipt"
)

type codeEntry struct {
	blob     []byte
	codeHash string
	compiled wazero.CompiledModule
}

type contractInstance struct {
	codeID uint64
	label  string
	env    *instanceEnv
}

// Mocknet is an in-process Chain implementing spec.md §4.4: upload
// compiles and stores a WASM blob under a monotonic codeId, instantiate
// spins up a fresh guest instance and runs init, and handle/query route
// through the guest's calling convention on every invocation.
type Mocknet struct {
	mu sync.Mutex

	id      string
	rt      wazero.Runtime
	height  int64
	codes   map[uint64]*codeEntry
	nextID  uint64
	insts   map[string]*contractInstance
	addrSeq uint64
	balances map[string]map[string]string
}

// New constructs an empty Mocknet bound to chainID (spec.md treats a
// Mocknet chainID as arbitrary and stable across the process lifetime).
func New(ctx context.Context, chainID string) *Mocknet {
	return &Mocknet{
		id:       chainID,
		rt:       wazero.NewRuntime(ctx),
		height:   1,
		codes:    make(map[uint64]*codeEntry),
		nextID:   1,
		insts:    make(map[string]*contractInstance),
		balances: make(map[string]map[string]string),
	}
}

// Close releases the underlying wazero runtime and every compiled module.
func (m *Mocknet) Close(ctx context.Context) error {
	return m.rt.Close(ctx)
}

func (m *Mocknet) ID() string              { return m.id }
func (m *Mocknet) URL() string             { return "mocknet://" + m.id }
func (m *Mocknet) Mode() fadromachain.Mode { return fadromachain.Mocknet }
func (m *Mocknet) DevMode() bool           { return true }

func (m *Mocknet) Height(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.height, nil
}

// NextBlock advances the mocknet's internal height by one and returns it
// immediately: there is no real block production to wait on.
func (m *Mocknet) NextBlock(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height++
	return m.height, nil
}

func (m *Mocknet) GetBalance(ctx context.Context, denom, address string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if byDenom, ok := m.balances[address]; ok {
		if amt, ok := byDenom[denom]; ok {
			return amt, nil
		}
	}
	return "0", nil
}

// SetBalance sets an address's balance for denom, used by the mocknet
// Agent's Send; mocknet has no real bank module to draw from.
func (m *Mocknet) SetBalance(address, denom, amount string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[address] == nil {
		m.balances[address] = make(map[string]string)
	}
	m.balances[address][denom] = amount
}

func (m *Mocknet) Query(ctx context.Context, contract string, msg receipt.RawMessage) (receipt.RawMessage, error) {
	m.mu.Lock()
	inst, ok := m.insts[contract]
	if !ok {
		m.mu.Unlock()
		return nil, errors.Errorf("mocknet: no contract instantiated at %s", contract)
	}
	code := m.codes[inst.codeID]
	m.mu.Unlock()

	result, err := call(ctx, m.rt, code.compiled, inst.env, "query", []byte(msg))
	if err != nil {
		return nil, err
	}
	if !result.IsOk() {
		return nil, errors.Errorf("mocknet: query rejected: %s", result.ErrMsg())
	}
	return receipt.RawMessage(result.Ok), nil
}

func (m *Mocknet) GetCodeID(ctx context.Context, address string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.insts[address]
	if !ok {
		return 0, errors.Errorf("mocknet: no contract instantiated at %s", address)
	}
	return inst.codeID, nil
}

func (m *Mocknet) GetLabel(ctx context.Context, address string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.insts[address]
	if !ok {
		return "", errors.Errorf("mocknet: no contract instantiated at %s", address)
	}
	return inst.label, nil
}

func (m *Mocknet) GetHash(ctx context.Context, addressOrCodeID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inst, ok := m.insts[addressOrCodeID]; ok {
		return m.codes[inst.codeID].codeHash, nil
	}
	var codeID uint64
	if _, err := fmt.Sscanf(addressOrCodeID, "%d", &codeID); err == nil {
		if code, ok := m.codes[codeID]; ok {
			return code.codeHash, nil
		}
	}
	return "", errors.Errorf("mocknet: unknown address or codeId %q", addressOrCodeID)
}

func (m *Mocknet) CheckHash(ctx context.Context, address, expected string) (string, error) {
	got, err := m.GetHash(ctx, address)
	if err != nil {
		return "", err
	}
	return got, nil
}

// GetAgent returns a mocknet Agent over addr; mocknet has no real
// authentication, any AgentOpts.Address is accepted as-is.
func (m *Mocknet) GetAgent(ctx context.Context, opts fadromachain.AgentOpts) (fadromachain.Agent, error) {
	address := opts.Address
	if address == "" {
		address = opts.Name
	}
	if address == "" {
		return nil, fadromachain.ErrNoChainSelected
	}
	return &Agent{mocknet: m, address: address, name: opts.Name, fees: opts.Fees}, nil
}

// Upload compiles blob and assigns it the next monotonic codeId (spec.md
// §4.4, §8 "code-ID monotonicity": two uploads on a fresh Mocknet produce
// codeIds 1 and 2).
func (m *Mocknet) Upload(ctx context.Context, blob []byte) (receipt.UploadedTemplate, error) {
	compiled, err := m.rt.CompileModule(ctx, blob)
	if err != nil {
		return receipt.UploadedTemplate{}, errors.Wrap(err, "mocknet: compiling WASM module")
	}
	codeHash := receipt.HashBytes(blob)

	m.mu.Lock()
	codeID := m.nextID
	m.nextID++
	m.codes[codeID] = &codeEntry{blob: blob, codeHash: codeHash, compiled: compiled}
	m.mu.Unlock()

	return receipt.UploadedTemplate{
		ContractTemplate: receipt.ContractTemplate{CodeHash: codeHash},
		ChainID:          m.id,
		CodeID:           codeID,
	}, nil
}

// Instantiate allocates a deterministic synthetic address from (codeId,
// instance sequence), creates the instance's isolated KV store, and runs
// init (spec.md §4.4).
func (m *Mocknet) Instantiate(ctx context.Context, sender string, tmpl receipt.UploadedTemplate, label string, initMsg receipt.RawMessage) (receipt.ContractInstance, error) {
	m.mu.Lock()
	code, ok := m.codes[tmpl.CodeID]
	if !ok {
		m.mu.Unlock()
		return receipt.ContractInstance{}, errors.Errorf("mocknet: unknown codeId %d", tmpl.CodeID)
	}
	m.addrSeq++
	address := fmt.Sprintf("mock1contract%d%d", tmpl.CodeID, m.addrSeq)
	height := m.height
	m.mu.Unlock()

	env := newInstanceEnv(address, m.queryChain)
	result, err := call(ctx, m.rt, code.compiled, env, "init", mockEnvJSON(address, height), []byte(initMsg))
	if err != nil {
		return receipt.ContractInstance{}, err
	}
	if !result.IsOk() {
		return receipt.ContractInstance{}, errors.Errorf("mocknet: init rejected: %s", result.ErrMsg())
	}

	m.mu.Lock()
	m.insts[address] = &contractInstance{codeID: tmpl.CodeID, label: label, env: env}
	m.mu.Unlock()

	return receipt.ContractInstance{
		UploadedTemplate: tmpl,
		Address:          address,
		Label:            label,
		InitBy:           sender,
		InitMsg:          initMsg,
	}, nil
}

// Execute runs the guest's "handle" entry point against an existing
// instance's persistent KV store.
func (m *Mocknet) Execute(ctx context.Context, contract string, msg receipt.RawMessage) (fadromachain.ExecuteResult, error) {
	m.mu.Lock()
	inst, ok := m.insts[contract]
	if !ok {
		m.mu.Unlock()
		return fadromachain.ExecuteResult{}, errors.Errorf("mocknet: no contract instantiated at %s", contract)
	}
	code := m.codes[inst.codeID]
	height := m.height
	m.mu.Unlock()

	result, err := call(ctx, m.rt, code.compiled, inst.env, "handle", mockEnvJSON(contract, height), []byte(msg))
	if err != nil {
		return fadromachain.ExecuteResult{}, err
	}
	if !result.IsOk() {
		return fadromachain.ExecuteResult{}, errors.Errorf("mocknet: handle rejected: %s", result.ErrMsg())
	}
	return fadromachain.ExecuteResult{TxHash: fmt.Sprintf("mock-tx-%d", m.addrSeq), Data: receipt.RawMessage(result.Ok)}, nil
}

// queryChain is the callback the host's query_chain import routes through,
// letting one contract query another by address (spec.md §4.4).
func (m *Mocknet) queryChain(ctx context.Context, _ string, req []byte) ([]byte, error) {
	var wasmQuery struct {
		Wasm struct {
			Smart struct {
				ContractAddr string          `json:"contract_addr"`
				Msg          json.RawMessage `json:"msg"`
			} `json:"smart"`
		} `json:"wasm"`
	}
	if err := json.Unmarshal(req, &wasmQuery); err != nil {
		return nil, errors.Wrap(err, "mocknet: parsing query_chain request")
	}
	resp, err := m.Query(ctx, wasmQuery.Wasm.Smart.ContractAddr, receipt.RawMessage(wasmQuery.Wasm.Smart.Msg))
	if err != nil {
		return nil, err
	}
	ok := ContractResult{Ok: json.RawMessage(Utf8ToB64JSON(resp))}
	return json.Marshal(ok)
}

// Utf8ToB64JSON base64-encodes raw bytes and renders them as a JSON
// string literal, matching the `Ok: base64` shape query responses use.
func Utf8ToB64JSON(raw []byte) []byte {
	encoded, _ := json.Marshal(Utf8ToB64(string(raw)))
	return encoded
}

func mockEnvJSON(contractAddr string, height int64) []byte {
	env := struct {
		Block struct {
			Height int64 `json:"height"`
		} `json:"block"`
		Contract struct {
			Address string `json:"address"`
		} `json:"contract"`
	}{}
	env.Block.Height = height
	env.Contract.Address = contractAddr
	out, _ := json.Marshal(env)
	return out
}
