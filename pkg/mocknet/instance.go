package mocknet

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// regionAlloc calls the guest's exported "allocate", writes data into the
// buffer it points at, and returns the Region struct's pointer — the value
// every entry point (init/handle/query) expects as an argument.
func regionAlloc(ctx context.Context, mod api.Module, data []byte) (uint32, error) {
	allocate := mod.ExportedFunction("allocate")
	if allocate == nil {
		return 0, errors.New("mocknet: guest module does not export allocate")
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, errors.Wrap(err, "mocknet: calling guest allocate")
	}
	regionPtr := uint32(results[0])
	mem := mod.Memory()
	r, err := readRegion(mem, regionPtr)
	if err != nil {
		return 0, err
	}
	if uint32(len(data)) > r.Capacity {
		return 0, errors.Errorf("mocknet: guest allocated capacity %d, need %d", r.Capacity, len(data))
	}
	if !mem.Write(r.Offset, data) {
		return 0, errors.Errorf("mocknet: writing %d bytes at offset %d out of bounds", len(data), r.Offset)
	}
	r.Length = uint32(len(data))
	if err := writeRegion(mem, regionPtr, r); err != nil {
		return 0, err
	}
	return regionPtr, nil
}

// instantiateOnce instantiates a fresh module from the module Upload
// already compiled, for exactly one call, grounded on the pack's weisyn-go-weisyn
// wasm-manager.go compile→register-imports→instantiate→defer-destroy
// pattern. The returned closer tears down both the guest module and its
// host "env" module; per-call instantiation means no dealloc of input
// regions is needed (spec.md §4.4, §9 "WASM host memory discipline").
func instantiateOnce(ctx context.Context, rt wazero.Runtime, compiled wazero.CompiledModule, env *instanceEnv) (api.Module, func(), error) {
	envModule, err := buildEnvModule(ctx, rt, env)
	if err != nil {
		return nil, nil, errors.Wrap(err, "mocknet: registering env host module")
	}

	cfg := wazero.NewModuleConfig().WithName(uniqueModuleName())
	mod, err := rt.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		_ = envModule.Close(ctx)
		return nil, nil, errors.Wrap(err, "mocknet: instantiating guest module")
	}

	closer := func() {
		_ = mod.Close(ctx)
		_ = envModule.Close(ctx)
	}
	return mod, closer, nil
}

func uniqueModuleName() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return "contract-" + hex.EncodeToString(b[:])
}

// call invokes one guest entry point, marshalling args in as Regions and
// parsing the returned Region as a ContractResult. On a guest trap (the
// exported function call itself returning an error), it surfaces the
// canonical TrapResult instead of propagating the raw wazero panic text
// (spec.md §4.4's per-call state machine: ... Executing -> trap -> Idle,
// instance discarded).
func call(ctx context.Context, rt wazero.Runtime, compiled wazero.CompiledModule, env *instanceEnv, entryPoint string, args ...[]byte) (ContractResult, error) {
	mod, closer, err := instantiateOnce(ctx, rt, compiled, env)
	if err != nil {
		return ContractResult{}, err
	}
	defer closer()

	fn := mod.ExportedFunction(entryPoint)
	if fn == nil {
		return ContractResult{}, errors.Errorf("mocknet: guest module does not export %s", entryPoint)
	}

	ptrs := make([]uint64, len(args))
	for i, arg := range args {
		ptr, err := regionAlloc(ctx, mod, arg)
		if err != nil {
			return ContractResult{}, err
		}
		ptrs[i] = uint64(ptr)
	}

	results, err := fn.Call(ctx, ptrs...)
	if err != nil {
		return TrapResult(err.Error()), nil
	}
	if len(results) != 1 {
		return ContractResult{}, errors.Errorf("mocknet: %s returned %d results, want 1", entryPoint, len(results))
	}

	raw, err := readRegionBytes(mod.Memory(), uint32(results[0]))
	if err != nil {
		return ContractResult{}, err
	}
	return ParseContractResult(raw)
}
