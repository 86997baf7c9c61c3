package mocknet

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// instanceEnv is the per-contract-instance state the host imports close
// over. It persists for the lifetime of the Mocknet object (spec.md §4.4
// "storage isolation"), even though the WASM module itself is
// reinstantiated fresh on every call.
type instanceEnv struct {
	mu      sync.Mutex
	kv      map[string][]byte
	address string
	query   func(ctx context.Context, contractAddr string, msg []byte) ([]byte, error)
}

func newInstanceEnv(address string, query func(context.Context, string, []byte) ([]byte, error)) *instanceEnv {
	return &instanceEnv{kv: make(map[string][]byte), address: address, query: query}
}

func (e *instanceEnv) read(key []byte) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.kv[string(key)]
	return v, ok
}

func (e *instanceEnv) write(key, value []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kv[string(key)] = append([]byte(nil), value...)
}

func (e *instanceEnv) remove(key []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.kv, string(key))
}

// buildEnvModule registers the host-side "env" module every guest imports,
// grounded on the pack's weisyn-go-weisyn wasm-manager.go pattern of
// registering host functions before the guest module is instantiated
// (instantiation fails if an imported module is missing).
func buildEnvModule(ctx context.Context, rt wazero.Runtime, env *instanceEnv) (api.Module, error) {
	builder := rt.NewHostModuleBuilder("env")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			keyPtr := uint32(stack[0])
			mem := mod.Memory()
			key, err := readRegionBytes(mem, keyPtr)
			if err != nil {
				stack[0] = 0
				return
			}
			value, ok := env.read(key)
			if !ok {
				stack[0] = 0
				return
			}
			ptr, err := regionAlloc(ctx, mod, value)
			if err != nil {
				stack[0] = 0
				return
			}
			stack[0] = uint64(ptr)
		}), []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("db_read")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			keyPtr, valPtr := uint32(stack[0]), uint32(stack[1])
			mem := mod.Memory()
			key, err := readRegionBytes(mem, keyPtr)
			if err != nil {
				return
			}
			value, err := readRegionBytes(mem, valPtr)
			if err != nil {
				return
			}
			env.write(key, value)
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil).
		Export("db_write")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			keyPtr := uint32(stack[0])
			key, err := readRegionBytes(mod.Memory(), keyPtr)
			if err != nil {
				return
			}
			env.remove(key)
		}), []api.ValueType{api.ValueTypeI32}, nil).
		Export("db_remove")

	// canonicalize_address / humanize_address implement a reversible,
	// length-preserving encoding (spec.md §4.4): byte reversal. A mocknet
	// has no real bech32 HRP to honor, only the round-trip invariant.
	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			humanPtr, canonPtr := uint32(stack[0]), uint32(stack[1])
			mem := mod.Memory()
			human, err := readRegionBytes(mem, humanPtr)
			if err != nil {
				stack[0] = 1
				return
			}
			canon := reverseBytes(human)
			if err := writeIntoRegion(mem, canonPtr, canon); err != nil {
				stack[0] = 1
				return
			}
			stack[0] = 0
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("canonicalize_address")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			canonPtr, humanPtr := uint32(stack[0]), uint32(stack[1])
			mem := mod.Memory()
			canon, err := readRegionBytes(mem, canonPtr)
			if err != nil {
				stack[0] = 1
				return
			}
			human := reverseBytes(canon)
			if err := writeIntoRegion(mem, humanPtr, human); err != nil {
				stack[0] = 1
				return
			}
			stack[0] = 0
		}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("humanize_address")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			reqPtr := uint32(stack[0])
			mem := mod.Memory()
			req, err := readRegionBytes(mem, reqPtr)
			if err != nil {
				stack[0] = 0
				return
			}
			resp, err := env.query(ctx, env.address, req)
			if err != nil {
				resp, _ = json.Marshal(TrapResult(err.Error()))
			}
			ptr, err := regionAlloc(ctx, mod, resp)
			if err != nil {
				stack[0] = 0
				return
			}
			stack[0] = uint64(ptr)
		}), []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("query_chain")

	return builder.Instantiate(ctx)
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// writeIntoRegion writes data into the buffer an existing Region struct
// (already guest-allocated) points at, updating its Length.
func writeIntoRegion(mem api.Memory, ptr uint32, data []byte) error {
	r, err := readRegion(mem, ptr)
	if err != nil {
		return err
	}
	if uint32(len(data)) > r.Capacity {
		return errors.Errorf("mocknet: region at %d has capacity %d, need %d", ptr, r.Capacity, len(data))
	}
	if !mem.Write(r.Offset, data) {
		return errors.Errorf("mocknet: writing %d bytes at offset %d out of bounds", len(data), r.Offset)
	}
	r.Length = uint32(len(data))
	return writeRegion(mem, ptr, r)
}
