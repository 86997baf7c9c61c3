package mocknet

import (
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero/api"
)

// Region is the CosmWasm guest/host memory descriptor (spec.md §4.4): a
// guest-allocated buffer the host writes into or reads out of. Every
// cross-boundary data transfer uses this convention.
type Region struct {
	Offset   uint32
	Capacity uint32
	Length   uint32
}

const regionSize = 12 // 3 x uint32

func readRegion(mem api.Memory, ptr uint32) (Region, error) {
	offset, ok := mem.ReadUint32Le(ptr)
	if !ok {
		return Region{}, errors.Errorf("mocknet: reading region offset at %d out of bounds", ptr)
	}
	capacity, ok := mem.ReadUint32Le(ptr + 4)
	if !ok {
		return Region{}, errors.Errorf("mocknet: reading region capacity at %d out of bounds", ptr)
	}
	length, ok := mem.ReadUint32Le(ptr + 8)
	if !ok {
		return Region{}, errors.Errorf("mocknet: reading region length at %d out of bounds", ptr)
	}
	return Region{Offset: offset, Capacity: capacity, Length: length}, nil
}

func writeRegion(mem api.Memory, ptr uint32, r Region) error {
	if !mem.WriteUint32Le(ptr, r.Offset) || !mem.WriteUint32Le(ptr+4, r.Capacity) || !mem.WriteUint32Le(ptr+8, r.Length) {
		return errors.Errorf("mocknet: writing region struct at %d out of bounds", ptr)
	}
	return nil
}

func readRegionBytes(mem api.Memory, ptr uint32) ([]byte, error) {
	r, err := readRegion(mem, ptr)
	if err != nil {
		return nil, err
	}
	buf, ok := mem.Read(r.Offset, r.Length)
	if !ok {
		return nil, errors.Errorf("mocknet: reading %d bytes at offset %d out of bounds", r.Length, r.Offset)
	}
	out := make([]byte, len(buf))
	copy(out, buf)
	return out, nil
}
