package memscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegionIteratorSkipsUninteresting(t *testing.T) {
	sys := SystemInfo{MinAppAddr: 0, MaxAppAddr: 0x5000, PageSize: 0x1000, Granularity: 0x1000}

	regions := []MemoryRegion{
		{BaseAddress: 0, Size: 0x1000, State: MemoryState{Free: true}},
		regionOf(0x1000, 0x1000),
		{BaseAddress: 0x2000, Size: 0x1000, State: MemoryState{Committed: true}, Protect: MemoryProtection{Read: true, Guarded: true}},
		regionOf(0x3000, 0x1000),
		{BaseAddress: 0x4000, Size: 0x1000, State: MemoryState{Reserved: true}},
	}

	it := newMemoryRegionIterator(makeTestQuery(regions), sys)
	got := it.Collect()

	require := assert.New(t)
	require.Len(got, 2)
	require.Equal(Address(0x1000), got[0].BaseAddress)
	require.Equal(Address(0x3000), got[1].BaseAddress)
}

func TestRegionIteratorStopsOnNoMapping(t *testing.T) {
	sys := SystemInfo{MinAppAddr: 0, MaxAppAddr: 0x10000, PageSize: 0x1000, Granularity: 0x1000}
	regions := []MemoryRegion{regionOf(0x1000, 0x1000)}

	it := newMemoryRegionIterator(makeTestQuery(regions), sys)
	got := it.Collect()
	assert.Len(t, got, 1)
}

func makeTestQuery(regions []MemoryRegion) regionQueryFunc {
	return func(addr uint64) (MemoryRegion, bool) {
		for _, r := range regions {
			base := uint64(r.BaseAddress)
			end := uint64(r.End())
			if addr >= base && addr < end {
				return r, true
			}
			if addr < base {
				return MemoryRegion{BaseAddress: Address(addr), Size: base - addr, State: MemoryState{Free: true}}, true
			}
		}
		return MemoryRegion{}, false
	}
}
