package memscan

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/zk-fathom/memscan/memerr"
)

// MappedMemory is a local byte buffer holding a snapshot-style copy of a
// remote region, taken at map time. It is not live-shared with the target;
// re-synchronizing it requires RegionMapper.Refresh or re-mapping.
type MappedMemory struct {
	RemoteRegion MemoryRegion
	LocalBytes   []byte
}

// reader is the subset of ProcessHandle that the mapper needs, so it can
// be exercised in tests without a real OS handle.
type reader interface {
	ReadMemory(addr Address, buf []byte) (int, error)
}

// RegionMapper is a per-process cache of remote_region -> local_buffer
// materialized views, keyed by remote base address. No two entries
// overlap; map_region of an overlapping region is an error.
type RegionMapper struct {
	proc              reader
	entries           map[Address]*MappedMemory
	log               zerolog.Logger
	maxMappableRegion uint64
}

// newRegionMapper constructs an empty mapper bound to proc.
func newRegionMapper(proc reader, opts ...EngineOption) *RegionMapper {
	cfg := newEngineConfig(opts)
	return &RegionMapper{
		proc:              proc,
		entries:           make(map[Address]*MappedMemory),
		log:               cfg.log,
		maxMappableRegion: cfg.maxMappableRegion,
	}
}

// NewRegionMapper constructs a RegionMapper over an opened process handle.
func NewRegionMapper(h *ProcessHandle, opts ...EngineOption) *RegionMapper {
	return newRegionMapper(h, opts...)
}

// MapRegion reads the full region and caches it. Fails if the observed
// byte count is less than the region's size, or if region overlaps an
// already-mapped entry.
func (m *RegionMapper) MapRegion(region MemoryRegion) (*MappedMemory, error) {
	if region.Size > m.maxMappableRegion {
		return nil, memerr.AccessErrorf(nil, "region at %s is %d bytes, exceeds max mappable region of %d bytes", region.BaseAddress, region.Size, m.maxMappableRegion)
	}

	for base, existing := range m.entries {
		if regionsOverlap(region, existing.RemoteRegion) {
			return nil, memerr.AccessErrorf(nil, "region at %s overlaps existing mapping at %s", region.BaseAddress, base)
		}
	}

	buf := make([]byte, region.Size)
	n, err := m.proc.ReadMemory(region.BaseAddress, buf)
	if err != nil {
		return nil, memerr.AccessErrorf(err, "failed to read region at %s", region.BaseAddress)
	}
	if uint64(n) < region.Size {
		return nil, memerr.ShortIOf(int(region.Size), n, uint64(region.BaseAddress))
	}

	mm := &MappedMemory{RemoteRegion: region, LocalBytes: buf}
	m.entries[region.BaseAddress] = mm
	m.log.Debug().Stringer("base", region.BaseAddress).Uint64("size", region.Size).Msg("mapped region")
	return mm, nil
}

// Refresh re-reads an already-mapped region's bytes from the process,
// replacing its cached LocalBytes in place. Used by DiffTracker to pull a
// fresh live read before comparing against a recorded snapshot, and by
// Scanner before each scan, filter, and checkpoint pass.
func (m *RegionMapper) Refresh(baseAddress Address) error {
	mm, ok := m.entries[baseAddress]
	if !ok {
		return memerr.NotFoundf("no mapping at %s", baseAddress)
	}

	buf := make([]byte, mm.RemoteRegion.Size)
	n, err := m.proc.ReadMemory(mm.RemoteRegion.BaseAddress, buf)
	if err != nil {
		return memerr.AccessErrorf(err, "failed to refresh region at %s", baseAddress)
	}
	if uint64(n) < mm.RemoteRegion.Size {
		return memerr.ShortIOf(int(mm.RemoteRegion.Size), n, uint64(baseAddress))
	}
	mm.LocalBytes = buf
	return nil
}

func regionsOverlap(a, b MemoryRegion) bool {
	return a.BaseAddress < b.End() && b.BaseAddress < a.End()
}

// Get returns the mapping keyed by exactly baseAddress.
func (m *RegionMapper) Get(baseAddress Address) (*MappedMemory, bool) {
	mm, ok := m.entries[baseAddress]
	return mm, ok
}

// GetByAddress returns the mapping whose remote region contains addr, if
// any. At most one mapping can contain addr since regions never overlap.
func (m *RegionMapper) GetByAddress(addr Address) (*MappedMemory, bool) {
	for _, mm := range m.entries {
		if mm.RemoteRegion.Contains(addr) {
			return mm, true
		}
	}
	return nil, false
}

// Retain keeps only mappings for which keep returns true, dropping the
// rest.
func (m *RegionMapper) Retain(keep func(*MappedMemory) bool) {
	for base, mm := range m.entries {
		if !keep(mm) {
			delete(m.entries, base)
		}
	}
}

// Clear drops every mapping.
func (m *RegionMapper) Clear() {
	m.entries = make(map[Address]*MappedMemory)
}

// Len returns the number of cached mappings.
func (m *RegionMapper) Len() int { return len(m.entries) }

// IsEmpty reports whether the mapper holds no mappings.
func (m *RegionMapper) IsEmpty() bool { return len(m.entries) == 0 }

// Iter returns all current mappings sorted by base address, so callers
// (and tests) get deterministic iteration order.
func (m *RegionMapper) Iter() []*MappedMemory {
	out := make([]*MappedMemory, 0, len(m.entries))
	for _, mm := range m.entries {
		out = append(out, mm)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RemoteRegion.BaseAddress < out[j].RemoteRegion.BaseAddress
	})
	return out
}
