package memscan

import (
	"sort"

	"github.com/zk-fathom/memscan/memerr"
)

// snapshotSourceKind tags where a MemoryRegionSnapshot's bytes come from.
type snapshotSourceKind int

const (
	sourceSlice snapshotSourceKind = iota
	sourceMapped
	sourceProcess
)

// MemoryRegionSnapshot is a point-in-time byte copy tagged with its
// source. Re-readable via Refresh, which re-materializes Data from the
// same source.
type MemoryRegionSnapshot struct {
	kind   snapshotSourceKind
	slice  []byte
	mapped *MappedMemory
	proc   reader
	region MemoryRegion
	Data   []byte
}

// SnapshotFromSlice builds a snapshot from a borrowed byte slice. BaseAddress()
// for this source is the slice header's data pointer cast to an Address —
// a test-only identity, NOT stable across two slices of equal content
// (see Open Question 3 in DESIGN.md).
func SnapshotFromSlice(data []byte) MemoryRegionSnapshot {
	cp := make([]byte, len(data))
	copy(cp, data)
	return MemoryRegionSnapshot{kind: sourceSlice, slice: data, Data: cp}
}

// SnapshotFromMapped builds a snapshot from a RegionMapper entry.
func SnapshotFromMapped(mm *MappedMemory) MemoryRegionSnapshot {
	cp := make([]byte, len(mm.LocalBytes))
	copy(cp, mm.LocalBytes)
	return MemoryRegionSnapshot{kind: sourceMapped, mapped: mm, Data: cp}
}

// SnapshotFromProcess builds a snapshot by reading region directly from
// proc. A short read is a failure for this source (unlike RegionMapper's
// cache, a snapshot has no cached fallback to fall back on).
func SnapshotFromProcess(proc reader, region MemoryRegion) (MemoryRegionSnapshot, error) {
	s := MemoryRegionSnapshot{kind: sourceProcess, proc: proc, region: region}
	if err := s.Refresh(); err != nil {
		return MemoryRegionSnapshot{}, err
	}
	return s, nil
}

// Refresh re-reads Data from the snapshot's original source.
func (s *MemoryRegionSnapshot) Refresh() error {
	switch s.kind {
	case sourceSlice:
		cp := make([]byte, len(s.slice))
		copy(cp, s.slice)
		s.Data = cp
		return nil
	case sourceMapped:
		cp := make([]byte, len(s.mapped.LocalBytes))
		copy(cp, s.mapped.LocalBytes)
		s.Data = cp
		return nil
	case sourceProcess:
		buf := make([]byte, s.region.Size)
		n, err := s.proc.ReadMemory(s.region.BaseAddress, buf)
		if err != nil {
			return memerr.AccessErrorf(err, "failed to refresh snapshot at %s", s.region.BaseAddress)
		}
		if uint64(n) < s.region.Size {
			return memerr.ShortIOf(int(s.region.Size), n, uint64(s.region.BaseAddress))
		}
		s.Data = buf
		return nil
	default:
		return memerr.Decodef("snapshot has no source")
	}
}

// BaseAddress returns, per source: the slice pointer (tests only), the
// mapped region's base, or the process region's base.
func (s MemoryRegionSnapshot) BaseAddress() Address {
	switch s.kind {
	case sourceSlice:
		if len(s.slice) == 0 {
			return 0
		}
		return Address(sliceDataAddr(s.slice))
	case sourceMapped:
		return s.mapped.RemoteRegion.BaseAddress
	case sourceProcess:
		return s.region.BaseAddress
	default:
		return 0
	}
}

// DiffSnapshots returns every offset where old and new differ, in
// ascending address order. Per the spec's deliberate safety precondition,
// a base-address or length mismatch yields an empty list rather than a
// comparison of unrelated memory.
func DiffSnapshots(old, new MemoryRegionSnapshot) []MemoryChange {
	if old.BaseAddress() != new.BaseAddress() || len(old.Data) != len(new.Data) {
		return nil
	}

	var changes []MemoryChange
	base := old.BaseAddress()
	for i := range old.Data {
		if old.Data[i] != new.Data[i] {
			changes = append(changes, MemoryChange{
				Address:  base + Address(i),
				OldValue: old.Data[i],
				NewValue: new.Data[i],
			})
		}
	}
	// old.Data is walked in ascending index order already, so changes is
	// already ascending by address; sort.Slice guards against a future
	// change to the walk order rather than doing real work here.
	sort.Slice(changes, func(i, j int) bool { return changes[i].Address < changes[j].Address })
	return changes
}
