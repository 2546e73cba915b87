package memscan

// regionQueryFunc returns the region that contains addr, or, when addr
// itself is not covered by any mapping, a region describing the unmapped
// span that starts at addr (the Linux backend synthesizes a Free gap
// region up to the next maps entry). ok is false only when the OS reports
// no further mapping at all, which ends iteration.
type regionQueryFunc func(addr uint64) (region MemoryRegion, ok bool)

// MemoryRegionIterator walks a process's address space yielding only
// interesting regions (§4.1): starts at SystemInfo.MinAppAddr, advances to
// each region's exclusive end regardless of whether it was yielded, and
// terminates when the cursor reaches MaxAppAddr or the OS reports no
// further mapping. Adjacent regions with identical attributes may be
// yielded separately; callers must tolerate this.
type MemoryRegionIterator struct {
	query regionQueryFunc
	cur   uint64
	max   uint64
}

func newMemoryRegionIterator(query regionQueryFunc, sys SystemInfo) *MemoryRegionIterator {
	return &MemoryRegionIterator{
		query: query,
		cur:   uint64(sys.MinAppAddr),
		max:   uint64(sys.MaxAppAddr),
	}
}

// Next returns the next interesting region, or ok=false once iteration is
// exhausted.
func (it *MemoryRegionIterator) Next() (region MemoryRegion, ok bool) {
	for it.cur < it.max {
		r, queried := it.query(it.cur)
		if !queried {
			it.cur = it.max
			return MemoryRegion{}, false
		}

		end := uint64(r.End())
		if end <= it.cur {
			// A region that doesn't advance the cursor would loop forever;
			// treat it as the end of the mapping.
			it.cur = it.max
			return MemoryRegion{}, false
		}
		it.cur = end

		if isInterestingRegion(r) {
			return r, true
		}
	}
	return MemoryRegion{}, false
}

// Collect drains the iterator into a slice. Convenience for callers (and
// tests) that don't need streaming behavior.
func (it *MemoryRegionIterator) Collect() []MemoryRegion {
	var out []MemoryRegion
	for {
		r, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, r)
	}
}
