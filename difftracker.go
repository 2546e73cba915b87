package memscan

import "github.com/zk-fathom/memscan/memerr"

// DiffTracker is a multi-region change detector: it owns a RegionMapper,
// takes an initial snapshot per tracked region, and reports byte-level
// changes against the live mapping on demand. Supplemented from
// original_source's MemoryDiff, which the distilled spec's Snapshot & Diff
// section (§4.3) describes only in its single-region form.
type DiffTracker struct {
	mapper    *RegionMapper
	snapshots map[Address]MemoryRegionSnapshot
}

// NewDiffTracker constructs a tracker bound to proc.
func NewDiffTracker(proc reader, opts ...EngineOption) *DiffTracker {
	return &DiffTracker{
		mapper:    newRegionMapper(proc, opts...),
		snapshots: make(map[Address]MemoryRegionSnapshot),
	}
}

// TakeSnapshot maps region (if not already mapped) and records its
// current bytes as the baseline for future diffs.
func (d *DiffTracker) TakeSnapshot(region MemoryRegion) error {
	mm, ok := d.mapper.Get(region.BaseAddress)
	if !ok {
		var err error
		mm, err = d.mapper.MapRegion(region)
		if err != nil {
			return err
		}
	}
	d.snapshots[region.BaseAddress] = SnapshotFromMapped(mm)
	return nil
}

// Diff compares the live state of every region in regions against its
// recorded snapshot, returning a map from region base address to the
// changes observed. A region with no prior TakeSnapshot is omitted.
func (d *DiffTracker) Diff(regions []MemoryRegion) (map[Address][]MemoryChange, error) {
	out := make(map[Address][]MemoryChange, len(regions))
	for _, region := range regions {
		old, ok := d.snapshots[region.BaseAddress]
		if !ok {
			continue
		}

		if err := d.mapper.Refresh(region.BaseAddress); err != nil {
			return nil, err
		}
		mm, _ := d.mapper.Get(region.BaseAddress)
		current := SnapshotFromMapped(mm)
		out[region.BaseAddress] = DiffSnapshots(old, current)
	}
	return out, nil
}

// UpdateSnapshot re-reads region from the process and re-baselines its
// tracked snapshot to those bytes.
func (d *DiffTracker) UpdateSnapshot(region MemoryRegion) error {
	mm, ok := d.mapper.Get(region.BaseAddress)
	if !ok {
		return memerr.NotFoundf("no snapshot tracked for region at %s", region.BaseAddress)
	}
	if err := d.mapper.Refresh(region.BaseAddress); err != nil {
		return err
	}
	d.snapshots[region.BaseAddress] = SnapshotFromMapped(mm)
	return nil
}

// UpdateAllSnapshots re-reads and re-baselines every tracked snapshot. A
// region whose re-read fails keeps its previous baseline.
func (d *DiffTracker) UpdateAllSnapshots() {
	for base := range d.snapshots {
		if mm, ok := d.mapper.Get(base); ok && d.mapper.Refresh(base) == nil {
			d.snapshots[base] = SnapshotFromMapped(mm)
		}
	}
}

// SnapshotCount returns the number of regions currently tracked.
func (d *DiffTracker) SnapshotCount() int { return len(d.snapshots) }
