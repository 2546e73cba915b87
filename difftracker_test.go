package memscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffTrackerDetectsChanges(t *testing.T) {
	proc := &fakeProcess{base: 0x1000, data: []byte{1, 2, 3, 4}}
	tracker := NewDiffTracker(proc)

	region := regionOf(0x1000, 4)
	require.NoError(t, tracker.TakeSnapshot(region))
	assert.Equal(t, 1, tracker.SnapshotCount())

	proc.data[1] = 0xFF

	changes, err := tracker.Diff([]MemoryRegion{region})
	require.NoError(t, err)
	require.Len(t, changes[0x1000], 1)
	assert.Equal(t, Address(0x1001), changes[0x1000][0].Address)
	assert.Equal(t, byte(0xFF), changes[0x1000][0].NewValue)
}

func TestDiffTrackerUpdateSnapshotRebaselines(t *testing.T) {
	proc := &fakeProcess{base: 0x1000, data: []byte{1, 2, 3, 4}}
	tracker := NewDiffTracker(proc)
	region := regionOf(0x1000, 4)
	require.NoError(t, tracker.TakeSnapshot(region))

	proc.data[0] = 9
	require.NoError(t, tracker.UpdateSnapshot(region))

	changes, err := tracker.Diff([]MemoryRegion{region})
	require.NoError(t, err)
	assert.Empty(t, changes[0x1000])
}

func TestDiffTrackerUntrackedRegionOmitted(t *testing.T) {
	proc := &fakeProcess{base: 0x1000, data: []byte{1, 2}}
	tracker := NewDiffTracker(proc)

	changes, err := tracker.Diff([]MemoryRegion{regionOf(0x1000, 2)})
	require.NoError(t, err)
	assert.Empty(t, changes)
}
