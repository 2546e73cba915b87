package memscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffSnapshotsIdentical(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = 0xAA
	}
	snap := SnapshotFromSlice(data)
	changes := DiffSnapshots(snap, snap)
	assert.Empty(t, changes)
}

func TestDiffSnapshotsScenarioS3(t *testing.T) {
	proc := &fakeProcess{base: 0x2000, data: make([]byte, 100)}
	for i := 0; i < 100; i++ {
		proc.data[i] = byte(i % 256)
	}
	region := regionOf(0x2000, 100)

	old, err := SnapshotFromProcess(proc, region)
	require.NoError(t, err)

	proc.data[10] = 0xFF
	proc.data[50] = 0xFF
	proc.data[90] = 0xFF

	newer, err := SnapshotFromProcess(proc, region)
	require.NoError(t, err)

	changes := DiffSnapshots(old, newer)
	require.Len(t, changes, 3)
	assert.Equal(t, Address(0x200A), changes[0].Address)
	assert.Equal(t, Address(0x2032), changes[1].Address)
	assert.Equal(t, Address(0x205A), changes[2].Address)
	for _, c := range changes {
		assert.Equal(t, byte(0xFF), c.NewValue)
	}
}

func TestDiffSnapshotsBaseMismatch(t *testing.T) {
	a := SnapshotFromSlice([]byte{1, 2, 3})
	proc := &fakeProcess{base: 0x4000, data: []byte{1, 2, 3}}
	b, err := SnapshotFromProcess(proc, regionOf(0x4000, 3))
	require.NoError(t, err)

	assert.Empty(t, DiffSnapshots(a, b))
}

func TestDiffSnapshotsLengthMismatch(t *testing.T) {
	proc := &fakeProcess{base: 0x5000, data: []byte{1, 2, 3, 4}}
	a, err := SnapshotFromProcess(proc, regionOf(0x5000, 2))
	require.NoError(t, err)
	b, err := SnapshotFromProcess(proc, regionOf(0x5000, 4))
	require.NoError(t, err)

	assert.Empty(t, DiffSnapshots(a, b))
}

func TestSnapshotRefresh(t *testing.T) {
	proc := &fakeProcess{base: 0x1000, data: []byte{1, 2, 3}}
	snap, err := SnapshotFromProcess(proc, regionOf(0x1000, 3))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, snap.Data)

	proc.data[0] = 9
	require.NoError(t, snap.Refresh())
	assert.Equal(t, []byte{9, 2, 3}, snap.Data)
}

func TestSnapshotFromProcessShortRead(t *testing.T) {
	proc := &fakeProcess{base: 0x1000, data: []byte{1, 2}}
	_, err := SnapshotFromProcess(proc, regionOf(0x1000, 10))
	require.Error(t, err)
}
