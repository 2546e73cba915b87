package memscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionMapperMapAndGet(t *testing.T) {
	proc := &fakeProcess{base: 0x1000, data: []byte{1, 2, 3, 4, 5, 6, 7, 8}}
	mapper := newRegionMapper(proc)

	region := regionOf(0x1000, 8)
	mm, err := mapper.MapRegion(region)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, mm.LocalBytes)

	got, ok := mapper.Get(0x1000)
	require.True(t, ok)
	assert.Same(t, mm, got)

	byAddr, ok := mapper.GetByAddress(0x1004)
	require.True(t, ok)
	assert.Same(t, mm, byAddr)

	_, ok = mapper.GetByAddress(0x2000)
	assert.False(t, ok)
}

func TestRegionMapperOverlapRejected(t *testing.T) {
	proc := &fakeProcess{base: 0x1000, data: make([]byte, 0x100)}
	mapper := newRegionMapper(proc)

	_, err := mapper.MapRegion(regionOf(0x1000, 0x20))
	require.NoError(t, err)

	_, err = mapper.MapRegion(regionOf(0x1010, 0x20))
	assert.Error(t, err)
}

func TestRegionMapperShortReadFails(t *testing.T) {
	proc := &fakeProcess{base: 0x1000, data: []byte{1, 2, 3}}
	mapper := newRegionMapper(proc)

	_, err := mapper.MapRegion(regionOf(0x1000, 100))
	assert.Error(t, err)
	assert.True(t, mapper.IsEmpty())
}

func TestRegionMapperRetainAndClear(t *testing.T) {
	proc := &fakeProcess{base: 0x1000, data: make([]byte, 0x2000)}
	mapper := newRegionMapper(proc)

	_, err := mapper.MapRegion(regionOf(0x1000, 0x10))
	require.NoError(t, err)
	_, err = mapper.MapRegion(regionOf(0x2000, 0x10))
	require.NoError(t, err)
	assert.Equal(t, 2, mapper.Len())

	mapper.Retain(func(mm *MappedMemory) bool {
		return mm.RemoteRegion.BaseAddress == 0x1000
	})
	assert.Equal(t, 1, mapper.Len())

	mapper.Clear()
	assert.True(t, mapper.IsEmpty())
}

func TestRegionMapperRefresh(t *testing.T) {
	proc := &fakeProcess{base: 0x1000, data: []byte{1, 2, 3, 4}}
	mapper := newRegionMapper(proc)

	mm, err := mapper.MapRegion(regionOf(0x1000, 4))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, mm.LocalBytes)

	proc.data[0] = 99
	require.NoError(t, mapper.Refresh(0x1000))
	assert.Equal(t, byte(99), mm.LocalBytes[0])
}

func TestRegionMapperRejectsOversizedRegion(t *testing.T) {
	proc := &fakeProcess{base: 0x1000, data: make([]byte, 0x100)}
	mapper := newRegionMapper(proc, WithMaxMappableRegion(0x10))

	_, err := mapper.MapRegion(regionOf(0x1000, 0x20))
	assert.Error(t, err)
	assert.True(t, mapper.IsEmpty())

	_, err = mapper.MapRegion(regionOf(0x1000, 0x10))
	assert.NoError(t, err)
}

func TestRegionMapperIterSortedOrder(t *testing.T) {
	proc := &fakeProcess{base: 0, data: make([]byte, 0x5000)}
	mapper := newRegionMapper(proc)
	_, err := mapper.MapRegion(regionOf(0x3000, 0x10))
	require.NoError(t, err)
	_, err = mapper.MapRegion(regionOf(0x1000, 0x10))
	require.NoError(t, err)

	entries := mapper.Iter()
	require.Len(t, entries, 2)
	assert.Equal(t, Address(0x1000), entries[0].RemoteRegion.BaseAddress)
	assert.Equal(t, Address(0x3000), entries[1].RemoteRegion.BaseAddress)
}
