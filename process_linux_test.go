//go:build linux

package memscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMapsLinePrivateAnonymous(t *testing.T) {
	region, path, ok, err := parseMapsLine("55e3a1000000-55e3a1021000 rw-p 00000000 00:00 0")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, path)
	assert.Equal(t, Address(0x55e3a1000000), region.BaseAddress)
	assert.Equal(t, uint64(0x21000), region.Size)
	assert.Equal(t, MemoryTypePrivate, region.Type)
	assert.True(t, region.Protect.Read)
	assert.True(t, region.Protect.Write)
	assert.False(t, region.Protect.Execute)
}

func TestParseMapsLineFileBackedImage(t *testing.T) {
	region, path, ok, err := parseMapsLine("7f0000000000-7f0000021000 r-xp 00000000 08:01 123456 /usr/bin/bash")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "/usr/bin/bash", path)
	assert.Equal(t, MemoryTypeImage, region.Type)
	require.NotNil(t, region.ImageFile)
	assert.Equal(t, "/usr/bin/bash", *region.ImageFile)
	assert.True(t, region.Protect.Execute)
}

func TestParseMapsLineSharedMapped(t *testing.T) {
	region, _, ok, err := parseMapsLine("7f1000000000-7f1000010000 rw-s 00000000 00:00 0 /dev/shm/x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, MemoryTypeMapped, region.Type)
}

func TestParseMapsLinePseudoPath(t *testing.T) {
	region, _, ok, err := parseMapsLine("7fffaa000000-7fffaa021000 rw-p 00000000 00:00 0 [stack]")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, MemoryTypePrivate, region.Type)
	assert.Nil(t, region.ImageFile)
}

func TestParseMapsLineMalformed(t *testing.T) {
	_, _, ok, err := parseMapsLine("not a maps line")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestCoalesceModuleRegions(t *testing.T) {
	path := "/lib/libc.so"
	regions := []MemoryRegion{
		{BaseAddress: 0x7f0000000000, Size: 0x1000, Protect: MemoryProtection{Read: true}, Type: MemoryTypeImage, ImageFile: &path},
		{BaseAddress: 0x7f0000001000, Size: 0x2000, Protect: MemoryProtection{Read: true, Execute: true}, Type: MemoryTypeImage, ImageFile: &path},
	}
	coalesced := coalesceModuleRegions(regions)
	require.Len(t, coalesced, 1)
	assert.Equal(t, Address(0x7f0000000000), coalesced[0].BaseAddress)
	assert.Equal(t, uint64(0x3000), coalesced[0].Size)
	assert.True(t, coalesced[0].Protect.Execute)
}

func TestLinuxRegionQueryGapSynthesis(t *testing.T) {
	regions := []MemoryRegion{regionOf(0x2000, 0x1000)}
	query := linuxRegionQuery(regions)

	gap, ok := query(0x0)
	require.True(t, ok)
	assert.True(t, gap.State.Free)
	assert.Equal(t, uint64(0x2000), gap.Size)

	mapped, ok := query(0x2000)
	require.True(t, ok)
	assert.Equal(t, Address(0x2000), mapped.BaseAddress)

	_, ok = query(0x3000)
	assert.False(t, ok)
}
