package memscan

// fakeProcess is a minimal in-memory stand-in for a ProcessHandle, backed
// by a single contiguous byte slice starting at base. Reads/writes
// outside its range report zero bytes transferred, mirroring the OS
// Adapter's "0 on any failure" contract (§4.1) without needing a real OS
// handle.
type fakeProcess struct {
	base Address
	data []byte
}

func (f *fakeProcess) ReadMemory(addr Address, buf []byte) (int, error) {
	offset := int64(addr) - int64(f.base)
	if offset < 0 || offset >= int64(len(f.data)) {
		return 0, nil
	}
	return copy(buf, f.data[offset:]), nil
}

func (f *fakeProcess) WriteMemory(addr Address, buf []byte) (int, error) {
	offset := int64(addr) - int64(f.base)
	if offset < 0 || offset >= int64(len(f.data)) {
		return 0, nil
	}
	return copy(f.data[offset:], buf), nil
}

func regionOf(base Address, size uint64) MemoryRegion {
	return MemoryRegion{
		BaseAddress: base,
		Size:        size,
		Protect:     MemoryProtection{Read: true, Write: true},
		State:       MemoryState{Committed: true},
		Type:        MemoryTypePrivate,
	}
}
