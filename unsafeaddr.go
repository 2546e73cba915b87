package memscan

import "unsafe"

// sliceDataAddr returns the address of a slice's backing array, used only
// to give MemoryRegionSnapshot's slice source a BaseAddress() for test
// identity. Not meaningful as a stable identity across two slices of
// equal content.
func sliceDataAddr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
