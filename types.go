// Package memscan is a cross-platform engine for inspecting and modifying
// another process's virtual address space: enumerating committed memory
// regions, capturing snapshots, detecting byte-level changes across
// snapshots, performing iterative value-search, and writing back modified
// values. It crosses the OS boundary (Windows VirtualQueryEx/
// ReadProcessMemory, Linux /proc/<pid>/{maps,mem}) behind one contract; the
// rest of the engine depends only on that contract, never on an OS package
// directly.
//
// The package is a library: it has no REPL, no pretty-printing, and no
// scripting bindings. See cmd/memscan for a thin example front end.
package memscan

import "fmt"

// Address is a location in the target process's virtual address space.
type Address uint64

// String renders the address in the conventional 0x-prefixed hex form.
func (a Address) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// SystemInfo carries the inclusive bounds of the target's user address
// space and the OS-reported page and allocation granularity. Immutable per
// process.
type SystemInfo struct {
	MinAppAddr  Address
	MaxAppAddr  Address
	PageSize    uint64
	Granularity uint64
}

// MemoryProtection is the normalized, OS-independent view of a page's
// permissions. OS-specific bitmasks collapse into this set; combinations
// meaningless on one OS are simply false there.
type MemoryProtection struct {
	NoAccess    bool
	Read        bool
	Write       bool
	Execute     bool
	CopyOnWrite bool
	Guarded     bool
	NoCache     bool
}

// MemoryState says which of committed, free, or reserved a region is.
// Exactly one is true in well-formed regions returned by iteration; only
// committed regions are ever reported as interesting.
type MemoryState struct {
	Committed bool
	Free      bool
	Reserved  bool
}

// MemoryType tags what backs a region.
type MemoryType int

const (
	MemoryTypeUnknown MemoryType = iota
	MemoryTypePrivate
	MemoryTypeMapped
	MemoryTypeImage
)

func (t MemoryType) String() string {
	switch t {
	case MemoryTypePrivate:
		return "Private"
	case MemoryTypeMapped:
		return "Mapped"
	case MemoryTypeImage:
		return "Image"
	default:
		return "Unknown"
	}
}

// MemoryRegion describes a maximal run of pages with identical protection
// and state. Invariant: Size > 0; BaseAddress+Size does not overflow;
// addresses lie within the process's SystemInfo bounds. Iteration yields
// regions sorted by BaseAddress, non-overlapping.
type MemoryRegion struct {
	BaseAddress Address
	Size        uint64
	Protect     MemoryProtection
	State       MemoryState
	Type        MemoryType
	// ImageFile is set when the region is backed by a file (Windows
	// MEM_IMAGE, Linux file-backed mapping).
	ImageFile *string
}

// End returns the exclusive end address of the region.
func (r MemoryRegion) End() Address {
	return r.BaseAddress + Address(r.Size)
}

// Contains reports whether addr falls within [BaseAddress, End()).
func (r MemoryRegion) Contains(addr Address) bool {
	return addr >= r.BaseAddress && addr < r.End()
}

// IsSupersetOf reports whether other is fully contained within r. Used to
// classify a region as belonging to a module by comparing it against the
// module region list (spec invariant 8).
func (r MemoryRegion) IsSupersetOf(other MemoryRegion) bool {
	return r.BaseAddress <= other.BaseAddress && r.End() >= other.End()
}

// isInterestingRegion implements the predicate from §4.1: committed, not
// free, not reserved, not no-access, not guarded.
func isInterestingRegion(r MemoryRegion) bool {
	return r.State.Committed && !r.State.Free && !r.State.Reserved &&
		!r.Protect.NoAccess && !r.Protect.Guarded
}

// MemoryChange is a single byte-level delta between two snapshots of the
// same memory range.
type MemoryChange struct {
	Address  Address
	OldValue byte
	NewValue byte
}
