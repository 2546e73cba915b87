//go:build windows

package memscan

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sys/windows"

	"github.com/zk-fathom/memscan/memerr"
)

// ProcessHandle is an opened handle to a target process, plus its cached
// module list. Created by OpenProcess; on Close, the OS handle it owns is
// released. Exclusively owned by its creator; read/write operations borrow
// it immutably, matching the lifecycle in §3.
type ProcessHandle struct {
	pid     uint32
	handle  windows.Handle
	log     zerolog.Logger
	once    sync.Once
	modules []MemoryRegion
	modErr  error
}

// OpenProcess opens pid with query/VM-read/VM-write/VM-operation rights.
// Fails when the OS denies access (§4.1 failure semantics).
func OpenProcess(pid uint32, opts ...EngineOption) (*ProcessHandle, error) {
	cfg := newEngineConfig(opts)

	access := uint32(windows.PROCESS_QUERY_INFORMATION | windows.PROCESS_VM_READ |
		windows.PROCESS_VM_WRITE | windows.PROCESS_VM_OPERATION)
	h, err := windows.OpenProcess(access, false, pid)
	if err != nil {
		return nil, memerr.AccessErrorf(err, "OpenProcess failed for pid %d", pid)
	}

	cfg.log.Debug().Uint32("pid", pid).Msg("opened process")
	return &ProcessHandle{pid: pid, handle: h, log: cfg.log}, nil
}

// Close releases the underlying OS handle. Safe to call more than once.
func (h *ProcessHandle) Close() error {
	if h.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(h.handle)
	h.handle = 0
	if err != nil {
		return memerr.AccessErrorf(err, "CloseHandle failed for pid %d", h.pid)
	}
	return nil
}

// PID returns the target process's identifier.
func (h *ProcessHandle) PID() uint32 { return h.pid }

// FindProcessByName finds the pid of the first process whose executable
// base name matches name, case-insensitively, with or without the ".exe"
// suffix. Returns ok=false (not an error) when no such process exists.
func FindProcessByName(name string) (pid uint32, ok bool, err error) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return 0, false, memerr.AccessErrorf(err, "CreateToolhelp32Snapshot failed")
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(snapshot, &entry); err != nil {
		if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
			return 0, false, nil
		}
		return 0, false, memerr.AccessErrorf(err, "Process32First failed")
	}

	for {
		exeName := windows.UTF16ToString(entry.ExeFile[:])
		if matchesProcessName(exeName, name, ".exe") {
			return entry.ProcessID, true, nil
		}

		if err := windows.Process32Next(snapshot, &entry); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				return 0, false, nil
			}
			return 0, false, memerr.AccessErrorf(err, "Process32Next failed")
		}
	}
}

// QuerySystemInfo reports the target's user address space bounds and the
// page/allocation granularity of the running (not emulated) OS.
func QuerySystemInfo() (SystemInfo, error) {
	var info windows.SystemInfo
	windows.GetNativeSystemInfo(&info)
	return SystemInfo{
		MinAppAddr:  Address(info.MinimumApplicationAddress),
		MaxAppAddr:  Address(info.MaximumApplicationAddress),
		PageSize:    uint64(info.PageSize),
		Granularity: uint64(info.AllocationGranularity),
	}, nil
}

// ModuleRegions returns the loaded modules excluding the main executable
// image, each coalesced into a single Image-typed region spanning its
// file-backed pages, per §4.1.
func (h *ProcessHandle) ModuleRegions() ([]MemoryRegion, error) {
	h.once.Do(func() {
		h.modules, h.modErr = enumerateWindowsModules(h.handle)
	})
	return h.modules, h.modErr
}

func enumerateWindowsModules(proc windows.Handle) ([]MemoryRegion, error) {
	const maxModules = 1024
	var mods [maxModules]windows.Handle
	var cbNeeded uint32

	err := windows.EnumProcessModules(proc, &mods[0], uint32(unsafe.Sizeof(mods)), &cbNeeded)
	if err != nil {
		return nil, memerr.AccessErrorf(err, "EnumProcessModules failed")
	}

	count := int(cbNeeded) / int(unsafe.Sizeof(mods[0]))
	if count > maxModules {
		count = maxModules
	}

	var regions []MemoryRegion
	// Skip index 0: it is always the main executable image, which §4.1
	// excludes from the module list.
	for _, mod := range mods[1:count] {
		var nameBuf [windows.MAX_PATH]uint16
		n, err := windows.GetModuleFileNameEx(proc, mod, &nameBuf[0], uint32(len(nameBuf)))
		if err != nil || n == 0 {
			continue
		}
		path := windows.UTF16ToString(nameBuf[:n])

		var info windows.ModuleInfo
		if err := windows.GetModuleInformation(proc, mod, &info, uint32(unsafe.Sizeof(info))); err != nil {
			continue
		}

		regions = append(regions, MemoryRegion{
			BaseAddress: Address(info.BaseOfDll),
			Size:        uint64(info.SizeOfImage),
			Protect:     MemoryProtection{Read: true, Execute: true},
			State:       MemoryState{Committed: true},
			Type:        MemoryTypeImage,
			ImageFile:   &path,
		})
	}
	return regions, nil
}

// ReadMemory reads len(buf) bytes starting at addr. Returns the number of
// bytes actually read; 0 on any failure, per §4.1 failure semantics.
func (h *ProcessHandle) ReadMemory(addr Address, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var nRead uintptr
	err := windows.ReadProcessMemory(h.handle, uintptr(addr), &buf[0], uintptr(len(buf)), &nRead)
	if err != nil {
		return 0, nil
	}
	return int(nRead), nil
}

// WriteMemory writes buf to addr. Returns the number of bytes actually
// written; 0 on any failure.
func (h *ProcessHandle) WriteMemory(addr Address, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var nWritten uintptr
	err := windows.WriteProcessMemory(h.handle, uintptr(addr), &buf[0], uintptr(len(buf)), &nWritten)
	if err != nil {
		return 0, nil
	}
	return int(nWritten), nil
}

// NewRegionIterator returns an iterator over this process's interesting
// memory regions, driven by repeated VirtualQueryEx calls.
func (h *ProcessHandle) NewRegionIterator(sys SystemInfo) *MemoryRegionIterator {
	return newMemoryRegionIterator(h.queryRegion, sys)
}

func (h *ProcessHandle) queryRegion(addr uint64) (MemoryRegion, bool) {
	var mbi windows.MemoryBasicInformation
	err := windows.VirtualQueryEx(h.handle, uintptr(addr), &mbi, unsafe.Sizeof(mbi))
	if err != nil {
		return MemoryRegion{}, false
	}
	return MemoryRegion{
		BaseAddress: Address(mbi.BaseAddress),
		Size:        uint64(mbi.RegionSize),
		Protect:     windowsProtectToFlags(mbi.Protect, mbi.State),
		State:       windowsStateFlags(mbi.State),
		Type:        windowsTypeFlag(mbi.Type),
	}, true
}

// windowsProtectToFlags normalizes the Windows page-protection constants
// per the table in §6.
func windowsProtectToFlags(protect, state uint32) MemoryProtection {
	if state != windows.MEM_COMMIT {
		// Free/reserved pages carry no meaningful protection bits.
		return MemoryProtection{}
	}

	guarded := protect&windows.PAGE_GUARD != 0
	noCache := protect&windows.PAGE_NOCACHE != 0
	base := protect &^ (windows.PAGE_GUARD | windows.PAGE_NOCACHE)

	if base == windows.PAGE_NOACCESS {
		return MemoryProtection{NoAccess: true, Guarded: guarded, NoCache: noCache}
	}

	read := base&(windows.PAGE_READONLY|windows.PAGE_READWRITE|windows.PAGE_WRITECOPY|
		windows.PAGE_EXECUTE_READ|windows.PAGE_EXECUTE_READWRITE|windows.PAGE_EXECUTE_WRITECOPY) != 0
	write := base&(windows.PAGE_READWRITE|windows.PAGE_WRITECOPY|
		windows.PAGE_EXECUTE_READWRITE|windows.PAGE_EXECUTE_WRITECOPY) != 0
	execute := base&(windows.PAGE_EXECUTE|windows.PAGE_EXECUTE_READ|
		windows.PAGE_EXECUTE_READWRITE|windows.PAGE_EXECUTE_WRITECOPY) != 0
	cow := base&(windows.PAGE_WRITECOPY|windows.PAGE_EXECUTE_WRITECOPY) != 0

	return MemoryProtection{
		Read:        read,
		Write:       write,
		Execute:     execute,
		CopyOnWrite: cow,
		Guarded:     guarded,
		NoCache:     noCache,
	}
}

func windowsStateFlags(state uint32) MemoryState {
	return MemoryState{
		Committed: state == windows.MEM_COMMIT,
		Free:      state == windows.MEM_FREE,
		Reserved:  state == windows.MEM_RESERVE,
	}
}

func windowsTypeFlag(t uint32) MemoryType {
	switch t {
	case windows.MEM_IMAGE:
		return MemoryTypeImage
	case windows.MEM_MAPPED:
		return MemoryTypeMapped
	case windows.MEM_PRIVATE:
		return MemoryTypePrivate
	default:
		return MemoryTypeUnknown
	}
}
