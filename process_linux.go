//go:build linux

package memscan

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rs/zerolog"

	"github.com/zk-fathom/memscan/memerr"
)

// ProcessHandle is an opened handle to a target process: the open
// descriptor to /proc/<pid>/mem plus the cached module list, per §3.
type ProcessHandle struct {
	pid     uint32
	memFile *os.File
	log     zerolog.Logger
	once    sync.Once
	modules []MemoryRegion
	modErr  error
}

// OpenProcess opens /proc/<pid>/mem for reading and writing. Fails when the
// OS denies access (no permission, or the pid does not exist), per §4.1.
func OpenProcess(pid uint32, opts ...EngineOption) (*ProcessHandle, error) {
	cfg := newEngineConfig(opts)

	path := fmt.Sprintf("/proc/%d/mem", pid)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		// Retry read-only: a caller without write privilege can still
		// inspect memory, matching the spirit of PROCESS_VM_READ-only
		// access on Windows.
		f, err = os.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return nil, memerr.AccessErrorf(err, "failed to open %s", path)
		}
	}

	cfg.log.Debug().Uint32("pid", pid).Msg("opened process")
	return &ProcessHandle{pid: pid, memFile: f, log: cfg.log}, nil
}

// Close releases the /proc/<pid>/mem descriptor. Safe to call more than
// once.
func (h *ProcessHandle) Close() error {
	if h.memFile == nil {
		return nil
	}
	err := h.memFile.Close()
	h.memFile = nil
	if err != nil {
		return memerr.AccessErrorf(err, "failed to close mem file for pid %d", h.pid)
	}
	return nil
}

// PID returns the target process's identifier.
func (h *ProcessHandle) PID() uint32 { return h.pid }

// FindProcessByName walks /proc/[0-9]+/exe symlinks looking for a base
// name matching name case-insensitively. §4.1's "with or without
// OS-conventional suffix" clause is a no-op on Linux (executables carry no
// suffix convention), exercised only on Windows.
func FindProcessByName(name string) (pid uint32, ok bool, err error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, false, memerr.AccessErrorf(err, "failed to list /proc")
	}

	for _, entry := range entries {
		candidate, convErr := strconv.ParseUint(entry.Name(), 10, 32)
		if convErr != nil {
			continue
		}

		exe, readErr := os.Readlink(fmt.Sprintf("/proc/%d/exe", candidate))
		if readErr != nil {
			// Process exited, is a kernel thread, or we lack permission;
			// none of these are hard errors for enumeration.
			continue
		}

		base := exe
		if i := strings.LastIndexByte(exe, '/'); i >= 0 {
			base = exe[i+1:]
		}
		if matchesProcessName(base, name, "") {
			return uint32(candidate), true, nil
		}
	}
	return 0, false, nil
}

// QuerySystemInfo reports the address space bounds and page size for the
// running kernel. Linux has no distinct allocation granularity from the
// page size (unlike Windows), so Granularity mirrors PageSize.
func QuerySystemInfo() (SystemInfo, error) {
	ps := uint64(unix.Getpagesize())

	return SystemInfo{
		MinAppAddr:  0,
		MaxAppAddr:  Address(1) << 47, // canonical x86-64 user-space ceiling
		PageSize:    ps,
		Granularity: ps,
	}, nil
}

// ModuleRegions returns the loaded shared-object regions excluding the
// main executable, each coalesced into a single Image-typed region
// spanning all of its private file-backed mappings (§4.1, expanded in
// SPEC_FULL.md since the distilled spec only details the Windows
// coalescing contract).
func (h *ProcessHandle) ModuleRegions() ([]MemoryRegion, error) {
	h.once.Do(func() {
		h.modules, h.modErr = h.enumerateLinuxModules()
	})
	return h.modules, h.modErr
}

func (h *ProcessHandle) enumerateLinuxModules() ([]MemoryRegion, error) {
	lines, err := readMapsLines(h.pid)
	if err != nil {
		return nil, err
	}

	mainExe, _ := os.Readlink(fmt.Sprintf("/proc/%d/exe", h.pid))

	regions := make([]MemoryRegion, 0, len(lines))
	for _, line := range lines {
		r, path, ok, perr := parseMapsLine(line)
		if perr != nil || !ok || r.ImageFile == nil || path == mainExe {
			continue
		}
		regions = append(regions, r)
	}

	return coalesceModuleRegions(regions), nil
}

// coalesceModuleRegions groups file-backed regions sharing the same
// ImageFile path into one Image region per path, spanning from the lowest
// base to the highest end (any gap between them is included), execute =
// true iff any constituent executes, per SPEC_FULL.md's §4.1 expansion.
func coalesceModuleRegions(regions []MemoryRegion) []MemoryRegion {
	byPath := make(map[string][]MemoryRegion)
	var order []string
	for _, r := range regions {
		path := *r.ImageFile
		if _, seen := byPath[path]; !seen {
			order = append(order, path)
		}
		byPath[path] = append(byPath[path], r)
	}

	out := make([]MemoryRegion, 0, len(order))
	for _, path := range order {
		group := byPath[path]
		sort.Slice(group, func(i, j int) bool { return group[i].BaseAddress < group[j].BaseAddress })

		base := group[0].BaseAddress
		end := group[0].End()
		execute := false
		for _, r := range group {
			if r.End() > end {
				end = r.End()
			}
			if r.Protect.Execute {
				execute = true
			}
		}

		p := path
		out = append(out, MemoryRegion{
			BaseAddress: base,
			Size:        uint64(end - base),
			Protect:     MemoryProtection{Read: true, Execute: execute},
			State:       MemoryState{Committed: true},
			Type:        MemoryTypeImage,
			ImageFile:   &p,
		})
	}
	return out
}

// ReadMemory performs a positional read on /proc/<pid>/mem. Returns the
// number of bytes actually read; 0 on any failure, per §4.1 failure
// semantics (short reads are partial success, not an error).
func (h *ProcessHandle) ReadMemory(addr Address, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := h.memFile.ReadAt(buf, int64(addr))
	if n > 0 {
		return n, nil
	}
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// WriteMemory performs a positional write on /proc/<pid>/mem. Returns the
// number of bytes actually written; 0 on any failure.
func (h *ProcessHandle) WriteMemory(addr Address, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	n, err := h.memFile.WriteAt(buf, int64(addr))
	if n > 0 {
		return n, nil
	}
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// NewRegionIterator returns an iterator over this process's interesting
// memory regions, backed by a fresh parse of /proc/<pid>/maps.
func (h *ProcessHandle) NewRegionIterator(sys SystemInfo) *MemoryRegionIterator {
	lines, err := readMapsLines(h.pid)
	if err != nil {
		h.log.Debug().Err(err).Msg("failed to read /proc/<pid>/maps")
		return newMemoryRegionIterator(func(uint64) (MemoryRegion, bool) { return MemoryRegion{}, false }, sys)
	}

	regions := make([]MemoryRegion, 0, len(lines))
	for _, line := range lines {
		r, _, ok, perr := parseMapsLine(line)
		if perr != nil || !ok {
			continue
		}
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i].BaseAddress < regions[j].BaseAddress })

	return newMemoryRegionIterator(linuxRegionQuery(regions), sys)
}

// linuxRegionQuery adapts a parsed, sorted maps snapshot to the shared
// regionQueryFunc contract: it returns the region containing addr, or (when
// addr falls in an unmapped gap) a synthetic non-committed region spanning
// the gap so the shared iterator's uninteresting-region skip logic applies
// uniformly across both OS backends.
func linuxRegionQuery(regions []MemoryRegion) regionQueryFunc {
	return func(addr uint64) (MemoryRegion, bool) {
		for i, r := range regions {
			base := uint64(r.BaseAddress)
			end := uint64(r.End())
			if addr >= base && addr < end {
				return r, true
			}
			if addr < base {
				// Gap before this region.
				return MemoryRegion{
					BaseAddress: Address(addr),
					Size:        base - addr,
					State:       MemoryState{Free: true},
				}, true
			}
			_ = i
		}
		// Past the last mapped region: no further mapping.
		return MemoryRegion{}, false
	}
}

func readMapsLines(pid uint32) ([]string, error) {
	path := fmt.Sprintf("/proc/%d/maps", pid)
	f, err := os.Open(path)
	if err != nil {
		return nil, memerr.AccessErrorf(err, "failed to open %s", path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	// Lines can carry a long pathname; grow the buffer past bufio's 64KiB
	// default just in case.
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, memerr.AccessErrorf(err, "failed to scan %s", path)
	}
	return lines, nil
}

// parseMapsLine parses one line of /proc/<pid>/maps:
// "start-end perms offset dev:inode pathname". pathname is optional
// (anonymous mappings). ok is false for lines this engine intentionally
// skips (currently none; reserved for forward compatibility with kernel
// format additions).
func parseMapsLine(line string) (region MemoryRegion, path string, ok bool, err error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return MemoryRegion{}, "", false, memerr.ParseErrorf(nil, "unrecognized maps line: %s", line)
	}

	addrParts := strings.SplitN(fields[0], "-", 2)
	if len(addrParts) != 2 {
		return MemoryRegion{}, "", false, memerr.ParseErrorf(nil, "unrecognized address range: %s", fields[0])
	}
	start, err := strconv.ParseUint(addrParts[0], 16, 64)
	if err != nil {
		return MemoryRegion{}, "", false, memerr.ParseErrorf(err, "bad start address: %s", addrParts[0])
	}
	end, err := strconv.ParseUint(addrParts[1], 16, 64)
	if err != nil {
		return MemoryRegion{}, "", false, memerr.ParseErrorf(err, "bad end address: %s", addrParts[1])
	}
	if end <= start {
		return MemoryRegion{}, "", false, memerr.ParseErrorf(nil, "non-increasing region: %s", fields[0])
	}

	perms := fields[1]
	if len(perms) < 4 {
		return MemoryRegion{}, "", false, memerr.ParseErrorf(nil, "unrecognized perms: %s", perms)
	}

	protect := MemoryProtection{
		Read:    perms[0] == 'r',
		Write:   perms[1] == 'w',
		Execute: perms[2] == 'x',
	}
	protect.NoAccess = !protect.Read && !protect.Write && !protect.Execute
	shared := perms[3] == 's'

	if len(fields) >= 6 {
		path = fields[5]
	}
	// Pseudo-paths carry no backing file.
	isPseudo := path == "" || (strings.HasPrefix(path, "[") && strings.HasSuffix(path, "]"))

	memType := MemoryTypePrivate
	var imageFile *string
	switch {
	case shared:
		memType = MemoryTypeMapped
	case !isPseudo:
		memType = MemoryTypeImage
		p := path
		imageFile = &p
	}

	region = MemoryRegion{
		BaseAddress: Address(start),
		Size:        end - start,
		Protect:     protect,
		State:       MemoryState{Committed: true},
		Type:        memType,
		ImageFile:   imageFile,
	}
	return region, path, true, nil
}
