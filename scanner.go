package memscan

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/zk-fathom/memscan/memerr"
)

// writer is the subset of ProcessHandle the scanner needs to write bytes
// back to the target.
type writer interface {
	WriteMemory(addr Address, buf []byte) (int, error)
}

// processIO is the combined read/write contract the scanner needs from an
// OS Adapter handle.
type processIO interface {
	reader
	writer
}

// CompareOp is the filter predicate tag for Scanner.Filter.
type CompareOp int

const (
	CompareEquals CompareOp = iota
	CompareLessThan
	CompareGreaterThan
	CompareIncreased
	CompareDecreased
	CompareChanged
	CompareUnchanged
)

// MatchedAddress is a candidate address whose current decoded value
// satisfies the scanner's filter history.
type MatchedAddress struct {
	Address       Address
	CurrentValue  Value
	PreviousValue *Value
}

// Checkpoint is a named snapshot of per-address decoded values, used by
// FilterCheckpointRelative for time-series value hunts. Names are unique
// within a scanner.
type Checkpoint struct {
	Name   string
	Values map[Address]Value
}

// Scanner is the progressive-narrowing engine: initial scan across mapped
// regions, filter operations, checkpoint capture and relative-delta
// filter, bulk write/modify. The scanner borrows the process handle; it
// never outlives the caller's ownership of it.
type Scanner struct {
	proc        processIO
	mapper      *RegionMapper
	valueType   ValueType
	alignment   int
	matches     []MatchedAddress
	prevMatches []MatchedAddress
	hasPrev     bool
	checkpoints map[string]Checkpoint
	log         zerolog.Logger
}

// NewScanner constructs a scanner over proc, mapping each of the given
// regions up front. alignment defaults to valueType.Size() when zero.
// Per the spec's own recommendation on its open alignment question, an
// alignment that does not evenly divide valueType.Size() is rejected here
// rather than silently permitted to emit type-straddling matches.
func NewScanner(proc processIO, regions []MemoryRegion, valueType ValueType, alignment int, opts ...EngineOption) (*Scanner, error) {
	cfg := newEngineConfig(opts)

	if alignment == 0 {
		alignment = valueType.Size()
	}
	if alignment <= 0 || valueType.Size()%alignment != 0 {
		return nil, memerr.TypeMismatchf("alignment %d does not evenly divide %v's size %d", alignment, valueType, valueType.Size())
	}

	mapper := newRegionMapper(proc, opts...)
	for _, r := range regions {
		if _, err := mapper.MapRegion(r); err != nil {
			cfg.log.Debug().Err(err).Stringer("base", r.BaseAddress).Msg("skipping region at construction")
		}
	}

	return &Scanner{
		proc:        proc,
		mapper:      mapper,
		valueType:   valueType,
		alignment:   alignment,
		checkpoints: make(map[string]Checkpoint),
		log:         cfg.log,
	}, nil
}

// InitialScan decodes a value at every aligned offset of every mapped
// region, replacing any prior matches. Returns the match count.
func (s *Scanner) InitialScan() int {
	s.refreshMappings()
	var matches []MatchedAddress
	size := s.valueType.Size()

	for _, mm := range s.mapper.Iter() {
		bytes := mm.LocalBytes
		for offset := 0; offset+size <= len(bytes); offset += s.alignment {
			v, ok := FromBytes(bytes, offset, s.valueType)
			if !ok {
				continue
			}
			matches = append(matches, MatchedAddress{
				Address:      mm.RemoteRegion.BaseAddress + Address(offset),
				CurrentValue: v,
			})
		}
	}

	s.matches = matches
	s.hasPrev = false
	s.log.Debug().Int("count", len(matches)).Msg("initial scan")
	return len(matches)
}

// Filter re-decodes every existing match, applies op, and keeps only
// matches that satisfy it. Equals/LessThan/GreaterThan require compare to
// be non-nil; Increased/Decreased/Changed/Unchanged ignore it. After
// filtering, prunes mapper entries with no surviving match
// (CleanupEmptyRegions).
func (s *Scanner) Filter(op CompareOp, compare *Value) (int, error) {
	switch op {
	case CompareEquals, CompareLessThan, CompareGreaterThan:
		if compare == nil {
			return 0, memerr.TypeMismatchf("compare value required for %v", op)
		}
	}

	s.saveForUndo()
	s.refreshMappings()

	var kept []MatchedAddress
	for _, m := range s.matches {
		mm, ok := s.mapper.GetByAddress(m.Address)
		if !ok {
			continue
		}
		offset := int(m.Address - mm.RemoteRegion.BaseAddress)
		decoded, ok := FromBytes(mm.LocalBytes, offset, s.valueType)
		if !ok {
			continue
		}

		if !matchPredicate(op, decoded, m.CurrentValue, compare) {
			continue
		}

		prev := m.CurrentValue
		kept = append(kept, MatchedAddress{
			Address:       m.Address,
			CurrentValue:  decoded,
			PreviousValue: &prev,
		})
	}

	s.matches = kept
	s.cleanupEmptyRegions()
	s.log.Debug().Int("count", len(kept)).Stringer("op", op).Msg("filter")
	return len(kept), nil
}

func matchPredicate(op CompareOp, decoded, prior Value, compare *Value) bool {
	switch op {
	case CompareEquals:
		return decoded.Equals(*compare)
	case CompareLessThan:
		return decoded.LessThan(*compare)
	case CompareGreaterThan:
		return decoded.GreaterThan(*compare)
	case CompareIncreased:
		return decoded.GreaterThan(prior)
	case CompareDecreased:
		return decoded.LessThan(prior)
	case CompareChanged:
		return !decoded.Equals(prior)
	case CompareUnchanged:
		return decoded.Equals(prior)
	default:
		return false
	}
}

func (op CompareOp) String() string {
	switch op {
	case CompareEquals:
		return "equals"
	case CompareLessThan:
		return "less_than"
	case CompareGreaterThan:
		return "greater_than"
	case CompareIncreased:
		return "increased"
	case CompareDecreased:
		return "decreased"
	case CompareChanged:
		return "changed"
	case CompareUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// refreshMappings re-reads every retained mapping from the process so that
// decoding sees the target's current bytes. A mapping whose re-read fails
// keeps its previous bytes.
func (s *Scanner) refreshMappings() {
	for _, mm := range s.mapper.Iter() {
		if err := s.mapper.Refresh(mm.RemoteRegion.BaseAddress); err != nil {
			s.log.Debug().Err(err).Stringer("base", mm.RemoteRegion.BaseAddress).Msg("refresh failed, keeping previous bytes")
		}
	}
}

// cleanupEmptyRegions drops all mappings when no matches remain;
// otherwise retains only mappings that still contain at least one match.
func (s *Scanner) cleanupEmptyRegions() {
	if len(s.matches) == 0 {
		s.mapper.Clear()
		return
	}
	s.mapper.Retain(func(mm *MappedMemory) bool {
		for _, m := range s.matches {
			if mm.RemoteRegion.Contains(m.Address) {
				return true
			}
		}
		return false
	})
}

// SaveCheckpoint captures the current value at every matched address,
// re-decoded from its mapping, into a named Checkpoint. Overwrites any
// existing checkpoint of the same name.
func (s *Scanner) SaveCheckpoint(name string) {
	s.refreshMappings()
	values := make(map[Address]Value, len(s.matches))
	for _, m := range s.matches {
		mm, ok := s.mapper.GetByAddress(m.Address)
		if !ok {
			continue
		}
		offset := int(m.Address - mm.RemoteRegion.BaseAddress)
		v, ok := FromBytes(mm.LocalBytes, offset, s.valueType)
		if !ok {
			continue
		}
		values[m.Address] = v
	}
	s.checkpoints[name] = Checkpoint{Name: name, Values: values}
}

// ListCheckpoints returns the names of all saved checkpoints.
func (s *Scanner) ListCheckpoints() []string {
	names := make([]string, 0, len(s.checkpoints))
	for name := range s.checkpoints {
		names = append(names, name)
	}
	return names
}

// GetCheckpoint returns the named checkpoint, if it exists.
func (s *Scanner) GetCheckpoint(name string) (Checkpoint, bool) {
	cp, ok := s.checkpoints[name]
	return cp, ok
}

// DeleteCheckpoint removes the named checkpoint. Reports whether it
// existed.
func (s *Scanner) DeleteCheckpoint(name string) bool {
	if _, ok := s.checkpoints[name]; !ok {
		return false
	}
	delete(s.checkpoints, name)
	return true
}

// FilterCheckpointRelative is the signature filter for time-series value
// hunts. For each match present in all three checkpoints, computes
// delta1 = cp2 - cp1 and delta2 = cp3 - cp2 and keeps the match when
// WithinMargin(delta1, delta2, marginPercent) holds, refreshing its
// current value from the live mapping.
func (s *Scanner) FilterCheckpointRelative(cp1Name, cp2Name, cp3Name string, marginPercent float64) (int, error) {
	cp1, ok := s.checkpoints[cp1Name]
	if !ok {
		return 0, memerr.NotFoundf("checkpoint %q not found", cp1Name)
	}
	cp2, ok := s.checkpoints[cp2Name]
	if !ok {
		return 0, memerr.NotFoundf("checkpoint %q not found", cp2Name)
	}
	cp3, ok := s.checkpoints[cp3Name]
	if !ok {
		return 0, memerr.NotFoundf("checkpoint %q not found", cp3Name)
	}

	s.saveForUndo()
	s.refreshMappings()

	var kept []MatchedAddress
	for _, m := range s.matches {
		v1, ok1 := cp1.Values[m.Address]
		v2, ok2 := cp2.Values[m.Address]
		v3, ok3 := cp3.Values[m.Address]
		if !ok1 || !ok2 || !ok3 {
			continue
		}

		delta1, ok := Subtract(v2, v1)
		if !ok {
			continue
		}
		delta2, ok := Subtract(v3, v2)
		if !ok {
			continue
		}

		if !WithinMargin(ToF64(delta1), ToF64(delta2), marginPercent) {
			continue
		}

		mm, ok := s.mapper.GetByAddress(m.Address)
		if !ok {
			continue
		}
		offset := int(m.Address - mm.RemoteRegion.BaseAddress)
		live, ok := FromBytes(mm.LocalBytes, offset, s.valueType)
		if !ok {
			continue
		}

		prev := m.CurrentValue
		kept = append(kept, MatchedAddress{Address: m.Address, CurrentValue: live, PreviousValue: &prev})
	}

	s.matches = kept
	s.cleanupEmptyRegions()
	return len(kept), nil
}

// WithinMargin widens a and b (already float64) and reports whether they
// are within marginPercent of one another, per the spec's formula:
// both near zero is always true; otherwise the relative difference
// against the larger magnitude must not exceed marginPercent (so a pair
// with only one side near zero passes only when marginPercent >= 100).
func WithinMargin(a, b, marginPercent float64) bool {
	const epsilon = 1e-10
	absA, absB := math.Abs(a), math.Abs(b)
	maxAbs := math.Max(absA, absB)

	switch {
	case absA < epsilon && absB < epsilon:
		return true
	case maxAbs < epsilon:
		return math.Abs(a-b) < epsilon
	default:
		return 100*math.Abs(a-b)/maxAbs <= marginPercent
	}
}

// WriteValue encodes v and writes it to addr. Fails on short write. Does
// not update any cached match state; callers must re-Filter or
// re-InitialScan if they need consistency (see Open Question 4 in
// DESIGN.md: writes are deliberately not auto-refreshing).
func (s *Scanner) WriteValue(addr Address, v Value) error {
	buf := ToBytes(v)
	n, err := s.proc.WriteMemory(addr, buf)
	if err != nil {
		return memerr.AccessErrorf(err, "write failed at %s", addr)
	}
	if n < len(buf) {
		return memerr.ShortIOf(len(buf), n, uint64(addr))
	}
	return nil
}

// WriteAll writes v to every current match, returning the count that
// succeeded. Individual failures are silent, matching the spec's
// per-address write policy.
func (s *Scanner) WriteAll(v Value) int {
	count := 0
	for _, m := range s.matches {
		if err := s.WriteValue(m.Address, v); err == nil {
			count++
		}
	}
	return count
}

// ModifyValue locates addr in a mapping, decodes its current value,
// applies op with operand, and writes the result back. Fails if addr is
// not mapped, decode fails, or the arithmetic fails (e.g. integer divide
// by zero).
func (s *Scanner) ModifyValue(addr Address, op ArithOp, operand Value) error {
	mm, ok := s.mapper.GetByAddress(addr)
	if !ok {
		return memerr.NotFoundf("address %s is not mapped", addr)
	}
	offset := int(addr - mm.RemoteRegion.BaseAddress)
	current, ok := FromBytes(mm.LocalBytes, offset, s.valueType)
	if !ok {
		return memerr.Decodef("cannot decode %v at %s", s.valueType, addr)
	}

	result, err := Apply(current, op, operand)
	if err != nil {
		return err
	}
	return s.WriteValue(addr, result)
}

// ModifyAll applies ModifyValue to every current match, returning the
// count of successes.
func (s *Scanner) ModifyAll(op ArithOp, operand Value) int {
	count := 0
	for _, m := range s.matches {
		if err := s.ModifyValue(m.Address, op, operand); err == nil {
			count++
		}
	}
	return count
}

// Matches returns the current match set. Callers must not mutate it.
func (s *Scanner) Matches() []MatchedAddress { return s.matches }

// MatchesLen is an O(1) count of the current match set.
func (s *Scanner) MatchesLen() int { return len(s.matches) }

// RegionCount returns the number of mapped regions currently retained.
func (s *Scanner) RegionCount() int { return s.mapper.Len() }

func (s *Scanner) saveForUndo() {
	cp := make([]MatchedAddress, len(s.matches))
	copy(cp, s.matches)
	s.prevMatches = cp
	s.hasPrev = true
}

// UndoLastFilter restores the match set to what it was immediately before
// the most recent Filter or FilterCheckpointRelative call. Bounded to one
// level, not an unbounded history, matching the original REPL's
// previous_matches field. Reports whether there was anything to undo.
func (s *Scanner) UndoLastFilter() bool {
	if !s.hasPrev {
		return false
	}
	s.matches = s.prevMatches
	s.prevMatches = nil
	s.hasPrev = false
	return true
}

// Reset clears matches, checkpoints, and mappings, returning the scanner
// to its post-construction state without re-opening the process handle.
func (s *Scanner) Reset() {
	s.matches = nil
	s.prevMatches = nil
	s.hasPrev = false
	s.checkpoints = make(map[string]Checkpoint)
	s.mapper.Clear()
}
