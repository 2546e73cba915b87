package memscan

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zk-fathom/memscan/memerr"
)

// Match is a single pattern-search hit: the absolute address it was found
// at, and the matched bytes themselves.
type Match struct {
	Address Address
	Data    []byte
}

// PatternMatcher holds a parsed AOB (array-of-bytes) wildcard pattern,
// e.g. "4D ?? 90 00", where "??" matches any byte. This input format is
// kept from the teacher project verbatim: original_source has no
// equivalent wildcard concept, and it is a direct, idiomatic fit for
// §4.6's "caller-supplied byte pattern".
type PatternMatcher struct {
	patternBytes  []byte
	wildcardMask  []bool
	patternLength int
}

// StringToPattern converts a search string to an AOB pattern, turning '?'
// characters into wildcard tokens and padding to at least minLength bytes
// with wildcards.
func StringToPattern(searchStr string, minLength int) string {
	if searchStr == "" {
		return ""
	}

	var b strings.Builder
	raw := []byte(searchStr)
	length := len(raw)
	if minLength > length {
		length = minLength
	}

	for i := 0; i < length; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		if i < len(raw) {
			c := raw[i]
			if c == '?' {
				b.WriteString("??")
			} else {
				fmt.Fprintf(&b, "%02X", c)
			}
		} else {
			b.WriteString("??")
		}
	}
	return b.String()
}

// NewPatternMatcher parses a space-separated AOB pattern string into a
// matcher. "??" tokens are wildcards; anything else must be exactly one
// hex byte.
func NewPatternMatcher(pattern string) (*PatternMatcher, error) {
	parts := strings.Fields(pattern)
	if len(parts) == 0 {
		return nil, memerr.ParseErrorf(nil, "empty AOB pattern")
	}

	patternBytes := make([]byte, len(parts))
	wildcardMask := make([]bool, len(parts))

	for i, part := range parts {
		if part == "??" {
			wildcardMask[i] = true
			continue
		}
		decoded, err := hex.DecodeString(part)
		if err != nil || len(decoded) != 1 {
			return nil, memerr.ParseErrorf(err, "invalid AOB token %q", part)
		}
		patternBytes[i] = decoded[0]
	}

	return &PatternMatcher{patternBytes: patternBytes, wildcardMask: wildcardMask, patternLength: len(parts)}, nil
}

// Len returns the pattern's length in bytes.
func (pm *PatternMatcher) Len() int { return pm.patternLength }

// FindMatches finds every offset in data where the pattern matches,
// including overlapping occurrences, with a direct O(n*m) scan. It backs
// FindAllAOB; the raw-byte search equivalence of invariant 9 is checked
// between naiveSearch and optimizedSearch instead.
func (pm *PatternMatcher) FindMatches(data []byte, ignoreCase bool) []int {
	if pm.patternLength == 0 || pm.patternLength > len(data) {
		return nil
	}

	var matches []int
	for i := 0; i <= len(data)-pm.patternLength; i++ {
		if pm.matchesAt(data, i, ignoreCase) {
			matches = append(matches, i)
		}
	}
	return matches
}

func (pm *PatternMatcher) matchesAt(data []byte, pos int, ignoreCase bool) bool {
	for j := 0; j < pm.patternLength; j++ {
		if pm.wildcardMask[j] {
			continue
		}
		d, p := data[pos+j], pm.patternBytes[j]
		if ignoreCase {
			if 'a' <= p && p <= 'z' {
				p -= 'a' - 'A'
			}
			if 'a' <= d && d <= 'z' {
				d -= 'a' - 'A'
			}
		}
		if d != p {
			return false
		}
	}
	return true
}

// naiveSearch is the reference substring finder for a raw (wildcard-free)
// byte pattern: a direct O(n*m) scan, overlapping matches permitted,
// empty pattern yields no match. Used to validate optimizedSearch.
func naiveSearch(data, pattern []byte) []int {
	if len(pattern) == 0 || len(pattern) > len(data) {
		return nil
	}
	var out []int
	for i := 0; i <= len(data)-len(pattern); i++ {
		if bytes.Equal(data[i:i+len(pattern)], pattern) {
			out = append(out, i)
		}
	}
	return out
}

// optimizedSearch finds every (possibly overlapping) occurrence of
// pattern in data using bytes.Index, which is internally assembly
// optimized on supported architectures. Advancing the search window by
// one byte past each hit (rather than by len(pattern)) preserves
// overlapping matches, matching naiveSearch's contract exactly — this is
// what invariant 9 (pattern-search equivalence) tests.
func optimizedSearch(data, pattern []byte) []int {
	if len(pattern) == 0 || len(pattern) > len(data) {
		return nil
	}
	var out []int
	start := 0
	for {
		idx := bytes.Index(data[start:], pattern)
		if idx < 0 {
			return out
		}
		pos := start + idx
		out = append(out, pos)
		start = pos + 1
	}
}

// PatternScanner searches a RegionMapper's materialized buffers for
// caller-supplied byte patterns, per §4.6. It never touches the target
// process directly; callers must have already mapped the regions they
// want searched.
type PatternScanner struct {
	mapper *RegionMapper
}

// NewPatternScanner wraps an existing RegionMapper for pattern search.
func NewPatternScanner(mapper *RegionMapper) *PatternScanner {
	return &PatternScanner{mapper: mapper}
}

// FindAll searches every mapped region for occurrences of the raw byte
// pattern, returning absolute-address matches in region order. Uses the
// optimized search internally.
func (ps *PatternScanner) FindAll(pattern []byte) []Match {
	var matches []Match
	for _, mm := range ps.mapper.Iter() {
		for _, offset := range optimizedSearch(mm.LocalBytes, pattern) {
			data := make([]byte, len(pattern))
			copy(data, mm.LocalBytes[offset:offset+len(pattern)])
			matches = append(matches, Match{
				Address: mm.RemoteRegion.BaseAddress + Address(offset),
				Data:    data,
			})
		}
	}
	return matches
}

// FindAllFunc is the streaming form of FindAll: it invokes handler
// synchronously for each match as it is found, in region order, stopping
// early if handler returns false. This mirrors the teacher's
// ScanOptions.Handler callback style rather than a channel, since the
// engine is single-threaded and spawns no background work (§5).
func (ps *PatternScanner) FindAllFunc(pattern []byte, handler func(Match) bool) {
	for _, mm := range ps.mapper.Iter() {
		for _, offset := range optimizedSearch(mm.LocalBytes, pattern) {
			data := make([]byte, len(pattern))
			copy(data, mm.LocalBytes[offset:offset+len(pattern)])
			if !handler(Match{Address: mm.RemoteRegion.BaseAddress + Address(offset), Data: data}) {
				return
			}
		}
	}
}

// FindAllAOB searches every mapped region for occurrences of an AOB
// wildcard pattern (e.g. "4D ?? 90 00"), case-sensitively.
func (ps *PatternScanner) FindAllAOB(pattern string) ([]Match, error) {
	pm, err := NewPatternMatcher(pattern)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, mm := range ps.mapper.Iter() {
		for _, offset := range pm.FindMatches(mm.LocalBytes, false) {
			data := make([]byte, pm.Len())
			copy(data, mm.LocalBytes[offset:offset+pm.Len()])
			matches = append(matches, Match{
				Address: mm.RemoteRegion.BaseAddress + Address(offset),
				Data:    data,
			})
		}
	}
	return matches, nil
}
