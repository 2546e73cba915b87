// Package hexutil provides the trivial hex-pattern text helper described in
// the engine's external interfaces. It is deliberately peripheral: the
// memory-inspection engine itself never parses text, this package exists so
// a front end (or a test) has a ready-made implementation of the one
// testable behavior spec.md pins down (scenario S1).
package hexutil

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/zk-fathom/memscan/memerr"
)

// ParsePattern decodes ASCII hex digits interspersed with any Unicode
// whitespace into bytes. Whitespace is stripped first; the remaining
// length must be even and every remaining rune must be a hex digit.
func ParsePattern(input string) ([]byte, error) {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, input)

	if len(stripped)%2 != 0 {
		return nil, memerr.ParseErrorf(nil, "hex pattern has odd length %d after stripping whitespace", len(stripped))
	}

	decoded, err := hex.DecodeString(stripped)
	if err != nil {
		return nil, memerr.ParseErrorf(err, "invalid hex pattern %q", input)
	}
	return decoded, nil
}
