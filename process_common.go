package memscan

import "strings"

// matchesProcessName implements the case-insensitive, suffix-tolerant match
// from §4.1: "matches against executable base name with or without
// OS-conventional suffix". suffix is ".exe" on Windows and "" on Linux
// (where the clause is a no-op, exercised only on Windows).
func matchesProcessName(candidate, target, suffix string) bool {
	candidate = strings.ToLower(candidate)
	target = strings.ToLower(target)

	if candidate == target {
		return true
	}
	if suffix == "" {
		return false
	}
	return strings.TrimSuffix(candidate, suffix) == strings.TrimSuffix(target, suffix)
}
