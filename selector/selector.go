// Package selector chooses which catalog candidate to install.
package selector

import (
	semver "github.com/Masterminds/semver/v3"

	"moduleinstaller/catalog"
)

// PickLatest returns the last candidate. The catalog publishes candidates in
// ascending precedence; the list is never re-sorted here.
func PickLatest(candidates []catalog.UpdateCandidate) (catalog.UpdateCandidate, bool) {
	if len(candidates) == 0 {
		return catalog.UpdateCandidate{}, false
	}
	return candidates[len(candidates)-1], true
}

// Ascending reports whether the semver-parseable versions in candidates
// appear in non-decreasing order. Versions that do not parse are skipped.
func Ascending(candidates []catalog.UpdateCandidate) bool {
	var prev *semver.Version
	for _, c := range candidates {
		v, err := semver.NewVersion(c.Version)
		if err != nil {
			continue
		}
		if prev != nil && v.LessThan(prev) {
			return false
		}
		prev = v
	}
	return true
}
