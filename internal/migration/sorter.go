package migration

import (
	"sort"
	"strings"
)

// Compare orders two identifiers case-insensitively. It returns a negative
// number when a sorts before b, zero when they are equal ignoring case, and a
// positive number otherwise.
func Compare(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

// Less reports whether identifier a sorts strictly before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Sort returns a new slice of units sorted by ID, case-insensitively.
// The sort is stable to preserve insertion order for equal identifiers.
func Sort(units []Unit) []Unit {
	sorted := make([]Unit, len(units))
	copy(sorted, units)

	sort.SliceStable(sorted, func(i, j int) bool {
		return Less(sorted[i].ID, sorted[j].ID)
	})

	return sorted
}
