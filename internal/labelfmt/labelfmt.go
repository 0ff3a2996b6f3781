// Package labelfmt builds and parses the reserved system-owned label
// format. Ownership classification is string-shape only and this package
// is its single home: every add/remove decision in the engine rests on
// IsSystemOwned meaning the same thing everywhere.
package labelfmt

import (
	"regexp"
	"strings"
)

// ReservedPrefix marks a label as produced by this engine. A label is
// system-owned iff it matches "SYS:<FAMILY> - <Description>" where
// FAMILY is uppercase letters, digits, and underscores.
const ReservedPrefix = "SYS:"

// GlobalFamily is the reserved family for cross-enrollment labels that
// are not scoped to a single product.
const GlobalFamily = "GLOBAL"

var systemPattern = regexp.MustCompile(`^SYS:([A-Z0-9_]+) - (.+)$`)

// exemptMarkers flag manually curated labels (testimonials, reviews)
// that the rule engine must never contest in either direction.
var exemptMarkers = []string{"testimonial", "review", "depoimento"}

// Format builds a system-owned label for the given product family and
// description.
func Format(family, description string) string {
	return ReservedPrefix + family + " - " + description
}

// Parse splits a label into product family and description. ok is false
// when the label does not match the reserved pattern.
func Parse(label string) (family, description string, ok bool) {
	m := systemPattern.FindStringSubmatch(label)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// IsSystemOwned reports whether the label matches the reserved pattern.
// Everything else is externally-owned ("native") and protected.
func IsSystemOwned(label string) bool {
	return systemPattern.MatchString(label)
}

// Classify partitions labels into system-owned and externally-owned sets,
// preserving input order within each set.
func Classify(labels []string) (system, native []string) {
	for _, l := range labels {
		if IsSystemOwned(l) {
			system = append(system, l)
		} else {
			native = append(native, l)
		}
	}
	return system, native
}

// IsExempt reports whether the label carries a curated testimonial or
// review marker. Exempt labels pass through evaluation untouched and are
// never removal candidates.
func IsExempt(label string) bool {
	lower := strings.ToLower(label)
	for _, marker := range exemptMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
