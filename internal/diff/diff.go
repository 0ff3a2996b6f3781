// Package diff turns a current and a newly computed label set into safe
// add/remove instructions. Removal candidates are restricted to the
// engine's own namespace: externally-owned labels are never proposed for
// removal here, and the protection gate re-checks each candidate later.
package diff

import "github.com/ignite/crm-tag-sync/internal/labelfmt"

// Result is the sync instruction set for one subject.
type Result struct {
	ToAdd    []string `json:"to_add"`
	ToRemove []string `json:"to_remove"`
}

// Diff compares the currently synced labels against the rule engine
// output. ToAdd preserves the order of next; ToRemove preserves the
// order of current. Re-running with identical inputs yields empty lists.
func Diff(current, next []string) Result {
	nextSet := toSet(next)
	currentSet := toSet(current)

	var res Result
	for _, l := range next {
		if _, ok := currentSet[l]; !ok {
			res.ToAdd = append(res.ToAdd, l)
		}
	}
	for _, l := range current {
		if _, ok := nextSet[l]; ok {
			continue
		}
		if labelfmt.IsExempt(l) {
			continue
		}
		if !labelfmt.IsSystemOwned(l) {
			continue
		}
		res.ToRemove = append(res.ToRemove, l)
	}
	return res
}

func toSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return set
}
