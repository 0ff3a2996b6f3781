// Package monitor implements the weekly snapshot and change-detection
// run: capture every monitored subject's externally-owned label set,
// diff it against the prior ISO week, filter by the critical-label watch
// list, and persist one aggregated notification per detected change.
package monitor
