// Package registry manages the critical-label watch list and the change
// notifications produced by the weekly monitor, including their
// read/unread state for the operator review surface.
package registry
