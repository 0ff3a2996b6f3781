// Package sync orchestrates one subject's label synchronization: run the
// rule engine, diff the output against what was last synced, pass every
// removal candidate through the protection gate, then apply the approved
// instructions to the CRM and record the new state.
package sync
