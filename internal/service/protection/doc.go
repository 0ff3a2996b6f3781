// Package protection guards externally-owned ("native") CRM labels from
// removal. It keeps a rolling audit snapshot per subject and exposes the
// fail-closed gate every removal instruction must pass.
package protection
