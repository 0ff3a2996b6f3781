package monitor

import "errors"

// ErrNoSnapshot indicates no weekly snapshot exists for the requested
// subject and week.
var ErrNoSnapshot = errors.New("weekly snapshot not found")
