package protection

import "errors"

// ErrNotFound indicates that no label snapshot exists for the subject.
var ErrNotFound = errors.New("label snapshot not found")
