package sync

import "errors"

// ErrSubjectNotFound indicates the subject does not exist.
var ErrSubjectNotFound = errors.New("subject not found")
