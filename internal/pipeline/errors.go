package pipeline

import "errors"

var (
	// ErrMissingSource indicates a required source was not configured.
	ErrMissingSource = errors.New("missing source")

	// ErrNotBuilt indicates Check was called on a Result without rows.
	ErrNotBuilt = errors.New("result has no dataset")
)
