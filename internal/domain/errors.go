package domain

import "errors"

var (
	// ErrInvalidSelection signals a selection payload whose shape does not
	// match the filter kind it targets. Rejected before any stream starts.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrConfiguration signals an invalid save/analysis configuration
	// (duplicate rest destinations, under-allocated quotas, missing fields).
	// Rejected before any file is opened.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrNotFound signals a missing resource (geometry label, code list).
	ErrNotFound = errors.New("not found")
)
