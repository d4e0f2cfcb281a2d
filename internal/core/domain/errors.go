package domain

import "errors"

// Sentinel errors used across the core. Adapters translate their backend
// errors into these so services can branch with errors.Is.
var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownComponent indicates a registry lookup for a name that
	// was never registered. The wrapping error names the requested key
	// and the set of registered keys.
	ErrUnknownComponent = errors.New("unknown component")

	// ErrInvalidConfig indicates a configuration document that cannot
	// produce a usable ExperimentConfig (missing required field, value
	// out of range). Raised before any I/O happens.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch indicates an embedding whose length does not
	// match the dimension declared in the experiment configuration.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyDataset indicates an evaluation dataset with no usable rows.
	ErrEmptyDataset = errors.New("empty dataset")
)
