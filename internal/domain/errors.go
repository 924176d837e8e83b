package domain

import "errors"

// Sentinel errors for the engine's failure taxonomy. Callers classify
// failures with errors.Is; components wrap these with context via
// fmt.Errorf("...: %w", err).
var (
	// ErrConfiguration reports invalid component configuration, e.g.
	// chunk overlap not smaller than chunk size.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNotFound reports a missing entity key: no ingested document,
	// no built index. Distinct from an empty successful result.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch reports an embedding vector whose dimension
	// does not match the index it is paired with.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrExtractionParse reports structured LLM output that remained
	// unparseable after the single stricter-format retry.
	ErrExtractionParse = errors.New("unparseable extraction output")

	// ErrTimeout reports a provider call that exceeded the caller's
	// deadline. Partial results are discarded.
	ErrTimeout = errors.New("provider call timed out")

	// ErrPersistence reports an index write or read failure. A build
	// that returns an index together with ErrPersistence produced a
	// valid in-memory index that is not on disk.
	ErrPersistence = errors.New("index persistence failed")

	// ErrInvalidArgument reports a caller error such as topK <= 0.
	ErrInvalidArgument = errors.New("invalid argument")
)
