package service

import (
	"errors"
	"fmt"
)

// Stage names a step of the ingestion pipeline.
type Stage string

const (
	StageParsing     Stage = "Parsing"
	StageMapping     Stage = "Mapping"
	StageNormalizing Stage = "Normalizing"
	StageHashing     Stage = "Hashing"
	StageFiltering   Stage = "Filtering"
	StagePersisting  Stage = "Persisting"
	StageDone        Stage = "Done"
	StageFailed      Stage = "Failed"
)

var (
	// ErrBatchUnparseable means the file is corrupt, empty or has no header row.
	ErrBatchUnparseable = errors.New("batch unparseable")

	// ErrStorageUnavailable means a store call failed. Nothing was reported as persisted.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUnknownTemplate means the named mapping template does not exist.
	ErrUnknownTemplate = errors.New("unknown mapping template")

	// ErrInvalidTemplate means a stored mapping template is malformed. Sending
	// the upload again cannot succeed until the template is fixed.
	ErrInvalidTemplate = errors.New("mapping template is malformed")
)

// IngestError is the fatal outcome of an ingestion. Stage is where it failed
// and Err wraps one of the sentinel classes above.
type IngestError struct {
	Stage Stage
	Err   error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("import failed at %s: %v", e.Stage, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same upload may succeed when sent again.
// Only storage failures qualify; a retry re-runs dedup against what was stored.
func (e *IngestError) Retryable() bool {
	return errors.Is(e.Err, ErrStorageUnavailable)
}
