package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRating signals malformed ingestion input.
	ErrInvalidRating = errors.New("invalid rating")
	// ErrTraining signals a failed or aborted training run.
	ErrTraining = errors.New("training failed")
	// ErrEmptyDataset signals a dataset with no ratings. It always travels wrapped in ErrTraining.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrLookupMiss signals item metadata absent for a predicted item.
	ErrLookupMiss = errors.New("item metadata lookup miss")
	// ErrStoreUnavailable signals the rating store could not be reached.
	ErrStoreUnavailable = errors.New("rating store unavailable")
	// ErrItemNotFound signals a missing item in the metadata tables.
	ErrItemNotFound = errors.New("item not found")
	// ErrModelNotReady signals that no trained model is loaded yet.
	ErrModelNotReady = errors.New("model not ready")
	// ErrModelNotFound signals that no persisted model exists at the model path.
	ErrModelNotFound = errors.New("persisted model not found")
	// ErrRetrainInProgress signals a concurrent retrain attempt.
	ErrRetrainInProgress = errors.New("retrain already in progress")
)

// TrainingError carries the phase in which training failed.
type TrainingError struct {
	Phase string
	Err   error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTraining.Error(), e.Phase, e.Err)
}

// Unwrap exposes both ErrTraining and the underlying cause to errors.Is.
func (e *TrainingError) Unwrap() []error { return []error{ErrTraining, e.Err} }

// NewTrainingError wraps err as a training failure in the given phase.
func NewTrainingError(phase string, err error) error {
	return &TrainingError{Phase: phase, Err: err}
}
