package recdex

import "github.com/kailas-cloud/recdex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRating     = domain.ErrInvalidRating
	ErrTraining          = domain.ErrTraining
	ErrEmptyDataset      = domain.ErrEmptyDataset
	ErrStoreUnavailable  = domain.ErrStoreUnavailable
	ErrItemNotFound      = domain.ErrItemNotFound
	ErrModelNotReady     = domain.ErrModelNotReady
	ErrRetrainInProgress = domain.ErrRetrainInProgress
)
