package rating

import (
	"fmt"
	"math"
	"strconv"

	"github.com/kailas-cloud/recdex/internal/domain"
)

// Rating is a single explicit-feedback observation (immutable value object).
type Rating struct {
	userID    int64
	itemID    int64
	score     float64
	timestamp int64
}

// New validates and creates a Rating.
// IDs must be non-negative and the score finite; timestamp is unix seconds.
func New(userID, itemID int64, score float64, timestamp int64) (Rating, error) {
	if userID < 0 {
		return Rating{}, fmt.Errorf("user_id must be non-negative, got %d: %w", userID, domain.ErrInvalidRating)
	}
	if itemID < 0 {
		return Rating{}, fmt.Errorf("item_id must be non-negative, got %d: %w", itemID, domain.ErrInvalidRating)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return Rating{}, fmt.Errorf("rating must be a finite number: %w", domain.ErrInvalidRating)
	}
	return Rating{userID: userID, itemID: itemID, score: score, timestamp: timestamp}, nil
}

// Parse builds a Rating from untyped text fields, as submitted by forms and CLIs.
func Parse(userID, itemID, score string, timestamp int64) (Rating, error) {
	u, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return Rating{}, fmt.Errorf("user_id %q is not an integer: %w", userID, domain.ErrInvalidRating)
	}
	i, err := strconv.ParseInt(itemID, 10, 64)
	if err != nil {
		return Rating{}, fmt.Errorf("item_id %q is not an integer: %w", itemID, domain.ErrInvalidRating)
	}
	s, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return Rating{}, fmt.Errorf("rating %q is not a number: %w", score, domain.ErrInvalidRating)
	}
	return New(u, i, s, timestamp)
}

// Reconstruct creates a Rating without validation (storage hydration).
func Reconstruct(userID, itemID int64, score float64, timestamp int64) Rating {
	return Rating{userID: userID, itemID: itemID, score: score, timestamp: timestamp}
}

// UserID returns the rating user.
func (r Rating) UserID() int64 { return r.userID }

// ItemID returns the rated item.
func (r Rating) ItemID() int64 { return r.itemID }

// Score returns the rating value.
func (r Rating) Score() float64 { return r.score }

// Timestamp returns the ingestion time in unix seconds.
func (r Rating) Timestamp() int64 { return r.timestamp }

// Key returns the "user:item" identity of the rating.
func (r Rating) Key() string {
	return strconv.FormatInt(r.userID, 10) + ":" + strconv.FormatInt(r.itemID, 10)
}
