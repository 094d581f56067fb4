// Package dataset holds the immutable in-memory rating snapshot the engine trains and serves from.
package dataset

import (
	"math/rand"
	"slices"

	"github.com/kailas-cloud/recdex/internal/domain/rating"
)

type pair struct {
	user int64
	item int64
}

// Dataset is an immutable snapshot of ratings with at most one rating per (user, item) pair.
// It is never mutated after construction; a new snapshot supersedes it.
type Dataset struct {
	ratings   []rating.Rating
	pairs     map[pair]int
	userIDs   []int64
	itemIDs   []int64
	maxUserID int64
	maxItemID int64
}

// New builds a snapshot. Duplicate (user, item) pairs keep the newest rating
// (highest timestamp, then last occurrence).
func New(ratings []rating.Rating) *Dataset {
	d := &Dataset{
		ratings:   make([]rating.Rating, 0, len(ratings)),
		pairs:     make(map[pair]int, len(ratings)),
		maxUserID: -1,
		maxItemID: -1,
	}
	users := make(map[int64]struct{})
	items := make(map[int64]struct{})

	for _, r := range ratings {
		k := pair{user: r.UserID(), item: r.ItemID()}
		if idx, ok := d.pairs[k]; ok {
			if r.Timestamp() >= d.ratings[idx].Timestamp() {
				d.ratings[idx] = r
			}
			continue
		}
		d.pairs[k] = len(d.ratings)
		d.ratings = append(d.ratings, r)

		if _, ok := users[r.UserID()]; !ok {
			users[r.UserID()] = struct{}{}
			d.userIDs = append(d.userIDs, r.UserID())
		}
		if _, ok := items[r.ItemID()]; !ok {
			items[r.ItemID()] = struct{}{}
			d.itemIDs = append(d.itemIDs, r.ItemID())
		}
		d.maxUserID = max(d.maxUserID, r.UserID())
		d.maxItemID = max(d.maxItemID, r.ItemID())
	}

	slices.Sort(d.userIDs)
	slices.Sort(d.itemIDs)
	return d
}

// Empty reports whether the snapshot holds no ratings. A nil Dataset is empty.
func (d *Dataset) Empty() bool { return d == nil || len(d.ratings) == 0 }

// Len returns the number of ratings.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.ratings)
}

// Ratings returns the ratings in ingestion order. Callers must not modify the slice.
func (d *Dataset) Ratings() []rating.Rating {
	if d == nil {
		return nil
	}
	return d.ratings
}

// UserIDs returns the distinct user ids in ascending order.
func (d *Dataset) UserIDs() []int64 {
	if d == nil {
		return nil
	}
	return d.userIDs
}

// ItemIDs returns the distinct item ids in ascending order.
func (d *Dataset) ItemIDs() []int64 {
	if d == nil {
		return nil
	}
	return d.itemIDs
}

// MaxUserID returns the largest user id, or -1 when empty.
func (d *Dataset) MaxUserID() int64 {
	if d == nil {
		return -1
	}
	return d.maxUserID
}

// MaxItemID returns the largest item id, or -1 when empty.
func (d *Dataset) MaxItemID() int64 {
	if d == nil {
		return -1
	}
	return d.maxItemID
}

// Contains reports whether the user rated the item.
func (d *Dataset) Contains(userID, itemID int64) bool {
	if d == nil {
		return false
	}
	_, ok := d.pairs[pair{user: userID, item: itemID}]
	return ok
}

// Split assigns every rating independently to the test subset with probability testFraction.
// No stratification by user or item is attempted.
func (d *Dataset) Split(rng *rand.Rand, testFraction float64) (train, test *Dataset) {
	var trainRatings, testRatings []rating.Rating
	for _, r := range d.Ratings() {
		if rng.Float64() < testFraction {
			testRatings = append(testRatings, r)
		} else {
			trainRatings = append(trainRatings, r)
		}
	}
	return New(trainRatings), New(testRatings)
}
