package domain

// ScoredItem is a raw model prediction for one item.
type ScoredItem struct {
	ItemID int64
	Score  float64
}

// Model is a trained latent-factor model. Implementations are immutable once trained.
type Model interface {
	// TopN returns at most n items for the user ordered by descending score,
	// ties broken by ascending item id. Items the user rated in the training
	// data are skipped unless includeRated is set. Unknown users yield nil.
	TopN(userID int64, n int, includeRated bool) []ScoredItem
	// Predict returns the predicted score; ok is false when the user or item is unknown.
	Predict(userID, itemID int64) (score float64, ok bool)
	// KnowsUser reports whether the user had ratings in the training data.
	KnowsUser(userID int64) bool
}

// KeyPrefix is the namespace for every key recdex writes to a key-value store.
const KeyPrefix = "recdex:"
