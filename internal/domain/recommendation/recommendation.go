package recommendation

// Recommendation is one ranked, metadata-enriched prediction.
type Recommendation struct {
	ItemID     int64
	ExternalID string
	Score      float64
	Title      string
}
