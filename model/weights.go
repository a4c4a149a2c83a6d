package model

// Feedback is explicit user feedback on a set of search results
type Feedback string

const (
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// WeightPreference is a persisted per-user fusion weight preference,
// keyed by user and normalized query prefix
type WeightPreference struct {
	UserID        string  `json:"user_id"`
	QueryPrefix   string  `json:"query_prefix"`
	DenseWeight   float64 `json:"dense_weight"`
	SparseWeight  float64 `json:"sparse_weight"`
	PositiveCount int     `json:"positive_count"`
	NegativeCount int     `json:"negative_count"`
}

// TermPosting records one pattern's frequency for a single term
type TermPosting struct {
	PatternID string `json:"pattern_id"`
	Term      string `json:"term"`
	Frequency int    `json:"frequency"`
}
