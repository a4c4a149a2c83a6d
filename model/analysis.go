package model

// QueryType classifies the character of a query
type QueryType string

const (
	QueryTypeSpecific    QueryType = "specific"
	QueryTypeExploratory QueryType = "exploratory"
	QueryTypeBalanced    QueryType = "balanced"
)

// RetrievalStrategy names the retrieval plan recommended for a query
type RetrievalStrategy string

const (
	StrategyDense    RetrievalStrategy = "dense"
	StrategySparse   RetrievalStrategy = "sparse"
	StrategyHybrid   RetrievalStrategy = "hybrid"
	StrategyMultiHop RetrievalStrategy = "multi_hop"
)

// QueryAnalysis is the immutable result of classifying a query.
// It is computed once per query and carried into result metadata.
type QueryAnalysis struct {
	Query               string            `json:"query"`
	WordCount           int               `json:"word_count"`
	TechnicalTermCount  int               `json:"technical_term_count"`
	Entropy             float64           `json:"entropy"`
	HasCodeSnippet      bool              `json:"has_code_snippet"`
	QueryType           QueryType         `json:"query_type"`
	RecommendedStrategy RetrievalStrategy `json:"recommended_strategy"`
	Confidence          float64           `json:"confidence"`
	DenseAlpha          float64           `json:"dense_alpha"`
	SparseAlpha         float64           `json:"sparse_alpha"`
}
