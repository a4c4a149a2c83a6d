package model

// MatchType identifies the retrieval signal that produced a match.
// The set is closed; fusion switches exhaustively over it.
type MatchType string

const (
	MatchTypeDense  MatchType = "dense"
	MatchTypeSparse MatchType = "sparse"
	MatchTypeGraph  MatchType = "graph"
)

// DenseResult is a single nearest-neighbor hit from the dense lookup
type DenseResult struct {
	PatternID  string  `json:"pattern_id"`
	Similarity float64 `json:"similarity"`
	Distance   float64 `json:"distance"`
	Rank       int     `json:"rank"` // 1-based, descending by similarity
}

// TermMatch explains the contribution of one query term to a sparse score
type TermMatch struct {
	Term                string  `json:"term"`
	TermFrequency       int     `json:"term_frequency"`
	InverseDocFrequency float64 `json:"inverse_doc_frequency"`
	Weight              float64 `json:"weight"`
}

// SparseResult is a single TF-IDF hit from the sparse encoder
type SparseResult struct {
	PatternID   string      `json:"pattern_id"`
	Score       float64     `json:"score"` // min-max normalized to [0,1] per query
	TermMatches []TermMatch `json:"term_matches,omitempty"`
	Rank        int         `json:"rank"` // 1-based, descending by score
}

// GraphResult is a single multi-hop hit from the graph store
type GraphResult struct {
	PatternID       string    `json:"pattern_id"`
	Path            []string  `json:"path"` // node ids from seed to target, no repeats
	Hops            int       `json:"hops"`
	EdgeWeights     []float64 `json:"edge_weights"` // aligned to path transitions
	CumulativeScore float64   `json:"cumulative_score"`
}

// ReasoningStep annotates one hop of a reasoning chain
type ReasoningStep struct {
	PatternID  string  `json:"pattern_id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ReasonedResult is a graph result with its reasoning chain and decayed score
type ReasonedResult struct {
	GraphResult
	Steps      []ReasoningStep `json:"steps"`
	FinalScore float64         `json:"final_score"`
}

// BlendedMetadata carries the per-query analysis and weights into each result
type BlendedMetadata struct {
	Analysis     *QueryAnalysis `json:"analysis,omitempty"`
	DenseWeight  float64        `json:"dense_weight"`
	SparseWeight float64        `json:"sparse_weight"`
	GraphWeight  float64        `json:"graph_weight"`
}

// BlendedResult is a fused, diversified candidate returned by a search
type BlendedResult struct {
	PatternID      string          `json:"pattern_id"`
	FinalScore     float64         `json:"final_score"` // clamped to [0,1]
	DenseScore     float64         `json:"dense_score"`
	SparseScore    float64         `json:"sparse_score"`
	GraphScore     float64         `json:"graph_score"`
	MatchTypes     []MatchType     `json:"match_types"`
	Reasons        []string        `json:"reasons"`
	DiversityScore *float64        `json:"diversity_score,omitempty"`
	Metadata       BlendedMetadata `json:"metadata"`
}

// MatchedBy reports whether a result was produced by the given signal
func (r *BlendedResult) MatchedBy(t MatchType) bool {
	for _, mt := range r.MatchTypes {
		if mt == t {
			return true
		}
	}
	return false
}

// SignalStatus reports whether a retrieval signal contributed results or
// degraded to an empty list. Callers can distinguish "no matches" from
// "signal unavailable" without relying on errors.
type SignalStatus struct {
	Signal   MatchType `json:"signal"`
	Count    int       `json:"count"`
	Degraded bool      `json:"degraded"`
	Error    string    `json:"error,omitempty"`
}

// SearchResponse is the full output of one fused search call
type SearchResponse struct {
	Results  []*BlendedResult `json:"results"`
	Analysis *QueryAnalysis   `json:"analysis"`
	Signals  []SignalStatus   `json:"signals"`
}
