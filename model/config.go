package model

import (
	"fmt"
	"time"
)

// EngineConfig represents the flat set of tuning knobs for the hybrid engine.
// All weights are in [0,1]; counts must be positive. Invalid configurations
// are rejected at construction time via Validate.
type EngineConfig struct {
	// Fusion parameters
	MaxResults      int     `json:"max_results"`
	RRFRankConstant float64 `json:"rrf_rank_constant"` // k in 1/(k+rank)
	GraphWeight     float64 `json:"graph_weight"`      // fixed weight for graph signal
	HybridBoost     float64 `json:"hybrid_boost"`      // multiplier for multi-signal matches
	GraphSeedCount  int     `json:"graph_seed_count"`  // top dense hits seeding traversal
	GraphDepth      int     `json:"graph_depth"`       // hops for graph augmentation

	// Diversity parameters
	DiversityThreshold int     `json:"diversity_threshold"` // skip MMR below this candidate count
	MinDiversityScore  float64 `json:"min_diversity_score"` // missing diversity counts as 1
	CoverageWeight     float64 `json:"coverage_weight"`
	DiversityWeight    float64 `json:"diversity_weight"`

	// Graph construction parameters
	NeighborsPerNode    int     `json:"neighbors_per_node"` // k for the kNN graph
	EdgeWeightThreshold float64 `json:"edge_weight_threshold"`
	UseMetadataEdges    bool    `json:"use_metadata_edges"`
	// Metadata edge weights merge additively with vector edges when both
	// exist between a pair. Tunable, not an invariant.
	CategoryEdgeWeight float64 `json:"category_edge_weight"`
	TagEdgeWeight      float64 `json:"tag_edge_weight"`

	// Graph traversal parameters
	MaxHops     int `json:"max_hops"`
	BeamWidth   int `json:"beam_width"`
	BranchLimit int `json:"branch_limit"` // top edges expanded per node

	// Cache and latency parameters
	RebuildInterval time.Duration `json:"rebuild_interval"`
	SignalTimeout   time.Duration `json:"signal_timeout"` // deadline for dense+sparse stage
}

// DefaultEngineConfig returns a sensible default configuration
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MaxResults:          10,
		RRFRankConstant:     60,
		GraphWeight:         0.2,
		HybridBoost:         1.1,
		GraphSeedCount:      3,
		GraphDepth:          2,
		DiversityThreshold:  5,
		MinDiversityScore:   0.0,
		CoverageWeight:      0.7,
		DiversityWeight:     0.3,
		NeighborsPerNode:    10,
		EdgeWeightThreshold: 0.3,
		UseMetadataEdges:    true,
		CategoryEdgeWeight:  0.15,
		TagEdgeWeight:       0.10,
		MaxHops:             2,
		BeamWidth:           10,
		BranchLimit:         3,
		RebuildInterval:     5 * time.Minute,
		SignalTimeout:       2 * time.Second,
	}
}

// Validate checks all knobs eagerly so misconfiguration fails at
// construction time instead of mid-query
func (c *EngineConfig) Validate() error {
	if c.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive, got %d", c.MaxResults)
	}
	if c.RRFRankConstant <= 0 {
		return fmt.Errorf("rrf rank constant must be positive, got %f", c.RRFRankConstant)
	}
	for name, w := range map[string]float64{
		"graph_weight":          c.GraphWeight,
		"min_diversity_score":   c.MinDiversityScore,
		"coverage_weight":       c.CoverageWeight,
		"diversity_weight":      c.DiversityWeight,
		"edge_weight_threshold": c.EdgeWeightThreshold,
		"category_edge_weight":  c.CategoryEdgeWeight,
		"tag_edge_weight":       c.TagEdgeWeight,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be in [0,1], got %f", name, w)
		}
	}
	if c.HybridBoost < 1 {
		return fmt.Errorf("hybrid boost must be at least 1, got %f", c.HybridBoost)
	}
	if c.NeighborsPerNode <= 0 {
		return fmt.Errorf("neighbors per node must be positive, got %d", c.NeighborsPerNode)
	}
	if c.MaxHops < 0 {
		return fmt.Errorf("max hops must not be negative, got %d", c.MaxHops)
	}
	if c.BeamWidth <= 0 {
		return fmt.Errorf("beam width must be positive, got %d", c.BeamWidth)
	}
	if c.BranchLimit <= 0 {
		return fmt.Errorf("branch limit must be positive, got %d", c.BranchLimit)
	}
	if c.GraphSeedCount <= 0 {
		return fmt.Errorf("graph seed count must be positive, got %d", c.GraphSeedCount)
	}
	if c.RebuildInterval <= 0 {
		return fmt.Errorf("rebuild interval must be positive, got %s", c.RebuildInterval)
	}
	if c.SignalTimeout <= 0 {
		return fmt.Errorf("signal timeout must be positive, got %s", c.SignalTimeout)
	}
	return nil
}

// SearchContext optionally scopes a single search call
type SearchContext struct {
	RequestID        string            `json:"request_id,omitempty"`
	UserID           string            `json:"user_id,omitempty"`
	SessionID        string            `json:"session_id,omitempty"`
	StrategyOverride RetrievalStrategy `json:"strategy_override,omitempty"`
}
