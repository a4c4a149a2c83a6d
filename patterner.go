package patterner

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/siherrmann/patterner/core/fusion"
	"github.com/siherrmann/patterner/core/graphstore"
	"github.com/siherrmann/patterner/core/pipeline"
	"github.com/siherrmann/patterner/core/sparse"
	"github.com/siherrmann/patterner/database"
	"github.com/siherrmann/patterner/helper"
	"github.com/siherrmann/patterner/model"
	loadSql "github.com/siherrmann/patterner/sql"
)

// Patterner provides a unified interface to the hybrid retrieval engine
type Patterner struct {
	DB       *helper.Database
	Patterns *database.PatternsDBHandler
	Terms    *database.TermsDBHandler
	Weights  *database.WeightsDBHandler
	Pipeline *pipeline.Pipeline // Optional embedding pipeline
	Encoder  *sparse.Encoder
	Graph    *graphstore.Store
	Engine   *fusion.Orchestrator
	// Logging
	log *slog.Logger
}

// NewPatterner creates a new Patterner instance with all handlers
// initialized. A nil engine config falls back to the documented defaults.
func NewPatterner(dbConfig *helper.DatabaseConfiguration, engineConfig *model.EngineConfig, embeddingDim int) (*Patterner, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	if engineConfig == nil {
		engineConfig = model.DefaultEngineConfig()
	}

	// Initialize database
	db := helper.NewDatabase("patterner", dbConfig, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in the correct order (patterns first, since
	// pattern_terms references the patterns table)
	// force=false to not reload if functions already exist
	patterns, err := database.NewPatternsDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create patterns handler", err)
	}

	terms, err := database.NewTermsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create terms handler", err)
	}

	weights, err := database.NewWeightsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create weights handler", err)
	}

	encoder := sparse.NewEncoder(terms)
	graph := graphstore.NewStore(patterns, engineConfig, logger)

	engine, err := fusion.NewOrchestrator(patterns, encoder, graph, weights, engineConfig, logger)
	if err != nil {
		return nil, helper.NewError("create fusion orchestrator", err)
	}

	return &Patterner{
		DB:       db,
		Patterns: patterns,
		Terms:    terms,
		Weights:  weights,
		Encoder:  encoder,
		Graph:    graph,
		Engine:   engine,
		log:      logger,
	}, nil
}

// Close closes the database connection
func (p *Patterner) Close() error {
	if p.DB != nil && p.DB.Instance != nil {
		return p.DB.Instance.Close()
	}
	return nil
}

// SetPipeline sets the embedding pipeline used for queries and patterns
func (p *Patterner) SetPipeline(pipeline *pipeline.Pipeline) {
	p.Pipeline = pipeline
}

// UseDefaultPipeline sets up the default embedding pipeline with the
// all-MiniLM-L6-v2 model (384 dimensions)
func (p *Patterner) UseDefaultPipeline() error {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	p.Pipeline = pipeline.NewPipeline(embedder)
	return nil
}

// IndexPattern embeds and stores one pattern and its term statistics.
// Patterns that already carry an embedding are stored as is.
func (p *Patterner) IndexPattern(ctx context.Context, pattern *model.Pattern) error {
	if len(pattern.Embedding) == 0 {
		if p.Pipeline == nil {
			return helper.NewError("index pattern", fmt.Errorf("pattern has no embedding and no pipeline is set, use SetPipeline() first"))
		}
		if err := p.Pipeline.EmbedPattern(pattern); err != nil {
			return helper.NewError("embed pattern", err)
		}
	}

	if err := p.Patterns.InsertPattern(pattern); err != nil {
		return helper.NewError("insert pattern", err)
	}

	text := pipeline.PatternText(pattern)
	if err := p.Encoder.IndexPattern(ctx, pattern.PatternID(), text); err != nil {
		return helper.NewError("index pattern terms", err)
	}

	p.log.Info("Indexed pattern", slog.String("pattern_id", pattern.PatternID()), slog.String("name", pattern.Name))

	return nil
}

// IndexPatterns indexes a batch of patterns, stopping at the first failure.
// Returns the number of patterns indexed successfully.
func (p *Patterner) IndexPatterns(ctx context.Context, patterns []*model.Pattern) (int, error) {
	for i, pattern := range patterns {
		if err := p.IndexPattern(ctx, pattern); err != nil {
			return i, helper.NewError(fmt.Sprintf("index pattern %d", i), err)
		}
	}

	// The graph is stale once the corpus changed
	p.Graph.ClearCache()

	return len(patterns), nil
}

// DeletePattern removes a pattern. Its term statistics are removed through
// the foreign key cascade.
func (p *Patterner) DeletePattern(rid uuid.UUID) error {
	if err := p.Patterns.DeletePattern(rid); err != nil {
		return err
	}

	p.Graph.ClearCache()

	return nil
}

// Search runs the full fused retrieval for a query: analyze, embed,
// retrieve dense and sparse concurrently, optionally augment with the
// graph, fuse and diversify
func (p *Patterner) Search(ctx context.Context, query string, searchCtx *model.SearchContext) (*model.SearchResponse, error) {
	if p.Pipeline == nil || p.Pipeline.Embedder == nil {
		return nil, helper.NewError("search", fmt.Errorf("pipeline with embedder not set, use SetPipeline() first"))
	}

	embedding, err := p.Pipeline.EmbedQuery(query)
	if err != nil {
		return nil, helper.NewError("generate embedding", err)
	}

	return p.Engine.Search(ctx, query, embedding, searchCtx)
}

// SearchWithEmbedding runs the fused retrieval with a caller-supplied
// query embedding, bypassing the pipeline
func (p *Patterner) SearchWithEmbedding(ctx context.Context, query string, embedding []float32, searchCtx *model.SearchContext) (*model.SearchResponse, error) {
	return p.Engine.Search(ctx, query, embedding, searchCtx)
}

// DenseSearch forces the dense strategy regardless of the analyzer
func (p *Patterner) DenseSearch(ctx context.Context, query string) (*model.SearchResponse, error) {
	return p.Search(ctx, query, &model.SearchContext{StrategyOverride: model.StrategyDense})
}

// SparseSearch forces the sparse strategy regardless of the analyzer
func (p *Patterner) SparseSearch(ctx context.Context, query string) (*model.SearchResponse, error) {
	return p.Search(ctx, query, &model.SearchContext{StrategyOverride: model.StrategySparse})
}

// HybridSearch forces the hybrid strategy with graph augmentation
func (p *Patterner) HybridSearch(ctx context.Context, query string) (*model.SearchResponse, error) {
	return p.Search(ctx, query, &model.SearchContext{StrategyOverride: model.StrategyHybrid})
}

// MultiHopSearch forces the multi-hop strategy with graph augmentation
func (p *Patterner) MultiHopSearch(ctx context.Context, query string) (*model.SearchResponse, error) {
	return p.Search(ctx, query, &model.SearchContext{StrategyOverride: model.StrategyMultiHop})
}

// UpdateAdaptiveWeights records explicit feedback on a query's results and
// nudges the stored weight preference for future queries of this user
func (p *Patterner) UpdateAdaptiveWeights(ctx context.Context, userID string, query string, selectedResultIDs []string, feedback model.Feedback) (*model.WeightPreference, error) {
	return p.Engine.UpdateAdaptiveWeights(ctx, userID, query, selectedResultIDs, feedback)
}

// GetStats returns the engine configuration and sparse index statistics
func (p *Patterner) GetStats() (*fusion.Stats, error) {
	return p.Engine.GetStats()
}

// Traverse explores the pattern graph breadth-first from a pattern
func (p *Patterner) Traverse(ctx context.Context, startID string, maxHops int, beamWidth int) ([]model.GraphResult, error) {
	return p.Graph.Traverse(ctx, startID, maxHops, beamWidth)
}

// MultiHopReasoning returns reasoning chains from a pattern through the graph
func (p *Patterner) MultiHopReasoning(ctx context.Context, startID string, maxHops int) ([]model.ReasonedResult, error) {
	return p.Graph.MultiHopReasoning(ctx, startID, maxHops)
}

// FindSimilarWithGraph separates a pattern's direct neighbors from
// patterns only reachable through intermediate hops
func (p *Patterner) FindSimilarWithGraph(ctx context.Context, startID string, hops int) (*graphstore.GraphSimilarity, error) {
	return p.Graph.FindSimilarWithGraph(ctx, startID, hops)
}

// ExportGraph returns all nodes and edges of the pattern graph
func (p *Patterner) ExportGraph(ctx context.Context) (*graphstore.GraphExport, error) {
	return p.Graph.ExportGraph(ctx)
}

// GetGraphStats returns node, edge and component counts of the pattern graph
func (p *Patterner) GetGraphStats(ctx context.Context) (*graphstore.GraphStats, error) {
	return p.Graph.GetGraphStats(ctx)
}

// ClearGraphCache drops the cached pattern graph
func (p *Patterner) ClearGraphCache() {
	p.Graph.ClearCache()
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (p *Patterner) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return p.Patterns.ChangeIndexType(ctx, indexType, params)
}
