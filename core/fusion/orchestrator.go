// Package fusion is the entry point of the retrieval engine. It runs the
// dense and sparse signals concurrently, optionally augments them with
// graph traversal, merges the ranked lists with reciprocal rank fusion
// and diversifies the final list.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/siherrmann/patterner/core/analyzer"
	"github.com/siherrmann/patterner/core/diversity"
	"github.com/siherrmann/patterner/core/graphstore"
	"github.com/siherrmann/patterner/core/sparse"
	"github.com/siherrmann/patterner/helper"
	"github.com/siherrmann/patterner/model"
)

// Catalog defines the pattern catalog operations the orchestrator depends on
type Catalog interface {
	SelectAllPatterns() ([]*model.Pattern, error)
	SelectPatternsBySimilarity(embedding []float32, limit int, threshold float64) ([]model.DenseResult, error)
	SelectPatternEmbeddings(patternIDs []string) (map[string][]float32, error)
}

// WeightsStore persists per-user fusion weight preferences
type WeightsStore interface {
	UpsertWeightPreference(userID string, queryPrefix string, denseWeight float64, sparseWeight float64, positive bool) (*model.WeightPreference, error)
	SelectWeightPreference(userID string, queryPrefix string) (*model.WeightPreference, error)
}

const (
	// candidatePoolMultiplier widens the per-signal candidate pool beyond
	// MaxResults so fusion and diversification have material to work with
	candidatePoolMultiplier = 3
	// weightNudge is applied to the preferred signal on explicit feedback
	weightNudge = 0.05
	// queryPrefixLength keys adaptive weight preferences by the query start
	queryPrefixLength = 50
)

// Orchestrator fuses dense, sparse and graph retrieval into one ranked list
type Orchestrator struct {
	catalog  Catalog
	encoder  *sparse.Encoder
	graph    *graphstore.Store
	selector *diversity.Selector
	weights  WeightsStore
	config   *model.EngineConfig
	logger   *slog.Logger
}

// NewOrchestrator creates a new fusion orchestrator. The configuration is
// validated eagerly so invalid knobs fail here instead of mid-query.
func NewOrchestrator(
	catalog Catalog,
	encoder *sparse.Encoder,
	graph *graphstore.Store,
	weights WeightsStore,
	config *model.EngineConfig,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, helper.NewError("validate config", err)
	}

	return &Orchestrator{
		catalog:  catalog,
		encoder:  encoder,
		graph:    graph,
		selector: diversity.NewSelector(config.CoverageWeight, config.DiversityWeight, diversity.CosineSimilarity),
		weights:  weights,
		config:   config,
		logger:   logger,
	}, nil
}

// Search is the sole retrieval entry point. It analyzes the query, runs
// dense and sparse retrieval concurrently under a shared deadline,
// augments with graph traversal for hybrid and multi-hop strategies,
// fuses all signals with weighted RRF and diversifies the result list.
// A failing signal degrades to an empty contribution and is reported in
// the response's signal statuses, never as a search error.
func (o *Orchestrator) Search(ctx context.Context, queryText string, queryEmbedding []float32, searchCtx *model.SearchContext) (*model.SearchResponse, error) {
	analysis := analyzer.Analyze(queryText)

	strategy := analysis.RecommendedStrategy
	if searchCtx != nil && searchCtx.StrategyOverride != "" {
		strategy = searchCtx.StrategyOverride
	}

	denseWeight, sparseWeight := o.resolveWeights(analysis, searchCtx)

	poolSize := o.config.MaxResults * candidatePoolMultiplier
	denseResults, sparseResults, signals := o.retrieveConcurrently(ctx, queryText, queryEmbedding, poolSize)

	var graphResults []model.GraphResult
	if strategy == model.StrategyHybrid || strategy == model.StrategyMultiHop {
		var graphStatus model.SignalStatus
		graphResults, graphStatus = o.augmentWithGraph(ctx, denseResults)
		signals = append(signals, graphStatus)
	}

	candidates := o.fuse(denseResults, sparseResults, graphResults, denseWeight, sparseWeight)

	if len(candidates) > o.config.DiversityThreshold {
		candidates = o.diversify(candidates)
	}

	candidates = o.filterByDiversity(candidates)

	if len(candidates) > o.config.MaxResults {
		candidates = candidates[:o.config.MaxResults]
	}

	for _, candidate := range candidates {
		candidate.Metadata = model.BlendedMetadata{
			Analysis:     analysis,
			DenseWeight:  denseWeight,
			SparseWeight: sparseWeight,
			GraphWeight:  o.config.GraphWeight,
		}
	}

	o.logger.Info("Search completed",
		slog.String("strategy", string(strategy)),
		slog.Int("results", len(candidates)),
	)

	return &model.SearchResponse{
		Results:  candidates,
		Analysis: analysis,
		Signals:  signals,
	}, nil
}

// resolveWeights uses the analyzer's alphas unless the user has a stored
// preference for this query prefix
func (o *Orchestrator) resolveWeights(analysis *model.QueryAnalysis, searchCtx *model.SearchContext) (float64, float64) {
	denseWeight := analysis.DenseAlpha
	sparseWeight := analysis.SparseAlpha

	if o.weights == nil || searchCtx == nil || searchCtx.UserID == "" {
		return denseWeight, sparseWeight
	}

	preference, err := o.weights.SelectWeightPreference(searchCtx.UserID, NormalizeQueryPrefix(analysis.Query))
	if err != nil {
		o.logger.Warn("Failed to load weight preference", slog.String("error", err.Error()))
		return denseWeight, sparseWeight
	}
	if preference != nil {
		denseWeight = preference.DenseWeight
		sparseWeight = preference.SparseWeight
	}

	return denseWeight, sparseWeight
}

type denseOutcome struct {
	results []model.DenseResult
	err     error
}

type sparseOutcome struct {
	results []model.SparseResult
	err     error
}

// retrieveConcurrently issues the dense and sparse lookups in parallel
// under the configured signal timeout. Either signal failing or timing
// out degrades to an empty contribution for that signal only.
func (o *Orchestrator) retrieveConcurrently(ctx context.Context, queryText string, queryEmbedding []float32, limit int) ([]model.DenseResult, []model.SparseResult, []model.SignalStatus) {
	stageCtx, cancel := context.WithTimeout(ctx, o.config.SignalTimeout)
	defer cancel()

	denseCh := make(chan denseOutcome, 1)
	sparseCh := make(chan sparseOutcome, 1)

	go func() {
		if len(queryEmbedding) == 0 {
			denseCh <- denseOutcome{}
			return
		}
		results, err := o.catalog.SelectPatternsBySimilarity(queryEmbedding, limit, 0)
		denseCh <- denseOutcome{results: results, err: err}
	}()

	go func() {
		if err := o.ensureSparseIndex(stageCtx); err != nil {
			sparseCh <- sparseOutcome{err: err}
			return
		}
		results, err := o.encoder.Search(stageCtx, queryText, limit)
		sparseCh <- sparseOutcome{results: results, err: err}
	}()

	dense := collectDense(stageCtx, denseCh)
	sparseRes := collectSparse(stageCtx, sparseCh)

	signals := []model.SignalStatus{
		signalStatus(model.MatchTypeDense, len(dense.results), dense.err),
		signalStatus(model.MatchTypeSparse, len(sparseRes.results), sparseRes.err),
	}

	if dense.err != nil {
		o.logger.Warn("Dense signal degraded", slog.String("error", dense.err.Error()))
		dense.results = nil
	}
	if sparseRes.err != nil {
		o.logger.Warn("Sparse signal degraded", slog.String("error", sparseRes.err.Error()))
		sparseRes.results = nil
	}

	return dense.results, sparseRes.results, signals
}

// collectDense waits for the dense outcome until the deadline. A result
// that arrived together with the deadline is still collected.
func collectDense(ctx context.Context, ch <-chan denseOutcome) denseOutcome {
	select {
	case outcome := <-ch:
		return outcome
	case <-ctx.Done():
		select {
		case outcome := <-ch:
			return outcome
		default:
			return denseOutcome{err: ctx.Err()}
		}
	}
}

// collectSparse waits for the sparse outcome until the deadline. A result
// that arrived together with the deadline is still collected.
func collectSparse(ctx context.Context, ch <-chan sparseOutcome) sparseOutcome {
	select {
	case outcome := <-ch:
		return outcome
	case <-ctx.Done():
		select {
		case outcome := <-ch:
			return outcome
		default:
			return sparseOutcome{err: ctx.Err()}
		}
	}
}

// ensureSparseIndex lazily builds the term index from the full catalog.
// The corpus is only loaded when no term statistics exist yet.
func (o *Orchestrator) ensureSparseIndex(ctx context.Context) error {
	stats, err := o.encoder.Stats()
	if err != nil {
		return err
	}
	if stats.IndexedPatterns > 0 {
		return nil
	}

	patterns, err := o.catalog.SelectAllPatterns()
	if err != nil {
		return err
	}

	return o.encoder.EnsureIndexed(ctx, patterns)
}

// augmentWithGraph traverses the graph from the top dense hits and merges
// all finalized paths into one ranked graph signal, keeping the best path
// per reached pattern. Failures degrade to an empty contribution.
func (o *Orchestrator) augmentWithGraph(ctx context.Context, denseResults []model.DenseResult) ([]model.GraphResult, model.SignalStatus) {
	seedCount := o.config.GraphSeedCount
	if seedCount > len(denseResults) {
		seedCount = len(denseResults)
	}

	best := make(map[string]model.GraphResult)
	var order []string
	for _, seed := range denseResults[:seedCount] {
		paths, err := o.graph.Traverse(ctx, seed.PatternID, o.config.GraphDepth, o.config.BeamWidth)
		if err != nil {
			o.logger.Warn("Graph signal degraded", slog.String("error", err.Error()))
			return nil, signalStatus(model.MatchTypeGraph, 0, err)
		}

		for _, path := range paths {
			existing, ok := best[path.PatternID]
			if !ok {
				order = append(order, path.PatternID)
			}
			if !ok || path.CumulativeScore > existing.CumulativeScore {
				best[path.PatternID] = path
			}
		}
	}

	results := make([]model.GraphResult, 0, len(order))
	for _, patternID := range order {
		results = append(results, best[patternID])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CumulativeScore > results[j].CumulativeScore
	})

	return results, signalStatus(model.MatchTypeGraph, len(results), nil)
}

// fuse merges the per-signal ranked lists with weighted reciprocal rank
// fusion. Candidates are iterated in stable dense, sparse, graph order so
// ties keep the first-encountered position. Patterns matched by more than
// one signal get the hybrid boost, then scores are clamped to [0,1].
func (o *Orchestrator) fuse(
	denseResults []model.DenseResult,
	sparseResults []model.SparseResult,
	graphResults []model.GraphResult,
	denseWeight float64,
	sparseWeight float64,
) []*model.BlendedResult {
	blended := make(map[string]*model.BlendedResult)
	var order []string

	candidate := func(patternID string) *model.BlendedResult {
		if result, ok := blended[patternID]; ok {
			return result
		}
		result := &model.BlendedResult{PatternID: patternID}
		blended[patternID] = result
		order = append(order, patternID)
		return result
	}

	rrf := func(rank int) float64 {
		return 1 / (o.config.RRFRankConstant + float64(rank))
	}

	for _, dense := range denseResults {
		result := candidate(dense.PatternID)
		result.FinalScore += denseWeight * rrf(dense.Rank)
		result.DenseScore = dense.Similarity
		result.MatchTypes = append(result.MatchTypes, model.MatchTypeDense)
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("dense match at rank %d with similarity %.3f", dense.Rank, dense.Similarity))
	}

	for _, sparseResult := range sparseResults {
		result := candidate(sparseResult.PatternID)
		result.FinalScore += sparseWeight * rrf(sparseResult.Rank)
		result.SparseScore = sparseResult.Score
		result.MatchTypes = append(result.MatchTypes, model.MatchTypeSparse)
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("sparse match at rank %d on %s", sparseResult.Rank, matchedTerms(sparseResult)))
	}

	for rank, graph := range graphResults {
		result := candidate(graph.PatternID)
		result.FinalScore += o.config.GraphWeight * rrf(rank+1)
		result.GraphScore = graph.CumulativeScore
		result.MatchTypes = append(result.MatchTypes, model.MatchTypeGraph)
		result.Reasons = append(result.Reasons,
			fmt.Sprintf("reachable in %d hops via related patterns", graph.Hops))
	}

	results := make([]*model.BlendedResult, 0, len(order))
	for _, patternID := range order {
		result := blended[patternID]
		if len(result.MatchTypes) >= 2 {
			result.FinalScore *= o.config.HybridBoost
		}
		result.FinalScore = clamp01(result.FinalScore)
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})

	return results
}

// diversify reorders the candidates with MMR selection over their
// embeddings. Missing embeddings are treated as fully diverse.
func (o *Orchestrator) diversify(candidates []*model.BlendedResult) []*model.BlendedResult {
	patternIDs := make([]string, len(candidates))
	for i, candidate := range candidates {
		patternIDs[i] = candidate.PatternID
	}

	embeddings, err := o.catalog.SelectPatternEmbeddings(patternIDs)
	if err != nil {
		o.logger.Warn("Skipping diversification, embeddings unavailable", slog.String("error", err.Error()))
		return candidates
	}

	return o.selector.Select(candidates, embeddings, o.config.MaxResults)
}

// filterByDiversity drops results whose recorded diversity score falls
// below the configured minimum. A missing score counts as 1, so results
// that skipped diversification are never filtered.
func (o *Orchestrator) filterByDiversity(candidates []*model.BlendedResult) []*model.BlendedResult {
	if o.config.MinDiversityScore <= 0 {
		return candidates
	}

	filtered := candidates[:0]
	for _, candidate := range candidates {
		score := 1.0
		if candidate.DiversityScore != nil {
			score = *candidate.DiversityScore
		}
		if score >= o.config.MinDiversityScore {
			filtered = append(filtered, candidate)
		}
	}

	return filtered
}

// UpdateAdaptiveWeights nudges the persisted weight preference for the
// user and query prefix. Positive feedback shifts weight toward the dense
// signal, negative feedback toward the sparse signal. The change only
// affects future queries, never the one the feedback refers to.
func (o *Orchestrator) UpdateAdaptiveWeights(ctx context.Context, userID string, query string, selectedResultIDs []string, feedback model.Feedback) (*model.WeightPreference, error) {
	if o.weights == nil {
		return nil, helper.NewError("update adaptive weights", fmt.Errorf("no weights store configured"))
	}
	if userID == "" {
		return nil, helper.NewError("update adaptive weights", fmt.Errorf("user id is empty"))
	}

	prefix := NormalizeQueryPrefix(query)

	denseWeight := analyzer.Analyze(query).DenseAlpha
	existing, err := o.weights.SelectWeightPreference(userID, prefix)
	if err != nil {
		return nil, helper.NewError("select weight preference", err)
	}
	if existing != nil {
		denseWeight = existing.DenseWeight
	}

	positive := feedback == model.FeedbackPositive
	if positive {
		denseWeight += weightNudge
	} else {
		denseWeight -= weightNudge
	}
	denseWeight = clampAlpha(denseWeight)

	preference, err := o.weights.UpsertWeightPreference(userID, prefix, denseWeight, 1-denseWeight, positive)
	if err != nil {
		return nil, helper.NewError("upsert weight preference", err)
	}

	o.logger.Info("Updated adaptive weights",
		slog.String("user", userID),
		slog.Int("selected_results", len(selectedResultIDs)),
		slog.Float64("dense_weight", preference.DenseWeight),
	)

	return preference, nil
}

// Stats exposes the engine configuration and the sparse index size
type Stats struct {
	Config      *model.EngineConfig `json:"config"`
	SparseIndex *sparse.IndexStats  `json:"sparse_index"`
}

// GetStats returns the current engine configuration and sparse index stats
func (o *Orchestrator) GetStats() (*Stats, error) {
	indexStats, err := o.encoder.Stats()
	if err != nil {
		return nil, helper.NewError("sparse index stats", err)
	}

	return &Stats{
		Config:      o.config,
		SparseIndex: indexStats,
	}, nil
}

// NormalizeQueryPrefix derives the adaptive weight key from a query:
// lowercased, whitespace collapsed and truncated
func NormalizeQueryPrefix(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if len(normalized) > queryPrefixLength {
		normalized = normalized[:queryPrefixLength]
	}
	return normalized
}

func signalStatus(signal model.MatchType, count int, err error) model.SignalStatus {
	status := model.SignalStatus{
		Signal: signal,
		Count:  count,
	}
	if err != nil {
		status.Degraded = true
		status.Error = err.Error()
		status.Count = 0
	}
	return status
}

func matchedTerms(result model.SparseResult) string {
	terms := make([]string, 0, len(result.TermMatches))
	for _, match := range result.TermMatches {
		terms = append(terms, match.Term)
	}
	if len(terms) == 0 {
		return "no terms"
	}
	return "terms " + strings.Join(terms, ", ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampAlpha(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	if v > 0.9 {
		return 0.9
	}
	return v
}
