package analyzer

import (
	"testing"

	"github.com/siherrmann/patterner/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	t.Run("Short specific query favors sparse", func(t *testing.T) {
		analysis := Analyze("factory pattern")

		assert.Equal(t, model.QueryTypeSpecific, analysis.QueryType)
		assert.Equal(t, model.StrategySparse, analysis.RecommendedStrategy)
		assert.Equal(t, 2, analysis.WordCount)
		assert.Equal(t, 2, analysis.TechnicalTermCount)
		assert.Less(t, analysis.DenseAlpha, 0.5, "specific queries should favor sparse")
	})

	t.Run("Long exploratory query favors dense", func(t *testing.T) {
		analysis := Analyze("what is the best way to organize communication between many loosely coupled components in a large application")

		assert.Equal(t, model.QueryTypeExploratory, analysis.QueryType)
		assert.Equal(t, model.StrategyDense, analysis.RecommendedStrategy)
		assert.Greater(t, analysis.DenseAlpha, 0.5, "exploratory queries should favor dense")
	})

	t.Run("Technical query with multiple terms recommends multi-hop", func(t *testing.T) {
		analysis := Analyze("combine the observer pattern with a mediator somehow")

		assert.Equal(t, model.QueryTypeExploratory, analysis.QueryType)
		assert.Equal(t, model.StrategyMultiHop, analysis.RecommendedStrategy)
		assert.GreaterOrEqual(t, analysis.TechnicalTermCount, 2)
	})

	t.Run("Query with code snippet is specific and hybrid", func(t *testing.T) {
		analysis := Analyze("implement `Observer<T>` style notifications")

		assert.True(t, analysis.HasCodeSnippet)
		assert.Equal(t, model.QueryTypeSpecific, analysis.QueryType)
		assert.Equal(t, model.StrategyHybrid, analysis.RecommendedStrategy)
	})

	t.Run("Plain query defaults to balanced", func(t *testing.T) {
		analysis := Analyze("something about separating concerns maybe")

		assert.Equal(t, model.QueryTypeBalanced, analysis.QueryType)
		assert.Equal(t, model.StrategyHybrid, analysis.RecommendedStrategy)
	})

	t.Run("Empty query is balanced with default weights", func(t *testing.T) {
		analysis := Analyze("")

		assert.Equal(t, model.QueryTypeBalanced, analysis.QueryType)
		assert.Equal(t, 0, analysis.WordCount)
		assert.Equal(t, 0.0, analysis.Entropy)
	})
}

func TestAnalyzeWeightNormalization(t *testing.T) {
	queries := []string{
		"",
		"singleton",
		"factory pattern",
		"observer",
		"how should I structure a plugin system so that new plugins can be registered at runtime without changing existing code",
		"implement `Observer<T>` style notifications",
		"decouple subsystems",
		"a query that is deliberately made quite long so that it passes the one hundred character length adjustment threshold easily",
	}

	for _, query := range queries {
		analysis := Analyze(query)

		assert.InDelta(t, 1.0, analysis.DenseAlpha+analysis.SparseAlpha, 1e-9,
			"alphas must sum to 1 for query %q", query)
		assert.GreaterOrEqual(t, analysis.DenseAlpha, 0.1, "dense alpha lower bound for %q", query)
		assert.LessOrEqual(t, analysis.DenseAlpha, 0.9, "dense alpha upper bound for %q", query)
		assert.GreaterOrEqual(t, analysis.SparseAlpha, 0.1, "sparse alpha lower bound for %q", query)
		assert.LessOrEqual(t, analysis.SparseAlpha, 0.9, "sparse alpha upper bound for %q", query)
		assert.GreaterOrEqual(t, analysis.Confidence, 0.0)
		assert.LessOrEqual(t, analysis.Confidence, 0.9)
	}
}

func TestAnalyzeLengthAdjustment(t *testing.T) {
	t.Run("Long query shifts toward dense", func(t *testing.T) {
		short := Analyze("what would be the best way to handle plugin registration cleanly")
		long := Analyze("what would be the best way to handle plugin registration cleanly and how should we organize the plugin discovery code")

		require.Equal(t, short.QueryType, long.QueryType)
		assert.Greater(t, long.DenseAlpha, short.DenseAlpha)
	})

	t.Run("Short query shifts away from dense", func(t *testing.T) {
		analysis := Analyze("decouple stuff")
		// Balanced base 0.5 with the short-query shift applied
		assert.InDelta(t, 0.35, analysis.DenseAlpha, 1e-9)
	})
}

func TestAnalyzeDeterminism(t *testing.T) {
	query := "how to combine factory and strategy patterns for request handling"

	first := Analyze(query)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Analyze(query))
	}
}

func TestAnalyzeConfidence(t *testing.T) {
	t.Run("Confidence grows with technical terms", func(t *testing.T) {
		few := Analyze("using the factory helps with creation logic")
		many := Analyze("using the factory and builder and prototype helps with creation logic")

		assert.Greater(t, many.Confidence, few.Confidence)
	})

	t.Run("Confidence is capped", func(t *testing.T) {
		analysis := Analyze("singleton factory builder prototype adapter bridge composite decorator facade proxy")
		assert.LessOrEqual(t, analysis.Confidence, 0.9)
	})
}
