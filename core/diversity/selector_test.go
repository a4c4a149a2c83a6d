package diversity

import (
	"testing"

	"github.com/siherrmann/patterner/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	t.Run("Identical vectors have similarity 1", func(t *testing.T) {
		assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	})

	t.Run("Orthogonal vectors have similarity 0", func(t *testing.T) {
		assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	})

	t.Run("Opposite vectors have similarity -1", func(t *testing.T) {
		assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	})

	t.Run("Zero or mismatched vectors yield 0", func(t *testing.T) {
		assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
		assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
		assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	})
}

func TestSelect(t *testing.T) {
	selector := NewSelector(0.7, 0.3, CosineSimilarity)

	candidates := func() []*model.BlendedResult {
		return []*model.BlendedResult{
			{PatternID: "factory-method", FinalScore: 0.9},
			{PatternID: "abstract-factory", FinalScore: 0.85},
			{PatternID: "observer", FinalScore: 0.6},
			{PatternID: "singleton", FinalScore: 0.5},
		}
	}
	// Factory method and abstract factory are near-duplicates, observer
	// points in a different direction entirely
	embeddings := map[string][]float32{
		"factory-method":   {1, 0, 0},
		"abstract-factory": {0.99, 0.1, 0},
		"observer":         {0, 1, 0},
		"singleton":        {0, 0.2, 1},
	}

	t.Run("Returns exactly min of target size and candidate count", func(t *testing.T) {
		assert.Len(t, selector.Select(candidates(), embeddings, 2), 2)
		assert.Len(t, selector.Select(candidates(), embeddings, 10), 4)
		assert.Empty(t, selector.Select(candidates(), embeddings, 0))
		assert.Empty(t, selector.Select(nil, embeddings, 3))
	})

	t.Run("Highest relevance is selected first", func(t *testing.T) {
		selected := selector.Select(candidates(), embeddings, 3)
		require.NotEmpty(t, selected)
		assert.Equal(t, "factory-method", selected[0].PatternID)
	})

	t.Run("Near duplicate is demoted behind a diverse candidate", func(t *testing.T) {
		selected := selector.Select(candidates(), embeddings, 3)
		require.Len(t, selected, 3)

		// Abstract factory scores higher on relevance but is almost
		// identical to the already selected factory method
		assert.Equal(t, "observer", selected[1].PatternID)
		assert.Equal(t, "abstract-factory", selected[2].PatternID)
	})

	t.Run("Selections record their MMR score", func(t *testing.T) {
		selected := selector.Select(candidates(), embeddings, 4)
		for _, result := range selected {
			require.NotNil(t, result.DiversityScore)
		}

		// First pick has no selected set yet, so diversity is full
		assert.InDelta(t, 0.7*0.9+0.3, *selected[0].DiversityScore, 1e-9)
	})

	t.Run("Missing embeddings count as fully diverse", func(t *testing.T) {
		noEmbeddings := selector.Select(candidates(), map[string][]float32{}, 4)
		require.Len(t, noEmbeddings, 4)

		// Without similarity information the order falls back to relevance
		assert.Equal(t, "factory-method", noEmbeddings[0].PatternID)
		assert.Equal(t, "abstract-factory", noEmbeddings[1].PatternID)
	})
}
