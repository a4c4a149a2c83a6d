package pipeline

import (
	"fmt"
	"testing"

	"github.com/siherrmann/patterner/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternText(t *testing.T) {
	pattern := &model.Pattern{
		Name:        "Observer",
		Description: "notifies listeners about state changes",
		Tags:        []string{"events", "behavioral"},
	}

	assert.Equal(t, "Observer. notifies listeners about state changes. events behavioral", PatternText(pattern))

	pattern.Tags = nil
	assert.Equal(t, "Observer. notifies listeners about state changes", PatternText(pattern))
}

func TestEmbedPattern(t *testing.T) {
	calls := 0
	pipeline := NewPipeline(func(text string) ([]float32, error) {
		calls++
		return []float32{float32(len(text))}, nil
	})

	t.Run("Attaches the embedding", func(t *testing.T) {
		pattern := &model.Pattern{Name: "Observer", Description: "notifies listeners"}

		err := pipeline.EmbedPattern(pattern)
		require.NoError(t, err)
		assert.NotEmpty(t, pattern.Embedding)
		assert.Equal(t, 1, calls)
	})

	t.Run("Keeps an existing embedding", func(t *testing.T) {
		pattern := &model.Pattern{Name: "Observer", Embedding: []float32{1, 2, 3}}

		err := pipeline.EmbedPattern(pattern)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 2, 3}, pattern.Embedding)
	})

	t.Run("Propagates embedder errors", func(t *testing.T) {
		failing := NewPipeline(func(text string) ([]float32, error) {
			return nil, fmt.Errorf("model not loaded")
		})

		err := failing.EmbedPattern(&model.Pattern{Name: "Observer"})
		require.Error(t, err)
	})
}
