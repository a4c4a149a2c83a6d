package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightsNewWeightsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewWeightsDBHandler", func(t *testing.T) {
		weightsDbHandler, err := NewWeightsDBHandler(database, true)
		assert.NoError(t, err, "Expected NewWeightsDBHandler to not return an error")
		require.NotNil(t, weightsDbHandler, "Expected NewWeightsDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewWeightsDBHandler with nil database", func(t *testing.T) {
		_, err := NewWeightsDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating WeightsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil")
	})
}

func TestWeightsUpsert(t *testing.T) {
	_, _, weights := initHandlers(t)

	t.Run("First upsert creates the preference", func(t *testing.T) {
		preference, err := weights.UpsertWeightPreference("user-1", "factory pattern", 0.55, 0.45, true)
		require.NoError(t, err)

		assert.Equal(t, "user-1", preference.UserID)
		assert.Equal(t, "factory pattern", preference.QueryPrefix)
		assert.InDelta(t, 0.55, preference.DenseWeight, 1e-9)
		assert.InDelta(t, 0.45, preference.SparseWeight, 1e-9)
		assert.Equal(t, 1, preference.PositiveCount)
		assert.Equal(t, 0, preference.NegativeCount)
	})

	t.Run("Second upsert updates weights and counters", func(t *testing.T) {
		preference, err := weights.UpsertWeightPreference("user-1", "factory pattern", 0.6, 0.4, true)
		require.NoError(t, err)
		assert.InDelta(t, 0.6, preference.DenseWeight, 1e-9)
		assert.Equal(t, 2, preference.PositiveCount)

		preference, err = weights.UpsertWeightPreference("user-1", "factory pattern", 0.55, 0.45, false)
		require.NoError(t, err)
		assert.Equal(t, 2, preference.PositiveCount)
		assert.Equal(t, 1, preference.NegativeCount)
	})

	t.Run("Preferences are scoped per user and prefix", func(t *testing.T) {
		_, err := weights.UpsertWeightPreference("user-2", "factory pattern", 0.3, 0.7, false)
		require.NoError(t, err)

		preference, err := weights.SelectWeightPreference("user-2", "factory pattern")
		require.NoError(t, err)
		require.NotNil(t, preference)
		assert.Equal(t, 1, preference.NegativeCount)

		other, err := weights.SelectWeightPreference("user-2", "observer pattern")
		require.NoError(t, err)
		assert.Nil(t, other)
	})
}

func TestWeightsSelect(t *testing.T) {
	_, _, weights := initHandlers(t)

	t.Run("Select missing preference returns nil without error", func(t *testing.T) {
		preference, err := weights.SelectWeightPreference("nobody", "no query")
		require.NoError(t, err)
		assert.Nil(t, preference)
	})

	t.Run("Select returns the stored preference", func(t *testing.T) {
		_, err := weights.UpsertWeightPreference("user-3", "mediator", 0.7, 0.3, true)
		require.NoError(t, err)

		preference, err := weights.SelectWeightPreference("user-3", "mediator")
		require.NoError(t, err)
		require.NotNil(t, preference)
		assert.InDelta(t, 0.7, preference.DenseWeight, 1e-9)
		assert.InDelta(t, 0.3, preference.SparseWeight, 1e-9)
	})
}
