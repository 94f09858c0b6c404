package ml

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/ml-service/internal/cfg"
)

func testReducerCfg() *cfg.ReducerCfg {
	return &cfg.ReducerCfg{
		NComponentsCluster: 5,
		NComponentsViz:     2,
		NNeighbors:         15,
		Metric:             MetricCosine,
		MinDist:            0.1,
		RandomState:        42,
	}
}

func randomVectors(n, dim int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	vectors := make([][]float64, n)
	for i := range vectors {
		vectors[i] = make([]float64, dim)
		for j := range vectors[i] {
			vectors[i][j] = rng.NormFloat64()
		}
	}
	return vectors
}

func TestReducerFitTransformShape(t *testing.T) {
	r := NewReducerForClustering(testReducerCfg())

	reduced, err := r.FitTransform(randomVectors(20, 384, 1))
	require.NoError(t, err)

	require.Len(t, reduced, 20)
	for _, row := range reduced {
		assert.Len(t, row, 5)
	}
}

func TestReducerVisualizationPreset(t *testing.T) {
	r := NewReducerForVisualization(testReducerCfg())
	assert.Equal(t, 2, r.NComponents())

	reduced, err := r.FitTransform(randomVectors(10, 50, 2))
	require.NoError(t, err)
	for _, row := range reduced {
		assert.Len(t, row, 2)
	}
}

func TestReducerDeterministic(t *testing.T) {
	vectors := randomVectors(15, 64, 3)

	first, err := NewReducerForClustering(testReducerCfg()).FitTransform(vectors)
	require.NoError(t, err)
	second, err := NewReducerForClustering(testReducerCfg()).FitTransform(vectors)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		for j := range first[i] {
			assert.InDelta(t, first[i][j], second[i][j], 1e-12)
		}
	}
}

func TestReducerPadsWhenFewerDimensions(t *testing.T) {
	// При 4 точках в трёхмерном пространстве полных 5 компонент не существует,
	// недостающие заполняются нулями.
	r := NewReducerForClustering(testReducerCfg())

	reduced, err := r.FitTransform(randomVectors(4, 3, 4))
	require.NoError(t, err)
	for _, row := range reduced {
		require.Len(t, row, 5)
		assert.Zero(t, row[4])
	}
}

func TestReducerEmptyInput(t *testing.T) {
	r := NewReducerForClustering(testReducerCfg())

	_, err := r.FitTransform(nil)
	assert.Error(t, err)
}

func TestReducerTransformProjectsNewVectors(t *testing.T) {
	r := NewReducerForVisualization(testReducerCfg())

	train := randomVectors(12, 30, 5)
	_, err := r.FitTransform(train)
	require.NoError(t, err)

	projected, err := r.Transform(randomVectors(3, 30, 6))
	require.NoError(t, err)
	require.Len(t, projected, 3)
	for _, row := range projected {
		assert.Len(t, row, 2)
		for _, v := range row {
			assert.False(t, math.IsNaN(v))
		}
	}
}

func TestReducerTransformRequiresFit(t *testing.T) {
	r := NewReducerForVisualization(testReducerCfg())

	_, err := r.Transform(randomVectors(1, 30, 7))
	assert.Error(t, err)
}
