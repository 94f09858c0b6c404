package ml

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DRSN-tech/ml-service/internal/cfg"
)

func testClustererCfg() *cfg.ClustererCfg {
	return &cfg.ClustererCfg{
		MinClusterSize:         3,
		MinSamples:             2,
		ClusterSelectionMethod: "eom",
	}
}

// blob генерирует n точек вокруг центра с небольшим разбросом.
func blob(rng *rand.Rand, center []float64, n int, spread float64) [][]float64 {
	points := make([][]float64, n)
	for i := range points {
		p := make([]float64, len(center))
		for j := range p {
			p[j] = center[j] + rng.NormFloat64()*spread
		}
		points[i] = p
	}
	return points
}

func TestClustererSeparatesBlobs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	points := blob(rng, []float64{0, 0}, 10, 0.05)
	points = append(points, blob(rng, []float64{10, 0}, 10, 0.05)...)
	points = append(points, blob(rng, []float64{0, 10}, 10, 0.05)...)

	c := NewClusterer(testClustererCfg())
	labels, probs, err := c.Fit(points)
	require.NoError(t, err)
	require.Len(t, labels, 30)
	require.Len(t, probs, 30)

	stats, err := c.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 3, stats.NumClusters)
	assert.Equal(t, 0, stats.NumOutliers)
	assert.Equal(t, 30, stats.TotalPoints)
	assert.Zero(t, stats.OutlierPercentage)

	// Точки одного сгустка получают одну метку.
	for i := 1; i < 10; i++ {
		assert.Equal(t, labels[0], labels[i])
	}
	assert.NotEqual(t, labels[0], labels[10])
	assert.NotEqual(t, labels[10], labels[20])
}

func TestClustererLabelsAreContiguousFromZero(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	points := blob(rng, []float64{0, 0}, 5, 0.05)
	points = append(points, blob(rng, []float64{20, 20}, 5, 0.05)...)

	c := NewClusterer(testClustererCfg())
	labels, _, err := c.Fit(points)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, l := range labels {
		if l != OutlierLabel {
			seen[l] = true
		}
	}
	assert.True(t, seen[0])
	assert.True(t, seen[1])
	assert.Len(t, seen, 2)
}

func TestClustererSmallComponentsBecomeOutliers(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	points := blob(rng, []float64{0, 0}, 8, 0.05)
	// Пара удалённых точек меньше min_cluster_size.
	points = append(points, []float64{100, 100}, []float64{100.1, 100})

	c := NewClusterer(testClustererCfg())
	labels, probs, err := c.Fit(points)
	require.NoError(t, err)

	assert.Equal(t, OutlierLabel, labels[8])
	assert.Equal(t, OutlierLabel, labels[9])
	assert.Zero(t, probs[8])
	assert.Zero(t, probs[9])

	stats, err := c.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NumClusters)
	assert.Equal(t, 2, stats.NumOutliers)
	assert.InDelta(t, 20.0, stats.OutlierPercentage, 1e-9)
}

func TestClustererEmptyInput(t *testing.T) {
	c := NewClusterer(testClustererCfg())

	_, _, err := c.Fit(nil)
	assert.Error(t, err)
}

func TestClustererTooFewPointsAllOutliers(t *testing.T) {
	c := NewClusterer(testClustererCfg())

	labels, probs, err := c.Fit([][]float64{{0, 0}, {1, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int{OutlierLabel, OutlierLabel}, labels)
	assert.Equal(t, []float64{0, 0}, probs)
}

func TestClustererKeepsClusterOfMinSamplesSize(t *testing.T) {
	cfg := testClustererCfg()
	cfg.MinClusterSize = 2

	points := [][]float64{
		{0, 0}, {0.05, 0},
		{10, 10}, {10.05, 10}, {10, 10.05},
	}

	c := NewClusterer(cfg)
	labels, _, err := c.Fit(points)
	require.NoError(t, err)

	stats, err := c.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NumClusters)
	assert.Equal(t, 0, stats.NumOutliers)

	// Пара остаётся кластером, хотя её размер равен minSamples.
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[2], labels[3])
	assert.Equal(t, labels[2], labels[4])
	assert.NotEqual(t, labels[0], labels[2])
}

func TestClustererSingleDenseGroup(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	c := NewClusterer(testClustererCfg())
	labels, _, err := c.Fit(blob(rng, []float64{1, 1}, 12, 0.05))
	require.NoError(t, err)

	for _, l := range labels {
		assert.Equal(t, 0, l)
	}
}

func TestClustererCentroidsAndPredict(t *testing.T) {
	rng := rand.New(rand.NewSource(21))

	points := blob(rng, []float64{0, 0}, 10, 0.05)
	points = append(points, blob(rng, []float64{10, 10}, 10, 0.05)...)

	c := NewClusterer(testClustererCfg())
	labels, _, err := c.Fit(points)
	require.NoError(t, err)

	centroids, err := c.Centroids()
	require.NoError(t, err)
	require.Len(t, centroids, 2)
	assert.InDelta(t, 0, centroids[labels[0]][0], 0.5)
	assert.InDelta(t, 10, centroids[labels[10]][0], 0.5)

	// Новая точка рядом с первым сгустком попадает в его кластер,
	// далёкая — в шум.
	predicted, probs, err := c.ApproximatePredict([][]float64{
		{0.02, -0.01},
		{50, 50},
	})
	require.NoError(t, err)
	assert.Equal(t, labels[0], predicted[0])
	assert.Greater(t, probs[0], 0.0)
	assert.Equal(t, OutlierLabel, predicted[1])
	assert.Zero(t, probs[1])
}

func TestClustererRepresentativePoints(t *testing.T) {
	rng := rand.New(rand.NewSource(33))

	points := blob(rng, []float64{0, 0}, 10, 0.05)
	points = append(points, blob(rng, []float64{10, 10}, 10, 0.05)...)

	c := NewClusterer(testClustererCfg())
	labels, _, err := c.Fit(points)
	require.NoError(t, err)

	reps, err := c.RepresentativePoints(3)
	require.NoError(t, err)
	require.Len(t, reps, 2)
	for clusterID, idxs := range reps {
		assert.LessOrEqual(t, len(idxs), 3)
		for _, idx := range idxs {
			assert.Equal(t, clusterID, labels[idx])
		}
	}
}

func TestClustererStatisticsRequireFit(t *testing.T) {
	c := NewClusterer(testClustererCfg())

	_, err := c.Statistics()
	assert.Error(t, err)
}
