package ml

import (
	"math"
	"sort"

	"github.com/DRSN-tech/ml-service/internal/cfg"
	"github.com/DRSN-tech/ml-service/internal/domain"
	"github.com/DRSN-tech/ml-service/pkg/e"
	"gonum.org/v1/gonum/floats"
)

// OutlierLabel — метка шума, совпадает с доменной.
const OutlierLabel = domain.OutlierLabel

// predictRadiusFactor — допуск при классификации новых точек относительно
// радиуса кластера.
const predictRadiusFactor = 1.2

// gapRatio — минимальное отношение весов соседних рёбер MST, при котором
// скачок считается границей между кластерами.
const gapRatio = 2.0

// Clusterer выполняет плотностную кластеризацию без заранее заданного числа
// кластеров. Алгоритм: core-расстояния по minSamples соседям, минимальное
// остовное дерево по mutual-reachability метрике, разрез по наибольшему
// скачку весов, компоненты меньше minClusterSize помечаются шумом (-1).
type Clusterer struct {
	minClusterSize  int
	minSamples      int
	selectionMethod string

	labels        []int
	probabilities []float64
	centroids     map[int][]float64
	radii         map[int]float64
	points        [][]float64
}

// ClusterStatistics — сводка результата кластеризации.
type ClusterStatistics struct {
	NumClusters       int
	NumOutliers       int
	TotalPoints       int
	OutlierPercentage float64
	ClusterSizes      map[int]int
	ClusterIDs        []int
}

func NewClusterer(cfg *cfg.ClustererCfg) *Clusterer {
	return &Clusterer{
		minClusterSize:  cfg.MinClusterSize,
		minSamples:      cfg.MinSamples,
		selectionMethod: cfg.ClusterSelectionMethod,
	}
}

// Fit кластеризует точки в сниженном пространстве.
// Возвращает метки (-1 для выбросов) и вероятности принадлежности.
func (c *Clusterer) Fit(points [][]float64) ([]int, []float64, error) {
	const op = "Clusterer.Fit"

	n := len(points)
	if n == 0 {
		return nil, nil, e.Wrap(op, e.ErrEmptyVectors)
	}

	dist := distanceMatrix(points)
	core := c.coreDistances(dist)

	edges := minimumSpanningTree(dist, core)
	threshold, hasCut := cutThreshold(edges)

	labels := c.componentLabels(n, edges, threshold, hasCut)

	c.points = points
	c.labels = labels
	c.computeCentroids()
	c.probabilities = c.memberProbabilities()

	return c.labels, c.probabilities, nil
}

// Statistics возвращает статистику последней кластеризации.
func (c *Clusterer) Statistics() (*ClusterStatistics, error) {
	if c.labels == nil {
		return nil, e.ErrNotFitted
	}

	sizes := make(map[int]int)
	outliers := 0
	for _, label := range c.labels {
		if label == OutlierLabel {
			outliers++
			continue
		}
		sizes[label]++
	}

	ids := make([]int, 0, len(sizes))
	for id := range sizes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	total := len(c.labels)
	return &ClusterStatistics{
		NumClusters:       len(ids),
		NumOutliers:       outliers,
		TotalPoints:       total,
		OutlierPercentage: float64(outliers) / float64(total) * 100,
		ClusterSizes:      sizes,
		ClusterIDs:        ids,
	}, nil
}

// Centroids возвращает центроиды кластеров в сниженном пространстве.
func (c *Clusterer) Centroids() (map[int][]float64, error) {
	if c.labels == nil {
		return nil, e.ErrNotFitted
	}
	return c.centroids, nil
}

// RepresentativePoints возвращает индексы n точек, ближайших к центроиду
// каждого кластера.
func (c *Clusterer) RepresentativePoints(n int) (map[int][]int, error) {
	if c.labels == nil {
		return nil, e.ErrNotFitted
	}

	result := make(map[int][]int, len(c.centroids))
	for id, centroid := range c.centroids {
		type pd struct {
			idx int
			d   float64
		}
		var members []pd
		for i, label := range c.labels {
			if label == id {
				members = append(members, pd{i, euclidean(c.points[i], centroid)})
			}
		}
		sort.Slice(members, func(a, b int) bool {
			if members[a].d != members[b].d {
				return members[a].d < members[b].d
			}
			return members[a].idx < members[b].idx
		})

		count := minInt(n, len(members))
		idxs := make([]int, count)
		for i := 0; i < count; i++ {
			idxs[i] = members[i].idx
		}
		result[id] = idxs
	}

	return result, nil
}

// ApproximatePredict классифицирует новые точки по уже обученной модели:
// точка получает метку ближайшего центроида, если попадает в его радиус
// с допуском, иначе остаётся шумом.
func (c *Clusterer) ApproximatePredict(points [][]float64) ([]int, []float64, error) {
	const op = "Clusterer.ApproximatePredict"

	if c.labels == nil {
		return nil, nil, e.Wrap(op, e.ErrNotFitted)
	}

	labels := make([]int, len(points))
	probs := make([]float64, len(points))
	for i, p := range points {
		bestID, bestDist := OutlierLabel, math.Inf(1)
		for id, centroid := range c.centroids {
			if d := euclidean(p, centroid); d < bestDist {
				bestID, bestDist = id, d
			}
		}

		labels[i] = OutlierLabel
		if bestID != OutlierLabel {
			limit := c.radii[bestID] * predictRadiusFactor
			if limit == 0 {
				limit = 1e-9
			}
			if bestDist <= limit {
				labels[i] = bestID
				probs[i] = 1 - bestDist/limit
			}
		}
	}

	return labels, probs, nil
}

func (c *Clusterer) coreDistances(dist [][]float64) []float64 {
	n := len(dist)

	// Точка — свой первый сосед, поэтому core-расстояние это
	// (minSamples-1)-й ближайший из остальных.
	k := c.minSamples - 1
	if k > n-1 {
		k = n - 1
	}

	core := make([]float64, n)
	if k <= 0 {
		return core
	}

	buf := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		buf = buf[:0]
		for j := 0; j < n; j++ {
			if i != j {
				buf = append(buf, dist[i][j])
			}
		}
		sort.Float64s(buf)
		core[i] = buf[k-1]
	}

	return core
}

// componentLabels строит компоненты связности MST после разреза и присваивает
// им метки в порядке первого вхождения точки.
func (c *Clusterer) componentLabels(n int, edges []mstEdge, threshold float64, hasCut bool) []int {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	for _, edge := range edges {
		if hasCut && edge.weight > threshold {
			continue
		}
		a, b := find(edge.a), find(edge.b)
		if a != b {
			parent[b] = a
		}
	}

	sizes := make(map[int]int)
	for i := 0; i < n; i++ {
		sizes[find(i)]++
	}

	labels := make([]int, n)
	next := 0
	assigned := make(map[int]int)
	for i := 0; i < n; i++ {
		root := find(i)
		if sizes[root] < c.minClusterSize {
			labels[i] = OutlierLabel
			continue
		}
		id, ok := assigned[root]
		if !ok {
			id = next
			assigned[root] = id
			next++
		}
		labels[i] = id
	}

	return labels
}

func (c *Clusterer) computeCentroids() {
	c.centroids = make(map[int][]float64)
	c.radii = make(map[int]float64)
	counts := make(map[int]int)

	dim := len(c.points[0])
	for i, label := range c.labels {
		if label == OutlierLabel {
			continue
		}
		if _, ok := c.centroids[label]; !ok {
			c.centroids[label] = make([]float64, dim)
		}
		floats.Add(c.centroids[label], c.points[i])
		counts[label]++
	}

	for label, centroid := range c.centroids {
		floats.Scale(1/float64(counts[label]), centroid)
	}

	for i, label := range c.labels {
		if label == OutlierLabel {
			continue
		}
		if d := euclidean(c.points[i], c.centroids[label]); d > c.radii[label] {
			c.radii[label] = d
		}
	}
}

// memberProbabilities оценивает уверенность принадлежности точки кластеру по
// её удалению от центроида; выбросы получают 0.
func (c *Clusterer) memberProbabilities() []float64 {
	probs := make([]float64, len(c.labels))
	for i, label := range c.labels {
		if label == OutlierLabel {
			continue
		}
		radius := c.radii[label]
		if radius == 0 {
			probs[i] = 1
			continue
		}
		d := euclidean(c.points[i], c.centroids[label])
		probs[i] = 1 - d/(radius*(1+1e-9))
	}
	return probs
}

type mstEdge struct {
	a, b   int
	weight float64
}

// minimumSpanningTree строит MST по mutual-reachability расстояниям (Prim).
func minimumSpanningTree(dist [][]float64, core []float64) []mstEdge {
	n := len(dist)
	if n < 2 {
		return nil
	}

	inTree := make([]bool, n)
	best := make([]float64, n)
	bestFrom := make([]int, n)
	for i := range best {
		best[i] = math.Inf(1)
	}

	inTree[0] = true
	for j := 1; j < n; j++ {
		best[j] = mutualReachability(dist, core, 0, j)
		bestFrom[j] = 0
	}

	edges := make([]mstEdge, 0, n-1)
	for len(edges) < n-1 {
		next, nextWeight := -1, math.Inf(1)
		for j := 0; j < n; j++ {
			if !inTree[j] && best[j] < nextWeight {
				next, nextWeight = j, best[j]
			}
		}

		inTree[next] = true
		edges = append(edges, mstEdge{a: bestFrom[next], b: next, weight: nextWeight})

		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			if w := mutualReachability(dist, core, next, j); w < best[j] {
				best[j] = w
				bestFrom[j] = next
			}
		}
	}

	return edges
}

func mutualReachability(dist [][]float64, core []float64, i, j int) float64 {
	return math.Max(dist[i][j], math.Max(core[i], core[j]))
}

// cutThreshold ищет наибольший скачок в отсортированных весах рёбер MST.
// Скачок засчитывается, только если следующий вес превосходит предыдущий
// минимум в gapRatio раз — иначе дерево остаётся одной компонентой.
func cutThreshold(edges []mstEdge) (float64, bool) {
	if len(edges) < 2 {
		return 0, false
	}

	weights := make([]float64, len(edges))
	for i, edge := range edges {
		weights[i] = edge.weight
	}
	sort.Float64s(weights)

	bestGap, bestIdx := 0.0, -1
	for i := 0; i+1 < len(weights); i++ {
		gap := weights[i+1] - weights[i]
		if gap > bestGap && weights[i+1] > weights[i]*gapRatio+1e-12 {
			bestGap, bestIdx = gap, i
		}
	}

	if bestIdx < 0 {
		return 0, false
	}

	return (weights[bestIdx] + weights[bestIdx+1]) / 2, true
}

func distanceMatrix(points [][]float64) [][]float64 {
	n := len(points)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := euclidean(points[i], points[j])
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
