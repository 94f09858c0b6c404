// Package ml содержит алгоритмические строительные блоки пайплайна анализа:
// снижение размерности, плотностную кластеризацию, маркировку кластеров и
// взвешивание терминов для тем.
package ml

import (
	"math"

	"github.com/DRSN-tech/ml-service/internal/cfg"
	"github.com/DRSN-tech/ml-service/pkg/e"
	"gonum.org/v1/gonum/mat"
)

// MetricCosine — угловая метрика входного пространства embedding-векторов.
const MetricCosine = "cosine"

// Reducer проецирует высокоразмерные embedding-векторы в низкоразмерное
// пространство с евклидовой геометрией. Для угловой метрики строки
// предварительно нормализуются, так что соседство по косинусу переходит в
// соседство по евклидову расстоянию.
//
// Проекция — центрированное усечённое SVD с фиксацией знака компонент,
// поэтому результат полностью детерминирован; randomState сохраняется
// ради совместимости конфигурации пресетов.
type Reducer struct {
	nComponents int
	nNeighbors  int
	metric      string
	minDist     float64
	randomState int64

	mean  []float64
	basis *mat.Dense // D x k, заполняется после FitTransform
}

// NewReducerForClustering создаёт редьюсер с пресетом для кластеризации (5 компонент).
func NewReducerForClustering(cfg *cfg.ReducerCfg) *Reducer {
	return newReducer(cfg, cfg.NComponentsCluster)
}

// NewReducerForVisualization создаёт редьюсер с пресетом для 2D-визуализации.
func NewReducerForVisualization(cfg *cfg.ReducerCfg) *Reducer {
	return newReducer(cfg, cfg.NComponentsViz)
}

func newReducer(cfg *cfg.ReducerCfg, nComponents int) *Reducer {
	return &Reducer{
		nComponents: nComponents,
		nNeighbors:  cfg.NNeighbors,
		metric:      cfg.Metric,
		minDist:     cfg.MinDist,
		randomState: cfg.RandomState,
	}
}

// NComponents возвращает размерность выходного пространства.
func (r *Reducer) NComponents() int {
	return r.nComponents
}

// FitTransform обучает проекцию на векторах и возвращает их сниженное
// представление. Количество строк результата всегда равно len(vectors).
func (r *Reducer) FitTransform(vectors [][]float64) ([][]float64, error) {
	const op = "Reducer.FitTransform"

	n := len(vectors)
	if n == 0 {
		return nil, e.Wrap(op, e.ErrEmptyVectors)
	}

	dim := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dim {
			return nil, e.Wrap(op, e.ErrVectorDimMismatch)
		}
	}

	x := mat.NewDense(n, dim, nil)
	for i, v := range vectors {
		row := v
		if r.metric == MetricCosine {
			row = l2Normalize(v)
		}
		x.SetRow(i, row)
	}

	// Центрирование по столбцам
	r.mean = make([]float64, dim)
	for j := 0; j < dim; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x.At(i, j)
		}
		r.mean[j] = sum / float64(n)
		for i := 0; i < n; i++ {
			x.Set(i, j, x.At(i, j)-r.mean[j])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, e.Wrap(op, e.ErrEmptyVectors)
	}

	var v mat.Dense
	svd.VTo(&v)

	rank := minInt(n, dim)
	k := minInt(r.nComponents, rank)

	// Базис из первых k правых сингулярных векторов с фиксированным знаком:
	// наибольшая по модулю компонента каждого вектора делается положительной.
	r.basis = mat.NewDense(dim, r.nComponents, nil)
	for j := 0; j < k; j++ {
		maxAbs, sign := 0.0, 1.0
		for i := 0; i < dim; i++ {
			if a := math.Abs(v.At(i, j)); a > maxAbs {
				maxAbs = a
				if v.At(i, j) < 0 {
					sign = -1.0
				} else {
					sign = 1.0
				}
			}
		}
		for i := 0; i < dim; i++ {
			r.basis.Set(i, j, sign*v.At(i, j))
		}
	}

	var projected mat.Dense
	projected.Mul(x, r.basis)

	reduced := make([][]float64, n)
	for i := 0; i < n; i++ {
		reduced[i] = make([]float64, r.nComponents)
		for j := 0; j < r.nComponents; j++ {
			reduced[i][j] = projected.At(i, j)
		}
	}

	return reduced, nil
}

// Transform проецирует новые векторы уже обученным базисом.
func (r *Reducer) Transform(vectors [][]float64) ([][]float64, error) {
	const op = "Reducer.Transform"

	if r.basis == nil {
		return nil, e.Wrap(op, e.ErrNotFitted)
	}
	if len(vectors) == 0 {
		return nil, e.Wrap(op, e.ErrEmptyVectors)
	}

	dim := len(r.mean)
	reduced := make([][]float64, len(vectors))
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, e.Wrap(op, e.ErrVectorDimMismatch)
		}

		row := vec
		if r.metric == MetricCosine {
			row = l2Normalize(vec)
		}

		centered := mat.NewDense(1, dim, nil)
		for j := 0; j < dim; j++ {
			centered.Set(0, j, row[j]-r.mean[j])
		}

		var out mat.Dense
		out.Mul(centered, r.basis)

		reduced[i] = make([]float64, r.nComponents)
		for j := 0; j < r.nComponents; j++ {
			reduced[i][j] = out.At(0, j)
		}
	}

	return reduced, nil
}

// l2Normalize возвращает вектор единичной длины; нулевой вектор остаётся нулевым.
func l2Normalize(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)

	out := make([]float64, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
