package predict

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics are held-out regression errors.
type Metrics struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

func evaluate(predicted, actual []float64) Metrics {
	n := float64(len(actual))
	l2 := floats.Distance(predicted, actual, 2)
	mse := l2 * l2 / n
	return Metrics{
		MSE:  mse,
		RMSE: math.Sqrt(mse),
		MAE:  floats.Distance(predicted, actual, 1) / n,
		R2:   stat.RSquaredFrom(predicted, actual, nil),
	}
}

// fitFunc trains one configuration on the given rows.
type fitFunc func(ctx context.Context, X [][]float64, y []float64) (regressor, error)

// shuffleSplit permutes 0..n-1 with a generator seeded by seed and returns
// ceil(testSize*n) test indices and the remaining train indices.
func shuffleSplit(n int, testSize float64, seed uint64) (train, test []int) {
	nTest := int(math.Ceil(testSize * float64(n)))
	nTest = min(max(nTest, 1), n-1)
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest]
}

// kFolds splits 0..n-1 into k contiguous folds. The first n%k folds hold one
// extra row. Each entry is a half-open [start, end) range.
func kFolds(n, k int) [][2]int {
	folds := make([][2]int, 0, k)
	size, extra := n/k, n%k
	start := 0
	for i := 0; i < k; i++ {
		end := start + size
		if i < extra {
			end++
		}
		folds = append(folds, [2]int{start, end})
		start = end
	}
	return folds
}

// crossValidate returns the mean held-out MSE of fit over k contiguous folds.
func crossValidate(ctx context.Context, fit fitFunc, X [][]float64, y []float64, k int) (float64, error) {
	if len(X) < k {
		return 0, eris.Errorf("predict: %d rows cannot be split into %d folds", len(X), k)
	}
	var total float64
	for _, fold := range kFolds(len(X), k) {
		if err := ctx.Err(); err != nil {
			return 0, eris.Wrap(err, "predict: cross-validation cancelled")
		}
		trainX := make([][]float64, 0, len(X)-(fold[1]-fold[0]))
		trainY := make([]float64, 0, cap(trainX))
		trainX = append(append(trainX, X[:fold[0]]...), X[fold[1]:]...)
		trainY = append(append(trainY, y[:fold[0]]...), y[fold[1]:]...)

		m, err := fit(ctx, trainX, trainY)
		if err != nil {
			return 0, err
		}
		total += evaluate(predictAll(m, X[fold[0]:fold[1]]), y[fold[0]:fold[1]]).MSE
	}
	return total / float64(k), nil
}

func predictAll(m regressor, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = m.Predict(row)
	}
	return out
}

func subset(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	sx := make([][]float64, len(idx))
	sy := make([]float64, len(idx))
	for k, i := range idx {
		sx[k] = X[i]
		sy[k] = y[i]
	}
	return sx, sy
}
