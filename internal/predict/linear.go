package predict

import (
	"math"

	"github.com/YuminosukeSato/scigo/linear"
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Lasso coordinate descent limits.
const (
	lassoMaxIter = 1000
	lassoTol     = 1e-4
)

// regressor is a fitted model.
type regressor interface {
	Predict(x []float64) float64
}

// LinearModel is a fitted linear predictor: Intercept + Coef·x.
type LinearModel struct {
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

// Predict evaluates the model on one feature row.
func (m *LinearModel) Predict(x []float64) float64 {
	return m.Intercept + floats.Dot(m.Coef, x)
}

// PolynomialModel is a linear model over polynomial feature terms. Each term
// is the product of the listed feature indices.
type PolynomialModel struct {
	Degree int          `json:"degree"`
	Terms  [][]int      `json:"terms"`
	Linear *LinearModel `json:"linear"`
}

// Predict expands x and evaluates the underlying linear model.
func (m *PolynomialModel) Predict(x []float64) float64 {
	return m.Linear.Predict(expandRow(x, m.Terms))
}

// centered holds a design matrix and target with column means removed.
type centered struct {
	x     *mat.Dense
	y     *mat.VecDense
	xMean []float64
	yMean float64
}

func center(X [][]float64, y []float64, intercept bool) centered {
	n, p := len(X), len(X[0])
	c := centered{
		x:     mat.NewDense(n, p, nil),
		y:     mat.NewVecDense(n, nil),
		xMean: make([]float64, p),
	}
	if intercept {
		col := make([]float64, n)
		for j := 0; j < p; j++ {
			for i := range X {
				col[i] = X[i][j]
			}
			c.xMean[j] = stat.Mean(col, nil)
		}
		c.yMean = stat.Mean(y, nil)
	}
	for i := range X {
		for j := 0; j < p; j++ {
			c.x.Set(i, j, X[i][j]-c.xMean[j])
		}
		c.y.SetVec(i, y[i]-c.yMean)
	}
	return c
}

func (c centered) model(w []float64) *LinearModel {
	return &LinearModel{
		Intercept: c.yMean - floats.Dot(c.xMean, w),
		Coef:      w,
	}
}

// fitOLS solves ordinary least squares. With an intercept the fit goes
// through scigo; a failed scigo fit and every no-intercept fit fall back to
// the SVD solver, which gives rank-deficient systems the minimum-norm
// solution.
func fitOLS(X [][]float64, y []float64, intercept bool) (*LinearModel, error) {
	if err := checkDesign(X, y); err != nil {
		return nil, err
	}
	if intercept {
		if m, err := fitSciGo(X, y); err == nil {
			return m, nil
		}
	}
	c := center(X, y, intercept)
	w, err := leastSquares(c.x, c.y)
	if err != nil {
		return nil, err
	}
	return c.model(w), nil
}

// fitSciGo fits scigo's LinearRegression and reads the intercept and
// coefficients back by predicting the origin and each unit vector.
func fitSciGo(X [][]float64, y []float64) (*LinearModel, error) {
	n, p := len(X), len(X[0])
	xm := mat.NewDense(n, p, nil)
	for i, row := range X {
		xm.SetRow(i, row)
	}
	lr := linear.NewLinearRegression()
	if err := lr.Fit(xm, mat.NewDense(n, 1, append([]float64(nil), y...))); err != nil {
		return nil, eris.Wrap(err, "predict: scigo fit")
	}

	probe := mat.NewDense(p+1, p, nil)
	for j := 0; j < p; j++ {
		probe.Set(j+1, j, 1)
	}
	out, err := lr.Predict(probe)
	if err != nil {
		return nil, eris.Wrap(err, "predict: scigo predict")
	}
	m := &LinearModel{Intercept: out.At(0, 0), Coef: make([]float64, p)}
	for j := range m.Coef {
		m.Coef[j] = out.At(j+1, 0) - m.Intercept
	}
	if math.IsNaN(m.Intercept) || floats.HasNaN(m.Coef) {
		return nil, eris.New("predict: scigo fit produced NaN coefficients")
	}
	return m, nil
}

func leastSquares(a *mat.Dense, b *mat.VecDense) ([]float64, error) {
	rows, cols := a.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, eris.New("predict: svd factorization failed")
	}
	rcond := float64(max(rows, cols)) * 2.220446049250313e-16
	rank := svd.Rank(rcond)
	if rank == 0 {
		return make([]float64, cols), nil
	}
	var w mat.VecDense
	svd.SolveVecTo(&w, b, rank)
	return vecData(&w, cols), nil
}

// fitRidge solves the L2-penalized normal equations (XᵀX + αI)w = Xᵀy on
// centered data, leaving the intercept unpenalized.
func fitRidge(X [][]float64, y []float64, alpha float64) (*LinearModel, error) {
	if err := checkDesign(X, y); err != nil {
		return nil, err
	}
	c := center(X, y, true)
	_, p := c.x.Dims()

	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, c.x.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}

	var xty mat.VecDense
	xty.MulVec(c.x.T(), c.y)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return nil, eris.Errorf("predict: ridge system not positive definite (alpha=%g)", alpha)
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &xty); err != nil {
		return nil, eris.Wrap(err, "predict: ridge solve")
	}
	return c.model(vecData(&w, p)), nil
}

// fitLasso minimizes (1/2n)·‖y − Xw‖² + α·‖w‖₁ by cyclic coordinate descent
// on centered data.
func fitLasso(X [][]float64, y []float64, alpha float64) (*LinearModel, error) {
	if err := checkDesign(X, y); err != nil {
		return nil, err
	}
	c := center(X, y, true)
	n, p := c.x.Dims()

	cols := make([][]float64, p)
	norms := make([]float64, p)
	for j := 0; j < p; j++ {
		cols[j] = mat.Col(nil, j, c.x)
		norms[j] = floats.Dot(cols[j], cols[j])
	}
	resid := vecData(c.y, n)
	w := make([]float64, p)
	threshold := alpha * float64(n)

	for iter := 0; iter < lassoMaxIter; iter++ {
		var maxDelta, maxW float64
		for j := 0; j < p; j++ {
			if norms[j] == 0 {
				continue
			}
			old := w[j]
			rho := floats.Dot(cols[j], resid) + old*norms[j]
			w[j] = softThreshold(rho, threshold) / norms[j]
			if d := w[j] - old; d != 0 {
				floats.AddScaled(resid, -d, cols[j])
				maxDelta = math.Max(maxDelta, math.Abs(d))
			}
			maxW = math.Max(maxW, math.Abs(w[j]))
		}
		if maxW == 0 || maxDelta <= lassoTol*maxW {
			break
		}
	}
	return c.model(w), nil
}

func softThreshold(v, t float64) float64 {
	switch {
	case v > t:
		return v - t
	case v < -t:
		return v + t
	default:
		return 0
	}
}

// fitPolynomial expands X to every monomial of total degree 1..degree and
// fits OLS with an intercept.
func fitPolynomial(X [][]float64, y []float64, degree int) (*PolynomialModel, error) {
	if err := checkDesign(X, y); err != nil {
		return nil, err
	}
	terms := polynomialTerms(len(X[0]), degree)
	expanded := make([][]float64, len(X))
	for i, row := range X {
		expanded[i] = expandRow(row, terms)
	}
	lm, err := fitOLS(expanded, y, true)
	if err != nil {
		return nil, err
	}
	return &PolynomialModel{Degree: degree, Terms: terms, Linear: lm}, nil
}

// polynomialTerms lists index combinations with replacement, grouped by
// degree: [0] [1] ... [0 0] [0 1] ... [p-1 p-1 p-1].
func polynomialTerms(p, degree int) [][]int {
	var terms [][]int
	var walk func(start int, cur []int, remaining int)
	walk = func(start int, cur []int, remaining int) {
		if remaining == 0 {
			terms = append(terms, append([]int(nil), cur...))
			return
		}
		for j := start; j < p; j++ {
			walk(j, append(cur, j), remaining-1)
		}
	}
	for d := 1; d <= degree; d++ {
		walk(0, nil, d)
	}
	return terms
}

func expandRow(x []float64, terms [][]int) []float64 {
	out := make([]float64, len(terms))
	for k, term := range terms {
		v := 1.0
		for _, j := range term {
			v *= x[j]
		}
		out[k] = v
	}
	return out
}

func vecData(v mat.Vector, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

func checkDesign(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X[0]) == 0 {
		return eris.New("predict: empty design matrix")
	}
	if len(X) != len(y) {
		return eris.Errorf("predict: %d rows but %d targets", len(X), len(y))
	}
	return nil
}
