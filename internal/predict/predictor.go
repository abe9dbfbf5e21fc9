// Package predict fits regression models to a crop's weekly weather and
// price table, selects hyperparameters by k-fold grid search and compares
// the model families by held-out error.
package predict

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/crop-cli/internal/model"
)

// Options configures a Predictor.
type Options struct {
	TestSize float64  // held-out share, in (0, 1)
	Seed     uint64   // split and bootstrap seed
	CVFolds  int      // folds for grid search
	Families []Family // families trained by TrainAll; empty means all
	Grid     *Grid    // nil means DefaultGrid
}

// DefaultOptions returns a 0.2 test split, seed 42 and 5-fold CV over every family.
func DefaultOptions() Options {
	return Options{TestSize: 0.2, Seed: 42, CVFolds: 5}
}

// Result is the outcome of one family's grid search.
type Result struct {
	Family         Family        `json:"family"`
	Params         Params        `json:"params"`
	CVMSE          float64       `json:"cv_mse"` // best mean CV MSE on the train split
	Metrics                      // held-out errors of the refitted model
	CVRMSE         *float64      `json:"cv_rmse,omitempty"` // k-fold RMSE over all rows; not computed for forests
	Configurations int           `json:"configurations"`
	Duration       time.Duration `json:"duration"`
}

// SummaryRow is one line of the model summary table.
type SummaryRow struct {
	Model      Family  `json:"model"`
	RMSE       float64 `json:"rmse"`
	MAE        float64 `json:"mae"`
	R2         float64 `json:"r2"`
	BestParams string  `json:"best_params"`
}

// Importance is a feature's share of the forest's impurity decrease.
type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Predictor trains and compares regression models for one crop.
// It is not safe for concurrent use.
type Predictor struct {
	crop     string
	features []string
	x        [][]float64
	y        []float64
	train    []int
	test     []int
	opts     Options
	grid     Grid
	results  map[Family]*Result
	models   map[Family]regressor
	log      *zap.Logger
}

// NewPredictor separates features from the price target and splits the rows
// into train and test sets. Every column other than the target is a feature.
func NewPredictor(table *model.PriceTable, opts Options) (*Predictor, error) {
	if table == nil {
		return nil, eris.Wrap(model.ErrNotLoaded, "predict: no price table")
	}
	def := DefaultOptions()
	if opts.TestSize == 0 {
		opts.TestSize = def.TestSize
	}
	if opts.CVFolds == 0 {
		opts.CVFolds = def.CVFolds
	}
	if opts.TestSize <= 0 || opts.TestSize >= 1 {
		return nil, eris.Errorf("predict: test size must be in (0,1), got %g", opts.TestSize)
	}
	if opts.CVFolds < 2 {
		return nil, eris.Errorf("predict: cv folds must be at least 2, got %d", opts.CVFolds)
	}
	grid := DefaultGrid()
	if opts.Grid != nil {
		grid = *opts.Grid
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	target := table.ColumnIndex(model.TargetColumn)
	if target < 0 {
		return nil, eris.Errorf("predict: %s: missing target column %q", table.Crop, model.TargetColumn)
	}
	var features []int
	for i := range table.Columns {
		if i != target {
			features = append(features, i)
		}
	}
	if len(features) == 0 {
		return nil, eris.Errorf("predict: %s: no feature columns", table.Crop)
	}

	p := &Predictor{
		crop:    table.Crop,
		opts:    opts,
		grid:    grid,
		results: make(map[Family]*Result),
		models:  make(map[Family]regressor),
		log:     zap.L().With(zap.String("component", "predict"), zap.String("crop", table.Crop)),
	}
	for _, i := range features {
		p.features = append(p.features, table.Columns[i])
	}
	for _, row := range table.Rows {
		x := make([]float64, len(features))
		for k, i := range features {
			x[k] = row[i]
		}
		p.x = append(p.x, x)
		p.y = append(p.y, row[target])
	}

	n := len(p.x)
	if n < 2 {
		return nil, eris.Errorf("predict: %s: need at least 2 rows, got %d", table.Crop, n)
	}
	p.train, p.test = shuffleSplit(n, opts.TestSize, opts.Seed)
	if len(p.train) < opts.CVFolds {
		return nil, eris.Errorf("predict: %s: %d training rows cannot fill %d folds", table.Crop, len(p.train), opts.CVFolds)
	}
	return p, nil
}

// Crop returns the crop the predictor was built for.
func (p *Predictor) Crop() string { return p.crop }

// Features returns the feature column names in model order.
func (p *Predictor) Features() []string { return append([]string(nil), p.features...) }

// SplitSizes returns the number of train and test rows.
func (p *Predictor) SplitSizes() (train, test int) { return len(p.train), len(p.test) }

// families returns the configured families in training order.
func (p *Predictor) families() []Family {
	if len(p.opts.Families) == 0 {
		return Families
	}
	want := make(map[Family]bool, len(p.opts.Families))
	for _, f := range p.opts.Families {
		want[f] = true
	}
	var out []Family
	for _, f := range Families {
		if want[f] {
			out = append(out, f)
		}
	}
	return out
}

// TrainAll trains every configured family in fixed order.
func (p *Predictor) TrainAll(ctx context.Context) (map[Family]*Result, error) {
	for _, f := range p.families() {
		if _, err := p.Train(ctx, f); err != nil {
			return nil, err
		}
	}
	out := make(map[Family]*Result, len(p.results))
	for f, r := range p.results {
		out[f] = r
	}
	return out, nil
}

// Train grid-searches one family on the train split, refits the best
// configuration and evaluates it on the test split.
func (p *Predictor) Train(ctx context.Context, f Family) (*Result, error) {
	f, err := ParseFamily(string(f))
	if err != nil {
		return nil, err
	}
	start := time.Now()
	configs := p.grid.configurations(f)
	trainX, trainY := subset(p.x, p.y, p.train)
	testX, testY := subset(p.x, p.y, p.test)

	p.log.Info("training model", zap.String("family", string(f)), zap.Int("configurations", len(configs)))

	bestMSE := math.Inf(1)
	var best Params
	found := false
	for _, params := range configs {
		mse, err := crossValidate(ctx, p.fitter(f, params), trainX, trainY, p.opts.CVFolds)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrapf(err, "predict: train %s", f)
			}
			p.log.Debug("configuration failed", zap.String("params", params.Format(f)), zap.Error(err))
			continue
		}
		if !found || mse < bestMSE {
			bestMSE, best, found = mse, params, true
		}
	}
	if !found {
		return nil, eris.Errorf("predict: %s: every %s configuration failed", p.crop, f)
	}

	fitted, err := p.fitter(f, best)(ctx, trainX, trainY)
	if err != nil {
		return nil, eris.Wrapf(err, "predict: refit %s", f)
	}

	res := &Result{
		Family:         f,
		Params:         best,
		CVMSE:          bestMSE,
		Metrics:        evaluate(predictAll(fitted, testX), testY),
		Configurations: len(configs),
	}
	if f != RandomForest {
		mse, err := crossValidate(ctx, p.fitter(f, best), p.x, p.y, p.opts.CVFolds)
		if err != nil {
			p.log.Warn("full-data cross-validation failed", zap.String("family", string(f)), zap.Error(err))
		} else {
			rmse := math.Sqrt(mse)
			res.CVRMSE = &rmse
		}
	}
	res.Duration = time.Since(start)

	p.results[f] = res
	p.models[f] = fitted

	p.log.Info("model trained",
		zap.String("family", string(f)),
		zap.String("params", best.Format(f)),
		zap.Float64("rmse", res.RMSE),
		zap.Float64("r2", res.R2),
		zap.Duration("elapsed", res.Duration),
	)
	return res, nil
}

func (p *Predictor) fitter(f Family, params Params) fitFunc {
	switch f {
	case Linear:
		return func(_ context.Context, X [][]float64, y []float64) (regressor, error) {
			return fitOLS(X, y, params.FitIntercept)
		}
	case Ridge:
		return func(_ context.Context, X [][]float64, y []float64) (regressor, error) {
			return fitRidge(X, y, params.Alpha)
		}
	case Lasso:
		return func(_ context.Context, X [][]float64, y []float64) (regressor, error) {
			return fitLasso(X, y, params.Alpha)
		}
	case Polynomial:
		return func(_ context.Context, X [][]float64, y []float64) (regressor, error) {
			return fitPolynomial(X, y, params.Degree)
		}
	default:
		return func(ctx context.Context, X [][]float64, y []float64) (regressor, error) {
			return fitForest(ctx, X, y, params, p.opts.Seed)
		}
	}
}

// Result returns the result of a trained family.
func (p *Predictor) Result(f Family) (*Result, bool) {
	r, ok := p.results[f]
	return r, ok
}

// Best returns the trained family with the lowest held-out RMSE. Ties go to
// the family trained first.
func (p *Predictor) Best() (*Result, error) {
	var best *Result
	for _, f := range Families {
		r, ok := p.results[f]
		if !ok {
			continue
		}
		if best == nil || r.RMSE < best.RMSE {
			best = r
		}
	}
	if best == nil {
		return nil, eris.Wrap(model.ErrNotLoaded, "predict: call train first")
	}
	return best, nil
}

// Summary returns one row per trained family sorted by RMSE ascending.
// RMSE and MAE are rounded to 2 decimals, R² to 4.
func (p *Predictor) Summary() ([]SummaryRow, error) {
	if len(p.results) == 0 {
		return nil, eris.Wrap(model.ErrNotLoaded, "predict: call train first")
	}
	var rows []SummaryRow
	for _, f := range Families {
		r, ok := p.results[f]
		if !ok {
			continue
		}
		rows = append(rows, SummaryRow{
			Model:      f,
			RMSE:       round(r.RMSE, 2),
			MAE:        round(r.MAE, 2),
			R2:         round(r.R2, 4),
			BestParams: r.Params.Format(f),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].RMSE < rows[j].RMSE })
	return rows, nil
}

// FeatureImportance returns the forest's feature importances sorted
// descending, or nil when the forest has not been trained.
func (p *Predictor) FeatureImportance() []Importance {
	m, ok := p.models[RandomForest].(*ForestModel)
	if !ok {
		return nil
	}
	out := make([]Importance, len(p.features))
	for i, name := range p.features {
		out[i] = Importance{Feature: name, Importance: m.Importances[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}

// Predict applies a trained family to feature rows in Features() order.
func (p *Predictor) Predict(f Family, rows [][]float64) ([]float64, error) {
	m, ok := p.models[f]
	if !ok {
		return nil, eris.Wrapf(model.ErrNotLoaded, "predict: model %s is not trained", f)
	}
	for i, row := range rows {
		if len(row) != len(p.features) {
			return nil, eris.Errorf("predict: row %d has %d values, want %d", i, len(row), len(p.features))
		}
	}
	return predictAll(m, rows), nil
}

// TestPredictions returns the held-out targets and a trained family's
// predictions for them.
func (p *Predictor) TestPredictions(f Family) (actual, predicted []float64, err error) {
	m, ok := p.models[f]
	if !ok {
		return nil, nil, eris.Wrapf(model.ErrNotLoaded, "predict: model %s is not trained", f)
	}
	testX, testY := subset(p.x, p.y, p.test)
	return testY, predictAll(m, testX), nil
}

// savedModel is the on-disk form of a trained model.
type savedModel struct {
	Crop     string    `json:"crop"`
	Family   Family    `json:"family"`
	Params   Params    `json:"params"`
	Features []string  `json:"features"`
	Metrics  Metrics   `json:"metrics"`
	Model    regressor `json:"model"`
}

// SaveModel writes a trained family's parameters and fitted coefficients or
// trees as JSON. The parent directory is created when missing.
func (p *Predictor) SaveModel(f Family, path string) error {
	m, ok := p.models[f]
	if !ok {
		return eris.Wrapf(model.ErrNotLoaded, "predict: model %s is not trained", f)
	}
	r := p.results[f]
	data, err := json.MarshalIndent(savedModel{
		Crop:     p.crop,
		Family:   f,
		Params:   r.Params,
		Features: p.features,
		Metrics:  r.Metrics,
		Model:    m,
	}, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "predict: encode %s model", f)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "predict: create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "predict: write %s", path)
	}
	return nil
}

// Comparison is one crop's best model.
type Comparison struct {
	Crop      string  `json:"crop"`
	BestModel Family  `json:"best_model"`
	RMSE      float64 `json:"rmse"`
	R2        float64 `json:"r2"`
	PriceStd  float64 `json:"price_std"` // sample standard deviation of the target
}

// Compare trains every configured family for each table and reports the best
// model per crop, in input order.
func Compare(ctx context.Context, tables []*model.PriceTable, opts Options) ([]Comparison, error) {
	out := make([]Comparison, 0, len(tables))
	for _, t := range tables {
		p, err := NewPredictor(t, opts)
		if err != nil {
			return nil, err
		}
		if _, err := p.TrainAll(ctx); err != nil {
			return nil, err
		}
		c, err := p.Comparison()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Comparison reports the best trained family against the target's spread.
func (p *Predictor) Comparison() (Comparison, error) {
	best, err := p.Best()
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		Crop:      p.crop,
		BestModel: best.Family,
		RMSE:      round(best.RMSE, 2),
		R2:        round(best.R2, 4),
		PriceStd:  round(stat.StdDev(p.y, nil), 2),
	}, nil
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
