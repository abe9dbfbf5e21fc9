package predict

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crop-cli/internal/model"
)

func TestParseFamily(t *testing.T) {
	for _, f := range Families {
		got, err := ParseFamily(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	got, err := ParseFamily(" Random_Forest ")
	require.NoError(t, err)
	assert.Equal(t, RandomForest, got)

	_, err = ParseFamily("xgboost")
	assert.Error(t, err)
}

func TestDefaultGrid(t *testing.T) {
	g := DefaultGrid()
	require.NoError(t, g.Validate())

	assert.Len(t, g.configurations(Linear), 2)
	assert.Len(t, g.configurations(Ridge), 12)
	assert.Len(t, g.configurations(Lasso), 12)
	assert.Len(t, g.configurations(Polynomial), 3)
	assert.Len(t, g.configurations(RandomForest), 3*4*3*3)
	assert.Empty(t, g.configurations(Family("svm")))

	// Callers get their own slices.
	g.Ridge.Alpha[0] = 99
	assert.Equal(t, 0.001, DefaultGrid().Ridge.Alpha[0])
}

func TestLoadGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
ridge:
  alpha: [0.5, 2]
random_forest:
  n_estimators: [10]
  max_depth: [0, 5]
`), 0o644))

	g, err := LoadGrid(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 2}, g.Ridge.Alpha)
	assert.Equal(t, []int{10}, g.RandomForest.NEstimators)
	assert.Equal(t, []int{0, 5}, g.RandomForest.MaxDepth)

	def := DefaultGrid()
	assert.Equal(t, def.Lasso.Alpha, g.Lasso.Alpha, "unset families keep defaults")
	assert.Equal(t, def.RandomForest.MinSamplesLeaf, g.RandomForest.MinSamplesLeaf)
}

func TestLoadGrid_Errors(t *testing.T) {
	_, err := LoadGrid(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, model.ErrFileNotFound))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("ridge: [unclosed"), 0o644))
	_, err = LoadGrid(bad)
	assert.ErrorContains(t, err, "parse grid file")

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("lasso:\n  alpha: [-1]\npolynomial:\n  degree: []\n"), 0o644))
	_, err = LoadGrid(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lasso.alpha must be positive")
	assert.Contains(t, err.Error(), "polynomial.degree is empty")
}

func TestParams_Format(t *testing.T) {
	assert.Equal(t, "fit_intercept=true", Params{FitIntercept: true}.Format(Linear))
	assert.Equal(t, "alpha=0.01", Params{Alpha: 0.01}.Format(Lasso))
	assert.Equal(t, "degree=2", Params{Degree: 2}.Format(Polynomial))
	assert.Equal(t,
		"max_depth=none min_samples_leaf=1 min_samples_split=2 n_estimators=50",
		Params{NEstimators: 50, MinSamplesSplit: 2, MinSamplesLeaf: 1}.Format(RandomForest))
	assert.Equal(t,
		"max_depth=10 min_samples_leaf=4 min_samples_split=5 n_estimators=100",
		Params{NEstimators: 100, MaxDepth: 10, MinSamplesSplit: 5, MinSamplesLeaf: 4}.Format(RandomForest))
}
