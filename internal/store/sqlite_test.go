package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crop-cli/internal/model"
	"github.com/sells-group/crop-cli/internal/predict"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func f(v float64) *float64 { return &v }

func sampleRows() []model.RegionCrop {
	return []model.RegionCrop{
		{
			Region: model.Region{Code: "4717051000", Province: "경상북도", District: "경상북도 안동시 중구동"},
			Soil:   model.SoilRecord{Code: "4717010100", Crop: "사과", BestRatio: f(0.9), GoodRatio: f(0.05)},
			Score:  f(0.925),
		},
		{
			Region: model.Region{Code: "4717052000", Province: "경상북도", District: "경상북도 안동시 명륜동"},
			Soil:   model.SoilRecord{Code: "4717010200", Crop: "사과", BestRatio: f(0.2)},
		},
	}
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_SaveSearch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	e, err := st.SaveSearch(ctx, KindCropSearch, map[string]string{"crop": "사과", "top": "10"}, sampleRows())
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 2, e.Rows)

	got, err := st.GetExport(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, KindCropSearch, got.Kind)
	assert.Equal(t, "사과", got.Query["crop"])
	assert.Equal(t, 2, got.Rows)
	assert.False(t, got.CreatedAt.IsZero())

	rows, err := st.RegionRows(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "4717051000", rows[0].RegionCode)
	assert.Equal(t, "4717010100", rows[0].SoilCode)
	require.NotNil(t, rows[0].Score)
	assert.InDelta(t, 0.925, *rows[0].Score, 1e-12)
	assert.Nil(t, rows[1].GoodRatio)
	assert.Nil(t, rows[1].Score)
}

func TestSQLite_SaveSearch_RejectsOtherKinds(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.SaveSearch(context.Background(), KindComparison, nil, sampleRows())
	assert.Error(t, err)
}

func TestSQLite_SaveSearch_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	e, err := st.SaveSearch(ctx, KindRegionSearch, nil, nil)
	require.NoError(t, err)
	got, err := st.GetExport(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Query)
	assert.Equal(t, 0, got.Rows)
}

func TestSQLite_SaveModelSummaryAndComparison(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	summary := []predict.SummaryRow{
		{Model: predict.Lasso, RMSE: 651.71, MAE: 500.5, R2: 0.81, BestParams: "alpha=10"},
		{Model: predict.Linear, RMSE: 700, MAE: 520, R2: 0.79, BestParams: "fit_intercept=true"},
	}
	e, err := st.SaveModelSummary(ctx, "apple", summary)
	require.NoError(t, err)
	assert.Equal(t, KindModelSummary, e.Kind)
	assert.Equal(t, map[string]string{"crop": "apple"}, e.Query)

	c, err := st.SaveComparison(ctx, []predict.Comparison{{Crop: "apple", BestModel: predict.Lasso, RMSE: 651.71, R2: 0.81, PriceStd: 1200}})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Rows)

	var n int
	require.NoError(t, st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM export_models`).Scan(&n))
	assert.Equal(t, 3, n)

	models, err := st.ModelRows(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "lasso", models[0].Model)
	assert.Equal(t, "alpha=10", models[0].BestParams)
	require.NotNil(t, models[0].MAE)
	assert.InDelta(t, 500.5, *models[0].MAE, 1e-12)
	assert.Nil(t, models[0].PriceStd)
	assert.Equal(t, "linear", models[1].Model)

	cmp, err := st.ModelRows(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, cmp, 1)
	assert.Equal(t, "apple", cmp[0].Crop)
	assert.Nil(t, cmp[0].MAE)
	require.NotNil(t, cmp[0].PriceStd)
	assert.InDelta(t, 1200, *cmp[0].PriceStd, 1e-12)

	none, err := st.ModelRows(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_ListExports(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.SaveSearch(ctx, KindCropSearch, nil, sampleRows())
	require.NoError(t, err)
	_, err = st.SaveSearch(ctx, KindRegionSearch, nil, sampleRows()[:1])
	require.NoError(t, err)
	last, err := st.SaveComparison(ctx, nil)
	require.NoError(t, err)

	all, err := st.ListExports(ctx, ExportFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, last.ID, all[0].ID, "newest first")
	assert.Equal(t, first.ID, all[2].ID)

	crop, err := st.ListExports(ctx, ExportFilter{Kind: KindCropSearch})
	require.NoError(t, err)
	require.Len(t, crop, 1)
	assert.Equal(t, first.ID, crop[0].ID)

	page, err := st.ListExports(ctx, ExportFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, KindRegionSearch, page[0].Kind)
}

func TestSQLite_GetExport_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetExport(context.Background(), "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
