// Package store records search and model exports in an append-only log.
// Nothing in the search or prediction paths reads it back.
package store

import (
	"context"
	"time"

	"github.com/sells-group/crop-cli/internal/model"
	"github.com/sells-group/crop-cli/internal/predict"
)

// Kind classifies an export.
type Kind string

// Export kinds.
const (
	KindCropSearch   Kind = "crop_search"
	KindRegionSearch Kind = "region_search"
	KindModelSummary Kind = "model_summary"
	KindComparison   Kind = "comparison"
)

// Export is one recorded result set.
type Export struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Query     map[string]string `json:"query,omitempty"`
	Rows      int               `json:"rows"`
	CreatedAt time.Time         `json:"created_at"`
}

// ExportFilter specifies criteria for listing exports.
type ExportFilter struct {
	Kind   Kind `json:"kind,omitempty"`
	Limit  int  `json:"limit,omitempty"`
	Offset int  `json:"offset,omitempty"`
}

// RegionRow is a stored search result row.
type RegionRow struct {
	Rank       int      `json:"rank"`
	RegionCode string   `json:"region_code"`
	Province   string   `json:"province"`
	District   string   `json:"district"`
	Crop       string   `json:"crop"`
	SoilCode   string   `json:"soil_code"`
	BestRatio  *float64 `json:"best_ratio,omitempty"`
	GoodRatio  *float64 `json:"good_ratio,omitempty"`
	Score      *float64 `json:"score,omitempty"`
}

// ModelRow is a stored model summary or comparison row. MAE and BestParams
// are set for summaries, PriceStd for comparisons.
type ModelRow struct {
	Crop       string   `json:"crop"`
	Model      string   `json:"model"`
	RMSE       float64  `json:"rmse"`
	MAE        *float64 `json:"mae,omitempty"`
	R2         float64  `json:"r2"`
	BestParams string   `json:"best_params,omitempty"`
	PriceStd   *float64 `json:"price_std,omitempty"`
}

// Store persists exports.
type Store interface {
	SaveSearch(ctx context.Context, kind Kind, query map[string]string, rows []model.RegionCrop) (*Export, error)
	SaveModelSummary(ctx context.Context, crop string, rows []predict.SummaryRow) (*Export, error)
	SaveComparison(ctx context.Context, rows []predict.Comparison) (*Export, error)
	GetExport(ctx context.Context, id string) (*Export, error)
	ListExports(ctx context.Context, filter ExportFilter) ([]Export, error)
	RegionRows(ctx context.Context, exportID string) ([]RegionRow, error)
	ModelRows(ctx context.Context, exportID string) ([]ModelRow, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
