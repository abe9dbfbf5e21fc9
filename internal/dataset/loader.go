package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crop-cli/internal/fetcher"
	"github.com/sells-group/crop-cli/internal/model"
)

// Paths locates the input tables.
type Paths struct {
	ProcessedDir string // directory holding the crop and soil tables
	CropPattern  string // crop table name, {crop} replaced by the crop key
	SoilFile     string // soil-suitability table name inside ProcessedDir
}

// DefaultPaths returns the conventional data/processed layout.
func DefaultPaths() Paths {
	return Paths{
		ProcessedDir: filepath.Join("data", "processed"),
		CropPattern:  "final_{crop}.csv",
		SoilFile:     "final_soil_ratio.csv",
	}
}

// CropFile returns the path of a crop's price table.
func (p Paths) CropFile(key string) string {
	pattern := p.CropPattern
	if pattern == "" {
		pattern = DefaultPaths().CropPattern
	}
	return filepath.Join(p.ProcessedDir, strings.ReplaceAll(pattern, "{crop}", key))
}

// SoilPath returns the path of the soil-suitability table.
func (p Paths) SoilPath() string {
	name := p.SoilFile
	if name == "" {
		name = DefaultPaths().SoilFile
	}
	return filepath.Join(p.ProcessedDir, name)
}

// resolveFile returns path when it exists, else the same name with an .xlsx
// extension when that exists. A missing file yields model.ErrFileNotFound.
func resolveFile(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", eris.Wrapf(err, "dataset: stat %s", path)
	}

	if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
		alt := strings.TrimSuffix(path, filepath.Ext(path)) + ".xlsx"
		if _, err := os.Stat(alt); err == nil {
			return alt, nil
		}
	}
	return "", eris.Wrapf(model.ErrFileNotFound, "dataset: %s", path)
}

// LoadCrop reads one crop's weekly weather and price table. Missing numeric
// cells become 0. The crop key is validated before any file access.
func LoadCrop(ctx context.Context, key string, p Paths) (*model.PriceTable, error) {
	if err := ValidateCrop(key); err != nil {
		return nil, err
	}

	path, err := resolveFile(p.CropFile(key))
	if err != nil {
		return nil, err
	}

	tbl, err := fetcher.ReadTable(ctx, path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read crop %s", key)
	}

	pt, err := buildPriceTable(key, tbl)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: crop %s", key)
	}

	zap.L().Debug("crop table loaded",
		zap.String("component", "dataset"),
		zap.String("crop", key),
		zap.String("path", path),
		zap.Int("rows", pt.Len()),
	)
	return pt, nil
}

// LoadAllCrops reads every supported crop table concurrently.
func LoadAllCrops(ctx context.Context, p Paths) (map[string]*model.PriceTable, error) {
	var mu sync.Mutex
	out := make(map[string]*model.PriceTable, len(crops))

	g, gctx := errgroup.WithContext(ctx)
	for _, key := range CropKeys() {
		g.Go(func() error {
			pt, err := LoadCrop(gctx, key, p)
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = pt
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// buildPriceTable converts raw rows into numeric columns. A leading unnamed
// index column is dropped and the week column becomes the row label. Columns
// that are not numeric are dropped unless the model needs them.
func buildPriceTable(key string, tbl *fetcher.Table) (*model.PriceTable, error) {
	if len(tbl.Rows) == 0 {
		return nil, eris.New("table is empty")
	}

	required := make(map[string]bool, len(model.FeatureColumns)+1)
	for _, c := range model.FeatureColumns {
		required[c] = true
	}
	required[model.TargetColumn] = true

	start := 0
	if len(tbl.Header) > 0 && isIndexHeader(tbl.Header[0]) {
		start = 1
	}

	weekIdx := -1
	var cols []int
	for i := start; i < len(tbl.Header); i++ {
		if tbl.Header[i] == model.WeekColumn {
			weekIdx = i
			continue
		}
		cols = append(cols, i)
	}

	// Drop columns that hold text.
	keep := cols[:0]
	for _, c := range cols {
		name := tbl.Header[c]
		numeric := true
		for r := range tbl.Rows {
			if _, _, err := parseNumber(tbl.Cell(r, c)); err != nil {
				if required[name] {
					return nil, eris.Errorf("column %q row %d: not numeric: %q", name, r+1, tbl.Cell(r, c))
				}
				numeric = false
				break
			}
		}
		if numeric {
			keep = append(keep, c)
		} else {
			zap.L().Warn("dropping non-numeric column",
				zap.String("component", "dataset"),
				zap.String("crop", key),
				zap.String("column", name),
			)
		}
	}

	pt := &model.PriceTable{Crop: key}
	for _, c := range keep {
		pt.Columns = append(pt.Columns, tbl.Header[c])
	}
	if pt.ColumnIndex(model.TargetColumn) < 0 {
		return nil, eris.Errorf("missing target column %q", model.TargetColumn)
	}

	pt.Rows = make([][]float64, len(tbl.Rows))
	for r := range tbl.Rows {
		row := make([]float64, len(keep))
		for j, c := range keep {
			if v, ok, _ := parseNumber(tbl.Cell(r, c)); ok {
				row[j] = v
			}
		}
		pt.Rows[r] = row
		if weekIdx >= 0 {
			pt.Weeks = append(pt.Weeks, tbl.Cell(r, weekIdx))
		}
	}

	return pt, nil
}
