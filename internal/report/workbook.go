package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/crop-cli/internal/predict"
)

// ComparisonSheet is the name of the cross-crop sheet.
const ComparisonSheet = "comparison"

// CropSummary is one crop's model summary and feature importance.
type CropSummary struct {
	Crop       string
	Summary    []predict.SummaryRow
	Importance []predict.Importance
}

// WriteWorkbook writes an XLSX workbook with a comparison sheet followed by
// one sheet per crop.
func WriteWorkbook(path string, crops []CropSummary, comparison []predict.Comparison) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", ComparisonSheet); err != nil {
		return eris.Wrap(err, "report: rename sheet")
	}
	header := []string{"crop", "best_model", "rmse", "r2", "price_std"}
	if err := writeHeader(f, ComparisonSheet, header); err != nil {
		return err
	}
	for i, c := range comparison {
		row := i + 2
		values := []any{c.Crop, string(c.BestModel), c.RMSE, c.R2, c.PriceStd}
		if err := writeRow(f, ComparisonSheet, row, values); err != nil {
			return err
		}
	}

	for _, c := range crops {
		if _, err := f.NewSheet(c.Crop); err != nil {
			return eris.Wrapf(err, "report: add sheet %s", c.Crop)
		}
		if err := writeHeader(f, c.Crop, []string{"model", "rmse", "mae", "r2", "best_params"}); err != nil {
			return err
		}
		for i, s := range c.Summary {
			if err := writeRow(f, c.Crop, i+2, []any{string(s.Model), s.RMSE, s.MAE, s.R2, s.BestParams}); err != nil {
				return err
			}
		}
		if len(c.Importance) == 0 {
			continue
		}
		start := len(c.Summary) + 3
		if err := f.SetCellValue(c.Crop, fmt.Sprintf("A%d", start), "feature"); err != nil {
			return eris.Wrap(err, "report: write cell")
		}
		if err := f.SetCellValue(c.Crop, fmt.Sprintf("B%d", start), "importance"); err != nil {
			return eris.Wrap(err, "report: write cell")
		}
		for i, imp := range c.Importance {
			if err := writeRow(f, c.Crop, start+1+i, []any{imp.Feature, imp.Importance}); err != nil {
				return err
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "report: create %s", filepath.Dir(path))
	}
	if err := f.SaveAs(path); err != nil {
		return eris.Wrapf(err, "report: save workbook %s", path)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []string) error {
	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return eris.Wrap(err, "report: cell name")
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return eris.Wrap(err, "report: write header")
		}
		if err := f.SetColWidth(sheet, colName(i), colName(i), 18); err != nil {
			return eris.Wrap(err, "report: set column width")
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return eris.Wrap(err, "report: cell name")
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return eris.Wrapf(err, "report: write row %d", row)
	}
	return nil
}

func colName(i int) string {
	name, _ := excelize.ColumnNumberToName(i + 1)
	return name
}
