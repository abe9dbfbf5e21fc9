// Package report writes search results and model summaries as aligned
// tables, CSV, XLSX workbooks and PNG charts.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crop-cli/internal/model"
	"github.com/sells-group/crop-cli/internal/predict"
)

var regionHeader = []string{"rank", "province", "district", "crop", "best_ratio", "good_ratio", "score", "region_code", "soil_code"}

func regionRecord(i int, r model.RegionCrop) []string {
	return []string{
		strconv.Itoa(i + 1),
		r.Province,
		r.District,
		r.Soil.Crop,
		optional(r.Soil.BestRatio, 4),
		optional(r.Soil.GoodRatio, 4),
		optional(r.Score, 4),
		r.Code,
		r.Soil.Code,
	}
}

// WriteRegionTable writes ranked search results as an aligned table.
func WriteRegionTable(out io.Writer, rows []model.RegionCrop) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tPROVINCE\tDISTRICT\tCROP\tBEST\tGOOD\tSCORE\tCODE")
	_, _ = fmt.Fprintln(w, "----\t--------\t--------\t----\t----\t----\t-----\t----")
	for i, r := range rows {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1,
			r.Province,
			r.District,
			r.Soil.Crop,
			optional(r.Soil.BestRatio, 2),
			optional(r.Soil.GoodRatio, 2),
			optional(r.Score, 3),
			r.Code,
		)
	}
	return eris.Wrap(w.Flush(), "report: write region table")
}

// WriteRegionCSV writes ranked search results as CSV with a header row.
func WriteRegionCSV(out io.Writer, rows []model.RegionCrop) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, regionHeader)
	for i, r := range rows {
		records = append(records, regionRecord(i, r))
	}
	return writeCSV(out, records)
}

// WriteSummaryTable writes a model summary as an aligned table.
func WriteSummaryTable(out io.Writer, rows []predict.SummaryRow) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MODEL\tRMSE\tMAE\tR2\tBEST PARAMS")
	_, _ = fmt.Fprintln(w, "-----\t----\t---\t--\t-----------")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.4f\t%s\n", r.Model, r.RMSE, r.MAE, r.R2, r.BestParams)
	}
	return eris.Wrap(w.Flush(), "report: write summary table")
}

// WriteSummaryCSV writes a model summary as CSV.
func WriteSummaryCSV(out io.Writer, rows []predict.SummaryRow) error {
	records := [][]string{{"model", "rmse", "mae", "r2", "best_params"}}
	for _, r := range rows {
		records = append(records, []string{
			string(r.Model),
			strconv.FormatFloat(r.RMSE, 'f', 2, 64),
			strconv.FormatFloat(r.MAE, 'f', 2, 64),
			strconv.FormatFloat(r.R2, 'f', 4, 64),
			r.BestParams,
		})
	}
	return writeCSV(out, records)
}

// WriteComparisonTable writes the per-crop best models as an aligned table.
func WriteComparisonTable(out io.Writer, rows []predict.Comparison) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CROP\tBEST MODEL\tRMSE\tR2\tPRICE STD")
	_, _ = fmt.Fprintln(w, "----\t----------\t----\t--\t---------")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%.4f\t%.2f\n", r.Crop, r.BestModel, r.RMSE, r.R2, r.PriceStd)
	}
	return eris.Wrap(w.Flush(), "report: write comparison table")
}

// WriteComparisonCSV writes the per-crop best models as CSV.
func WriteComparisonCSV(out io.Writer, rows []predict.Comparison) error {
	records := [][]string{{"crop", "best_model", "rmse", "r2", "price_std"}}
	for _, r := range rows {
		records = append(records, []string{
			r.Crop,
			string(r.BestModel),
			strconv.FormatFloat(r.RMSE, 'f', 2, 64),
			strconv.FormatFloat(r.R2, 'f', 4, 64),
			strconv.FormatFloat(r.PriceStd, 'f', 2, 64),
		})
	}
	return writeCSV(out, records)
}

// WriteImportanceTable writes feature importances as an aligned table.
func WriteImportanceTable(out io.Writer, rows []predict.Importance) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FEATURE\tIMPORTANCE")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%.4f\n", r.Feature, r.Importance)
	}
	return eris.Wrap(w.Flush(), "report: write importance table")
}

func writeCSV(out io.Writer, records [][]string) error {
	w := csv.NewWriter(out)
	if err := w.WriteAll(records); err != nil {
		return eris.Wrap(err, "report: write csv")
	}
	return nil
}

// optional formats v with the given precision, or "" when v is nil.
func optional(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
