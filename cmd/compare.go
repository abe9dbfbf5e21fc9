package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crop-cli/internal/dataset"
	"github.com/sells-group/crop-cli/internal/predict"
	"github.com/sells-group/crop-cli/internal/report"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare the best price model across every crop",
	Long: `Trains the configured model families for every supported crop and
reports each crop's best model, its held-out RMSE and R², and the standard
deviation of the crop's price for scale.

Examples:
  compare
  compare --xlsx outputs/models.xlsx --format csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		models, _ := cmd.Flags().GetStringSlice("models")
		gridFile, _ := cmd.Flags().GetString("grid-file")
		format, _ := cmd.Flags().GetString("format")
		outputPath, _ := cmd.Flags().GetString("output")
		xlsxPath, _ := cmd.Flags().GetString("xlsx")
		exportPath, _ := cmd.Flags().GetString("export")

		if err := checkFormat("compare", format); err != nil {
			return err
		}
		opts, err := predictOptions(models, gridFile)
		if err != nil {
			return err
		}

		log := zap.L().With(zap.String("command", "compare"))

		tables, err := dataset.LoadAllCrops(ctx, dataPaths())
		if err != nil {
			return err
		}

		var comparison []predict.Comparison
		var crops []report.CropSummary
		for i, key := range dataset.CropKeys() {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", i+1, len(tables), key)

			p, err := predict.NewPredictor(tables[key], opts)
			if err != nil {
				return eris.Wrapf(err, "compare: %s", key)
			}
			if _, err := p.TrainAll(ctx); err != nil {
				return err
			}
			c, err := p.Comparison()
			if err != nil {
				return err
			}
			comparison = append(comparison, c)

			if xlsxPath != "" {
				summary, err := p.Summary()
				if err != nil {
					return err
				}
				crops = append(crops, report.CropSummary{Crop: key, Summary: summary, Importance: p.FeatureImportance()})
			}
		}

		out, err := openOutput(cmd.OutOrStdout(), outputPath)
		if err != nil {
			return err
		}
		defer closeWith(out, "output", &err)
		if format == "csv" {
			err = report.WriteComparisonCSV(out, comparison)
		} else {
			err = report.WriteComparisonTable(out, comparison)
		}
		if err != nil {
			return err
		}

		if xlsxPath != "" {
			if err := report.WriteWorkbook(xlsxPath, crops, comparison); err != nil {
				return err
			}
			log.Info("workbook written", zap.String("path", xlsxPath))
		}

		st, err := initStore(ctx, exportPath)
		if err != nil || st == nil {
			return err
		}
		defer closeWith(st, "export database", &err)
		e, err := st.SaveComparison(ctx, comparison)
		if err != nil {
			return eris.Wrap(err, "compare: export")
		}
		log.Info("comparison exported", zap.String("export_id", e.ID))
		return nil
	},
}

func init() {
	f := compareCmd.Flags()
	f.StringSlice("models", nil, "model families to train (default: model.families)")
	f.String("grid-file", "", "YAML file overriding the parameter grids")
	f.String("format", "table", "output format: table or csv")
	f.String("output", "", "output file path (default: stdout)")
	f.String("xlsx", "", "also write per-crop summaries and the comparison to this workbook")
	f.String("export", "", "record the comparison in this SQLite file (default: store.path)")

	rootCmd.AddCommand(compareCmd)
}
