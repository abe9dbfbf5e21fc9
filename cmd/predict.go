package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crop-cli/internal/dataset"
	"github.com/sells-group/crop-cli/internal/predict"
	"github.com/sells-group/crop-cli/internal/report"
)

var predictCmd = &cobra.Command{
	Use:   "predict <crop-key>",
	Short: "Train price models for a crop and report their accuracy",
	Long: `Loads a crop's weekly weather and price table, holds out a test split,
grid-searches each model family with k-fold cross-validation, and reports
RMSE, MAE and R² on the held-out rows.

Crop keys: apple, baechu, gyul, onion, peach, radish.

Examples:
  # Every configured model family
  predict apple

  # Only the linear families, with charts and the best model saved
  predict onion --models linear,ridge,lasso --chart outputs/charts --save-model outputs/onion.json

  # Override the parameter grids
  predict radish --grid-file grid.yaml --format csv`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringSlice("models", nil, "model families to train (default: model.families)")
	f.String("grid-file", "", "YAML file overriding the parameter grids")
	f.String("chart", "", "directory for prediction and importance charts")
	f.String("format", "table", "output format: table or csv")
	f.String("output", "", "output file path (default: stdout)")
	f.String("save-model", "", "write the best model as JSON to this path")
	f.String("export", "", "record the summary in this SQLite file (default: store.path)")

	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	key := args[0]
	models, _ := cmd.Flags().GetStringSlice("models")
	gridFile, _ := cmd.Flags().GetString("grid-file")
	chartDir, _ := cmd.Flags().GetString("chart")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	modelPath, _ := cmd.Flags().GetString("save-model")
	exportPath, _ := cmd.Flags().GetString("export")

	if err := checkFormat("predict", format); err != nil {
		return err
	}
	if err := dataset.ValidateCrop(key); err != nil {
		return err
	}
	opts, err := predictOptions(models, gridFile)
	if err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "predict"), zap.String("crop", key))

	p, err := trainCrop(ctx, key, opts)
	if err != nil {
		return err
	}
	summary, err := p.Summary()
	if err != nil {
		return err
	}
	imps := p.FeatureImportance()

	out, err := openOutput(cmd.OutOrStdout(), outputPath)
	if err != nil {
		return err
	}
	defer closeWith(out, "output", &err)
	if err := writeSummary(out, format, summary, imps); err != nil {
		return err
	}

	best, err := p.Best()
	if err != nil {
		return err
	}
	log.Info("best model",
		zap.String("family", string(best.Family)),
		zap.Float64("rmse", best.RMSE),
		zap.Float64("r2", best.R2),
	)

	if chartDir != "" {
		if err := writeCharts(p, chartDir, best.Family, imps); err != nil {
			return err
		}
		log.Info("charts written", zap.String("dir", chartDir))
	}

	if modelPath != "" {
		if err := p.SaveModel(best.Family, modelPath); err != nil {
			return err
		}
		log.Info("model saved", zap.String("path", modelPath))
	}

	st, err := initStore(ctx, exportPath)
	if err != nil || st == nil {
		return err
	}
	defer closeWith(st, "export database", &err)
	e, err := st.SaveModelSummary(ctx, key, summary)
	if err != nil {
		return eris.Wrap(err, "predict: export")
	}
	log.Info("summary exported", zap.String("export_id", e.ID))
	return nil
}

// trainCrop loads a crop table and trains the configured families on it.
func trainCrop(ctx context.Context, key string, opts predict.Options) (*predict.Predictor, error) {
	table, err := dataset.LoadCrop(ctx, key, dataPaths())
	if err != nil {
		return nil, err
	}
	p, err := predict.NewPredictor(table, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "predict: %s", key)
	}
	if _, err := p.TrainAll(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func writeSummary(out io.Writer, format string, summary []predict.SummaryRow, imps []predict.Importance) error {
	if format == "csv" {
		return report.WriteSummaryCSV(out, summary)
	}
	if err := report.WriteSummaryTable(out, summary); err != nil {
		return err
	}
	if len(imps) == 0 {
		return nil
	}
	_, _ = fmt.Fprintln(out)
	return report.WriteImportanceTable(out, imps)
}

// writeCharts saves the best family's test predictions and, when the forest
// was trained, its feature importances.
func writeCharts(p *predict.Predictor, dir string, best predict.Family, imps []predict.Importance) error {
	actual, predicted, err := p.TestPredictions(best)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%s: %s", p.Crop(), best)
	if err := report.PlotPredictions(filepath.Join(dir, p.Crop()+"_predictions.png"), title, actual, predicted); err != nil {
		return err
	}
	if len(imps) == 0 {
		return nil
	}
	return report.PlotImportance(filepath.Join(dir, p.Crop()+"_importance.png"), p.Crop()+": random_forest", imps)
}
