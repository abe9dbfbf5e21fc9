package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crop-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crop-cli",
	Short: "Crop region recommender and price predictor",
	Long: `Recommends regions for a crop from soil suitability ratios joined to
administrative boundaries, renders the results on an interactive map, and
predicts weekly wholesale crop prices from weather with several regression
families.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyRootOverrides(cmd, c)

		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./config.yaml)")
	pf.String("data-dir", "", "directory holding the processed crop and soil tables (overrides config)")
	pf.String("geo-dir", "", "directory holding the boundary and code translation files (overrides config)")
	pf.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
}

// applyRootOverrides copies explicitly set persistent flags onto c.
func applyRootOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		c.Data.ProcessedDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("geo-dir") {
		c.Data.GeoDir, _ = flags.GetString("geo-dir")
	}
	if flags.Changed("log-level") {
		c.Log.Level, _ = flags.GetString("log-level")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
