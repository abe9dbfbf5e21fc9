package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crop-cli/internal/mapview"
	"github.com/sells-group/crop-cli/internal/model"
	"github.com/sells-group/crop-cli/internal/report"
	"github.com/sells-group/crop-cli/internal/store"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Rank regions for a crop or crops for a region",
	Long: `Searches the merged soil suitability table.

Scores are (2 x best-fit ratio + good-fit ratio) / 2. Rows without both
ratios are never ranked.

Examples:
  # Top 10 apple regions as CSV
  search crop 사과 --top 10 --format csv

  # Crops suited to Andong, with a map of the result
  search region 경상북도 안동시 --map maps/andong.html

  # Record the result in the export database
  search crop 배추 --export exports.db`,
}

var searchCropCmd = &cobra.Command{
	Use:   "crop <name>",
	Short: "Rank the regions best suited to a crop",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		top, _ := cmd.Flags().GetInt("top")
		if top <= 0 {
			top = cfg.Search.CropTopN
		}

		table, err := loadRegionTable(cmd.Context())
		if err != nil {
			return err
		}
		rows, err := table.SearchByCrop(args[0], top)
		if err != nil {
			return eris.Wrap(err, "search crop")
		}

		query := map[string]string{"crop": args[0], "top": strconv.Itoa(top)}
		return emitSearch(cmd, store.KindCropSearch, query, rows, args[0]+" 재배 추천 지역")
	},
}

var searchRegionCmd = &cobra.Command{
	Use:   "region <province> <district>",
	Short: "Rank the crops best suited to a region",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		top, _ := cmd.Flags().GetInt("top")
		if top <= 0 {
			top = cfg.Search.RegionTopN
		}

		table, err := loadRegionTable(cmd.Context())
		if err != nil {
			return err
		}
		rows, err := table.SearchByRegion(args[0], args[1], top)
		if err != nil {
			return eris.Wrap(err, "search region")
		}

		query := map[string]string{"province": args[0], "district": args[1], "top": strconv.Itoa(top)}
		return emitSearch(cmd, store.KindRegionSearch, query, rows, args[0]+" "+args[1]+" 추천 작물")
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCropCmd, searchRegionCmd} {
		f := c.Flags()
		f.Int("top", 0, "maximum number of results (0=use config default)")
		f.String("format", "table", "output format: table or csv")
		f.String("output", "", "output file path (default: stdout)")
		f.String("map", "", "also render the results to this HTML map file")
		f.String("export", "", "record the results in this SQLite file (default: store.path)")
	}

	searchCmd.AddCommand(searchCropCmd)
	searchCmd.AddCommand(searchRegionCmd)
	rootCmd.AddCommand(searchCmd)
}

// emitSearch writes search rows in the requested format, then renders the
// optional map and records the optional export.
func emitSearch(cmd *cobra.Command, kind store.Kind, query map[string]string, rows []model.RegionCrop, title string) error {
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	mapPath, _ := cmd.Flags().GetString("map")
	exportPath, _ := cmd.Flags().GetString("export")

	if err := checkFormat("search", format); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "search"), zap.String("kind", string(kind)))

	if len(rows) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No scored rows matched.")
	} else if err := writeRegions(cmd.OutOrStdout(), outputPath, format, rows); err != nil {
		return err
	}

	if mapPath != "" {
		if err := mapview.SaveFile(mapPath, rows, mapOptions(title)); err != nil {
			return err
		}
		log.Info("map written", zap.String("path", mapPath), zap.Int("rows", len(rows)))
	}

	return exportSearch(cmd.Context(), exportPath, kind, query, rows)
}

func writeRegions(stdout io.Writer, path, format string, rows []model.RegionCrop) (err error) {
	out, err := openOutput(stdout, path)
	if err != nil {
		return err
	}
	defer closeWith(out, "output", &err)

	if format == "csv" {
		return report.WriteRegionCSV(out, rows)
	}
	return report.WriteRegionTable(out, rows)
}

func exportSearch(ctx context.Context, path string, kind store.Kind, query map[string]string, rows []model.RegionCrop) (err error) {
	st, err := initStore(ctx, path)
	if err != nil || st == nil {
		return err
	}
	defer closeWith(st, "export database", &err)

	e, err := st.SaveSearch(ctx, kind, query, rows)
	if err != nil {
		return eris.Wrap(err, "search: export")
	}
	zap.L().Info("search exported",
		zap.String("command", "search"),
		zap.String("export_id", e.ID),
		zap.Int("rows", e.Rows),
	)
	return nil
}
