package main

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crop-cli/internal/mapview"
)

var mapCmd = &cobra.Command{
	Use:   "map <crop>",
	Short: "Render the best regions for a crop to an HTML map",
	Long: `Searches the regions best suited to a crop and writes a Leaflet page with
the region boundaries, clustered popup markers and a ranking panel.

Examples:
  map 사과
  map 배추 --top 50 --tiles openstreetmap --output out/cabbage.html`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		crop := args[0]
		top, _ := cmd.Flags().GetInt("top")
		if top <= 0 {
			top = cfg.Search.MapTopN
		}
		outputPath, _ := cmd.Flags().GetString("output")
		if outputPath == "" {
			outputPath = defaultMapPath(crop)
		}

		opts := mapOptions(crop + " 재배 추천 지역")
		if cmd.Flags().Changed("tiles") {
			opts.Tiles, _ = cmd.Flags().GetString("tiles")
		}
		if !slices.Contains(mapview.Tiles(), opts.Tiles) {
			return eris.Errorf("map: unknown tiles %q (want one of %v)", opts.Tiles, mapview.Tiles())
		}
		opts.HideMarkers, _ = cmd.Flags().GetBool("no-markers")
		opts.HideBoundaries, _ = cmd.Flags().GetBool("no-boundaries")
		opts.HideRanking, _ = cmd.Flags().GetBool("no-ranking")

		table, err := loadRegionTable(cmd.Context())
		if err != nil {
			return err
		}
		rows, err := table.SearchByCrop(crop, top)
		if err != nil {
			return eris.Wrap(err, "map")
		}

		if err := mapview.SaveFile(outputPath, rows, opts); err != nil {
			return err
		}
		zap.L().Info("map written",
			zap.String("command", "map"),
			zap.String("crop", crop),
			zap.String("path", outputPath),
			zap.Int("rows", len(rows)),
		)
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), outputPath)
		return nil
	},
}

func init() {
	f := mapCmd.Flags()
	f.Int("top", 0, "number of regions to show (0=use config default)")
	f.String("output", "", "output HTML file (default: <output.dir>/maps/map_<crop>.html)")
	f.String("tiles", "", "base map tiles (overrides config)")
	f.Bool("no-markers", false, "omit the popup markers")
	f.Bool("no-boundaries", false, "omit the boundary layer")
	f.Bool("no-ranking", false, "omit the ranking panel")

	rootCmd.AddCommand(mapCmd)
}

func defaultMapPath(crop string) string {
	return filepath.Join(cfg.Output.Dir, "maps", "map_"+crop+".html")
}
