package main

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crop-cli/internal/dataset"
	"github.com/sells-group/crop-cli/internal/geo"
	"github.com/sells-group/crop-cli/internal/mapview"
	"github.com/sells-group/crop-cli/internal/predict"
	"github.com/sells-group/crop-cli/internal/region"
	"github.com/sells-group/crop-cli/internal/store"
)

// dataPaths maps the data config onto the dataset loaders.
func dataPaths() dataset.Paths {
	return dataset.Paths{
		ProcessedDir: cfg.Data.ProcessedDir,
		CropPattern:  cfg.Data.CropPattern,
		SoilFile:     cfg.Data.SoilFile,
	}
}

// linkPath returns the code translation table, preferring the processed
// directory over the geo directory. Empty means no table is configured.
func linkPath() string {
	if cfg.Data.LinkFile == "" {
		return ""
	}
	for _, dir := range []string{cfg.Data.ProcessedDir, cfg.Data.GeoDir} {
		p := filepath.Join(dir, cfg.Data.LinkFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(cfg.Data.GeoDir, cfg.Data.LinkFile)
}

// loadRegionTable loads soil ratios, boundaries and the optional translation
// table, then merges them.
func loadRegionTable(ctx context.Context) (*region.Table, error) {
	log := zap.L().With(zap.String("component", "cli"))

	soil, err := dataset.LoadSoil(ctx, dataPaths())
	if err != nil {
		return nil, err
	}
	boundaries, err := geo.LoadBoundaries(filepath.Join(cfg.Data.GeoDir, cfg.Data.BoundaryFile))
	if err != nil {
		return nil, err
	}
	links, err := dataset.LoadCodeLinks(ctx, linkPath())
	if err != nil {
		return nil, err
	}

	table, err := region.Merge(boundaries, soil, links)
	if err != nil {
		return nil, err
	}

	d := table.Diagnostics()
	log.Info("region table ready",
		zap.String("strategy", string(d.Strategy)),
		zap.Int("rows", d.Rows),
		zap.Int("unscored_rows", d.UnscoredRows),
		zap.Float64("match_rate", d.MatchRate()),
	)
	return table, nil
}

// mapOptions builds map page options from config.
func mapOptions(title string) mapview.Options {
	return mapview.Options{
		Title: title,
		Lat:   cfg.Map.CenterLat,
		Lon:   cfg.Map.CenterLon,
		Zoom:  cfg.Map.Zoom,
		Tiles: cfg.Map.Tiles,
	}
}

// predictOptions builds predictor options from config. A non-empty models
// list overrides model.families, and a non-empty gridFile overrides
// model.grid_file.
func predictOptions(models []string, gridFile string) (predict.Options, error) {
	opts := predict.Options{
		TestSize: cfg.Model.TestSize,
		Seed:     cfg.Model.Seed,
		CVFolds:  cfg.Model.CVFolds,
	}

	names := cfg.Model.Families
	if len(models) > 0 {
		names = models
	}
	for _, name := range names {
		f, err := predict.ParseFamily(name)
		if err != nil {
			return opts, err
		}
		opts.Families = append(opts.Families, f)
	}

	if gridFile == "" {
		gridFile = cfg.Model.GridFile
	}
	if gridFile != "" {
		g, err := predict.LoadGrid(gridFile)
		if err != nil {
			return opts, err
		}
		opts.Grid = &g
	}
	return opts, nil
}

// initStore opens the export store at path, falling back to store.path.
// It returns (nil, nil) when neither is set.
func initStore(ctx context.Context, path string) (store.Store, error) {
	if path == "" {
		path = cfg.Store.Path
	}
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "store: create %s", dir)
		}
	}
	st, err := store.NewSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// openOutput returns stdout for an empty path, else a created file.
func openOutput(stdout io.Writer, path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{stdout}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "create %s", path)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// closeWith closes c and reports the close error unless *err is already set.
// A failed close can lose buffered file output.
func closeWith(c io.Closer, what string, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = eris.Wrapf(cerr, "close %s", what)
	}
}

// checkFormat rejects output formats other than table and csv.
func checkFormat(cmd string, format string) error {
	if format != "table" && format != "csv" {
		return eris.Errorf("%s: --format must be table or csv (got %q)", cmd, format)
	}
	return nil
}
