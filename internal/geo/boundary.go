// Package geo loads administrative boundary datasets and computes the
// centroids used to place map markers.
package geo

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/crop-cli/internal/fetcher"
	"github.com/sells-group/crop-cli/internal/model"
)

// Boundary attribute names in the administrative-dong dataset.
const (
	PropCode     = "adm_cd2"
	PropProvince = "sidonm"
	PropDistrict = "adm_nm"
)

// LoadBoundaries reads a boundary dataset, choosing the reader by extension:
// GeoJSON (.geojson, .json), shapefile (.shp) or a zipped shapefile (.zip).
// Features without polygonal geometry are skipped.
func LoadBoundaries(path string) ([]model.Region, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(model.ErrFileNotFound, "geo: boundary file %s", path)
		}
		return nil, eris.Wrapf(err, "geo: stat %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return loadGeoJSON(path)
	case ".shp":
		return loadShapefile(path)
	case ".zip":
		return loadZippedShapefile(path)
	default:
		return nil, eris.Errorf("geo: unsupported boundary format %q", filepath.Ext(path))
	}
}

func loadGeoJSON(path string) ([]model.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: read %s", path)
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "geo: decode geojson %s", path)
	}

	regions := make([]model.Region, 0, len(fc.Features))
	var skipped int
	for _, f := range fc.Features {
		if f == nil || !isPolygonal(f.Geometry) {
			skipped++
			continue
		}
		r := model.Region{
			Code:     propString(f.Properties, PropCode),
			Province: propString(f.Properties, PropProvince),
			District: propString(f.Properties, PropDistrict),
			Geometry: f.Geometry,
		}
		if c, ok := Centroid(f.Geometry); ok {
			r.Centroid = c
		}
		regions = append(regions, r)
	}

	logLoaded(path, len(regions), skipped)
	return regions, nil
}

func loadZippedShapefile(path string) ([]model.Region, error) {
	dir, err := os.MkdirTemp("", "boundary-*")
	if err != nil {
		return nil, eris.Wrap(err, "geo: create temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	files, err := fetcher.ExtractZIP(path, dir, fetcher.HasExt(".shp", ".shx", ".dbf", ".prj", ".cpg"))
	if err != nil {
		return nil, eris.Wrapf(err, "geo: extract %s", path)
	}
	shpPath, ok := fetcher.FindByExt(files, ".shp")
	if !ok {
		return nil, eris.Errorf("geo: no .shp file in %s", path)
	}
	return loadShapefile(shpPath)
}

// isPolygonal reports whether g is a non-empty polygon or multipolygon.
func isPolygonal(g geom.T) bool {
	switch t := g.(type) {
	case *geom.Polygon:
		return t.NumLinearRings() > 0
	case *geom.MultiPolygon:
		return t.NumPolygons() > 0
	default:
		return false
	}
}

// propString renders a feature property as a trimmed string. Numeric codes
// decoded as float64 are rendered without exponent or trailing fraction.
func propString(props map[string]interface{}, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func logLoaded(path string, loaded, skipped int) {
	log := zap.L().With(zap.String("component", "geo"))
	if skipped > 0 {
		log.Debug("skipped boundary features without polygon geometry",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	log.Info("boundaries loaded", zap.String("path", path), zap.Int("regions", loaded))
}
