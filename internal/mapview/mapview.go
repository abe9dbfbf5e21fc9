// Package mapview renders ranked region results as a self-contained Leaflet
// HTML page with boundary polygons, clustered markers and a ranking panel.
package mapview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/crop-cli/internal/model"
)

// Default view.
const (
	DefaultLat     = 36.4109466
	DefaultLon     = 128.1590828
	DefaultZoom    = 7
	DefaultTiles   = "cartodbpositron"
	DefaultTitle   = "농작물 재배 추천 지역"
	RankingSize    = 15
	boundaryFill   = "#3498db"
	boundaryStroke = "#2c3e50"
)

// tileLayer is a named base-map provider.
type tileLayer struct {
	URL         string
	Attribution string
}

var tileLayers = map[string]tileLayer{
	"cartodbpositron": {
		URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
	},
	"cartodbdark_matter": {
		URL:         "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
		Attribution: "&copy; OpenStreetMap contributors &copy; CARTO",
	},
	"openstreetmap": {
		URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "&copy; OpenStreetMap contributors",
	},
}

// Tiles returns the supported tile layer names.
func Tiles() []string {
	return []string{"cartodbdark_matter", "cartodbpositron", "openstreetmap"}
}

// Options controls the rendered page. Zero values take the defaults.
type Options struct {
	Title          string
	Lat, Lon       float64
	Zoom           int
	Tiles          string
	HideMarkers    bool
	HideBoundaries bool
	HideRanking    bool
}

func (o Options) withDefaults() Options {
	if o.Title == "" {
		o.Title = DefaultTitle
	}
	if o.Lat == 0 && o.Lon == 0 {
		o.Lat, o.Lon = DefaultLat, DefaultLon
	}
	if o.Zoom == 0 {
		o.Zoom = DefaultZoom
	}
	if o.Tiles == "" {
		o.Tiles = DefaultTiles
	}
	return o
}

// marker is one popup marker at a region centroid.
type marker struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Popup string  `json:"popup"`
}

// rankRow is one line of the ranking panel.
type rankRow struct {
	Rank     int
	Medal    string
	District string
	Province string
	Best     string
	BarWidth template.CSS
}

type page struct {
	Title          string
	View           template.JS // setView arguments
	Tile           tileLayer
	ShowBoundaries bool
	ShowMarkers    bool
	ShowRanking    bool
	Boundaries     template.JS
	Style          template.JS
	Markers        []marker
	Ranking        []rankRow
}

// Render writes the map page for rows, which are expected in ranked order.
func Render(w io.Writer, rows []model.RegionCrop, opts Options) error {
	opts = opts.withDefaults()
	tile, ok := tileLayers[opts.Tiles]
	if !ok {
		return eris.Errorf("mapview: unknown tiles %q (supported: %s)", opts.Tiles, strings.Join(Tiles(), ", "))
	}

	p := page{
		Title:          opts.Title,
		View:           template.JS(fmt.Sprintf("[%v, %v], %d", opts.Lat, opts.Lon, opts.Zoom)),
		Tile:           tile,
		ShowBoundaries: !opts.HideBoundaries,
		ShowMarkers:    !opts.HideMarkers,
		ShowRanking:    !opts.HideRanking,
	}

	if p.ShowBoundaries {
		fc, err := boundaryCollection(rows)
		if err != nil {
			return err
		}
		p.Boundaries = template.JS(fc)
		style, err := json.Marshal(map[string]any{
			"fillColor":   boundaryFill,
			"color":       boundaryStroke,
			"weight":      1,
			"fillOpacity": 0.4,
		})
		if err != nil {
			return eris.Wrap(err, "mapview: encode style")
		}
		p.Style = template.JS(style)
	}
	if p.ShowMarkers {
		p.Markers = []marker{}
		for _, r := range rows {
			if !r.HasCentroid() {
				continue
			}
			popup, err := popupHTML(r)
			if err != nil {
				return err
			}
			p.Markers = append(p.Markers, marker{Lat: r.Centroid[1], Lon: r.Centroid[0], Popup: popup})
		}
	}
	if p.ShowRanking {
		p.Ranking = ranking(rows)
	}

	if err := pageTemplate.Execute(w, p); err != nil {
		return eris.Wrap(err, "mapview: render page")
	}
	return nil
}

// SaveFile renders the page to path, creating parent directories.
func SaveFile(path string, rows []model.RegionCrop, opts Options) error {
	var buf bytes.Buffer
	if err := Render(&buf, rows, opts); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "mapview: create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "mapview: write %s", path)
	}
	zap.L().Info("map saved", zap.String("path", path), zap.Int("regions", len(rows)))
	return nil
}

// boundaryCollection encodes the rows with geometry as a GeoJSON
// FeatureCollection. Each boundary appears once.
func boundaryCollection(rows []model.RegionCrop) ([]byte, error) {
	fc := geojson.FeatureCollection{Features: []*geojson.Feature{}}
	seen := make(map[string]bool)
	for _, r := range rows {
		if r.Geometry == nil || seen[r.Code] {
			continue
		}
		seen[r.Code] = true
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: r.Geometry,
			Properties: map[string]interface{}{
				"adm_cd2": r.Code,
				"sidonm":  r.Province,
				"adm_nm":  r.District,
			},
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "mapview: encode boundaries")
	}
	return data, nil
}

func popupHTML(r model.RegionCrop) (string, error) {
	type compRow struct {
		Name  string
		Value string
	}
	data := struct {
		Region string
		Crop   string
		Best   string
		Good   string
		Soil   []compRow
	}{
		Region: r.District,
		Crop:   r.Soil.Crop,
		Best:   ratio(r.Soil.BestRatio),
		Good:   ratio(r.Soil.GoodRatio),
	}
	if data.Region == "" {
		data.Region = "알 수 없음"
	}
	for _, col := range model.SoilColumns {
		if v, ok := r.Soil.CompositionValue(col); ok {
			data.Soil = append(data.Soil, compRow{Name: col, Value: fmt.Sprintf("%.2f", v)})
		}
	}
	var buf bytes.Buffer
	if err := popupTemplate.Execute(&buf, data); err != nil {
		return "", eris.Wrap(err, "mapview: render popup")
	}
	return buf.String(), nil
}

func ratio(v *float64) string {
	if v == nil {
		return "0.00"
	}
	return fmt.Sprintf("%.2f", *v)
}

func ranking(rows []model.RegionCrop) []rankRow {
	top := rows
	if len(top) > RankingSize {
		top = top[:RankingSize]
	}
	var maxBest float64
	for _, r := range top {
		if r.Soil.BestRatio != nil {
			maxBest = math.Max(maxBest, *r.Soil.BestRatio)
		}
	}

	out := make([]rankRow, 0, len(top))
	for i, r := range top {
		var best, width float64
		if r.Soil.BestRatio != nil {
			best = *r.Soil.BestRatio
		}
		if maxBest > 0 {
			width = best / maxBest * 100
		}
		district := r.District
		if district == "" {
			district = "알 수 없음"
		}
		out = append(out, rankRow{
			Rank:     i + 1,
			Medal:    medal(i + 1),
			District: district,
			Province: r.Province,
			Best:     fmt.Sprintf("%.2f", best),
			BarWidth: template.CSS(fmt.Sprintf("%.1f%%", width)),
		})
	}
	return out
}

func medal(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return ""
	}
}
