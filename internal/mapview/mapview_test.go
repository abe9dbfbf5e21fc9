package mapview

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/crop-cli/internal/model"
)

func f(v float64) *float64 { return &v }

func sampleRows(n int) []model.RegionCrop {
	var rows []model.RegionCrop
	for i := 0; i < n; i++ {
		lon, lat := 128.0+float64(i)/10, 36.0
		poly := geom.NewPolygonFlat(geom.XY, []float64{lon, lat, lon + 0.1, lat, lon + 0.1, lat + 0.1, lon, lat + 0.1, lon, lat}, []int{10})
		best := 1.0 - float64(i)/100
		rows = append(rows, model.RegionCrop{
			Region: model.Region{
				Code:     fmt.Sprintf("47170%05d", i),
				Province: "경상북도",
				District: fmt.Sprintf("경상북도 안동시 %d동", i),
				Geometry: poly,
				Centroid: geom.Coord{lon + 0.05, lat + 0.05},
			},
			Soil: model.SoilRecord{
				Crop:        "사과",
				BestRatio:   f(best),
				GoodRatio:   f(0.1),
				Composition: map[string]float64{"산도": 6.25},
			},
			Score: model.SuitabilityScore(f(best), f(0.1)),
		})
	}
	return rows
}

func render(t *testing.T, rows []model.RegionCrop, opts Options) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, rows, opts))
	return buf.String()
}

func TestRender_Defaults(t *testing.T) {
	out := render(t, sampleRows(3), Options{})

	assert.Contains(t, out, "<title>농작물 재배 추천 지역</title>")
	assert.Contains(t, out, "setView([36.4109466, 128.1590828], 7)")
	assert.Contains(t, out, "basemaps.cartocdn.com/light_all")
	assert.Contains(t, out, `"fillColor":"#3498db"`)
	assert.Contains(t, out, `"color":"#2c3e50"`)
	assert.Contains(t, out, `"fillOpacity":0.4`)
	assert.Contains(t, out, `"FeatureCollection"`)
	assert.Contains(t, out, "markerClusterGroup")
	assert.Contains(t, out, "ranking-panel")
	assert.Equal(t, 3, strings.Count(out, `class="rank-row"`))
	assert.Contains(t, out, "🥇1")
	assert.Contains(t, out, "🥈2")
	assert.Contains(t, out, "🥉3")
	assert.Contains(t, out, "#3498db 100.0%", "top row bar is full width")
}

func TestRender_RankingCappedAtFifteen(t *testing.T) {
	out := render(t, sampleRows(20), Options{Title: "사과 최적 재배 지역 Top 20"})
	assert.Equal(t, RankingSize, strings.Count(out, `class="rank-row"`))
	assert.Contains(t, out, "사과 최적 재배 지역 Top 20")
	assert.NotContains(t, out, "🥇16")
}

func TestRender_Toggles(t *testing.T) {
	out := render(t, sampleRows(2), Options{HideMarkers: true, HideBoundaries: true, HideRanking: true})
	assert.NotContains(t, out, "markerClusterGroup()")
	assert.NotContains(t, out, "L.geoJSON(")
	assert.NotContains(t, out, `id="ranking-panel"`)
	assert.Contains(t, out, "L.map(")
}

func TestRender_EscapesNames(t *testing.T) {
	rows := sampleRows(1)
	rows[0].District = `<script>alert("x")</script>`
	out := render(t, rows, Options{Title: "<b>title</b>"})

	assert.NotContains(t, out, `<script>alert("x")</script>`)
	assert.NotContains(t, out, "<b>title</b>")
	assert.Contains(t, out, "&lt;b&gt;title&lt;/b&gt;")
}

func TestRender_UnknownTiles(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, sampleRows(1), Options{Tiles: "stamen"})
	assert.ErrorContains(t, err, "unknown tiles")
}

func TestRender_CustomView(t *testing.T) {
	out := render(t, nil, Options{Lat: 35.1, Lon: 129.0, Zoom: 10, Tiles: "openstreetmap"})
	assert.Contains(t, out, "setView([35.1, 129], 10)")
	assert.Contains(t, out, "tile.openstreetmap.org")
	assert.Contains(t, out, "var markers = []")
}

func TestPopupHTML(t *testing.T) {
	row := sampleRows(1)[0]
	row.Soil.GoodRatio = nil
	html, err := popupHTML(row)
	require.NoError(t, err)

	assert.Contains(t, html, "경상북도 안동시 0동")
	assert.Contains(t, html, "<strong>농작물:</strong> 사과")
	assert.Contains(t, html, "<strong>면적당 최적지:</strong> 1.00")
	assert.Contains(t, html, "<strong>면적당 적지:</strong> 0.00")
	assert.Contains(t, html, "산도: 6.25")
	assert.NotContains(t, html, "칼륨")
}

func TestBoundaryCollection_DedupsRegions(t *testing.T) {
	rows := sampleRows(2)
	rows = append(rows, rows[0])
	rows = append(rows, model.RegionCrop{Region: model.Region{Code: "no-geometry"}})

	data, err := boundaryCollection(rows)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), `"type":"Feature"`))
}

func TestSaveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maps", "map_사과.html")
	require.NoError(t, SaveFile(path, sampleRows(2), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "<!DOCTYPE html>"))
}
