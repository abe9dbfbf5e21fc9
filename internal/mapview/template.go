package mapview

import "html/template"

var popupTemplate = template.Must(template.New("popup").Parse(`<div style="font-family: 'Malgun Gothic', sans-serif;">
<h4 style="margin: 0; color: #2c3e50;">{{.Region}}</h4>
{{- if .Crop}}
<p><strong>농작물:</strong> {{.Crop}}</p>
{{- end}}
<p><strong>면적당 최적지:</strong> {{.Best}}</p>
<p><strong>면적당 적지:</strong> {{.Good}}</p>
<hr>
<p style="font-size: 12px; color: #7f8c8d;"><strong>토양 성분</strong></p>
{{- range .Soil}}
<p style="margin: 2px 0; font-size: 11px;">{{.Name}}: {{.Value}}</p>
{{- end}}
</div>`))

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.css">
<link rel="stylesheet" href="https://unpkg.com/leaflet.markercluster@1.5.3/dist/MarkerCluster.Default.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<script src="https://unpkg.com/leaflet.markercluster@1.5.3/dist/leaflet.markercluster.js"></script>
<style>
html, body, #map { width: 100%; height: 100%; margin: 0; padding: 0; }
</style>
</head>
<body>
<div id="map"></div>
<div id="map-title" style="position: fixed; top: 10px; left: 50px; z-index: 9999; background-color: white; padding: 10px; border-radius: 5px; box-shadow: 2px 2px 5px gray;">
<h4>{{.Title}}</h4>
</div>
{{- if .ShowRanking}}
<div id="ranking-panel" style="position: fixed; top: 60px; right: 10px; z-index: 9999; background-color: white; padding: 15px; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.2); max-height: 80vh; overflow-y: auto; width: 320px; font-family: 'Malgun Gothic', sans-serif;">
<div style="display: flex; justify-content: space-between; align-items: center; margin-bottom: 10px;">
<h4 style="margin: 0; color: #2c3e50;">📊 Top 15 순위</h4>
<button onclick="document.getElementById('ranking-panel').style.display='none'" style="border: none; background: #eee; border-radius: 50%; width: 24px; height: 24px; cursor: pointer;">✕</button>
</div>
<p style="font-size: 11px; color: #7f8c8d; margin-bottom: 10px;">면적당 최적지 비율 기준</p>
<table style="width: 100%; border-collapse: collapse; font-size: 12px;">
<thead>
<tr style="background: #f8f9fa; border-bottom: 2px solid #ddd;">
<th style="padding: 6px; text-align: center;">순위</th>
<th style="padding: 6px; text-align: left;">지역</th>
<th style="padding: 6px; text-align: center;">비율</th>
<th style="padding: 6px; text-align: right;">점수</th>
</tr>
</thead>
<tbody>
{{- range .Ranking}}
<tr class="rank-row" style="border-bottom: 1px solid #eee;">
<td style="padding: 4px 8px; text-align: center; font-weight: bold;">{{.Medal}}{{.Rank}}</td>
<td style="padding: 4px 8px; font-size: 11px;"><div>{{.District}}</div><div style="font-size: 10px; color: #888;">{{.Province}}</div></td>
<td style="padding: 4px 8px; width: 100px;"><div style="background: linear-gradient(90deg, #3498db {{.BarWidth}}, #ecf0f1 {{.BarWidth}}); height: 16px; border-radius: 3px;"></div></td>
<td style="padding: 4px 8px; text-align: right; font-size: 11px; font-weight: bold;">{{.Best}}</td>
</tr>
{{- end}}
</tbody>
</table>
<div style="margin-top: 15px; padding-top: 10px; border-top: 1px solid #eee;">
<p style="font-size: 10px; color: #95a5a6; margin: 0;">📍 마커 클릭 시 상세 정보 확인<br>데이터: 농촌진흥청 흙토람</p>
</div>
</div>
{{- end}}
<script>
var map = L.map("map").setView({{.View}});
L.tileLayer({{.Tile.URL}}, {attribution: {{.Tile.Attribution}}, maxZoom: 19}).addTo(map);
{{- if .ShowBoundaries}}
var boundaryStyle = {{.Style}};
L.geoJSON({{.Boundaries}}, {style: function () { return boundaryStyle; }}).addTo(map);
{{- end}}
{{- if .ShowMarkers}}
var markers = {{.Markers}};
var cluster = L.markerClusterGroup();
markers.forEach(function (m) {
  L.marker([m.lat, m.lon]).bindPopup(m.popup, {maxWidth: 300}).addTo(cluster);
});
map.addLayer(cluster);
{{- end}}
</script>
</body>
</html>
`))
