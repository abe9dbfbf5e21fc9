package geo

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Centroid returns the area centroid (lon, lat) of a polygonal geometry.
// ok is false for other geometry types and degenerate shapes.
func Centroid(g geom.T) (geom.Coord, bool) {
	var c geom.Coord
	switch t := g.(type) {
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return nil, false
		}
		c = xy.PolygonsCentroid(t)
	case *geom.MultiPolygon:
		if t.NumPolygons() == 0 {
			return nil, false
		}
		c = xy.MultiPolygonCentroid(t)
	default:
		return nil, false
	}
	if len(c) < 2 || math.IsNaN(c[0]) || math.IsNaN(c[1]) {
		return nil, false
	}
	return geom.Coord{c[0], c[1]}, true
}
