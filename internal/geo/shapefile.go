package geo

import (
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"golang.org/x/text/encoding/korean"

	"github.com/sells-group/crop-cli/internal/model"
)

// loadShapefile reads polygon boundaries from a shapefile. Attribute names
// are matched case-insensitively; attribute values that are not valid UTF-8
// are decoded as EUC-KR (CP949), the usual encoding of Korean .dbf files.
// Coordinates are taken as-is and must already be longitude/latitude.
func loadShapefile(path string) ([]model.Region, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	codeIdx := fieldIndex(reader, PropCode)
	if codeIdx < 0 {
		return nil, eris.Errorf("geo: shapefile %s has no %s field", path, PropCode)
	}
	provIdx := fieldIndex(reader, PropProvince)
	distIdx := fieldIndex(reader, PropDistrict)

	regions := make([]model.Region, 0)
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		g := polygonToMultiPolygon(poly)
		if g == nil {
			skipped++
			continue
		}

		r := model.Region{
			Code:     attribute(reader, codeIdx),
			Province: attribute(reader, provIdx),
			District: attribute(reader, distIdx),
			Geometry: g,
		}
		if c, ok := Centroid(g); ok {
			r.Centroid = c
		}
		regions = append(regions, r)
	}

	logLoaded(path, len(regions), skipped)
	return regions, nil
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

func attribute(reader *shp.Reader, idx int) string {
	if idx < 0 {
		return ""
	}
	return decodeAttribute(reader.Attribute(idx))
}

// decodeAttribute trims padding and converts EUC-KR bytes to UTF-8.
func decodeAttribute(raw string) string {
	raw = strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if utf8.ValidString(raw) {
		return raw
	}
	out, err := korean.EUCKR.NewDecoder().String(raw)
	if err != nil {
		return raw
	}
	return strings.TrimSpace(out)
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom.MultiPolygon.
// Clockwise rings start a new polygon; counter-clockwise rings are holes of
// the preceding polygon.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var current *geom.Polygon

	flush := func() {
		if current != nil && current.NumLinearRings() > 0 {
			_ = mp.Push(current)
		}
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(flat) <= 0 || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			continue
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is the shoelace area of a flat XY ring; negative when clockwise.
func signedArea(flat []float64) float64 {
	var sum float64
	n := len(flat) / 2
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}
