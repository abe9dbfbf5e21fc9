package model

import (
	"maps"
	"slices"

	"github.com/twpayne/go-geom"
)

// Region is one administrative-division boundary from the geometry dataset.
type Region struct {
	Code     string     `json:"adm_cd2"` // boundary code
	Province string     `json:"sidonm"`
	District string     `json:"adm_nm"`
	Geometry geom.T     `json:"-"`
	Centroid geom.Coord `json:"centroid,omitempty"` // lon, lat
}

// HasCentroid reports whether a centroid was computed for the region.
func (r Region) HasCentroid() bool {
	return len(r.Centroid) >= 2
}

// CodeLink maps a boundary code to a soil code.
type CodeLink struct {
	Name         string `json:"name"`
	BoundaryCode string `json:"boundary_code"`
	SoilCode     string `json:"soil_code"`
}

// RegionCrop is one merged (region, crop) row.
type RegionCrop struct {
	Region
	Soil  SoilRecord `json:"soil"`
	Score *float64   `json:"score,omitempty"` // nil when either ratio is missing
}

// Clone returns a copy of r that shares no pointers, maps or geometry with it.
func (r RegionCrop) Clone() RegionCrop {
	r.Centroid = slices.Clone(r.Centroid)
	switch g := r.Geometry.(type) {
	case *geom.MultiPolygon:
		r.Geometry = g.Clone()
	case *geom.Polygon:
		r.Geometry = g.Clone()
	}
	r.Soil.BestRatio = cloneFloat(r.Soil.BestRatio)
	r.Soil.GoodRatio = cloneFloat(r.Soil.GoodRatio)
	r.Soil.Composition = maps.Clone(r.Soil.Composition)
	r.Soil.Extra = maps.Clone(r.Soil.Extra)
	r.Score = cloneFloat(r.Score)
	return r
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ScoreValue returns the score, or 0 when the row is unscored.
func (r RegionCrop) ScoreValue() float64 {
	if r.Score == nil {
		return 0
	}
	return *r.Score
}

// SuitabilityScore weights the best-fit ratio twice: (2*best + good) / 2.
// Returns nil if either ratio is missing.
func SuitabilityScore(best, good *float64) *float64 {
	if best == nil || good == nil {
		return nil
	}
	s := (2*(*best) + *good) / 2
	return &s
}
