package region

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crop-cli/internal/model"
)

// Default result sizes.
const (
	DefaultCropTopN   = 50
	DefaultRegionTopN = 15
)

// maxSuggestions bounds the alternatives listed in a not-found error.
const maxSuggestions = 10

// Place is a (province, district) pair present in the merged table.
type Place struct {
	Province string `json:"province"`
	District string `json:"district"`
}

// SearchByCrop returns the best regions for a crop: rows with an exact crop
// match, ordered by score descending (ties keep join order), one row per
// region, at most topN rows. Unscored rows are excluded.
func (t *Table) SearchByCrop(crop string, topN int) ([]model.RegionCrop, error) {
	if t == nil {
		return nil, eris.Wrap(model.ErrNotLoaded, "region: search by crop")
	}
	if topN <= 0 {
		topN = DefaultCropTopN
	}

	var matched []model.RegionCrop
	for _, r := range t.rows {
		if r.Soil.Crop == crop {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		available := t.Crops()
		if len(available) > maxSuggestions {
			available = available[:maxSuggestions]
		}
		return nil, eris.Wrapf(model.ErrNotFound, "region: crop %q (available: %s)", crop, strings.Join(available, ", "))
	}

	ranked := rankByScore(matched)

	seenRegion := make(map[string]bool, len(ranked))
	seenBoundary := make(map[string]bool, len(ranked))
	out := make([]model.RegionCrop, 0, min(topN, len(ranked)))
	for _, r := range ranked {
		if len(out) == topN {
			break
		}
		if seenRegion[r.Soil.Code] || seenBoundary[r.Region.Code] {
			continue
		}
		seenRegion[r.Soil.Code] = true
		seenBoundary[r.Region.Code] = true
		out = append(out, r.Clone())
	}
	return out, nil
}

// SearchByRegion returns the best crops for a place: rows whose province
// equals province and whose district contains district (case-sensitive),
// ordered by score descending, one row per crop, at most topN rows.
func (t *Table) SearchByRegion(province, district string, topN int) ([]model.RegionCrop, error) {
	if t == nil {
		return nil, eris.Wrap(model.ErrNotLoaded, "region: search by region")
	}
	if topN <= 0 {
		topN = DefaultRegionTopN
	}

	var matched []model.RegionCrop
	for _, r := range t.rows {
		if r.Province != province || r.District == "" {
			continue
		}
		if strings.Contains(r.District, district) {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return nil, eris.Wrapf(model.ErrNotFound, "region: place %q %q", province, district)
	}

	ranked := rankByScore(matched)

	seen := make(map[string]bool, len(ranked))
	out := make([]model.RegionCrop, 0, min(topN, len(ranked)))
	for _, r := range ranked {
		if len(out) == topN {
			break
		}
		if seen[r.Soil.Crop] {
			continue
		}
		seen[r.Soil.Crop] = true
		out = append(out, r.Clone())
	}
	return out, nil
}

// rankByScore drops unscored rows and stable-sorts the rest by score descending.
func rankByScore(rows []model.RegionCrop) []model.RegionCrop {
	scored := make([]model.RegionCrop, 0, len(rows))
	for _, r := range rows {
		if r.Score != nil {
			scored = append(scored, r)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].Score > *scored[j].Score
	})
	return scored
}

// Crops returns the distinct crop names in the table, sorted.
func (t *Table) Crops() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.rows {
		if r.Soil.Crop != "" && !seen[r.Soil.Crop] {
			seen[r.Soil.Crop] = true
			out = append(out, r.Soil.Crop)
		}
	}
	sort.Strings(out)
	return out
}

// Regions returns the distinct (province, district) pairs, sorted by
// province then district. An empty province filter returns every place.
func (t *Table) Regions(province string) []Place {
	if t == nil {
		return nil
	}
	seen := make(map[Place]bool)
	var out []Place
	for _, r := range t.rows {
		if province != "" && r.Province != province {
			continue
		}
		p := Place{Province: r.Province, District: r.District}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Province != out[j].Province {
			return out[i].Province < out[j].Province
		}
		return out[i].District < out[j].District
	})
	return out
}
