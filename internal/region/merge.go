// Package region joins boundary geometries to soil-suitability records and
// answers crop-to-region and region-to-crop queries over the merged table.
package region

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crop-cli/internal/model"
)

// Strategy is how boundary codes are matched to soil codes.
type Strategy string

// Matching strategies, resolved once per merge.
const (
	ViaTranslation Strategy = "via_translation"
	Direct         Strategy = "direct"
)

// Diagnostics describes how well a merge matched its inputs.
type Diagnostics struct {
	Strategy           Strategy `json:"strategy"`
	Boundaries         int      `json:"boundaries"`
	SoilRecords        int      `json:"soil_records"`
	Links              int      `json:"links"`
	LinkedBoundaries   int      `json:"linked_boundaries"`  // boundaries with a translation entry
	MatchedBoundaries  int      `json:"matched_boundaries"` // boundaries with at least one soil row
	UnmatchedSoilCodes int      `json:"unmatched_soil_codes"`
	Rows               int      `json:"rows"`
	UnscoredRows       int      `json:"unscored_rows"`
}

// MatchRate is the share of boundaries that matched at least one soil row.
func (d Diagnostics) MatchRate() float64 {
	if d.Boundaries == 0 {
		return 0
	}
	return float64(d.MatchedBoundaries) / float64(d.Boundaries)
}

// Table is the immutable result of a merge.
type Table struct {
	rows []model.RegionCrop
	diag Diagnostics
}

// Len returns the number of merged rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Rows returns a copy of the merged rows in join order.
func (t *Table) Rows() []model.RegionCrop {
	if t == nil {
		return nil
	}
	return cloneRows(t.rows)
}

func cloneRows(rows []model.RegionCrop) []model.RegionCrop {
	out := make([]model.RegionCrop, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Diagnostics returns the merge diagnostics.
func (t *Table) Diagnostics() Diagnostics {
	if t == nil {
		return Diagnostics{}
	}
	return t.diag
}

// NormalizeCode renders a region code as a trimmed string. Integer codes that
// went through a float column ("1111051500.0") lose the fraction.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexByte(code, '.'); i > 0 && strings.Trim(code[i+1:], "0") == "" {
		if _, err := strconv.ParseUint(code[:i], 10, 64); err == nil {
			return code[:i]
		}
	}
	return code
}

// Merge joins boundaries to soil records and scores every merged row. When
// links is nil the boundary code is compared to the soil code directly, which
// is best-effort only: the two datasets use different coding schemes.
// Nil boundaries or soil records mean the inputs were never loaded.
func Merge(boundaries []model.Region, soil []model.SoilRecord, links []model.CodeLink) (*Table, error) {
	if boundaries == nil || soil == nil {
		return nil, eris.Wrap(model.ErrNotLoaded, "region: merge requires boundaries and soil records")
	}

	strategy := ViaTranslation
	if links == nil {
		strategy = Direct
	}

	log := zap.L().With(zap.String("component", "region.merge"), zap.String("strategy", string(strategy)))

	soilByCode := make(map[string][]int, len(soil))
	for i := range soil {
		code := NormalizeCode(soil[i].Code)
		if code == "" {
			continue
		}
		soilByCode[code] = append(soilByCode[code], i)
	}

	diag := Diagnostics{
		Strategy:    strategy,
		Boundaries:  len(boundaries),
		SoilRecords: len(soil),
		Links:       len(links),
	}

	var resolve func(boundaryCode string) []string
	switch strategy {
	case ViaTranslation:
		linkIndex := translationIndex(links)
		resolve = func(code string) []string { return linkIndex[code] }
	default:
		log.Warn("no code translation table; matching boundary codes to soil codes directly")
		resolve = func(code string) []string {
			if code == "" {
				return nil
			}
			return []string{code}
		}
	}

	usedSoil := make(map[string]bool, len(soilByCode))
	var rows []model.RegionCrop
	for _, b := range boundaries {
		b.Code = NormalizeCode(b.Code)
		soilCodes := resolve(b.Code)
		if strategy == ViaTranslation && len(soilCodes) > 0 {
			diag.LinkedBoundaries++
		}

		matched := false
		for _, sc := range soilCodes {
			for _, si := range soilByCode[sc] {
				rec := soil[si]
				rec.Code = sc
				rows = append(rows, model.RegionCrop{
					Region: b,
					Soil:   rec,
					Score:  model.SuitabilityScore(rec.BestRatio, rec.GoodRatio),
				}.Clone())
				matched = true
				usedSoil[sc] = true
			}
		}
		if matched {
			diag.MatchedBoundaries++
		}
	}

	for code := range soilByCode {
		if !usedSoil[code] {
			diag.UnmatchedSoilCodes++
		}
	}
	diag.Rows = len(rows)
	for _, r := range rows {
		if r.Score == nil {
			diag.UnscoredRows++
		}
	}

	fields := []zap.Field{
		zap.Int("boundaries", diag.Boundaries),
		zap.Int("soil_records", diag.SoilRecords),
		zap.Int("matched_boundaries", diag.MatchedBoundaries),
		zap.Int("unmatched_soil_codes", diag.UnmatchedSoilCodes),
		zap.Int("unscored_rows", diag.UnscoredRows),
		zap.Float64("match_rate", diag.MatchRate()),
		zap.Int("rows", diag.Rows),
	}
	if strategy == ViaTranslation {
		fields = append(fields, zap.Int("linked_boundaries", diag.LinkedBoundaries))
	}
	log.Info("merge complete", fields...)

	return &Table{rows: rows, diag: diag}, nil
}

// translationIndex maps normalized boundary codes to their distinct soil
// codes, keeping first-seen order.
func translationIndex(links []model.CodeLink) map[string][]string {
	idx := make(map[string][]string, len(links))
	seen := make(map[[2]string]bool, len(links))
	for _, l := range links {
		bc, sc := NormalizeCode(l.BoundaryCode), NormalizeCode(l.SoilCode)
		if bc == "" || sc == "" {
			continue
		}
		k := [2]string{bc, sc}
		if seen[k] {
			continue
		}
		seen[k] = true
		idx[bc] = append(idx[bc], sc)
	}
	return idx
}
