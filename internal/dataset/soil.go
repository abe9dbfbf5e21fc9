package dataset

import (
	"context"
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crop-cli/internal/fetcher"
	"github.com/sells-group/crop-cli/internal/model"
)

// linkColumns are the positional names given to the translation table columns.
var linkColumns = []string{"동이름", "행정동코드", "법정동코드"}

// LoadSoil reads the soil-suitability table. Ratio and composition cells that
// are blank stay absent rather than zero.
func LoadSoil(ctx context.Context, p Paths) ([]model.SoilRecord, error) {
	path, err := resolveFile(p.SoilPath())
	if err != nil {
		return nil, err
	}

	tbl, err := fetcher.ReadTable(ctx, path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read soil table")
	}

	records, err := parseSoil(tbl)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: soil table %s", path)
	}

	zap.L().Debug("soil table loaded",
		zap.String("component", "dataset"),
		zap.String("path", path),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func parseSoil(tbl *fetcher.Table) ([]model.SoilRecord, error) {
	codeIdx := tbl.Index(model.ColSoilCode)
	cropIdx := tbl.Index(model.ColCropName)
	if codeIdx < 0 || cropIdx < 0 {
		return nil, eris.Errorf("required columns %q and %q not found", model.ColSoilCode, model.ColCropName)
	}
	bestIdx := tbl.Index(model.ColBestRatio)
	goodIdx := tbl.Index(model.ColGoodRatio)

	compIdx := make(map[string]int, len(model.SoilColumns))
	for _, col := range model.SoilColumns {
		if i := tbl.Index(col); i >= 0 {
			compIdx[col] = i
		}
	}

	known := map[int]bool{codeIdx: true, cropIdx: true, bestIdx: true, goodIdx: true}
	for _, i := range compIdx {
		known[i] = true
	}

	records := make([]model.SoilRecord, 0, len(tbl.Rows))
	for r := range tbl.Rows {
		rec := model.SoilRecord{
			Code: tbl.Cell(r, codeIdx),
			Crop: tbl.Cell(r, cropIdx),
		}
		if bestIdx >= 0 {
			rec.BestRatio = optionalNumber(tbl.Cell(r, bestIdx))
		}
		if goodIdx >= 0 {
			rec.GoodRatio = optionalNumber(tbl.Cell(r, goodIdx))
		}
		for col, i := range compIdx {
			if v := optionalNumber(tbl.Cell(r, i)); v != nil {
				if rec.Composition == nil {
					rec.Composition = make(map[string]float64, len(compIdx))
				}
				rec.Composition[col] = *v
			}
		}
		for i, h := range tbl.Header {
			if known[i] || isIndexHeader(h) {
				continue
			}
			if v := tbl.Cell(r, i); v != "" {
				if rec.Extra == nil {
					rec.Extra = make(map[string]string)
				}
				rec.Extra[h] = v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadCodeLinks reads the optional boundary-to-soil code translation table.
// It returns (nil, nil) when the file does not exist so the caller can fall
// back to direct matching. Columns are renamed positionally, since the header
// row of this file is often mis-encoded.
func LoadCodeLinks(ctx context.Context, path string) ([]model.CodeLink, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			zap.L().Warn("code translation table not found; direct code matching will be used",
				zap.String("component", "dataset"),
				zap.String("path", path),
			)
			return nil, nil
		}
		return nil, eris.Wrapf(err, "dataset: stat %s", path)
	}

	tbl, err := fetcher.ReadTable(ctx, path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read code translation table")
	}
	if len(tbl.Header) < len(linkColumns) {
		return nil, eris.Errorf("dataset: code translation table needs %d columns %v, got %d",
			len(linkColumns), linkColumns, len(tbl.Header))
	}
	tbl.Header = append(append([]string(nil), linkColumns...), tbl.Header[len(linkColumns):]...)

	type pair struct{ boundary, soil string }
	seen := make(map[pair]bool, len(tbl.Rows))
	links := make([]model.CodeLink, 0, len(tbl.Rows))
	for r := range tbl.Rows {
		l := model.CodeLink{
			Name:         tbl.Cell(r, 0),
			BoundaryCode: tbl.Cell(r, 1),
			SoilCode:     tbl.Cell(r, 2),
		}
		if l.BoundaryCode == "" && l.SoilCode == "" {
			continue
		}
		k := pair{l.BoundaryCode, l.SoilCode}
		if seen[k] {
			continue
		}
		seen[k] = true
		links = append(links, l)
	}

	zap.L().Debug("code translation table loaded",
		zap.String("component", "dataset"),
		zap.Int("links", len(links)),
	)
	return links, nil
}
