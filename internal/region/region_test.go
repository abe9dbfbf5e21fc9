package region

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crop-cli/internal/model"
)

func f(v float64) *float64 { return &v }

func boundary(code, province, district string) model.Region {
	return model.Region{Code: code, Province: province, District: district}
}

func soilRow(code, crop string, best, good *float64) model.SoilRecord {
	return model.SoilRecord{Code: code, Crop: crop, BestRatio: best, GoodRatio: good}
}

// appleFixture builds n boundaries in 경상북도 linked one-to-one to soil codes,
// each with an apple row scored by its index, plus an 안동시 region with
// several crops.
func appleFixture(n int) ([]model.Region, []model.SoilRecord, []model.CodeLink) {
	var regions []model.Region
	var soil []model.SoilRecord
	var links []model.CodeLink
	for i := 0; i < n; i++ {
		bc := fmt.Sprintf("47%08d", i)
		sc := fmt.Sprintf("48%08d", i)
		regions = append(regions, boundary(bc, "경상북도", fmt.Sprintf("경상북도 영주시 %d동", i)))
		links = append(links, model.CodeLink{Name: fmt.Sprintf("%d동", i), BoundaryCode: bc, SoilCode: sc})
		soil = append(soil, soilRow(sc, "사과", f(float64(i)/100), f(0.1)))
	}

	regions = append(regions,
		boundary("4717051000", "경상북도", "경상북도 안동시 중구동"),
		boundary("4717052000", "경상북도", "경상북도 안동시 명륜동"),
		boundary("2611051000", "부산광역시", "부산광역시 중구 안동시장"),
		boundary("4717053000", "경상북도", ""),
	)
	links = append(links,
		model.CodeLink{BoundaryCode: "4717051000", SoilCode: "4717010100"},
		model.CodeLink{BoundaryCode: "4717052000", SoilCode: "4717010200"},
		model.CodeLink{BoundaryCode: "2611051000", SoilCode: "2611010100"},
		model.CodeLink{BoundaryCode: "4717053000", SoilCode: "4717010300"},
	)
	soil = append(soil,
		soilRow("4717010100", "사과", f(0.9), f(0.05)),
		soilRow("4717010100", "배추", f(0.3), f(0.3)),
		soilRow("4717010100", "양파", nil, f(0.9)),
		soilRow("4717010200", "사과", f(0.2), f(0.1)),
		soilRow("4717010200", "배추", f(0.5), f(0.4)),
		soilRow("4717010200", "복숭아", f(0.6), f(0.0)),
		soilRow("2611010100", "무", f(1), f(1)),
		soilRow("4717010300", "감귤", f(1), f(1)),
	)
	return regions, soil, links
}

func mustMerge(t *testing.T, b []model.Region, s []model.SoilRecord, l []model.CodeLink) *Table {
	t.Helper()
	tbl, err := Merge(b, s, l)
	require.NoError(t, err)
	return tbl
}

func TestNormalizeCode(t *testing.T) {
	tests := map[string]string{
		" 1111051500 ":   "1111051500",
		"1111051500.0":   "1111051500",
		"1111051500.000": "1111051500",
		"1111051500.5":   "1111051500.5",
		"A12.0":          "A12.0",
		"":               "",
		".0":             ".0",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeCode(in), in)
	}
}

func TestMerge_ViaTranslation(t *testing.T) {
	regions := []model.Region{
		boundary(" 1111051500", "서울특별시", "서울특별시 종로구 청운효자동"),
		boundary("1111053000", "서울특별시", "서울특별시 종로구 사직동"),
		boundary("9999999999", "서울특별시", "unlinked"),
	}
	links := []model.CodeLink{
		{BoundaryCode: "1111051500", SoilCode: "1111010100.0"},
		{BoundaryCode: "1111051500", SoilCode: "1111010100"},
		{BoundaryCode: "1111053000 ", SoilCode: "1111010200"},
	}
	soil := []model.SoilRecord{
		soilRow("1111010100", "사과", f(0.4), f(0.2)),
		soilRow("1111010100 ", "배추", f(0.1), nil),
		soilRow("1111010200", "사과", f(0.3), f(0.3)),
		soilRow("5555555555", "무", f(0.1), f(0.1)),
	}

	tbl := mustMerge(t, regions, soil, links)
	rows := tbl.Rows()
	require.Len(t, rows, 3)

	assert.Equal(t, "1111051500", rows[0].Region.Code)
	assert.Equal(t, "1111010100", rows[0].Soil.Code)
	assert.Equal(t, "사과", rows[0].Soil.Crop)
	require.NotNil(t, rows[0].Score)
	assert.InDelta(t, 0.5, *rows[0].Score, 1e-9)

	assert.Equal(t, "배추", rows[1].Soil.Crop)
	assert.Nil(t, rows[1].Score, "missing good ratio leaves row unscored")

	assert.Equal(t, "1111053000", rows[2].Region.Code)

	d := tbl.Diagnostics()
	assert.Equal(t, ViaTranslation, d.Strategy)
	assert.Equal(t, 3, d.Boundaries)
	assert.Equal(t, 4, d.SoilRecords)
	assert.Equal(t, 2, d.LinkedBoundaries)
	assert.Equal(t, 2, d.MatchedBoundaries)
	assert.Equal(t, 1, d.UnmatchedSoilCodes)
	assert.Equal(t, 3, d.Rows)
	assert.Equal(t, 1, d.UnscoredRows)
	assert.InDelta(t, 2.0/3.0, d.MatchRate(), 1e-9)
}

func TestMerge_Direct(t *testing.T) {
	regions := []model.Region{
		boundary("4717010100", "경상북도", "경상북도 안동시 삼산동"),
		boundary("4717051000", "경상북도", "경상북도 안동시 중구동"),
		boundary("", "경상북도", "blank"),
	}
	soil := []model.SoilRecord{
		soilRow("4717010100.0", "사과", f(0.5), f(0.5)),
		soilRow("", "사과", f(0.5), f(0.5)),
	}

	tbl := mustMerge(t, regions, soil, nil)
	require.Equal(t, 1, tbl.Len())
	d := tbl.Diagnostics()
	assert.Equal(t, Direct, d.Strategy)
	assert.Equal(t, 1, d.MatchedBoundaries)
	assert.Equal(t, 0, d.LinkedBoundaries)
	assert.InDelta(t, 1.0/3.0, d.MatchRate(), 1e-9)
}

func TestMerge_ZeroRowsIsNotAnError(t *testing.T) {
	tbl := mustMerge(t, []model.Region{boundary("1", "a", "b")}, []model.SoilRecord{}, []model.CodeLink{})
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, 0.0, tbl.Diagnostics().MatchRate())

	_, err := tbl.SearchByCrop("사과", 10)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestMerge_NotLoaded(t *testing.T) {
	_, err := Merge(nil, []model.SoilRecord{}, nil)
	assert.True(t, errors.Is(err, model.ErrNotLoaded))

	_, err = Merge([]model.Region{}, nil, nil)
	assert.True(t, errors.Is(err, model.ErrNotLoaded))
}

func TestMerge_ScoreFormula(t *testing.T) {
	cases := [][2]float64{{0, 0}, {1, 0}, {0, 1}, {0.123456789, 0.987654321}, {12.5, 3.25}}
	for _, c := range cases {
		regions := []model.Region{boundary("1", "p", "d")}
		soil := []model.SoilRecord{soilRow("1", "사과", f(c[0]), f(c[1]))}
		tbl := mustMerge(t, regions, soil, nil)
		require.Equal(t, 1, tbl.Len())
		got := tbl.Rows()[0].Score
		require.NotNil(t, got)
		assert.InDelta(t, (2*c[0]+c[1])/2, *got, 1e-9)
	}
}

func TestTable_RowsReturnsCopy(t *testing.T) {
	regions, soil, links := appleFixture(3)
	tbl := mustMerge(t, regions, soil, links)

	rows := tbl.Rows()
	rows[0].Soil.Crop = "changed"
	assert.NotEqual(t, "changed", tbl.Rows()[0].Soil.Crop)
}

func TestTable_ReturnedRowsDoNotAliasTable(t *testing.T) {
	regions, soil, links := appleFixture(3)
	soil[len(soil)-8].Composition = map[string]float64{"산도": 6.1}
	tbl := mustMerge(t, regions, soil, links)
	soil[len(soil)-8].Composition["산도"] = 1

	rows := tbl.Rows()
	for i := range rows {
		if rows[i].Score != nil {
			*rows[i].Score = 99
		}
		if rows[i].Soil.Composition != nil {
			rows[i].Soil.Composition["산도"] = 1
		}
	}
	byCrop, err := tbl.SearchByCrop("사과", 1)
	require.NoError(t, err)
	require.Len(t, byCrop, 1)
	assert.InDelta(t, 0.9+0.05/2, *byCrop[0].Score, 1e-9)
	assert.Equal(t, map[string]float64{"산도": 6.1}, byCrop[0].Soil.Composition)

	*byCrop[0].Score = -1
	byCrop[0].Soil.Composition["산도"] = 0
	byRegion, err := tbl.SearchByRegion("경상북도", "중구동", 1)
	require.NoError(t, err)
	require.Len(t, byRegion, 1)
	assert.Equal(t, "사과", byRegion[0].Soil.Crop)
	assert.InDelta(t, 0.9+0.05/2, *byRegion[0].Score, 1e-9)
	assert.Equal(t, 6.1, byRegion[0].Soil.Composition["산도"])

	*byRegion[0].Score = -1
	again, err := tbl.SearchByCrop("사과", 1)
	require.NoError(t, err)
	assert.Equal(t, "4717051000", again[0].Region.Code)
	assert.InDelta(t, 0.9+0.05/2, *again[0].Score, 1e-9)
}

func TestSearchByCrop_TopTen(t *testing.T) {
	regions, soil, links := appleFixture(20)
	tbl := mustMerge(t, regions, soil, links)

	got, err := tbl.SearchByCrop("사과", 10)
	require.NoError(t, err)
	require.Len(t, got, 10)

	for i, r := range got {
		require.NotNil(t, r.Score)
		assert.Equal(t, "사과", r.Soil.Crop)
		if i > 0 {
			assert.GreaterOrEqual(t, *got[i-1].Score, *r.Score)
		}
	}
	assert.Equal(t, "4717051000", got[0].Region.Code, "highest score first")
}

func TestSearchByCrop_NoDuplicateRegions(t *testing.T) {
	regions, soil, links := appleFixture(5)
	// Duplicate soil rows and a second boundary sharing a soil code.
	soil = append(soil, soilRow("4800000001", "사과", f(0.5), f(0.5)))
	regions = append(regions, boundary("4799999999", "경상북도", "경상북도 영주시 1동 분동"))
	links = append(links, model.CodeLink{BoundaryCode: "4799999999", SoilCode: "4800000001"})
	tbl := mustMerge(t, regions, soil, links)

	for _, topN := range []int{1, 3, 100, 0} {
		got, err := tbl.SearchByCrop("사과", topN)
		require.NoError(t, err)

		limit := topN
		if limit == 0 {
			limit = DefaultCropTopN
		}
		assert.LessOrEqual(t, len(got), limit)

		soilCodes := map[string]bool{}
		boundaryCodes := map[string]bool{}
		for _, r := range got {
			assert.False(t, soilCodes[r.Soil.Code], "duplicate soil code %s", r.Soil.Code)
			assert.False(t, boundaryCodes[r.Region.Code], "duplicate boundary code %s", r.Region.Code)
			soilCodes[r.Soil.Code] = true
			boundaryCodes[r.Region.Code] = true
		}
	}
}

func TestSearchByCrop_DedupsOnBoundaryAndSoilCode(t *testing.T) {
	regions := []model.Region{
		boundary("4717051000", "경상북도", "경상북도 안동시 중구동"),
		boundary("4717052000", "경상북도", "경상북도 안동시 명륜동"),
	}
	links := []model.CodeLink{
		// 중구동 spans two legal-dong codes; 명륜동 shares the second.
		{BoundaryCode: "4717051000", SoilCode: "4717010100"},
		{BoundaryCode: "4717051000", SoilCode: "4717010200"},
		{BoundaryCode: "4717052000", SoilCode: "4717010200"},
		{BoundaryCode: "4717052000", SoilCode: "4717010300"},
	}
	soil := []model.SoilRecord{
		soilRow("4717010100", "사과", f(0.9), f(0)),
		soilRow("4717010200", "사과", f(0.8), f(0)),
		soilRow("4717010300", "사과", f(0.1), f(0)),
	}
	tbl := mustMerge(t, regions, soil, links)

	got, err := tbl.SearchByCrop("사과", 10)
	require.NoError(t, err)

	// Deduplicating on the legal-dong code alone would list 중구동 twice.
	var pairs [][2]string
	for _, r := range got {
		pairs = append(pairs, [2]string{r.Region.Code, r.Soil.Code})
	}
	assert.Equal(t, [][2]string{
		{"4717051000", "4717010100"},
		{"4717052000", "4717010200"},
	}, pairs)
}

func TestSearchByCrop_StableTies(t *testing.T) {
	regions := []model.Region{boundary("1", "p", "a"), boundary("2", "p", "b"), boundary("3", "p", "c")}
	soil := []model.SoilRecord{
		soilRow("1", "사과", f(0.1), f(0.1)),
		soilRow("2", "사과", f(0.1), f(0.1)),
		soilRow("3", "사과", f(0.2), f(0.1)),
	}
	tbl := mustMerge(t, regions, soil, nil)

	got, err := tbl.SearchByCrop("사과", 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"3", "1", "2"}, []string{got[0].Region.Code, got[1].Region.Code, got[2].Region.Code})
}

func TestSearchByCrop_ExcludesUnscored(t *testing.T) {
	regions, soil, links := appleFixture(2)
	tbl := mustMerge(t, regions, soil, links)

	got, err := tbl.SearchByCrop("양파", 10)
	require.NoError(t, err)
	assert.Empty(t, got, "the only onion row has no best ratio")
}

func TestSearchByCrop_NotFound(t *testing.T) {
	regions, soil, links := appleFixture(2)
	tbl := mustMerge(t, regions, soil, links)

	_, err := tbl.SearchByCrop("바나나", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Contains(t, err.Error(), "사과")

	_, err = tbl.SearchByCrop("사", 10)
	assert.True(t, errors.Is(err, model.ErrNotFound), "crop match is exact")
}

func TestSearchByCrop_NotFoundListsAtMostTen(t *testing.T) {
	var regions []model.Region
	var soil []model.SoilRecord
	for i := 0; i < 15; i++ {
		regions = append(regions, boundary(fmt.Sprint(i), "p", "d"))
		soil = append(soil, soilRow(fmt.Sprint(i), fmt.Sprintf("crop%02d", i), f(1), f(1)))
	}
	tbl := mustMerge(t, regions, soil, nil)

	_, err := tbl.SearchByCrop("none", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crop09")
	assert.NotContains(t, err.Error(), "crop10")
}

func TestSearchByRegion_Andong(t *testing.T) {
	regions, soil, links := appleFixture(5)
	tbl := mustMerge(t, regions, soil, links)

	got, err := tbl.SearchByRegion("경상북도", "안동시", 5)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 5)

	crops := map[string]bool{}
	for i, r := range got {
		assert.Equal(t, "경상북도", r.Province)
		assert.Contains(t, r.District, "안동시")
		assert.False(t, crops[r.Soil.Crop], "duplicate crop %s", r.Soil.Crop)
		crops[r.Soil.Crop] = true
		if i > 0 {
			assert.GreaterOrEqual(t, *got[i-1].Score, *r.Score)
		}
	}

	// 사과 0.925 (중구동), 복숭아 0.6, 배추 0.7 (명륜동) > 0.45 (중구동); 양파 unscored.
	var names []string
	for _, r := range got {
		names = append(names, r.Soil.Crop)
	}
	assert.Equal(t, []string{"사과", "배추", "복숭아"}, names)
	assert.Equal(t, "4717052000", got[1].Region.Code, "best 배추 row kept")
}

func TestSearchByRegion_TopNTruncates(t *testing.T) {
	regions, soil, links := appleFixture(1)
	tbl := mustMerge(t, regions, soil, links)

	got, err := tbl.SearchByRegion("경상북도", "안동시", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "사과", got[0].Soil.Crop)
}

func TestSearchByRegion_NotFound(t *testing.T) {
	regions, soil, links := appleFixture(1)
	tbl := mustMerge(t, regions, soil, links)

	tests := []struct{ province, district string }{
		{"전라남도", "안동시"},
		{"경상북도", "목포시"},
		{"경상북도", "안동 시"},
		{"경상북도", "ANDONG"},
	}
	for _, tt := range tests {
		_, err := tbl.SearchByRegion(tt.province, tt.district, 5)
		assert.True(t, errors.Is(err, model.ErrNotFound), "%s %s", tt.province, tt.district)
	}
}

func TestSearchByRegion_ProvinceMustMatchExactly(t *testing.T) {
	regions, soil, links := appleFixture(1)
	tbl := mustMerge(t, regions, soil, links)

	got, err := tbl.SearchByRegion("부산광역시", "안동", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "무", got[0].Soil.Crop)
}

func TestSearch_NilTable(t *testing.T) {
	var tbl *Table
	_, err := tbl.SearchByCrop("사과", 10)
	assert.True(t, errors.Is(err, model.ErrNotLoaded))
	_, err = tbl.SearchByRegion("경상북도", "안동시", 10)
	assert.True(t, errors.Is(err, model.ErrNotLoaded))
	assert.Nil(t, tbl.Crops())
	assert.Equal(t, 0, tbl.Len())
}

func TestCropsAndRegions(t *testing.T) {
	regions, soil, links := appleFixture(2)
	tbl := mustMerge(t, regions, soil, links)

	assert.Equal(t, []string{"감귤", "무", "배추", "복숭아", "사과", "양파"}, tbl.Crops())

	all := tbl.Regions("")
	assert.Equal(t, Place{Province: "경상북도", District: ""}, all[0])
	assert.Equal(t, "부산광역시", all[len(all)-1].Province)

	gb := tbl.Regions("경상북도")
	for _, p := range gb {
		assert.Equal(t, "경상북도", p.Province)
	}
	assert.Len(t, gb, 5)
}
