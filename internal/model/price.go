package model

// Weather feature columns used by the price predictor, in model order.
var FeatureColumns = []string{
	"평균기온(°C)",
	"일강수량(mm)",
	"최대 풍속(m/s)",
	"평균 상대습도(%)",
	"합계 일조시간(hr)",
	"일교차(°C)",
	"거래량",
}

// TargetColumn is the price-per-unit column the predictor fits.
const TargetColumn = "가격/단량"

// WeekColumn is the optional week index column.
const WeekColumn = "주차"

// PriceTable is one crop's weekly weather and price table.
// Rows[i][j] is the value of Columns[j] in week Weeks[i].
type PriceTable struct {
	Crop    string      `json:"crop"`
	Columns []string    `json:"columns"`
	Weeks   []string    `json:"weeks,omitempty"`
	Rows    [][]float64 `json:"rows"`
}

// Len returns the number of rows.
func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of a column, or -1.
func (t *PriceTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's values.
func (t *PriceTable) Column(name string) ([]float64, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, true
}
