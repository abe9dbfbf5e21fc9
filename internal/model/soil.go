package model

// Soil-suitability column names as they appear in the source tables.
const (
	ColSoilCode  = "법정동코드"
	ColCropName  = "작물이름"
	ColBestRatio = "면적당 최적지"
	ColGoodRatio = "면적당 적지"
)

// SoilColumns lists the soil composition columns in display order.
var SoilColumns = []string{
	"산도",
	"유효인산",
	"유기물",
	"마그네슘",
	"칼륨",
	"칼슘",
	"전기전도도",
}

// SoilRecord is one (soil code, crop) suitability row.
type SoilRecord struct {
	Code        string             `json:"code"` // soil code (legal-district coding)
	Crop        string             `json:"crop"`
	BestRatio   *float64           `json:"best_ratio,omitempty"`
	GoodRatio   *float64           `json:"good_ratio,omitempty"`
	Composition map[string]float64 `json:"composition,omitempty"` // present values only
	Extra       map[string]string  `json:"extra,omitempty"`
}

// CompositionValue returns the named composition value and whether it is present.
func (s SoilRecord) CompositionValue(col string) (float64, bool) {
	v, ok := s.Composition[col]
	return v, ok
}
