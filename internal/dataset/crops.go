// Package dataset loads the crop price tables, the soil-suitability table and
// the region code translation table.
package dataset

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crop-cli/internal/model"
)

// crops maps supported crop keys to the crop names used in the soil data.
var crops = map[string]string{
	"apple":  "사과",
	"onion":  "양파",
	"baechu": "배추",
	"radish": "무",
	"gyul":   "감귤",
	"peach":  "복숭아",
}

// Crops returns a copy of the crop catalog, key -> Korean name.
func Crops() map[string]string {
	out := make(map[string]string, len(crops))
	for k, v := range crops {
		out[k] = v
	}
	return out
}

// CropKeys returns the supported crop keys in sorted order.
func CropKeys() []string {
	keys := make([]string, 0, len(crops))
	for k := range crops {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CropName returns the Korean name for a crop key.
func CropName(key string) (string, error) {
	if err := ValidateCrop(key); err != nil {
		return "", err
	}
	return crops[key], nil
}

// ValidateCrop rejects keys outside the catalog, listing the valid set.
func ValidateCrop(key string) error {
	if _, ok := crops[key]; !ok {
		return eris.Wrapf(model.ErrUnsupportedCrop, "dataset: crop %q (supported: %v)", key, CropKeys())
	}
	return nil
}

// FeatureColumns returns a copy of the weather feature column names.
func FeatureColumns() []string {
	return append([]string(nil), model.FeatureColumns...)
}

// TargetColumn returns the price column name.
func TargetColumn() string {
	return model.TargetColumn
}

// SoilColumns returns a copy of the soil composition column names.
func SoilColumns() []string {
	return append([]string(nil), model.SoilColumns...)
}
