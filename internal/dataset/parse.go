package dataset

import (
	"math"
	"strconv"
	"strings"
)

// parseNumber parses a numeric cell. ok is false for blank and NaN-like cells;
// err is set when the cell is not numeric at all.
func parseNumber(s string) (v float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "nan", "na", "n/a", "null", "none", "-":
		return 0, false, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) {
		return 0, false, nil
	}
	return v, true, nil
}

// optionalNumber parses a cell into a pointer, nil when blank or unparseable.
func optionalNumber(s string) *float64 {
	v, ok, err := parseNumber(s)
	if err != nil || !ok {
		return nil
	}
	return &v
}

// isIndexHeader reports whether a header names a leftover positional index column.
func isIndexHeader(h string) bool {
	return h == "" || strings.HasPrefix(h, "Unnamed:")
}
