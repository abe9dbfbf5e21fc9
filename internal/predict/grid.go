package predict

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/crop-cli/internal/model"
)

// Family identifies a regression model family.
type Family string

// Supported model families, in training order.
const (
	Linear       Family = "linear"
	Ridge        Family = "ridge"
	Lasso        Family = "lasso"
	Polynomial   Family = "polynomial"
	RandomForest Family = "random_forest"
)

// Families lists every model family in training order.
var Families = []Family{Linear, Ridge, Lasso, Polynomial, RandomForest}

// ParseFamily resolves a family name.
func ParseFamily(name string) (Family, error) {
	f := Family(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Families {
		if f == known {
			return f, nil
		}
	}
	return "", eris.Errorf("predict: unknown model family %q", name)
}

// Grid holds the hyperparameter values searched for each family.
// A MaxDepth of 0 means unlimited.
type Grid struct {
	Linear struct {
		FitIntercept []bool `yaml:"fit_intercept"`
	} `yaml:"linear"`
	Ridge struct {
		Alpha []float64 `yaml:"alpha"`
	} `yaml:"ridge"`
	Lasso struct {
		Alpha []float64 `yaml:"alpha"`
	} `yaml:"lasso"`
	Polynomial struct {
		Degree []int `yaml:"degree"`
	} `yaml:"polynomial"`
	RandomForest struct {
		NEstimators     []int `yaml:"n_estimators"`
		MaxDepth        []int `yaml:"max_depth"`
		MinSamplesSplit []int `yaml:"min_samples_split"`
		MinSamplesLeaf  []int `yaml:"min_samples_leaf"`
	} `yaml:"random_forest"`
}

var defaultAlphas = []float64{0.001, 0.01, 0.1, 1, 5, 10, 20, 50, 100, 200, 1000, 2000}

// DefaultGrid returns the standard search grid.
func DefaultGrid() Grid {
	var g Grid
	g.Linear.FitIntercept = []bool{true, false}
	g.Ridge.Alpha = append([]float64(nil), defaultAlphas...)
	g.Lasso.Alpha = append([]float64(nil), defaultAlphas...)
	g.Polynomial.Degree = []int{1, 2, 3}
	g.RandomForest.NEstimators = []int{50, 100, 200}
	g.RandomForest.MaxDepth = []int{0, 10, 20, 30}
	g.RandomForest.MinSamplesSplit = []int{2, 5, 10}
	g.RandomForest.MinSamplesLeaf = []int{1, 2, 4}
	return g
}

// LoadGrid reads a YAML grid file. Families or parameters the file leaves out
// keep their default values.
func LoadGrid(path string) (Grid, error) {
	g := DefaultGrid()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return g, eris.Wrapf(model.ErrFileNotFound, "predict: grid file %s", path)
		}
		return g, eris.Wrapf(err, "predict: read grid file %s", path)
	}
	if err := yaml.Unmarshal(data, &g); err != nil {
		return g, eris.Wrapf(err, "predict: parse grid file %s", path)
	}
	if err := g.Validate(); err != nil {
		return g, err
	}
	return g, nil
}

// Validate checks that every list is non-empty and every value is in range.
func (g Grid) Validate() error {
	var errs []string
	if len(g.Linear.FitIntercept) == 0 {
		errs = append(errs, "linear.fit_intercept is empty")
	}
	for name, alphas := range map[string][]float64{"ridge": g.Ridge.Alpha, "lasso": g.Lasso.Alpha} {
		if len(alphas) == 0 {
			errs = append(errs, name+".alpha is empty")
		}
		for _, a := range alphas {
			if a <= 0 {
				errs = append(errs, fmt.Sprintf("%s.alpha must be positive, got %g", name, a))
			}
		}
	}
	if len(g.Polynomial.Degree) == 0 {
		errs = append(errs, "polynomial.degree is empty")
	}
	for _, d := range g.Polynomial.Degree {
		if d < 1 || d > 5 {
			errs = append(errs, fmt.Sprintf("polynomial.degree must be in [1,5], got %d", d))
		}
	}
	rf := g.RandomForest
	checkInts := func(name string, vals []int, lo int) {
		if len(vals) == 0 {
			errs = append(errs, "random_forest."+name+" is empty")
		}
		for _, v := range vals {
			if v < lo {
				errs = append(errs, fmt.Sprintf("random_forest.%s must be >= %d, got %d", name, lo, v))
			}
		}
	}
	checkInts("n_estimators", rf.NEstimators, 1)
	checkInts("max_depth", rf.MaxDepth, 0)
	checkInts("min_samples_split", rf.MinSamplesSplit, 2)
	checkInts("min_samples_leaf", rf.MinSamplesLeaf, 1)

	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("predict: invalid grid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Params is one hyperparameter configuration. Only the fields of the
// configuration's family are meaningful.
type Params struct {
	FitIntercept    bool    `json:"fit_intercept,omitempty" yaml:"fit_intercept,omitempty"`
	Alpha           float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`
	Degree          int     `json:"degree,omitempty" yaml:"degree,omitempty"`
	NEstimators     int     `json:"n_estimators,omitempty" yaml:"n_estimators,omitempty"`
	MaxDepth        int     `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	MinSamplesSplit int     `json:"min_samples_split,omitempty" yaml:"min_samples_split,omitempty"`
	MinSamplesLeaf  int     `json:"min_samples_leaf,omitempty" yaml:"min_samples_leaf,omitempty"`
}

// Format renders the parameters of family f as "name=value" pairs.
func (p Params) Format(f Family) string {
	switch f {
	case Linear:
		return fmt.Sprintf("fit_intercept=%t", p.FitIntercept)
	case Ridge, Lasso:
		return fmt.Sprintf("alpha=%g", p.Alpha)
	case Polynomial:
		return fmt.Sprintf("degree=%d", p.Degree)
	case RandomForest:
		depth := "none"
		if p.MaxDepth > 0 {
			depth = fmt.Sprint(p.MaxDepth)
		}
		return fmt.Sprintf("max_depth=%s min_samples_leaf=%d min_samples_split=%d n_estimators=%d",
			depth, p.MinSamplesLeaf, p.MinSamplesSplit, p.NEstimators)
	default:
		return ""
	}
}

// configurations expands the grid for family f in a fixed order.
func (g Grid) configurations(f Family) []Params {
	var out []Params
	switch f {
	case Linear:
		for _, fi := range g.Linear.FitIntercept {
			out = append(out, Params{FitIntercept: fi})
		}
	case Ridge:
		for _, a := range g.Ridge.Alpha {
			out = append(out, Params{Alpha: a})
		}
	case Lasso:
		for _, a := range g.Lasso.Alpha {
			out = append(out, Params{Alpha: a})
		}
	case Polynomial:
		for _, d := range g.Polynomial.Degree {
			out = append(out, Params{Degree: d})
		}
	case RandomForest:
		rf := g.RandomForest
		for _, depth := range rf.MaxDepth {
			for _, leaf := range rf.MinSamplesLeaf {
				for _, split := range rf.MinSamplesSplit {
					for _, n := range rf.NEstimators {
						out = append(out, Params{
							NEstimators:     n,
							MaxDepth:        depth,
							MinSamplesSplit: split,
							MinSamplesLeaf:  leaf,
						})
					}
				}
			}
		}
	}
	return out
}
