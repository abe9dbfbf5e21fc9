package report

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"unicode"

	"github.com/rotisserie/eris"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sells-group/crop-cli/internal/predict"
)

// PlotPredictions saves a predicted-versus-actual scatter plot with a y=x
// reference line. The format follows the path's extension (.png, .svg, .pdf).
func PlotPredictions(path, title string, actual, predicted []float64) error {
	if len(actual) != len(predicted) {
		return eris.Errorf("report: %d actual values but %d predictions", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return eris.New("report: no predictions to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "actual price"
	p.Y.Label.Text = "predicted price"

	points := make(plotter.XYs, len(actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range actual {
		points[i].X = actual[i]
		points[i].Y = predicted[i]
		lo = math.Min(lo, math.Min(actual[i], predicted[i]))
		hi = math.Max(hi, math.Max(actual[i], predicted[i]))
	}

	scatter, err := plotter.NewScatter(points)
	if err != nil {
		return eris.Wrap(err, "report: build scatter")
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(3)
	scatter.GlyphStyle.Color = color.RGBA{R: 52, G: 152, B: 219, A: 255}

	line := plotter.NewFunction(func(x float64) float64 { return x })
	line.XMin, line.XMax = lo, hi
	line.Color = color.RGBA{R: 231, G: 76, B: 60, A: 255}
	line.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}

	p.Add(plotter.NewGrid(), scatter, line)
	p.Legend.Add("test rows", scatter)
	p.Legend.Add("y = x", line)
	p.Legend.Top = true
	p.Legend.Left = true

	return save(p, path, 6*vg.Inch, 6*vg.Inch)
}

// PlotImportance saves a bar chart of feature importances in the given order.
func PlotImportance(path, title string, imps []predict.Importance) error {
	if len(imps) == 0 {
		return eris.New("report: no feature importances to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.Y.Label.Text = "importance"

	values := make(plotter.Values, len(imps))
	names := make([]string, len(imps))
	for i, imp := range imps {
		values[i] = imp.Importance
		names[i] = chartLabel(imp.Feature, i)
	}

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return eris.Wrap(err, "report: build bar chart")
	}
	bars.Color = color.RGBA{R: 52, G: 152, B: 219, A: 255}
	bars.LineStyle.Width = vg.Length(0)

	p.Add(plotter.NewGrid(), bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = math.Pi / 6
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter

	return save(p, path, 8*vg.Inch, 5*vg.Inch)
}

// featureLabels romanizes the weather columns. The bundled Liberation fonts
// have no Hangul glyphs.
var featureLabels = map[string]string{
	"평균기온(°C)":    "mean temp (°C)",
	"일강수량(mm)":    "rainfall (mm)",
	"최대 풍속(m/s)":  "max wind (m/s)",
	"평균 상대습도(%)":  "mean humidity (%)",
	"합계 일조시간(hr)": "sunshine (hr)",
	"일교차(°C)":     "daily range (°C)",
	"거래량":         "volume",
	"주차":          "week",
}

// chartLabel returns a label the chart fonts can draw: the romanized name of
// a known column, the name itself when it has no Hangul, else "feature N".
func chartLabel(name string, i int) string {
	if l, ok := featureLabels[name]; ok {
		return l
	}
	for _, r := range name {
		if unicode.Is(unicode.Hangul, r) {
			return "feature " + strconv.Itoa(i+1)
		}
	}
	return name
}

func save(p *plot.Plot, path string, w, h vg.Length) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "report: create %s", filepath.Dir(path))
	}
	if err := p.Save(w, h, path); err != nil {
		return eris.Wrapf(err, "report: save chart %s", path)
	}
	return nil
}
