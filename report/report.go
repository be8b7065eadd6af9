// Package report renders training diagnostics as PNG files.
package report

import (
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/salesforecast/artifact"
	"github.com/YuminosukeSato/salesforecast/pipeline"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
)

// Output file names.
const (
	ResidualsFile   = "residuals_analysis.png"
	HistogramFile   = "residuals_histogram.png"
	ImportanceFile  = "feature_importance.png"
	PredVsTrueFile  = "predictions_vs_actual.png"
	maxImportanceN  = 15
	histogramBins   = 30
	defaultPlotSize = 6 * vg.Inch
)

var (
	trainColor = color.RGBA{B: 200, A: 255}
	testColor  = color.RGBA{G: 150, A: 255}
	refColor   = color.RGBA{R: 220, A: 255}
	negColor   = color.RGBA{R: 200, A: 180}
	posColor   = color.RGBA{B: 200, A: 180}
)

// ResidualStats summarizes y - ŷ on one split.
type ResidualStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Residuals returns y - ŷ.
func Residuals(y, yHat *mat.VecDense) []float64 {
	var r mat.VecDense
	r.SubVec(y, yHat)
	return append([]float64(nil), r.RawVector().Data...)
}

// Stats computes population statistics of residuals.
func Stats(residuals []float64) ResidualStats {
	if len(residuals) == 0 {
		return ResidualStats{}
	}
	mean, std := stat.PopMeanStdDev(residuals, nil)
	return ResidualStats{Mean: mean, Std: std, Min: floats.Min(residuals), Max: floats.Max(residuals)}
}

// WriteAll renders every diagnostic into dir and returns the written paths.
func WriteAll(dir string, ev *pipeline.Evaluation, importance []artifact.FeatureImportance) ([]string, error) {
	if ev == nil {
		return nil, errors.NewValueError("report.WriteAll", "evaluation is nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}

	plots := []struct {
		name  string
		build func() (*plot.Plot, error)
	}{
		{ResidualsFile, func() (*plot.Plot, error) { return residualPlot(ev) }},
		{HistogramFile, func() (*plot.Plot, error) { return histogramPlot(ev) }},
		{ImportanceFile, func() (*plot.Plot, error) { return importancePlot(importance) }},
		{PredVsTrueFile, func() (*plot.Plot, error) { return predVsTruePlot(ev) }},
	}

	logger := log.GetLoggerWithName("report")
	written := make([]string, 0, len(plots))
	for _, pl := range plots {
		p, err := pl.build()
		if err != nil {
			return written, errors.Wrapf(err, "build %s", pl.name)
		}
		path := filepath.Join(dir, pl.name)
		if err := p.Save(defaultPlotSize, defaultPlotSize*3/4, path); err != nil {
			return written, errors.Wrapf(err, "save %s", path)
		}
		written = append(written, path)
		logger.Debug("Plot written", log.PathKey, path)
	}

	st := Stats(Residuals(ev.YTest, ev.YTestHat))
	logger.Info("Residual statistics (test)", "mean", st.Mean, "std", st.Std, "min", st.Min, "max", st.Max)
	return written, nil
}

func xys(x, y []float64) plotter.XYs {
	pts := make(plotter.XYs, len(x))
	for i := range x {
		pts[i].X = x[i]
		pts[i].Y = y[i]
	}
	return pts
}

func scatter(p *plot.Plot, name string, pts plotter.XYs, c color.Color) error {
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.WithStack(err)
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)
	p.Legend.Add(name, s)
	return nil
}

func refLine(p *plot.Plot, pts plotter.XYs) error {
	l, err := plotter.NewLine(pts)
	if err != nil {
		return errors.WithStack(err)
	}
	l.LineStyle.Color = refColor
	l.LineStyle.Width = vg.Points(1.5)
	l.LineStyle.Dashes = []vg.Length{vg.Points(5), vg.Points(5)}
	p.Add(l)
	return nil
}

// residualPlot は予測値に対する残差の散布図
func residualPlot(ev *pipeline.Evaluation) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Residuals vs predictions"
	p.X.Label.Text = "Prediction"
	p.Y.Label.Text = "Residual"
	p.Add(plotter.NewGrid())

	trainHat := ev.YTrainHat.RawVector().Data
	testHat := ev.YTestHat.RawVector().Data
	if err := scatter(p, "train", xys(trainHat, Residuals(ev.YTrain, ev.YTrainHat)), trainColor); err != nil {
		return nil, err
	}
	if err := scatter(p, "test", xys(testHat, Residuals(ev.YTest, ev.YTestHat)), testColor); err != nil {
		return nil, err
	}

	all := append(append([]float64(nil), trainHat...), testHat...)
	lo, hi := floats.Min(all), floats.Max(all)
	if err := refLine(p, plotter.XYs{{X: lo, Y: 0}, {X: hi, Y: 0}}); err != nil {
		return nil, err
	}
	return p, nil
}

// histogramPlot は訓練データの残差分布
func histogramPlot(ev *pipeline.Evaluation) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Residual distribution (train)"
	p.X.Label.Text = "Residual"
	p.Y.Label.Text = "Frequency"

	h, err := plotter.NewHist(plotter.Values(Residuals(ev.YTrain, ev.YTrainHat)), histogramBins)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	h.FillColor = trainColor
	p.Add(h)
	return p, nil
}

// importancePlot は係数の横棒グラフ（|係数| の大きい順に最大15件）
func importancePlot(importance []artifact.FeatureImportance) (*plot.Plot, error) {
	if len(importance) == 0 {
		return nil, errors.NewValueError("report.importancePlot", "no features")
	}
	top := importance
	if len(top) > maxImportanceN {
		top = top[:maxImportanceN]
	}

	p := plot.New()
	p.Title.Text = "Feature importance (model coefficients)"
	p.X.Label.Text = "Coefficient"

	// 上から大きい順に並ぶよう逆順で配置する
	n := len(top)
	names := make([]string, n)
	pos, neg := make(plotter.Values, n), make(plotter.Values, n)
	for i, fi := range top {
		k := n - 1 - i
		names[k] = fi.Feature
		if fi.Coefficient < 0 {
			neg[k] = fi.Coefficient
		} else {
			pos[k] = fi.Coefficient
		}
	}
	for _, series := range []struct {
		values plotter.Values
		c      color.Color
	}{{pos, posColor}, {neg, negColor}} {
		bars, err := plotter.NewBarChart(series.values, vg.Points(14))
		if err != nil {
			return nil, errors.WithStack(err)
		}
		bars.Horizontal = true
		bars.Color = series.c
		bars.LineStyle.Width = 0
		p.Add(bars)
	}
	p.NominalY(names...)
	p.Add(plotter.NewGrid())
	return p, nil
}

// predVsTruePlot は実測値と予測値の散布図（対角線付き）
func predVsTruePlot(ev *pipeline.Evaluation) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Predictions vs actual"
	p.X.Label.Text = "Actual"
	p.Y.Label.Text = "Prediction"
	p.Add(plotter.NewGrid())

	yTrain, yTest := ev.YTrain.RawVector().Data, ev.YTest.RawVector().Data
	if err := scatter(p, "train", xys(yTrain, ev.YTrainHat.RawVector().Data), trainColor); err != nil {
		return nil, err
	}
	if err := scatter(p, "test", xys(yTest, ev.YTestHat.RawVector().Data), testColor); err != nil {
		return nil, err
	}

	all := append(append([]float64(nil), yTrain...), yTest...)
	lo, hi := floats.Min(all), floats.Max(all)
	if err := refLine(p, plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}}); err != nil {
		return nil, err
	}
	return p, nil
}
