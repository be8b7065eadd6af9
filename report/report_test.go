package report

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salesforecast/artifact"
	"github.com/YuminosukeSato/salesforecast/pipeline"
)

func sampleEvaluation() *pipeline.Evaluation {
	return &pipeline.Evaluation{
		YTrain:    mat.NewVecDense(5, []float64{10, 20, 30, 40, 50}),
		YTrainHat: mat.NewVecDense(5, []float64{12, 18, 31, 39, 50}),
		YTest:     mat.NewVecDense(3, []float64{15, 25, 35}),
		YTestHat:  mat.NewVecDense(3, []float64{14, 27, 35}),
	}
}

func TestResidualsAndStats(t *testing.T) {
	ev := sampleEvaluation()
	r := Residuals(ev.YTest, ev.YTestHat)
	assert.Equal(t, []float64{1, -2, 0}, r)

	st := Stats(r)
	assert.InDelta(t, -1.0/3, st.Mean, 1e-12)
	assert.Equal(t, -2.0, st.Min)
	assert.Equal(t, 1.0, st.Max)
	assert.Positive(t, st.Std)

	assert.Equal(t, ResidualStats{}, Stats(nil))
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	importance := artifact.RankFeatures([]string{"empleados", "publicidad", "ubicacion"}, []float64{9000, 4000, -1500})
	paths, err := WriteAll(dir, sampleEvaluation(), importance)
	require.NoError(t, err)
	require.Len(t, paths, 4)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestWriteAllErrors(t *testing.T) {
	_, err := WriteAll(t.TempDir(), nil, nil)
	assert.Error(t, err)

	_, err = WriteAll(t.TempDir(), sampleEvaluation(), nil)
	assert.Error(t, err)
}
