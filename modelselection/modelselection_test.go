package modelselection

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salesforecast/core/model"
	"github.com/YuminosukeSato/salesforecast/linear"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

func TestTrainTestSplit(t *testing.T) {
	s, err := TrainTestSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, s.Test, 2)
	assert.Len(t, s.Train, 8)

	all := append(append([]int(nil), s.Train...), s.Test...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}

	again, err := TrainTestSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, s, again)

	// ceil(0.25 * 7) = 2
	s, err = TrainTestSplit(7, 0.25, 1)
	require.NoError(t, err)
	assert.Len(t, s.Test, 2)
}

func TestTrainTestSplitErrors(t *testing.T) {
	tests := []struct {
		name     string
		n        int
		testSize float64
	}{
		{"zero test size", 10, 0},
		{"test size one", 10, 1},
		{"single row", 1, 0.2},
		{"empty", 0, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TrainTestSplit(tt.n, tt.testSize, 42)
			assert.Error(t, err)
		})
	}
}

func TestKFoldSplitSizes(t *testing.T) {
	folds, err := NewKFold(3, false, 0).Split(10)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	assert.Equal(t, []int{4, 5, 6, 7, 8, 9}, folds[0].TrainIndices)

	seen := make(map[int]int)
	for _, f := range folds {
		assert.Equal(t, 10, len(f.TrainIndices)+len(f.TestIndices))
		for _, idx := range f.TestIndices {
			seen[idx]++
		}
	}
	assert.Len(t, seen, 10)
}

func TestKFoldShuffleDeterministic(t *testing.T) {
	a, err := NewKFold(5, true, 42).Split(20)
	require.NoError(t, err)
	b, err := NewKFold(5, true, 42).Split(20)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestKFoldErrors(t *testing.T) {
	_, err := NewKFold(1, false, 0).Split(10)
	assert.Error(t, err)
	_, err = NewKFold(5, false, 0).Split(3)
	assert.Error(t, err)
}

func linearData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x1, x2 := float64(i), float64((i*7)%5)
		X.Set(i, 0, x1)
		X.Set(i, 1, x2)
		y.Set(i, 0, 3+0.5*x1-2*x2)
	}
	return X, y
}

func TestCrossValScorePerfectFit(t *testing.T) {
	X, y := linearData(25)
	res, err := CrossValScore(func() model.Regressor { return linear.NewLinearRegression() }, X, y, NewKFold(5, true, 42))
	require.NoError(t, err)
	require.Len(t, res.Scores, 5)
	for _, s := range res.Scores {
		assert.InDelta(t, 1.0, s, 1e-9)
	}
	assert.InDelta(t, 1.0, res.MeanScore(), 1e-9)
	assert.InDelta(t, 0.0, res.StdScore(), 1e-9)
	assert.Len(t, res.FitTimes, 5)
}

func TestCrossValScorePropagatesFitError(t *testing.T) {
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(2*i))
		y.Set(i, 0, float64(i))
	}
	_, err := CrossValScore(func() model.Regressor { return linear.NewLinearRegression() }, X, y, NewKFold(2, false, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSingularMatrix))
}

func TestCVResultStd(t *testing.T) {
	res := &CVResult{Scores: []float64{0.4, 0.6}}
	assert.InDelta(t, 0.5, res.MeanScore(), 1e-12)
	assert.InDelta(t, 0.1, res.StdScore(), 1e-12)
}

func TestRowsAndSplitXY(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(3, 1, []float64{10, 20, 30})
	s := &Split{Train: []int{2, 0}, Test: []int{1}}
	XTrain, XTest, yTrain, yTest := SplitXY(X, y, s)
	assert.Equal(t, []float64{5, 6, 1, 2}, XTrain.RawMatrix().Data)
	assert.Equal(t, []float64{3, 4}, XTest.RawMatrix().Data)
	assert.Equal(t, []float64{30, 10}, yTrain.RawMatrix().Data)
	assert.Equal(t, []float64{20}, yTest.RawMatrix().Data)
}
