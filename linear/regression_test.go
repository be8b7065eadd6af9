package linear

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salesforecast/core/model"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// exactData は y = 1 + 2*x1 - 3*x2 を満たすデータ
func exactData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
		1, 1,
		2, 1,
		3, 5,
	})
	y := mat.NewDense(6, 1, nil)
	for i := 0; i < 6; i++ {
		y.Set(i, 0, 1+2*X.At(i, 0)-3*X.At(i, 1))
	}
	return X, y
}

func TestLinearRegressionRecoversCoefficients(t *testing.T) {
	X, y := exactData()
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.True(t, lr.IsFitted())
	assert.InDelta(t, 1.0, lr.Intercept(), 1e-9)
	coef := lr.Coef()
	require.Len(t, coef, 2)
	assert.InDelta(t, 2.0, coef[0], 1e-9)
	assert.InDelta(t, -3.0, coef[1], 1e-9)
	assert.Equal(t, 3, lr.Rank())

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestLinearRegressionWithoutIntercept(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})
	lr := NewLinearRegression(WithFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.InDelta(t, 2.0, lr.Coef()[0], 1e-12)
	assert.Equal(t, 0.0, lr.Intercept())
}

func TestLinearRegressionRankDeficient(t *testing.T) {
	tests := []struct {
		name string
		X    *mat.Dense
	}{
		{"duplicate columns", mat.NewDense(4, 2, []float64{1, 1, 2, 2, 3, 3, 4, 4})},
		{"constant column", mat.NewDense(4, 2, []float64{1, 5, 2, 5, 3, 5, 4, 5})},
		{"too few rows", mat.NewDense(2, 2, []float64{1, 2, 3, 4})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := tt.X.Dims()
			y := mat.NewDense(r, 1, nil)
			for i := 0; i < r; i++ {
				y.Set(i, 0, float64(i))
			}
			lr := NewLinearRegression()
			err := lr.Fit(tt.X, y)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrSingularMatrix))

			var modelErr *errors.ModelError
			require.True(t, errors.As(err, &modelErr))
			assert.Equal(t, "rank deficient", modelErr.Kind)
			assert.False(t, lr.IsFitted())
		})
	}
}

func TestLinearRegressionDeterministic(t *testing.T) {
	X, y := createBenchmarkData(200, 4)
	a := NewLinearRegression()
	b := NewLinearRegression()
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.Coef(), b.Coef())
	assert.Equal(t, a.Intercept(), b.Intercept())
}

func TestLinearRegressionInputErrors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 2, nil))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	_, err = lr.PredictRow([]float64{1, 2})
	assert.True(t, errors.As(err, &notFitted))

	err = lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2}))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	X, y := exactData()
	require.NoError(t, lr.Fit(X, y))
	_, err = lr.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.As(err, &dimErr))
	_, err = lr.PredictRow([]float64{1})
	assert.True(t, errors.As(err, &dimErr))
}

func TestLinearRegressionPredictRowMatchesPredict(t *testing.T) {
	X, y := exactData()
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	preds, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		p, err := lr.PredictRow(mat.Row(nil, i, X))
		require.NoError(t, err)
		assert.InDelta(t, preds.At(i, 0), p, 1e-12)
	}
}

func TestLinearRegressionWeightsRoundTrip(t *testing.T) {
	X, y := exactData()
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	w, err := lr.ExportWeights()
	require.NoError(t, err)
	assert.NotEmpty(t, w.Checksum)

	data, err := w.ToJSON()
	require.NoError(t, err)
	decode := func() *model.ModelWeights {
		var mw model.ModelWeights
		require.NoError(t, mw.FromJSON(data))
		return &mw
	}
	decoded := decode()

	restored := NewLinearRegression()
	require.NoError(t, restored.ImportWeights(decoded))
	assert.Equal(t, lr.Coef(), restored.Coef())
	assert.Equal(t, lr.Intercept(), restored.Intercept())
	assert.Equal(t, 3, restored.Rank())

	p, err := restored.PredictRow([]float64{2, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1+4-6, p, 1e-9)

	t.Run("tampered checksum", func(t *testing.T) {
		bad := decode()
		bad.Coefficients[0] += 1
		err := NewLinearRegression().ImportWeights(bad)
		var vErr *errors.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "checksum", vErr.ParamName)
	})

	t.Run("wrong model type", func(t *testing.T) {
		bad := decode()
		bad.ModelType = "Ridge"
		assert.Error(t, NewLinearRegression().ImportWeights(bad))
	})

	t.Run("unfitted export", func(t *testing.T) {
		_, err := NewLinearRegression().ExportWeights()
		assert.Error(t, err)
	})
}
