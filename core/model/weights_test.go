package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

func sampleWeights() *ModelWeights {
	w := &ModelWeights{
		ModelType:    "LinearRegression",
		Version:      WeightsVersion,
		Coefficients: []float64{1.5, -2.25, 0.125},
		Intercept:    42,
		Features:     []string{"precio_promedio", "promociones_activas", "tienda_id"},
		IsFitted:     true,
	}
	w.Seal()
	return w
}

func TestModelWeightsRoundTripKeepsChecksum(t *testing.T) {
	w := sampleWeights()
	data, err := w.ToJSON()
	require.NoError(t, err)

	var loaded ModelWeights
	require.NoError(t, loaded.FromJSON(data))
	assert.NoError(t, loaded.Validate())
	assert.Equal(t, w.Checksum, loaded.ComputeChecksum())
}

func TestModelWeightsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *ModelWeights)
	}{
		{"missing type", func(w *ModelWeights) { w.ModelType = "" }},
		{"missing version", func(w *ModelWeights) { w.Version = "" }},
		{"fitted without coefficients", func(w *ModelWeights) { w.Coefficients = nil; w.Features = nil; w.Checksum = "" }},
		{"feature count mismatch", func(w *ModelWeights) { w.Features = w.Features[:2] }},
		{"non-finite coefficient", func(w *ModelWeights) { w.Coefficients[0] = math.NaN(); w.Checksum = "" }},
		{"tampered coefficient", func(w *ModelWeights) { w.Coefficients[1] = 3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := sampleWeights()
			tt.mutate(w)
			assert.Error(t, w.Validate())
		})
	}
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	err := s.RequireFitted("StandardScaler", "Transform")
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Transform", nf.Method)

	s.SetDimensions(7, 100)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("StandardScaler", "Transform"))
	assert.NoError(t, s.RequireFeatures("Transform", 7))

	var dim *errors.DimensionError
	require.True(t, errors.As(s.RequireFeatures("Transform", 6), &dim))
	assert.Equal(t, 7, dim.Expected)

	s.Reset()
	assert.False(t, s.IsFitted())
}
