package artifact

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salesforecast/core/model"
	"github.com/YuminosukeSato/salesforecast/linear"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/preprocessing"
)

func testBundle(t *testing.T) *Bundle {
	t.Helper()

	enc := preprocessing.NewLabelEncoder("ubicacion")
	require.NoError(t, enc.Fit([]string{"urbana", "rural", "suburbana", "rural", "urbana", "rural"}))
	codes, _, err := enc.Transform([]string{"urbana", "rural", "suburbana", "rural", "urbana", "rural"})
	require.NoError(t, err)

	empleados := []float64{10, 5, 8, 3, 20, 7}
	X := mat.NewDense(6, 2, nil)
	y := mat.NewDense(6, 1, nil)
	for i := range empleados {
		X.Set(i, 0, empleados[i])
		X.Set(i, 1, codes[i])
		y.Set(i, 0, 1000*empleados[i]+500*codes[i]+100)
	}

	scaler := preprocessing.NewStandardScalerDefault()
	Xs, err := scaler.FitTransform(X)
	require.NoError(t, err)
	lr := linear.NewLinearRegression()
	require.NoError(t, lr.Fit(Xs, y))

	encoders := preprocessing.NewEncoderSet()
	encoders.Add(enc)

	features := []string{"empleados", "ubicacion"}
	return &Bundle{
		Model:    lr,
		Scaler:   scaler,
		Encoders: encoders,
		Metadata: &Metadata{
			ModelType:          linear.ModelType,
			FeatureColumns:     features,
			TargetColumn:       "ventas",
			CategoricalColumns: []string{"ubicacion"},
			Metrics:            Metrics{R2Test: 0.57, RMSETest: 10739.31, CVScores: []float64{0.5, 0.6}},
			FeatureImportance:  RankFeatures(features, lr.Coef()),
			TrainingInfo:       TrainingInfo{RunID: "run-1", TrainedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Rows: 6},
		},
	}
}

func TestBundleSaveLoadRoundTrip(t *testing.T) {
	b := testBundle(t)
	dir := filepath.Join(t.TempDir(), "models")
	require.NoError(t, b.Save(dir))

	for _, name := range Files {
		_, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
	}

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, b.Model.Coef(), loaded.Model.Coef())
	assert.Equal(t, b.Model.Intercept(), loaded.Model.Intercept())
	assert.Equal(t, b.Scaler.Mean, loaded.Scaler.Mean)
	assert.Equal(t, b.Scaler.Scale, loaded.Scaler.Scale)
	assert.Equal(t, b.Metadata.FeatureColumns, loaded.Metadata.FeatureColumns)
	assert.Equal(t, MetadataVersion, loaded.Metadata.Version)
	assert.Equal(t, 0.57, loaded.Metadata.Metrics.R2Test)
	assert.True(t, b.Metadata.TrainingInfo.TrainedAt.Equal(loaded.Metadata.TrainingInfo.TrainedAt))

	enc, ok := loaded.Encoders.Get("ubicacion")
	require.True(t, ok)
	assert.Equal(t, []string{"urbana", "rural", "suburbana"}, enc.Classes)
}

func TestLoadFailures(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope"))
		require.Error(t, err)
		assert.True(t, errors.IsArtifactError(err))
	})

	for _, name := range Files {
		t.Run("missing "+name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, testBundle(t).Save(dir))
			require.NoError(t, os.Remove(filepath.Join(dir, name)))

			_, err := Load(dir)
			var artErr *errors.ArtifactError
			require.True(t, errors.As(err, &artErr))
			assert.Equal(t, name, artErr.Artifact)
		})
	}

	t.Run("corrupt json", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, testBundle(t).Save(dir))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ScalerFile), []byte("{not json"), 0o644))
		_, err := Load(dir)
		assert.True(t, errors.IsArtifactError(err))
	})

	t.Run("feature count mismatch", func(t *testing.T) {
		b := testBundle(t)
		dir := t.TempDir()
		require.NoError(t, b.Save(dir))

		b.Metadata.FeatureColumns = []string{"empleados", "ubicacion", "extra"}
		data, err := indentJSON(b.Metadata)()
		require.NoError(t, err)
		require.NoError(t, writeAtomic(filepath.Join(dir, InfoFile), data))
		_, err = Load(dir)
		assert.True(t, errors.IsArtifactError(err))
	})

	t.Run("tampered coefficient", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, testBundle(t).Save(dir))

		path := filepath.Join(dir, ModelFile)
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		var w model.ModelWeights
		require.NoError(t, w.FromJSON(raw))
		require.NotEmpty(t, w.Checksum, "model.json is sealed")

		w.Coefficients[0] += 1
		data, err := w.ToJSON()
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		_, err = Load(dir)
		require.True(t, errors.IsArtifactError(err))
		var vErr *errors.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "checksum", vErr.ParamName)
	})
}

func TestBundleValidate(t *testing.T) {
	b := testBundle(t)
	require.NoError(t, b.Validate())

	b.Metadata.CategoricalColumns = []string{"empleados"}
	assert.Error(t, b.Validate())

	b = testBundle(t)
	b.Metadata.TargetColumn = "empleados"
	assert.Error(t, b.Validate())

	assert.Error(t, (&Bundle{}).Validate())
	assert.Error(t, b.Save(filepath.Join(t.TempDir(), "x")))
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, testBundle(t).Save(dir))

	report := Verify(dir)
	assert.True(t, report.OK())
	assert.Equal(t, []string{"empleados", "ubicacion"}, report.Features)
	for _, f := range report.Files {
		assert.True(t, f.Exists)
		assert.Positive(t, f.Size)
	}

	require.NoError(t, os.Remove(filepath.Join(dir, EncodersFile)))
	report = Verify(dir)
	assert.False(t, report.OK())
	assert.False(t, report.Loadable)
	assert.NotEmpty(t, report.Error)
}

func TestRankFeatures(t *testing.T) {
	got := RankFeatures([]string{"a", "b", "c"}, []float64{1, -5, 3})
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Feature)
	assert.Equal(t, -5.0, got[0].Coefficient)
	assert.Equal(t, 5.0, got[0].AbsCoefficient)
	assert.Equal(t, "c", got[1].Feature)
	assert.Equal(t, "a", got[2].Feature)
}
