package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"github.com/YuminosukeSato/salesforecast/core/model"
	"github.com/YuminosukeSato/salesforecast/linear"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
	"github.com/YuminosukeSato/salesforecast/preprocessing"
)

// Artifact file names inside a bundle directory.
const (
	ModelFile    = "model.json"
	ScalerFile   = "scaler.json"
	EncodersFile = "label_encoders.json"
	InfoFile     = "model_info.json"
)

// Files lists every artifact a bundle directory must contain.
var Files = []string{ModelFile, ScalerFile, EncodersFile, InfoFile}

// Bundle は推論に必要なすべての学習済みオブジェクト
//
// 読み込み後は読み取り専用として扱い、複数のゴルーチンから共有してよい。
type Bundle struct {
	Model    *linear.LinearRegression
	Scaler   *preprocessing.StandardScaler
	Encoders *preprocessing.EncoderSet
	Metadata *Metadata
}

// Validate は成果物同士の整合性を検証する
func (b *Bundle) Validate() error {
	switch {
	case b.Model == nil || !b.Model.IsFitted():
		return errors.NewValueError("Bundle.Validate", "model is missing or not fitted")
	case b.Scaler == nil || !b.Scaler.IsFitted():
		return errors.NewValueError("Bundle.Validate", "scaler is missing or not fitted")
	case b.Encoders == nil:
		return errors.NewValueError("Bundle.Validate", "encoders are missing")
	case b.Metadata == nil:
		return errors.NewValueError("Bundle.Validate", "metadata is missing")
	}

	nFeatures := len(b.Metadata.FeatureColumns)
	if nFeatures == 0 {
		return errors.NewValidationError("feature_columns", "must not be empty", nFeatures)
	}
	if got := len(b.Model.Coef()); got != nFeatures {
		return errors.NewDimensionError("Bundle.Validate: model", nFeatures, got, 1)
	}
	if got := b.Scaler.NFeatures(); got != nFeatures {
		return errors.NewDimensionError("Bundle.Validate: scaler", nFeatures, got, 1)
	}

	features := make(map[string]struct{}, nFeatures)
	for _, f := range b.Metadata.FeatureColumns {
		if _, dup := features[f]; dup {
			return errors.NewValidationError("feature_columns", "duplicate feature", f)
		}
		features[f] = struct{}{}
	}
	if _, ok := features[b.Metadata.TargetColumn]; ok {
		return errors.NewValidationError("target_column", "target is also a feature", b.Metadata.TargetColumn)
	}
	for _, c := range b.Metadata.CategoricalColumns {
		if _, ok := features[c]; !ok {
			return errors.NewValidationError("categorical_columns", "not a feature column", c)
		}
		if _, ok := b.Encoders.Get(c); !ok {
			return errors.NewValidationError("label_encoders", "no encoder for categorical column", c)
		}
	}
	if b.Encoders.Len() != len(b.Metadata.CategoricalColumns) {
		return errors.NewValidationError("label_encoders", "encoder count does not match categorical columns", b.Encoders.Len())
	}
	return nil
}

// Save は4つの成果物を dir に書き込む。dir が無ければ作成する。
func (b *Bundle) Save(dir string) error {
	if err := b.Validate(); err != nil {
		return errors.Wrap(err, "refusing to save an inconsistent bundle")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewArtifactError("directory", dir, err)
	}

	weights, err := b.Model.ExportWeights()
	if err != nil {
		return err
	}
	weights.Features = append([]string(nil), b.Metadata.FeatureColumns...)
	weights.Seal()

	scalerParams, err := b.Scaler.Params()
	if err != nil {
		return err
	}

	meta := *b.Metadata
	if meta.Version == "" {
		meta.Version = MetadataVersion
	}

	objects := []struct {
		name    string
		marshal func() ([]byte, error)
	}{
		{ModelFile, weights.ToJSON},
		{ScalerFile, indentJSON(scalerParams)},
		{EncodersFile, indentJSON(b.Encoders)},
		{InfoFile, indentJSON(&meta)},
	}
	logger := log.GetLoggerWithName("artifact")
	for _, o := range objects {
		path := filepath.Join(dir, o.name)
		data, err := o.marshal()
		if err != nil {
			return errors.NewArtifactError(o.name, path, err)
		}
		if err := writeAtomic(path, data); err != nil {
			return errors.NewArtifactError(o.name, path, err)
		}
		logger.Debug("Artifact written", log.ArtifactKey, o.name, log.PathKey, path)
	}
	logger.Info("Bundle saved", log.OperationKey, log.OperationSave, log.PathKey, dir,
		log.FeaturesKey, len(meta.FeatureColumns))
	return nil
}

func indentJSON(v interface{}) func() ([]byte, error) {
	return func() ([]byte, error) {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "marshal")
		}
		return data, nil
	}
}

// writeAtomic writes data to a temp file in the same directory and renames
// it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(os.Rename(tmp.Name(), path))
}

// Load は dir から4つの成果物を読み込み、整合性を検証する。
// 失敗は常に ArtifactError として返される。
func Load(dir string) (*Bundle, error) {
	b := &Bundle{}

	var weights model.ModelWeights
	modelPath := filepath.Join(dir, ModelFile)
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, errors.NewArtifactError(ModelFile, modelPath, err)
	}
	if err := weights.FromJSON(data); err != nil {
		return nil, errors.NewArtifactError(ModelFile, modelPath, err)
	}
	lr := linear.NewLinearRegression()
	if err := lr.ImportWeights(&weights); err != nil {
		return nil, errors.NewArtifactError(ModelFile, filepath.Join(dir, ModelFile), err)
	}
	b.Model = lr

	var params preprocessing.ScalerParams
	if err := readJSON(dir, ScalerFile, &params); err != nil {
		return nil, err
	}
	scaler, err := preprocessing.ScalerFromParams(&params)
	if err != nil {
		return nil, errors.NewArtifactError(ScalerFile, filepath.Join(dir, ScalerFile), err)
	}
	b.Scaler = scaler

	encoders := preprocessing.NewEncoderSet()
	if err := readJSON(dir, EncodersFile, encoders); err != nil {
		return nil, err
	}
	b.Encoders = encoders

	var meta Metadata
	if err := readJSON(dir, InfoFile, &meta); err != nil {
		return nil, err
	}
	b.Metadata = &meta

	if len(weights.Features) > 0 && !slices.Equal(weights.Features, meta.FeatureColumns) {
		return nil, errors.NewArtifactError(ModelFile, filepath.Join(dir, ModelFile),
			errors.NewValidationError("features", "model features differ from model_info feature_columns", weights.Features))
	}
	if err := b.Validate(); err != nil {
		return nil, errors.NewArtifactError("bundle", dir, err)
	}

	log.GetLoggerWithName("artifact").Info("Bundle loaded",
		log.OperationKey, log.OperationLoad, log.PathKey, dir,
		log.ModelNameKey, meta.ModelType, log.FeaturesKey, len(meta.FeatureColumns))
	return b, nil
}

func readJSON(dir, name string, v interface{}) error {
	path := filepath.Join(dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewArtifactError(name, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewArtifactError(name, path, err)
	}
	return nil
}
