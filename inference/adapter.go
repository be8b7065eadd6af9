// Package inference replays the persisted training transforms on raw
// records and returns model predictions.
//
// Default-fill policy, the only one in the module: an expected column that is
// absent from a record (or null) becomes 0 for numeric features and the
// encoder's default class (Classes[0]) for categorical features. A
// categorical value never seen during training also maps to the default
// class. Columns the model does not use are ignored.
package inference

import (
	"context"
	"math"

	"github.com/YuminosukeSato/salesforecast/artifact"
	"github.com/YuminosukeSato/salesforecast/core/model"
	"github.com/YuminosukeSato/salesforecast/core/parallel"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
	"github.com/YuminosukeSato/salesforecast/preprocessing"
)

// DefaultParallelThreshold is the batch size above which records are
// transformed concurrently.
const DefaultParallelThreshold = 256

// Record is one raw input row keyed by column name.
type Record = map[string]any

// Prediction は1レコード分の予測結果
type Prediction struct {
	Value      float64 `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// ModelInfo is the metrics context reported next to predictions.
type ModelInfo struct {
	ModelType string  `json:"model_type"`
	R2Score   float64 `json:"r2_score"`
	RMSE      float64 `json:"rmse"`
}

// Adapter は成果物バンドルを使って推論を行う。並行呼び出しに対して安全。
type Adapter struct {
	bundle    *artifact.Bundle
	scaler    model.RowTransformer
	predictor model.RowPredictor
	logger    log.Logger
	threshold int

	// encoders is indexed by feature position; nil for numeric features.
	encoders []*preprocessing.LabelEncoder
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l log.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// WithParallelThreshold sets the batch size above which PredictBatch fans out.
func WithParallelThreshold(n int) Option {
	return func(a *Adapter) {
		a.threshold = n
	}
}

// NewAdapter validates b and builds an Adapter over it. b must not be
// modified afterwards.
func NewAdapter(b *artifact.Bundle, opts ...Option) (*Adapter, error) {
	if b == nil {
		return nil, errors.Wrap(errors.ErrModelUnavailable, "nil bundle")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	a := &Adapter{bundle: b, scaler: b.Scaler, predictor: b.Model, threshold: DefaultParallelThreshold}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = log.GetLoggerWithName("inference")
	}

	a.encoders = make([]*preprocessing.LabelEncoder, len(b.Metadata.FeatureColumns))
	for i, name := range b.Metadata.FeatureColumns {
		if b.Metadata.IsCategorical(name) {
			a.encoders[i], _ = b.Encoders.Get(name)
		}
	}
	return a, nil
}

// Bundle returns the underlying bundle.
func (a *Adapter) Bundle() *artifact.Bundle {
	return a.bundle
}

// Features returns the persisted feature order.
func (a *Adapter) Features() []string {
	return append([]string(nil), a.bundle.Metadata.FeatureColumns...)
}

// Confidence is the persisted test-split R² of the model.
func (a *Adapter) Confidence() float64 {
	return a.bundle.Metadata.Metrics.R2Test
}

// ModelInfo returns the stored metrics context.
func (a *Adapter) ModelInfo() ModelInfo {
	m := a.bundle.Metadata
	return ModelInfo{ModelType: m.ModelType, R2Score: m.Metrics.R2Test, RMSE: m.Metrics.RMSETest}
}

// Predict は1レコードに対する予測を返す
func (a *Adapter) Predict(ctx context.Context, record Record) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, errors.WithStack(err)
	}
	value, err := a.predictOne(0, record)
	if err != nil {
		return Prediction{}, err
	}
	a.logger.Debug("Prediction made", log.OperationKey, log.OperationPredict, log.PredsKey, value)
	return Prediction{Value: value, Confidence: a.Confidence()}, nil
}

// PredictBatch は複数レコードに対する予測を入力と同じ順序で返す。
// 失敗したレコードがある場合は最も小さいインデックスのエラーを返す。
func (a *Adapter) PredictBatch(ctx context.Context, records []Record) ([]Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if len(records) == 0 {
		return nil, errors.NewInputValidationError(0, "", nil, "batch must contain at least one record")
	}

	preds := make([]Prediction, len(records))
	confidence := a.Confidence()
	err := parallel.ParallelizeErr(len(records), a.threshold, func(start, end int) error {
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return errors.WithStack(err)
			}
			value, err := a.predictOne(i, records[i])
			if err != nil {
				return err
			}
			preds[i] = Prediction{Value: value, Confidence: confidence}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Debug("Batch prediction made", log.OperationKey, log.OperationPredict, log.BatchSizeKey, len(records))
	return preds, nil
}

func (a *Adapter) predictOne(index int, record Record) (float64, error) {
	row, err := a.Vectorize(index, record)
	if err != nil {
		return 0, err
	}
	if err := a.scaler.TransformRow(row); err != nil {
		return 0, err
	}
	value, err := a.predictor.PredictRow(row)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.NewNumericalInstabilityError("Adapter.Predict", []float64{value})
	}
	return value, nil
}

// Vectorize default-fills, orders and encodes record into an unscaled
// feature row. index is only used in error reports.
func (a *Adapter) Vectorize(index int, record Record) ([]float64, error) {
	if record == nil {
		return nil, errors.NewInputValidationError(index, "", nil, "record must be an object")
	}
	features := a.bundle.Metadata.FeatureColumns
	row := make([]float64, len(features))
	for j, name := range features {
		raw, present := record[name]
		if raw == nil {
			present = false
		}

		if enc := a.encoders[j]; enc != nil {
			category := enc.DefaultClass()
			if present {
				s, err := toCategory(raw)
				if err != nil {
					return nil, errors.NewInputValidationError(index, name, raw, err.Error())
				}
				category = s
			}
			code, known := enc.Code(category)
			if !known {
				code, _ = enc.Code(enc.DefaultClass())
				a.logger.Debug("Unseen category mapped to default",
					log.ColumnKey, name, "value", category, "default", enc.DefaultClass())
			}
			row[j] = float64(code)
			continue
		}

		if !present {
			continue
		}
		v, err := toNumber(raw)
		if err != nil {
			return nil, errors.NewInputValidationError(index, name, raw, err.Error())
		}
		row[j] = v
	}
	return row, nil
}
