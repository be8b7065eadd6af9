// Package pipeline runs the offline training flow: load, clean, encode,
// split, scale, fit and evaluate, producing an artifact bundle.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/salesforecast/artifact"
	"github.com/YuminosukeSato/salesforecast/dataset"
	"github.com/YuminosukeSato/salesforecast/linear"
	"github.com/YuminosukeSato/salesforecast/modelselection"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
	"github.com/YuminosukeSato/salesforecast/preprocessing"
)

// Options は学習の設定
type Options struct {
	// DataPath is the CSV file read by Train.
	DataPath string
	// Target overrides target detection when set.
	Target string
	// TestSize is the fraction of rows held out, in (0, 1).
	TestSize float64
	// RandomState seeds the split and the CV shuffle.
	RandomState int64
	// CVFolds is the number of cross-validation folds on the training split.
	CVFolds int
	// SortedClasses orders encoder classes lexicographically instead of by
	// first appearance.
	SortedClasses bool
	// IQRMultiplier is the outlier fence multiplier. Zero means 1.5.
	IQRMultiplier float64

	Logger log.Logger
}

// DefaultOptions returns the settings of the reference run.
func DefaultOptions() Options {
	return Options{
		TestSize:    0.2,
		RandomState: 42,
		CVFolds:     5,
	}
}

// Result is everything a training run produces.
type Result struct {
	Bundle   *artifact.Bundle
	Cleaning *preprocessing.CleaningReport
	Eval     *Evaluation
	Unseen   map[string]int
}

// Train loads opts.DataPath and runs TrainTable on it.
func Train(ctx context.Context, opts Options) (*Result, error) {
	t, err := dataset.LoadCSV(opts.DataPath)
	if err != nil {
		return nil, err
	}
	return trainTable(ctx, t, opts)
}

// TrainTable trains on a copy of t; t itself is left unmodified.
func TrainTable(ctx context.Context, t *dataset.Table, opts Options) (*Result, error) {
	if t == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "pipeline.TrainTable: nil table")
	}
	return trainTable(ctx, t.Clone(), opts)
}

// trainTable cleans and encodes t in place.
func trainTable(ctx context.Context, t *dataset.Table, opts Options) (res *Result, err error) {
	defer errors.Recover(&err, "pipeline.TrainTable")

	if opts.CVFolds < 2 {
		return nil, errors.NewValidationError("cv_folds", "must be at least 2", opts.CVFolds)
	}
	runID := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("pipeline")
	}
	logger = logger.With(log.RunIDKey, runID)
	start := time.Now()

	target, err := dataset.ResolveTarget(t, opts.Target)
	if err != nil {
		return nil, err
	}
	logger.Info("Data loaded", log.SamplesKey, t.NumRows(), log.FeaturesKey, t.NumCols()-1,
		"target", target, log.PathKey, opts.DataPath)

	// 1. クリーニング
	cleanerOpts := []preprocessing.CleanerOption{preprocessing.WithCleanerLogger(logger)}
	if opts.IQRMultiplier != 0 {
		cleanerOpts = append(cleanerOpts, preprocessing.WithIQRMultiplier(opts.IQRMultiplier))
	}
	cleaning, err := preprocessing.NewCleaner(cleanerOpts...).Clean(t)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	// 2. カテゴリ変数のエンコード
	var encOpts []preprocessing.EncoderOption
	if opts.SortedClasses {
		encOpts = append(encOpts, preprocessing.WithSortedClasses())
	}
	encoders := preprocessing.NewEncoderSet()
	if err := encoders.FitTable(t, target, encOpts...); err != nil {
		return nil, err
	}
	unseen, err := encoders.TransformTable(t)
	if err != nil {
		return nil, err
	}
	logger.Info("Categorical columns encoded", log.OperationKey, log.OperationEncode,
		"columns", encoders.Columns())

	// 3. 分割と標準化
	features := t.FeatureColumns(target)
	X, err := t.Matrix(features)
	if err != nil {
		return nil, err
	}
	y, err := t.Vector(target)
	if err != nil {
		return nil, err
	}
	split, err := modelselection.TrainTestSplit(t.NumRows(), opts.TestSize, opts.RandomState)
	if err != nil {
		return nil, err
	}
	XTrain, XTest, yTrain, yTest := modelselection.SplitXY(X, y, split)

	scaler := preprocessing.NewStandardScalerDefault()
	XTrainScaled, err := scaler.FitTransform(XTrain)
	if err != nil {
		return nil, err
	}
	XTestScaled, err := scaler.Transform(XTest)
	if err != nil {
		return nil, err
	}
	logger.Debug("Features standardized", log.OperationKey, log.OperationTransform,
		"train_rows", len(split.Train), "test_rows", len(split.Test))
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	// 4. 学習
	lr := linear.NewLinearRegression()
	if err := lr.Fit(XTrainScaled, yTrain); err != nil {
		return nil, err
	}
	logger.Info("Model trained", log.OperationKey, log.OperationFit, log.ModelNameKey, linear.ModelType,
		log.SamplesKey, len(split.Train), log.FeaturesKey, len(features))

	// 5. 評価
	kf := modelselection.NewKFold(opts.CVFolds, true, opts.RandomState)
	eval, err := Evaluate(lr, XTrainScaled, yTrain, XTestScaled, yTest, kf)
	if err != nil {
		return nil, err
	}
	m := eval.Metrics
	logger.Info("Model evaluated",
		log.PhaseKey, log.PhaseValidation,
		"r2_train", m.R2Train, log.R2ScoreKey, m.R2Test,
		log.MAEKey, m.MAETest, log.RMSEKey, m.RMSETest,
		log.CVMeanKey, m.CVMean, log.CVStdKey, m.CVStd,
		"cv_interval", 2*m.CVStd,
		log.VerdictKey, Verdict(m.R2Test))

	categorical := make([]string, 0, encoders.Len())
	for _, f := range features {
		if _, ok := encoders.Get(f); ok {
			categorical = append(categorical, f)
		}
	}

	bundle := &artifact.Bundle{
		Model:    lr,
		Scaler:   scaler,
		Encoders: encoders,
		Metadata: &artifact.Metadata{
			Version:            artifact.MetadataVersion,
			ModelType:          linear.ModelType,
			FeatureColumns:     features,
			TargetColumn:       target,
			CategoricalColumns: categorical,
			Metrics:            m,
			FeatureImportance:  artifact.RankFeatures(features, lr.Coef()),
			TrainingInfo: artifact.TrainingInfo{
				RunID:       runID,
				TrainedAt:   time.Now().UTC(),
				SourceFile:  opts.DataPath,
				Rows:        t.NumRows(),
				TrainRows:   len(split.Train),
				TestRows:    len(split.Test),
				TestSize:    opts.TestSize,
				RandomState: opts.RandomState,
				CVFolds:     opts.CVFolds,
				NullsBefore: cleaning.NullsBefore,
				Clipped:     cleaning.TotalClipped,
			},
		},
	}
	if err := bundle.Validate(); err != nil {
		return nil, err
	}

	logger.Info("Training finished", log.DurationMsKey, time.Since(start))
	return &Result{Bundle: bundle, Cleaning: cleaning, Eval: eval, Unseen: unseen}, nil
}
