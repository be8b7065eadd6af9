package modelselection

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/salesforecast/core/model"
	"github.com/YuminosukeSato/salesforecast/metrics"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// Fold は交差検証の1分割
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold は k 分割交差検証の分割器
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    int64
}

// NewKFold は新しい KFold を作成する
func NewKFold(nSplits int, shuffle bool, seed int64) *KFold {
	return &KFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// Split は n 行を NSplits 個のテスト分割に分ける。最初の n%k 個の分割は1行多い。
func (kf *KFold) Split(n int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if n < kf.NSplits {
		return nil, errors.NewValueError("KFold.Split",
			fmt.Sprintf("cannot have n_splits=%d greater than n_samples=%d", kf.NSplits, n))
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := newRand(kf.Seed)
		r.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits
	current := 0
	for i := 0; i < kf.NSplits; i++ {
		size := foldSize
		if i < remainder {
			size++
		}
		train := make([]int, 0, n-size)
		train = append(train, indices[:current]...)
		train = append(train, indices[current+size:]...)
		folds[i] = Fold{
			TrainIndices: train,
			TestIndices:  append([]int(nil), indices[current:current+size]...),
		}
		current += size
	}
	return folds, nil
}

// CVResult は交差検証の結果
type CVResult struct {
	Scores   []float64
	FitTimes []time.Duration
}

// MeanScore はスコアの平均を返す
func (cv *CVResult) MeanScore() float64 {
	if len(cv.Scores) == 0 {
		return 0
	}
	return stat.Mean(cv.Scores, nil)
}

// StdScore はスコアの母標準偏差を返す（numpy の std と同じ）
func (cv *CVResult) StdScore() float64 {
	if len(cv.Scores) < 2 {
		return 0
	}
	_, std := stat.PopMeanStdDev(cv.Scores, nil)
	return std
}

// CrossValScore は分割ごとに新しいモデルを学習し、テスト分割の R² を返す。
//
// テスト分割の目的変数の分散が0の場合、その分割の R² は定義されないため
// UndefinedMetricWarning を出して 0 とする。
func CrossValScore(newModel func() model.Regressor, X, y mat.Matrix, kf *KFold) (*CVResult, error) {
	r, _ := X.Dims()
	if ry, _ := y.Dims(); ry != r {
		return nil, errors.NewDimensionError("CrossValScore", r, ry, 0)
	}
	folds, err := kf.Split(r)
	if err != nil {
		return nil, err
	}

	result := &CVResult{
		Scores:   make([]float64, len(folds)),
		FitTimes: make([]time.Duration, len(folds)),
	}
	for i, fold := range folds {
		trainX, testX := Rows(X, fold.TrainIndices), Rows(X, fold.TestIndices)
		trainY, testY := Rows(y, fold.TrainIndices), Rows(y, fold.TestIndices)

		m := newModel()
		start := time.Now()
		if err := m.Fit(trainX, trainY); err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		result.FitTimes[i] = time.Since(start)

		score, err := m.Score(testX, testY)
		if errors.Is(err, metrics.ErrZeroVariance) {
			errors.Warn(errors.NewUndefinedMetricWarning("r2", fmt.Sprintf("fold %d has a constant target", i), 0))
			score, err = 0, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", i)
		}
		result.Scores[i] = score
	}
	return result, nil
}
