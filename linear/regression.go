// Package linear は最小二乗法による線形回帰モデルを提供します。
package linear

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salesforecast/core/model"
	"github.com/YuminosukeSato/salesforecast/core/parallel"
	"github.com/YuminosukeSato/salesforecast/metrics"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// ModelType は永続化された重みに記録されるモデル名
const ModelType = "LinearRegression"

// LinearRegression は線形回帰モデル
//
// 計画行列 [1|X] のランクを SVD で確認した後、QR 分解で最小二乗解を求める。
// ランク落ちの場合はエラーを返し、正則化などで黙って回避することはない。
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool
	tol          float64

	coef      []float64
	intercept float64
	rank      int
	singular  []float64
}

var (
	_ model.LinearModel    = (*LinearRegression)(nil)
	_ model.RowPredictor   = (*LinearRegression)(nil)
	_ model.WeightExporter = (*LinearRegression)(nil)
)

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", X, r, c); err != nil {
		return err
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", y, ry, 1); err != nil {
		return err
	}

	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	cols := c + offset
	if r < cols {
		return errors.NewModelError("LinearRegression.Fit", "rank deficient",
			errors.Wrapf(errors.ErrSingularMatrix, "%d samples for %d parameters", r, cols))
	}

	// 切片項のために X に 1 の列を追加
	A := mat.NewDense(r, cols, nil)
	parallel.ParallelizeWithThreshold(r, 1000, func(start, end int) {
		for i := start; i < end; i++ {
			if lr.fitIntercept {
				A.Set(i, 0, 1.0)
			}
			for j := 0; j < c; j++ {
				A.Set(i, j+offset, X.At(i, j))
			}
		}
	})

	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDNone); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	singular := svd.Values(nil)
	tol := lr.tol
	if tol <= 0 {
		tol = float64(max(r, cols)) * eps
	}
	rank := 0
	for _, s := range singular {
		if s > tol*singular[0] {
			rank++
		}
	}
	if rank < cols {
		return errors.NewModelError("LinearRegression.Fit", "rank deficient",
			errors.Wrapf(errors.ErrSingularMatrix, "rank %d < %d parameters", rank, cols))
	}

	yDense := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		yDense.Set(i, 0, y.At(i, 0))
	}

	var qr mat.QR
	qr.Factorize(A)
	solution := mat.NewDense(cols, 1, nil)
	if err := qr.SolveTo(solution, false, yDense); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "rank deficient",
			errors.Wrapf(errors.ErrSingularMatrix, "QR solve: %v", err))
	}

	coef := make([]float64, c)
	for j := 0; j < c; j++ {
		coef[j] = solution.At(j+offset, 0)
	}
	intercept := 0.0
	if lr.fitIntercept {
		intercept = solution.At(0, 0)
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", append(coef, intercept)); err != nil {
		return err
	}

	lr.coef = coef
	lr.intercept = intercept
	lr.rank = rank
	lr.singular = singular
	lr.state.SetDimensions(c, r)
	lr.state.SetFitted()
	return nil
}

// eps is float64 machine epsilon.
var eps = math.Nextafter(1, 2) - 1

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := lr.state.RequireFeatures("LinearRegression.Predict", c); err != nil {
		return nil, err
	}

	// 予測: y = X * coef + intercept
	predictions := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, 1000, func(start, end int) {
		for i := start; i < end; i++ {
			pred := lr.intercept
			for j := 0; j < c; j++ {
				pred += X.At(i, j) * lr.coef[j]
			}
			predictions.Set(i, 0, pred)
		}
	})
	return predictions, nil
}

// PredictRow は標準化済みの1行に対する予測値を返す
func (lr *LinearRegression) PredictRow(row []float64) (float64, error) {
	if err := lr.state.RequireFitted("LinearRegression", "PredictRow"); err != nil {
		return 0, err
	}
	if err := lr.state.RequireFeatures("LinearRegression.PredictRow", len(row)); err != nil {
		return 0, err
	}
	pred := lr.intercept
	for j, v := range row {
		pred += v * lr.coef[j]
	}
	return pred, nil
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	yHat, err := metrics.ColumnVector(yPred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yHat)
}

// Coef は学習された重み（係数）のコピーを返す
func (lr *LinearRegression) Coef() []float64 {
	if !lr.state.IsFitted() {
		return nil
	}
	return append([]float64(nil), lr.coef...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	if !lr.state.IsFitted() {
		return 0
	}
	return lr.intercept
}

// Rank は学習時の計画行列のランクを返す
func (lr *LinearRegression) Rank() int {
	return lr.rank
}

// IsFitted returns whether the model has been fitted
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// GetParams はハイパーパラメータを返す
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"tol":           lr.tol,
	}
}

// ExportWeights はモデルの重みをエクスポート（チェックサム付き）
func (lr *LinearRegression) ExportWeights() (*model.ModelWeights, error) {
	if err := lr.state.RequireFitted("LinearRegression", "ExportWeights"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := lr.state.GetDimensions()
	weights := &model.ModelWeights{
		ModelType:       ModelType,
		Version:         model.WeightsVersion,
		Coefficients:    lr.Coef(),
		Intercept:       lr.intercept,
		IsFitted:        true,
		Hyperparameters: lr.GetParams(),
		Metadata: map[string]interface{}{
			"n_features": nFeatures,
			"n_samples":  nSamples,
			"rank":       lr.rank,
		},
	}
	weights.Seal()
	return weights, nil
}

// ImportWeights はモデルの重みをインポート（チェックサムを検証）
func (lr *LinearRegression) ImportWeights(weights *model.ModelWeights) error {
	if weights == nil {
		return errors.NewValueError("LinearRegression.ImportWeights", "weights cannot be nil")
	}
	if weights.ModelType != ModelType {
		return errors.NewValueError("LinearRegression.ImportWeights",
			fmt.Sprintf("model type mismatch: expected %s, got %s", ModelType, weights.ModelType))
	}
	if !weights.IsFitted {
		return errors.NewValueError("LinearRegression.ImportWeights", "weights are not fitted")
	}
	if err := weights.Validate(); err != nil {
		return err
	}

	if v, ok := weights.Hyperparameters["fit_intercept"].(bool); ok {
		lr.fitIntercept = v
	}
	if v, ok := weights.Hyperparameters["tol"].(float64); ok {
		lr.tol = v
	}

	lr.coef = append([]float64(nil), weights.Coefficients...)
	lr.intercept = weights.Intercept
	nSamples := metadataInt(weights.Metadata, "n_samples")
	lr.rank = metadataInt(weights.Metadata, "rank")

	lr.state.SetDimensions(len(lr.coef), nSamples)
	lr.state.SetFitted()
	return nil
}

// metadataInt reads an integer that may have gone through a JSON round trip.
func metadataInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// String はモデルの文字列表現を返す
func (lr *LinearRegression) String() string {
	if !lr.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, rank=%d)", lr.fitIntercept, len(lr.coef), lr.rank)
}
