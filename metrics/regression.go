// Package metrics は回帰モデルの評価指標を提供します。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// ErrZeroVariance は yTrue の全平方和が 0 のため R² が定義できない場合のエラーです。
var ErrZeroVariance = errors.New("total sum of squares is zero (no variance in yTrue)")

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE は二乗平均平方根誤差を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数 R² = 1 - RSS/TSS を計算する
//
// yTrue の分散が 0 の場合は ErrZeroVariance をラップしたエラーを返す。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		p := yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}

	if tss == 0 {
		return 0, errors.Wrap(ErrZeroVariance, "R2Score")
	}
	return 1 - rss/tss, nil
}

// ColumnVector は n×1 行列をベクトルに変換する
func ColumnVector(m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError("ColumnVector", "nil matrix")
	}
	if v, ok := m.(*mat.VecDense); ok {
		return v, nil
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError("ColumnVector", "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError("ColumnVector", "must be a column vector (n×1 matrix)")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}

// Regression は1つのデータ分割に対する回帰指標の組
type Regression struct {
	R2   float64 `json:"r2"`
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
}

// EvaluateRegression は R²、MAE、RMSE をまとめて計算する
func EvaluateRegression(yTrue, yPred *mat.VecDense) (Regression, error) {
	r2, err := R2Score(yTrue, yPred)
	if err != nil {
		return Regression{}, err
	}
	mae, err := MAE(yTrue, yPred)
	if err != nil {
		return Regression{}, err
	}
	rmse, err := RMSE(yTrue, yPred)
	if err != nil {
		return Regression{}, err
	}
	return Regression{R2: r2, MAE: mae, RMSE: rmse}, nil
}
