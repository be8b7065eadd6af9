package pipeline

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/salesforecast/artifact"
	"github.com/YuminosukeSato/salesforecast/core/model"
	"github.com/YuminosukeSato/salesforecast/linear"
	"github.com/YuminosukeSato/salesforecast/metrics"
	"github.com/YuminosukeSato/salesforecast/modelselection"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// Verdict thresholds on the test R².
const (
	ExcellentR2 = 0.7
	GoodR2      = 0.5
)

// Verdict classifies a test R².
func Verdict(r2 float64) string {
	switch {
	case r2 > ExcellentR2:
		return "excellent"
	case r2 > GoodR2:
		return "good"
	default:
		return "needs improvement"
	}
}

// Evaluation holds the metrics and the predictions behind them.
type Evaluation struct {
	Metrics   artifact.Metrics
	YTrain    *mat.VecDense
	YTrainHat *mat.VecDense
	YTest     *mat.VecDense
	YTestHat  *mat.VecDense
}

// Evaluate は学習済みモデルを訓練・テスト分割で評価し、訓練分割上で交差検証を行う
func Evaluate(m model.Regressor, XTrain, yTrain, XTest, yTest mat.Matrix, kf *modelselection.KFold) (*Evaluation, error) {
	ev := &Evaluation{}
	var err error

	if ev.YTrain, ev.YTrainHat, err = predictPair(m, XTrain, yTrain); err != nil {
		return nil, err
	}
	if ev.YTest, ev.YTestHat, err = predictPair(m, XTest, yTest); err != nil {
		return nil, err
	}

	train, err := scoreSplit("train", ev.YTrain, ev.YTrainHat)
	if err != nil {
		return nil, err
	}
	test, err := scoreSplit("test", ev.YTest, ev.YTestHat)
	if err != nil {
		return nil, err
	}

	cv, err := modelselection.CrossValScore(func() model.Regressor { return linear.NewLinearRegression() },
		XTrain, yTrain, kf)
	if err != nil {
		return nil, err
	}

	ev.Metrics = artifact.Metrics{
		R2Train:   train.R2,
		R2Test:    test.R2,
		MAETrain:  train.MAE,
		MAETest:   test.MAE,
		RMSETrain: train.RMSE,
		RMSETest:  test.RMSE,
		CVScores:  cv.Scores,
		CVMean:    cv.MeanScore(),
		CVStd:     cv.StdScore(),
	}
	return ev, nil
}

// scoreSplit は1つの分割の指標を計算する。目的変数が一定で R² が定義されない場合は
// 交差検証と同じく UndefinedMetricWarning を出して R² を 0 とし、MAE と RMSE はそのまま返す。
func scoreSplit(split string, y, yHat *mat.VecDense) (metrics.Regression, error) {
	res, err := metrics.EvaluateRegression(y, yHat)
	if !errors.Is(err, metrics.ErrZeroVariance) {
		return res, err
	}
	errors.Warn(errors.NewUndefinedMetricWarning("r2", split+" split has a constant target", 0))

	mae, err := metrics.MAE(y, yHat)
	if err != nil {
		return metrics.Regression{}, err
	}
	rmse, err := metrics.RMSE(y, yHat)
	if err != nil {
		return metrics.Regression{}, err
	}
	return metrics.Regression{R2: 0, MAE: mae, RMSE: rmse}, nil
}

func predictPair(m model.Predictor, X, y mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return nil, nil, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return nil, nil, err
	}
	yHat, err := metrics.ColumnVector(pred)
	if err != nil {
		return nil, nil, err
	}
	return yTrue, yHat, nil
}
