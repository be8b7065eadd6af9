package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデル
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor は行列全体に対して予測する（n×1 の列ベクトルを返す）
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer はテストデータに対する R² を返す
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor は交差検証で毎フォールド新しく作られる回帰モデル
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// LinearModel は係数と切片を公開する回帰モデル。係数は特徴量の重要度として保存される。
type LinearModel interface {
	Regressor
	Coef() []float64
	Intercept() float64
}

// RowPredictor は標準化済みの1行から1つの予測値を返す。推論時のホットパス。
type RowPredictor interface {
	PredictRow(row []float64) (float64, error)
}

// Transformer は学習分割で Fit し、他の分割には Transform だけを適用する変換器
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// RowTransformer は1行をその場で変換する。学習時の統計量を再計算してはならない。
type RowTransformer interface {
	TransformRow(row []float64) error
}

// WeightExporter は重みを model.json に書き出せるモデル
type WeightExporter interface {
	ExportWeights() (*ModelWeights, error)
	ImportWeights(weights *ModelWeights) error
}
