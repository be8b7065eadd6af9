package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/salesforecast/core/model"
	"github.com/YuminosukeSato/salesforecast/core/parallel"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する。学習データの分割のみで Fit し、推論時には再学習しない。
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差（母標準偏差、ほぼ0の場合は1）
	Scale []float64

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// ScalerParams はStandardScalerの永続化形式
type ScalerParams struct {
	Mean      []float64 `json:"mean"`
	Scale     []float64 `json:"scale"`
	NFeatures int       `json:"n_features"`
	NSamples  int       `json:"n_samples_seen"`
	WithMean  bool      `json:"with_mean"`
	WithStd   bool      `json:"with_std"`
}

// NewStandardScaler は新しいStandardScalerを作成する
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(XTrain)
//	XScaled, err := scaler.Transform(XTest)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

var (
	_ model.Transformer    = (*StandardScaler)(nil)
	_ model.RowTransformer = (*StandardScaler)(nil)
)

// Fit は訓練データから統計情報（平均、標準偏差）を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := errors.CheckMatrix("StandardScaler.Fit", X, r, c); err != nil {
		return err
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, std := stat.PopMeanStdDev(col, nil)

		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1.0
		// 標準偏差が0に近い場合は1に設定（ゼロ除算を避ける）
		if s.WithStd && std >= 1e-8 {
			s.Scale[j] = std
		}
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("Transform", X, func(v float64, j int) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	return s.apply("InverseTransform", X, func(v float64, j int) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
}

// TransformRow は1行分の特徴量をその場で標準化する（推論用）
func (s *StandardScaler) TransformRow(row []float64) error {
	if err := s.state.RequireFitted("StandardScaler", "TransformRow"); err != nil {
		return err
	}
	if err := s.state.RequireFeatures("StandardScaler.TransformRow", len(row)); err != nil {
		return err
	}
	for j, v := range row {
		row[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return nil
}

func (s *StandardScaler) apply(method string, X mat.Matrix, f func(v float64, j int) float64) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", method); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler."+method, c); err != nil {
		return nil, err
	}

	result := mat.NewDense(r, c, nil)
	parallel.ParallelizeWithThreshold(r, 1000, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				result.Set(i, j, f(X.At(i, j), j))
			}
		}
	})
	return result, nil
}

// IsFitted は学習済みかどうかを返す
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// NFeatures は学習時の特徴量数を返す
func (s *StandardScaler) NFeatures() int {
	n, _ := s.state.GetDimensions()
	return n
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// Params は学習済みの統計情報を永続化形式で返す
func (s *StandardScaler) Params() (*ScalerParams, error) {
	if err := s.state.RequireFitted("StandardScaler", "Params"); err != nil {
		return nil, err
	}
	nFeatures, nSamples := s.state.GetDimensions()
	return &ScalerParams{
		Mean:      append([]float64(nil), s.Mean...),
		Scale:     append([]float64(nil), s.Scale...),
		NFeatures: nFeatures,
		NSamples:  nSamples,
		WithMean:  s.WithMean,
		WithStd:   s.WithStd,
	}, nil
}

// ScalerFromParams は永続化形式から学習済みのStandardScalerを復元する
func ScalerFromParams(p *ScalerParams) (*StandardScaler, error) {
	if p == nil {
		return nil, errors.NewValueError("ScalerFromParams", "params cannot be nil")
	}
	if p.NFeatures <= 0 || len(p.Mean) != p.NFeatures || len(p.Scale) != p.NFeatures {
		return nil, errors.NewDimensionError("ScalerFromParams", p.NFeatures, len(p.Scale), 1)
	}
	for j, sc := range p.Scale {
		if sc == 0 || math.IsNaN(sc) || math.IsInf(sc, 0) {
			return nil, errors.NewValidationError(fmt.Sprintf("scale[%d]", j), "must be finite and non-zero", sc)
		}
	}
	if err := errors.CheckNumericalStability("ScalerFromParams", p.Mean); err != nil {
		return nil, err
	}

	s := NewStandardScaler(p.WithMean, p.WithStd)
	s.Mean = append([]float64(nil), p.Mean...)
	s.Scale = append([]float64(nil), p.Scale...)
	s.state.SetDimensions(p.NFeatures, p.NSamples)
	s.state.SetFitted()
	return s, nil
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures())
}
