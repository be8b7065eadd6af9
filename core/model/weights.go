package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"

	"github.com/YuminosukeSato/salesforecast/pkg/errors"
)

// WeightsVersion は現在の重みフォーマットのバージョン
const WeightsVersion = "1.0.0"

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
type ModelWeights struct {
	// ModelType はモデルの種類（LinearRegression 等）
	ModelType string `json:"model_type"`

	// Version は重みフォーマットのバージョン（互換性チェック用）
	Version string `json:"version"`

	// Coefficients は重み係数（Features と同じ順序）
	Coefficients []float64 `json:"coefficients"`

	// Intercept は切片
	Intercept float64 `json:"intercept"`

	// Features は特徴量の名前
	Features []string `json:"features,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters,omitempty"`

	// Metadata は追加のメタデータ（学習時の統計等）
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// IsFitted はモデルが学習済みかどうか
	IsFitted bool `json:"is_fitted"`

	// Checksum は係数と切片の SHA-256
	Checksum string `json:"checksum,omitempty"`
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(mw, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal model weights")
	}
	return data, nil
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return errors.Wrap(err, "unmarshal model weights")
	}
	return nil
}

// ComputeChecksum は係数と切片から SHA-256 チェックサムを計算
func (mw *ModelWeights) ComputeChecksum() string {
	data, _ := json.Marshal(append(append([]float64{}, mw.Coefficients...), mw.Intercept))
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Seal はチェックサムを計算して設定する
func (mw *ModelWeights) Seal() {
	mw.Checksum = mw.ComputeChecksum()
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return errors.NewValidationError("version", "is required", mw.Version)
	}
	if !mw.IsFitted && len(mw.Coefficients) > 0 {
		return errors.NewValidationError("coefficients", "unfitted model should not have coefficients", len(mw.Coefficients))
	}
	if mw.IsFitted && len(mw.Coefficients) == 0 {
		return errors.NewValidationError("coefficients", "fitted model must have coefficients", 0)
	}
	if len(mw.Features) > 0 && len(mw.Features) != len(mw.Coefficients) {
		return errors.NewDimensionError("ModelWeights.Validate", len(mw.Features), len(mw.Coefficients), 1)
	}
	for _, c := range append(append([]float64{}, mw.Coefficients...), mw.Intercept) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return errors.NewValidationError("coefficients", "must be finite", c)
		}
	}
	if mw.Checksum != "" && mw.Checksum != mw.ComputeChecksum() {
		return errors.NewValidationError("checksum", "checksum mismatch: weights may be corrupted", mw.Checksum)
	}
	return nil
}
