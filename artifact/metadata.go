// Package artifact persists and restores the trained bundle: model weights,
// scaler statistics, label encoders and training metadata.
package artifact

import (
	"math"
	"sort"
	"time"
)

// MetadataVersion は model_info.json のフォーマットバージョン
const MetadataVersion = "1.0.0"

// Metrics holds the evaluation of one training run.
type Metrics struct {
	R2Train   float64   `json:"r2_train"`
	R2Test    float64   `json:"r2_test"`
	MAETrain  float64   `json:"mae_train"`
	MAETest   float64   `json:"mae_test"`
	RMSETrain float64   `json:"rmse_train"`
	RMSETest  float64   `json:"rmse_test"`
	CVScores  []float64 `json:"cv_scores"`
	CVMean    float64   `json:"cv_mean"`
	CVStd     float64   `json:"cv_std"`
}

// FeatureImportance is one row of the coefficient table.
type FeatureImportance struct {
	Feature        string  `json:"feature"`
	Coefficient    float64 `json:"coefficient"`
	AbsCoefficient float64 `json:"abs_coefficient"`
}

// RankFeatures builds the coefficient table sorted by |coefficient|
// descending. Ties keep feature order.
func RankFeatures(features []string, coef []float64) []FeatureImportance {
	out := make([]FeatureImportance, len(features))
	for i, f := range features {
		out[i] = FeatureImportance{Feature: f, Coefficient: coef[i], AbsCoefficient: math.Abs(coef[i])}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AbsCoefficient > out[j].AbsCoefficient
	})
	return out
}

// TrainingInfo describes how the bundle was produced.
type TrainingInfo struct {
	RunID       string    `json:"run_id"`
	TrainedAt   time.Time `json:"trained_at"`
	SourceFile  string    `json:"source_file,omitempty"`
	Rows        int       `json:"rows"`
	TrainRows   int       `json:"train_rows"`
	TestRows    int       `json:"test_rows"`
	TestSize    float64   `json:"test_size"`
	RandomState int64     `json:"random_state"`
	CVFolds     int       `json:"cv_folds"`
	NullsBefore int       `json:"nulls_before"`
	Clipped     int       `json:"values_clipped"`
}

// Metadata is the content of model_info.json.
type Metadata struct {
	Version            string              `json:"version"`
	ModelType          string              `json:"model_type"`
	FeatureColumns     []string            `json:"feature_columns"`
	TargetColumn       string              `json:"target_column"`
	CategoricalColumns []string            `json:"categorical_columns"`
	Metrics            Metrics             `json:"metrics"`
	FeatureImportance  []FeatureImportance `json:"feature_importance"`
	TrainingInfo       TrainingInfo        `json:"training_info"`
}

// IsCategorical reports whether column was label encoded.
func (m *Metadata) IsCategorical(column string) bool {
	for _, c := range m.CategoricalColumns {
		if c == column {
			return true
		}
	}
	return false
}
