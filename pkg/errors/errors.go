// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// 学習パイプライン・成果物の読み込み・推論の各段階で、構造化されたエラー情報を返します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	// warningHandler は pkg/log が SetZerologWarnFunc を呼ぶ前の警告出力先
	warningHandler = func(w error) {
		log.Printf("salesforecast-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// DataConversionWarning はデータの型が暗黙的に変換された場合に発生する警告です。
type DataConversionWarning struct {
	Column   string
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("column %q converted from %s to %s. Reason: %s", w.Column, w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning は新しいDataConversionWarningを作成します。
func NewDataConversionWarning(column, from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{Column: column, FromType: from, ToType: to, Reason: reason}
}

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、交差検証の fold 内で目的変数の分散が 0 だった場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("salesforecast: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("salesforecast: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は設定値やパラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("salesforecast: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// InputValidationError は推論リクエストのレコードが、既定値で補完した後も
// 学習時のスキーマに変換できない場合のエラーです。クライアント側の誤りとして扱われます。
type InputValidationError struct {
	Index  int    // バッチ内のレコード位置（単一レコードでは 0）
	Column string // 変換に失敗した列
	Value  interface{}
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("salesforecast: record %d: column '%s': %s (got: %v)", e.Index, e.Column, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InputValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("index", e.Index).
		Str("column", e.Column).
		Interface("value", e.Value).
		Str("reason", e.Reason).
		Str("type", "InputValidationError")
}

// NewInputValidationError は新しいInputValidationErrorを作成し、スタックトレースを付与します。
func NewInputValidationError(index int, column string, value interface{}, reason string) error {
	err := &InputValidationError{Index: index, Column: column, Value: value, Reason: reason}
	return errors.WithStack(err)
}

// ArtifactError は永続化された成果物（モデル・スケーラー・エンコーダー・メタデータ）の
// 読み書きに失敗した場合のエラーです。
type ArtifactError struct {
	Artifact string // "model", "scaler", "label_encoders", "model_info"
	Path     string
	Err      error
}

func (e *ArtifactError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("salesforecast: artifact %s (%s): %v", e.Artifact, e.Path, e.Err)
	}
	return fmt.Sprintf("salesforecast: artifact %s (%s)", e.Artifact, e.Path)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ArtifactError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("artifact", e.Artifact).
		Str("path", e.Path).
		Str("type", "ArtifactError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewArtifactError は新しいArtifactErrorを作成し、スタックトレースを付与します。
func NewArtifactError(artifact, path string, err error) error {
	return errors.WithStack(&ArtifactError{Artifact: artifact, Path: path, Err: err})
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("salesforecast: %s: %s", e.Op, e.Message)
}

func (e *ValueError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("message", e.Message).
		Str("type", "ValueError")
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("salesforecast: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("salesforecast: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject は kind ("rank deficient", "empty data" など) を検索可能なフィールドとして出す。
func (e *ModelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("kind", e.Kind).
		Str("type", "ModelError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// IsInputError はエラーがクライアント入力に起因するものかどうかを判定します。
func IsInputError(err error) bool {
	var inputErr *InputValidationError
	return errors.As(err, &inputErr)
}

// IsArtifactError はエラーが成果物の読み込み失敗に起因するものかどうかを判定します。
func IsArtifactError(err error) bool {
	var artifactErr *ArtifactError
	return errors.As(err, &artifactErr)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列（ランク落ち）の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")

	// ErrTargetNotFound は目的変数の列が見つからない場合のエラーです。
	ErrTargetNotFound = New("target column not found")

	// ErrModelUnavailable はモデルが読み込まれていない（縮退モード）場合のエラーです。
	ErrModelUnavailable = New("model not available")
)
