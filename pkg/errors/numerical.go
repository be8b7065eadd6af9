package errors

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// NumericalInstabilityError は計算中に NaN や Inf が発生した場合のエラーです。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64 // 問題となった値（最大 10 件）
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("salesforecast: numerical instability detected in %s: %v", e.Operation, e.Values)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Floats64("values", e.Values).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成し、スタックトレースを付与します。
func NewNumericalInstabilityError(operation string, values []float64) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values})
}

// CheckNumericalStability checks if values contain NaN or Inf
// and returns an error if numerical instability is detected.
func CheckNumericalStability(operation string, values []float64) error {
	var unstable []float64
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			unstable = append(unstable, v)
			if len(unstable) >= 10 {
				break
			}
		}
	}
	if len(unstable) > 0 {
		return NewNumericalInstabilityError(operation, unstable)
	}
	return nil
}

// CheckMatrix checks all values in a matrix for numerical instability.
func CheckMatrix(operation string, matrix interface{ At(int, int) float64 }, rows, cols int) error {
	var unstable []float64

	for i := 0; i < rows && len(unstable) == 0; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				unstable = append(unstable, v)
				if len(unstable) >= 10 {
					break
				}
			}
		}
	}

	if len(unstable) > 0 {
		return NewNumericalInstabilityError(operation, unstable)
	}
	return nil
}

