package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "rank deficient design matrix",
			err:     ErrSingularMatrix,
			wantMsg: "salesforecast: Fit: rank deficient design matrix: singular matrix",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "salesforecast: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
			if tt.err != nil && !Is(err, tt.err) {
				t.Error("Expected wrapped cause to be reachable with Is")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("StandardScaler.Transform", 7, 5, 1)

	want := "salesforecast: StandardScaler.Transform: dimension mismatch on axis 1 (features). Expected 7, got 5"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 7 || dimErr.Got != 5 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LinearRegression", "Predict")

	want := "salesforecast: LinearRegression: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestInputValidationError(t *testing.T) {
	err := NewInputValidationError(3, "precio_promedio", "cheap", "not a number")

	want := "salesforecast: record 3: column 'precio_promedio': not a number (got: cheap)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
	if !IsInputError(err) {
		t.Error("IsInputError should be true")
	}
	if !IsInputError(Wrap(err, "predict_batch")) {
		t.Error("IsInputError should see through wrapping")
	}
	if IsInputError(NewValueError("op", "msg")) {
		t.Error("IsInputError should be false for ValueError")
	}
}

func TestArtifactError(t *testing.T) {
	cause := fmt.Errorf("open models/scaler.json: no such file or directory")
	err := NewArtifactError("scaler", "models/scaler.json", cause)

	if !IsArtifactError(err) {
		t.Error("IsArtifactError should be true")
	}
	if !Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}

	var artErr *ArtifactError
	if !As(err, &artErr) {
		t.Fatal("Error should be castable to *ArtifactError")
	}
	if artErr.Artifact != "scaler" || artErr.Path != "models/scaler.json" {
		t.Errorf("unexpected fields: %+v", artErr)
	}
	if !strings.Contains(err.Error(), "artifact scaler (models/scaler.json)") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestWarnRoutesToHandler(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("r2", "constant target in fold", 0))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
	want := "'r2' is ill-defined and being set to 0.000000 due to constant target in fold."
	if got[0].Error() != want {
		t.Errorf("Error() = %v, want %v", got[0].Error(), want)
	}
}

func TestWrapfAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: %d rows", "LoadCSV", 0)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in LoadCSV: 0 rows") {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("coef", []float64{1, 2, 3}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := CheckNumericalStability("coef", []float64{1, math.NaN(), math.Inf(1)})
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if len(numErr.Values) != 2 {
		t.Errorf("expected 2 unstable values, got %d", len(numErr.Values))
	}
}


func TestModelErrorMarshalZerolog(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)

	err := NewModelError("LinearRegression.Fit", "rank deficient", Wrapf(ErrSingularMatrix, "rank 2 < 3 columns"))
	var me *ModelError
	if !As(err, &me) {
		t.Fatalf("expected ModelError, got %T", err)
	}
	logger.Info().Object("error_detail", me).Msg("fit failed")

	out := buf.String()
	for _, want := range []string{`"kind":"rank deficient"`, `"type":"ModelError"`, `"operation":"LinearRegression.Fit"`, "singular matrix"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %s missing %s", out, want)
		}
	}
}
