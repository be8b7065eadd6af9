package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/salesforecast/pipeline"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
)

// trainedDir trains on the fixture once per test and saves the bundle.
func trainedDir(t *testing.T) string {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelWarn)
	opts := pipeline.DefaultOptions()
	opts.DataPath = "../testdata/ventas_tiendas.csv"
	opts.Logger = logger
	res, err := pipeline.Train(context.Background(), opts)
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "models")
	require.NoError(t, res.Bundle.Save(dir))
	return dir
}

func newTestServer(t *testing.T, dir string) (*Server, *log.TestLogger) {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	return NewFromDir(dir, WithLogger(logger)), logger
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthAndRoot(t *testing.T) {
	s, _ := newTestServer(t, trainedDir(t))
	require.True(t, s.Ready())

	rec, body := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["model_loaded"])
	assert.Equal(t, "LinearRegression", body["model_type"])
	assert.Equal(t, Version, body["version"])

	rec, body = do(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4.0, body["features"])
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestPredict(t *testing.T) {
	s, _ := newTestServer(t, trainedDir(t))
	rec, body := do(t, s, http.MethodPost, "/predict", `{"tienda_id":1,"empleados":20,"publicidad":5000,"ubicacion":"urbana"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, ok := body["prediction"].(float64)
	assert.True(t, ok)
	info := body["model_info"].(map[string]interface{})
	assert.Equal(t, "LinearRegression", info["model_type"])
	assert.Equal(t, body["confidence"], info["r2_score"])
	assert.Contains(t, info, "rmse")
}

func TestPredictBatchShapes(t *testing.T) {
	s, _ := newTestServer(t, trainedDir(t))
	records := `[{"empleados":20,"publicidad":5000,"ubicacion":"urbana"},{"empleados":15,"publicidad":3000,"ubicacion":"rural"},{"empleados":5}]`

	for name, payload := range map[string]string{
		"array":   records,
		"wrapped": `{"data":` + records + `}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, "/predict_batch", payload)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			preds := body["predictions"].([]interface{})
			assert.Len(t, preds, 3)
			info := body["model_info"].(map[string]interface{})
			assert.Equal(t, 3.0, info["batch_size"])
		})
	}

	// 単体予測と同じ値になる
	_, single := do(t, s, http.MethodPost, "/predict", `{"empleados":15,"publicidad":3000,"ubicacion":"rural"}`)
	_, batch := do(t, s, http.MethodPost, "/predict_batch", records)
	assert.InDelta(t, single["prediction"].(float64), batch["predictions"].([]interface{})[1].(float64), 1e-9)
}

func TestPredictValidationErrors(t *testing.T) {
	s, _ := newTestServer(t, trainedDir(t))
	tests := []struct {
		name, path, body string
	}{
		{"not json", "/predict", `nope`},
		{"array for single", "/predict", `[1,2]`},
		{"bad number", "/predict", `{"empleados":"veinte"}`},
		{"bool", "/predict", `{"publicidad":true}`},
		{"batch without data", "/predict_batch", `{"rows":[]}`},
		{"batch scalar", "/predict_batch", `42`},
		{"batch null record", "/predict_batch", `[null]`},
		{"batch empty", "/predict_batch", `[]`},
		{"batch bad record", "/predict_batch", `[{"empleados":1},{"empleados":"x"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, body["detail"])
		})
	}
}

func TestPredictBodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t, trainedDir(t))
	huge := `{"ubicacion":"` + strings.Repeat("x", MaxBodyBytes) + `"}`

	for _, path := range []string{"/predict", "/predict_batch"} {
		t.Run(path, func(t *testing.T) {
			rec, body := do(t, s, http.MethodPost, path, huge)
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
			assert.Contains(t, body["detail"], "exceeds")
		})
	}

	// 上限ちょうどは受け付ける
	record := `{"empleados":15,"publicidad":3000,"ubicacion":"rural"}`
	rec, _ := do(t, s, http.MethodPost, "/predict", record+strings.Repeat(" ", MaxBodyBytes-len(record)))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestModelInfoAndImportance(t *testing.T) {
	s, _ := newTestServer(t, trainedDir(t))

	rec, body := do(t, s, http.MethodGet, "/model-info", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"tienda_id", "empleados", "publicidad", "ubicacion"}, body["features"])
	metrics := body["metrics"].(map[string]interface{})
	assert.Contains(t, metrics, "r2_test")
	assert.Len(t, metrics["cv_scores"], 5)
	dataInfo := body["data_info"].(map[string]interface{})
	assert.Equal(t, "ventas_mensuales", dataInfo["target_col"])

	rec, body = do(t, s, http.MethodGet, "/feature-importance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["feature_importance"], 4)
}

func TestExample(t *testing.T) {
	s, _ := newTestServer(t, trainedDir(t))
	rec, body := do(t, s, http.MethodGet, "/example", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{"rural", "suburbana", "urbana"}, body["valid_locations"])
	assert.Contains(t, body, "model_example")

	req := body["example_request"].(map[string]interface{})
	assert.Equal(t, "urbana", req["ubicacion"])
}

func TestDegradedMode(t *testing.T) {
	s, logger := newTestServer(t, filepath.Join(t.TempDir(), "missing"))
	assert.False(t, s.Ready())
	assert.True(t, logger.ContainsMessage("degraded mode"))

	rec, body := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, false, body["model_loaded"])
	assert.Equal(t, unavailable, body["model_type"])

	for _, ep := range []struct{ method, path, body string }{
		{http.MethodPost, "/predict", `{}`},
		{http.MethodPost, "/predict_batch", `[]`},
		{http.MethodGet, "/model-info", ""},
		{http.MethodGet, "/feature-importance", ""},
	} {
		rec, body := do(t, s, ep.method, ep.path, ep.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, ep.path)
		assert.Contains(t, body["detail"], "model not available")
	}

	rec, _ = do(t, s, http.MethodGet, "/example", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	s := New(nil, nil, WithLogger(logger))
	h := s.withRecover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, logger.ContainsMessage("Handler panicked"))
}

func TestRequestIDPropagation(t *testing.T) {
	s, logger := newTestServer(t, filepath.Join(t.TempDir(), "missing"))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	assert.True(t, logger.ContainsField(log.RequestIDKey, "abc-123"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"input", errors.NewInputValidationError(0, "empleados", "x", "not a number"), http.StatusBadRequest},
		{"wrapped input", errors.Wrap(errors.NewInputValidationError(3, "", nil, "bad"), "batch"), http.StatusBadRequest},
		{"unavailable", errors.ErrModelUnavailable, http.StatusServiceUnavailable},
		{"artifact", errors.NewArtifactError("model.json", "/m", assert.AnError), http.StatusServiceUnavailable},
		{"too large", errors.Wrap(errBodyTooLarge, "read"), http.StatusRequestEntityTooLarge},
		{"other", assert.AnError, http.StatusInternalServerError},
		{"panic", errors.NewPanicError("op", "boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, filepath.Join(t.TempDir(), "missing"))
	rec, _ := do(t, s, http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
