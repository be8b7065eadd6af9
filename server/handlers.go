package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/YuminosukeSato/salesforecast/artifact"
	"github.com/YuminosukeSato/salesforecast/inference"
	"github.com/YuminosukeSato/salesforecast/pkg/errors"
	"github.com/YuminosukeSato/salesforecast/pkg/log"
)

// unavailable is reported as model_type while no model is loaded.
const unavailable = "unavailable"

// errBodyTooLarge is returned by readBody when the body exceeds MaxBodyBytes.
var errBodyTooLarge = errors.Newf("request body exceeds %d bytes", MaxBodyBytes)

type errorResponse struct {
	Detail string `json:"detail"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelType   string `json:"model_type"`
	Version     string `json:"version"`
}

type predictionResponse struct {
	Prediction float64             `json:"prediction"`
	Confidence float64             `json:"confidence"`
	ModelInfo  inference.ModelInfo `json:"model_info"`
}

type batchModelInfo struct {
	inference.ModelInfo
	BatchSize int `json:"batch_size"`
}

type batchResponse struct {
	Predictions []float64      `json:"predictions"`
	Confidence  float64        `json:"confidence"`
	ModelInfo   batchModelInfo `json:"model_info"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

// statusFor maps an error to the HTTP status class it belongs to.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrModelUnavailable), errors.IsArtifactError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger.Error("Request failed", err, log.RequestIDKey, RequestID(r.Context()))
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}

// requireModel writes a 503 and returns nil when no model is loaded.
func (s *Server) requireModel(w http.ResponseWriter) *inference.Adapter {
	if s.adapter == nil {
		detail := errors.ErrModelUnavailable.Error()
		if s.loadErr != nil && !errors.Is(s.loadErr, errors.ErrModelUnavailable) {
			detail += ": " + s.loadErr.Error()
		}
		writeError(w, http.StatusServiceUnavailable, detail)
		return nil
	}
	return s.adapter
}

func (s *Server) modelType() string {
	if s.adapter == nil {
		return unavailable
	}
	return s.adapter.ModelInfo().ModelType
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	features := 0
	if s.adapter != nil {
		features = len(s.adapter.Features())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Monthly store sales prediction API",
		"version":    Version,
		"model_type": s.modelType(),
		"features":   features,
		"algorithm":  "Linear regression",
		"health":     "/health",
		"example":    "/example",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "healthy"
	if s.adapter == nil {
		status = "unhealthy"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      status,
		ModelLoaded: s.adapter != nil,
		ModelType:   s.modelType(),
		Version:     Version,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	a := s.requireModel(w)
	if a == nil {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var record inference.Record
	if err := decode(body, &record); err != nil || record == nil {
		s.fail(w, r, errors.NewInputValidationError(0, "", nil, "body must be a JSON object"))
		return
	}

	pred, err := a.Predict(r.Context(), record)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, predictionResponse{
		Prediction: pred.Value,
		Confidence: pred.Confidence,
		ModelInfo:  a.ModelInfo(),
	})
}

// handlePredictBatch accepts either a JSON array of records or {"data": [...]}.
func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	a := s.requireModel(w)
	if a == nil {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	records, err := decodeBatch(body)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	preds, err := a.PredictBatch(r.Context(), records)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	values := make([]float64, len(preds))
	for i, p := range preds {
		values[i] = p.Value
	}
	writeJSON(w, http.StatusOK, batchResponse{
		Predictions: values,
		Confidence:  a.Confidence(),
		ModelInfo:   batchModelInfo{ModelInfo: a.ModelInfo(), BatchSize: len(values)},
	})
}

func (s *Server) handleModelInfo(w http.ResponseWriter, _ *http.Request) {
	a := s.requireModel(w)
	if a == nil {
		return
	}
	meta := a.Bundle().Metadata
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model_type":    meta.ModelType,
		"features":      meta.FeatureColumns,
		"metrics":       meta.Metrics,
		"training_info": meta.TrainingInfo,
		"data_info": map[string]interface{}{
			"feature_cols":        meta.FeatureColumns,
			"target_col":          meta.TargetColumn,
			"categorical_columns": meta.CategoricalColumns,
			"categories":          a.Categories(),
		},
	})
}

func (s *Server) handleFeatureImportance(w http.ResponseWriter, _ *http.Request) {
	a := s.requireModel(w)
	if a == nil {
		return
	}
	meta := a.Bundle().Metadata
	importance := meta.FeatureImportance
	if importance == nil {
		importance = []artifact.FeatureImportance{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feature_importance": importance,
		"model_type":         meta.ModelType,
	})
}

// handleExample documents the request format. It works without a model; the
// locations come from the loaded encoder when there is one.
func (s *Server) handleExample(w http.ResponseWriter, _ *http.Request) {
	locations := []string{"rural", "suburbana", "urbana"}
	resp := map[string]interface{}{
		"example_request": inference.WorkedExample(),
		"example_response": predictionResponse{
			Prediction: 45000.0,
			Confidence: 0.57,
			ModelInfo:  inference.ModelInfo{ModelType: "LinearRegression", R2Score: 0.57, RMSE: 10739.31},
		},
		"valid_ranges": map[string][2]float64{
			"tienda_id":  {1, 100},
			"empleados":  {1, 50},
			"publicidad": {0, 20000},
		},
	}
	if s.adapter != nil {
		if cats, ok := s.adapter.Categories()["ubicacion"]; ok {
			locations = append([]string(nil), cats...)
			sort.Strings(locations)
		}
		resp["model_example"] = s.adapter.Example()
	}
	resp["valid_locations"] = locations
	writeJSON(w, http.StatusOK, resp)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return nil, errBodyTooLarge
	}
	if err != nil {
		return nil, errors.NewInputValidationError(0, "", nil, "request body unreadable")
	}
	return body, nil
}

// decode parses JSON keeping numbers as json.Number.
func decode(body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeBatch(body []byte) ([]inference.Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.NewInputValidationError(0, "", nil, "empty body")
	}

	var records []inference.Record
	switch trimmed[0] {
	case '[':
		if err := decode(trimmed, &records); err != nil {
			return nil, errors.NewInputValidationError(0, "", nil, "body must be an array of JSON objects")
		}
	case '{':
		var wrapped struct {
			Data *[]inference.Record `json:"data"`
		}
		if err := decode(trimmed, &wrapped); err != nil || wrapped.Data == nil {
			return nil, errors.NewInputValidationError(0, "data", nil, `body must contain a "data" array of JSON objects`)
		}
		records = *wrapped.Data
	default:
		return nil, errors.NewInputValidationError(0, "", nil, "body must be a JSON array or object")
	}
	for i, rec := range records {
		if rec == nil {
			return nil, errors.NewInputValidationError(i, "", nil, "record must be an object")
		}
	}
	return records, nil
}
