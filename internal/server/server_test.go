package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/lacquerai/co2/internal/features"
	"github.com/lacquerai/co2/internal/inference"
	"github.com/lacquerai/co2/internal/pipeline"
	"github.com/lacquerai/co2/internal/testhelper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioOneBody = `{
	"Sex": "Male",
	"Âge": 35,
	"Pays": "France",
	"Consommation_KWh": 1237,
	"Moyen_de_transport": "Voiture (diesel)",
	"Nombre_de_KM": 1648,
	"Classe_énergétique": "C",
	"Surface_maison_M2": 150
}`

// stubModel counts calls and returns a fixed score
type stubModel struct {
	score  float64
	err    error
	calls  int
	inputs [][]float64
	closed bool
}

func (m *stubModel) Predict(ctx context.Context, x []float64) (float64, error) {
	m.calls++
	m.inputs = append(m.inputs, x)
	return m.score, m.err
}

func (m *stubModel) Close() error {
	m.closed = true
	return nil
}

// newTestServer builds a server around model with metrics on a private registry
func newTestServer(t *testing.T, model inference.Predictor, config *Config) (*Server, *prometheus.Registry) {
	t.Helper()

	if config == nil {
		config = DefaultConfig()
	}
	s, err := New(config, pipeline.New(model))
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	s.metrics = NewMetricsWithRegistry(registry)
	s.gatherer = registry

	return s, registry
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func withField(body, field, value string) string {
	var in map[string]any
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		panic(err)
	}
	if value == "" {
		delete(in, field)
	} else {
		in[field] = json.RawMessage(value)
	}
	out, err := json.Marshal(in)
	if err != nil {
		panic(err)
	}
	return string(out)
}

func TestNew_RequiresPipeline(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	model := &stubModel{err: errors.New("model not ready")}
	s, _ := newTestServer(t, model, nil)

	rec := doRequest(t, s.Handler(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status": "API is running"}`, rec.Body.String())
	assert.Zero(t, model.calls)
}

func TestHome(t *testing.T) {
	s, _ := newTestServer(t, &stubModel{}, nil)

	rec := doRequest(t, s.Handler(), http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	snaps.MatchJSON(t, rec.Body.Bytes())
}

func TestHome_KeyOrder(t *testing.T) {
	config := DefaultConfig()
	config.EnableMetrics = false
	s, _ := newTestServer(t, &stubModel{}, config)

	body := doRequest(t, s.Handler(), http.MethodGet, "/", "").Body.String()

	assert.NotContains(t, body, "/metrics")

	last := -1
	for _, key := range []string{"message", "description", "routes", "example_input"} {
		idx := strings.Index(body, `"`+key+`"`)
		require.Greater(t, idx, last, "key %s out of order", key)
		last = idx
	}

	last = -1
	for _, field := range features.RequiredFields {
		idx := strings.Index(body, `"`+field+`"`)
		require.Greater(t, idx, last, "field %s out of order", field)
		last = idx
	}
}

func TestPredict_ScenarioOne(t *testing.T) {
	model := &stubModel{score: 0.4321}
	s, _ := newTestServer(t, model, nil)

	rec := doRequest(t, s.Handler(), http.MethodPost, "/predict", scenarioOneBody)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PredictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 43.21, resp.Prediction, 1e-9)

	require.Equal(t, 1, model.calls)
	expected := []float64{1, 0.35, 0, 1237.0 / 3000, 0.1, 0.0824, 2.0 / 6, 0.3}
	assert.InDeltaSlice(t, expected, model.inputs[0], 1e-9)
}

func TestPredict_ScenarioTwoUnknownCountry(t *testing.T) {
	model := &stubModel{score: 0.5}
	s, _ := newTestServer(t, model, nil)

	body := withField(scenarioOneBody, features.FieldCountry, `"Atlantis"`)
	rec := doRequest(t, s.Handler(), http.MethodPost, "/predict", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Contains(t, resp.Error, "Invalid categorical value: Pays")
	assert.Equal(t, features.FieldCountry, resp.Field)
	assert.Equal(t, "Atlantis", resp.Value)
	assert.Zero(t, model.calls)
}

func TestPredict_ScenarioThreeMissingAge(t *testing.T) {
	model := &stubModel{score: 0.5}
	s, _ := newTestServer(t, model, nil)

	body := withField(scenarioOneBody, features.FieldAge, "")
	rec := doRequest(t, s.Handler(), http.MethodPost, "/predict", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	for _, field := range features.RequiredFields {
		assert.Contains(t, resp.Error, "'"+field+"'")
	}
	assert.Equal(t, []string{features.FieldAge}, resp.Missing)
	assert.Zero(t, model.calls)
}

func TestPredict_InvalidNumber(t *testing.T) {
	s, _ := newTestServer(t, &stubModel{score: 0.5}, nil)

	body := withField(scenarioOneBody, features.FieldDistance, `"a lot"`)
	rec := doRequest(t, s.Handler(), http.MethodPost, "/predict", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Contains(t, resp.Error, "Invalid numeric value: Nombre_de_KM")
	assert.Equal(t, features.FieldDistance, resp.Field)
}

func TestPredict_NumericStringsAccepted(t *testing.T) {
	s, _ := newTestServer(t, &stubModel{score: 0.5}, nil)

	body := withField(scenarioOneBody, features.FieldAge, `"35"`)
	rec := doRequest(t, s.Handler(), http.MethodPost, "/predict", body)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestPredict_InvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"Sex": `},
		{"array", `[1, 2, 3]`},
		{"null", `null`},
		{"empty", ``},
		{"too large", `{"pad": "` + strings.Repeat("x", maxBodyBytes) + `"}`},
		{"trailing garbage", scenarioOneBody + ` garbage`},
		{"second object", scenarioOneBody + scenarioOneBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &stubModel{score: 0.5}
			s, _ := newTestServer(t, model, nil)

			rec := doRequest(t, s.Handler(), http.MethodPost, "/predict", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.True(t, strings.HasPrefix(decodeError(t, rec).Error, "Invalid JSON body: "))
			assert.Zero(t, model.calls)
		})
	}
}

func TestPredict_InferenceFailure(t *testing.T) {
	model := &stubModel{err: errors.New("tensor shape mismatch")}
	s, _ := newTestServer(t, model, nil)

	rec := doRequest(t, s.Handler(), http.MethodPost, "/predict", scenarioOneBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Contains(t, resp.Error, "tensor shape mismatch")
	assert.Empty(t, resp.Field)
}

func TestPredict_OverflowingPredictionIsInternalError(t *testing.T) {
	model := &stubModel{score: 1e307}
	s, _ := newTestServer(t, model, nil)

	rec := doRequest(t, s.Handler(), http.MethodPost, "/predict", scenarioOneBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "non-finite prediction")
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.predictions.WithLabelValues(pipeline.InferenceFailure.String())))
	assert.Equal(t, 0.0, testutil.ToFloat64(s.metrics.predictions.WithLabelValues(outcomeSuccess)))
}

func TestWriteJSON_EncodingFailure(t *testing.T) {
	rec := httptest.NewRecorder()

	writeJSON(rec, http.StatusOK, PredictResponse{Prediction: math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, decodeError(t, rec).Error, "failed to encode response")
}

func TestPredict_PanicIsInternalError(t *testing.T) {
	model := inference.PredictorFunc(func(ctx context.Context, x []float64) (float64, error) {
		panic("nil session")
	})
	s, _ := newTestServer(t, model, nil)

	rec := doRequest(t, s.Handler(), http.MethodPost, "/predict", scenarioOneBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "nil session")
}

func TestRouting_NotFoundAndMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t, &stubModel{}, nil)
	h := s.Handler()

	rec := doRequest(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "/nope")

	rec = doRequest(t, h, http.MethodGet, "/predict", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, &stubModel{}, nil)
	h := s.Handler()

	rec := doRequest(t, h, http.MethodOptions, "/predict", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec = doRequest(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Disabled(t *testing.T) {
	config := DefaultConfig()
	config.EnableCORS = false
	s, _ := newTestServer(t, &stubModel{}, config)

	rec := doRequest(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingMiddleware(t *testing.T) {
	testhelper.EnableLogging(t, zerolog.InfoLevel)

	s, _ := newTestServer(t, &stubModel{}, nil)

	var buf bytes.Buffer
	previous := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = previous })

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "HTTP request", entry["message"])
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "/nope", entry["path"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
}

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t, &stubModel{}, nil)
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	first := doRequest(t, h, http.MethodGet, "/health", "").Header().Get(RequestIDHeader)
	second := doRequest(t, h, http.MethodGet, "/health", "").Header().Get(RequestIDHeader)
	assert.Len(t, first, 36)
	assert.NotEqual(t, first, second)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &stubModel{score: 0.5}, nil)
	h := s.Handler()

	doRequest(t, h, http.MethodPost, "/predict", scenarioOneBody)
	doRequest(t, h, http.MethodPost, "/predict", withField(scenarioOneBody, features.FieldCountry, `"Atlantis"`))

	rec := doRequest(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `co2_predictions_total{outcome="success"} 1`)
	assert.Contains(t, body, `co2_predictions_total{outcome="unknown_category"} 1`)
	assert.Contains(t, body, "co2_prediction_kg_count 1")
}

func TestMetricsEndpoint_Disabled(t *testing.T) {
	config := DefaultConfig()
	config.EnableMetrics = false
	s, _ := newTestServer(t, &stubModel{}, config)

	rec := doRequest(t, s.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerIntegration_StartupAndShutdown(t *testing.T) {
	model := &stubModel{score: 0.25}
	config := DefaultConfig()
	config.Host = "127.0.0.1"
	config.Port = 0
	s, _ := newTestServer(t, model, config)

	require.NoError(t, s.Start())
	addr := s.GetAddr()
	assert.NotEqual(t, "127.0.0.1:0", addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(fmt.Sprintf("http://%s/predict", addr), "application/json", strings.NewReader(scenarioOneBody))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out PredictResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.InDelta(t, 25.0, out.Prediction, 1e-9)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.True(t, model.closed)

	// a second stop is a no-op
	assert.NoError(t, s.Stop(ctx))
}
