package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lacquerai/co2/internal/features"
	"github.com/lacquerai/co2/internal/pipeline"
	"github.com/rs/zerolog/log"
)

// maxBodyBytes bounds the size of a prediction request body
const maxBodyBytes = 1 << 20

// HomeResponse describes the API on GET /
type HomeResponse struct {
	Message      string         `json:"message"`
	Description  string         `json:"description"`
	Routes       Routes         `json:"routes"`
	ExampleInput features.Input `json:"example_input"`
}

// Routes lists the public routes with a short description of each
type Routes struct {
	Health  string `json:"/health"`
	Predict string `json:"/predict"`
	Metrics string `json:"/metrics,omitempty"`
}

// PredictResponse is the body of a successful prediction
type PredictResponse struct {
	Prediction float64 `json:"prediction"`
}

// ErrorResponse is the body of every failed request. Field and Value are set
// for invalid inputs, Missing for absent ones.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Field   string   `json:"field,omitempty"`
	Value   any      `json:"value,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// home describes the API and gives an example payload
func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	routes := Routes{
		Health:  "Check the health status of the API.",
		Predict: "POST endpoint to make predictions. Requires specific input fields in JSON format.",
	}
	if s.config.EnableMetrics {
		routes.Metrics = "Prometheus metrics for the prediction service."
	}

	writeJSON(w, http.StatusOK, HomeResponse{
		Message:      "Welcome to the CO2 Prediction API!",
		Description:  "This API predicts weekly CO2 emissions based on user input data.",
		Routes:       routes,
		ExampleInput: features.ExampleInput,
	})
}

// healthCheck reports that the process is serving requests
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "API is running"})
}

// predict runs one prediction for the JSON object in the request body
func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var in features.RawInput
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&in); err != nil {
		s.metrics.observe("invalid_body", time.Since(start))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("Invalid JSON body: %v", err)})
		return
	}
	if in == nil {
		s.metrics.observe("invalid_body", time.Since(start))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON body: expected a JSON object"})
		return
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		s.metrics.observe("invalid_body", time.Since(start))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid JSON body: unexpected data after the JSON object"})
		return
	}

	res, err := s.pipeline.Predict(r.Context(), in)
	if err != nil {
		kind := pipeline.Classify(err)
		s.metrics.observe(kind.String(), time.Since(start))
		s.writePredictError(w, r, kind, err)
		return
	}

	s.metrics.observePrediction(res.Prediction, time.Since(start))
	writeJSON(w, http.StatusOK, PredictResponse{Prediction: res.Prediction})
}

// writePredictError maps a pipeline failure to its HTTP response
func (s *Server) writePredictError(w http.ResponseWriter, r *http.Request, kind pipeline.ErrorKind, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var (
		missingErr  *features.MissingFieldError
		categoryErr *features.UnknownCategoryError
		numericErr  *features.InvalidNumericError
	)
	switch {
	case errors.As(err, &missingErr):
		resp.Missing = missingErr.Missing
	case errors.As(err, &categoryErr):
		resp.Field, resp.Value = categoryErr.Field, categoryErr.Value
	case errors.As(err, &numericErr):
		resp.Field, resp.Value = numericErr.Field, numericErr.Value
	}

	if kind.IsClientError() {
		log.Warn().
			Err(err).
			Str("request_id", requestIDFromContext(r.Context())).
			Str("kind", kind.String()).
			Msg("Rejected prediction request")
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	log.Error().
		Err(err).
		Str("request_id", requestIDFromContext(r.Context())).
		Str("kind", kind.String()).
		Msg("Prediction failed")
	writeJSON(w, http.StatusInternalServerError, resp)
}

// notFound answers unknown routes with a JSON error
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("Route '%s' not found", r.URL.Path)})
}

// methodNotAllowed answers known routes called with the wrong method
func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error: fmt.Sprintf("Method %s not allowed on '%s'", r.Method, r.URL.Path),
	})
}

// writeJSON writes v as the JSON response body. The body is encoded before
// the status is sent so an encoding failure still becomes a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(ErrorResponse{Error: fmt.Sprintf("failed to encode response: %v", err)})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
