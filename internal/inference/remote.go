package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type remoteRequest struct {
	Instances [][]float64 `json:"instances"`
}

type remoteResponse struct {
	Predictions []float64 `json:"predictions"`
}

// RemotePredictor calls a model server that accepts
// {"instances": [[...]]} and answers {"predictions": [...]}.
type RemotePredictor struct {
	url    string
	client *http.Client
}

// NewRemotePredictor validates the endpoint. No request is sent until the
// first prediction.
func NewRemotePredictor(cfg RemoteConfig) (*RemotePredictor, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote model url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote model url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported remote model url scheme %q", u.Scheme)
	}

	return &RemotePredictor{
		url:    u.String(),
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (p *RemotePredictor) Predict(ctx context.Context, x []float64) (float64, error) {
	if err := checkShape(BackendRemote, x); err != nil {
		return 0, err
	}

	body, err := json.Marshal(remoteRequest{Instances: [][]float64{x}})
	if err != nil {
		return 0, &Error{Backend: BackendRemote, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return 0, &Error{Backend: BackendRemote, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, &Error{Backend: BackendRemote, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, &Error{
			Backend: BackendRemote,
			Err:     fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
		}
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, &Error{Backend: BackendRemote, Err: fmt.Errorf("error decoding response: %w", err)}
	}
	if len(out.Predictions) != 1 {
		return 0, &Error{Backend: BackendRemote, Err: fmt.Errorf("expected 1 prediction, got %d", len(out.Predictions))}
	}

	return checkScore(BackendRemote, out.Predictions[0])
}

func (p *RemotePredictor) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
