// Package irrigation decides whether to irrigate from the latest soil state,
// local weather and a pre-trained classifier.
package irrigation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Features is the model input vector. Time of day is encoded as minutes since
// midnight; the nutrient flags stay 0/1 as the model was trained on.
type Features struct {
	MinuteOfDay float64 `json:"minute_of_day"`
	Phosphorus  float64 `json:"phosphorus"`
	Potassium   float64 `json:"potassium"`
	PH          float64 `json:"ph"`
	Humidity    float64 `json:"humidity"`
}

// Predictor is the trained-model collaborator. The deployment serves the
// serialized scaler + classifier + label-encoder triple behind this contract;
// labels come back already decoded ("Sim" / "Nao").
type Predictor interface {
	Predict(ctx context.Context, f Features) (string, error)
}

// HTTPPredictor calls the model service over HTTP.
type HTTPPredictor struct {
	url        string
	httpClient *http.Client
}

func NewHTTPPredictor(url string) *HTTPPredictor {
	return &HTTPPredictor{
		url: strings.TrimRight(strings.TrimSpace(url), "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *HTTPPredictor) Predict(ctx context.Context, f Features) (string, error) {
	if p.url == "" {
		return "", fmt.Errorf("predictor url not configured")
	}

	body, _ := json.Marshal(f)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/predict", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return "", fmt.Errorf("predictor %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var result struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Label, nil
}
