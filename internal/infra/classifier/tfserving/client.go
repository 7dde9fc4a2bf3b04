// Package tfserving talks to the REST API of TensorFlow Serving, which hosts
// the trained Keras models exported from the model base directory.
package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bryanwahyu/healthwave/internal/infra/classifier"
)

const stateAvailable = "AVAILABLE"

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Load returns the named model once the server reports a version of it AVAILABLE.
func (c *Client) Load(ctx context.Context, name string) (classifier.Predictor, error) {
	m := &Model{client: c, name: name}
	if err := m.Ready(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Model is one served model.
type Model struct {
	client *Client
	name   string
}

type statusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

// Ready checks GET /v1/models/{name}.
func (m *Model) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.client.baseURL+"/v1/models/"+url.PathEscape(m.name), nil)
	if err != nil {
		return err
	}
	var st statusResponse
	if err := m.client.do(req, &st); err != nil {
		return err
	}
	for _, v := range st.ModelVersionStatus {
		if v.State == stateAvailable {
			return nil
		}
	}
	return fmt.Errorf("model %q has no AVAILABLE version", m.name)
}

type predictRequest struct {
	Instances []classifier.Tensor `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}

// Predict posts the batch to /v1/models/{name}:predict.
func (m *Model) Predict(ctx context.Context, batch []classifier.Tensor) ([][]float64, error) {
	body, err := json.Marshal(predictRequest{Instances: batch})
	if err != nil {
		return nil, err
	}
	endpoint := m.client.baseURL + "/v1/models/" + url.PathEscape(m.name) + ":predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out predictResponse
	if err := m.client.do(req, &out); err != nil {
		return nil, err
	}
	return out.Predictions, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tf serving %s %s: status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tf serving response: %w", err)
	}
	return nil
}
