// Package visiond is a client for the local vision server, a small companion
// daemon that hosts YOLO face/object detection and a Moondream vision model
// behind a plain HTTP API. It is the offline fallback when no cloud provider
// is reachable.
package visiond

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "http://localhost:8000"

// Client talks to the local vision server.
type Client struct {
	parsedURL *url.URL
	client    *http.Client
}

// New creates a vision server client for the given base URL.
func New(baseURL string) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid vision server URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid vision server URL scheme %q: must be http or https", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("invalid vision server URL: missing host")
	}
	return &Client{
		parsedURL: parsed,
		client:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Health reports the status of the vision server and its models.
type Health struct {
	Status           string `json:"status"`
	YoloModel        string `json:"yolo_model"`
	FaceModel        string `json:"face_model"`
	OllamaConnection string `json:"ollama_connection"`
}

// Face is a face detection with bbox [x, y, width, height] in pixels.
type Face struct {
	BBox       [4]int  `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// FacesResponse is the result of a face detection call.
type FacesResponse struct {
	Faces []Face `json:"faces"`
	Count int    `json:"count"`
}

// Object is an object detection with class label.
type Object struct {
	Label      string  `json:"label"`
	BBox       [4]int  `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// ObjectsResponse is the result of an object detection call.
type ObjectsResponse struct {
	Objects []Object `json:"objects"`
	Count   int      `json:"count"`
}

// QueryResponse is the combined detection + analysis pipeline result.
type QueryResponse struct {
	Detections []string `json:"detections"`
	Analysis   string   `json:"analysis"`
}

type imageRequest struct {
	Image               string  `json:"image"`
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`
}

type analysisRequest struct {
	Image    string `json:"image"`
	Question string `json:"question"`
}

type analysisResponse struct {
	Answer string `json:"answer"`
}

// doPostJSON performs a POST request with a JSON body and unmarshals the
// JSON response into the result type.
func doPostJSON[T any](ctx context.Context, c *Client, endpoint string, requestBody any) (*T, error) {
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("could not marshal request body: %w", err)
	}

	reqURL := c.parsedURL.JoinPath(endpoint).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}

	return &result, nil
}

// Health checks the vision server status.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	reqURL := c.parsedURL.JoinPath("health").String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var health Health
	if err := json.Unmarshal(body, &health); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}
	return &health, nil
}

// DetectFaces runs YOLO face detection on the frame.
func (c *Client) DetectFaces(ctx context.Context, frame []byte, confidenceThreshold float64) (*FacesResponse, error) {
	return doPostJSON[FacesResponse](ctx, c, "detect/faces", imageRequest{
		Image:               base64.StdEncoding.EncodeToString(frame),
		ConfidenceThreshold: confidenceThreshold,
	})
}

// DetectObjects runs YOLO object detection on the frame.
func (c *Client) DetectObjects(ctx context.Context, frame []byte, confidenceThreshold float64) (*ObjectsResponse, error) {
	return doPostJSON[ObjectsResponse](ctx, c, "detect/objects", imageRequest{
		Image:               base64.StdEncoding.EncodeToString(frame),
		ConfidenceThreshold: confidenceThreshold,
	})
}

// Analyze asks the Moondream model a free-form question about the frame.
func (c *Client) Analyze(ctx context.Context, frame []byte, question string) (string, error) {
	resp, err := doPostJSON[analysisResponse](ctx, c, "analyze", analysisRequest{
		Image:    base64.StdEncoding.EncodeToString(frame),
		Question: question,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Answer), nil
}

// Query runs the combined object detection + Moondream analysis pipeline.
func (c *Client) Query(ctx context.Context, frame []byte, question string) (*QueryResponse, error) {
	return doPostJSON[QueryResponse](ctx, c, "vision/query", analysisRequest{
		Image:    base64.StdEncoding.EncodeToString(frame),
		Question: question,
	})
}
