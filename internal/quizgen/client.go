package quizgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrDisabled is returned when no generation endpoint is configured.
var ErrDisabled = errors.New("quiz generation disabled")

// Request describes the quiz to generate.
type Request struct {
	Category   string `json:"category"`
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
}

// Generator produces quiz payloads from the external text-generation
// service. The payload is an opaque snapshot; this package never inspects
// its structure.
type Generator interface {
	Generate(ctx context.Context, req Request) (json.RawMessage, error)
}

// Client calls the text-generation service over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient constructs a Client; an empty base URL disables generation.
func NewClient(baseURL, apiKey string) Generator {
	if baseURL == "" {
		return disabledGenerator{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Generate requests a quiz and returns the raw payload untouched.
func (c *Client) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.Count <= 0 {
		req.Count = 15
	}
	if req.Difficulty == "" {
		req.Difficulty = "medium"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/quiz", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quiz generation returned status %d", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if !json.Valid(payload) {
		return nil, errors.New("quiz generation returned invalid json")
	}
	return json.RawMessage(payload), nil
}

type disabledGenerator struct{}

func (disabledGenerator) Generate(ctx context.Context, req Request) (json.RawMessage, error) {
	return nil, ErrDisabled
}
