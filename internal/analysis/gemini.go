package analysis

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

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.0-flash-exp"
)

// RateLimitError is returned when the analysis service throttles the call.
// It is the only retryable analysis error.
type RateLimitError struct {
	StatusCode int
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("analysis service rate limited (status %d): %s", e.StatusCode, e.Message)
}

// GenerativeClient is the external generative-analysis capability:
// text in, JSON text out. The production implementation is GeminiClient.
type GenerativeClient interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig configures the Gemini HTTP transport.
type GeminiConfig struct {
	// APIKey authenticates requests to the generative language API.
	APIKey string

	// Model names the generative model. Default: gemini-2.0-flash-exp
	Model string

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// Timeout bounds a single generateContent call. Default: 60s
	Timeout time.Duration
}

// Validate checks that the configuration is valid.
func (c *GeminiConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *GeminiConfig) ApplyDefaults() {
	if c.Model == "" {
		c.Model = defaultGeminiModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultGeminiBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
}

// GeminiClient calls the generative language API's generateContent endpoint.
// The request pins a JSON response MIME type and the per-user analysis
// response schema so the model is constrained to the expected shape.
type GeminiClient struct {
	cfg    GeminiConfig
	client *http.Client
}

// NewGeminiClient creates a Gemini-backed generative client.
func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gemini config: %w", err)
	}

	return &GeminiClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// generateRequest is the generateContent wire request.
type generateRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMIMEType string          `json:"responseMimeType"`
	ResponseSchema   json.RawMessage `json:"responseSchema"`
}

// generateResponse is the subset of the generateContent response we read.
type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// responseSchema constrains the model output to the per-user analysis shape.
var responseSchema = json.RawMessage(`{
	"type": "ARRAY",
	"items": {
		"type": "OBJECT",
		"properties": {
			"userID": {"type": "STRING", "nullable": false},
			"mean_lastActiveAt": {"type": "NUMBER", "nullable": false},
			"std_lastActiveAt": {"type": "NUMBER", "nullable": false},
			"z_scores": {
				"type": "ARRAY",
				"items": {
					"type": "OBJECT",
					"properties": {
						"lastActiveAt": {"type": "NUMBER", "nullable": false},
						"z_score": {"type": "NUMBER", "nullable": false}
					},
					"required": ["lastActiveAt", "z_score"]
				},
				"nullable": false
			},
			"anomaly_status": {"type": "STRING", "nullable": false}
		},
		"required": ["userID", "mean_lastActiveAt", "std_lastActiveAt", "z_scores", "anomaly_status"]
	}
}`)

// GenerateContent performs one blocking generateContent call. HTTP 429
// maps to *RateLimitError; every other failure is terminal.
func (g *GeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   responseSchema,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.cfg.BaseURL, g.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read generate response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &RateLimitError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate request returned status %d: %s", resp.StatusCode, body)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generate response contained no candidates")
	}

	return decoded.Candidates[0].Content.Parts[0].Text, nil
}
