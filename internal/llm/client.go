// Package llm implements the text-understanding collaborator boundary:
// an OpenAI-compatible chat completions client plus defensive helpers
// for extracting structured output. Every caller is expected to carry a
// total fallback value; failures here must never block diary capture.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one entry in a role-tagged prompt.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the collaborator interface. Complete returns a free-form
// text completion; CompleteJSON requests schema-constrained output where
// the backing API supports it and returns the raw JSON text.
type Client interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
	CompleteJSON(ctx context.Context, msgs []Message, schemaName string, schema map[string]any) (string, error)
}

// Config holds the settings for an HTTPClient.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// HTTPClient talks to an OpenAI-compatible chat completions endpoint.
type HTTPClient struct {
	http     *http.Client
	endpoint string
	apiKey   string
	model    string
}

// Verify HTTPClient satisfies Client at compile time.
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a chat completions client.
func NewHTTPClient(cfg Config) *HTTPClient {
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		http:     &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
	}
}

type chatRequest struct {
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
	Temperature    float64   `json:"temperature"`
	ResponseFormat any       `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete returns the first choice's text.
func (c *HTTPClient) Complete(ctx context.Context, msgs []Message) (string, error) {
	return c.complete(ctx, chatRequest{Model: c.model, Messages: msgs})
}

// CompleteJSON requests structured output constrained by the given JSON
// schema. The returned string is the raw JSON document; callers parse it
// defensively and fall back on any mismatch.
func (c *HTTPClient) CompleteJSON(ctx context.Context, msgs []Message, schemaName string, schema map[string]any) (string, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: msgs,
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schemaName,
				"strict": true,
				"schema": schema,
			},
		},
	}
	return c.complete(ctx, req)
}

func (c *HTTPClient) complete(ctx context.Context, req chatRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("llm: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: request: %w", err)
	}
	defer resp.Body.Close()

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := resp.Status
		if body.Error != nil && body.Error.Message != "" {
			msg = body.Error.Message
		}
		return "", fmt.Errorf("llm: %s", msg)
	}
	if len(body.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return body.Choices[0].Message.Content, nil
}

// ExtractJSON returns the first balanced top-level JSON object embedded
// in s. Models sometimes wrap structured output in code fences or prose;
// this strips that defensively. ok is false when no object is found.
func ExtractJSON(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
