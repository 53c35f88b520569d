// Package transcribe implements the speech-to-text collaborator
// boundary. It is opaque upstream of the diary pipeline: audio in,
// plain text or a typed error out.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Transcriber converts an audio stream into plain text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename, language string) (string, error)
}

// Config holds the settings for an HTTPClient.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// HTTPClient talks to an OpenAI-compatible audio transcriptions endpoint.
type HTTPClient struct {
	http     *http.Client
	endpoint string
	apiKey   string
	model    string
}

// Verify HTTPClient satisfies Transcriber at compile time.
var _ Transcriber = (*HTTPClient)(nil)

// NewHTTPClient creates a transcription client.
func NewHTTPClient(cfg Config) *HTTPClient {
	endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPClient{
		http:     &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		model:    model,
	}
}

type transcriptionResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe uploads the audio as multipart form data and returns the
// transcript text.
func (c *HTTPClient) Transcribe(ctx context.Context, audio io.Reader, filename, language string) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, audio); err != nil {
			pw.CloseWithError(err)
			return
		}
		if err := mw.WriteField("model", c.model); err != nil {
			pw.CloseWithError(err)
			return
		}
		if language != "" {
			if err := mw.WriteField("language", language); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/audio/transcriptions", pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcribe: request: %w", err)
	}
	defer resp.Body.Close()

	var body transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("transcribe: decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := resp.Status
		if body.Error != nil && body.Error.Message != "" {
			msg = body.Error.Message
		}
		return "", fmt.Errorf("transcribe: %s", msg)
	}
	if strings.TrimSpace(body.Text) == "" {
		return "", fmt.Errorf("transcribe: empty transcript")
	}
	return body.Text, nil
}
