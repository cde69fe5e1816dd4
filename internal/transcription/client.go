// Package transcription is the speech-to-text gateway: an OpenAI-compatible
// audio/transcriptions endpoint, pointed at either a local whisper server or
// the hosted API.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ryan258/insight-capsule/internal/domain"
)

// Client uploads finalized audio artifacts for transcription.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// Config configures the transcription client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClient creates a transcription client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Transcribe uploads the audio file and returns its transcript text.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", &domain.TranscriptionError{AudioPath: audioPath, Err: err}
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", c.model); err != nil {
		return "", &domain.TranscriptionError{AudioPath: audioPath, Err: err}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", &domain.TranscriptionError{AudioPath: audioPath, Err: err}
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", &domain.TranscriptionError{AudioPath: audioPath, Err: err}
	}
	if err := mw.Close(); err != nil {
		return "", &domain.TranscriptionError{AudioPath: audioPath, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", &domain.TranscriptionError{AudioPath: audioPath, Err: err}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &domain.TranscriptionError{AudioPath: audioPath, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &domain.TranscriptionError{
			AudioPath: audioPath,
			Err:       fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(b)),
		}
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &domain.TranscriptionError{AudioPath: audioPath, Err: err}
	}
	return strings.TrimSpace(out.Text), nil
}
