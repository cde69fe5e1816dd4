package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OllamaBackend generates text against a local Ollama server.
type OllamaBackend struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaBackend creates a backend for the given Ollama base URL and model.
func NewOllamaBackend(baseURL, model string, timeout time.Duration) *OllamaBackend {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaBackend{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (b *OllamaBackend) Name() string { return "ollama" }

// Available checks the tags endpoint and that the configured model is pulled.
func (b *OllamaBackend) Available(ctx context.Context) bool {
	probe, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(probe, http.MethodGet, b.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var out struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false
	}
	for _, m := range out.Models {
		if m.Name == b.model || m.Model == b.model {
			return true
		}
	}
	return false
}

func (b *OllamaBackend) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	text, status, err := b.post(ctx, "/api/generate", map[string]any{
		"model":   b.model,
		"prompt":  prompt,
		"stream":  false,
		"options": map[string]any{"temperature": params.Temperature},
	})
	if status == http.StatusNotFound {
		// Older servers only expose the chat endpoint.
		text, _, err = b.post(ctx, "/api/chat", map[string]any{
			"model": b.model,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
			"stream":  false,
			"options": map[string]any{"temperature": params.Temperature},
		})
	}
	return text, err
}

func (b *OllamaBackend) post(ctx context.Context, path string, payload map[string]any) (string, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", resp.StatusCode, fmt.Errorf("ollama %s: %s", path, resp.Status)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", resp.StatusCode, fmt.Errorf("ollama %s: %s: %s", path, resp.Status, bytes.TrimSpace(body))
	}
	var out struct {
		Response string `json:"response"`
		Message  struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", resp.StatusCode, err
	}
	if out.Response != "" {
		return out.Response, resp.StatusCode, nil
	}
	return out.Message.Content, resp.StatusCode, nil
}
