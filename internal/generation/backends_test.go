package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaAvailableChecksModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"models": [{"name": "llama3.2", "model": "llama3.2:latest"}]}`))
	}))
	defer srv.Close()

	if b := NewOllamaBackend(srv.URL, "llama3.2", 0); !b.Available(context.Background()) {
		t.Fatal("pulled model reported unavailable")
	}
	if b := NewOllamaBackend(srv.URL, "mistral", 0); b.Available(context.Background()) {
		t.Fatal("missing model reported available")
	}
}

func TestOllamaAvailableServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()
	b := NewOllamaBackend(srv.URL, "llama3.2", 0)
	if b.Available(context.Background()) {
		t.Fatal("unreachable server reported available")
	}
}

func TestOllamaCompleteGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload["model"] != "llama3.2" || payload["prompt"] != "say hi" {
			t.Errorf("payload = %v", payload)
		}
		if payload["stream"] != false {
			t.Error("streaming not disabled")
		}
		w.Write([]byte(`{"response": "hi there"}`))
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "llama3.2", 0)
	got, err := b.Complete(context.Background(), "say hi", Params{Temperature: 0.7})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "hi there" {
		t.Fatalf("got %q", got)
	}
}

func TestOllamaCompleteFallsBackToChat(t *testing.T) {
	var sawChat bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			http.NotFound(w, r)
		case "/api/chat":
			sawChat = true
			var payload struct {
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(payload.Messages) != 1 || payload.Messages[0].Role != "user" {
				t.Errorf("messages = %v", payload.Messages)
			}
			w.Write([]byte(`{"message": {"content": "from chat"}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	b := NewOllamaBackend(srv.URL, "llama3.2", 0)
	got, err := b.Complete(context.Background(), "say hi", Params{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !sawChat {
		t.Fatal("chat endpoint never tried")
	}
	if got != "from chat" {
		t.Fatalf("got %q", got)
	}
}

func TestOpenAIAvailableRequiresKey(t *testing.T) {
	if NewOpenAIBackend("", "", "gpt-4o-mini", 0).Available(context.Background()) {
		t.Fatal("keyless backend reported available")
	}
	if !NewOpenAIBackend("", "sk-test", "gpt-4o-mini", 0).Available(context.Background()) {
		t.Fatal("configured backend reported unavailable")
	}
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth = %q", got)
		}
		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if payload.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", payload.Model)
		}
		if len(payload.Messages) != 2 || payload.Messages[0].Role != "system" {
			t.Errorf("messages = %v", payload.Messages)
		}
		w.Write([]byte(`{"choices": [{"message": {"content": " answer text "}}]}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(srv.URL, "sk-test", "gpt-4o-mini", 0)
	got, err := b.Complete(context.Background(), "question", Params{Temperature: 0.2})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != "answer text" {
		t.Fatalf("got %q", got)
	}
}

func TestOpenAICompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(srv.URL, "sk-test", "gpt-4o-mini", 0)
	if _, err := b.Complete(context.Background(), "question", Params{}); err == nil {
		t.Fatal("empty choices accepted")
	}
}
