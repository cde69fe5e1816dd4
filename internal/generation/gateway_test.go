package generation

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/ryan258/insight-capsule/internal/domain"
)

// fakeBackend counts attempts and serves canned results.
type fakeBackend struct {
	name      string
	available bool
	text      string
	err       error
	calls     int
}

func (f *fakeBackend) Name() string                       { return f.name }
func (f *fakeBackend) Available(ctx context.Context) bool { return f.available }
func (f *fakeBackend) Complete(ctx context.Context, prompt string, params Params) (string, error) {
	f.calls++
	return f.text, f.err
}

func newTestGateway(local, remote Backend, attempts int) *Gateway {
	g := NewGateway(local, remote, Config{LocalAttempts: attempts}, log.New(io.Discard, "", 0))
	g.sleep = func(time.Duration) {}
	return g
}

func TestFallbackAfterExactLocalAttempts(t *testing.T) {
	local := &fakeBackend{name: "local", available: true, err: errors.New("down")}
	remote := &fakeBackend{name: "remote", available: true, text: "OK"}
	g := newTestGateway(local, remote, 3)

	got, err := g.Generate(context.Background(), domain.GenerationRequest{
		Role: domain.RoleCapsule, Prompt: "p", PreferLocal: true,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "OK" {
		t.Fatalf("got %q, want OK", got)
	}
	if local.calls != 3 {
		t.Fatalf("local attempts = %d, want exactly 3", local.calls)
	}
	if remote.calls != 1 {
		t.Fatalf("remote attempts = %d, want 1", remote.calls)
	}
}

func TestLocalUnavailableSkipsStraightToRemote(t *testing.T) {
	local := &fakeBackend{name: "local", available: false, text: "never"}
	remote := &fakeBackend{name: "remote", available: true, text: "OK"}
	g := newTestGateway(local, remote, 3)

	got, err := g.Generate(context.Background(), domain.GenerationRequest{Prompt: "p", PreferLocal: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "OK" {
		t.Fatalf("got %q, want OK", got)
	}
	if local.calls != 0 {
		t.Fatalf("unavailable local was attempted %d times", local.calls)
	}
}

func TestExhaustionReportsTypedError(t *testing.T) {
	local := &fakeBackend{name: "local", available: true, err: errors.New("local down")}
	remote := &fakeBackend{name: "remote", available: true, err: errors.New("remote down")}
	g := newTestGateway(local, remote, 2)

	got, err := g.Generate(context.Background(), domain.GenerationRequest{Prompt: "p", PreferLocal: true})
	if got != "" {
		t.Fatalf("partial text returned on exhaustion: %q", got)
	}
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T, want *domain.GenerationError", err)
	}
	if !genErr.Exhausted {
		t.Fatal("Exhausted = false, want true")
	}
	if genErr.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (2 local + 1 remote)", genErr.Attempts)
	}
}

func TestNoBackendsConfigured(t *testing.T) {
	g := newTestGateway(nil, nil, 3)
	_, err := g.Generate(context.Background(), domain.GenerationRequest{Prompt: "p", PreferLocal: true})
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) || !genErr.Exhausted {
		t.Fatalf("want exhausted GenerationError, got %v", err)
	}
}

func TestPreferRemoteTriesRemoteFirst(t *testing.T) {
	local := &fakeBackend{name: "local", available: true, text: "local"}
	remote := &fakeBackend{name: "remote", available: true, text: "remote"}
	g := newTestGateway(local, remote, 3)

	got, err := g.Generate(context.Background(), domain.GenerationRequest{Prompt: "p", PreferLocal: false})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "remote" {
		t.Fatalf("got %q, want remote result first", got)
	}
	if local.calls != 0 {
		t.Fatalf("local called %d times before remote succeeded", local.calls)
	}
}

func TestEmptyResponseIsRetried(t *testing.T) {
	local := &fakeBackend{name: "local", available: true, text: "   "}
	remote := &fakeBackend{name: "remote", available: true, text: "OK"}
	g := newTestGateway(local, remote, 2)

	got, err := g.Generate(context.Background(), domain.GenerationRequest{Prompt: "p", PreferLocal: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got != "OK" {
		t.Fatalf("got %q, want OK", got)
	}
	if local.calls != 2 {
		t.Fatalf("local attempts = %d, want 2", local.calls)
	}
}

func TestRetryDelayGrowsAndCaps(t *testing.T) {
	g := NewGateway(nil, nil, Config{
		BackoffBase: 200 * time.Millisecond,
		BackoffMax:  time.Second,
	}, log.New(io.Discard, "", 0))

	if d := g.retryDelay(0); d != 200*time.Millisecond {
		t.Fatalf("delay(0) = %v", d)
	}
	if d := g.retryDelay(1); d != 400*time.Millisecond {
		t.Fatalf("delay(1) = %v", d)
	}
	if d := g.retryDelay(10); d != time.Second {
		t.Fatalf("delay(10) = %v, want capped at 1s", d)
	}
}
