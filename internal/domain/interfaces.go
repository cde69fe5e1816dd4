package domain

import "context"

// Transcriber converts a finalized audio artifact into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Embedder converts free text into a fixed-length numeric vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Generator produces text for a request, applying whatever retry and
// fallback policy it carries. Callers never retry on top of it.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}
