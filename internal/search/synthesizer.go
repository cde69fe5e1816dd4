// Package search composes the embedding gateway, the vector index and the
// generation gateway into retrieval-augmented answers over stored insights.
package search

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ryan258/insight-capsule/internal/domain"
	"github.com/ryan258/insight-capsule/internal/generation"
	"github.com/ryan258/insight-capsule/internal/vectorindex"
)

// Loader resolves insight ids back to full records.
type Loader interface {
	Load(id string) (*domain.Insight, error)
}

// Options tunes retrieval and context building.
type Options struct {
	TopK         int
	ContextRunes int
	PreferLocal  bool
}

// Answer is a synthesized response with the insights it drew on.
type Answer struct {
	Text            string
	CitedInsightIDs []string
}

// Synthesizer answers natural-language queries from the insight library.
type Synthesizer struct {
	embedder  domain.Embedder
	index     *vectorindex.Index
	generator domain.Generator
	loader    Loader
	opts      Options
	logger    *log.Logger
}

// New creates a synthesizer over the given collaborators.
func New(embedder domain.Embedder, index *vectorindex.Index, generator domain.Generator, loader Loader, opts Options, logger *log.Logger) *Synthesizer {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.ContextRunes <= 0 {
		opts.ContextRunes = 8000
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Synthesizer{embedder: embedder, index: index, generator: generator, loader: loader, opts: opts, logger: logger}
}

// Answer embeds the query, retrieves the most similar insights, and asks the
// generation gateway for an answer grounded in them. Returns
// domain.ErrNoResults when nothing is indexed yet.
func (s *Synthesizer) Answer(ctx context.Context, query string) (*Answer, error) {
	if s.index.Count() == 0 {
		return nil, domain.ErrNoResults
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &domain.SearchError{Query: query, Err: err}
	}
	results, err := s.index.Query(vec, s.opts.TopK)
	if err != nil {
		return nil, &domain.SearchError{Query: query, Err: err}
	}
	if len(results) == 0 {
		return nil, domain.ErrNoResults
	}

	// Results arrive most-similar first; the rune budget naturally drops the
	// least-similar tail.
	var parts []string
	var cited []string
	remaining := s.opts.ContextRunes
	for i, r := range results {
		if remaining <= 0 {
			break
		}
		ins, err := s.loader.Load(r.InsightID)
		if err != nil {
			s.logger.Printf("[search] skipping %s: %v", r.InsightID, err)
			continue
		}
		entry := fmt.Sprintf("[Insight %d] %s (%s)\n%s",
			i+1, ins.Title, ins.CreatedAt.Format("2006-01-02"), vectorindex.DocumentText(ins))
		if n := len([]rune(entry)); n > remaining {
			entry = truncateSentences(entry, remaining)
			if entry == "" {
				break
			}
		}
		parts = append(parts, entry)
		cited = append(cited, ins.ID)
		remaining -= len([]rune(entry))
	}
	if len(parts) == 0 {
		return nil, domain.ErrNoResults
	}

	req := generation.SearchAnswerRequest(query, strings.Join(parts, "\n\n"), s.opts.PreferLocal)
	text, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, &domain.SearchError{Query: query, Err: err}
	}
	return &Answer{Text: text, CitedInsightIDs: cited}, nil
}
