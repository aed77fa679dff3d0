// Package rag orchestrates the query pipeline: embed the question, search
// the lexicon collection for similar entries, assemble the grounded prompt,
// and generate the answer. The three network hops are strictly ordered
// within one question; a failure on any hop fails the whole question.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/puxianlab/pxlex/engine/domain"
	"github.com/puxianlab/pxlex/engine/semantic"
	"github.com/puxianlab/pxlex/pkg/metrics"
)

// Embedder produces the question embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher abstracts vector search over the lexicon collection.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, limit int, params semantic.SearchParams) ([]domain.SearchResult, error)
}

// Generator abstracts the chat-completion service.
type Generator interface {
	Generate(ctx context.Context, prompt []domain.Message) (string, error)
}

// Options configures the query pipeline.
type Options struct {
	// Limit bounds retrieved entries. Kept small: results are consumed
	// verbatim inside the generation prompt.
	Limit  int
	Params semantic.SearchParams

	EmbedTimeout    time.Duration
	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
}

// DefaultOptions returns the standard retrieval parameters.
func DefaultOptions() Options {
	return Options{
		Limit:           3,
		Params:          semantic.SearchParams{HnswEf: 128, Exact: false},
		EmbedTimeout:    10 * time.Second,
		SearchTimeout:   5 * time.Second,
		GenerateTimeout: 60 * time.Second,
	}
}

// Service is the query orchestration service.
type Service struct {
	embed    Embedder
	search   Searcher
	generate Generator
	opts     Options
	logger   *slog.Logger
}

// New creates a Service.
func New(embed Embedder, search Searcher, generate Generator, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultOptions().Limit
	}
	return &Service{embed: embed, search: search, generate: generate, opts: opts, logger: logger}
}

// Retrieve embeds the raw question text and returns up to limit entries in
// descending similarity order. No re-ranking or filtering happens here; the
// generator is asked to answer based on, not only from, the grounding.
func (s *Service) Retrieve(ctx context.Context, question string, limit int) ([]domain.SearchResult, error) {
	embedCtx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
	defer cancel()
	vec, err := s.embed.Embed(embedCtx, question)
	if err != nil {
		return nil, fmt.Errorf("rag: embed question: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	start := time.Now()
	results, err := s.search.Search(searchCtx, vec, limit, s.opts.Params)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("rag: search: %w", err)
	}
	return results, nil
}

// Answer runs the full query pipeline for one question. It either fully
// succeeds or fails; no partial answer is ever returned as success.
func (s *Service) Answer(ctx context.Context, question string) (string, error) {
	s.logger.Info("rag query start", "question_len", len(question))

	results, err := s.Retrieve(ctx, question, s.opts.Limit)
	if err != nil {
		metrics.Queries.WithLabelValues("error").Inc()
		return "", err
	}
	s.logger.Info("rag retrieval done", "results", len(results))

	prompt := Assemble(question, results)

	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()
	start := time.Now()
	answer, err := s.generate.Generate(genCtx, prompt)
	metrics.GenerateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Queries.WithLabelValues("error").Inc()
		return "", fmt.Errorf("rag: generate: %w", err)
	}

	metrics.Queries.WithLabelValues("ok").Inc()
	return answer, nil
}
