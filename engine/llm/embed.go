// Package llm wraps the OpenAI-compatible model service behind stable
// embedding and generation clients. The reference deployment points both at
// DashScope's compatible-mode endpoint; base URL and model IDs are
// configuration.
package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/puxianlab/pxlex/engine/domain"
)

// embeddingsAPI is the subset of the openai client EmbedClient uses.
type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// EmbedClient produces embedding vectors for lexicon entries and questions.
type EmbedClient struct {
	api     embeddingsAPI
	model   openai.EmbeddingModel
	limiter *rate.Limiter
}

// EmbedConfig holds the embedding client settings.
type EmbedConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// RatePerSec caps outgoing requests; 0 disables client-side limiting.
	RatePerSec float64
	Burst      int
}

// NewEmbedClient creates an embedding client against an OpenAI-compatible API.
func NewEmbedClient(cfg EmbedConfig) *EmbedClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newEmbedClient(openai.NewClientWithConfig(clientCfg), cfg)
}

func newEmbedClient(api embeddingsAPI, cfg EmbedConfig) *EmbedClient {
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return &EmbedClient{
		api:     api,
		model:   openai.EmbeddingModel(cfg.Model),
		limiter: limiter,
	}
}

// Embed returns the embedding vector for a single text.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one vector per input text, in input order. Batching is
// a throughput optimization only; order preservation is the contract.
func (c *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("llm: embed rate wait: %w", err)
		}
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          texts,
		Model:          c.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, classify(domain.ServiceEmbedding, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, domain.NewServiceError(domain.ServiceEmbedding, 0,
			fmt.Errorf("llm: got %d embeddings for %d inputs", len(resp.Data), len(texts)))
	}

	// The API may return data out of order; Index restores input order.
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, domain.NewServiceError(domain.ServiceEmbedding, 0,
				fmt.Errorf("llm: embedding index %d out of range", d.Index))
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

// classify maps an openai client error onto the domain taxonomy, extracting
// the HTTP status so callers can decide retry policy. A failure that never
// produced a status at all is transport-level (connection reset, dial
// failure) and treated as transient.
func classify(service string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewServiceError(service, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return domain.NewServiceError(service, reqErr.HTTPStatusCode, err)
	}
	se := domain.NewServiceError(service, 0, err)
	se.Retryable = true
	return se
}
