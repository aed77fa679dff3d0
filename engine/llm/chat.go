package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/puxianlab/pxlex/engine/domain"
)

var errNoChoices = errors.New("llm: completion returned no choices")

// chatAPI is the subset of the openai client ChatClient uses.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatClient is a thin pass-through to the chat-completion service.
type ChatClient struct {
	api         chatAPI
	model       string
	temperature float32
}

// ChatConfig holds the generation client settings. Temperature is a fixed
// configuration value, not a per-call parameter.
type ChatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

// NewChatClient creates a generation client against an OpenAI-compatible API.
func NewChatClient(cfg ChatConfig) *ChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &ChatClient{
		api:         openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Generate runs the assembled prompt through the model and returns the
// answer text. Failures surface as domain.ServiceError; an empty answer is
// never silently substituted.
func (c *ChatClient) Generate(ctx context.Context, prompt []domain.Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(prompt))
	for i, m := range prompt {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    msgs,
	})
	if err != nil {
		return "", classify(domain.ServiceGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewServiceError(domain.ServiceGeneration, 0, errNoChoices)
	}
	return resp.Choices[0].Message.Content, nil
}
