package ai

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Config holds the LLM provider configuration.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

type openAIService struct {
	client *openai.Client
	config *Config
}

// NewLLMService creates an LLMService backed by an OpenAI-compatible API.
func NewLLMService(cfg *Config) (LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &openAIService{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

func (s *openAIService) Chat(ctx context.Context, messages []Message) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     s.config.Model,
		Messages:  convertMessages(messages),
		MaxTokens: s.config.MaxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty chat response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *openAIService) ChatWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ChatResponse, error) {
	req := openai.ChatCompletionRequest{
		Model:     s.config.Model,
		Messages:  convertMessages(messages),
		MaxTokens: s.config.MaxTokens,
		Tools:     convertTools(tools),
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion with tools")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty chat response")
	}

	choice := resp.Choices[0].Message
	out := &ChatResponse{Content: choice.Content}
	for _, tc := range choice.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: string(tc.Type),
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolType(tc.Type),
				Function: openai.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out[i] = msg
	}
	return out
}

func convertTools(tools []ToolDescriptor) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  json.RawMessage(t.Parameters),
			},
		}
	}
	return out
}
