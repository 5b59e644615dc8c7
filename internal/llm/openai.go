package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI invokes OpenAI chat models, or any server speaking the same API
// when BaseURL is set.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = newHTTPClient(cfg.Timeout)
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.model(),
		temperature: cfg.Temperature,
		logger:      cfg.logger(),
	}, nil
}

// Model implements Provider.
func (o *OpenAI) Model() string { return o.model }

// Invoke implements Provider.
func (o *OpenAI) Invoke(ctx context.Context, req Request) (*ToolCall, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msg, err := openAIMessage(m)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: req.temperature(o.temperature),
		MaxTokens:   req.MaxTokens,
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        req.Tool.Name,
				Description: req.Tool.Description,
				Parameters:  req.Tool.Parameters,
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: req.Tool.Name},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}
	o.logger.Debug("llm call", "provider", ProviderOpenAI, "model", o.model,
		"tool", req.Tool.Name, "elapsed", time.Since(start))

	for _, choice := range resp.Choices {
		for _, tc := range choice.Message.ToolCalls {
			if tc.Function.Name != req.Tool.Name {
				continue
			}
			return &ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: json.RawMessage(tc.Function.Arguments)}, nil
		}
	}
	return nil, ErrNoToolCall
}

func openAIMessage(m Message) (openai.ChatCompletionMessage, error) {
	switch m.Role {
	case RoleUser:
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content}, nil
	case RoleAssistant:
		msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
		if m.ToolCall != nil {
			msg.ToolCalls = []openai.ToolCall{{
				ID:   m.ToolCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      m.ToolCall.Name,
					Arguments: string(m.ToolCall.Arguments),
				},
			}}
		}
		return msg, nil
	case RoleTool:
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    m.Content,
			Name:       m.ToolName,
			ToolCallID: m.ToolCallID,
		}, nil
	}
	return openai.ChatCompletionMessage{}, fmt.Errorf("openai: unsupported message role %q", m.Role)
}
