package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

// Gemini invokes Google Gemini models through the genai SDK.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

// NewGemini creates a Gemini provider. baseURL is only set in tests.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Gemini{
		client:      client,
		model:       cfg.model(),
		temperature: cfg.Temperature,
		logger:      cfg.logger(),
	}, nil
}

// Model implements Provider.
func (g *Gemini) Model() string { return g.model }

// Invoke implements Provider.
func (g *Gemini) Invoke(ctx context.Context, req Request) (*ToolCall, error) {
	contents, err := geminiContents(req.Messages)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.temperature(g.temperature)),
		Tools: []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:                 req.Tool.Name,
				Description:          req.Tool.Description,
				ParametersJsonSchema: req.Tool.Parameters,
			}},
		}},
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{req.Tool.Name},
			},
		},
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	g.logger.Debug("llm call", "provider", ProviderGemini, "model", g.model,
		"tool", req.Tool.Name, "elapsed", time.Since(start))

	for _, fc := range resp.FunctionCalls() {
		if fc == nil || fc.Name != req.Tool.Name {
			continue
		}
		args, err := json.Marshal(fc.Args)
		if err != nil {
			return nil, fmt.Errorf("gemini: encode arguments: %w", err)
		}
		return &ToolCall{ID: fc.ID, Name: fc.Name, Arguments: args}, nil
	}
	return nil, ErrNoToolCall
}

func geminiContents(msgs []Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		case RoleAssistant:
			if m.ToolCall == nil {
				contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
				continue
			}
			var args map[string]any
			if err := json.Unmarshal(m.ToolCall.Arguments, &args); err != nil {
				return nil, fmt.Errorf("gemini: decode prior tool call: %w", err)
			}
			contents = append(contents, &genai.Content{
				Role: genai.RoleModel,
				Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{
					ID:   m.ToolCall.ID,
					Name: m.ToolCall.Name,
					Args: args,
				}}},
			})
		case RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       m.ToolCallID,
					Name:     m.ToolName,
					Response: map[string]any{"output": m.Content},
				}}},
			})
		default:
			return nil, fmt.Errorf("gemini: unsupported message role %q", m.Role)
		}
	}
	return contents, nil
}
