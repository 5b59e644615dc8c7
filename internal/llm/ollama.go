package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaURL = "http://localhost:11434"

// Ollama invokes a local Ollama server through its /api/chat endpoint.
//
// Ollama cannot force a tool call; a reply whose content is a JSON object
// is accepted as the tool's arguments.
type Ollama struct {
	baseURL     string
	model       string
	temperature float32
	client      *http.Client
	logger      *slog.Logger
}

// NewOllama creates an Ollama provider.
func NewOllama(cfg Config) *Ollama {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Ollama{
		baseURL:     baseURL,
		model:       cfg.model(),
		temperature: cfg.Temperature,
		client:      newHTTPClient(timeout),
		logger:      cfg.logger(),
	}
}

// Model implements Provider.
func (o *Ollama) Model() string { return o.model }

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaTool struct {
	Type     string         `json:"type"`
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// Invoke implements Provider.
func (o *Ollama) Invoke(ctx context.Context, req Request) (*ToolCall, error) {
	body := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Tools: []ollamaTool{{
			Type: "function",
			Function: ollamaFunction{
				Name:        req.Tool.Name,
				Description: req.Tool.Description,
				Parameters:  req.Tool.Parameters,
			},
		}},
		Options: ollamaOptions{Temperature: req.temperature(o.temperature), NumPredict: req.MaxTokens},
	}
	if req.System != "" {
		body.Messages = append(body.Messages, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, ollamaMessageFrom(m))
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var chat ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if chat.Error != "" {
		return nil, fmt.Errorf("ollama: %s", chat.Error)
	}
	o.logger.Debug("llm call", "provider", ProviderOllama, "model", o.model,
		"tool", req.Tool.Name, "elapsed", time.Since(start))

	for i, tc := range chat.Message.ToolCalls {
		if tc.Function.Name != req.Tool.Name {
			continue
		}
		return &ToolCall{
			ID:        fmt.Sprintf("call_%d", i),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}, nil
	}

	if content := strings.TrimSpace(chat.Message.Content); strings.HasPrefix(content, "{") && json.Valid([]byte(content)) {
		return &ToolCall{ID: "call_0", Name: req.Tool.Name, Arguments: json.RawMessage(content)}, nil
	}
	return nil, ErrNoToolCall
}

func ollamaMessageFrom(m Message) ollamaMessage {
	msg := ollamaMessage{Role: string(m.Role), Content: m.Content}
	switch m.Role {
	case RoleAssistant:
		if m.ToolCall != nil {
			var tc ollamaToolCall
			tc.Function.Name = m.ToolCall.Name
			tc.Function.Arguments = m.ToolCall.Arguments
			msg.ToolCalls = []ollamaToolCall{tc}
		}
	case RoleTool:
		msg.ToolName = m.ToolName
	}
	return msg
}
