// Package llm talks to language models through a single forced tool call.
//
// Every call names exactly one tool and expects the model to answer with
// a call to it; the arguments are untrusted JSON that callers parse with
// the Parse* functions, which check required fields explicitly.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNoToolCall is returned when the model answers without calling the tool.
var ErrNoToolCall = errors.New("model did not call the requested tool")

// Role of a conversation message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a tool-call conversation.
//
// User messages carry Content. Assistant messages carry the ToolCall the
// model made. Tool messages carry the result of that call in Content and
// refer to it through ToolCallID and ToolName.
type Message struct {
	Role       Role
	Content    string
	ToolCall   *ToolCall
	ToolCallID string
	ToolName   string
}

// UserMessage builds a user turn.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantToolCall builds the assistant turn that made call.
func AssistantToolCall(call ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCall: &call}
}

// ToolResult builds the tool turn answering call.
func ToolResult(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, ToolName: call.Name}
}

// Tool declares the function the model must call. Parameters is a JSON
// schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is the model's call of a Tool.
type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Request is one forced tool call.
type Request struct {
	System   string
	Messages []Message
	Tool     Tool

	// Temperature overrides the provider's configured temperature.
	Temperature *float32

	// MaxTokens bounds the response; 0 uses the provider default.
	MaxTokens int
}

func (r Request) temperature(fallback float32) float32 {
	if r.Temperature != nil {
		return *r.Temperature
	}
	return fallback
}

// Provider invokes a model.
type Provider interface {
	// Invoke sends req and returns the model's call of req.Tool.
	Invoke(ctx context.Context, req Request) (*ToolCall, error)
	// Model identifies the model for cell metadata.
	Model() string
}
