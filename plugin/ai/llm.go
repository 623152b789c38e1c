// Package ai defines the LLM service contract used by the agent, plus the
// OpenAI-compatible implementation.
package ai

import "context"

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant, tool
	Content string

	// ToolCalls carries the assistant's tool requests when the message is
	// replayed into the conversation history.
	ToolCalls []ToolCall
	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string
}

// ToolDescriptor describes one callable tool to the LLM. Parameters is the
// JSON Schema of the tool input, serialized.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  string
}

// FunctionCall is the tool invocation requested by the model.
type FunctionCall struct {
	Name      string
	Arguments string
}

// ToolCall is one entry of an assistant tool-call turn.
type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

// ChatResponse is the model's reply to one chat turn. A reply with no tool
// calls is a final answer.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// LLMService is the LLM service interface.
type LLMService interface {
	// Chat performs synchronous chat without tools.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatWithTools performs one chat turn offering the given tools.
	ChatWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ChatResponse, error)
}

// SystemPrompt creates a system message.
func SystemPrompt(content string) Message {
	return Message{Role: "system", Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}
