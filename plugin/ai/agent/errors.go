package agent

import (
	"fmt"

	"github.com/pkg/errors"
)

// Causes of agent failure. Only orchestration-level failures propagate out
// of the agent; tool-level errors are fed back into the conversation.
var (
	ErrMissingAPIKey       = errors.New("missing API key")
	ErrLLMTransport        = errors.New("llm transport failure")
	ErrConversationTimeout = errors.New("conversation timeout")
	ErrInvalidResponse     = errors.New("invalid agent response")
	ErrIterationBudget     = errors.New("iteration budget exceeded")
)

// AgentError wraps any agent failure with one of the cause sentinels, so
// callers can branch with errors.Is while showing a readable message.
type AgentError struct {
	msg   string
	cause error
}

func (e *AgentError) Error() string { return e.msg }

func (e *AgentError) Unwrap() error { return e.cause }

func newAgentError(cause error, format string, args ...any) *AgentError {
	return &AgentError{msg: fmt.Sprintf(format, args...), cause: cause}
}

// NewMissingAPIKeyError reports that no LLM credential was configured.
// env names the environment variable the caller looked at.
func NewMissingAPIKeyError(env string) *AgentError {
	return newAgentError(ErrMissingAPIKey,
		"%s is not set. Export it or add api_key to the config file.", env)
}
