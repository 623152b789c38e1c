package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/eventlens/internal/profile"
	"github.com/hrygo/eventlens/plugin/ai"
	"github.com/hrygo/eventlens/queryengine"
)

// Config holds the orchestration knobs for one Agent.
type Config struct {
	// MaxIterations bounds the tool-calling loop.
	MaxIterations int
	// LLMTimeout bounds each LLM round trip. Exceeding it is fatal for
	// the whole conversation.
	LLMTimeout time.Duration
	// ToolTimeout bounds each tool invocation. Exceeding it only replaces
	// that invocation's result with an error payload.
	ToolTimeout time.Duration
	// Debug logs the full tool traffic.
	Debug bool
	// Location is the reference timezone quoted to the model.
	Location *time.Location
	// Now is the clock used for the system prompt, injectable for tests.
	Now func() time.Time
}

// Agent runs a bounded tool-calling conversation against the LLM. It holds
// no conversation state between invocations.
type Agent struct {
	llm    ai.LLMService
	store  EventStore
	pool   *Pool
	config Config
}

// New creates an Agent. A nil pool means unbounded tool dispatch; callers
// normally pass NewPool with the parallel-tools limit.
func New(llm ai.LLMService, store EventStore, pool *Pool, config Config) *Agent {
	if config.MaxIterations <= 0 {
		config.MaxIterations = profile.DefaultAgentMaxIterations
	}
	if config.LLMTimeout <= 0 {
		config.LLMTimeout = profile.DefaultAgentLLMTimeout
	}
	if config.ToolTimeout <= 0 {
		config.ToolTimeout = profile.DefaultAgentToolTimeout
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Agent{llm: llm, store: store, pool: pool, config: config}
}

// Query runs the conversation to completion and returns the final result.
func (a *Agent) Query(ctx context.Context, text string, params queryengine.Params) (AgentResult, error) {
	var final AgentResult
	for output, err := range a.QueryIter(ctx, text, params) {
		if err != nil {
			return nil, err
		}
		if f, ok := output.(FinalResult); ok {
			final = f.Result
		}
	}
	if final == nil {
		return nil, newAgentError(ErrInvalidResponse, "Agent produced no final result")
	}
	return final, nil
}

// QueryIter runs the conversation and yields progress outputs followed by
// exactly one FinalResult. The sequence is finite and not restartable:
// each call opens a fresh conversation.
func (a *Agent) QueryIter(ctx context.Context, text string, params queryengine.Params) iter.Seq2[Output, error] {
	return func(yield func(Output, error) bool) {
		log := slog.With("session", shortuuid.New())

		messages := []ai.Message{
			ai.SystemPrompt(a.systemPrompt()),
			ai.UserMessage(buildUserMessage(text, params)),
		}
		tools := []ai.ToolDescriptor{queryEventsTool()}

		for iteration := 0; iteration < a.config.MaxIterations; iteration++ {
			resp, err := a.chat(ctx, messages, tools)
			if err != nil {
				yield(nil, err)
				return
			}

			if len(resp.ToolCalls) == 0 {
				result, err := parseResponse(resp.Content)
				if err != nil {
					yield(nil, err)
					return
				}
				yield(FinalResult{Result: result}, nil)
				return
			}

			if resp.Content != "" {
				if !yield(TextOutput{Text: resp.Content}, nil) {
					return
				}
			}

			results := a.runTools(ctx, resp.ToolCalls, log)
			if !yield(ToolFetchOutput{Count: len(resp.ToolCalls)}, nil) {
				return
			}

			messages = append(messages, ai.Message{
				Role:      "assistant",
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})
			messages = append(messages, results...)
		}

		yield(nil, newAgentError(ErrIterationBudget,
			"Agent exceeded maximum iterations (%d)", a.config.MaxIterations))
	}
}

// chat performs one LLM round trip under the conversation timeout.
func (a *Agent) chat(ctx context.Context, messages []ai.Message, tools []ai.ToolDescriptor) (*ai.ChatResponse, error) {
	llmCtx, cancel := context.WithTimeout(ctx, a.config.LLMTimeout)
	defer cancel()

	resp, err := a.llm.ChatWithTools(llmCtx, messages, tools)
	if err != nil {
		if llmCtx.Err() == context.DeadlineExceeded {
			return nil, newAgentError(ErrConversationTimeout,
				"Agent conversation timed out after %s", a.config.LLMTimeout)
		}
		return nil, newAgentError(ErrLLMTransport, "LLM API error: %v", err)
	}
	return resp, nil
}

// runTools executes one turn's tool calls in parallel, bounded by the
// pool. Results keep their call IDs, so their order in the returned slice
// is free to match submission order.
func (a *Agent) runTools(ctx context.Context, calls []ai.ToolCall, log *slog.Logger) []ai.Message {
	results := make([]ai.Message, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ai.ToolCall) {
			defer wg.Done()
			content, isError := a.dispatch(ctx, call)
			if a.config.Debug {
				log.Debug("tool call finished",
					"tool", call.Function.Name,
					"input", call.Function.Arguments,
					"is_error", isError,
					"result_bytes", len(content))
			}
			results[i] = ai.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: call.ID,
			}
		}(i, call)
	}
	wg.Wait()
	return results
}

// dispatch runs one tool call with its own timeout. A timed-out call is
// replaced by an error payload instead of aborting the turn.
func (a *Agent) dispatch(ctx context.Context, call ai.ToolCall) (string, bool) {
	type outcome struct {
		content string
		isError bool
	}

	callCtx, cancel := context.WithTimeout(ctx, a.config.ToolTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		err := a.pool.Run(callCtx, func() error {
			content, isError := a.executeTool(callCtx, call.Function.Name, call.Function.Arguments)
			done <- outcome{content: content, isError: isError}
			return nil
		})
		if err != nil {
			done <- outcome{content: fmt.Sprintf("Tool error: %v", err), isError: true}
		}
	}()

	select {
	case o := <-done:
		return o.content, o.isError
	case <-callCtx.Done():
		return fmt.Sprintf("Tool error: %s timed out after %s",
			call.Function.Name, a.config.ToolTimeout), true
	}
}

// buildUserMessage appends the caller's explicit filters to the free-text
// request so the model can respect both.
func buildUserMessage(text string, params queryengine.Params) string {
	encoded, err := json.MarshalIndent(params, "", "  ")
	if err != nil || string(encoded) == "{}" {
		return text
	}
	return fmt.Sprintf("%s\n\nUser-provided filters:\n%s", text, encoded)
}
