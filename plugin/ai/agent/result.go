// Package agent implements the LLM tool-calling loop that answers
// free-text event questions. Its only tool is the event query engine.
package agent

import "github.com/hrygo/eventlens/queryengine"

// AgentResult is the final answer of one agent invocation. Exactly one of
// the three concrete types is produced: a plain-text answer, a list of
// event IDs to resolve against the store, or refined query parameters for
// the caller to run itself.
type AgentResult interface {
	isAgentResult()
}

// TextResult is a prose answer.
type TextResult struct {
	Text string
}

// EventListResult references events by ID. IDs point into the store so the
// model never has to echo full event payloads back.
type EventListResult struct {
	IDs []string
}

// QueryParamsResult hands refined parameters back to the caller instead of
// a final answer.
type QueryParamsResult struct {
	Params queryengine.Params
}

func (TextResult) isAgentResult()        {}
func (EventListResult) isAgentResult()   {}
func (QueryParamsResult) isAgentResult() {}

// Output is one element of the sequence produced by QueryIter. The
// sequence is finite and ends with a FinalResult.
type Output interface {
	isOutput()
}

// TextOutput is an intermediate assistant message emitted before a tool
// round, suitable for a progress channel.
type TextOutput struct {
	Text string
}

// ToolFetchOutput reports how many tool invocations just completed.
type ToolFetchOutput struct {
	Count int
}

// FinalResult is the terminal element of the sequence.
type FinalResult struct {
	Result AgentResult
}

func (TextOutput) isOutput()      {}
func (ToolFetchOutput) isOutput() {}
func (FinalResult) isOutput()     {}
