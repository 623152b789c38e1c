package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hrygo/eventlens/plugin/ai"
	"github.com/hrygo/eventlens/queryengine"
	"github.com/hrygo/eventlens/store"
)

// queryEventsToolName is the only tool the agent exposes to the model.
const queryEventsToolName = "query_events"

// defaultToolMinGuest filters out tiny gatherings unless the model asks
// for them explicitly.
const defaultToolMinGuest = 50

// EventStore is the query capability the agent needs. Implementations must
// ignore the seen set so discarded listings stay visible to the model, and
// must be safe to call concurrently from parallel tool dispatches.
type EventStore interface {
	QueryAll(params queryengine.Params) (*queryengine.Result, error)
}

func queryEventsTool() ai.ToolDescriptor {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"days": map[string]any{
				"type":        "integer",
				"description": "Number of days from today to include. Mutually exclusive with from_date/to_date.",
			},
			"from_date": map[string]any{
				"type":        "string",
				"description": "Start date in YYYYMMDD format (inclusive). Mutually exclusive with days.",
			},
			"to_date": map[string]any{
				"type":        "string",
				"description": "End date in YYYYMMDD format (inclusive). Mutually exclusive with days.",
			},
			"min_guest": map[string]any{
				"type":        "integer",
				"description": "Minimum guest count to include (default: 50).",
			},
			"max_guest": map[string]any{
				"type":        "integer",
				"description": "Maximum guest count to include.",
			},
			"min_time": map[string]any{
				"type":        "integer",
				"description": "Minimum event start hour in Los Angeles time (0-23).",
			},
			"max_time": map[string]any{
				"type":        "integer",
				"description": "Maximum event start hour in Los Angeles time (0-23).",
			},
			"day": map[string]any{
				"type":        "string",
				"description": "Comma-separated weekday filter, e.g. 'Sat,Sun'. Case-insensitive.",
			},
			"exclude": map[string]any{
				"type":        "string",
				"description": "Comma-separated keywords to exclude from titles (case-insensitive).",
			},
			"search": map[string]any{
				"type":        "string",
				"description": "Keyword search in event titles (case-insensitive). Mutually exclusive with regex and glob.",
			},
			"regex": map[string]any{
				"type":        "string",
				"description": "Regex pattern to match event titles (case-insensitive). Mutually exclusive with search and glob.",
			},
			"glob": map[string]any{
				"type":        "string",
				"description": "Glob pattern to match event titles (case-insensitive, e.g. '*ai*meetup*'). Mutually exclusive with search and regex.",
			},
			"sort": map[string]any{
				"type":        "string",
				"enum":        []string{"date", "guest"},
				"description": "Sort by event date (default) or guest count.",
			},
		},
		"required": []string{},
	}

	paramsJSON, err := json.Marshal(schema)
	if err != nil {
		slog.Warn("failed to marshal tool schema, using empty schema", "error", err)
		paramsJSON = []byte(`{"type":"object","properties":{}}`)
	}
	return ai.ToolDescriptor{
		Name:        queryEventsToolName,
		Description: "Search and filter events from the database. Returns matching events sorted by the specified criteria.",
		Parameters:  string(paramsJSON),
	}
}

// executeTool runs one tool invocation. It returns the result content and
// whether that content is an error the model should react to. Tool-level
// failures never abort the conversation.
func (a *Agent) executeTool(ctx context.Context, name, input string) (string, bool) {
	if name != queryEventsToolName {
		return fmt.Sprintf("Unknown tool: %s", name), true
	}

	var params queryengine.Params
	if err := json.Unmarshal([]byte(input), &params); err != nil {
		return fmt.Sprintf("Tool error: invalid input: %v", err), true
	}
	if params.MinGuest == nil {
		params.MinGuest = queryengine.Int(defaultToolMinGuest)
	}
	if params.Sort == "" {
		params.Sort = queryengine.SortDate
	}

	result, err := a.store.QueryAll(params)
	if err != nil {
		return fmt.Sprintf("Tool error: %v", err), true
	}
	if err := ctx.Err(); err != nil {
		return fmt.Sprintf("Tool error: %v", err), true
	}

	events := result.Events
	if events == nil {
		events = []*store.Event{}
	}
	content, err := json.Marshal(events)
	if err != nil {
		return fmt.Sprintf("Tool error: %v", err), true
	}
	return string(content), false
}
