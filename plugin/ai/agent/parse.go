package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/hrygo/eventlens/queryengine"
)

// maxDiagnosticBytes bounds how much of a bad response ends up in errors.
const maxDiagnosticBytes = 500

var markdownFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")

// responseEnvelope is the discriminated final-answer schema the model is
// instructed to produce.
type responseEnvelope struct {
	Type   string              `json:"type"`
	Text   string              `json:"text,omitempty"`
	IDs    []string            `json:"ids,omitempty"`
	Params *queryengine.Params `json:"params,omitempty"`
}

// parseResponse interprets the model's final answer. Models do not reliably
// emit bare JSON even when instructed, so it tries the full trimmed text,
// then the contents of a fenced code block, then the first balanced JSON
// object found by scanning. The first candidate that parses wins.
func parseResponse(text string) (AgentResult, error) {
	trimmed := strings.TrimSpace(text)

	candidates := []string{trimmed}
	if m := markdownFenceRe.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if obj, ok := firstJSONObject(trimmed); ok {
		candidates = append(candidates, obj)
	}

	var envelope responseEnvelope
	var lastErr error
	parsed := false
	for _, candidate := range candidates {
		var attempt responseEnvelope
		if err := json.Unmarshal([]byte(candidate), &attempt); err != nil {
			lastErr = err
			continue
		}
		envelope = attempt
		parsed = true
		break
	}
	if !parsed {
		return nil, newAgentError(ErrInvalidResponse,
			"Agent returned invalid JSON: %v\nResponse: %s", lastErr, truncate(text, maxDiagnosticBytes))
	}

	switch envelope.Type {
	case "text":
		return TextResult{Text: envelope.Text}, nil
	case "events":
		ids := envelope.IDs
		if ids == nil {
			ids = []string{}
		}
		return EventListResult{IDs: ids}, nil
	case "query":
		if envelope.Params == nil {
			return nil, newAgentError(ErrInvalidResponse,
				"Agent response does not match schema: type \"query\" without params\nResponse: %s",
				truncate(text, maxDiagnosticBytes))
		}
		return QueryParamsResult{Params: *envelope.Params}, nil
	default:
		return nil, newAgentError(ErrInvalidResponse,
			"Agent response does not match schema: unknown type %q\nResponse: %s",
			envelope.Type, truncate(text, maxDiagnosticBytes))
	}
}

// firstJSONObject extracts the first balanced brace-delimited object from
// the text, tracking string literals and escapes so braces inside quoted
// values do not confuse the depth count. Prose after the object, including
// stray braces, is ignored.
func firstJSONObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
