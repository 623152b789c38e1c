package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hrygo/eventlens/internal/profile"
	"github.com/hrygo/eventlens/internal/render"
	"github.com/hrygo/eventlens/plugin/ai"
	"github.com/hrygo/eventlens/plugin/ai/agent"
	"github.com/hrygo/eventlens/queryengine"
)

// newAgent wires the LLM service and the tool-calling agent. The API key
// comes from the environment or the user config.
func newAgent(g *globalOptions, a *app) (*agent.Agent, error) {
	if a.profile.APIKey == "" {
		return nil, agentError(agent.NewMissingAPIKeyError(profile.APIKeyEnv))
	}
	llm, err := ai.NewLLMService(&ai.Config{
		BaseURL:   a.profile.AIBaseURL,
		APIKey:    a.profile.APIKey,
		Model:     a.profile.AIModel,
		MaxTokens: a.profile.AIMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	pool := agent.NewPool(profile.DefaultAgentMaxParallel)
	return agent.New(llm, a.events, pool, agent.Config{
		Debug:    g.debug,
		Location: a.loc,
	}), nil
}

func agentError(err error) *exitError {
	return &exitError{code: 1, err: errors.Errorf("Agent error: %v", err)}
}

func runAgent(cmd *cobra.Command, g *globalOptions, o *queryOptions, a *app, text string) error {
	ag, err := newAgent(g, a)
	if err != nil {
		return err
	}
	params := o.params()

	if g.jsonOut {
		return runAgentJSON(cmd.Context(), g, a, ag, text, params)
	}
	return runAgentInteractive(cmd.Context(), g, a, ag, text, params, o.sortBy, o.top)
}

// agentEventsEnvelope is the JSON form of an event-list agent answer.
type agentEventsEnvelope struct {
	Type   string `json:"type"`
	Events any    `json:"events"`
	Total  int    `json:"total"`
}

type agentTextEnvelope struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func runAgentJSON(ctx context.Context, g *globalOptions, a *app, ag *agent.Agent, text string, params queryengine.Params) error {
	result, err := ag.Query(ctx, text, params)
	if err != nil {
		return agentError(err)
	}

	switch r := result.(type) {
	case agent.TextResult:
		return printJSON(agentTextEnvelope{Type: "text", Text: r.Text})
	case agent.EventListResult:
		resolved, err := a.events.GetByIDs(r.IDs)
		if err != nil {
			return err
		}
		reportMissingIDs(g, len(r.IDs), len(resolved))
		return printJSON(agentEventsEnvelope{Type: "events", Events: resolved, Total: len(resolved)})
	case agent.QueryParamsResult:
		queryResult, err := a.events.QueryAll(r.Params)
		if err != nil {
			return err
		}
		return printJSON(agentEventsEnvelope{
			Type:   "events",
			Events: queryResult.Events,
			Total:  len(queryResult.Events),
		})
	}
	return nil
}

func runAgentInteractive(ctx context.Context, g *globalOptions, a *app, ag *agent.Agent, text string, params queryengine.Params, sortBy string, top int) error {
	dim, reset := stderrStyle()
	spinner := render.NewSpinner(os.Stderr, stdoutIsTTY())
	spinner.Start("Thinking")
	defer spinner.Stop()

	for output, err := range ag.QueryIter(ctx, text, params) {
		if err != nil {
			spinner.Stop()
			return agentError(err)
		}
		switch o := output.(type) {
		case agent.TextOutput:
			spinner.Stop()
			fmt.Fprintf(os.Stderr, "%s%s%s\n", dim, o.Text, reset)
			spinner.Start("Thinking")
		case agent.ToolFetchOutput:
			slog.Debug("tool calls completed", "count", o.Count)
			spinner.Start("Thinking")
		case agent.FinalResult:
			spinner.Stop()
			return renderFinal(g, a, o.Result, sortBy, top)
		}
	}
	return nil
}

func renderFinal(g *globalOptions, a *app, result agent.AgentResult, sortBy string, top int) error {
	dim, reset := stderrStyle()

	switch r := result.(type) {
	case agent.TextResult:
		if r.Text != "" {
			fmt.Println(r.Text)
		}
	case agent.EventListResult:
		resolved, err := a.events.GetByIDs(r.IDs)
		if err != nil {
			return err
		}
		reportMissingIDs(g, len(r.IDs), len(resolved))
		a.renderer.PrintEvents(os.Stdout, topSlice(resolved, top), render.Options{
			Sort:  sortBy,
			Color: stdoutIsTTY(),
		})
	case agent.QueryParamsResult:
		fmt.Fprintf(os.Stderr, "%seventlens %s%s\n", dim, paramsToFlags(r.Params), reset)
		queryResult, err := a.events.QueryAll(r.Params)
		if err != nil {
			return err
		}
		sort := r.Params.Sort
		if sort == "" {
			sort = sortBy
		}
		a.renderer.PrintEvents(os.Stdout, topSlice(queryResult.Events, top), render.Options{
			Sort:  sort,
			Color: stdoutIsTTY(),
		})
	}
	return nil
}

func reportMissingIDs(g *globalOptions, requested, resolved int) {
	if g.debug && resolved < requested {
		fmt.Fprintf(os.Stderr, "[debug] %d event ID(s) not found in store\n", requested-resolved)
	}
}

// paramsToFlags renders refined agent parameters as the equivalent CLI
// invocation, so the user can rerun or tweak it by hand.
func paramsToFlags(params queryengine.Params) string {
	var parts []string
	add := func(flag, value string) {
		parts = append(parts, flag+" "+value)
	}
	if params.Days != nil {
		add("--days", fmt.Sprint(*params.Days))
	}
	if params.FromDate != "" {
		add("--from-date", params.FromDate)
	}
	if params.ToDate != "" {
		add("--to-date", params.ToDate)
	}
	if params.MinGuest != nil {
		add("--min-guest", fmt.Sprint(*params.MinGuest))
	}
	if params.MaxGuest != nil {
		add("--max-guest", fmt.Sprint(*params.MaxGuest))
	}
	if params.MinHour != nil {
		add("--min-time", fmt.Sprint(*params.MinHour))
	}
	if params.MaxHour != nil {
		add("--max-time", fmt.Sprint(*params.MaxHour))
	}
	if params.Weekdays != "" {
		add("--day", params.Weekdays)
	}
	if params.Sort != "" {
		add("--sort", params.Sort)
	}
	return strings.Join(parts, " ")
}
