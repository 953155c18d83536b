package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/pario-ai/quelldemo/pkg/executor"
	"github.com/pario-ai/quelldemo/pkg/models"
	"github.com/pario-ai/quelldemo/pkg/render"
)

type submitArgs struct {
	Label string `json:"label,omitempty" jsonschema:"description=Sample label (defaults to the selected sample). With query: the label to record."`
	Query string `json:"query,omitempty" jsonschema:"description=Ad-hoc query text"`
	JQ    string `json:"jq,omitempty" jsonschema:"description=jq expression applied to the payload"`
}

type modeArgs struct {
	Mode string `json:"mode" jsonschema:"enum=client,enum=server"`
}

type limitsArgs struct {
	MaxDepth         *int `json:"max_depth,omitempty" jsonschema:"minimum=1"`
	MaxCost          *int `json:"max_cost,omitempty" jsonschema:"minimum=1"`
	RequestRateLimit *int `json:"request_rate_limit,omitempty" jsonschema:"minimum=1"`
}

type noArgs struct{}

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"quell_submit":     handleSubmit,
	"quell_set_mode":   handleSetMode,
	"quell_set_limits": handleSetLimits,
	"quell_clear":      handleClear,
	"quell_reset":      handleReset,
	"quell_metrics":    handleMetrics,
	"quell_samples":    handleSamples,
}

var reflector = &jsonschema.Reflector{
	Anonymous:      true,
	DoNotReference: true,
	ExpandedStruct: true,
}

// inputSchema derives a tool input schema from an argument struct.
func inputSchema(v any) *jsonschema.Schema {
	s := reflector.Reflect(v)
	s.Version = ""
	return s
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "quell_submit",
		Description: "Submit a sample (by label) or an ad-hoc GraphQL query under the current caching mode and report timing, hit/miss and payload.",
		InputSchema: inputSchema(&submitArgs{}),
	},
	{
		Name:        "quell_set_mode",
		Description: "Switch between client and server caching. Both caches are cleared.",
		InputSchema: inputSchema(&modeArgs{}),
	},
	{
		Name:        "quell_set_limits",
		Description: "Change the cost limits sent with every query. Omitted fields keep their value.",
		InputSchema: inputSchema(&limitsArgs{}),
	},
	{
		Name:        "quell_clear",
		Description: "Clear the cache layer(s) of the current mode.",
		InputSchema: inputSchema(&noArgs{}),
	},
	{
		Name:        "quell_reset",
		Description: "Clear the active cache layer(s) and zero the timings and hit/miss counts. The error log is kept.",
		InputSchema: inputSchema(&noArgs{}),
	},
	{
		Name:        "quell_metrics",
		Description: "Show hit/miss counts, per-label latencies, the error log and a response time chart.",
		InputSchema: inputSchema(&noArgs{}),
	},
	{
		Name:        "quell_samples",
		Description: "List sample queries with their text.",
		InputSchema: inputSchema(&noArgs{}),
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func handleSubmit(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args submitArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}

	var (
		o   *models.Outcome
		err error
	)
	if args.Query != "" {
		label := args.Label
		if label == "" {
			label = "custom"
		}
		o, err = s.session.Submit(ctx, models.QueryRecord{Text: args.Query, TypeLabel: label})
	} else {
		o, err = s.session.SubmitSample(ctx, args.Label)
	}
	if err != nil {
		return errorResult(executor.UserMessage(err))
	}

	payload, err := render.Payload(o.Result.Data, args.JQ)
	if err != nil {
		return errorResult(err.Error())
	}
	status := "miss"
	if o.Result.WasHit {
		status = "hit"
	}
	return textResult(fmt.Sprintf("%s %s %.2fms %s\n%s", o.Mode, o.TypeLabel, o.ElapsedMs(), status, payload))
}

func handleSetMode(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args modeArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	mode, err := models.ParseMode(args.Mode)
	if err != nil {
		return errorResult(err.Error())
	}
	if err := s.session.SetMode(ctx, mode); err != nil {
		return errorResult(fmt.Sprintf("mode is now %s, but clearing caches failed: %v", s.session.Mode(), err))
	}
	return textResult("mode: " + s.session.Mode().String())
}

func handleSetLimits(_ context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args limitsArgs
	if err := decodeArgs(rawArgs, &args); err != nil {
		return errorResult("invalid arguments: " + err.Error())
	}
	l := s.session.Limits()
	if args.MaxDepth != nil {
		l.MaxDepth = *args.MaxDepth
	}
	if args.MaxCost != nil {
		l.MaxCost = *args.MaxCost
	}
	if args.RequestRateLimit != nil {
		l.RequestRateLimit = *args.RequestRateLimit
	}
	if err := s.session.SetLimits(l); err != nil {
		return errorResult(err.Error())
	}
	return textResult(fmt.Sprintf("max depth %d, max cost %d, rate limit %d/s", l.MaxDepth, l.MaxCost, l.RequestRateLimit))
}

func handleClear(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if err := s.session.ClearActive(ctx); err != nil {
		return errorResult(err.Error())
	}
	return textResult(s.session.Mode().String() + " cache cleared")
}

func handleReset(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if err := s.session.ResetAll(ctx); err != nil {
		return errorResult(err.Error())
	}
	return textResult("cache and timings reset")
}

func handleMetrics(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	var b bytes.Buffer
	if err := render.Snapshot(&b, s.session.Snapshot()); err != nil {
		return errorResult(err.Error())
	}
	return textResult(b.String())
}

func handleSamples(_ context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	samples := s.session.Samples()
	var b strings.Builder
	for _, label := range samples.Labels() {
		q, _ := samples.Get(label)
		fmt.Fprintf(&b, "## %s\n%s\n\n", label, q.Text)
	}
	return textResult(strings.TrimRight(b.String(), "\n"))
}
