package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/smart-order-intake/server/internal/intake/graph/parsers"
	"github.com/smart-order-intake/server/internal/intake/graph/prompts"
	"github.com/smart-order-intake/server/internal/intake/graph/tools"
	"github.com/smart-order-intake/server/internal/intake/model"
	logx "github.com/smart-order-intake/server/pkg/logger"
)

// NewInputConverterPreHandler resets per-email state.
func NewInputConverterPreHandler() func(context.Context, model.EmailInput, *model.ExtractionState) (model.EmailInput, error) {
	return func(ctx context.Context, in model.EmailInput, s *model.ExtractionState) (model.EmailInput, error) {
		s.RequestID = in.RequestID
		s.Email = in.Email
		s.History = nil
		s.ToolCallCount = 0
		s.ToolCallLimitReached = false
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewInputConverterNode renders the system prompt and wraps the email as the user turn.
func NewInputConverterNode(maxToolCalls int) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.EmailInput) ([]*schema.Message, error) {
		if strings.TrimSpace(input.Email) == "" {
			return nil, fmt.Errorf("email is empty")
		}
		systemPrompt, err := prompts.RenderExtractionSystem(ctx, tools.ToolSearchCatalog, normalizeMaxToolCalls(maxToolCalls))
		if err != nil {
			return nil, fmt.Errorf("render extraction system prompt: %w", err)
		}
		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(prompts.RenderEmailMessage(input.Email)),
		}, nil
	})
}

// NewExtractionChatModelPreHandler accumulates the conversation in state and
// appends a wrap-up notice once the tool budget is spent.
func NewExtractionChatModelPreHandler(maxToolCalls int) func(context.Context, []*schema.Message, *model.ExtractionState) ([]*schema.Message, error) {
	return func(ctx context.Context, in []*schema.Message, state *model.ExtractionState) ([]*schema.Message, error) {
		fillToolCallIDs(in, lastToolCalls(state.History))

		state.History = append(state.History, in...)

		if checkAndMarkToolLimit(state, maxToolCalls) {
			state.History = append(state.History, schema.SystemMessage(fmt.Sprintf(
				"SYSTEM NOTICE: You have reached the maximum tool call limit (%d). "+
					"Do not call any more tools. Return the order JSON now using what you already know.",
				normalizeMaxToolCalls(maxToolCalls),
			)))
		}
		return state.History, nil
	}
}

// NewExtractionChatModelPostHandler accounts token cost and normalises tool call ids.
func NewExtractionChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.ExtractionState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.ExtractionState) (*schema.Message, error) {
		if out == nil {
			return nil, fmt.Errorf("extraction model returned no message")
		}

		if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			usage := out.ResponseMeta.Usage
			inC, outC, totalC := model.ComputeCost(usage, model.ResolvePricing(modelName))
			state.TotalCostUSD += totalC
			logx.Debug().
				Str("request_id", state.RequestID).
				Str("node", NodeExtractionChatModel).
				Str("model", modelName).
				Int("prompt_tokens", usage.PromptTokens).
				Int("completion_tokens", usage.CompletionTokens).
				Int("total_tokens", usage.TotalTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("total_cost_usd", state.TotalCostUSD).
				Msg("LLM usage")
		}

		// Some providers omit tool call ids.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				state.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", state.ToolCallIDSeq)
			}
		}

		state.History = append(state.History, out)
		return out, nil
	}
}

// NewToolExecutorCondition routes tool calls to the executor until the budget
// is spent, and everything else to the parser.
func NewToolExecutorCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, input *schema.Message) (string, error) {
		var limitReached bool
		_ = compose.ProcessState(ctx, func(_ context.Context, state *model.ExtractionState) error {
			limitReached = state.ToolCallLimitReached
			return nil
		})

		if len(input.ToolCalls) > 0 && !limitReached {
			logx.Debug().Int("tool_count", len(input.ToolCalls)).Msg("Routing to ToolExecutor")
			return NodeToolExecutor, nil
		}
		if len(input.ToolCalls) > 0 {
			logx.Debug().Msg("Tool limit reached - ignoring tool calls and parsing")
		}
		return NodeParser, nil
	}
}

// NewToolExecutorPreHandler counts tool rounds against the budget.
func NewToolExecutorPreHandler(maxToolCalls int) func(context.Context, *schema.Message, *model.ExtractionState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, state *model.ExtractionState) (*schema.Message, error) {
		exceeded := incrementToolCallAndCheck(state, maxToolCalls)
		logx.Debug().
			Int("tool_call_count", state.ToolCallCount).
			Str("request_id", state.RequestID).
			Msg("Tool execution attempt")
		if exceeded {
			logx.Warn().
				Int("tool_call_count", state.ToolCallCount).
				Int("max_tool_calls", normalizeMaxToolCalls(maxToolCalls)).
				Str("request_id", state.RequestID).
				Msg("Tool call limit exceeded - flagging and continuing")
		}
		return in, nil
	}
}

// NewParserNode parses the final model message into an ExtractedOrder.
func NewParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (*model.ExtractedOrder, error) {
		if resp == nil {
			return nil, fmt.Errorf("parser received nil message")
		}
		out, err := parsers.ParseExtraction(resp.Content)
		if err != nil {
			logx.Warn().Err(err).Msg("Error parsing extraction response")
			return nil, err
		}
		return out, nil
	})
}

// NewParserPostHandler stamps the original email and run accounting onto the result.
func NewParserPostHandler() func(context.Context, *model.ExtractedOrder, *model.ExtractionState) (*model.ExtractedOrder, error) {
	return func(ctx context.Context, out *model.ExtractedOrder, state *model.ExtractionState) (*model.ExtractedOrder, error) {
		out.OriginalEmail = state.Email
		out.CostUSD = state.TotalCostUSD
		if out.ParsingMetadata == nil {
			out.ParsingMetadata = map[string]any{}
		}
		out.ParsingMetadata["tool_calls"] = state.ToolCallCount
		if state.ToolCallLimitReached {
			out.ParsingMetadata["tool_call_limit_reached"] = true
		}
		logx.Debug().
			Str("request_id", state.RequestID).
			Int("items", len(out.Items)).
			Float64("confidence", out.Confidence).
			Msg("Extraction parsed")
		return out, nil
	}
}

// lastToolCalls returns the tool calls of the most recent assistant turn that made any.
func lastToolCalls(history []*schema.Message) []schema.ToolCall {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg != nil && msg.Role == schema.Assistant && len(msg.ToolCalls) > 0 {
			return msg.ToolCalls
		}
	}
	return nil
}

// fillToolCallIDs gives tool results without an id the id of the call at the
// same position. Results come back in call order.
func fillToolCallIDs(in []*schema.Message, calls []schema.ToolCall) {
	pos := 0
	for _, msg := range in {
		if msg == nil || msg.Role != schema.Tool {
			continue
		}
		if strings.TrimSpace(msg.ToolCallID) == "" && pos < len(calls) {
			msg.ToolCallID = strings.TrimSpace(calls[pos].ID)
		}
		pos++
	}
}
