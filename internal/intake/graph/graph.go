// Package graph builds the eino graph that reads an order email with an LLM.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"

	"github.com/smart-order-intake/server/internal/intake/graph/nodes"
	"github.com/smart-order-intake/server/internal/intake/graph/observers"
	"github.com/smart-order-intake/server/internal/intake/graph/tools"
	"github.com/smart-order-intake/server/internal/intake/model"
	logx "github.com/smart-order-intake/server/pkg/logger"
)

// Runner executes the compiled extraction graph for one email.
type Runner interface {
	Invoke(ctx context.Context, in model.EmailInput) (*model.ExtractedOrder, error)
}

// Config holds everything needed to build the extraction graph end-to-end,
// including the Gemini chat model.
type Config struct {
	APIKey  string
	BaseURL string
	Model   model.ExtractionModelConfig
	Catalog tools.Searcher
}

// GraphConfig holds the already constructed collaborators of the graph.
// ChatModel must already know the tool schemas when tools are used.
type GraphConfig struct {
	ChatModel    einomodel.BaseChatModel
	ModelName    string
	Tools        []tool.BaseTool
	ToolMaxCalls int
}

// GraphBuilder handles the construction of the extraction graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.EmailInput, *model.ExtractedOrder]
}

type graphRunner struct {
	runnable compose.Runnable[model.EmailInput, *model.ExtractedOrder]
}

func (r *graphRunner) Invoke(ctx context.Context, in model.EmailInput) (*model.ExtractedOrder, error) {
	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("extraction graph returned nil result")
	}
	return out, nil
}

// NewRunner wraps a compiled graph.
func NewRunner(runnable compose.Runnable[model.EmailInput, *model.ExtractedOrder]) Runner {
	return &graphRunner{runnable: runnable}
}

// BuildExtractionGraph creates the Gemini model, binds the catalog tools to it
// and returns a Runner.
func BuildExtractionGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}

	cm, err := nodes.NewExtractionChatModel(ctx, nodes.ChatModelConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Extraction: &cfg.Model,
	})
	if err != nil {
		return nil, err
	}

	extractionTools := tools.GetExtractionTools(cfg.Catalog)
	toolInfos, err := tools.GetToolInfos(ctx, extractionTools)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to get tool infos")
		return nil, fmt.Errorf("failed to get tool infos: %w", err)
	}
	if err := nodes.BindTools(cm, toolInfos); err != nil {
		return nil, err
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModel:    cm,
		ModelName:    cfg.Model.Model,
		Tools:        extractionTools,
		ToolMaxCalls: cfg.Model.ToolMaxCalls,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Str("model", cfg.Model.Model).Msg("Extraction graph built successfully")
	return NewRunner(runnable), nil
}

// BuildGraph constructs and compiles the extraction graph:
// InputConverter -> ExtractionChatModel -> (ToolExecutor -> ExtractionChatModel)* -> Parser.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.EmailInput, *model.ExtractedOrder], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModel == nil {
		return nil, fmt.Errorf("chat model is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.EmailInput, *model.ExtractedOrder](
			compose.WithGenLocalState(func(ctx context.Context) *model.ExtractionState {
				return &model.ExtractionState{}
			}),
		),
	}

	if err := builder.setupTools(ctx); err != nil {
		return nil, err
	}
	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}
	if err := builder.addBranches(); err != nil {
		return nil, err
	}
	return builder.compile(ctx)
}

// setupTools adds the tools node with argument sanitising and a soft
// handler for hallucinated tool names.
func (b *GraphBuilder) setupTools(ctx context.Context) error {
	toolsNode, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               b.config.Tools,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call; returning fallback result")
			return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
		},
		ToolArgumentsHandler: sanitizeToolArguments,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return fmt.Errorf("failed to create tools node: %w", err)
	}

	return b.graph.AddToolsNode(nodes.NodeToolExecutor, toolsNode,
		compose.WithStatePreHandler(nodes.NewToolExecutorPreHandler(b.config.ToolMaxCalls)),
	)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeInputConverter,
		nodes.NewInputConverterNode(b.config.ToolMaxCalls),
		compose.WithStatePreHandler(nodes.NewInputConverterPreHandler()),
	); err != nil {
		return fmt.Errorf("add %s: %w", nodes.NodeInputConverter, err)
	}

	if err := b.graph.AddChatModelNode(nodes.NodeExtractionChatModel,
		b.config.ChatModel,
		compose.WithStatePreHandler(nodes.NewExtractionChatModelPreHandler(b.config.ToolMaxCalls)),
		compose.WithStatePostHandler(nodes.NewExtractionChatModelPostHandler(b.config.ModelName)),
	); err != nil {
		return fmt.Errorf("add %s: %w", nodes.NodeExtractionChatModel, err)
	}

	if err := b.graph.AddLambdaNode(nodes.NodeParser,
		nodes.NewParserNode(),
		compose.WithStatePostHandler(nodes.NewParserPostHandler()),
	); err != nil {
		return fmt.Errorf("add %s: %w", nodes.NodeParser, err)
	}
	return nil
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeInputConverter},
		{nodes.NodeInputConverter, nodes.NodeExtractionChatModel},
		{nodes.NodeToolExecutor, nodes.NodeExtractionChatModel},
		{nodes.NodeParser, compose.END},
	}
	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	toolBranch := compose.NewGraphBranch(
		nodes.NewToolExecutorCondition(),
		map[string]bool{
			nodes.NodeToolExecutor: true,
			nodes.NodeParser:       true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeExtractionChatModel, toolBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding tool branch")
		return fmt.Errorf("error adding tool branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.EmailInput, *model.ExtractedOrder], error) {
	// Bound total steps so a model that keeps calling tools cannot loop forever.
	maxSteps := 10 + b.config.ToolMaxCalls*2
	if maxSteps < 20 {
		maxSteps = 20
	}

	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(maxSteps))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}

// sanitizeToolArguments best-effort cleans tool arguments and never fails.
func sanitizeToolArguments(ctx context.Context, name, arguments string) (string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return arguments, nil
	}

	switch name {
	case tools.ToolSearchCatalog:
		if v, ok := m["query"]; ok {
			switch vv := v.(type) {
			case string:
				m["query"] = strings.TrimSpace(vv)
			default:
				m["query"] = strings.TrimSpace(fmt.Sprint(v))
			}
		}
		if v, ok := m["max_results"]; ok {
			switch vv := v.(type) {
			case float64:
				m["max_results"] = clampInt(int(vv), 1, tools.MaxResultsLimit)
			case string:
				if n, err := strconv.Atoi(strings.TrimSpace(vv)); err == nil {
					m["max_results"] = clampInt(n, 1, tools.MaxResultsLimit)
				} else {
					delete(m, "max_results")
				}
			default:
				delete(m, "max_results")
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return arguments, nil
	}
	return string(out), nil
}

// clampInt returns v limited to [min, max].
func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
