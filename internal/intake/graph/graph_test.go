package graph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-order-intake/server/internal/intake/catalog"
	"github.com/smart-order-intake/server/internal/intake/graph/parsers"
	"github.com/smart-order-intake/server/internal/intake/graph/tools"
	"github.com/smart-order-intake/server/internal/intake/model"
)

// scriptedModel replays canned replies and records every input it sees.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	err     error
	inputs  [][]*schema.Message
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputs = append(m.inputs, append([]*schema.Message(nil), input...))
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return nil, errors.New("script exhausted")
	}
	idx := len(m.inputs) - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	reply := *m.replies[idx]
	reply.ToolCalls = append([]schema.ToolCall(nil), m.replies[idx].ToolCalls...)
	return &reply, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

const orderJSON = `{"customerInfo": {"name": "Jane Doe", "deliveryAddress": "12 Harbour Rd"},
"items": [{"sku": "DSK-0001", "productName": "Coffee STRÅDAL 620", "requestedQuantity": 9, "confidence": 0.9}]}`

func toolCallMessage(query string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			Type:     "function",
			Function: schema.FunctionCall{Name: tools.ToolSearchCatalog, Arguments: `{"query": "  ` + query + `  "}`},
		}},
	}
}

func newTestRunner(t *testing.T, cm einomodel.BaseChatModel, maxToolCalls int) Runner {
	t.Helper()
	c, err := catalog.New([]model.Product{
		{Code: "DSK-0001", Name: "Coffee STRÅDAL 620", Price: 50, Stock: 5, MinOrderQty: 2},
		{Code: "LMP-0200", Name: "Desk Lamp LUMEN", Price: 25, Stock: 100, MinOrderQty: 10},
	})
	require.NoError(t, err)

	runnable, err := BuildGraph(context.Background(), &GraphConfig{
		ChatModel:    cm,
		ModelName:    "gemini-2.0-flash",
		Tools:        tools.GetExtractionTools(c),
		ToolMaxCalls: maxToolCalls,
	})
	require.NoError(t, err)
	return NewRunner(runnable)
}

func TestBuildGraph_RejectsMissingModel(t *testing.T) {
	_, err := BuildGraph(context.Background(), nil)
	assert.Error(t, err)
	_, err = BuildGraph(context.Background(), &GraphConfig{})
	assert.Error(t, err)
}

func TestRunner_DirectAnswer(t *testing.T) {
	cm := &scriptedModel{replies: []*schema.Message{{
		Role:    schema.Assistant,
		Content: "```json\n" + orderJSON + "\n```",
		ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{
			PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500,
		}},
	}}}
	r := newTestRunner(t, cm, 3)

	out, err := r.Invoke(context.Background(), model.EmailInput{RequestID: "req-1", Email: "Hi, 9x STRÅDAL 620 please. Jane"})
	require.NoError(t, err)

	assert.Equal(t, "Hi, 9x STRÅDAL 620 please. Jane", out.OriginalEmail)
	assert.Equal(t, "Jane Doe", out.CustomerInfo.Name)
	require.Len(t, out.Items, 1)
	assert.Equal(t, 9, out.Items[0].RequestedQuantity)
	assert.InDelta(t, 0.0003, out.CostUSD, 1e-12)
	assert.Equal(t, 0, out.ParsingMetadata["tool_calls"])

	require.Equal(t, 1, cm.calls())
	first := cm.inputs[0]
	require.Len(t, first, 2)
	assert.Equal(t, schema.System, first[0].Role)
	assert.Contains(t, first[0].Content, tools.ToolSearchCatalog)
	assert.Equal(t, schema.User, first[1].Role)
	assert.Contains(t, first[1].Content, "9x STRÅDAL 620")
}

func TestRunner_ToolRoundTrip(t *testing.T) {
	cm := &scriptedModel{replies: []*schema.Message{
		toolCallMessage("STRÅDAL 620"),
		{Role: schema.Assistant, Content: orderJSON},
	}}
	r := newTestRunner(t, cm, 3)

	out, err := r.Invoke(context.Background(), model.EmailInput{Email: "9 of the STRÅDAL 620"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ParsingMetadata["tool_calls"])

	require.Equal(t, 2, cm.calls())
	second := cm.inputs[1]
	last := second[len(second)-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "DSK-0001")
	assert.Contains(t, last.Content, `"match":"exact"`)
}

func TestRunner_ToolLimitForcesWrapUp(t *testing.T) {
	cm := &scriptedModel{replies: []*schema.Message{toolCallMessage("lamp")}}
	r := newTestRunner(t, cm, 2)

	_, err := r.Invoke(context.Background(), model.EmailInput{Email: "lamps"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, parsers.ErrNoJSON) || strings.Contains(err.Error(), parsers.ErrNoJSON.Error()))

	require.Equal(t, 3, cm.calls())
	final := cm.inputs[2]
	assert.Contains(t, final[len(final)-1].Content, "SYSTEM NOTICE")
}

func TestRunner_ModelError(t *testing.T) {
	cm := &scriptedModel{err: errors.New("quota exceeded")}
	r := newTestRunner(t, cm, 3)

	_, err := r.Invoke(context.Background(), model.EmailInput{Email: "anything"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestRunner_EmptyEmail(t *testing.T) {
	cm := &scriptedModel{replies: []*schema.Message{{Role: schema.Assistant, Content: orderJSON}}}
	r := newTestRunner(t, cm, 3)

	_, err := r.Invoke(context.Background(), model.EmailInput{Email: "   "})
	require.Error(t, err)
	assert.Zero(t, cm.calls())
}

func TestSanitizeToolArguments(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"query": "  lamp "}`, `{"query":"lamp"}`},
		{`{"query": 42, "max_results": 99}`, `{"max_results":10,"query":"42"}`},
		{`{"query": "x", "max_results": "3"}`, `{"max_results":3,"query":"x"}`},
		{`{"query": "x", "max_results": "many"}`, `{"query":"x"}`},
		{`not json`, `not json`},
	}
	for _, tt := range tests {
		got, err := sanitizeToolArguments(context.Background(), tools.ToolSearchCatalog, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
