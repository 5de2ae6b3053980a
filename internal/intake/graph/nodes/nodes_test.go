package nodes

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smart-order-intake/server/internal/intake/model"
)

func assistantWithCalls(ids ...string) *schema.Message {
	msg := &schema.Message{Role: schema.Assistant}
	for _, id := range ids {
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{ID: id, Function: schema.FunctionCall{Name: "search_catalog"}})
	}
	return msg
}

func TestExtractionChatModelPreHandler_FillsToolCallIDsByPosition(t *testing.T) {
	state := &model.ExtractionState{
		History: []*schema.Message{
			schema.SystemMessage("sys"),
			schema.UserMessage("email"),
			assistantWithCalls("call_a", "call_b", "call_c"),
		},
	}
	results := []*schema.Message{
		{Role: schema.Tool, Content: "r1"},
		{Role: schema.Tool, Content: "r2", ToolCallID: "call_b"},
		{Role: schema.Tool, Content: "r3"},
	}

	out, err := NewExtractionChatModelPreHandler(6)(context.Background(), results, state)
	require.NoError(t, err)
	require.Len(t, out, 6)

	assert.Equal(t, "call_a", results[0].ToolCallID)
	assert.Equal(t, "call_b", results[1].ToolCallID)
	assert.Equal(t, "call_c", results[2].ToolCallID)
}

func TestFillToolCallIDs_UsesLatestAssistantTurn(t *testing.T) {
	history := []*schema.Message{
		assistantWithCalls("old_1", "old_2"),
		{Role: schema.Tool, ToolCallID: "old_1"},
		{Role: schema.Tool, ToolCallID: "old_2"},
		assistantWithCalls("new_1"),
	}
	results := []*schema.Message{{Role: schema.Tool}, {Role: schema.Tool}}

	fillToolCallIDs(results, lastToolCalls(history))

	assert.Equal(t, "new_1", results[0].ToolCallID)
	assert.Empty(t, results[1].ToolCallID, "no call left to pair with")
}
