package nodes

import (
	"github.com/smart-order-intake/server/internal/intake/model"
)

const DefaultMaxToolCalls = 6

// Node keys of the extraction graph.
const (
	NodeInputConverter      = "InputConverter"
	NodeExtractionChatModel = "ExtractionChatModel"
	NodeToolExecutor        = "ToolExecutor"
	NodeParser              = "Parser"
)

// normalizeMaxToolCalls returns a sane default when the provided value is invalid.
func normalizeMaxToolCalls(n int) int {
	if n <= 0 {
		return DefaultMaxToolCalls
	}
	return n
}

// checkAndMarkToolLimit marks the state once the tool call budget is spent.
// Returns true only on the call that marks it.
func checkAndMarkToolLimit(state *model.ExtractionState, max int) bool {
	max = normalizeMaxToolCalls(max)
	if !state.ToolCallLimitReached && state.ToolCallCount >= max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}

// incrementToolCallAndCheck counts one tool round and reports whether the
// budget is now exceeded.
func incrementToolCallAndCheck(state *model.ExtractionState, max int) bool {
	max = normalizeMaxToolCalls(max)
	state.ToolCallCount++
	if state.ToolCallCount > max {
		state.ToolCallLimitReached = true
		return true
	}
	return false
}
