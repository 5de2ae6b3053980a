package model

import (
	"github.com/cloudwego/eino/schema"
)

// ExtractionState stores per-invocation state for the extraction graph.
// Concurrency model:
//   - Registered as graph local state via compose.WithGenLocalState, so every
//     Invoke gets a fresh value.
//   - Only read or written inside eino state handlers or compose.ProcessState,
//     which serialise access; no mutex is needed.
type ExtractionState struct {
	RequestID            string
	Email                string
	History              []*schema.Message // mutated only inside state handlers
	ToolCallCount        int
	ToolCallLimitReached bool
	ToolCallIDSeq        int // synthesises tool_call_id when the provider omits it

	// Accumulated LLM cost (USD) across model calls for this email
	TotalCostUSD float64
}

// EmailInput is the graph input.
type EmailInput struct {
	RequestID string `json:"request_id"`
	Email     string `json:"email"`
}
