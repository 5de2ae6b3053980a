package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/extraction_prompt.txt
var extractionSystemPrompt string

// RenderExtractionSystem renders the extraction system prompt via the eino
// prompt component so prompt callbacks fire.
func RenderExtractionSystem(ctx context.Context, toolName string, maxToolCalls int) (string, error) {
	// Replace known tokens only; the template contains JSON braces.
	content := strings.NewReplacer(
		"{tool_name}", toolName,
		"{max_tool_calls}", strconv.Itoa(maxToolCalls),
	).Replace(extractionSystemPrompt)

	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("extraction prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("extraction prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}

// RenderEmailMessage wraps the raw email as the user turn.
func RenderEmailMessage(email string) string {
	return "Email content:\n" + email
}
