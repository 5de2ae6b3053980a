package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// GetExtractionTools returns the tools the extraction model may call.
func GetExtractionTools(catalog Searcher) []tool.BaseTool {
	return []tool.BaseTool{
		createSearchCatalogTool(catalog),
	}
}

// GetToolInfos collects tool schemas for binding to a chat model.
func GetToolInfos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
