package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/smart-order-intake/server/internal/intake/model"
	logx "github.com/smart-order-intake/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey     string
	BaseURL    string
	Extraction *model.ExtractionModelConfig
}

// NewExtractionChatModel creates the Gemini model used to read order emails.
func NewExtractionChatModel(ctx context.Context, config ChatModelConfig) (*gemini.ChatModel, error) {
	if config.Extraction == nil {
		return nil, fmt.Errorf("extraction model config is nil")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	cfg := &gemini.Config{
		Client:      client,
		Model:       config.Extraction.Model,
		Temperature: &config.Extraction.Temperature,
		MaxTokens:   &config.Extraction.MaxTokens,
	}
	if config.Extraction.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(config.Extraction.ThinkingBudget),
		}
	}

	cm, err := gemini.NewChatModel(ctx, cfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating extraction model")
		return nil, fmt.Errorf("error creating extraction model: %w", err)
	}
	return cm, nil
}

// BindTools binds tool schemas to the extraction model.
func BindTools(cm *gemini.ChatModel, tools []*schema.ToolInfo) error {
	if err := cm.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return fmt.Errorf("failed to bind tools: %w", err)
	}
	logx.Debug().Int("tools", len(tools)).Msg("Successfully bound tools to extraction model")
	return nil
}
