package model

import "time"

// ================ Config ================
type ExtractionModelConfig struct {
	Model        string        `envconfig:"EXTRACTION_MODEL" default:"gemini-2.0-flash"`
	MaxTokens    int           `envconfig:"EXTRACTION_MAX_TOKENS" default:"4000"`
	Temperature  float32       `envconfig:"EXTRACTION_TEMPERATURE" default:"0.1"`
	ToolMaxCalls int           `envconfig:"EXTRACTION_TOOL_MAX_CALLS" default:"6"`
	Timeout      time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"45s"`
	// ThinkingBudget is passed to Gemini; 0 disables thinking output.
	ThinkingBudget int32 `envconfig:"EXTRACTION_THINKING_BUDGET" default:"0"`
}

type BreakerConfig struct {
	MaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5"`
	OpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`
}

type CatalogConfig struct {
	Path string `envconfig:"CATALOG_PATH" default:"information/Product Catalog.csv"`
}

type ServerConfig struct {
	Port            int           `envconfig:"PORT" default:"3001"`
	OrderTTL        time.Duration `envconfig:"ORDER_TTL" default:"24h"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	MaxEmailBytes   int64         `envconfig:"MAX_EMAIL_BYTES" default:"10485760"`
}

type ExportConfig struct {
	TaxRate      float64 `envconfig:"EXPORT_TAX_RATE" default:"0.1"`
	FormTemplate string  `envconfig:"EXPORT_FORM_TEMPLATE" default:"information/sales_order_form_full.pdf"`
}
