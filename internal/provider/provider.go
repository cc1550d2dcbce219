package provider

import (
	"context"

	botmodel "github.com/parleyhq/parley/internal/model/bot"
)

// Request carries one completion call: the target model, the user prompt and
// the bot's normalized configuration (already validated against the schema).
type Request struct {
	ModelID string
	Prompt  string
	Config  map[string]any
}

// Completion is a normalized successful completion.
type Completion struct {
	Content      string
	ModelID      string
	FinishReason string
}

// Provider wraps one external completion backend. Implementations are
// stateless per call and safe for concurrent use; a single instance may serve
// many bots and models.
type Provider interface {
	// ID returns the stable provider identifier ("openai", "ark").
	ID() string

	// ConfigSchema declares the fields a bot configuration may set.
	ConfigSchema() []botmodel.SchemaField

	// SendChatCompletion performs one completion call. Failures are always a
	// *provider.Error, never a raw transport error.
	SendChatCompletion(ctx context.Context, req Request) (Completion, error)

	// AvailableModels is a best-effort backend query; on failure it returns a
	// fixed, ordered fallback list rather than an error.
	AvailableModels(ctx context.Context) []string
}

// Describe assembles the provider metadata consumed by the session
// preparation flow.
func Describe(ctx context.Context, p Provider) botmodel.ProviderInfo {
	return botmodel.ProviderInfo{
		ProviderID:   p.ID(),
		ModelsList:   p.AvailableModels(ctx),
		ConfigSchema: p.ConfigSchema(),
	}
}

func configString(cfg map[string]any, name string) string {
	if v, ok := cfg[name].(string); ok {
		return v
	}
	return ""
}

func configFloat(cfg map[string]any, name string) (float64, bool) {
	switch v := cfg[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}
