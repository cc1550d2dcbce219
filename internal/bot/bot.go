package bot

import (
	"context"
	"log"
	"sort"
	"time"

	botmodel "github.com/parleyhq/parley/internal/model/bot"
	"github.com/parleyhq/parley/internal/provider"
)

// Reply is the normalized outcome of one bot call. Success false means the
// provider call failed and Content carries a user-safe substitute message;
// callers never see the provider error itself.
type Reply struct {
	BotName        string
	Color          string
	Content        string
	ProcessingTime int64
	Success        bool
}

// Bot binds a provider, a model id and a normalized configuration.
type Bot struct {
	provider provider.Provider
	modelID  string
	config   map[string]any
}

// New builds a bot, validating the raw configuration fields against the
// provider's schema: unknown fields are dropped with a warning, missing
// fields receive the schema default.
func New(p provider.Provider, modelID string, fields []botmodel.ConfigField) *Bot {
	return &Bot{
		provider: p,
		modelID:  modelID,
		config:   normalizeConfig(p.ConfigSchema(), fields),
	}
}

// ProviderID returns the bound provider's identifier.
func (b *Bot) ProviderID() string { return b.provider.ID() }

// Name returns the display name from the bot configuration.
func (b *Bot) Name() string {
	if name, ok := b.config["name"].(string); ok {
		return name
	}
	return b.provider.ID()
}

// Color returns the display color from the bot configuration.
func (b *Bot) Color() string {
	color, _ := b.config["color"].(string)
	return color
}

// SendMessage performs one completion call. It never returns an error for
// provider-side failures: those are logged and converted to a degraded reply.
func (b *Bot) SendMessage(ctx context.Context, prompt string) Reply {
	start := time.Now()

	completion, err := b.provider.SendChatCompletion(ctx, provider.Request{
		ModelID: b.modelID,
		Prompt:  prompt,
		Config:  b.config,
	})
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		perr := provider.Classify(err)
		log.Printf("[bot] provider=%s model=%s call failed: %v", b.provider.ID(), b.modelID, perr)
		return Reply{
			BotName:        b.Name(),
			Color:          b.Color(),
			Content:        safeMessage(perr.Category),
			ProcessingTime: elapsed,
		}
	}

	return Reply{
		BotName:        b.Name(),
		Color:          b.Color(),
		Content:        completion.Content,
		ProcessingTime: elapsed,
		Success:        true,
	}
}

// Snapshot returns the persisted form of this bot's current configuration.
func (b *Bot) Snapshot() botmodel.Snapshot {
	fields := make([]botmodel.ConfigField, 0, len(b.config))
	for name, value := range b.config {
		fields = append(fields, botmodel.ConfigField{Name: name, Value: value})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	return botmodel.Snapshot{
		ProviderID: b.provider.ID(),
		ModelID:    b.modelID,
		Config:     fields,
	}
}

func normalizeConfig(schema []botmodel.SchemaField, fields []botmodel.ConfigField) map[string]any {
	known := make(map[string]struct{}, len(schema))
	for _, f := range schema {
		known[f.Name] = struct{}{}
	}

	config := make(map[string]any, len(schema))
	for _, f := range fields {
		if _, ok := known[f.Name]; !ok {
			log.Printf("[bot] dropping unknown config field: %s", f.Name)
			continue
		}
		config[f.Name] = f.Value
	}

	for _, f := range schema {
		if _, ok := config[f.Name]; !ok && f.DefaultValue != nil {
			config[f.Name] = f.DefaultValue
		}
	}

	return config
}

// safeMessage maps a provider failure category to the generic text delivered
// in a degraded reply.
func safeMessage(category provider.Category) string {
	switch category {
	case provider.CategoryRateLimit:
		return "I'm currently busy. Please try again in a moment."
	case provider.CategoryTimeout:
		return "I'm taking too long to respond. Please try again."
	case provider.CategoryNetwork:
		return "I'm having connection issues. Please try again."
	case provider.CategoryInvalidRequest:
		return "I couldn't understand your request. Please try rephrasing."
	default:
		return "I'm temporarily unavailable. Please try again later."
	}
}
