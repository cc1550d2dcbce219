package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	botmodel "github.com/parleyhq/parley/internal/model/bot"
)

const arkProviderID = "ark"

// Ark exposes no public model-listing endpoint, so the list is fixed.
var defaultArkModels = []string{
	"doubao-pro-32k",
	"doubao-lite-32k",
}

// ArkOptions configures the Ark (Volcengine) adapter.
type ArkOptions struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	BaseURL      string
	Region       string
	DefaultModel string
	Timeout      time.Duration
}

// Ark adapts the Volcengine Ark chat backend through eino.
type Ark struct {
	chatModel model.BaseChatModel
	timeout   time.Duration
}

// NewArk builds the adapter.
func NewArk(ctx context.Context, opts ArkOptions) (*Ark, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	defaultModel := opts.DefaultModel
	if defaultModel == "" {
		defaultModel = defaultArkModels[0]
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   opts.BaseURL,
		Region:    opts.Region,
		APIKey:    opts.APIKey,
		AccessKey: opts.AccessKey,
		SecretKey: opts.SecretKey,
		Model:     defaultModel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}

	return &Ark{chatModel: chatModel, timeout: timeout}, nil
}

func (p *Ark) ID() string { return arkProviderID }

func (p *Ark) ConfigSchema() []botmodel.SchemaField {
	return []botmodel.SchemaField{
		{Name: "name", Type: botmodel.FieldString, DefaultValue: "doubao", Hidden: true},
		{Name: "color", Type: botmodel.FieldString, DefaultValue: "#1664FF", Hidden: true},
		{Name: "temperature", Type: botmodel.FieldNumber, DefaultValue: 0.7, Min: 0.1, Max: 1, Step: 0.1},
		{Name: "context", Type: botmodel.FieldString, DefaultValue: "", Min: 10, Max: 500},
	}
}

func (p *Ark) SendChatCompletion(ctx context.Context, req Request) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := make([]*schema.Message, 0, 2)
	if system := configString(req.Config, "context"); system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	messages = append(messages, schema.UserMessage(req.Prompt))

	opts := []model.Option{model.WithModel(req.ModelID)}
	if temperature, ok := configFloat(req.Config, "temperature"); ok {
		opts = append(opts, model.WithTemperature(float32(temperature)))
	}

	out, err := p.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return Completion{}, Classify(err)
	}
	if out == nil || out.Content == "" {
		return Completion{}, newError(CategoryUnknown, "no response content received", nil)
	}

	completion := Completion{Content: out.Content, ModelID: req.ModelID}
	if out.ResponseMeta != nil {
		completion.FinishReason = out.ResponseMeta.FinishReason
	}
	return completion, nil
}

func (p *Ark) AvailableModels(context.Context) []string {
	models := make([]string, len(defaultArkModels))
	copy(models, defaultArkModels)
	return models
}
