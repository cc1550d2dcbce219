package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	botmodel "github.com/parleyhq/parley/internal/model/bot"
)

const openAIProviderID = "openai"

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// Preference order used when the backend cannot be queried.
var defaultOpenAIModels = []string{
	"gpt-4o",
	"gpt-4o-mini",
	"gpt-4-turbo",
	"gpt-4",
	"gpt-3.5-turbo",
}

// OpenAIOptions configures the OpenAI adapter.
type OpenAIOptions struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
}

// OpenAI adapts the OpenAI chat completions backend through eino.
type OpenAI struct {
	chatModel  model.BaseChatModel
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewOpenAI builds the adapter. One instance serves any number of bots and
// models; the model id is supplied per call.
func NewOpenAI(ctx context.Context, opts OpenAIOptions) (*OpenAI, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	defaultModel := opts.DefaultModel
	if defaultModel == "" {
		defaultModel = defaultOpenAIModels[0]
	}

	chatModel, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		APIKey:  opts.APIKey,
		BaseURL: baseURL,
		Model:   defaultModel,
		Timeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create openai chat model: %w", err)
	}

	return &OpenAI{
		chatModel:  chatModel,
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (p *OpenAI) ID() string { return openAIProviderID }

func (p *OpenAI) ConfigSchema() []botmodel.SchemaField {
	return []botmodel.SchemaField{
		{Name: "name", Type: botmodel.FieldString, DefaultValue: "chat-gpt", Hidden: true},
		{Name: "color", Type: botmodel.FieldString, DefaultValue: "#10A37F", Hidden: true},
		{Name: "temperature", Type: botmodel.FieldNumber, DefaultValue: 0.7, Min: 0.1, Max: 1, Step: 0.1},
		{Name: "context", Type: botmodel.FieldString, DefaultValue: "", Min: 10, Max: 500},
	}
}

// SendChatCompletion performs a single-turn completion. The optional "context"
// config field becomes the system message.
func (p *OpenAI) SendChatCompletion(ctx context.Context, req Request) (Completion, error) {
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

// AvailableModels lists models from the backend and intersects them with the
// supported set, preserving preference order. Discovery is advisory: any
// failure falls back to the default list.
func (p *OpenAI) AvailableModels(ctx context.Context) []string {
	available, err := p.listModels(ctx)
	if err != nil {
		log.Printf("[provider] openai model listing failed: %v", err)
		return defaultOpenAIModels
	}

	supported := make([]string, 0, len(defaultOpenAIModels))
	for _, id := range defaultOpenAIModels {
		if _, ok := available[id]; ok {
			supported = append(supported, id)
		}
	}
	if len(supported) == 0 {
		return defaultOpenAIModels
	}
	return supported
}

// listModels queries GET /models directly; eino does not expose listing.
func (p *OpenAI) listModels(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	ids := make(map[string]struct{}, len(payload.Data))
	for _, m := range payload.Data {
		ids[m.ID] = struct{}{}
	}
	return ids, nil
}
