package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every configuration section of the service.
type Config struct {
	Server ServerConfig
	Chat   ChatConfig
	OpenAI OpenAIConfig
	Ark    ArkConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	openai, err := loadOpenAIConfig()
	if err != nil {
		return nil, err
	}

	ark := loadArkConfig()

	return &Config{Server: server, Chat: chat, OpenAI: openai, Ark: ark}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// ChatConfig holds session message policy.
type ChatConfig struct {
	MaxMessageLength int
}

func loadChatConfig() (ChatConfig, error) {
	maxLen := 1000
	if override, err := parseOptionalIntEnv("CHAT_MAX_MESSAGE_LENGTH"); err != nil {
		return ChatConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return ChatConfig{}, fmt.Errorf("CHAT_MAX_MESSAGE_LENGTH must be positive, got %d", *override)
		}
		maxLen = *override
	}
	return ChatConfig{MaxMessageLength: maxLen}, nil
}

// OpenAIConfig describes the OpenAI completion backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Enabled reports whether credentials were provided.
func (c OpenAIConfig) Enabled() bool { return c.APIKey != "" }

func loadOpenAIConfig() (OpenAIConfig, error) {
	timeout, err := parseOptionalIntEnv("OPENAI_TIMEOUT")
	if err != nil {
		return OpenAIConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	return OpenAIConfig{
		APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL: getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// ArkConfig describes the Volcengine Ark completion backend.
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
	Timeout   time.Duration
}

// Enabled reports whether usable credentials were provided.
func (c ArkConfig) Enabled() bool {
	return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
}

func loadArkConfig() ArkConfig {
	return ArkConfig{
		APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:     getEnvOrDefault("ARK_MODEL", "doubao-pro-32k"),
		BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Timeout:   30 * time.Second,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
