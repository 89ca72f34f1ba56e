package generator

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/chatkb/chatkb/internal/kb"
)

// NewFromEnv constructs a kb.Generator by reading provider configuration from
// environment variables. MODEL_PROVIDER selects the backend; each provider
// uses its own native credential env vars.
//
// Environment variables:
//
//	MODEL_PROVIDER              = ollama | openai | azure | gemini (default: ollama)
//
//	Ollama:  OLLAMA_HOST (default: http://localhost:11434), OLLAMA_MODEL (default: llama3)
//	OpenAI:  OPENAI_API_KEY, OPENAI_MODEL (default: gpt-4o)
//	Azure:   AZURE_OPENAI_API_KEY, AZURE_OPENAI_ENDPOINT, AZURE_OPENAI_DEPLOYMENT,
//	         AZURE_OPENAI_API_VERSION (default: 2024-02-01)
//	Gemini:  GOOGLE_API_KEY, GEMINI_MODEL (default: gemini-1.5-pro)
//
//	Shared:  MODEL_MAX_TOKENS (default: 4096), MODEL_TEMPERATURE (default: 0.2)
func NewFromEnv(ctx context.Context) (kb.Generator, error) {
	cfg := &Config{
		Backend: Backend(getEnvOrDefault("MODEL_PROVIDER", string(BackendOllama))),
		Ollama: ProviderOllama{
			Host:  getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"),
			Model: getEnvOrDefault("OLLAMA_MODEL", "llama3"),
		},
		OpenAI: ProviderOpenAI{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		},
		AzureOpenAI: ProviderAzureOpenAI{
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT"),
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		},
		Gemini: ProviderGemini{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-pro"),
		},
		Tuning: SharedTuning{
			MaxTokens:   getEnvInt("MODEL_MAX_TOKENS", 4096),
			Temperature: getEnvFloat32("MODEL_TEMPERATURE", 0.2),
		},
	}

	return New(ctx, cfg)
}

// New constructs a kb.Generator from an explicit Config, delegating to the
// appropriate backend factory function. It validates the config first so
// callers get a clear error at startup rather than on the first question.
func New(ctx context.Context, cfg *Config) (kb.Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		cm  model.ToolCallingChatModel
		err error
	)
	switch cfg.Backend {
	case BackendOllama:
		cm, err = newOllama(ctx, cfg)
	case BackendOpenAI:
		cm, err = newOpenAI(ctx, cfg)
	case BackendAzure:
		cm, err = newAzure(ctx, cfg)
	case BackendGemini:
		cm, err = newGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("generator: unknown backend %q — valid values: ollama, openai, azure, gemini", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return &chatGenerator{model: cm}, nil
}

// chatGenerator adapts an eino ChatModel to the kb.Generator interface.
type chatGenerator struct {
	model model.ToolCallingChatModel
}

// Generate converts the role-tagged messages to the model's message schema,
// runs a single completion, and returns the response text.
func (g *chatGenerator) Generate(ctx context.Context, messages []kb.Message) (string, error) {
	msgs := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case kb.RoleSystem:
			msgs = append(msgs, schema.SystemMessage(m.Content))
		case kb.RoleUser:
			msgs = append(msgs, schema.UserMessage(m.Content))
		case kb.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		default:
			return "", fmt.Errorf("generator: unknown message role %q", m.Role)
		}
	}

	resp, err := g.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generator: generate failed: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("generator: generate returned nil response")
	}
	return resp.Content, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}
