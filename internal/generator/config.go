// Package generator selects and constructs the chat-model backend that
// answers knowledge-base questions, and adapts it to the kb.Generator
// interface. Supported backends: Ollama, OpenAI, Azure OpenAI, Google Gemini.
package generator

import (
	"fmt"
	"strings"
)

// Backend enumerates the supported chat inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// ProviderOllama holds Ollama-specific settings.
type ProviderOllama struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the chat model name (e.g. "llama3").
	Model string
}

// ProviderOpenAI holds OpenAI-specific settings.
type ProviderOpenAI struct {
	// APIKey is the OpenAI Bearer token.
	APIKey string
	// Model is the chat model name (e.g. "gpt-4o").
	Model string
}

// ProviderAzureOpenAI holds Azure OpenAI-specific settings.
type ProviderAzureOpenAI struct {
	// APIKey is the api-key header value.
	APIKey string
	// Endpoint is the resource endpoint (e.g. "https://my.openai.azure.com").
	Endpoint string
	// Deployment is the deployment name to address.
	Deployment string
	// APIVersion is the REST API version (e.g. "2024-02-01").
	APIVersion string
}

// ProviderGemini holds Google Gemini-specific settings.
type ProviderGemini struct {
	// APIKey is the AI Studio API key.
	APIKey string
	// Model is the chat model name (e.g. "gemini-1.5-pro").
	Model string
}

// SharedTuning holds generation parameters shared across backends.
type SharedTuning struct {
	// MaxTokens caps the number of tokens generated per response.
	MaxTokens int
	// Temperature controls response randomness (0.0–1.0).
	Temperature float32
}

// Config holds all generator-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the section matching
// Backend is consulted.
type Config struct {
	Backend     Backend
	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Gemini      ProviderGemini
	Tuning      SharedTuning
}

// Validate checks that the section selected by Backend carries everything its
// factory needs. Error messages name the environment variable an operator
// would set to fix the problem.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Model == "" {
			return fmt.Errorf("generator: OLLAMA_MODEL is required for the ollama backend")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("generator: OPENAI_API_KEY is required for the openai backend")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("generator: OPENAI_MODEL is required for the openai backend")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("generator: AZURE_OPENAI_API_KEY is required for the azure backend")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("generator: AZURE_OPENAI_ENDPOINT is required for the azure backend")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("generator: AZURE_OPENAI_DEPLOYMENT is required for the azure backend")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("generator: GOOGLE_API_KEY is required for the gemini backend")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("generator: GEMINI_MODEL is required for the gemini backend")
		}
	default:
		return fmt.Errorf("generator: unknown backend %q — valid values: ollama, openai, azure, gemini", c.Backend)
	}
	return nil
}

// azureReasoningPrefixes lists deployment-name prefixes of Azure models that
// reject the temperature parameter (o-series and codex-class).
var azureReasoningPrefixes = []string{"o1", "o3", "o4", "codex"}

// isAzureReasoningModel reports whether the Azure deployment name identifies
// a reasoning model. The prefix must start the name, either standing alone or
// followed by a dash, so "gpt-4o" and "gpt-5.2-codex" do not match.
func isAzureReasoningModel(deployment string) bool {
	lower := strings.ToLower(deployment)
	for _, prefix := range azureReasoningPrefixes {
		if lower == prefix || strings.HasPrefix(lower, prefix+"-") {
			return true
		}
	}
	return false
}
