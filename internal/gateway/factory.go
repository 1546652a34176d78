package gateway

import (
	"fmt"
	"os"
)

// NewFromEnv builds a Gateway for the named provider, reading credentials
// from the environment. An empty name selects gemini, the only provider that
// returns inline generated images.
func NewFromEnv(name string) (*Gateway, error) {
	if name == "" {
		name = "gemini"
	}

	switch name {
	case "gemini":
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
		return New(newGeminiClient(apiKey, os.Getenv("GEMINI_BASE_URL"))), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY not set")
		}
		return New(newOpenAIClient(apiKey, os.Getenv("OPENAI_BASE_URL"))), nil

	case "gemini-compat":
		// Gemini over the OpenAI-compatible endpoint. No inline images
		// in responses; useful when the native surface is blocked.
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
		return New(newOpenAIClient(apiKey, geminiCompatBaseURL)), nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
		return New(newAnthropicClient(apiKey)), nil

	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER: %s (supported: gemini, gemini-compat, openai, anthropic)", name)
	}
}
