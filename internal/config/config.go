// Package config reads process settings from the environment (and a .env
// file loaded by the root command).
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/earthback/loraprep/internal/gemini"
	"github.com/earthback/loraprep/internal/ollama"
	"github.com/earthback/loraprep/internal/openai"
	"github.com/earthback/loraprep/internal/providers"
)

// Settings holds the application configuration.
type Settings struct {
	Profile string `envconfig:"LORAPREP_PROFILE" default:"hempcrete"`

	PexelsKey  string `envconfig:"PEXELS_API_KEY"`
	PixabayKey string `envconfig:"PIXABAY_API_KEY"`

	ComfyURL string `envconfig:"COMFY_URL" default:"http://127.0.0.1:8188"`

	CaptionProvider string `envconfig:"CAPTION_PROVIDER" default:"ollama"`
	OllamaURL       string `envconfig:"OLLAMA_URL" default:"http://localhost:11434"`
	OllamaModel     string `envconfig:"OLLAMA_MODEL" default:"mistral-small3.2:24b"`
	OpenAIKey       string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel     string `envconfig:"OPENAI_MODEL" default:"gpt-4o"`
	GeminiKey       string `envconfig:"GEMINI_API_KEY"`
	GeminiModel     string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`

	ServeAddr string `envconfig:"LORAPREP_ADDR" default:":8888"`
}

// Load reads configuration from environment variables.
func Load() (*Settings, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &s, nil
}

// Provider returns the vision provider and its model for name, falling back
// to CAPTION_PROVIDER when name is empty. model overrides the provider's
// configured default when set.
func (s *Settings) Provider(name, model string) (providers.Provider, string, error) {
	if name == "" {
		name = s.CaptionProvider
	}

	switch strings.ToLower(name) {
	case "ollama":
		return ollama.New(s.OllamaURL), or(model, s.OllamaModel), nil
	case "openai":
		if s.OpenAIKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY not set")
		}
		return openai.New(s.OpenAIKey), or(model, s.OpenAIModel), nil
	case "gemini":
		if s.GeminiKey == "" {
			return nil, "", fmt.Errorf("GEMINI_API_KEY not set")
		}
		return gemini.New(s.GeminiKey), or(model, s.GeminiModel), nil
	default:
		return nil, "", fmt.Errorf("unsupported provider: %s", name)
	}
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
