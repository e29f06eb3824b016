package config

import (
	"testing"

	"github.com/earthback/loraprep/internal/gemini"
	"github.com/earthback/loraprep/internal/ollama"
	"github.com/earthback/loraprep/internal/openai"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"LORAPREP_PROFILE", "COMFY_URL", "CAPTION_PROVIDER", "OLLAMA_URL", "OLLAMA_MODEL", "PEXELS_API_KEY"} {
		t.Setenv(key, "")
	}

	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.Profile != "hempcrete" {
		t.Errorf("Expected hempcrete, got %s", s.Profile)
	}
	if s.ComfyURL != "http://127.0.0.1:8188" {
		t.Errorf("Expected default job server URL, got %s", s.ComfyURL)
	}
	if s.CaptionProvider != "ollama" {
		t.Errorf("Expected ollama, got %s", s.CaptionProvider)
	}
	if s.PexelsKey != "" {
		t.Errorf("Expected no pexels key, got %s", s.PexelsKey)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LORAPREP_PROFILE", "3dprinter")
	t.Setenv("COMFY_URL", "http://gpu-box:8188")
	t.Setenv("PIXABAY_API_KEY", "pix")

	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.Profile != "3dprinter" || s.ComfyURL != "http://gpu-box:8188" || s.PixabayKey != "pix" {
		t.Errorf("Unexpected settings %+v", s)
	}
}

func TestProvider(t *testing.T) {
	s := &Settings{
		CaptionProvider: "ollama",
		OllamaURL:       "http://localhost:11434",
		OllamaModel:     "llava",
		OpenAIKey:       "sk-test",
		OpenAIModel:     "gpt-4o",
		GeminiModel:     "gemini-1.5-flash",
	}

	p, model, err := s.Provider("", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*ollama.Ollama); !ok || model != "llava" {
		t.Errorf("Expected ollama/llava, got %T/%s", p, model)
	}

	p, model, err = s.Provider("OpenAI", "gpt-4o-mini")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*openai.OpenAI); !ok || model != "gpt-4o-mini" {
		t.Errorf("Expected openai/gpt-4o-mini, got %T/%s", p, model)
	}

	if _, _, err := s.Provider("gemini", ""); err == nil {
		t.Error("Expected an error without GEMINI_API_KEY")
	}
	s.GeminiKey = "g"
	p, _, err = s.Provider("gemini", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*gemini.Gemini); !ok {
		t.Errorf("Expected gemini provider, got %T", p)
	}

	if _, _, err := s.Provider("claude", ""); err == nil {
		t.Error("Expected an error for an unsupported provider")
	}
}
