package caption

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/earthback/loraprep/internal/providers"
)

// Strategy produces a caption for one curated image.
type Strategy interface {
	Caption(ctx context.Context, path string) (string, error)
}

// Template builds captions from the vocabulary and filename keywords.
type Template struct {
	vocab      Vocabulary
	rng        *rand.Rand
	useTrigger bool
}

func NewTemplate(vocab Vocabulary, rng *rand.Rand, useTrigger bool) *Template {
	return &Template{vocab: vocab, rng: rng, useTrigger: useTrigger}
}

func (t *Template) Caption(_ context.Context, path string) (string, error) {
	caption := t.vocab.Fill(filepath.Base(path), t.rng)
	if t.useTrigger {
		caption = t.vocab.WithTrigger(caption)
	}
	return caption, nil
}

// Model asks a vision model to describe the image and blends the answer
// with the dataset prefix. Any model failure falls back to the template.
type Model struct {
	provider   providers.Provider
	config     providers.Config
	vocab      Vocabulary
	fallback   Strategy
	useTrigger bool
	// Fallbacks counts images captioned by the template after a model error.
	Fallbacks int
}

func NewModel(provider providers.Provider, config providers.Config, vocab Vocabulary, fallback Strategy, useTrigger bool) *Model {
	if config.Prompt == "" {
		config.Prompt = vocab.ModelPrompt
	}
	if config.Prompt == "" {
		config.Prompt = DefaultModelPrompt
	}
	return &Model{
		provider:   provider,
		config:     config,
		vocab:      vocab,
		fallback:   fallback,
		useTrigger: useTrigger,
	}
}

// DefaultModelPrompt is used when the profile does not set one.
const DefaultModelPrompt = "Describe this photograph in one short sentence for an image caption. Mention the main subject, its state, the lighting and the setting. Do not start with 'a photo of'."

func (m *Model) Caption(ctx context.Context, path string) (string, error) {
	raw, err := m.describe(ctx, path)
	if err != nil {
		m.Fallbacks++
		slog.Warn("Model caption failed, using template", "file", filepath.Base(path), "err", err)
		return m.fallback.Caption(ctx, path)
	}

	caption := Blend(m.vocab.BlendPrefix, raw)
	if m.useTrigger {
		caption = m.vocab.WithTrigger(caption)
	}
	return caption, nil
}

func (m *Model) describe(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	cfg := m.config
	cfg.Image = data
	cfg.MIMEType = http.DetectContentType(data)

	raw, err := m.provider.Describe(ctx, cfg)
	if err != nil {
		return "", err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty description")
	}
	return raw, nil
}

// Blend joins the dataset prefix and a lower-cased model description.
func Blend(prefix, raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	raw = strings.TrimSuffix(raw, ".")
	if prefix == "" {
		return raw
	}
	return prefix + ", " + raw
}
