package caption

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/earthback/loraprep/internal/providers"
)

func testVocabulary() Vocabulary {
	return Vocabulary{
		Trigger:          "EBHEMPCRETE",
		TriggerSeparator: ", ",
		Template:         "{state}, {context}, {light}",
		Slots: map[string][]string{
			"state":   {"cured hempcrete wall", "hempcrete in formwork"},
			"context": {"construction site", "workshop setting"},
			"light":   {"natural light", "overcast daylight"},
		},
		Rules: []Rule{
			{Keywords: []string{"hurd", "shiv"}, Slot: "state", Fragment: "loose hemp hurd"},
			{Keywords: []string{"mix"}, Slot: "state", Fragment: "mixing hempcrete"},
			{Keywords: []string{"form", "tamp"}, Slot: "state", Fragment: "tamped into formwork"},
		},
		BlendPrefix: "hempcrete building material",
	}
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestRuleOverride(t *testing.T) {
	v := testVocabulary()

	tests := []struct {
		name     string
		file     string
		expected string
	}{
		{name: "first rule", file: "curated_0001_hemp_HURD_pile.jpg", expected: "loose hemp hurd"},
		{name: "table order wins", file: "curated_0002_shiv_mix.jpg", expected: "loose hemp hurd"},
		{name: "later rule", file: "curated_0003_mixer.jpg", expected: "mixing hempcrete"},
		{name: "no match", file: "curated_0004_wall.jpg", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := v.Override("state", tt.file)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestTemplateCaption(t *testing.T) {
	tmpl := NewTemplate(testVocabulary(), newRand(1), true)

	got, err := tmpl.Caption(context.Background(), "/x/curated_0007_hurd.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "EBHEMPCRETE, loose hemp hurd, ") {
		t.Errorf("Expected trigger and rule fragment, got %q", got)
	}
	if parts := strings.Split(got, ", "); len(parts) != 4 {
		t.Errorf("Expected 4 comma separated parts, got %q", got)
	}
}

func TestTemplateDeterministic(t *testing.T) {
	a := NewTemplate(testVocabulary(), newRand(42), false)
	b := NewTemplate(testVocabulary(), newRand(42), false)

	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"} {
		x, _ := a.Caption(context.Background(), name)
		y, _ := b.Caption(context.Background(), name)
		if x != y {
			t.Errorf("Expected same caption for same seed, got %q and %q", x, y)
		}
		if strings.Contains(x, "EBHEMPCRETE") {
			t.Errorf("Expected no trigger, got %q", x)
		}
	}
}

func TestWithTrigger(t *testing.T) {
	v := testVocabulary()

	if got := v.WithTrigger("a wall"); got != "EBHEMPCRETE, a wall" {
		t.Errorf("Expected prefixed caption, got %q", got)
	}
	if got := v.WithTrigger("EBHEMPCRETE, a wall"); got != "EBHEMPCRETE, a wall" {
		t.Errorf("Expected caption unchanged, got %q", got)
	}

	v.Trigger = ""
	if got := v.WithTrigger("a wall"); got != "a wall" {
		t.Errorf("Expected no trigger, got %q", got)
	}

	printer := Vocabulary{Trigger: "EB3DPRINTER", TriggerSeparator: " "}
	if got := printer.WithTrigger("a desktop FDM 3D FDM printer"); got != "EB3DPRINTER a desktop FDM 3D FDM printer" {
		t.Errorf("Expected space separated trigger, got %q", got)
	}
}

func TestValidate(t *testing.T) {
	if err := testVocabulary().Validate(); err != nil {
		t.Errorf("Expected valid vocabulary, got %v", err)
	}

	v := testVocabulary()
	v.Template = "{state}, {weather}"
	if err := v.Validate(); err == nil {
		t.Error("Expected error for a slot without options")
	}

	v = testVocabulary()
	v.Rules = append(v.Rules, Rule{Keywords: []string{"x"}, Slot: "angle", Fragment: "y"})
	if err := v.Validate(); err == nil {
		t.Error("Expected error for a rule targeting an unknown slot")
	}
}

func TestModelCaption(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "curated_0000_x.jpg")
	if err := os.WriteFile(img, []byte("\xff\xd8\xff fake jpeg"), 0644); err != nil {
		t.Fatal(err)
	}

	var seen providers.Config
	provider := providers.ProviderFunc(func(ctx context.Context, cfg providers.Config) (string, error) {
		seen = cfg
		return "  A Pale Wall In Sunlight. ", nil
	})

	fallback := NewTemplate(testVocabulary(), newRand(1), true)
	m := NewModel(provider, providers.Config{Model: "llava"}, testVocabulary(), fallback, true)

	got, err := m.Caption(context.Background(), img)
	if err != nil {
		t.Fatal(err)
	}
	if got != "EBHEMPCRETE, hempcrete building material, a pale wall in sunlight" {
		t.Errorf("Unexpected blended caption %q", got)
	}
	if len(seen.Image) == 0 || seen.Prompt != DefaultModelPrompt {
		t.Errorf("Expected image and default prompt sent, got %+v", seen)
	}
	if seen.MIMEType != "image/jpeg" {
		t.Errorf("Expected detected jpeg, got %s", seen.MIMEType)
	}
}

func TestModelFallback(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "curated_0000_mix.jpg")
	if err := os.WriteFile(img, []byte("jpeg"), 0644); err != nil {
		t.Fatal(err)
	}

	provider := providers.ProviderFunc(func(ctx context.Context, cfg providers.Config) (string, error) {
		return "", errors.New("model offline")
	})
	fallback := NewTemplate(testVocabulary(), newRand(1), true)
	m := NewModel(provider, providers.Config{}, testVocabulary(), fallback, true)

	got, err := m.Caption(context.Background(), img)
	if err != nil {
		t.Fatalf("Expected fallback instead of error, got %v", err)
	}
	if !strings.HasPrefix(got, "EBHEMPCRETE, mixing hempcrete") {
		t.Errorf("Expected template caption, got %q", got)
	}
	if m.Fallbacks != 1 {
		t.Errorf("Expected 1 fallback, got %d", m.Fallbacks)
	}
}

func TestBlend(t *testing.T) {
	if got := Blend("", "Hello."); got != "hello" {
		t.Errorf("Expected hello, got %q", got)
	}
	if got := Blend("a desktop FDM 3D FDM printer", "Printing A Vase"); got != "a desktop FDM 3D FDM printer, printing a vase" {
		t.Errorf("Unexpected blend %q", got)
	}
}
