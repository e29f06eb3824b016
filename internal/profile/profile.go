// Package profile loads dataset profiles: the per-dataset data (caption
// vocabulary, search terms, queue plan, thresholds) that drives every
// command.
package profile

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/earthback/loraprep/internal/caption"
	"github.com/earthback/loraprep/internal/collect"
	"github.com/earthback/loraprep/internal/crop"
	"github.com/earthback/loraprep/internal/jobs"
	"github.com/earthback/loraprep/internal/quality"
)

// DefaultName is used when no profile is given.
const DefaultName = "hempcrete"

//go:embed builtin/*.yaml
var builtin embed.FS

// Dataset names the on-disk layout.
type Dataset struct {
	Root string `yaml:"root"`
}

// Raw is where collectors write, one subfolder per source.
func (d Dataset) Raw() string { return filepath.Join(d.Root, "raw") }

// Curated holds the fixed-size training images and their captions.
func (d Dataset) Curated() string { return filepath.Join(d.Root, "curated") }

// Curate holds the curation thresholds.
type Curate struct {
	MinShortSide int     `yaml:"min_short_side"`
	MaxAspect    float64 `yaml:"max_aspect"`
	Size         int     `yaml:"size"`
	Target       int     `yaml:"target"`
}

// Filter returns the quality filter for these thresholds.
func (c Curate) Filter() quality.Filter {
	f := quality.New()
	if c.MinShortSide > 0 {
		f.MinShortSide = c.MinShortSide
	}
	if c.MaxAspect > 0 {
		f.MaxAspect = c.MaxAspect
	}
	return f
}

// Caption is the vocabulary plus whether captions carry the trigger by
// default.
type Caption struct {
	caption.Vocabulary `yaml:",inline"`
	UseTrigger         *bool `yaml:"use_trigger,omitempty"`
}

// TriggerByDefault is true unless the profile turns it off.
func (c Caption) TriggerByDefault() bool {
	return c.UseTrigger == nil || *c.UseTrigger
}

// Profile is one dataset's configuration.
type Profile struct {
	Name    string        `yaml:"name"`
	Dataset Dataset       `yaml:"dataset"`
	Curate  Curate        `yaml:"curate"`
	Caption Caption       `yaml:"caption"`
	Collect collect.Terms `yaml:"collect"`
	Queue   jobs.Plan     `yaml:"queue"`
}

// Builtins lists the embedded profile names.
func Builtins() []string {
	entries, err := builtin.ReadDir("builtin")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Load reads a profile from a YAML file path, or by builtin name.
func Load(nameOrPath string) (*Profile, error) {
	if nameOrPath == "" {
		nameOrPath = DefaultName
	}

	var data []byte
	var err error
	if strings.HasSuffix(nameOrPath, ".yaml") || strings.HasSuffix(nameOrPath, ".yml") {
		data, err = os.ReadFile(nameOrPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read profile: %w", err)
		}
	} else {
		data, err = builtin.ReadFile("builtin/" + nameOrPath + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("unknown profile %q (builtin: %s)", nameOrPath, strings.Join(Builtins(), ", "))
		}
	}

	return Parse(data)
}

// Parse decodes and validates a profile, filling defaults.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	if p.Name == "" {
		return nil, fmt.Errorf("profile has no name")
	}
	if p.Dataset.Root == "" {
		p.Dataset.Root = "dataset-" + p.Name
	}
	if p.Curate.Size <= 0 {
		p.Curate.Size = crop.DefaultSize
	}
	if err := p.Caption.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.Name, err)
	}
	return &p, nil
}

// Marshal renders the profile as YAML, suitable as a starting point for a
// custom profile file.
func (p *Profile) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}
