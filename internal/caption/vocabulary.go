package caption

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

// Rule maps filename keywords to a fixed fragment for one template slot.
// Rules are tried in order and the first match wins.
type Rule struct {
	Keywords []string `yaml:"keywords"`
	Slot     string   `yaml:"slot"`
	Fragment string   `yaml:"fragment"`
}

// Matches reports whether any keyword occurs in name, case-insensitively.
func (r Rule) Matches(name string) bool {
	lower := strings.ToLower(name)
	for _, k := range r.Keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// Vocabulary is everything the template strategy needs for one dataset.
type Vocabulary struct {
	Trigger string `yaml:"trigger"`
	// TriggerSeparator goes between the trigger and the rest of the caption.
	TriggerSeparator string `yaml:"trigger_separator"`
	// Template holds {slot} placeholders filled from Slots or Rules.
	Template    string              `yaml:"template"`
	Slots       map[string][]string `yaml:"slots"`
	Rules       []Rule              `yaml:"rules"`
	BlendPrefix string              `yaml:"blend_prefix"`
	ModelPrompt string              `yaml:"model_prompt"`
}

var placeholder = regexp.MustCompile(`\{([a-z_]+)\}`)

// Validate checks that every placeholder in the template can be filled.
func (v Vocabulary) Validate() error {
	if v.Template == "" {
		return fmt.Errorf("caption template is empty")
	}
	for _, m := range placeholder.FindAllStringSubmatch(v.Template, -1) {
		slot := m[1]
		if len(v.Slots[slot]) == 0 && !v.hasRuleFor(slot) {
			return fmt.Errorf("caption slot %q has no options", slot)
		}
	}
	for i, r := range v.Rules {
		if !strings.Contains(v.Template, "{"+r.Slot+"}") {
			return fmt.Errorf("rule %d targets slot %q which is not in the template", i, r.Slot)
		}
	}
	return nil
}

func (v Vocabulary) hasRuleFor(slot string) bool {
	for _, r := range v.Rules {
		if r.Slot == slot {
			return true
		}
	}
	return false
}

// Override returns the fragment of the first rule for slot whose keywords
// match name.
func (v Vocabulary) Override(slot, name string) (string, bool) {
	for _, r := range v.Rules {
		if r.Slot == slot && r.Matches(name) {
			return r.Fragment, true
		}
	}
	return "", false
}

// Fill renders the template for name. Slots without a matching rule are
// drawn from rng in template order, so a seeded rng gives repeatable output.
func (v Vocabulary) Fill(name string, rng *rand.Rand) string {
	return placeholder.ReplaceAllStringFunc(v.Template, func(m string) string {
		slot := m[1 : len(m)-1]
		if fragment, ok := v.Override(slot, name); ok {
			return fragment
		}
		options := v.Slots[slot]
		if len(options) == 0 {
			return ""
		}
		return options[rng.IntN(len(options))]
	})
}

// WithTrigger prefixes the trigger token unless caption already has it.
func (v Vocabulary) WithTrigger(caption string) string {
	if v.Trigger == "" || strings.Contains(caption, v.Trigger) {
		return caption
	}
	sep := v.TriggerSeparator
	if sep == "" {
		sep = ", "
	}
	return v.Trigger + sep + caption
}
