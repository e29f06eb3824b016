package jobs

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/earthback/loraprep/internal/comfy"
)

// Kind is the family a planned job belongs to. Each kind has its own seed
// layout.
type Kind string

const (
	KindAngle    Kind = "angle"
	KindScenario Kind = "scenario"
	KindScene    Kind = "scene"
	KindGroup    Kind = "group"
)

// ParseKind validates a kind name from the command line.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAngle, KindScenario, KindScene, KindGroup:
		return k, nil
	default:
		return "", fmt.Errorf("unknown job kind %q (angle, scenario, scene, group)", s)
	}
}

// Item is a single fixed prompt with its output prefix.
type Item struct {
	Prefix string `yaml:"prefix"`
	Prompt string `yaml:"prompt"`
}

// Subject is a recurring character whose identity is held by a trigger
// token, a description and a base seed.
type Subject struct {
	Name     string `yaml:"name"`
	Trigger  string `yaml:"trigger"`
	Desc     string `yaml:"desc"`
	Location string `yaml:"location"`
	Light    string `yaml:"light"`
	Seed     int64  `yaml:"seed"`
	Scenes   []Item `yaml:"scenes"`
}

// Angle is a pose variant rendered for every subject.
type Angle struct {
	Key    string `yaml:"key"`
	Offset int64  `yaml:"offset"`
	Prompt string `yaml:"prompt"`
}

// Scenario is a situational prompt rendered for every subject.
type Scenario struct {
	Key    string `yaml:"key"`
	Prompt string `yaml:"prompt"`
}

// Group is a set of prompts with no subject, such as material close-ups.
type Group struct {
	Name     string `yaml:"name"`
	Negative string `yaml:"negative"`
	Items    []Item `yaml:"items"`
}

// Plan is the full description of what a dataset can queue.
type Plan struct {
	Params          comfy.Params `yaml:"params"`
	Width           int          `yaml:"width"`
	Height          int          `yaml:"height"`
	Negative        string       `yaml:"negative"`
	AnglePrefix     string       `yaml:"angle_prefix"`
	ReferencePrefix string       `yaml:"reference_prefix"`
	ScenarioPrefix  string       `yaml:"scenario_prefix"`
	Subjects        []Subject    `yaml:"subjects"`
	Angles          []Angle      `yaml:"angles"`
	Scenarios       []Scenario   `yaml:"scenarios"`
	Groups          []Group      `yaml:"groups"`
}

const (
	defaultAnglePrefix     = "T4-chars-{name}-face-{key}"
	defaultReferencePrefix = "T4-chars-{name}-pulid-{key}"
	defaultScenarioPrefix  = "T4-chars-{name}-{key}"
)

// Options select and shape the jobs expanded from a plan.
type Options struct {
	Loops     int
	BatchSize int
	Reseed    bool
	Subject   string
	Group     string
	// Kinds limits expansion; empty means all kinds.
	Kinds []Kind
	// References maps subject name to an uploaded reference image. Angle jobs
	// for those subjects carry the reference.
	References map[string]string
	Weight     float64
}

// Planned is one job ready to submit.
type Planned struct {
	Kind  Kind
	Label string
	Loop  int
	Job   comfy.Job
}

func (o Options) wants(k Kind) bool {
	if len(o.Kinds) == 0 {
		return true
	}
	for _, want := range o.Kinds {
		if want == k {
			return true
		}
	}
	return false
}

// SubjectNames lists the plan's subjects.
func (p Plan) SubjectNames() []string {
	names := make([]string, len(p.Subjects))
	for i, s := range p.Subjects {
		names[i] = s.Name
	}
	return names
}

// GroupNames lists the plan's groups.
func (p Plan) GroupNames() []string {
	names := make([]string, len(p.Groups))
	for i, g := range p.Groups {
		names[i] = g.Name
	}
	return names
}

// Expand turns the plan into an ordered job list: per loop, each subject's
// angles, scenarios and scenes, then each group. rng is used only when
// Reseed is set.
func (p Plan) Expand(opts Options, rng *rand.Rand) ([]Planned, error) {
	if opts.Loops <= 0 {
		opts.Loops = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}

	subjects, groups, err := p.selected(opts)
	if err != nil {
		return nil, err
	}

	seed := func(rule SeedRule, base int64, index, loop int) int64 {
		if opts.Reseed {
			return RandomSeed(rng)
		}
		return rule.Seed(base, index, loop)
	}

	var planned []Planned
	for loop := 0; loop < opts.Loops; loop++ {
		for _, s := range subjects {
			if opts.wants(KindAngle) {
				for _, a := range p.Angles {
					ref := opts.References[s.Name]
					prefix := or(p.AnglePrefix, defaultAnglePrefix)
					if ref != "" {
						prefix = or(p.ReferencePrefix, defaultReferencePrefix)
					}
					job := p.job(s, a.Prompt, expand(prefix, s, a.Key), opts)
					job.Seed = seed(AngleRule, s.Seed+a.Offset, 0, loop)
					job.Reference = ref
					job.Weight = opts.Weight
					planned = append(planned, Planned{Kind: KindAngle, Label: s.Name, Loop: loop, Job: job})
				}
			}
			if opts.wants(KindScenario) {
				for i, sc := range p.Scenarios {
					job := p.job(s, sc.Prompt, expand(or(p.ScenarioPrefix, defaultScenarioPrefix), s, sc.Key), opts)
					job.Seed = seed(ScenarioRule, s.Seed, i, loop)
					planned = append(planned, Planned{Kind: KindScenario, Label: s.Name, Loop: loop, Job: job})
				}
			}
			if opts.wants(KindScene) {
				for i, item := range s.Scenes {
					job := p.job(s, item.Prompt, expand(item.Prefix, s, ""), opts)
					job.Seed = seed(SceneRule, s.Seed, i, loop)
					planned = append(planned, Planned{Kind: KindScene, Label: s.Name, Loop: loop, Job: job})
				}
			}
		}

		if !opts.wants(KindGroup) {
			continue
		}
		for _, g := range groups {
			for i, item := range g.Items {
				job := p.job(Subject{}, item.Prompt, item.Prefix, opts)
				if g.Negative != "" {
					job.Negative = g.Negative
				}
				job.Seed = seed(GroupRule, GroupBase(g.Name), i, loop)
				planned = append(planned, Planned{Kind: KindGroup, Label: g.Name, Loop: loop, Job: job})
			}
		}
	}
	return planned, nil
}

func (p Plan) selected(opts Options) ([]Subject, []Group, error) {
	var subjects []Subject
	var groups []Group

	if opts.Subject == "" && opts.Group == "" {
		return p.Subjects, p.Groups, nil
	}

	if opts.Subject != "" {
		for _, s := range p.Subjects {
			if strings.EqualFold(s.Name, opts.Subject) {
				subjects = append(subjects, s)
			}
		}
		if len(subjects) == 0 {
			return nil, nil, fmt.Errorf("subject %q not found (available: %s)", opts.Subject, strings.Join(p.SubjectNames(), ", "))
		}
	}

	if opts.Group != "" {
		for _, g := range p.Groups {
			if strings.EqualFold(g.Name, opts.Group) {
				groups = append(groups, g)
			}
		}
		if len(groups) == 0 {
			return nil, nil, fmt.Errorf("group %q not found (available: %s)", opts.Group, strings.Join(p.GroupNames(), ", "))
		}
	}

	return subjects, groups, nil
}

func (p Plan) job(s Subject, prompt, prefix string, opts Options) comfy.Job {
	return comfy.Job{
		Positive:  expand(prompt, s, ""),
		Negative:  p.Negative,
		Prefix:    prefix,
		Width:     p.Width,
		Height:    p.Height,
		BatchSize: opts.BatchSize,
	}
}

// expand substitutes subject placeholders in a prompt or prefix template.
func expand(tmpl string, s Subject, key string) string {
	return strings.NewReplacer(
		"{trigger}", s.Trigger,
		"{desc}", s.Desc,
		"{name}", s.Name,
		"{location}", s.Location,
		"{light}", s.Light,
		"{key}", key,
	).Replace(tmpl)
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
