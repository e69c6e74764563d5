// Package program loads the fellowship program definition: deadlines, rating
// criterion labels and the option lists shown for each multi-select question.
package program

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sfp-labs/fellowship-portal/internal/application"
)

// Criterion is a self-rating criterion with its display label.
type Criterion struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Program describes one intake of the fellowship.
type Program struct {
	Name      string                `json:"name"`
	Deadlines application.Deadlines `json:"deadlines"`
	Criteria  []Criterion           `json:"criteria"`
	Options   map[string][]string   `json:"options"`
}

// Default returns the built-in program definition.
func Default() *Program {
	return &Program{
		Name:      "Student Fellowship Program",
		Deadlines: application.DefaultDeadlines(),
		Criteria: []Criterion{
			{Key: application.CriterionCommunication, Label: "Communication"},
			{Key: application.CriterionProblemSolving, Label: "Problem solving"},
			{Key: application.CriterionTeamwork, Label: "Teamwork"},
			{Key: application.CriterionLeadership, Label: "Leadership"},
			{Key: application.CriterionTechnicalSkills, Label: "Technical skills"},
		},
		Options: map[string][]string{
			string(application.FieldAreasOfInterest):    {"Consulting", "Finance", "Marketing", "Technology", "Operations", application.OptionOther},
			string(application.FieldPreferredLocations): {"Hanoi", "Ho Chi Minh City", "Da Nang", "Remote", application.OptionOther},
			string(application.FieldFollowingDuration):  {"Less than 6 months", "6-12 months", "More than a year"},
			string(application.FieldAnnouncementSource): {"Facebook", "LinkedIn", "Friends", application.OptionUniversityPortal, application.OptionOther},
			string(application.FieldApplyFactors):       {"Mentorship", "Network", "Career opportunities", application.OptionOther},
			string(application.FieldAppliedWith):        {"Alone", "With friends", application.OptionOther},
			string(application.FieldCVChallenges):       {"Formatting", "Lack of experience", "Quantifying impact", application.OptionOther},
			string(application.FieldTopPriorities):      {"Career clarity", "Skills", "Network", application.OptionOther},
			string(application.FieldProgramGoals):       {"Networking", "Mentorship", "Internship", application.OptionOther},
		},
	}
}

// Loader holds the current program definition.
type Loader struct {
	mu      sync.RWMutex
	program *Program
}

// NewLoader creates a loader primed with the built-in program
func NewLoader() *Loader {
	return &Loader{program: Default()}
}

// Get returns the current program.
func (l *Loader) Get() *Program {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.program
}

// LoadFromFile replaces the program with the one defined in a YAML file.
// Values missing from the file keep their defaults.
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.program = p
	l.mu.Unlock()

	slog.Info("program loaded",
		"name", p.Name,
		"early_bird", p.Deadlines.EarlyBird.Format(time.RFC3339),
		"official", p.Deadlines.Official.Format(time.RFC3339),
	)
	return nil
}

// Parse decodes and validates a YAML program definition.
func Parse(data []byte) (*Program, error) {
	var pf programFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	p := Default()
	if pf.Name != "" {
		p.Name = pf.Name
	}

	if pf.Deadlines.EarlyBird != "" {
		t, err := time.Parse(time.RFC3339, pf.Deadlines.EarlyBird)
		if err != nil {
			return nil, fmt.Errorf("invalid early_bird deadline: %w", err)
		}
		p.Deadlines.EarlyBird = t
	}
	if pf.Deadlines.Official != "" {
		t, err := time.Parse(time.RFC3339, pf.Deadlines.Official)
		if err != nil {
			return nil, fmt.Errorf("invalid official deadline: %w", err)
		}
		p.Deadlines.Official = t
	}
	if err := p.Deadlines.Validate(); err != nil {
		return nil, err
	}

	for key, label := range pf.Criteria {
		if !slices.Contains(application.RatingCriteria, key) {
			return nil, fmt.Errorf("unknown rating criterion %q", key)
		}
		for i := range p.Criteria {
			if p.Criteria[i].Key == key {
				p.Criteria[i].Label = label
			}
		}
	}

	for field, options := range pf.Options {
		kind, ok := application.KindOf(application.Field(field))
		if !ok || kind != application.KindChoices {
			return nil, fmt.Errorf("options given for %q, which is not a multi-select question", field)
		}
		p.Options[field] = options
	}

	return p, nil
}

// programFile is the YAML layout of a program definition
type programFile struct {
	Name      string `yaml:"name"`
	Deadlines struct {
		EarlyBird string `yaml:"early_bird"`
		Official  string `yaml:"official"`
	} `yaml:"deadlines"`
	Criteria map[string]string   `yaml:"criteria"`
	Options  map[string][]string `yaml:"options"`
}
