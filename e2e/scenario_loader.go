package e2e

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/redhat-data-and-ai/hookbot/internal/gitlab"
)

// Scenario is a sequence of webhooks posted to one service instance and the
// room events they should produce
type Scenario struct {
	Name        string
	Description string
	Dir         string
	Steps       []Step
	Expected    ExpectedResults
}

// Step is one webhook request
type Step struct {
	Hook    string         `yaml:"hook"`
	Fixture string         `yaml:"fixture"` // file under the fixtures directory
	Set     map[string]any `yaml:"set"`     // dotted JSON paths overridden in the fixture
	Room    string         `yaml:"room"`    // defaults to the joined test room
	Status  int            `yaml:"status"`  // expected HTTP status, 202 when unset
}

// ExpectedResults describes the room events after every step ran
type ExpectedResults struct {
	// Events lists what reached the homeserver in order: "send", "edit",
	// "redact" or "react <key>"
	Events       []string `yaml:"events"`
	BodyContains []string `yaml:"body_contains"` // substrings of the latest message body
	FailedTasks  uint64   `yaml:"failed_tasks"`
}

// ScenarioYAML is the format of scenario.yaml
type ScenarioYAML struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Steps       []Step          `yaml:"steps"`
	Expected    ExpectedResults `yaml:"expected"`
}

// LoadScenarios discovers every scenario.yaml below testdataPath/scenarios.
// Fixtures are resolved against fixturesDir.
func LoadScenarios(testdataPath, fixturesDir string) ([]Scenario, error) {
	scenariosPath := filepath.Join(testdataPath, "scenarios")
	if _, err := os.Stat(scenariosPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("scenarios directory not found: %s", scenariosPath)
	}

	var scenarios []Scenario
	err := filepath.Walk(scenariosPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || (info.Name() != "scenario.yaml" && info.Name() != "scenario.yml") {
			return nil
		}

		scenario, err := LoadScenario(path, fixturesDir)
		if err != nil {
			return fmt.Errorf("failed to load scenario from %s: %w", filepath.Dir(path), err)
		}
		scenarios = append(scenarios, *scenario)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return scenarios, nil
}

// LoadScenario parses one scenario file
func LoadScenario(path, fixturesDir string) (*Scenario, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc ScenarioYAML
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	scenario := &Scenario{
		Name:        doc.Name,
		Description: doc.Description,
		Dir:         filepath.Dir(path),
		Steps:       doc.Steps,
		Expected:    doc.Expected,
	}
	if scenario.Name == "" {
		scenario.Name = filepath.Base(scenario.Dir)
	}
	for i := range scenario.Steps {
		if scenario.Steps[i].Status == 0 {
			scenario.Steps[i].Status = http.StatusAccepted
		}
	}

	if err := validateScenario(scenario, fixturesDir); err != nil {
		return nil, fmt.Errorf("scenario validation failed: %w", err)
	}
	return scenario, nil
}

func validateScenario(scenario *Scenario, fixturesDir string) error {
	if len(scenario.Steps) == 0 {
		return fmt.Errorf("scenario %s has no steps", scenario.Name)
	}

	for i, step := range scenario.Steps {
		if _, ok := gitlab.ParseHookName(step.Hook); !ok {
			return fmt.Errorf("step %d: unsupported hook %q", i+1, step.Hook)
		}
		if _, err := os.Stat(filepath.Join(fixturesDir, step.Fixture)); err != nil {
			return fmt.Errorf("step %d: fixture not found: %s", i+1, step.Fixture)
		}
	}
	return nil
}

// FilterScenariosByTag keeps scenarios whose name or description mentions
// one of tags
func FilterScenariosByTag(scenarios []Scenario, tags []string) []Scenario {
	if len(tags) == 0 {
		return scenarios
	}

	var filtered []Scenario
	for _, scenario := range scenarios {
		for _, tag := range tags {
			if strings.Contains(strings.ToLower(scenario.Name), strings.ToLower(tag)) ||
				strings.Contains(strings.ToLower(scenario.Description), strings.ToLower(tag)) {
				filtered = append(filtered, scenario)
				break
			}
		}
	}
	return filtered
}
