package sink

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures are the definitions the sink serves back to clients: goals,
// funnels, and workflows, authored in one YAML file. The structs carry both
// tag sets because the file is YAML and the responses are JSON.
type Fixtures struct {
	Goals     []GoalFixture     `yaml:"goals" json:"goals"`
	Funnels   []FunnelFixture   `yaml:"funnels" json:"funnels"`
	Workflows []WorkflowFixture `yaml:"workflows" json:"workflows"`
}

type GoalFixture struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Selector string `yaml:"selector" json:"selector"`
}

type FunnelFixture struct {
	ID    string        `yaml:"id" json:"id"`
	Name  string        `yaml:"name" json:"name"`
	Steps []StepFixture `yaml:"steps" json:"steps"`
}

type StepFixture struct {
	Order     int    `yaml:"order" json:"order"`
	StepType  string `yaml:"step_type" json:"step_type"`
	MatchType string `yaml:"match_type" json:"match_type,omitempty"`
	PagePath  string `yaml:"page_path" json:"page_path,omitempty"`
	EventType string `yaml:"event_type" json:"event_type,omitempty"`
	Name      string `yaml:"name" json:"name"`
}

type WorkflowFixture struct {
	ID         string        `yaml:"id" json:"id"`
	Name       string        `yaml:"name" json:"name"`
	Status     string        `yaml:"status" json:"status"`
	MinVersion string        `yaml:"min_version" json:"min_version,omitempty"`
	Nodes      []NodeFixture `yaml:"nodes" json:"nodes"`
	Edges      []EdgeFixture `yaml:"edges" json:"edges"`
}

type NodeFixture struct {
	ID   string `yaml:"id" json:"id"`
	Data struct {
		Type     string         `yaml:"type" json:"type"`
		Title    string         `yaml:"title" json:"title"`
		Settings map[string]any `yaml:"settings" json:"settings,omitempty"`
	} `yaml:"data" json:"data"`
}

type EdgeFixture struct {
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
}

// LoadFixtures reads a fixtures file. A missing path yields empty fixtures
// so the sink works out of the box.
func LoadFixtures(path string) (*Fixtures, error) {
	if path == "" {
		return &Fixtures{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var fx Fixtures
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &fx, nil
}
