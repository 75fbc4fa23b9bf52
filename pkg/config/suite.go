package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrUnknownRunner is returned when a requested command has no runner entry
// in the suite configuration.
var ErrUnknownRunner = errors.New("unknown runner")

// Runner is a named executable action from the suite configuration. Runner
// names are the keys of SuiteConfig.Runners and are unique by construction.
type Runner struct {
	Title        string `json:"title"`
	DisplayTitle string `json:"display_title"`
	Command      string `json:"command"`
	Visible      bool   `json:"visible"`
	Interactive  bool   `json:"interactive"`
	// Eval names the evaluator the grading-notes tool should run for this
	// runner. Empty means no notes pass.
	Eval string `json:"eval,omitempty"`
}

// GradeEntry is one rubric line. Grading notes reference entries by the keys
// of SuiteConfig.Grades.
type GradeEntry struct {
	Title     string  `json:"title"`
	Max       float64 `json:"max"`
	Hidden    bool    `json:"hidden,omitempty"`
	NoTotal   bool    `json:"no_total,omitempty"`
	IsExtra   bool    `json:"is_extra,omitempty"`
	Concealed bool    `json:"concealed,omitempty"`
}

// SuiteConfig is the rubric/config file for one grading suite
// (config.json in the grading directory). Fields not listed here are
// ignored when parsing.
type SuiteConfig struct {
	Key       string                `json:"key"`
	PsetID    int                   `json:"psetid"`
	Title     string                `json:"title"`
	Runners   map[string]Runner     `json:"runners"`
	Grades    map[string]GradeEntry `json:"grades"`
	Directory string                `json:"directory,omitempty"`
}

// ParseSuiteFile loads and validates a suite configuration file.
func ParseSuiteFile(path string) (*SuiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite config '%s': %w", path, err)
	}

	suite := &SuiteConfig{}
	if err := json.Unmarshal(data, suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite config '%s': %w", path, err)
	}

	if len(suite.Runners) == 0 {
		return nil, fmt.Errorf("suite config '%s' defines no runners", path)
	}

	return suite, nil
}

// Runner looks up a runner by command name.
func (s *SuiteConfig) Runner(name string) (Runner, error) {
	r, ok := s.Runners[name]
	if !ok {
		return Runner{}, fmt.Errorf("%w: %s", ErrUnknownRunner, name)
	}
	return r, nil
}

// RunnerNames returns all configured runner names, sorted.
func (s *SuiteConfig) RunnerNames() []string {
	names := make([]string, 0, len(s.Runners))
	for name := range s.Runners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GradeEntry looks up a rubric entry by name.
func (s *SuiteConfig) GradeEntry(name string) (GradeEntry, bool) {
	g, ok := s.Grades[name]
	return g, ok
}
