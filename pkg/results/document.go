// Package results defines the canonical result document a checkoff run
// produces, and the aggregator that normalizes whatever execution left
// behind into exactly one such document.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/classkit/checkoff/pkg/config"
)

const (
	StatusPassed = "passed"
	StatusFailed = "failed"

	// FormatName and FormatVersion identify the on-disk document schema.
	FormatName    = "pa"
	FormatVersion = 1.0
)

// ErrUnknownGradeEntry is returned when a grading note references a rubric
// entry that does not exist in the suite configuration.
var ErrUnknownGradeEntry = errors.New("unknown grade entry")

// TestEntry is one test outcome. Status is the sole determinant of
// pass/fail; there is no third state.
type TestEntry struct {
	Name         string   `json:"name"`
	Output       string   `json:"output"`
	Status       string   `json:"status"`
	OutputFormat string   `json:"output_format"`
	Visibility   string   `json:"visibility"`
	Tags         []string `json:"tags"`
}

// Passing reports whether the test passed.
func (t *TestEntry) Passing() bool {
	return t.Status == StatusPassed
}

// Document is the canonical run outcome. The degenerate document (zero
// tests, exit code only) is first-class, not an error. Raw output and the
// runner's exit code are carried in memory but never serialized.
type Document struct {
	Format        string                       `json:"format"`
	Version       float64                      `json:"version"`
	ExecutionTime float64                      `json:"execution_time,omitempty"`
	Tests         []TestEntry                  `json:"tests"`
	Grades        map[string]config.GradeEntry `json:"grades,omitempty"`
	Notes         map[string]json.RawMessage   `json:"notes,omitempty"`

	Output   string `json:"-"`
	ExitCode int    `json:"-"`
}

// GradeSpec pairs a rubric entry with the value a grading note assigned it.
type GradeSpec struct {
	Name  string
	Entry config.GradeEntry
	Value json.RawMessage
}

func (g GradeSpec) FormatResult() string {
	return fmt.Sprintf("%s / %v", string(g.Value), g.Entry.Max)
}

// New returns an empty document carrying just an exit code: the "no
// machine-readable tests, but the command nominally ran" state.
func New(exitCode int) *Document {
	return &Document{
		Format:   FormatName,
		Version:  FormatVersion,
		Tests:    []TestEntry{},
		ExitCode: exitCode,
	}
}

// FromLog synthesizes a document from the captured log alone: zero tests,
// raw output populated byte-for-byte from the log, exit code recorded.
func FromLog(logPath string, exitCode int) (*Document, error) {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read run log '%s': %w", logPath, err)
	}

	doc := New(exitCode)
	doc.Output = string(data)
	return doc, nil
}

// Load parses a persisted result document. Test names must be unique.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result document '%s': %w", path, err)
	}

	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to parse result document '%s': %w", path, err)
	}
	if doc.Tests == nil {
		doc.Tests = []TestEntry{}
	}

	seen := make(map[string]bool, len(doc.Tests))
	for _, t := range doc.Tests {
		if seen[t.Name] {
			return nil, fmt.Errorf("result document '%s' has duplicate test '%s'", path, t.Name)
		}
		seen[t.Name] = true
	}

	return doc, nil
}

// Save persists the document.
func (d *Document) Save(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write result document '%s': %w", path, err)
	}
	return nil
}

// Test looks up a test by name.
func (d *Document) Test(name string) (*TestEntry, bool) {
	for i := range d.Tests {
		if d.Tests[i].Name == name {
			return &d.Tests[i], true
		}
	}
	return nil, false
}

// TestNames returns test names in document order.
func (d *Document) TestNames() []string {
	names := make([]string, len(d.Tests))
	for i, t := range d.Tests {
		names[i] = t.Name
	}
	return names
}

// Passing reports whether every test passed. A document with zero tests is
// passing; the exit code carries the verdict in that case.
func (d *Document) Passing() bool {
	for i := range d.Tests {
		if !d.Tests[i].Passing() {
			return false
		}
	}
	return true
}

// Tally returns (passed, failed, total) counts over the test list.
func (d *Document) Tally() (passed, failed, total int) {
	for i := range d.Tests {
		if d.Tests[i].Passing() {
			passed++
		} else {
			failed++
		}
		total++
	}
	return passed, failed, total
}

// AttachRubric records the suite's grading rubric on the document.
func (d *Document) AttachRubric(grades map[string]config.GradeEntry) {
	if len(grades) == 0 {
		return
	}
	d.Grades = grades
}

// MergeNotesFile parses the grading-notes document and merges it in. Every
// autogrades key must name a configured rubric entry.
func (d *Document) MergeNotesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read notes '%s': %w", path, err)
	}

	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse notes '%s': %w", path, err)
	}
	d.Notes = parsed

	// Validate note references eagerly so a bad rubric name fails at
	// aggregation time, not at display time.
	_, err = d.GradedSpecs()
	return err
}

// HasNotes reports whether a notes payload was merged in.
func (d *Document) HasNotes() bool {
	return d.Notes != nil
}

// autogrades returns the rubric-name to value mapping from the notes
// payload, empty when no notes (or no autogrades key) are present.
func (d *Document) autogrades() (map[string]json.RawMessage, error) {
	raw, ok := d.Notes["autogrades"]
	if !ok {
		return nil, nil
	}
	var grades map[string]json.RawMessage
	if err := json.Unmarshal(raw, &grades); err != nil {
		return nil, fmt.Errorf("failed to parse autogrades payload: %w", err)
	}
	return grades, nil
}

// GradedSpecs resolves every grading note against the attached rubric, in
// sorted name order. A note naming a missing rubric entry is an error.
func (d *Document) GradedSpecs() ([]GradeSpec, error) {
	auto, err := d.autogrades()
	if err != nil {
		return nil, err
	}
	if len(auto) == 0 {
		return nil, nil
	}

	specs := make([]GradeSpec, 0, len(auto))
	for _, name := range sortedKeys(auto) {
		entry, ok := d.Grades[name]
		if !ok {
			return nil, fmt.Errorf("%w: grading note references '%s'", ErrUnknownGradeEntry, name)
		}
		specs = append(specs, GradeSpec{Name: name, Entry: entry, Value: auto[name]})
	}
	return specs, nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
