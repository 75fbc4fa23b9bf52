// Package compare reconciles an actual result document against a recorded
// baseline. Equivalence is structural: field-for-field equality of the
// serialized documents, excluding execution time.
package compare

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/classkit/checkoff/pkg/results"
)

// Reason classifies why a single test comparison failed (or didn't).
type Reason string

const (
	ReasonOK      Reason = "ok"
	ReasonResult  Reason = "result"
	ReasonMissing Reason = "missing"
	ReasonExtra   Reason = "extra"
)

// TestComparison is the per-test breakdown entry.
type TestComparison struct {
	Name     string
	Status   string
	Reason   Reason
	Output   string
	Actual   *results.TestEntry
	Expected *results.TestEntry
}

// Passing reports whether this test matched the baseline.
func (t *TestComparison) Passing() bool {
	return t.Status == results.StatusPassed
}

// Outcome is the result of one baseline comparison.
type Outcome struct {
	// Passed is the overall verdict.
	Passed bool
	// NoResults is set when the actual result file never materialized; no
	// comparison was attempted.
	NoResults bool
	// Reason is a human-readable diagnostic for the NoResults case.
	Reason string
	// Tests is the per-test breakdown, expected-order first, then tests
	// only present in the actual document.
	Tests []TestComparison
	// Diff is a unified diff of the serialized documents, empty when equal.
	Diff string
}

// Tally returns (matched, mismatched, total) counts over the breakdown.
func (o *Outcome) Tally() (matched, mismatched, total int) {
	for i := range o.Tests {
		if o.Tests[i].Passing() {
			matched++
		} else {
			mismatched++
		}
		total++
	}
	return matched, mismatched, total
}

// Files compares the persisted actual document against the baseline at
// expectedPath. If the actual file is absent entirely the comparison fails
// immediately with a "no results produced" outcome and never reads it.
func Files(actualPath, expectedPath string) (*Outcome, error) {
	if _, err := os.Stat(actualPath); err != nil {
		return &Outcome{
			Passed:    false,
			NoResults: true,
			Reason:    fmt.Sprintf("no results produced at '%s'", actualPath),
		}, nil
	}

	actual, err := results.Load(actualPath)
	if err != nil {
		return nil, err
	}
	expected, err := results.Load(expectedPath)
	if err != nil {
		return nil, err
	}

	return Documents(actual, expected)
}

// Documents computes the structural verdict and per-test breakdown for two
// result documents.
func Documents(actual, expected *results.Document) (*Outcome, error) {
	outcome := &Outcome{
		Tests: buildBreakdown(actual, expected),
	}

	// Execution time is excluded from comparison; raw output and exit code
	// are in-memory state, not part of the serialized document.
	outcome.Passed = cmp.Equal(actual, expected,
		cmpopts.IgnoreFields(results.Document{}, "ExecutionTime", "Output", "ExitCode"),
		cmpopts.EquateEmpty(),
	)

	if !outcome.Passed {
		diff, err := unifiedDiff(actual, expected)
		if err != nil {
			return nil, err
		}
		outcome.Diff = diff
	}

	return outcome, nil
}

// buildBreakdown pairs tests by name: expected order first, then any
// actual-only extras.
func buildBreakdown(actual, expected *results.Document) []TestComparison {
	names := expected.TestNames()
	for _, name := range actual.TestNames() {
		if _, ok := expected.Test(name); !ok {
			names = append(names, name)
		}
	}

	breakdown := make([]TestComparison, 0, len(names))
	for _, name := range names {
		tActual, haveActual := actual.Test(name)
		tExpected, haveExpected := expected.Test(name)

		entry := TestComparison{Name: name}
		switch {
		case !haveActual:
			entry.Reason = ReasonMissing
			entry.Expected = tExpected
			entry.Output = fmt.Sprintf("Expected test not found in results.  Expected output:\n%s", tExpected.Output)
		case !haveExpected:
			entry.Reason = ReasonExtra
			entry.Actual = tActual
			entry.Output = fmt.Sprintf("Extra test not in expected results.  Output:\n%s", tActual.Output)
		case tActual.Status != tExpected.Status:
			entry.Reason = ReasonResult
			entry.Actual = tActual
			entry.Expected = tExpected
			entry.Output = fmt.Sprintf("Expected test status '%s' but was '%s'\n%s",
				tExpected.Status, tActual.Status, outputComparison(tActual.Output, tExpected.Output))
		default:
			entry.Reason = ReasonOK
			entry.Actual = tActual
			entry.Expected = tExpected
			entry.Output = tActual.Output
		}

		if entry.Reason == ReasonOK {
			entry.Status = results.StatusPassed
		} else {
			entry.Status = results.StatusFailed
		}
		breakdown = append(breakdown, entry)
	}

	return breakdown
}

func outputComparison(actualOut, expectedOut string) string {
	if actualOut == "" && expectedOut == "" {
		return ""
	}
	if actualOut == expectedOut {
		return fmt.Sprintf("Outputs from test are identical\n```%s\n```", expectedOut)
	}
	return fmt.Sprintf("Expected:\n```%s\n```\n\nGot:\n```%s\n```", expectedOut, actualOut)
}

// unifiedDiff renders the two documents' serialized forms, with execution
// time zeroed so the diff matches what the verdict compared.
func unifiedDiff(actual, expected *results.Document) (string, error) {
	actualText, err := serializeForDiff(actual)
	if err != nil {
		return "", err
	}
	expectedText, err := serializeForDiff(expected)
	if err != nil {
		return "", err
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expectedText),
		B:        difflib.SplitLines(actualText),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
}

func serializeForDiff(doc *results.Document) (string, error) {
	clone := *doc
	clone.ExecutionTime = 0

	data, err := json.MarshalIndent(&clone, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize result document for diff: %w", err)
	}
	return string(data) + "\n", nil
}
