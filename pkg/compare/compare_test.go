package compare

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classkit/checkoff/pkg/results"
)

func doc(tests ...results.TestEntry) *results.Document {
	d := results.New(0)
	d.Tests = append(d.Tests, tests...)
	return d
}

func entry(name, status string) results.TestEntry {
	return results.TestEntry{
		Name:         name,
		Status:       status,
		OutputFormat: "text",
		Visibility:   "visible",
	}
}

func TestDocuments(t *testing.T) {
	tt := map[string]struct {
		actual         *results.Document
		expected       *results.Document
		expectPassed   bool
		expectedOrder  []string
		expectedReason map[string]Reason
	}{
		"identical documents match": {
			actual:        doc(entry("alpha", results.StatusPassed), entry("beta", results.StatusFailed)),
			expected:      doc(entry("alpha", results.StatusPassed), entry("beta", results.StatusFailed)),
			expectPassed:  true,
			expectedOrder: []string{"alpha", "beta"},
			expectedReason: map[string]Reason{
				"alpha": ReasonOK,
				"beta":  ReasonOK,
			},
		},
		"status mismatch fails that test": {
			actual:        doc(entry("alpha", results.StatusFailed)),
			expected:      doc(entry("alpha", results.StatusPassed)),
			expectPassed:  false,
			expectedOrder: []string{"alpha"},
			expectedReason: map[string]Reason{
				"alpha": ReasonResult,
			},
		},
		"expected test missing from actual": {
			actual:        doc(entry("alpha", results.StatusPassed)),
			expected:      doc(entry("alpha", results.StatusPassed), entry("beta", results.StatusPassed)),
			expectPassed:  false,
			expectedOrder: []string{"alpha", "beta"},
			expectedReason: map[string]Reason{
				"alpha": ReasonOK,
				"beta":  ReasonMissing,
			},
		},
		"extra test not in expected": {
			actual:        doc(entry("alpha", results.StatusPassed), entry("gamma", results.StatusPassed)),
			expected:      doc(entry("alpha", results.StatusPassed)),
			expectPassed:  false,
			expectedOrder: []string{"alpha", "gamma"},
			expectedReason: map[string]Reason{
				"alpha": ReasonOK,
				"gamma": ReasonExtra,
			},
		},
		"both empty": {
			actual:       doc(),
			expected:     doc(),
			expectPassed: true,
		},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			outcome, err := Documents(tc.actual, tc.expected)
			require.NoError(t, err)

			assert.Equal(t, tc.expectPassed, outcome.Passed)
			assert.False(t, outcome.NoResults)

			names := make([]string, 0, len(outcome.Tests))
			reasons := make(map[string]Reason, len(outcome.Tests))
			for i := range outcome.Tests {
				names = append(names, outcome.Tests[i].Name)
				reasons[outcome.Tests[i].Name] = outcome.Tests[i].Reason
			}
			if tc.expectedOrder != nil {
				assert.Equal(t, tc.expectedOrder, names)
			}
			for name, reason := range tc.expectedReason {
				assert.Equal(t, reason, reasons[name], "reason for %s", name)
			}

			if tc.expectPassed {
				assert.Empty(t, outcome.Diff)
			} else {
				assert.NotEmpty(t, outcome.Diff)
			}
		})
	}
}

func TestDocumentsIgnoresExecutionTime(t *testing.T) {
	actual := doc(entry("alpha", results.StatusPassed))
	actual.ExecutionTime = 3.2
	expected := doc(entry("alpha", results.StatusPassed))
	expected.ExecutionTime = 0.4

	outcome, err := Documents(actual, expected)
	require.NoError(t, err)
	assert.True(t, outcome.Passed)
}

func TestDocumentsComparesOutput(t *testing.T) {
	withOutput := entry("alpha", results.StatusPassed)
	withOutput.Output = "42"
	other := entry("alpha", results.StatusPassed)
	other.Output = "43"

	outcome, err := Documents(doc(withOutput), doc(other))
	require.NoError(t, err)
	// Same status, different recorded output: the breakdown reads ok but the
	// structural verdict catches the difference.
	assert.False(t, outcome.Passed)
	assert.Equal(t, ReasonOK, outcome.Tests[0].Reason)
	assert.NotEmpty(t, outcome.Diff)
}

func TestTally(t *testing.T) {
	outcome, err := Documents(
		doc(entry("alpha", results.StatusPassed), entry("beta", results.StatusFailed)),
		doc(entry("alpha", results.StatusPassed), entry("beta", results.StatusPassed)),
	)
	require.NoError(t, err)

	matched, mismatched, total := outcome.Tally()
	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, mismatched)
	assert.Equal(t, 2, total)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	docJSON := `{
		"format": "pa", "version": 1.0,
		"tests": [{"name": "alpha", "output": "", "status": "passed", "output_format": "text", "visibility": "visible", "tags": []}]
	}`

	actualPath := filepath.Join(dir, "checkoff.json")
	expectedPath := filepath.Join(dir, "expected.json")
	require.NoError(t, os.WriteFile(actualPath, []byte(docJSON), 0o644))
	require.NoError(t, os.WriteFile(expectedPath, []byte(docJSON), 0o644))

	outcome, err := Files(actualPath, expectedPath)
	require.NoError(t, err)
	assert.True(t, outcome.Passed)
	assert.False(t, outcome.NoResults)
}

func TestFilesMissingActual(t *testing.T) {
	dir := t.TempDir()
	expectedPath := filepath.Join(dir, "expected.json")
	require.NoError(t, os.WriteFile(expectedPath, []byte(`{"format": "pa", "version": 1.0, "tests": []}`), 0o644))

	outcome, err := Files(filepath.Join(dir, "never-written.json"), expectedPath)
	require.NoError(t, err)
	assert.False(t, outcome.Passed)
	assert.True(t, outcome.NoResults)
	assert.Contains(t, outcome.Reason, "never-written.json")
}

func TestFilesMalformedExpected(t *testing.T) {
	dir := t.TempDir()
	actualPath := filepath.Join(dir, "checkoff.json")
	expectedPath := filepath.Join(dir, "expected.json")
	require.NoError(t, os.WriteFile(actualPath, []byte(`{"format": "pa", "version": 1.0, "tests": []}`), 0o644))
	require.NoError(t, os.WriteFile(expectedPath, []byte(`{`), 0o644))

	_, err := Files(actualPath, expectedPath)
	assert.Error(t, err)
}
