package results

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classkit/checkoff/pkg/config"
)

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew(t *testing.T) {
	doc := New(3)
	assert.Equal(t, FormatName, doc.Format)
	assert.Equal(t, FormatVersion, doc.Version)
	assert.Empty(t, doc.Tests)
	assert.NotNil(t, doc.Tests)
	assert.Equal(t, 3, doc.ExitCode)
	assert.True(t, doc.Passing())
}

func TestFromLog(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	content := "make: *** [all] Error 2\npartial output\n"
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0o644))

	doc, err := FromLog(logPath, 2)
	require.NoError(t, err)
	assert.Equal(t, content, doc.Output)
	assert.Equal(t, 2, doc.ExitCode)
	assert.Empty(t, doc.Tests)

	_, err = FromLog(filepath.Join(t.TempDir(), "absent.log"), 2)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	tt := map[string]struct {
		content   string
		expectErr bool
		check     func(t *testing.T, doc *Document)
	}{
		"full document": {
			content: `{
				"format": "pa",
				"version": 1.0,
				"execution_time": 1.25,
				"tests": [
					{"name": "alpha", "output": "", "status": "passed", "output_format": "text", "visibility": "visible", "tags": []},
					{"name": "beta", "output": "expected 4, got 5", "status": "failed", "output_format": "text", "visibility": "visible", "tags": ["arith"]}
				]
			}`,
			check: func(t *testing.T, doc *Document) {
				assert.Equal(t, 1.25, doc.ExecutionTime)
				assert.Equal(t, []string{"alpha", "beta"}, doc.TestNames())

				beta, ok := doc.Test("beta")
				require.True(t, ok)
				assert.False(t, beta.Passing())
				assert.False(t, doc.Passing())

				passed, failed, total := doc.Tally()
				assert.Equal(t, 1, passed)
				assert.Equal(t, 1, failed)
				assert.Equal(t, 2, total)
			},
		},
		"missing tests key becomes empty list": {
			content: `{"format": "pa", "version": 1.0}`,
			check: func(t *testing.T, doc *Document) {
				assert.NotNil(t, doc.Tests)
				assert.Empty(t, doc.Tests)
			},
		},
		"duplicate test names": {
			content: `{
				"format": "pa", "version": 1.0,
				"tests": [{"name": "alpha", "status": "passed"}, {"name": "alpha", "status": "failed"}]
			}`,
			expectErr: true,
		},
		"malformed json": {
			content:   `{"tests": [`,
			expectErr: true,
		},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			doc, err := Load(writeDoc(t, tc.content))
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, doc)
		})
	}
}

func TestSaveExcludesRawState(t *testing.T) {
	doc := New(4)
	doc.Output = "raw log text that must not be persisted"

	path := filepath.Join(t.TempDir(), "checkoff.json")
	require.NoError(t, doc.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "raw log text")

	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.NotContains(t, onDisk, "exit_code")
	assert.Contains(t, onDisk, "tests")
}

func TestMergeNotesFile(t *testing.T) {
	rubric := map[string]config.GradeEntry{
		"correctness": {Title: "Correctness", Max: 50},
		"style":       {Title: "Style", Max: 10},
	}

	tt := map[string]struct {
		notes       string
		expectedErr error
		check       func(t *testing.T, doc *Document)
	}{
		"autogrades resolve against rubric": {
			notes: `{"autogrades": {"style": 8, "correctness": 42.5}, "comment": "solid"}`,
			check: func(t *testing.T, doc *Document) {
				assert.True(t, doc.HasNotes())

				specs, err := doc.GradedSpecs()
				require.NoError(t, err)
				require.Len(t, specs, 2)
				assert.Equal(t, "correctness", specs[0].Name)
				assert.Equal(t, "42.5 / 50", specs[0].FormatResult())
				assert.Equal(t, "8 / 10", specs[1].FormatResult())
			},
		},
		"notes without autogrades": {
			notes: `{"comment": "no automatic grading"}`,
			check: func(t *testing.T, doc *Document) {
				assert.True(t, doc.HasNotes())
				specs, err := doc.GradedSpecs()
				require.NoError(t, err)
				assert.Empty(t, specs)
			},
		},
		"unknown rubric entry": {
			notes:       `{"autogrades": {"creativity": 100}}`,
			expectedErr: ErrUnknownGradeEntry,
		},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "notes.json")
			require.NoError(t, os.WriteFile(path, []byte(tc.notes), 0o644))

			doc := New(0)
			doc.AttachRubric(rubric)

			err := doc.MergeNotesFile(path)
			if tc.expectedErr != nil {
				assert.ErrorIs(t, err, tc.expectedErr)
				return
			}
			require.NoError(t, err)
			tc.check(t, doc)
		})
	}
}

func TestAttachRubric(t *testing.T) {
	doc := New(0)
	doc.AttachRubric(nil)
	assert.Nil(t, doc.Grades)

	doc.AttachRubric(map[string]config.GradeEntry{"style": {Max: 10}})
	assert.Len(t, doc.Grades, 1)
}
