package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSuiteFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseSuiteFile(t *testing.T) {
	tt := map[string]struct {
		content   string
		expectErr bool
		check     func(t *testing.T, suite *SuiteConfig)
	}{
		"full suite": {
			content: `{
				"key": "pset2",
				"psetid": 2,
				"title": "Problem Set 2",
				"directory": "pset2",
				"runners": {
					"grade": {"title": "Grade", "command": "make grade", "visible": true, "eval": "autograder"},
					"shell": {"title": "Shell", "command": "make run", "interactive": true}
				},
				"grades": {
					"correctness": {"title": "Correctness", "max": 50},
					"style": {"title": "Style", "max": 10, "hidden": true}
				}
			}`,
			check: func(t *testing.T, suite *SuiteConfig) {
				assert.Equal(t, 2, suite.PsetID)
				assert.Equal(t, "pset2", suite.Directory)

				r, err := suite.Runner("grade")
				require.NoError(t, err)
				assert.Equal(t, "autograder", r.Eval)
				assert.False(t, r.Interactive)

				shell, err := suite.Runner("shell")
				require.NoError(t, err)
				assert.True(t, shell.Interactive)

				g, ok := suite.GradeEntry("style")
				require.True(t, ok)
				assert.True(t, g.Hidden)
				assert.Equal(t, 10.0, g.Max)
			},
		},
		"unknown fields ignored": {
			content: `{
				"title": "PS",
				"course": "cs200",
				"runners": {"build": {"title": "Build", "command": "make"}}
			}`,
			check: func(t *testing.T, suite *SuiteConfig) {
				assert.Equal(t, []string{"build"}, suite.RunnerNames())
			},
		},
		"no runners": {
			content:   `{"title": "Empty"}`,
			expectErr: true,
		},
		"malformed": {
			content:   `{"runners": [`,
			expectErr: true,
		},
	}

	for tn, tc := range tt {
		t.Run(tn, func(t *testing.T) {
			suite, err := ParseSuiteFile(writeSuiteFile(t, tc.content))
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, suite)
		})
	}
}

func TestRunnerLookup(t *testing.T) {
	suite := &SuiteConfig{
		Runners: map[string]Runner{
			"test":  {Command: "make test"},
			"build": {Command: "make"},
		},
	}

	_, err := suite.Runner("deploy")
	assert.ErrorIs(t, err, ErrUnknownRunner)

	assert.Equal(t, []string{"build", "test"}, suite.RunnerNames())
}
