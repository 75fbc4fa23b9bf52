// Package config loads and resolves checkoff run configuration. The run
// config file is discovered by walking upward from a starting directory, the
// way version-control tools find their repository config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// Config file names checked in each directory during upward discovery.
var configFileNames = []string{"checkoff.yaml", ".checkoff.yaml"}

var (
	// ErrConfigNotFound is returned when no config file exists in the start
	// directory or any of its ancestors.
	ErrConfigNotFound = errors.New("no checkoff config found")
	// ErrConfigInvalid is returned when a located config file is malformed
	// or missing required fields.
	ErrConfigInvalid = errors.New("invalid checkoff config")
)

// RunConfig identifies a grading suite: where the grading material lives,
// how workspaces are overlaid, and where expected baselines are recorded.
// All paths are absolute after Resolve. Fields not listed here are ignored
// when parsing.
type RunConfig struct {
	GradingDir  string `json:"grading_dir"`
	TargetDir   string `json:"target_dir,omitempty"`
	ExpectedDir string `json:"expected_dir,omitempty"`
	OverlayDir  string `json:"overlay_dir,omitempty"`
	Overlay     *bool  `json:"overlay,omitempty"`
	SuiteConfig string `json:"suite_config,omitempty"`
	GradeScript string `json:"grade_script,omitempty"`

	// Suite is the parsed rubric/config file named by SuiteConfig.
	Suite *SuiteConfig `json:"-"`
	// Path is the location the config was loaded from.
	Path string `json:"-"`
}

// OverlayEnabled reports whether the overlay tree should be staged.
func (c *RunConfig) OverlayEnabled() bool {
	return c.Overlay == nil || *c.Overlay
}

// DisableOverlay is the only post-load mutation: an explicit caller override.
func (c *RunConfig) DisableOverlay() {
	disabled := false
	c.Overlay = &disabled
}

// Resolve locates and loads the nearest run configuration. If start is a
// regular file it is loaded directly; otherwise start and each ancestor
// directory are checked in turn, stopping at the filesystem root.
func Resolve(start string) (*RunConfig, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve start path '%s': %w", start, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat start path '%s': %w", abs, err)
	}

	if !info.IsDir() {
		return Load(abs)
	}

	dir := abs
	for {
		for _, name := range configFileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return Load(candidate)
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, fmt.Errorf("%w in '%s' or any ancestor", ErrConfigNotFound, abs)
		}
		dir = parent
	}
}

// Load reads a run configuration file, applies defaults, resolves relative
// paths against the file's own directory, and parses the suite config.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config '%s': %w", path, err)
	}

	cfg := &RunConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse '%s': %v", ErrConfigInvalid, path, err)
	}

	if cfg.GradingDir == "" {
		return nil, fmt.Errorf("%w: '%s' does not set grading_dir", ErrConfigInvalid, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", path, err)
	}
	cfg.Path = absPath

	basePath := filepath.Dir(absPath)
	resolveDefault(&cfg.GradingDir, basePath, "")
	resolveDefault(&cfg.ExpectedDir, basePath, filepath.Join(cfg.GradingDir, "expected"))
	resolveDefault(&cfg.OverlayDir, basePath, filepath.Join(cfg.GradingDir, "overlay"))
	resolveDefault(&cfg.SuiteConfig, basePath, filepath.Join(cfg.GradingDir, "config.json"))
	resolveDefault(&cfg.GradeScript, basePath, defaultGradeScript(cfg.GradingDir))
	if cfg.TargetDir != "" {
		// Target is a subpath inside the workspace, never made absolute.
		cfg.TargetDir = filepath.Clean(cfg.TargetDir)
	}

	suite, err := ParseSuiteFile(cfg.SuiteConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	cfg.Suite = suite

	return cfg, nil
}

// resolveDefault fills in def when the field is empty, and otherwise makes a
// relative value absolute with respect to the config file's directory.
func resolveDefault(field *string, basePath, def string) {
	if *field == "" {
		*field = def
		return
	}
	if !filepath.IsAbs(*field) {
		*field = filepath.Join(basePath, *field)
	}
}

// defaultGradeScript returns the first grade.* match in the grading
// directory, or empty when the suite has no grading script.
func defaultGradeScript(gradingDir string) string {
	matches, err := filepath.Glob(filepath.Join(gradingDir, "grade.*"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}
