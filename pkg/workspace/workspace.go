// Package workspace builds the ephemeral execution root a checkoff runs in.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultRoot is the well-known default workspace. It is deleted and
	// recreated on every run; caller-supplied roots are only created.
	DefaultRoot = "/tmp/checkoff/work"

	// RepoDirName is where the submission tree lands inside the workspace.
	RepoDirName = "repo"

	outputDirName = "output"

	// LogName is the captured-mode output log.
	LogName = "run.log"
	// NotesName is where the grading-notes tool writes its document.
	NotesName = "notes.json"
	// RunnerResultsName is the well-known path the executed command writes
	// structured per-test results to. Two invocations sharing an output
	// directory would corrupt each other here.
	RunnerResultsName = "results.json"
	// FinalResultsName is the aggregated result document.
	FinalResultsName = "checkoff.json"

	// EnvOutputDir is exported to the child so runner commands can find the
	// output directory.
	EnvOutputDir = "CHECKOFF_OUTPUT_DIR"
)

// Placeholder build-configuration files seeded so downstream build tooling
// does not fail on their absence.
var placeholderFiles = []string{"config.mk", "local.mk"}

// Workspace is a staged execution root.
type Workspace struct {
	Root      string
	OutputDir string
}

func (w *Workspace) RepoDir() string           { return filepath.Join(w.Root, RepoDirName) }
func (w *Workspace) LogPath() string           { return filepath.Join(w.OutputDir, LogName) }
func (w *Workspace) NotesPath() string         { return filepath.Join(w.OutputDir, NotesName) }
func (w *Workspace) RunnerResultsPath() string { return filepath.Join(w.OutputDir, RunnerResultsName) }
func (w *Workspace) FinalResultsPath() string  { return filepath.Join(w.OutputDir, FinalResultsName) }

// StageOptions control where and how the workspace is built.
type StageOptions struct {
	// Root of the workspace. Empty selects DefaultRoot, which is reset to a
	// clean state first.
	Root string
	// OutputDir for run artifacts. Empty selects <root>/output.
	OutputDir string
	// TargetDir is the subpath under repo/ the submission is copied to.
	TargetDir string
	// OverlayDir is copied over the workspace root. Empty disables the
	// overlay.
	OverlayDir string
}

// Stage creates (or resets) the workspace root, copies the submission and
// optional overlay into place, seeds placeholder build files, and clears
// stale artifacts from the output directory. Copy errors are returned and
// must be treated as fatal by the caller.
func Stage(submissionDir string, opts StageOptions) (*Workspace, error) {
	root := opts.Root
	if root == "" {
		root = DefaultRoot
		if err := os.RemoveAll(root); err != nil {
			return nil, fmt.Errorf("failed to reset workspace '%s': %w", root, err)
		}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace '%s': %w", root, err)
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(root, outputDirName)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir '%s': %w", outputDir, err)
	}

	ws := &Workspace{Root: root, OutputDir: outputDir}

	target := ws.RepoDir()
	if opts.TargetDir != "" {
		target = filepath.Join(target, opts.TargetDir)
	}
	if err := copyTree(submissionDir, target); err != nil {
		return nil, fmt.Errorf("failed to copy submission '%s': %w", submissionDir, err)
	}

	if opts.OverlayDir != "" {
		if err := copyTree(opts.OverlayDir, root); err != nil {
			return nil, fmt.Errorf("failed to copy overlay '%s': %w", opts.OverlayDir, err)
		}
	}

	for _, name := range placeholderFiles {
		if err := touch(filepath.Join(root, name)); err != nil {
			return nil, err
		}
	}

	if err := ws.ClearArtifacts(); err != nil {
		return nil, err
	}

	return ws, nil
}

// ClearArtifacts removes any pre-existing log/notes/results files so the run
// starts from a clean output directory.
func (w *Workspace) ClearArtifacts() error {
	for _, name := range []string{LogName, NotesName, RunnerResultsName, FinalResultsName} {
		path := filepath.Join(w.OutputDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear artifact '%s': %w", path, err)
		}
	}
	return nil
}

// Remove deletes the workspace root.
func (w *Workspace) Remove() error {
	return os.RemoveAll(w.Root)
}

// copyTree copies src into dst, preserving file mode and modification times.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		targetPath := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			if err := os.MkdirAll(targetPath, info.Mode().Perm()); err != nil {
				return err
			}
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(targetPath)
			if err := os.Symlink(link, targetPath); err != nil {
				return err
			}
			return nil
		default:
			if err := copyFile(path, targetPath, info.Mode().Perm()); err != nil {
				return err
			}
		}

		return os.Chtimes(targetPath, info.ModTime(), info.ModTime())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, perm); err != nil {
		return err
	}
	// WriteFile only applies perm on create; overlay copies may overwrite.
	return os.Chmod(dst, perm)
}

// touch creates an empty file if none exists, leaving existing content alone.
func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to seed placeholder '%s': %w", path, err)
	}
	return f.Close()
}
